package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned when a collection is used before Connect.
	ErrNotConnected = errors.New("store not connected")

	// ErrClosed is returned when the store is used after Close.
	ErrClosed = errors.New("store closed")

	// ErrUnsupportedBackend is returned for an unknown backend name.
	ErrUnsupportedBackend = errors.New("unsupported storage backend")
)

// StorageError wraps a failed store operation with the collection it touched.
type StorageError struct {
	// Op is the operation that failed (e.g. "Save", "Load", "Connect").
	Op string

	// Collection is the collection involved, empty for store-wide operations.
	Collection Collection

	// Err is the underlying error.
	Err error
}

func (e *StorageError) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("storage: %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage: %s %s failed: %v", e.Op, e.Collection, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Wrap returns err as a StorageError unless it is nil or already one.
func Wrap(op string, c Collection, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Collection: c, Err: err}
}
