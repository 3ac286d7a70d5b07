package extract

import (
	"errors"
	"fmt"
)

// Common extraction errors
var (
	// ErrInvalidPDF is returned when the provided data is not a PDF document
	// or Document AI rejects it.
	ErrInvalidPDF = errors.New("invalid or corrupted PDF document")

	// ErrDocumentTooLarge is returned when the PDF exceeds MaxDocumentSizeBytes.
	ErrDocumentTooLarge = errors.New("document exceeds maximum size limit")

	// ErrProcessingFailed is returned when Document AI processing fails.
	ErrProcessingFailed = errors.New("document AI processing failed")

	// ErrMissingInvoiceNumber is returned when no invoice number could be found
	// in the document. Invoices are keyed by number so the candidate is unusable.
	ErrMissingInvoiceNumber = errors.New("no invoice number found in document")

	ErrInvalidCredentials   = errors.New("invalid Google Cloud credentials")
	ErrMissingCredentials   = errors.New("missing Google Cloud credentials")
	ErrInvalidConfiguration = errors.New("invalid Document AI configuration")
	ErrProcessorNotFound    = errors.New("Document AI processor not found")
	ErrQuotaExceeded        = errors.New("Document AI API quota exceeded")
)

// ExtractionError wraps errors with the operation and processor involved.
type ExtractionError struct {
	Op          string
	Err         error
	Details     string
	ProcessorID string
}

func (e *ExtractionError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("extract: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	if e.ProcessorID != "" {
		return fmt.Sprintf("extract: %s failed (processor: %s): %v", e.Op, e.ProcessorID, e.Err)
	}
	return fmt.Sprintf("extract: %s failed: %v", e.Op, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

func (e *ExtractionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// wrap returns err as an ExtractionError unless it already is one.
func wrap(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var extractErr *ExtractionError
	if errors.As(err, &extractErr) {
		return err
	}
	return &ExtractionError{Op: op, Err: err, Details: details}
}
