// Package memory is an in-process storage backend. Collections are kept as
// encoded snapshots so callers never share memory with the store, and
// failures can be injected per collection to exercise write-through error
// paths.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"crm/internal/storage"
	"crm/pkg/models"
)

type Store struct {
	mu       sync.Mutex
	data     map[storage.Collection][]byte
	failures map[storage.Collection]error
	conns    int
	closed   bool
}

var _ storage.Backend = (*Store)(nil)

func New() *Store {
	return &Store{
		data:     make(map[storage.Collection][]byte),
		failures: make(map[storage.Collection]error),
	}
}

// FailOn makes every later save and load of collection return err until it
// is called again with a nil error.
func (s *Store) FailOn(c storage.Collection, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, c)
		return
	}
	s.failures[c] = err
}

// Connections reports how many times the store was actually opened.
func (s *Store) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}

func (s *Store) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.Wrap("Connect", "", storage.ErrClosed)
	}
	if s.conns == 0 {
		s.conns = 1
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) SaveInvoices(ctx context.Context, invoices []models.Invoice) error {
	return s.save(storage.Invoices, invoices)
}

func (s *Store) LoadInvoices(ctx context.Context) ([]models.Invoice, error) {
	var out []models.Invoice
	err := s.load(storage.Invoices, &out)
	return out, err
}

func (s *Store) SaveReceipts(ctx context.Context, receipts []models.Receipt) error {
	return s.save(storage.Receipts, receipts)
}

func (s *Store) LoadReceipts(ctx context.Context) ([]models.Receipt, error) {
	var out []models.Receipt
	err := s.load(storage.Receipts, &out)
	return out, err
}

func (s *Store) SaveConversations(ctx context.Context, conversations []models.Conversation) error {
	return s.save(storage.Conversations, conversations)
}

func (s *Store) LoadConversations(ctx context.Context) ([]models.Conversation, error) {
	var out []models.Conversation
	err := s.load(storage.Conversations, &out)
	return out, err
}

func (s *Store) SaveSettings(ctx context.Context, settings models.Settings) error {
	return s.save(storage.Settings, settings)
}

func (s *Store) LoadSettings(ctx context.Context) (*models.Settings, error) {
	var out *models.Settings
	err := s.load(storage.Settings, &out)
	return out, err
}

func (s *Store) save(c storage.Collection, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return storage.Wrap("Save", c, err)
	}
	if err := s.failures[c]; err != nil {
		return storage.Wrap("Save", c, err)
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return storage.Wrap("Save", c, err)
	}
	s.data[c] = payload
	return nil
}

func (s *Store) load(c storage.Collection, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return storage.Wrap("Load", c, err)
	}
	if err := s.failures[c]; err != nil {
		return storage.Wrap("Load", c, err)
	}
	payload, ok := s.data[c]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return storage.Wrap("Load", c, err)
	}
	return nil
}

func (s *Store) check() error {
	switch {
	case s.closed:
		return storage.ErrClosed
	case s.conns == 0:
		return storage.ErrNotConnected
	}
	return nil
}
