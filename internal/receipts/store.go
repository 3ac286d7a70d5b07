// Package receipts keeps recorded payments and writes every change through
// to persistence before it becomes visible.
package receipts

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"crm/internal/logger"
	"crm/internal/validate"
	"crm/pkg/models"
)

type Persister interface {
	SaveReceipts(ctx context.Context, receipts []models.Receipt) error
	LoadReceipts(ctx context.Context) ([]models.Receipt, error)
}

type Store struct {
	p     Persister
	log   zerolog.Logger
	newID func() string
	now   func() time.Time

	mu       sync.RWMutex
	receipts []models.Receipt
}

type Option func(*Store)

// WithIDGenerator replaces the random id source.
func WithIDGenerator(f func() string) Option {
	return func(s *Store) { s.newID = f }
}

// WithClock replaces the creation time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(p Persister, opts ...Option) *Store {
	s := &Store{
		p:     p,
		log:   logger.WithComponent("receipts"),
		newID: uuid.NewString,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFromInvoice returns an unsaved receipt prefilled from inv.
func NewFromInvoice(inv models.Invoice) models.Receipt {
	return models.Receipt{
		InvoiceNumber:     inv.NumberInvoice,
		ClientName:        inv.ClientName,
		PhoneNumber:       inv.PhoneNumber,
		DebtCollectorName: inv.DebtCollectorName,
		Salesperson:       inv.Salesperson,
		Branch:            inv.Branch,
		Status:            models.ReceiptNew,
	}
}

func (s *Store) Load(ctx context.Context) error {
	const op = "Load"

	loaded, err := s.p.LoadReceipts(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load receipts")
		return fmt.Errorf("%s: %w", op, err)
	}
	s.mu.Lock()
	s.receipts = loaded
	s.mu.Unlock()
	return nil
}

func (s *Store) List() []models.Receipt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Receipt(nil), s.receipts...)
}

func (s *Store) Get(id string) (models.Receipt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexByID(s.receipts, id); i >= 0 {
		return s.receipts[i], true
	}
	return models.Receipt{}, false
}

// ForInvoice returns the receipts recorded against an invoice number.
func (s *Store) ForInvoice(number string) []models.Receipt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Receipt
	for _, r := range s.receipts {
		if r.InvoiceNumber == number {
			out = append(out, r)
		}
	}
	return out
}

// AddReceipt validates and stores r, assigning an id, creation time and
// the New status when they are unset.
func (s *Store) AddReceipt(ctx context.Context, r models.Receipt) (models.Receipt, error) {
	const op = "AddReceipt"

	if err := validate.Receipt(r); err != nil {
		return models.Receipt{}, err
	}
	r.Bank = strings.TrimSpace(r.Bank)
	if r.ID == "" {
		r.ID = s.newID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	if r.Status == "" {
		r.Status = models.ReceiptNew
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if indexByID(s.receipts, r.ID) >= 0 {
		return models.Receipt{}, validate.New("id", "already exists")
	}
	next := append(append([]models.Receipt(nil), s.receipts...), r)
	if err := s.commit(ctx, next); err != nil {
		return models.Receipt{}, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info().Str("id", r.ID).Str("invoice", r.InvoiceNumber).Str("amount", r.ReceiptAmount.String()).Msg("Added receipt")
	return r, nil
}

// UpdateReceipt replaces the receipt with id, keeping its id and creation
// time. It reports false when id is unknown.
func (s *Store) UpdateReceipt(ctx context.Context, id string, r models.Receipt) (bool, error) {
	const op = "UpdateReceipt"

	if err := validate.Receipt(r); err != nil {
		return false, err
	}
	return s.modify(ctx, op, id, func(old models.Receipt) models.Receipt {
		r.ID = old.ID
		if r.CreatedAt.IsZero() {
			r.CreatedAt = old.CreatedAt
		}
		if r.Status == "" {
			r.Status = old.Status
		}
		return r
	})
}

// UpdateStatus moves the receipt with id to status.
func (s *Store) UpdateStatus(ctx context.Context, id string, status models.ReceiptStatus) (bool, error) {
	const op = "UpdateStatus"

	if strings.TrimSpace(string(status)) == "" {
		return false, validate.New("status", "is required")
	}
	return s.modify(ctx, op, id, func(old models.Receipt) models.Receipt {
		old.Status = status
		return old
	})
}

func (s *Store) DeleteReceipt(ctx context.Context, id string) (bool, error) {
	const op = "DeleteReceipt"

	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexByID(s.receipts, id)
	if i < 0 {
		return false, nil
	}
	next := append(append([]models.Receipt(nil), s.receipts[:i]...), s.receipts[i+1:]...)
	if err := s.commit(ctx, next); err != nil {
		return true, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info().Str("id", id).Msg("Deleted receipt")
	return true, nil
}

// SetReceipts replaces the whole collection.
func (s *Store) SetReceipts(ctx context.Context, receipts []models.Receipt) error {
	const op = "SetReceipts"

	s.mu.Lock()
	defer s.mu.Unlock()
	next := append([]models.Receipt(nil), receipts...)
	if err := s.commit(ctx, next); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Store) modify(ctx context.Context, op, id string, change func(models.Receipt) models.Receipt) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexByID(s.receipts, id)
	if i < 0 {
		return false, nil
	}
	next := append([]models.Receipt(nil), s.receipts...)
	next[i] = change(next[i])
	if err := s.commit(ctx, next); err != nil {
		return true, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// commit persists next and only then publishes it. Callers hold s.mu.
func (s *Store) commit(ctx context.Context, next []models.Receipt) error {
	if err := s.p.SaveReceipts(ctx, next); err != nil {
		s.log.Error().Err(err).Msg("Failed to save receipts")
		return err
	}
	s.receipts = next
	return nil
}

func indexByID(receipts []models.Receipt, id string) int {
	for i, r := range receipts {
		if r.ID == id {
			return i
		}
	}
	return -1
}
