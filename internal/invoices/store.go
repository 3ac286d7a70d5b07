// Package invoices keeps the invoice collection in memory and writes every
// change through to persistence before it becomes visible.
package invoices

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"crm/internal/logger"
	"crm/internal/validate"
	"crm/pkg/models"
)

// Persister is the slice of the record store the invoice store needs.
type Persister interface {
	SaveInvoices(ctx context.Context, invoices []models.Invoice) error
	LoadInvoices(ctx context.Context) ([]models.Invoice, error)
}

// ImportMode selects how SetInvoices treats the stored collection.
type ImportMode int

const (
	// ImportMerge merges incoming rows into the stored invoices by number.
	ImportMerge ImportMode = iota
	// ImportReplace discards the stored invoices.
	ImportReplace
)

// ImportResult summarizes a bulk import.
type ImportResult struct {
	Added   int
	Merged  int
	Skipped int
	Total   int
}

type Store struct {
	p      Persister
	log    zerolog.Logger
	newID  func() string
	region string

	mu       sync.RWMutex
	invoices []models.Invoice
}

type Option func(*Store)

// WithPhoneRegion sets the default region used to compare phone numbers.
func WithPhoneRegion(region string) Option {
	return func(s *Store) { s.region = region }
}

// WithIDGenerator replaces the random id source.
func WithIDGenerator(f func() string) Option {
	return func(s *Store) { s.newID = f }
}

func New(p Persister, opts ...Option) *Store {
	s := &Store{
		p:      p,
		log:    logger.WithComponent("invoices"),
		newID:  uuid.NewString,
		region: "MY",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory collection with the persisted one. On
// failure the current state is kept.
func (s *Store) Load(ctx context.Context) error {
	const op = "Load"

	loaded, err := s.p.LoadInvoices(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load invoices")
		return fmt.Errorf("%s: %w", op, err)
	}
	s.mu.Lock()
	s.invoices = loaded
	s.mu.Unlock()
	s.log.Debug().Int("count", len(loaded)).Msg("Invoices loaded")
	return nil
}

// List returns a copy of all invoices in stored order.
func (s *Store) List() []models.Invoice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Invoice(nil), s.invoices...)
}

func (s *Store) Get(id string) (models.Invoice, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexByID(s.invoices, id); i >= 0 {
		return s.invoices[i], true
	}
	return models.Invoice{}, false
}

func (s *Store) FindByNumber(number string) (models.Invoice, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexByNumber(s.invoices, strings.TrimSpace(number), ""); i >= 0 {
		return s.invoices[i], true
	}
	return models.Invoice{}, false
}

// FindByPhone returns the invoices carrying phone in either phone field.
func (s *Store) FindByPhone(phone string) []models.Invoice {
	want := NormalizePhone(phone, s.region)
	if want == "" {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Invoice
	for _, inv := range s.invoices {
		for _, p := range inv.Phones() {
			if NormalizePhone(p, s.region) == want {
				out = append(out, inv)
				break
			}
		}
	}
	return out
}

// Search returns invoices whose number, client, contact or attribution
// fields contain term, ignoring case.
func (s *Store) Search(term string) []models.Invoice {
	term = strings.ToLower(strings.TrimSpace(term))
	all := s.List()
	if term == "" {
		return all
	}
	var out []models.Invoice
	for _, inv := range all {
		for _, field := range []string{
			inv.NumberInvoice, inv.ClientName, inv.PhoneNumber, inv.PhoneNumber2, inv.MyKadNo,
			inv.TrackingNo, inv.Branch, inv.Salesperson, inv.DebtCollectorName,
		} {
			if strings.Contains(strings.ToLower(field), term) {
				out = append(out, inv)
				break
			}
		}
	}
	return out
}

// AddInvoice stores inv, merging it into the invoice that already carries
// the same number. A new invoice without a status starts as Pending. It
// returns the record as stored.
func (s *Store) AddInvoice(ctx context.Context, inv models.Invoice) (models.Invoice, error) {
	const op = "AddInvoice"

	if err := validate.Invoice(inv); err != nil {
		return models.Invoice{}, err
	}
	inv.NumberInvoice = strings.TrimSpace(inv.NumberInvoice)
	s.warnInvalidPhones(inv)

	s.mu.Lock()
	defer s.mu.Unlock()

	next := append([]models.Invoice(nil), s.invoices...)
	var stored models.Invoice
	if i := indexByNumber(next, inv.NumberInvoice, ""); i >= 0 {
		stored = Merge(next[i], inv)
		next[i] = stored
		s.log.Info().Str("number", inv.NumberInvoice).Str("id", stored.ID).Msg("Merged invoice into existing record")
	} else {
		if inv.ID == "" || indexByID(next, inv.ID) >= 0 {
			inv.ID = s.newID()
		}
		if inv.StatusInvoice == "" {
			inv.StatusInvoice = models.InvoicePending
		}
		stored = inv
		next = append(next, stored)
		s.log.Info().Str("number", inv.NumberInvoice).Str("id", stored.ID).Msg("Added invoice")
	}

	if err := s.commit(ctx, next); err != nil {
		return models.Invoice{}, fmt.Errorf("%s: %w", op, err)
	}
	return stored, nil
}

// UpdateInvoice replaces the invoice with id by updated. If another invoice
// already carries updated's number, updated is merged into that one and the
// invoice with id is removed. It reports false when id is unknown.
func (s *Store) UpdateInvoice(ctx context.Context, id string, updated models.Invoice) (models.Invoice, bool, error) {
	const op = "UpdateInvoice"

	if err := validate.Invoice(updated); err != nil {
		return models.Invoice{}, false, err
	}
	updated.NumberInvoice = strings.TrimSpace(updated.NumberInvoice)

	s.mu.Lock()
	defer s.mu.Unlock()

	self := indexByID(s.invoices, id)
	if self < 0 {
		return models.Invoice{}, false, nil
	}

	var next []models.Invoice
	var stored models.Invoice
	if j := indexByNumber(s.invoices, updated.NumberInvoice, id); j >= 0 {
		stored = Merge(s.invoices[j], updated)
		for _, inv := range s.invoices {
			if inv.ID != id && inv.ID != stored.ID {
				next = append(next, inv)
			}
		}
		next = append(next, stored)
		s.log.Info().Str("number", updated.NumberInvoice).Str("removed_id", id).Str("id", stored.ID).Msg("Merged updated invoice into existing record")
	} else {
		updated.ID = id
		stored = updated
		next = append([]models.Invoice(nil), s.invoices...)
		next[self] = stored
	}

	if err := s.commit(ctx, next); err != nil {
		return models.Invoice{}, true, fmt.Errorf("%s: %w", op, err)
	}
	return stored, true, nil
}

// DeleteInvoice removes the invoice with id. It reports false when id is
// unknown.
func (s *Store) DeleteInvoice(ctx context.Context, id string) (bool, error) {
	const op = "DeleteInvoice"

	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexByID(s.invoices, id)
	if i < 0 {
		return false, nil
	}
	next := append(append([]models.Invoice(nil), s.invoices[:i]...), s.invoices[i+1:]...)
	if err := s.commit(ctx, next); err != nil {
		return true, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info().Str("id", id).Msg("Deleted invoice")
	return true, nil
}

// SetInvoices bulk-loads rows. Rows sharing a number are collapsed first,
// then merged into or replace the stored collection depending on mode.
// Rows without a number are skipped.
func (s *Store) SetInvoices(ctx context.Context, rows []models.Invoice, mode ImportMode) (ImportResult, error) {
	const op = "SetInvoices"

	var result ImportResult
	valid := make([]models.Invoice, 0, len(rows))
	for _, row := range rows {
		row.NumberInvoice = strings.TrimSpace(row.NumberInvoice)
		if err := validate.Invoice(row); err != nil {
			result.Skipped++
			continue
		}
		s.warnInvalidPhones(row)
		valid = append(valid, row)
	}
	collapsed := Collapse(valid)

	s.mu.Lock()
	defer s.mu.Unlock()

	var next []models.Invoice
	if mode == ImportMerge {
		next = append(next, s.invoices...)
	}
	for _, row := range collapsed {
		if i := indexByNumber(next, row.NumberInvoice, ""); i >= 0 {
			next[i] = Merge(next[i], row)
			result.Merged++
			continue
		}
		if row.ID == "" || indexByID(next, row.ID) >= 0 {
			row.ID = s.newID()
		}
		next = append(next, row)
		result.Added++
	}
	result.Total = len(next)

	if err := s.commit(ctx, next); err != nil {
		return ImportResult{}, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info().
		Int("added", result.Added).
		Int("merged", result.Merged).
		Int("skipped", result.Skipped).
		Int("total", result.Total).
		Msg("Imported invoices")
	return result, nil
}

func (s *Store) warnInvalidPhones(inv models.Invoice) {
	for _, phone := range InvalidPhones(inv, s.region) {
		s.log.Warn().Str("number", inv.NumberInvoice).Str("phone", phone).Msg("Phone number is not valid for region")
	}
}

// commit persists next and only then publishes it. Callers hold s.mu.
func (s *Store) commit(ctx context.Context, next []models.Invoice) error {
	if err := s.p.SaveInvoices(ctx, next); err != nil {
		s.log.Error().Err(err).Msg("Failed to save invoices")
		return err
	}
	s.invoices = next
	return nil
}

func indexByID(invoices []models.Invoice, id string) int {
	for i, inv := range invoices {
		if inv.ID == id {
			return i
		}
	}
	return -1
}

// indexByNumber finds the invoice carrying number, ignoring the one with
// id skip.
func indexByNumber(invoices []models.Invoice, number, skip string) int {
	for i, inv := range invoices {
		if inv.NumberInvoice == number && (skip == "" || inv.ID != skip) {
			return i
		}
	}
	return -1
}
