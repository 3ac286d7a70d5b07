package invoices

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"crm/internal/storage"
	"crm/internal/storage/memory"
	"crm/internal/validate"
	"crm/pkg/models"
)

func newStore(t *testing.T) (*Store, *memory.Store) {
	t.Helper()
	backend := memory.New()
	if err := backend.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	n := 0
	s := New(backend, WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}))
	return s, backend
}

func persisted(t *testing.T, backend *memory.Store) []models.Invoice {
	t.Helper()
	got, err := backend.LoadInvoices(context.Background())
	if err != nil {
		t.Fatalf("LoadInvoices: %v", err)
	}
	return got
}

func TestAddInvoiceNew(t *testing.T) {
	ctx := context.Background()
	s, backend := newStore(t)

	stored, err := s.AddInvoice(ctx, models.Invoice{NumberInvoice: " INV-1 ", ClientName: "Tan"})
	if err != nil {
		t.Fatalf("AddInvoice: %v", err)
	}
	if stored.ID != "id-1" || stored.NumberInvoice != "INV-1" || stored.StatusInvoice != models.InvoicePending {
		t.Fatalf("unexpected stored invoice: %+v", stored)
	}
	if got := persisted(t, backend); len(got) != 1 || got[0].ClientName != "Tan" {
		t.Fatalf("invoice not persisted: %+v", got)
	}
}

func TestAddInvoiceMergesByNumber(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	first, _ := s.AddInvoice(ctx, models.Invoice{
		NumberInvoice: "INV-1",
		ClientName:    "Tan",
		PhoneNumber:   "0123456789",
		AmountDue:     models.Ptr(decimal.NewFromInt(500)),
	})
	_, _ = s.AddInvoice(ctx, models.Invoice{NumberInvoice: "INV-2"})

	merged, err := s.AddInvoice(ctx, models.Invoice{
		ID:            "ignored",
		NumberInvoice: "INV-1",
		City:          "Ipoh",
		AmountDue:     models.Ptr(decimal.NewFromInt(450)),
	})
	if err != nil {
		t.Fatalf("AddInvoice: %v", err)
	}
	if merged.ID != first.ID {
		t.Fatalf("expected id %s to be kept, got %s", first.ID, merged.ID)
	}
	if merged.ClientName != "Tan" || merged.PhoneNumber != "0123456789" || merged.City != "Ipoh" {
		t.Fatalf("unexpected merge: %+v", merged)
	}
	if !merged.Amount().Equal(decimal.NewFromInt(450)) {
		t.Fatalf("expected amount override, got %s", merged.Amount())
	}
	list := s.List()
	if len(list) != 2 || list[0].ID != first.ID {
		t.Fatalf("merge must keep position and count: %+v", list)
	}
}

func TestAddInvoiceKeepsUnsuppliedFields(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	_, err := s.AddInvoice(ctx, models.Invoice{
		NumberInvoice: "INV-1",
		StatusInvoice: models.InvoicePaid,
		PhoneNumber:   "123",
		AmountDue:     models.Ptr(decimal.NewFromInt(1250)),
		TotalBoxes:    models.Ptr(4),
		PTP:           models.Ptr(true),
	})
	if err != nil {
		t.Fatalf("AddInvoice: %v", err)
	}

	merged, err := s.AddInvoice(ctx, models.Invoice{NumberInvoice: "INV-1", City: "KL"})
	if err != nil {
		t.Fatalf("AddInvoice: %v", err)
	}
	if merged.StatusInvoice != models.InvoicePaid || merged.PhoneNumber != "123" || merged.City != "KL" {
		t.Fatalf("partial add changed stored fields: %+v", merged)
	}
	if !merged.Amount().Equal(decimal.NewFromInt(1250)) || merged.Boxes() != 4 || !merged.PromisedToPay() {
		t.Fatalf("partial add reset amount %s boxes %d ptp %v", merged.Amount(), merged.Boxes(), merged.PromisedToPay())
	}

	cleared, err := s.AddInvoice(ctx, models.Invoice{
		NumberInvoice: "INV-1",
		AmountDue:     models.Ptr(decimal.Zero),
		TotalBoxes:    models.Ptr(0),
		PTP:           models.Ptr(false),
	})
	if err != nil {
		t.Fatalf("AddInvoice: %v", err)
	}
	if !cleared.Amount().IsZero() || cleared.Boxes() != 0 || cleared.PromisedToPay() || cleared.City != "KL" {
		t.Fatalf("explicit zero values must be applied: %+v", cleared)
	}
}

func TestAddInvoiceIdempotent(t *testing.T) {
	ctx := context.Background()
	s, backend := newStore(t)
	inv := models.Invoice{
		NumberInvoice: "INV-1",
		StatusInvoice: models.InvoiceOverdue,
		ClientName:    "Tan",
		AmountDue:     models.Ptr(decimal.RequireFromString("99.90")),
		TotalBoxes:    models.Ptr(2),
	}
	first, err := s.AddInvoice(ctx, inv)
	if err != nil {
		t.Fatalf("AddInvoice: %v", err)
	}
	second, err := s.AddInvoice(ctx, inv)
	if err != nil {
		t.Fatalf("AddInvoice: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("adding the same invoice twice changed it:\n%+v\n%+v", first, second)
	}
	if got := persisted(t, backend); len(got) != 1 {
		t.Fatalf("expected one record, got %+v", got)
	}
}

func TestAddInvoiceDuplicateIDGetsFreshID(t *testing.T) {
	ctx := context.Background()
	s, backend := newStore(t)
	a, _ := s.AddInvoice(ctx, models.Invoice{NumberInvoice: "INV-1"})

	b, err := s.AddInvoice(ctx, models.Invoice{ID: a.ID, NumberInvoice: "INV-2"})
	if err != nil {
		t.Fatalf("AddInvoice: %v", err)
	}
	if b.ID == a.ID || b.ID == "" {
		t.Fatalf("expected a fresh id, got %q", b.ID)
	}
	c, _ := s.AddInvoice(ctx, models.Invoice{ID: "own", NumberInvoice: "INV-3"})
	if c.ID != "own" {
		t.Fatalf("unused caller id must be kept, got %q", c.ID)
	}
	got := persisted(t, backend)
	if len(got) != 3 || got[0].ID == got[1].ID {
		t.Fatalf("ids must stay unique: %+v", got)
	}
}

func TestAddInvoiceValidation(t *testing.T) {
	s, backend := newStore(t)
	backend.FailOn(storage.Invoices, errors.New("must not be reached"))

	_, err := s.AddInvoice(context.Background(), models.Invoice{ClientName: "Tan"})
	if !validate.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAddInvoicePersistFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	s, backend := newStore(t)
	_, _ = s.AddInvoice(ctx, models.Invoice{NumberInvoice: "INV-1", ClientName: "Tan"})

	boom := errors.New("quota exceeded")
	backend.FailOn(storage.Invoices, boom)
	_, err := s.AddInvoice(ctx, models.Invoice{NumberInvoice: "INV-1", ClientName: "Lim"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	var se *storage.StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StorageError in chain, got %T", err)
	}
	if inv, _ := s.FindByNumber("INV-1"); inv.ClientName != "Tan" {
		t.Fatalf("in-memory state changed after failed save: %+v", inv)
	}
}

func TestUpdateInvoiceReplaces(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	inv, _ := s.AddInvoice(ctx, models.Invoice{NumberInvoice: "INV-1", ClientName: "Tan", City: "Ipoh"})

	updated, found, err := s.UpdateInvoice(ctx, inv.ID, models.Invoice{NumberInvoice: "INV-1A", ClientName: "Tan"})
	if err != nil || !found {
		t.Fatalf("UpdateInvoice: %v %v", found, err)
	}
	if updated.ID != inv.ID || updated.City != "" || updated.NumberInvoice != "INV-1A" {
		t.Fatalf("expected full replacement, got %+v", updated)
	}
}

func TestUpdateInvoiceMergesIntoConflict(t *testing.T) {
	ctx := context.Background()
	s, backend := newStore(t)
	a, _ := s.AddInvoice(ctx, models.Invoice{NumberInvoice: "INV-1", ClientName: "Tan"})
	b, _ := s.AddInvoice(ctx, models.Invoice{NumberInvoice: "INV-2", City: "Ipoh"})
	c, _ := s.AddInvoice(ctx, models.Invoice{NumberInvoice: "INV-3"})

	merged, found, err := s.UpdateInvoice(ctx, b.ID, models.Invoice{NumberInvoice: "INV-1", City: "Ipoh"})
	if err != nil || !found {
		t.Fatalf("UpdateInvoice: %v %v", found, err)
	}
	if merged.ID != a.ID || merged.ClientName != "Tan" || merged.City != "Ipoh" {
		t.Fatalf("unexpected merged record: %+v", merged)
	}
	got := persisted(t, backend)
	if len(got) != 2 || got[0].ID != c.ID || got[1].ID != a.ID {
		t.Fatalf("expected [c a], got %+v", got)
	}
	if _, ok := s.Get(b.ID); ok {
		t.Fatalf("updated record must be removed")
	}
}

func TestUpdateInvoiceOwnNumberIsNotConflict(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	a, _ := s.AddInvoice(ctx, models.Invoice{NumberInvoice: "INV-1", ClientName: "Tan"})

	updated, _, err := s.UpdateInvoice(ctx, a.ID, models.Invoice{NumberInvoice: "INV-1", ClientName: "Lim"})
	if err != nil {
		t.Fatalf("UpdateInvoice: %v", err)
	}
	if updated.ID != a.ID || updated.ClientName != "Lim" || len(s.List()) != 1 {
		t.Fatalf("unexpected update: %+v", s.List())
	}
}

func TestUpdateAndDeleteUnknownID(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	_, _ = s.AddInvoice(ctx, models.Invoice{NumberInvoice: "INV-1"})

	if _, found, err := s.UpdateInvoice(ctx, "missing", models.Invoice{NumberInvoice: "INV-1"}); found || err != nil {
		t.Fatalf("expected not found, got %v %v", found, err)
	}
	if found, err := s.DeleteInvoice(ctx, "missing"); found || err != nil {
		t.Fatalf("expected not found, got %v %v", found, err)
	}
	if len(s.List()) != 1 {
		t.Fatalf("collection changed")
	}
}

func TestDeleteInvoice(t *testing.T) {
	ctx := context.Background()
	s, backend := newStore(t)
	a, _ := s.AddInvoice(ctx, models.Invoice{NumberInvoice: "INV-1"})
	_, _ = s.AddInvoice(ctx, models.Invoice{NumberInvoice: "INV-2"})

	found, err := s.DeleteInvoice(ctx, a.ID)
	if err != nil || !found {
		t.Fatalf("DeleteInvoice: %v %v", found, err)
	}
	if got := persisted(t, backend); len(got) != 1 || got[0].NumberInvoice != "INV-2" {
		t.Fatalf("unexpected persisted invoices: %+v", got)
	}
}

func TestSetInvoicesMerge(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	existing, _ := s.AddInvoice(ctx, models.Invoice{NumberInvoice: "INV-1", ClientName: "Tan"})

	result, err := s.SetInvoices(ctx, []models.Invoice{
		{NumberInvoice: "INV-1", City: "Ipoh"},
		{NumberInvoice: "INV-2", ClientName: "Lim"},
		{NumberInvoice: "INV-2", Branch: "KL"},
		{NumberInvoice: ""},
	}, ImportMerge)
	if err != nil {
		t.Fatalf("SetInvoices: %v", err)
	}
	if result.Added != 1 || result.Merged != 1 || result.Skipped != 1 || result.Total != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	inv, _ := s.FindByNumber("INV-1")
	if inv.ID != existing.ID || inv.ClientName != "Tan" || inv.City != "Ipoh" {
		t.Fatalf("unexpected merged invoice: %+v", inv)
	}
	inv2, _ := s.FindByNumber("INV-2")
	if inv2.ClientName != "Lim" || inv2.Branch != "KL" || inv2.ID == "" {
		t.Fatalf("rows were not collapsed: %+v", inv2)
	}
}

func TestSetInvoicesMergeRules(t *testing.T) {
	amount := func(v int64) *decimal.Decimal { return models.Ptr(decimal.NewFromInt(v)) }
	tests := []struct {
		name       string
		seed       []models.Invoice
		rows       []models.Invoice
		wantAmount string
		wantPhone  string
		wantCity   string
	}{
		{
			name:       "same rows imported twice",
			seed:       []models.Invoice{{NumberInvoice: "A", AmountDue: amount(100), PhoneNumber: "555", City: "Ipoh"}},
			rows:       []models.Invoice{{NumberInvoice: "A", AmountDue: amount(100), PhoneNumber: "555", City: "Ipoh"}},
			wantAmount: "100",
			wantPhone:  "555",
			wantCity:   "Ipoh",
		},
		{
			name: "rows sharing a number collapse",
			rows: []models.Invoice{
				{NumberInvoice: "A", AmountDue: amount(100)},
				{NumberInvoice: "A", AmountDue: amount(200), PhoneNumber: "555"},
			},
			wantAmount: "200",
			wantPhone:  "555",
		},
		{
			name: "later row wins on conflict",
			rows: []models.Invoice{
				{NumberInvoice: "A", City: "Ipoh", PhoneNumber: "555"},
				{NumberInvoice: "A", City: "KL"},
			},
			wantAmount: "0",
			wantPhone:  "555",
			wantCity:   "KL",
		},
		{
			name:       "import keeps stored fields the row leaves out",
			seed:       []models.Invoice{{NumberInvoice: "A", AmountDue: amount(100), PhoneNumber: "555"}},
			rows:       []models.Invoice{{NumberInvoice: "A", City: "KL"}},
			wantAmount: "100",
			wantPhone:  "555",
			wantCity:   "KL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s, backend := newStore(t)
			if len(tt.seed) > 0 {
				if _, err := s.SetInvoices(ctx, tt.seed, ImportMerge); err != nil {
					t.Fatalf("seed: %v", err)
				}
			}
			if _, err := s.SetInvoices(ctx, tt.rows, ImportMerge); err != nil {
				t.Fatalf("SetInvoices: %v", err)
			}
			got := persisted(t, backend)
			if len(got) != 1 {
				t.Fatalf("expected one invoice, got %+v", got)
			}
			inv := got[0]
			if !inv.Amount().Equal(decimal.RequireFromString(tt.wantAmount)) {
				t.Errorf("amount = %s, want %s", inv.Amount(), tt.wantAmount)
			}
			if inv.PhoneNumber != tt.wantPhone || inv.City != tt.wantCity {
				t.Errorf("phone = %q city = %q, want %q %q", inv.PhoneNumber, inv.City, tt.wantPhone, tt.wantCity)
			}
		})
	}
}

func TestSetInvoicesReplace(t *testing.T) {
	ctx := context.Background()
	s, backend := newStore(t)
	_, _ = s.AddInvoice(ctx, models.Invoice{NumberInvoice: "INV-1"})

	result, err := s.SetInvoices(ctx, []models.Invoice{{ID: "x", NumberInvoice: "INV-9"}}, ImportReplace)
	if err != nil {
		t.Fatalf("SetInvoices: %v", err)
	}
	if result.Total != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if got := persisted(t, backend); len(got) != 1 || got[0].ID != "x" {
		t.Fatalf("expected replaced collection, got %+v", got)
	}
}

func TestLoadFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	s, backend := newStore(t)
	_, _ = s.AddInvoice(ctx, models.Invoice{NumberInvoice: "INV-1"})
	backend.FailOn(storage.Invoices, errors.New("corrupt"))
	if err := s.Load(ctx); err == nil {
		t.Fatalf("expected load error")
	}
	if len(s.List()) != 1 {
		t.Fatalf("state lost after failed load")
	}
}

func TestFindByPhoneAndSearch(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	_, _ = s.AddInvoice(ctx, models.Invoice{NumberInvoice: "INV-1", ClientName: "Tan Ah Kow", PhoneNumber: "012-345 6789"})
	_, _ = s.AddInvoice(ctx, models.Invoice{NumberInvoice: "INV-2", ClientName: "Lim", PhoneNumber2: "+60 12-345 6789"})
	_, _ = s.AddInvoice(ctx, models.Invoice{NumberInvoice: "INV-3", ClientName: "Wong", PhoneNumber: "0198765432"})

	if got := s.FindByPhone("+60123456789"); len(got) != 2 {
		t.Fatalf("expected 2 invoices for phone, got %+v", got)
	}
	if got := s.Search("ah kow"); len(got) != 1 || got[0].NumberInvoice != "INV-1" {
		t.Fatalf("unexpected search result: %+v", got)
	}
	if got := s.Search(""); len(got) != 3 {
		t.Fatalf("empty search must return all, got %d", len(got))
	}
}
