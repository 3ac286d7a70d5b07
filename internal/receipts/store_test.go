package receipts

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"crm/internal/storage"
	"crm/internal/storage/memory"
	"crm/internal/validate"
	"crm/pkg/models"
)

var fixedNow = time.Date(2024, 5, 14, 9, 0, 0, 0, time.UTC)

func newStore(t *testing.T) (*Store, *memory.Store) {
	t.Helper()
	backend := memory.New()
	if err := backend.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	n := 0
	s := New(backend,
		WithIDGenerator(func() string { n++; return fmt.Sprintf("r-%d", n) }),
		WithClock(func() time.Time { return fixedNow }),
	)
	return s, backend
}

func receipt(bank string, amount int64) models.Receipt {
	return models.Receipt{Bank: bank, ReceiptAmount: decimal.NewFromInt(amount), InvoiceNumber: "INV-1"}
}

func TestAddReceiptDefaults(t *testing.T) {
	s, backend := newStore(t)
	r, err := s.AddReceipt(context.Background(), receipt("Maybank", 100))
	if err != nil {
		t.Fatalf("AddReceipt: %v", err)
	}
	if r.ID != "r-1" || r.Status != models.ReceiptNew || !r.CreatedAt.Equal(fixedNow) {
		t.Fatalf("unexpected defaults: %+v", r)
	}
	got, _ := backend.LoadReceipts(context.Background())
	if len(got) != 1 {
		t.Fatalf("receipt not persisted")
	}
}

func TestAddReceiptValidation(t *testing.T) {
	s, _ := newStore(t)
	for _, r := range []models.Receipt{receipt("", 100), receipt("Maybank", 0)} {
		if _, err := s.AddReceipt(context.Background(), r); !validate.IsValidation(err) {
			t.Fatalf("expected validation error for %+v, got %v", r, err)
		}
	}
	if len(s.List()) != 0 {
		t.Fatalf("invalid receipts must not be stored")
	}
}

func TestUpdateStatusAndDelete(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	r, _ := s.AddReceipt(ctx, receipt("Maybank", 100))

	found, err := s.UpdateStatus(ctx, r.ID, models.ReceiptReconciled)
	if err != nil || !found {
		t.Fatalf("UpdateStatus: %v %v", found, err)
	}
	got, _ := s.Get(r.ID)
	if !got.Reconciled() {
		t.Fatalf("expected reconciled receipt, got %+v", got)
	}
	if found, _ := s.UpdateStatus(ctx, "missing", models.ReceiptOnHold); found {
		t.Fatalf("unknown id must report not found")
	}

	found, err = s.DeleteReceipt(ctx, r.ID)
	if err != nil || !found || len(s.List()) != 0 {
		t.Fatalf("DeleteReceipt: %v %v %d", found, err, len(s.List()))
	}
}

func TestUpdateReceiptKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	r, _ := s.AddReceipt(ctx, receipt("Maybank", 100))

	changed := receipt("CIMB Bank", 120)
	found, err := s.UpdateReceipt(ctx, r.ID, changed)
	if err != nil || !found {
		t.Fatalf("UpdateReceipt: %v %v", found, err)
	}
	got, _ := s.Get(r.ID)
	if got.Bank != "CIMB Bank" || !got.CreatedAt.Equal(fixedNow) || got.Status != models.ReceiptNew {
		t.Fatalf("unexpected update: %+v", got)
	}
}

func TestPersistFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	s, backend := newStore(t)
	r, _ := s.AddReceipt(ctx, receipt("Maybank", 100))
	backend.FailOn(storage.Receipts, errors.New("offline"))

	if _, err := s.UpdateStatus(ctx, r.ID, models.ReceiptReconciled); err == nil {
		t.Fatalf("expected error")
	}
	if got, _ := s.Get(r.ID); got.Status != models.ReceiptNew {
		t.Fatalf("state changed after failed save: %+v", got)
	}
	if _, err := s.AddReceipt(ctx, receipt("Maybank", 5)); err == nil || len(s.List()) != 1 {
		t.Fatalf("expected failed add to leave one receipt")
	}
}

func TestNewFromInvoiceAndForInvoice(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	inv := models.Invoice{NumberInvoice: "INV-7", ClientName: "Tan", DebtCollectorName: "Aina", Salesperson: "Raj", PhoneNumber: "0123"}
	r := NewFromInvoice(inv)
	if r.InvoiceNumber != "INV-7" || r.DebtCollectorName != "Aina" || r.Salesperson != "Raj" || r.Status != models.ReceiptNew {
		t.Fatalf("unexpected prefill: %+v", r)
	}
	r.Bank = "Maybank"
	r.ReceiptAmount = decimal.NewFromInt(50)
	_, _ = s.AddReceipt(ctx, r)
	_, _ = s.AddReceipt(ctx, receipt("CIMB Bank", 10))

	if got := s.ForInvoice("INV-7"); len(got) != 1 {
		t.Fatalf("expected one receipt for INV-7, got %d", len(got))
	}
}
