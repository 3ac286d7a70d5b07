package memory

import (
	"context"
	"errors"
	"testing"

	"crm/internal/storage"
	"crm/internal/storage/storagetest"
	"crm/pkg/models"
)

func TestBackend(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Backend { return New() })
}

func TestFailOnKeepsPreviousContents(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := s.SaveInvoices(ctx, []models.Invoice{{ID: "a", NumberInvoice: "INV-1"}}); err != nil {
		t.Fatalf("SaveInvoices: %v", err)
	}
	boom := errors.New("disk full")
	s.FailOn(storage.Invoices, boom)
	err := s.SaveInvoices(ctx, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	s.FailOn(storage.Invoices, nil)
	got, err := s.LoadInvoices(ctx)
	if err != nil || len(got) != 1 {
		t.Fatalf("expected previous contents, got %+v %v", got, err)
	}
}

func TestLoadReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.Connect(ctx)
	_ = s.SaveInvoices(ctx, []models.Invoice{{ID: "a", NumberInvoice: "INV-1"}})
	got, _ := s.LoadInvoices(ctx)
	got[0].NumberInvoice = "changed"
	again, _ := s.LoadInvoices(ctx)
	if again[0].NumberInvoice != "INV-1" {
		t.Fatalf("store shared memory with caller")
	}
}
