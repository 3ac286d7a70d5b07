package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"crm/internal/config"
	"crm/internal/storage"
	"crm/internal/storage/memory"
	"crm/pkg/models"
)

func memoryConfig() *config.Config {
	cfg := config.Default()
	cfg.Backend = config.BackendMemory
	return cfg
}

func TestOpenBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Backend = "mongo"
	if _, err := OpenBackend(cfg); !errors.Is(err, storage.ErrUnsupportedBackend) {
		t.Fatalf("err = %v, want ErrUnsupportedBackend", err)
	}

	for _, name := range []string{config.BackendSQLite, config.BackendPostgres, config.BackendMemory} {
		cfg.Backend = name
		if b, err := OpenBackend(cfg); err != nil || b == nil {
			t.Errorf("OpenBackend(%s) = %v, %v", name, b, err)
		}
	}
}

func TestOpenSQLitePersistsAcrossRuns(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.SQLitePath = filepath.Join(t.TempDir(), "crm.sqlite")

	a, err := Open(ctx, cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := a.Invoices.AddInvoice(ctx, models.Invoice{NumberInvoice: "INV-1", AmountDue: models.Ptr(decimal.NewFromInt(50))}); err != nil {
		t.Fatalf("AddInvoice: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	b, err := Open(ctx, cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer b.Close()
	if _, ok := b.Invoices.FindByNumber("INV-1"); !ok {
		t.Error("invoice not persisted")
	}
	if len(b.Settings.ActiveValues(models.CategoryBanks)) == 0 {
		t.Error("default banks missing")
	}
}

func TestLoadKeepsSettingsDefaultsOnFailure(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	if err := backend.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	boom := errors.New("boom")
	backend.FailOn(storage.Invoices, boom)

	a := New(memoryConfig(), backend)
	if err := a.Load(ctx); !errors.Is(err, boom) {
		t.Fatalf("Load err = %v, want boom", err)
	}
	if got := a.Settings.ActiveValues(models.CategoryStatuses); len(got) != 4 {
		t.Errorf("statuses = %v, want defaults", got)
	}
}

func TestBalance(t *testing.T) {
	ctx := context.Background()
	a, err := Open(ctx, memoryConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer a.Close()

	inv, err := a.Invoices.AddInvoice(ctx, models.Invoice{NumberInvoice: "INV-9", AmountDue: models.Ptr(decimal.NewFromInt(100))})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range []models.Receipt{
		{InvoiceNumber: "INV-9", Bank: "CIMB Bank", ReceiptAmount: decimal.NewFromInt(30), Status: models.ReceiptReconciled},
		{InvoiceNumber: "INV-9", Bank: "CIMB Bank", ReceiptAmount: decimal.NewFromInt(20), Status: models.ReceiptNew},
		{InvoiceNumber: "INV-8", Bank: "CIMB Bank", ReceiptAmount: decimal.NewFromInt(70), Status: models.ReceiptReconciled},
	} {
		if _, err := a.Receipts.AddReceipt(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	bal := a.Balance(inv)
	if !bal.Received.Equal(decimal.NewFromInt(30)) || !bal.Remaining.Equal(decimal.NewFromInt(70)) {
		t.Errorf("balance = %+v", bal)
	}
	if len(bal.Receipts) != 2 {
		t.Errorf("receipts = %d, want 2", len(bal.Receipts))
	}
}
