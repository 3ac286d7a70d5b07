// Package storagetest holds the behaviour every storage backend must share.
package storagetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"crm/internal/storage"
	"crm/pkg/models"
)

// Run exercises a fresh backend returned by open. The backend must not be
// connected yet.
func Run(t *testing.T, open func(t *testing.T) storage.Backend) {
	t.Helper()
	t.Run("UseBeforeConnect", func(t *testing.T) { testUseBeforeConnect(t, open(t)) })
	t.Run("EmptyCollections", func(t *testing.T) { testEmpty(t, open(t)) })
	t.Run("ConcurrentConnect", func(t *testing.T) { testConcurrentConnect(t, open(t)) })
	t.Run("ReplaceInvoices", func(t *testing.T) { testReplaceInvoices(t, open(t)) })
	t.Run("ReceiptsAndConversations", func(t *testing.T) { testReceiptsAndConversations(t, open(t)) })
	t.Run("Settings", func(t *testing.T) { testSettings(t, open(t)) })
	t.Run("Closed", func(t *testing.T) { testClosed(t, open(t)) })
}

func connect(t *testing.T, b storage.Backend) context.Context {
	t.Helper()
	ctx := context.Background()
	if err := b.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return ctx
}

func testUseBeforeConnect(t *testing.T, b storage.Backend) {
	_, err := b.LoadInvoices(context.Background())
	if !errors.Is(err, storage.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	var se *storage.StorageError
	if !errors.As(err, &se) || se.Collection != storage.Invoices {
		t.Fatalf("expected StorageError for invoices, got %#v", err)
	}
}

func testEmpty(t *testing.T, b storage.Backend) {
	ctx := connect(t, b)
	invoices, err := b.LoadInvoices(ctx)
	if err != nil || len(invoices) != 0 {
		t.Fatalf("LoadInvoices: %v %v", invoices, err)
	}
	receipts, err := b.LoadReceipts(ctx)
	if err != nil || len(receipts) != 0 {
		t.Fatalf("LoadReceipts: %v %v", receipts, err)
	}
	conversations, err := b.LoadConversations(ctx)
	if err != nil || len(conversations) != 0 {
		t.Fatalf("LoadConversations: %v %v", conversations, err)
	}
	settings, err := b.LoadSettings(ctx)
	if err != nil || settings != nil {
		t.Fatalf("LoadSettings: %v %v", settings, err)
	}
}

func testConcurrentConnect(t *testing.T, b storage.Backend) {
	t.Cleanup(func() { _ = b.Close() })
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- b.Connect(context.Background())
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Connect: %v", err)
		}
	}
	if err := b.SaveInvoices(context.Background(), []models.Invoice{{ID: "a", NumberInvoice: "INV-1"}}); err != nil {
		t.Fatalf("SaveInvoices after concurrent connect: %v", err)
	}
}

func testReplaceInvoices(t *testing.T, b storage.Backend) {
	ctx := connect(t, b)
	ptp := decimal.RequireFromString("50.25")
	first := []models.Invoice{
		{ID: "a", NumberInvoice: "INV-1", AmountDue: models.Ptr(decimal.RequireFromString("100.10")), PTPAmount: &ptp},
		{ID: "b", NumberInvoice: "INV-2", TotalBoxes: models.Ptr(3)},
		{ID: "c", NumberInvoice: "INV-3"},
	}
	if err := b.SaveInvoices(ctx, first); err != nil {
		t.Fatalf("SaveInvoices: %v", err)
	}
	if err := b.SaveInvoices(ctx, first[1:]); err != nil {
		t.Fatalf("SaveInvoices: %v", err)
	}
	got, err := b.LoadInvoices(ctx)
	if err != nil {
		t.Fatalf("LoadInvoices: %v", err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "c" {
		t.Fatalf("expected exactly [b c] in order, got %+v", got)
	}
	if got[0].Boxes() != 3 || got[1].TotalBoxes != nil {
		t.Fatalf("expected boxes to round trip, got %+v", got)
	}

	if err := b.SaveInvoices(ctx, first[:1]); err != nil {
		t.Fatalf("SaveInvoices: %v", err)
	}
	got, _ = b.LoadInvoices(ctx)
	if len(got) != 1 || !got[0].Amount().Equal(decimal.RequireFromString("100.1")) {
		t.Fatalf("unexpected invoices: %+v", got)
	}
	if got[0].PTPAmount == nil || !got[0].PTPAmount.Equal(ptp) {
		t.Fatalf("expected ptp amount to round trip, got %v", got[0].PTPAmount)
	}
}

func testReceiptsAndConversations(t *testing.T, b storage.Backend) {
	ctx := connect(t, b)
	created := time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)
	receipts := []models.Receipt{
		{ID: "r1", InvoiceNumber: "INV-1", Bank: "Maybank", ReceiptAmount: decimal.NewFromInt(10), Status: models.ReceiptNew, CreatedAt: created},
		{ID: "r2", InvoiceNumber: "INV-1", Bank: "CIMB Bank", ReceiptAmount: decimal.NewFromInt(20), Status: models.ReceiptReconciled, CreatedAt: created},
	}
	if err := b.SaveReceipts(ctx, receipts); err != nil {
		t.Fatalf("SaveReceipts: %v", err)
	}
	got, err := b.LoadReceipts(ctx)
	if err != nil || len(got) != 2 {
		t.Fatalf("LoadReceipts: %v %v", got, err)
	}
	if !got[1].CreatedAt.Equal(created) || got[1].Status != models.ReceiptReconciled {
		t.Fatalf("unexpected receipt: %+v", got[1])
	}

	conversations := []models.Conversation{{
		ID:        "c1",
		ReceiptID: "r1",
		Messages:  []models.Message{{ID: "m1", Content: "paid via transfer", Sender: "amir", Timestamp: created}},
	}}
	if err := b.SaveConversations(ctx, conversations); err != nil {
		t.Fatalf("SaveConversations: %v", err)
	}
	gotConv, err := b.LoadConversations(ctx)
	if err != nil || len(gotConv) != 1 || len(gotConv[0].Messages) != 1 {
		t.Fatalf("LoadConversations: %+v %v", gotConv, err)
	}

	dup := append(conversations, models.Conversation{ID: "c2", ReceiptID: "r1"})
	if err := b.SaveConversations(ctx, dup); err == nil {
		t.Logf("backend accepted duplicate receipt conversation")
	} else {
		gotConv, _ = b.LoadConversations(ctx)
		if len(gotConv) != 1 {
			t.Fatalf("failed save must keep previous contents, got %+v", gotConv)
		}
	}
}

func testSettings(t *testing.T, b storage.Backend) {
	ctx := connect(t, b)
	s := models.Settings{
		Banks:      []models.SettingsOption{{ID: "1", Value: "Maybank", IsActive: true}},
		KPITargets: []models.KPITarget{{ID: "t", Type: models.TargetCompany, DailyTarget: decimal.NewFromInt(1000)}},
	}
	if err := b.SaveSettings(ctx, s); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	s.Banks = append(s.Banks, models.SettingsOption{ID: "2", Value: "CIMB Bank"})
	if err := b.SaveSettings(ctx, s); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	got, err := b.LoadSettings(ctx)
	if err != nil || got == nil {
		t.Fatalf("LoadSettings: %v %v", got, err)
	}
	if len(got.Banks) != 2 || len(got.KPITargets) != 1 || !got.KPITargets[0].DailyTarget.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("unexpected settings: %+v", got)
	}
}

func testClosed(t *testing.T, b storage.Backend) {
	ctx := connect(t, b)
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := b.SaveReceipts(ctx, nil); !errors.Is(err, storage.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := b.Connect(ctx); !errors.Is(err, storage.ErrClosed) {
		t.Fatalf("expected ErrClosed on reconnect, got %v", err)
	}
}
