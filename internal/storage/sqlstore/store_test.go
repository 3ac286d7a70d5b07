package sqlstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"crm/internal/storage"
	"crm/internal/storage/storagetest"
	"crm/pkg/models"
)

func TestSQLiteBackend(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Backend {
		return NewSQLite(filepath.Join(t.TempDir(), "crm.sqlite"))
	})
}

func TestPostgresBackend(t *testing.T) {
	dsn := os.Getenv("CRM_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skipf("CRM_TEST_POSTGRES_DSN not set")
	}
	storagetest.Run(t, func(t *testing.T) storage.Backend {
		wipe(t, dsn)
		return NewPostgres(dsn)
	})
}

func wipe(t *testing.T, dsn string) {
	t.Helper()
	s := NewPostgres(dsn)
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer s.Close()
	db, _ := s.handle()
	for _, table := range []string{"invoices", "receipts", "conversations", "settings"} {
		if _, err := db.Exec(`DELETE FROM ` + table); err != nil {
			t.Fatalf("wipe %s: %v", table, err)
		}
	}
}

func TestSQLiteDuplicateConversationRejected(t *testing.T) {
	ctx := context.Background()
	s := NewSQLite(filepath.Join(t.TempDir(), "crm.sqlite"))
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer s.Close()
	err := s.SaveConversations(ctx, []models.Conversation{
		{ID: "c1", ReceiptID: "r1"},
		{ID: "c2", ReceiptID: "r1"},
	})
	if err == nil {
		t.Fatalf("expected unique receipt id violation")
	}
}

func TestSQLiteReopenKeepsDataAndVersion(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "crm.sqlite")

	s := NewSQLite(path)
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := s.SaveInvoices(ctx, []models.Invoice{{ID: "a", NumberInvoice: "INV-1"}}); err != nil {
		t.Fatalf("SaveInvoices: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := NewSQLite(path)
	if err := reopened.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.LoadInvoices(ctx)
	if err != nil || len(got) != 1 || got[0].NumberInvoice != "INV-1" {
		t.Fatalf("expected persisted invoice, got %+v %v", got, err)
	}
	db, _ := reopened.handle()
	var versions, max int
	if err := db.QueryRow(`SELECT COUNT(*), MAX(version) FROM schema_version`).Scan(&versions, &max); err != nil {
		t.Fatalf("read versions: %v", err)
	}
	if versions != storage.SchemaVersion || max != storage.SchemaVersion {
		t.Fatalf("expected %d applied migrations, got count=%d max=%d", storage.SchemaVersion, versions, max)
	}
}

func TestRebind(t *testing.T) {
	got := Postgres.rebind(`INSERT INTO t (a, b) VALUES (?, ?)`)
	if got != `INSERT INTO t (a, b) VALUES ($1, $2)` {
		t.Fatalf("unexpected rebind: %s", got)
	}
	if SQLite.rebind(`?`) != `?` {
		t.Fatalf("sqlite must keep ? placeholders")
	}
}
