// Package sqlstore persists the record collections in SQLite or PostgreSQL.
// Each collection lives in its own table as encoded records, one row per
// record, and every save rewrites the table inside a single transaction.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"crm/internal/logger"
	"crm/internal/storage"
	"crm/pkg/models"
)

// DefaultSQLitePath is used when no database file is configured.
const DefaultSQLitePath = "crm_invoice_db.sqlite"

type Store struct {
	dialect Dialect
	dsn     string
	log     zerolog.Logger

	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

var _ storage.Backend = (*Store)(nil)

// New returns an unconnected store for dialect and data source name.
func New(dialect Dialect, dsn string) *Store {
	return &Store{
		dialect: dialect,
		dsn:     dsn,
		log:     logger.WithComponent("sqlstore").With().Str("dialect", dialect.Name).Logger(),
	}
}

// NewSQLite returns a store backed by the SQLite file at path.
func NewSQLite(path string) *Store {
	if path == "" {
		path = DefaultSQLitePath
	}
	return New(SQLite, path)
}

// NewPostgres returns a store backed by the PostgreSQL database at dsn.
func NewPostgres(dsn string) *Store {
	return New(Postgres, dsn)
}

func (s *Store) Connect(ctx context.Context) error {
	const op = "Connect"

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.Wrap(op, "", storage.ErrClosed)
	}
	if s.db != nil {
		return nil
	}
	if s.dsn == "" {
		return storage.Wrap(op, "", fmt.Errorf("%s: empty data source name", s.dialect.Name))
	}
	if s.dialect.Name == SQLite.Name {
		if err := os.MkdirAll(filepath.Dir(s.dsn), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return storage.Wrap(op, "", fmt.Errorf("create dirs: %w", err))
		}
	}

	db, err := sql.Open(s.dialect.Driver, s.dsn)
	if err != nil {
		return storage.Wrap(op, "", fmt.Errorf("open %s: %w", s.dialect.Name, err))
	}
	if s.dialect.Name == SQLite.Name {
		// one writer at a time keeps sqlite transactions from deadlocking
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return storage.Wrap(op, "", fmt.Errorf("ping %s: %w", s.dialect.Name, err))
	}
	if err := s.migrate(ctx, db); err != nil {
		_ = db.Close()
		return storage.Wrap(op, "", err)
	}

	s.db = db
	s.log.Info().Int("schema_version", storage.SchemaVersion).Msg("Store connected")
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) handle() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return nil, storage.ErrClosed
	case s.db == nil:
		return nil, storage.ErrNotConnected
	}
	return s.db, nil
}

func (s *Store) SaveInvoices(ctx context.Context, invoices []models.Invoice) error {
	return saveRows(ctx, s, storage.Invoices, invoices, func(i models.Invoice) (string, string) {
		return i.ID, i.NumberInvoice
	})
}

func (s *Store) LoadInvoices(ctx context.Context) ([]models.Invoice, error) {
	return loadRows[models.Invoice](ctx, s, storage.Invoices)
}

func (s *Store) SaveReceipts(ctx context.Context, receipts []models.Receipt) error {
	return saveRows(ctx, s, storage.Receipts, receipts, func(r models.Receipt) (string, string) {
		return r.ID, r.InvoiceNumber
	})
}

func (s *Store) LoadReceipts(ctx context.Context) ([]models.Receipt, error) {
	return loadRows[models.Receipt](ctx, s, storage.Receipts)
}

func (s *Store) SaveConversations(ctx context.Context, conversations []models.Conversation) error {
	return saveRows(ctx, s, storage.Conversations, conversations, func(c models.Conversation) (string, string) {
		return c.ID, c.ReceiptID
	})
}

func (s *Store) LoadConversations(ctx context.Context) ([]models.Conversation, error) {
	return loadRows[models.Conversation](ctx, s, storage.Conversations)
}

func (s *Store) SaveSettings(ctx context.Context, settings models.Settings) error {
	const op = "Save"

	db, err := s.handle()
	if err != nil {
		return storage.Wrap(op, storage.Settings, err)
	}
	payload, err := json.Marshal(settings)
	if err != nil {
		return storage.Wrap(op, storage.Settings, fmt.Errorf("encode: %w", err))
	}
	query := s.dialect.rebind(`INSERT INTO settings (id, payload) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET payload = excluded.payload`)
	if _, err := db.ExecContext(ctx, query, storage.SettingsID, string(payload)); err != nil {
		return storage.Wrap(op, storage.Settings, err)
	}
	return nil
}

func (s *Store) LoadSettings(ctx context.Context) (*models.Settings, error) {
	const op = "Load"

	db, err := s.handle()
	if err != nil {
		return nil, storage.Wrap(op, storage.Settings, err)
	}
	var payload []byte
	err = db.QueryRowContext(ctx, s.dialect.rebind(`SELECT payload FROM settings WHERE id = ?`), storage.SettingsID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storage.Wrap(op, storage.Settings, err)
	}
	var out models.Settings
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, storage.Wrap(op, storage.Settings, fmt.Errorf("decode: %w", err))
	}
	return &out, nil
}

// saveRows replaces the contents of table c with items in one transaction.
// key returns the primary key and the indexed reference column of an item.
func saveRows[T any](ctx context.Context, s *Store, c storage.Collection, items []T, key func(T) (string, string)) (retErr error) {
	const op = "Save"

	db, err := s.handle()
	if err != nil {
		return storage.Wrap(op, c, err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return storage.Wrap(op, c, err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM `+string(c)); err != nil {
		return storage.Wrap(op, c, fmt.Errorf("clear: %w", err))
	}
	insert := s.dialect.rebind(`INSERT INTO ` + string(c) + ` (id, position, ref, payload) VALUES (?, ?, ?, ?)`)
	for i, item := range items {
		id, ref := key(item)
		payload, err := json.Marshal(item)
		if err != nil {
			return storage.Wrap(op, c, fmt.Errorf("encode %s: %w", id, err))
		}
		if _, err := tx.ExecContext(ctx, insert, id, i, ref, string(payload)); err != nil {
			return storage.Wrap(op, c, fmt.Errorf("insert %s: %w", id, err))
		}
	}
	if err := tx.Commit(); err != nil {
		return storage.Wrap(op, c, err)
	}
	s.log.Debug().Str("collection", string(c)).Int("count", len(items)).Msg("Saved collection")
	return nil
}

func loadRows[T any](ctx context.Context, s *Store, c storage.Collection) ([]T, error) {
	const op = "Load"

	db, err := s.handle()
	if err != nil {
		return nil, storage.Wrap(op, c, err)
	}
	rows, err := db.QueryContext(ctx, `SELECT payload FROM `+string(c)+` ORDER BY position`)
	if err != nil {
		return nil, storage.Wrap(op, c, err)
	}
	defer func() { _ = rows.Close() }()

	var out []T
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, storage.Wrap(op, c, fmt.Errorf("scan: %w", err))
		}
		var item T
		if err := json.Unmarshal(payload, &item); err != nil {
			return nil, storage.Wrap(op, c, fmt.Errorf("decode: %w", err))
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Wrap(op, c, err)
	}
	return out, nil
}
