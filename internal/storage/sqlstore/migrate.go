package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type migration struct {
	version    int
	statements []string
}

// migrations only ever add tables and indexes, so upgrading never loses data.
func (d Dialect) migrations() []migration {
	p := d.PayloadType
	return []migration{
		{1, []string{
			`CREATE TABLE IF NOT EXISTS invoices (
				id TEXT PRIMARY KEY,
				position INTEGER NOT NULL,
				ref TEXT NOT NULL DEFAULT '',
				payload ` + p + ` NOT NULL
			)`,
		}},
		{2, []string{
			`CREATE TABLE IF NOT EXISTS settings (
				id TEXT PRIMARY KEY,
				payload ` + p + ` NOT NULL
			)`,
		}},
		{3, []string{
			`CREATE TABLE IF NOT EXISTS receipts (
				id TEXT PRIMARY KEY,
				position INTEGER NOT NULL,
				ref TEXT NOT NULL DEFAULT '',
				payload ` + p + ` NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS receipts_invoice_number ON receipts (ref)`,
		}},
		{4, []string{
			`CREATE INDEX IF NOT EXISTS invoices_number ON invoices (ref)`,
		}},
		{5, []string{
			`CREATE TABLE IF NOT EXISTS conversations (
				id TEXT PRIMARY KEY,
				position INTEGER NOT NULL,
				ref TEXT NOT NULL DEFAULT '',
				payload ` + p + ` NOT NULL
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS conversations_receipt_id ON conversations (ref)`,
		}},
	}
}

func (s *Store) migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}
	var current sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&current); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read schema version: %w", err)
	}
	for _, m := range s.dialect.migrations() {
		if int64(m.version) <= current.Int64 {
			continue
		}
		if err := s.apply(ctx, db, m); err != nil {
			return fmt.Errorf("migrate to v%d: %w", m.version, err)
		}
		s.log.Debug().Int("version", m.version).Msg("Applied schema migration")
	}
	return nil
}

func (s *Store) apply(ctx context.Context, db *sql.DB, m migration) (retErr error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, stmt := range m.statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, s.dialect.rebind(`INSERT INTO schema_version (version) VALUES (?)`), m.version); err != nil {
		return err
	}
	return tx.Commit()
}
