// Package app opens the configured record store and wires the domain stores
// on top of it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"crm/internal/config"
	"crm/internal/conversations"
	"crm/internal/invoices"
	"crm/internal/kpi"
	"crm/internal/logger"
	"crm/internal/receipts"
	"crm/internal/settings"
	"crm/internal/storage"
	"crm/internal/storage/memory"
	"crm/internal/storage/sqlstore"
	"crm/pkg/models"
)

// App holds the domain stores sharing one backend.
type App struct {
	Config        *config.Config
	Backend       storage.Backend
	Invoices      *invoices.Store
	Receipts      *receipts.Store
	Settings      *settings.Store
	Conversations *conversations.Store
	log           zerolog.Logger
}

// OpenBackend returns an unconnected backend for cfg.Backend.
func OpenBackend(cfg *config.Config) (storage.Backend, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		return sqlstore.NewSQLite(cfg.SQLitePath), nil
	case config.BackendPostgres:
		return sqlstore.NewPostgres(cfg.PostgresDSN), nil
	case config.BackendMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("%w: %q", storage.ErrUnsupportedBackend, cfg.Backend)
	}
}

// New wires the stores on backend without touching it.
func New(cfg *config.Config, backend storage.Backend) *App {
	return &App{
		Config:        cfg,
		Backend:       backend,
		Invoices:      invoices.New(backend, invoices.WithPhoneRegion(cfg.PhoneRegion)),
		Receipts:      receipts.New(backend),
		Settings:      settings.New(backend),
		Conversations: conversations.New(backend),
		log:           logger.WithComponent("app"),
	}
}

// Open connects the configured backend and loads every collection.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	const op = "Open"

	backend, err := OpenBackend(cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := backend.Connect(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a := New(cfg, backend)
	if err := a.Load(ctx); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a.log.Debug().
		Str("backend", cfg.Backend).
		Int("invoices", len(a.Invoices.List())).
		Int("receipts", len(a.Receipts.List())).
		Msg("Record store opened")
	return a, nil
}

// Load reads all collections. Settings fall back to their defaults when
// loading fails, so a settings error does not stop the others from loading.
func (a *App) Load(ctx context.Context) error {
	return errors.Join(
		a.Invoices.Load(ctx),
		a.Receipts.Load(ctx),
		a.Conversations.Load(ctx),
		a.Settings.Load(ctx),
	)
}

// Balance reports what has been reconciled against inv.
func (a *App) Balance(inv models.Invoice) kpi.Balance {
	return kpi.InvoiceBalance(inv, a.Receipts.ForInvoice(inv.NumberInvoice))
}

// Close releases the backend.
func (a *App) Close() error {
	return a.Backend.Close()
}
