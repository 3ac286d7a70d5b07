// Package storage defines the persistent record store shared by the domain
// stores. A backend holds four collections: invoices, receipts,
// conversations and the single settings record.
//
// Every Save replaces the whole collection in one atomic write: after a
// failed Save the previous contents are still readable.
package storage

import (
	"context"

	"crm/pkg/models"
)

// Collection names one stored collection.
type Collection string

const (
	Invoices      Collection = "invoices"
	Receipts      Collection = "receipts"
	Conversations Collection = "conversations"
	Settings      Collection = "settings"
)

// SchemaVersion is the current on-disk layout version.
const SchemaVersion = 5

// SettingsID is the key of the single settings record.
const SettingsID = "main"

// Backend is implemented by every persistent store.
type Backend interface {
	// Connect opens the store and creates or upgrades its layout. Calling it
	// again, also concurrently, reuses the first connection.
	Connect(ctx context.Context) error

	SaveInvoices(ctx context.Context, invoices []models.Invoice) error
	LoadInvoices(ctx context.Context) ([]models.Invoice, error)

	SaveReceipts(ctx context.Context, receipts []models.Receipt) error
	LoadReceipts(ctx context.Context) ([]models.Receipt, error)

	SaveConversations(ctx context.Context, conversations []models.Conversation) error
	LoadConversations(ctx context.Context) ([]models.Conversation, error)

	SaveSettings(ctx context.Context, settings models.Settings) error
	// LoadSettings returns nil when settings were never saved.
	LoadSettings(ctx context.Context) (*models.Settings, error)

	Close() error
}
