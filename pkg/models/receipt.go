package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReceiptStatus mirrors the configurable receipt status list in settings.
type ReceiptStatus string

const (
	ReceiptNew        ReceiptStatus = "New"
	ReceiptOnHold     ReceiptStatus = "On Hold"
	ReceiptCancelled  ReceiptStatus = "Cancelled"
	ReceiptReconciled ReceiptStatus = "Reconciled"
)

// Receipt is a recorded payment. It links to an invoice by number only,
// so the invoice may not exist.
type Receipt struct {
	ID            string          `json:"id"`
	DateReceipt   string          `json:"dateReceipt,omitempty"` // yyyy-MM-dd
	Bank          string          `json:"bank" validate:"required"`
	ReceiptAmount decimal.Decimal `json:"receiptAmount" validate:"gt=0"`
	Status        ReceiptStatus   `json:"status"`
	Remark        string          `json:"remark,omitempty"`
	ImageURL      string          `json:"imageUrl,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`

	// Copied from the linked invoice when the receipt is created.
	InvoiceNumber     string `json:"invoiceNumber,omitempty"`
	ClientName        string `json:"clientName,omitempty"`
	PhoneNumber       string `json:"phoneNumber,omitempty"`
	DebtCollectorName string `json:"debtCollectorName,omitempty"`
	Salesperson       string `json:"salesperson,omitempty"`
	Branch            string `json:"branch,omitempty"`
}

// Reconciled reports whether the receipt counts as collected money.
func (r Receipt) Reconciled() bool {
	return r.Status == ReceiptReconciled
}
