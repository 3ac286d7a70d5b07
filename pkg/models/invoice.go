package models

import "github.com/shopspring/decimal"

// InvoiceStatus mirrors the configurable status list in settings.
type InvoiceStatus string

const (
	InvoicePending   InvoiceStatus = "Pending"
	InvoicePaid      InvoiceStatus = "Paid"
	InvoiceOverdue   InvoiceStatus = "Overdue"
	InvoiceCancelled InvoiceStatus = "Cancelled"
)

// Invoice is a billed sale to a client. NumberInvoice is the business key:
// at most one stored invoice carries a given number.
//
// String fields treat "" as absent and pointer fields treat nil as absent
// when an incoming record is merged onto a stored one.
type Invoice struct {
	// Core identifiers
	ID            string        `json:"id"`
	NumberInvoice string        `json:"numberInvoice" validate:"required"`
	DateInvoice   string        `json:"dateInvoice,omitempty"` // yyyy-MM-dd
	StatusInvoice InvoiceStatus `json:"statusInvoice,omitempty"`

	// Attribution
	Branch            string `json:"branch,omitempty"`
	Salesperson       string `json:"salesperson,omitempty"`
	DebtCollectorName string `json:"debtCollectorName,omitempty"`

	// Client
	ClientName   string `json:"clientName,omitempty"`
	MyKadNo      string `json:"myKadNo,omitempty"` // national ID
	PhoneNumber  string `json:"phoneNumber,omitempty"`
	PhoneNumber2 string `json:"phoneNumber2,omitempty"`
	Address      string `json:"address,omitempty"`
	Address2     string `json:"address2,omitempty"`
	Postcode     string `json:"postcode,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	Country      string `json:"country,omitempty"`

	// Amounts and delivery
	AmountDue  *decimal.Decimal `json:"amountDue,omitempty"`
	TotalBoxes *int             `json:"totalBoxes,omitempty"`
	TrackingNo string           `json:"trackingNo,omitempty"`

	// Promise to pay
	PTP       *bool            `json:"ptp,omitempty"`
	PTPDate   string           `json:"ptpDate,omitempty"`
	PTPAmount *decimal.Decimal `json:"ptpAmount,omitempty"`
	Remark    string           `json:"remark,omitempty"`
}

// Amount returns the amount due, zero when unset.
func (i Invoice) Amount() decimal.Decimal {
	if i.AmountDue == nil {
		return decimal.Zero
	}
	return *i.AmountDue
}

// Boxes returns the box count, zero when unset.
func (i Invoice) Boxes() int {
	if i.TotalBoxes == nil {
		return 0
	}
	return *i.TotalBoxes
}

// PromisedToPay reports whether the client made a promise to pay.
func (i Invoice) PromisedToPay() bool {
	return i.PTP != nil && *i.PTP
}

// Ptr returns a pointer to v, for filling the optional invoice fields.
func Ptr[T any](v T) *T {
	return &v
}

// Phones returns the non-empty phone numbers of the invoice.
func (i Invoice) Phones() []string {
	var out []string
	for _, p := range []string{i.PhoneNumber, i.PhoneNumber2} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
