package kpi

import (
	"time"

	"crm/pkg/models"
)

// DateType selects which receipt date drives filtering and bucketing.
type DateType string

const (
	ByReceiptDate DateType = "receiptDate"
	ByCreatedDate DateType = "createdAt"
)

// Range is an inclusive range of calendar days. A zero bound is open.
type Range struct {
	From time.Time
	To   time.Time
}

// MonthRange covers the calendar month containing t.
func MonthRange(t time.Time) Range {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Range{From: first, To: first.AddDate(0, 1, -1)}
}

// Contains reports whether the yyyy-MM-dd day lies in the range. An
// unknown day only matches an open range.
func (r Range) Contains(day string) bool {
	if r.From.IsZero() && r.To.IsZero() {
		return true
	}
	if day == "" {
		return false
	}
	if !r.From.IsZero() && day < r.From.Format(models.DateLayout) {
		return false
	}
	if !r.To.IsZero() && day > r.To.Format(models.DateLayout) {
		return false
	}
	return true
}

// ReceiptDay returns the day key of r for the chosen date type. Receipts
// without a receipt date fall back to their creation day.
func ReceiptDay(r models.Receipt, dt DateType) string {
	if dt != ByCreatedDate {
		if day := models.DayKey(r.DateReceipt); day != "" {
			return day
		}
	}
	if r.CreatedAt.IsZero() {
		return ""
	}
	return r.CreatedAt.Format(models.DateLayout)
}

// ReceiptFilter selects receipts for the collector dashboards. Empty
// Collectors matches everyone.
type ReceiptFilter struct {
	Collectors []string
	Range      Range
	DateType   DateType
}

func (f ReceiptFilter) Apply(receipts []models.Receipt) []models.Receipt {
	var out []models.Receipt
	for _, r := range receipts {
		if !contains(f.Collectors, r.DebtCollectorName) {
			continue
		}
		if !f.Range.Contains(ReceiptDay(r, f.DateType)) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// InvoiceFilter selects invoices for the sales and branch dashboards.
// Empty name lists match everyone.
type InvoiceFilter struct {
	Salespeople []string
	Branches    []string
	Range       Range
}

func (f InvoiceFilter) Apply(invoices []models.Invoice) []models.Invoice {
	var out []models.Invoice
	for _, inv := range invoices {
		if !contains(f.Salespeople, inv.Salesperson) || !contains(f.Branches, inv.Branch) {
			continue
		}
		if !f.Range.Contains(models.DayKey(inv.DateInvoice)) {
			continue
		}
		out = append(out, inv)
	}
	return out
}
