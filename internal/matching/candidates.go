package matching

import (
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"crm/pkg/models"
)

// MaxCandidates is the number of invoices offered per receipt.
const MaxCandidates = 10

var tolerance = decimal.RequireFromString("0.01")

// Candidate is an invoice that could have been paid by a receipt.
type Candidate struct {
	Invoice  models.Invoice
	Expected decimal.Decimal // amount due, or the promised amount
	Score    float64         // higher is better
	DaysDiff int             // days from invoice to receipt, 0 when either date is unknown
}

// Unlinked returns the receipts whose invoice number is empty or names no
// stored invoice. Cancelled receipts are never matched.
func Unlinked(receipts []models.Receipt, invoices []models.Invoice) []models.Receipt {
	known := make(map[string]bool, len(invoices))
	for _, inv := range invoices {
		known[inv.NumberInvoice] = true
	}
	var out []models.Receipt
	for _, r := range receipts {
		if r.Status == models.ReceiptCancelled {
			continue
		}
		if r.InvoiceNumber == "" || !known[r.InvoiceNumber] {
			out = append(out, r)
		}
	}
	return out
}

// FindCandidates returns the invoices whose amount due or promised amount
// lies within 1% of the receipt amount, best first. Invoices in used are
// skipped.
func FindCandidates(r models.Receipt, invoices []models.Invoice, used map[string]bool) []Candidate {
	var candidates []Candidate
	for _, inv := range invoices {
		if used[inv.NumberInvoice] || inv.StatusInvoice == models.InvoiceCancelled {
			continue
		}

		expected := []decimal.Decimal{inv.Amount()}
		if inv.PTPAmount != nil {
			expected = append(expected, *inv.PTPAmount)
		}
		best, bestPrecision := decimal.Zero, -1.0
		for _, want := range expected {
			if p, ok := amountPrecision(r.ReceiptAmount, want); ok && p > bestPrecision {
				best, bestPrecision = want, p
			}
		}
		if bestPrecision < 0 {
			continue
		}

		days, dated := daysBetween(inv.DateInvoice, r.DateReceipt)
		ds := 0.5
		if dated {
			ds = dateScore(days)
		}
		score := bestPrecision*0.8 + ds*0.1 + nameScore(r.ClientName, inv.ClientName)*0.1
		candidates = append(candidates, Candidate{Invoice: inv, Expected: best, Score: score, DaysDiff: days})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > MaxCandidates {
		candidates = candidates[:MaxCandidates]
	}
	return candidates
}

// amountPrecision is 1 for an exact match falling to 0 at the tolerance
// edge. ok is false outside the tolerance.
func amountPrecision(got, want decimal.Decimal) (float64, bool) {
	if !want.IsPositive() {
		return 0, false
	}
	diff := got.Sub(want).Abs()
	limit := want.Mul(tolerance)
	if diff.GreaterThan(limit) {
		return 0, false
	}
	if limit.IsZero() {
		return 1, true
	}
	return 1 - diff.Div(limit).InexactFloat64(), true
}

// daysBetween returns the days from invoice to receipt, negative when the
// receipt predates the invoice.
func daysBetween(invoiceDate, receiptDate string) (int, bool) {
	inv, ok1 := models.ParseDate(invoiceDate)
	rec, ok2 := models.ParseDate(receiptDate)
	if !ok1 || !ok2 {
		return 0, false
	}
	return int(math.Round(rec.Sub(inv).Hours() / 24)), true
}

func dateScore(days int) float64 {
	switch {
	case days < 0:
		return 0.1
	case days <= 30:
		return 1 - float64(days)/30*0.3
	default:
		return math.Max(0.1, 1-float64(days-30)/365)
	}
}

func nameScore(a, b string) float64 {
	a, b = strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	switch {
	case a == "" || b == "":
		return 0
	case a == b:
		return 1
	case strings.Contains(a, b) || strings.Contains(b, a):
		return 0.5
	}
	return 0
}
