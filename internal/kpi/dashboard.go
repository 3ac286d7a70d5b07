package kpi

import (
	"github.com/shopspring/decimal"

	"crm/pkg/models"
)

type InvoiceSummary struct {
	TotalAmount decimal.Decimal
	TotalBoxes  int
	Count       int
	ByStatus    map[models.InvoiceStatus]int
}

// AverageBoxes is the average box count per invoice.
func (s InvoiceSummary) AverageBoxes() float64 {
	return averageCount(s.TotalBoxes, s.Count)
}

type ReceiptTotals struct {
	TotalAmount decimal.Decimal
	Count       int
	ByStatus    map[models.ReceiptStatus]int
}

// Dashboard is the landing overview of the whole operation.
type Dashboard struct {
	Invoices       InvoiceSummary
	Receipts       ReceiptTotals
	TopBranches    []BranchStats
	TopCollectors  []CollectorStats
	TopSalespeople []SalespersonStats
}

// CollectionRate is total receipts over total invoiced, in percent.
func (d Dashboard) CollectionRate() float64 {
	return Percent(d.Receipts.TotalAmount, d.Invoices.TotalAmount)
}

// SummarizeInvoices totals the invoices and counts them per status.
func SummarizeInvoices(invoices []models.Invoice) InvoiceSummary {
	out := InvoiceSummary{ByStatus: map[models.InvoiceStatus]int{}}
	for _, inv := range invoices {
		out.TotalAmount = out.TotalAmount.Add(inv.Amount())
		out.TotalBoxes += inv.Boxes()
		out.Count++
		if inv.StatusInvoice != "" {
			out.ByStatus[inv.StatusInvoice]++
		}
	}
	return out
}

func totalReceipts(receipts []models.Receipt) ReceiptTotals {
	out := ReceiptTotals{ByStatus: map[models.ReceiptStatus]int{}}
	for _, r := range receipts {
		out.TotalAmount = out.TotalAmount.Add(r.ReceiptAmount)
		out.Count++
		out.ByStatus[r.Status]++
	}
	return out
}

// BuildDashboard computes the overview with top-n rankings.
func BuildDashboard(invoices []models.Invoice, receipts []models.Receipt, n int) Dashboard {
	return Dashboard{
		Invoices:       SummarizeInvoices(invoices),
		Receipts:       totalReceipts(receipts),
		TopBranches:    BranchLeaderboard(Branches(invoices), n),
		TopCollectors:  CollectorLeaderboard(Collectors(receipts), n),
		TopSalespeople: SalesLeaderboard(Salespeople(invoices), n),
	}
}
