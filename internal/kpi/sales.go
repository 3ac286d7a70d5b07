package kpi

import (
	"github.com/shopspring/decimal"

	"crm/pkg/models"
)

type SalespersonStats struct {
	Name          string
	TotalAmount   decimal.Decimal
	TotalBoxes    int
	TotalInvoices int
}

// AverageAmount is the average invoice amount of the salesperson.
func (s SalespersonStats) AverageAmount() decimal.Decimal {
	return Average(s.TotalAmount, s.TotalInvoices)
}

// Salespeople groups invoices by salesperson.
func Salespeople(invoices []models.Invoice) []SalespersonStats {
	return fold(invoices,
		func(inv models.Invoice) string { return inv.Salesperson },
		func(name string) SalespersonStats { return SalespersonStats{Name: name} },
		func(s *SalespersonStats, inv models.Invoice) {
			s.TotalAmount = s.TotalAmount.Add(inv.Amount())
			s.TotalBoxes += inv.Boxes()
			s.TotalInvoices++
		})
}

type SalesSummary struct {
	TotalAmount       decimal.Decimal
	TotalBoxes        int
	TotalInvoices     int
	ActiveSalespeople int
	AverageAmount     decimal.Decimal // per salesperson
	AverageBoxes      float64         // per invoice
}

func SummarizeSales(stats []SalespersonStats) SalesSummary {
	var out SalesSummary
	for _, s := range stats {
		out.TotalAmount = out.TotalAmount.Add(s.TotalAmount)
		out.TotalBoxes += s.TotalBoxes
		out.TotalInvoices += s.TotalInvoices
	}
	out.ActiveSalespeople = len(stats)
	out.AverageAmount = Average(out.TotalAmount, len(stats))
	out.AverageBoxes = averageCount(out.TotalBoxes, out.TotalInvoices)
	return out
}

func SalesLeaderboard(stats []SalespersonStats, n int) []SalespersonStats {
	return Top(Rank(stats, func(s SalespersonStats) decimal.Decimal { return s.TotalAmount }), n)
}
