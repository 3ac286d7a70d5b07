package kpi

import (
	"slices"

	"github.com/shopspring/decimal"

	"crm/pkg/models"
)

type BranchStats struct {
	Name          string
	TotalAmount   decimal.Decimal
	TotalInvoices int
	TotalBoxes    int
	Salespeople   []string // distinct, in order of first sale
}

// Branches groups invoices by branch.
func Branches(invoices []models.Invoice) []BranchStats {
	return fold(invoices,
		func(inv models.Invoice) string { return inv.Branch },
		func(name string) BranchStats { return BranchStats{Name: name} },
		func(s *BranchStats, inv models.Invoice) {
			s.TotalAmount = s.TotalAmount.Add(inv.Amount())
			s.TotalInvoices++
			s.TotalBoxes += inv.Boxes()
			if inv.Salesperson != "" && !slices.Contains(s.Salespeople, inv.Salesperson) {
				s.Salespeople = append(s.Salespeople, inv.Salesperson)
			}
		})
}

func BranchLeaderboard(stats []BranchStats, n int) []BranchStats {
	return Top(Rank(stats, func(s BranchStats) decimal.Decimal { return s.TotalAmount }), n)
}
