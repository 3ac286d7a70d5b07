package kpi

import (
	"github.com/shopspring/decimal"

	"crm/pkg/models"
)

// CollectorStats is the performance of one debt collector. Only reconciled
// receipts count as collected.
type CollectorStats struct {
	Name               string
	CollectedAmount    decimal.Decimal
	TotalReceipts      int
	ReconciledReceipts int
}

// SuccessRate is the share of receipts that are reconciled, in percent.
func (c CollectorStats) SuccessRate() float64 {
	return Rate(c.ReconciledReceipts, c.TotalReceipts)
}

// Collectors groups receipts by debt collector.
func Collectors(receipts []models.Receipt) []CollectorStats {
	return fold(receipts,
		func(r models.Receipt) string { return r.DebtCollectorName },
		func(name string) CollectorStats { return CollectorStats{Name: name} },
		func(s *CollectorStats, r models.Receipt) {
			s.TotalReceipts++
			if r.Reconciled() {
				s.CollectedAmount = s.CollectedAmount.Add(r.ReceiptAmount)
				s.ReconciledReceipts++
			}
		})
}

// CollectorSummary totals the collector statistics.
type CollectorSummary struct {
	CollectedAmount    decimal.Decimal
	TotalReceipts      int
	ReconciledReceipts int
	ActiveCollectors   int
	AverageCollected   decimal.Decimal
	AverageReceipts    float64
}

func (s CollectorSummary) SuccessRate() float64 {
	return Rate(s.ReconciledReceipts, s.TotalReceipts)
}

func SummarizeCollectors(stats []CollectorStats) CollectorSummary {
	var out CollectorSummary
	for _, s := range stats {
		out.CollectedAmount = out.CollectedAmount.Add(s.CollectedAmount)
		out.TotalReceipts += s.TotalReceipts
		out.ReconciledReceipts += s.ReconciledReceipts
	}
	out.ActiveCollectors = len(stats)
	out.AverageCollected = Average(out.CollectedAmount, len(stats))
	out.AverageReceipts = averageCount(out.TotalReceipts, len(stats))
	return out
}

// CollectorLeaderboard ranks collectors by collected amount and keeps the
// top n.
func CollectorLeaderboard(stats []CollectorStats, n int) []CollectorStats {
	return Top(Rank(stats, func(s CollectorStats) decimal.Decimal { return s.CollectedAmount }), n)
}
