package kpi

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"crm/pkg/models"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func rc(collector string, status models.ReceiptStatus, amount, day string) models.Receipt {
	return models.Receipt{DebtCollectorName: collector, Status: status, ReceiptAmount: d(amount), DateReceipt: day, Bank: "Maybank"}
}

func inv(number, salesperson, branch, amount string, boxes int, day string) models.Invoice {
	return models.Invoice{NumberInvoice: number, Salesperson: salesperson, Branch: branch, AmountDue: models.Ptr(d(amount)), TotalBoxes: models.Ptr(boxes), DateInvoice: day}
}

func TestCollectorsScenario(t *testing.T) {
	stats := Collectors([]models.Receipt{
		rc("Bob", models.ReceiptReconciled, "50", "2024-05-01"),
		rc("Bob", models.ReceiptNew, "30", "2024-05-02"),
		rc("", models.ReceiptReconciled, "99", "2024-05-02"),
	})
	if len(stats) != 1 {
		t.Fatalf("expected receipts without a collector to be skipped, got %+v", stats)
	}
	bob := stats[0]
	if !bob.CollectedAmount.Equal(d("50")) || bob.TotalReceipts != 2 || bob.ReconciledReceipts != 1 {
		t.Fatalf("unexpected stats: %+v", bob)
	}
	if bob.SuccessRate() != 50 {
		t.Fatalf("expected 50%% success, got %v", bob.SuccessRate())
	}
}

func TestZeroDenominators(t *testing.T) {
	for name, v := range map[string]float64{
		"rate":            Rate(0, 0),
		"percent":         Percent(d("10"), decimal.Zero),
		"collection rate": BuildDashboard(nil, []models.Receipt{rc("a", models.ReceiptNew, "10", "")}, 5).CollectionRate(),
		"success":         CollectorStats{}.SuccessRate(),
		"summary success": SummarizeCollectors(nil).SuccessRate(),
		"avg receipts":    SummarizeCollectors(nil).AverageReceipts,
		"avg boxes":       SummarizeSales(nil).AverageBoxes,
		"invoice boxes":   InvoiceSummary{}.AverageBoxes(),
		"progress":        Progress(d("5"), decimal.Zero),
	} {
		if v != 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("%s: expected 0, got %v", name, v)
		}
	}
	if !Average(d("10"), 0).IsZero() {
		t.Fatalf("average over zero entities must be zero")
	}
	all := Collectors([]models.Receipt{rc("a", models.ReceiptNew, "10", "")})
	if all[0].SuccessRate() != 0 {
		t.Fatalf("no reconciled receipts must give 0")
	}
}

func TestRankStableAndTop(t *testing.T) {
	stats := []SalespersonStats{
		{Name: "a", TotalAmount: d("10")},
		{Name: "b", TotalAmount: d("30")},
		{Name: "c", TotalAmount: d("10")},
		{Name: "d", TotalAmount: d("20")},
	}
	ranked := SalesLeaderboard(stats, 3)
	got := []string{ranked[0].Name, ranked[1].Name, ranked[2].Name}
	if got[0] != "b" || got[1] != "d" || got[2] != "a" {
		t.Fatalf("unexpected ranking: %v", got)
	}
	if stats[0].Name != "a" {
		t.Fatalf("Rank must not reorder its input")
	}
	if len(Top(ranked, 10)) != 3 || len(Top(ranked, -1)) != 0 {
		t.Fatalf("unexpected Top lengths")
	}
}

func TestSalesAndBranches(t *testing.T) {
	invoices := []models.Invoice{
		inv("1", "Raj", "KL", "100", 2, "2024-05-01"),
		inv("2", "Mei", "KL", "300", 5, "2024-05-03"),
		inv("3", "Raj", "Ipoh", "50", 1, "2024-05-03"),
		inv("4", "Raj", "KL", "25", 0, "2024-05-04"),
	}
	sales := Salespeople(invoices)
	if len(sales) != 2 || sales[0].Name != "Raj" || !sales[0].TotalAmount.Equal(d("175")) || sales[0].TotalBoxes != 3 || sales[0].TotalInvoices != 3 {
		t.Fatalf("unexpected sales: %+v", sales)
	}
	summary := SummarizeSales(sales)
	if !summary.AverageAmount.Equal(d("237.5")) || summary.AverageBoxes != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	branches := Branches(invoices)
	if len(branches) != 2 || branches[0].Name != "KL" || branches[0].TotalInvoices != 3 {
		t.Fatalf("unexpected branches: %+v", branches)
	}
	if len(branches[0].Salespeople) != 2 {
		t.Fatalf("expected distinct salespeople, got %v", branches[0].Salespeople)
	}
	if top := BranchLeaderboard(branches, 1); top[0].Name != "KL" {
		t.Fatalf("unexpected leader: %+v", top)
	}
}

func TestFilters(t *testing.T) {
	receipts := []models.Receipt{
		rc("Aina", models.ReceiptReconciled, "10", "2024-05-01"),
		rc("Farid", models.ReceiptReconciled, "20", "2024-05-15"),
		{DebtCollectorName: "Aina", Status: models.ReceiptNew, ReceiptAmount: d("5"), CreatedAt: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)},
	}
	may := MonthRange(time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC))
	got := ReceiptFilter{Range: may}.Apply(receipts)
	if len(got) != 2 {
		t.Fatalf("expected two May receipts, got %+v", got)
	}
	got = ReceiptFilter{Collectors: []string{"Aina"}}.Apply(receipts)
	if len(got) != 2 {
		t.Fatalf("expected Aina's receipts, got %+v", got)
	}
	got = ReceiptFilter{Range: MonthRange(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)), DateType: ByCreatedDate}.Apply(receipts)
	if len(got) != 1 || !got[0].ReceiptAmount.Equal(d("5")) {
		t.Fatalf("expected created-date filter, got %+v", got)
	}

	invoices := []models.Invoice{inv("1", "Raj", "KL", "1", 0, "2024-05-01"), inv("2", "Mei", "Ipoh", "1", 0, "2024-04-30")}
	if got := (InvoiceFilter{Branches: []string{"KL"}}).Apply(invoices); len(got) != 1 {
		t.Fatalf("branch filter: %+v", got)
	}
	if got := (InvoiceFilter{Range: may}).Apply(invoices); len(got) != 1 || got[0].NumberInvoice != "1" {
		t.Fatalf("range filter: %+v", got)
	}
}

func TestDailyCollections(t *testing.T) {
	receipts := []models.Receipt{
		rc("Aina", models.ReceiptReconciled, "10", "2024-02-01"),
		rc("Aina", models.ReceiptNew, "7", "2024-02-01"),
		rc("Aina", models.ReceiptReconciled, "15", "2024-02-29"),
		rc("Aina", models.ReceiptReconciled, "99", "2024-03-01"),
		rc("Ghost", models.ReceiptReconciled, "99", "2024-02-02"),
	}
	rows := DailyCollections(receipts, time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), []string{"Aina", "Farid"}, ByReceiptDate)
	if len(rows) != 2 {
		t.Fatalf("expected a row per active collector, got %d", len(rows))
	}
	aina := rows[0]
	if len(aina.Days) != 29 || aina.Days[0].Date != "2024-02-01" || aina.Days[28].Date != "2024-02-29" {
		t.Fatalf("unexpected buckets: %d", len(aina.Days))
	}
	if !aina.Days[0].Stats.Collected.Equal(d("10")) || aina.Days[0].Stats.Receipts != 2 || aina.Days[0].Stats.SuccessRate() != 50 {
		t.Fatalf("unexpected first day: %+v", aina.Days[0].Stats)
	}
	if !aina.Total.Collected.Equal(d("25")) || aina.Total.Receipts != 3 {
		t.Fatalf("unexpected total: %+v", aina.Total)
	}
	if rows[1].Total.Receipts != 0 || len(rows[1].Days) != 29 {
		t.Fatalf("collector without activity must still get empty buckets")
	}
}

func TestDailySalesAndBranches(t *testing.T) {
	invoices := []models.Invoice{
		inv("1", "Raj", "KL", "100", 2, "2024-05-01"),
		inv("2", "Raj", "KL", "50", 1, "2024-05-01"),
		inv("3", "Mei", "Ipoh", "70", 4, "2024-05-31"),
	}
	month := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	sales := DailySales(invoices, month, []string{"Raj"})
	if len(sales[0].Days) != 31 || !sales[0].Days[0].Stats.Amount.Equal(d("150")) || sales[0].Days[0].Stats.Invoices != 2 {
		t.Fatalf("unexpected daily sales: %+v", sales[0].Days[0])
	}
	branches := DailyBranches(invoices, month, []string{"KL", "Ipoh"})
	if branches[1].Days[30].Stats.Boxes != 4 {
		t.Fatalf("unexpected branch buckets: %+v", branches[1].Days[30])
	}
}

func TestProgress(t *testing.T) {
	cases := []struct {
		current, target string
		want            float64
		remaining       string
	}{
		{"50", "200", 25, "150"},
		{"300", "200", 100, "0"},
		{"10", "0", 0, "0"},
	}
	for _, tc := range cases {
		if got := Progress(d(tc.current), d(tc.target)); got != tc.want {
			t.Fatalf("Progress(%s, %s) = %v, want %v", tc.current, tc.target, got, tc.want)
		}
		if got := Remaining(d(tc.current), d(tc.target)); !got.Equal(d(tc.remaining)) {
			t.Fatalf("Remaining(%s, %s) = %s, want %s", tc.current, tc.target, got, tc.remaining)
		}
	}
}

func TestAgainstTarget(t *testing.T) {
	boxes := 10
	target := models.KPITarget{
		Type:           models.TargetSalesperson,
		DailyTarget:    d("100"),
		WeeklyTarget:   d("500"),
		MonthlyTarget:  d("2000"),
		BoxDailyTarget: &boxes,
	}
	// 2024-05-15 is a Wednesday; its week runs 13..19 May.
	invoices := []models.Invoice{
		inv("1", "Raj", "KL", "80", 4, "2024-05-15"),
		inv("2", "Raj", "KL", "100", 3, "2024-05-13"),
		inv("3", "Raj", "KL", "400", 1, "2024-05-02"),
		inv("4", "Mei", "KL", "999", 9, "2024-05-15"),
	}
	actuals := SalesActuals(invoices, time.Date(2024, 5, 15, 18, 0, 0, 0, time.UTC), func(i models.Invoice) bool { return i.Salesperson == "Raj" })
	money, box := AgainstTarget(target, actuals)
	if len(money) != 3 || len(box) != 1 {
		t.Fatalf("unexpected progress lengths: %d %d", len(money), len(box))
	}
	if !money[0].Current.Equal(d("80")) || money[0].Percent != 80 || !money[0].Remaining.Equal(d("20")) {
		t.Fatalf("unexpected daily progress: %+v", money[0])
	}
	if !money[1].Current.Equal(d("180")) || !money[2].Current.Equal(d("580")) {
		t.Fatalf("unexpected weekly/monthly: %+v %+v", money[1], money[2])
	}
	if box[0].Current != 4 || box[0].Remaining != 6 || box[0].Percent != 40 {
		t.Fatalf("unexpected box progress: %+v", box[0])
	}

	collected := CollectionActuals([]models.Receipt{
		rc("Aina", models.ReceiptReconciled, "30", "2024-05-15"),
		rc("Aina", models.ReceiptNew, "30", "2024-05-15"),
		rc("Farid", models.ReceiptReconciled, "30", "2024-05-15"),
	}, time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC), "Aina", ByReceiptDate)
	if !collected.Amount[Daily].Equal(d("30")) {
		t.Fatalf("unexpected collection actuals: %v", collected.Amount)
	}
}

func TestDashboard(t *testing.T) {
	invoices := []models.Invoice{
		inv("1", "Raj", "KL", "100", 2, ""),
		inv("2", "Mei", "Ipoh", "300", 4, ""),
	}
	invoices[0].StatusInvoice = models.InvoicePaid
	receipts := []models.Receipt{rc("Aina", models.ReceiptReconciled, "100", "")}

	dash := BuildDashboard(invoices, receipts, 1)
	if !dash.Invoices.TotalAmount.Equal(d("400")) || dash.Invoices.TotalBoxes != 6 || dash.Invoices.ByStatus[models.InvoicePaid] != 1 {
		t.Fatalf("unexpected invoice summary: %+v", dash.Invoices)
	}
	if dash.CollectionRate() != 25 || dash.Invoices.AverageBoxes() != 3 {
		t.Fatalf("unexpected rates: %v %v", dash.CollectionRate(), dash.Invoices.AverageBoxes())
	}
	if len(dash.TopSalespeople) != 1 || dash.TopSalespeople[0].Name != "Mei" || dash.TopBranches[0].Name != "Ipoh" {
		t.Fatalf("unexpected rankings: %+v", dash)
	}
}

func TestSummarizeReceiptsAndBalance(t *testing.T) {
	receipts := []models.Receipt{
		{InvoiceNumber: "INV-1", Bank: "Maybank", Status: models.ReceiptReconciled, ReceiptAmount: d("40"), DateReceipt: "2024-05-14"},
		{InvoiceNumber: "INV-1", Bank: "CIMB Bank", Status: models.ReceiptNew, ReceiptAmount: d("60"), DateReceipt: "2024-05-13"},
		{InvoiceNumber: "INV-2", Bank: "CIMB Bank", Status: models.ReceiptReconciled, ReceiptAmount: d("15"), DateReceipt: "2024-05-14"},
	}
	report := SummarizeReceipts(receipts, time.Date(2024, 5, 14, 10, 0, 0, 0, time.UTC))
	if !report.TotalAmount.Equal(d("115")) || !report.ReconciledAmount.Equal(d("55")) || report.ReconciledCount != 2 {
		t.Fatalf("unexpected totals: %+v", report)
	}
	if report.TodayCount != 2 || !report.TodayAmount.Equal(d("55")) {
		t.Fatalf("unexpected today figures: %+v", report)
	}
	if len(report.Banks) != 2 || report.Banks[0].Bank != "CIMB Bank" || report.Banks[0].Count != 2 {
		t.Fatalf("unexpected bank summary: %+v", report.Banks)
	}

	bal := InvoiceBalance(models.Invoice{NumberInvoice: "INV-1", AmountDue: models.Ptr(d("100"))}, receipts)
	if !bal.Received.Equal(d("40")) || !bal.Remaining.Equal(d("60")) || len(bal.Receipts) != 2 {
		t.Fatalf("unexpected balance: %+v", bal)
	}
}
