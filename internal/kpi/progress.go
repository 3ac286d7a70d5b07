package kpi

import (
	"time"

	"github.com/shopspring/decimal"

	"crm/pkg/models"
)

// Progress returns current/target as a percentage capped at 100, or 0 when
// target is not positive.
func Progress(current, target decimal.Decimal) float64 {
	p := Percent(current, target)
	if p > 100 {
		return 100
	}
	return p
}

// Remaining returns how much is left to reach target, never below zero.
func Remaining(current, target decimal.Decimal) decimal.Decimal {
	left := target.Sub(current)
	if left.IsNegative() {
		return decimal.Zero
	}
	return left
}

type Period string

const (
	Daily   Period = "daily"
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
)

// Actuals are the amounts and boxes achieved in the periods containing a
// reference day.
type Actuals struct {
	Amount map[Period]decimal.Decimal
	Boxes  map[Period]int
}

type TargetProgress struct {
	Period    Period
	Current   decimal.Decimal
	Target    decimal.Decimal
	Remaining decimal.Decimal
	Percent   float64
}

type BoxProgress struct {
	Period    Period
	Current   int
	Target    int
	Remaining int
	Percent   float64
}

// AgainstTarget compares actuals with every period of target. Box
// progress is only reported for periods that have a box target.
func AgainstTarget(target models.KPITarget, actuals Actuals) ([]TargetProgress, []BoxProgress) {
	amounts := map[Period]decimal.Decimal{
		Daily:   target.DailyTarget,
		Weekly:  target.WeeklyTarget,
		Monthly: target.MonthlyTarget,
	}
	boxes := map[Period]*int{
		Daily:   target.BoxDailyTarget,
		Weekly:  target.BoxWeeklyTarget,
		Monthly: target.BoxMonthlyTarget,
	}

	var money []TargetProgress
	var box []BoxProgress
	for _, p := range []Period{Daily, Weekly, Monthly} {
		cur := actuals.Amount[p]
		money = append(money, TargetProgress{
			Period:    p,
			Current:   cur,
			Target:    amounts[p],
			Remaining: Remaining(cur, amounts[p]),
			Percent:   Progress(cur, amounts[p]),
		})
		if boxes[p] == nil {
			continue
		}
		want, got := *boxes[p], actuals.Boxes[p]
		box = append(box, BoxProgress{
			Period:    p,
			Current:   got,
			Target:    want,
			Remaining: max(want-got, 0),
			Percent:   Progress(decimal.NewFromInt(int64(got)), decimal.NewFromInt(int64(want))),
		})
	}
	return money, box
}

// periodRanges returns the day, Monday-based week and month containing t.
func periodRanges(t time.Time) map[Period]Range {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	monday := day.AddDate(0, 0, -offset)
	return map[Period]Range{
		Daily:   {From: day, To: day},
		Weekly:  {From: monday, To: monday.AddDate(0, 0, 6)},
		Monthly: MonthRange(day),
	}
}

// CollectionActuals sums reconciled receipts in the periods containing
// asOf. When collector is not empty only that collector's receipts count.
func CollectionActuals(receipts []models.Receipt, asOf time.Time, collector string, dt DateType) Actuals {
	out := Actuals{Amount: map[Period]decimal.Decimal{}, Boxes: map[Period]int{}}
	for p, r := range periodRanges(asOf) {
		total := decimal.Zero
		for _, rc := range receipts {
			if !rc.Reconciled() || (collector != "" && rc.DebtCollectorName != collector) {
				continue
			}
			if r.Contains(ReceiptDay(rc, dt)) {
				total = total.Add(rc.ReceiptAmount)
			}
		}
		out.Amount[p] = total
	}
	return out
}

// SalesActuals sums invoice amounts and boxes in the periods containing
// asOf. Invoices are narrowed with match when it is not nil.
func SalesActuals(invoices []models.Invoice, asOf time.Time, match func(models.Invoice) bool) Actuals {
	out := Actuals{Amount: map[Period]decimal.Decimal{}, Boxes: map[Period]int{}}
	for p, r := range periodRanges(asOf) {
		total, boxes := decimal.Zero, 0
		for _, inv := range invoices {
			if match != nil && !match(inv) {
				continue
			}
			if r.Contains(invoiceDay(inv)) {
				total = total.Add(inv.Amount())
				boxes += inv.Boxes()
			}
		}
		out.Amount[p] = total
		out.Boxes[p] = boxes
	}
	return out
}
