package kpi

import (
	"time"

	"github.com/shopspring/decimal"

	"crm/pkg/models"
)

// Day is one calendar-day bucket of a daily report.
type Day[S any] struct {
	Date  string // yyyy-MM-dd
	Stats S
}

// DailyRow is one entity's month, with a bucket for every day even when
// nothing happened on it.
type DailyRow[S any] struct {
	Name  string
	Days  []Day[S]
	Total S
}

// MonthDays returns the day keys of the month containing t.
func MonthDays(t time.Time) []string {
	r := MonthRange(t)
	var out []string
	for d := r.From; !d.After(r.To); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format(models.DateLayout))
	}
	return out
}

// daily builds one row per name with a bucket per day of month. Items are
// matched to rows by nameOf and to buckets by dayOf; unmatched items are
// ignored.
func daily[T, S any](items []T, month time.Time, names []string, nameOf, dayOf func(T) string, add func(*S, T)) []DailyRow[S] {
	days := MonthDays(month)
	dayIndex := make(map[string]int, len(days))
	for i, d := range days {
		dayIndex[d] = i
	}

	rows := make([]DailyRow[S], len(names))
	rowIndex := make(map[string]int, len(names))
	for i, name := range names {
		rows[i] = DailyRow[S]{Name: name, Days: make([]Day[S], len(days))}
		for j, d := range days {
			rows[i].Days[j].Date = d
		}
		rowIndex[name] = i
	}

	for _, item := range items {
		i, ok := rowIndex[nameOf(item)]
		if !ok {
			continue
		}
		j, ok := dayIndex[dayOf(item)]
		if !ok {
			continue
		}
		add(&rows[i].Days[j].Stats, item)
		add(&rows[i].Total, item)
	}
	return rows
}

// CollectionDay is a collector's activity on one day.
type CollectionDay struct {
	Collected  decimal.Decimal
	Receipts   int
	Reconciled int
}

func (d CollectionDay) SuccessRate() float64 {
	return Rate(d.Reconciled, d.Receipts)
}

// DailyCollections reports each collector's receipts per day of month.
func DailyCollections(receipts []models.Receipt, month time.Time, collectors []string, dt DateType) []DailyRow[CollectionDay] {
	return daily(receipts, month, collectors,
		func(r models.Receipt) string { return r.DebtCollectorName },
		func(r models.Receipt) string { return ReceiptDay(r, dt) },
		func(d *CollectionDay, r models.Receipt) {
			d.Receipts++
			if r.Reconciled() {
				d.Collected = d.Collected.Add(r.ReceiptAmount)
				d.Reconciled++
			}
		})
}

// SalesDay is the invoicing activity of a salesperson or branch on one day.
type SalesDay struct {
	Amount   decimal.Decimal
	Boxes    int
	Invoices int
}

func addSale(d *SalesDay, inv models.Invoice) {
	d.Amount = d.Amount.Add(inv.Amount())
	d.Boxes += inv.Boxes()
	d.Invoices++
}

func invoiceDay(inv models.Invoice) string {
	return models.DayKey(inv.DateInvoice)
}

// DailySales reports each salesperson's invoices per day of month.
func DailySales(invoices []models.Invoice, month time.Time, salespeople []string) []DailyRow[SalesDay] {
	return daily(invoices, month, salespeople,
		func(inv models.Invoice) string { return inv.Salesperson },
		invoiceDay, addSale)
}

// DailyBranches reports each branch's invoices per day of month.
func DailyBranches(invoices []models.Invoice, month time.Time, branches []string) []DailyRow[SalesDay] {
	return daily(invoices, month, branches,
		func(inv models.Invoice) string { return inv.Branch },
		invoiceDay, addSale)
}
