package kpi

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"crm/pkg/models"
)

type BankSummary struct {
	Bank   string
	Count  int
	Amount decimal.Decimal
}

// ReceiptReport summarizes receipts for the receipt report page.
type ReceiptReport struct {
	TotalAmount      decimal.Decimal
	Count            int
	ReconciledAmount decimal.Decimal
	ReconciledCount  int
	ByStatus         map[models.ReceiptStatus]int
	Banks            []BankSummary // ranked by amount
	TodayAmount      decimal.Decimal
	TodayCount       int
}

// SummarizeReceipts builds the report. Receipts dated on today's calendar
// day count toward the today figures.
func SummarizeReceipts(receipts []models.Receipt, today time.Time) ReceiptReport {
	out := ReceiptReport{ByStatus: map[models.ReceiptStatus]int{}}
	todayKey := today.Format(models.DateLayout)
	for _, r := range receipts {
		out.TotalAmount = out.TotalAmount.Add(r.ReceiptAmount)
		out.Count++
		out.ByStatus[r.Status]++
		if r.Reconciled() {
			out.ReconciledAmount = out.ReconciledAmount.Add(r.ReceiptAmount)
			out.ReconciledCount++
		}
		if strings.HasPrefix(r.DateReceipt, todayKey) {
			out.TodayAmount = out.TodayAmount.Add(r.ReceiptAmount)
			out.TodayCount++
		}
	}
	banks := fold(receipts,
		func(r models.Receipt) string { return r.Bank },
		func(name string) BankSummary { return BankSummary{Bank: name} },
		func(b *BankSummary, r models.Receipt) {
			b.Count++
			b.Amount = b.Amount.Add(r.ReceiptAmount)
		})
	out.Banks = Rank(banks, func(b BankSummary) decimal.Decimal { return b.Amount })
	return out
}

// Balance is what has been received against one invoice.
type Balance struct {
	AmountDue decimal.Decimal
	Received  decimal.Decimal
	Remaining decimal.Decimal
	Receipts  []models.Receipt
}

// InvoiceBalance sums the reconciled receipts recorded against inv.
// Remaining goes negative on overpayment.
func InvoiceBalance(inv models.Invoice, receipts []models.Receipt) Balance {
	out := Balance{AmountDue: inv.Amount()}
	for _, r := range receipts {
		if r.InvoiceNumber != inv.NumberInvoice {
			continue
		}
		out.Receipts = append(out.Receipts, r)
		if r.Reconciled() {
			out.Received = out.Received.Add(r.ReceiptAmount)
		}
	}
	out.Remaining = inv.Amount().Sub(out.Received)
	return out
}
