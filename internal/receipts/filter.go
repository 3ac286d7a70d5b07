package receipts

import (
	"strings"
	"time"

	"crm/internal/kpi"
	"crm/pkg/models"
)

// Filter narrows the reconciliation list. Zero fields do not filter.
type Filter struct {
	Term   string
	Status models.ReceiptStatus
	Bank   string
	From   time.Time
	To     time.Time
}

// Apply returns the receipts matching f. lastMessage supplies the latest
// chat message of a receipt so it can be searched too; it may be nil.
func (f Filter) Apply(receipts []models.Receipt, lastMessage func(receiptID string) string) []models.Receipt {
	term := strings.ToLower(strings.TrimSpace(f.Term))
	var out []models.Receipt
	for _, r := range receipts {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.Bank != "" && r.Bank != f.Bank {
			continue
		}
		if !f.inRange(r) {
			continue
		}
		if term != "" && !matches(r, term, lastMessage) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (f Filter) inRange(r models.Receipt) bool {
	return kpi.Range{From: f.From, To: f.To}.Contains(kpi.ReceiptDay(r, kpi.ByReceiptDate))
}

func matches(r models.Receipt, term string, lastMessage func(string) string) bool {
	fields := []string{
		r.InvoiceNumber, r.ClientName, r.PhoneNumber, r.Bank, r.Remark,
		r.DebtCollectorName, r.Salesperson, string(r.Status), r.ReceiptAmount.String(),
	}
	if lastMessage != nil {
		fields = append(fields, lastMessage(r.ID))
	}
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}
