package invoices

import (
	"crm/internal/merge"
	"crm/pkg/models"
)

// Merge overlays the present fields of incoming onto existing. Empty
// strings and nil pointers in incoming never clear stored values, and the
// existing id is always kept.
func Merge(existing, incoming models.Invoice) models.Invoice {
	return merge.Fields(existing, incoming, "ID")
}

// Collapse folds rows sharing an invoice number into one record, in order
// of first appearance. Later rows are merged onto earlier ones.
func Collapse(rows []models.Invoice) []models.Invoice {
	out := make([]models.Invoice, 0, len(rows))
	index := make(map[string]int, len(rows))
	for _, row := range rows {
		if i, ok := index[row.NumberInvoice]; ok {
			out[i] = Merge(out[i], row)
			continue
		}
		index[row.NumberInvoice] = len(out)
		out = append(out, row)
	}
	return out
}
