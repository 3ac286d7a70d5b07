package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"crm/internal/logger"
	"crm/pkg/models"
)

// ReadInvoices parses a CSV stream. The first row is a header and is
// skipped, blank rows are ignored. Rows keep file order so later rows win
// when they are merged by invoice number.
func ReadInvoices(r io.Reader) ([]models.Invoice, error) {
	const op = "ReadInvoices"

	log := logger.WithComponent("csvio")
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var out []models.Invoice
	line := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		line++
		if line == 1 || blank(row) {
			continue
		}
		inv, warnings := RowToInvoice(row)
		for _, w := range warnings {
			log.Warn().Int("line", line).Str("invoice", inv.NumberInvoice).Msg(w)
		}
		out = append(out, inv)
	}
	log.Debug().Int("rows", len(out)).Msg("Parsed invoice CSV")
	return out, nil
}

// WriteInvoices writes a header row followed by one row per invoice.
func WriteInvoices(w io.Writer, invoices []models.Invoice) error {
	const op = "WriteInvoices"

	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	for _, inv := range invoices {
		if err := writer.Write(InvoiceToRow(inv)); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func blank(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}
