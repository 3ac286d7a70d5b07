package sheets

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"crm/internal/csvio"
	"crm/pkg/models"
)

func TestExtractSpreadsheetID(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"https://docs.google.com/spreadsheets/d/1AbC-d_9/edit#gid=0", "1AbC-d_9", false},
		{"https://docs.google.com/spreadsheets/d/xyz", "xyz", false},
		{"https://example.com/not-a-sheet", "", true},
	}

	for _, tt := range tests {
		got, err := extractSpreadsheetID(tt.url)
		if (err != nil) != tt.wantErr {
			t.Fatalf("extractSpreadsheetID(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("extractSpreadsheetID(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestDataRange(t *testing.T) {
	if got := dataRange("Invoices"); got != "Invoices!A:V" {
		t.Errorf("dataRange = %q, want Invoices!A:V", got)
	}
}

func TestRowsToInvoices(t *testing.T) {
	values := [][]interface{}{
		toCells(csvio.Header),
		{"2024-03-01", "INV-1", "Pending", "KL", "Aminah", "1,200.50"},
		{},
		{" ", nil},
		{"2024-03-02", "INV-2", "Paid", "PJ", "Bala", 300},
	}

	got := rowsToInvoices(values, zerolog.Nop())
	if len(got) != 2 {
		t.Fatalf("got %d invoices, want 2", len(got))
	}
	if got[0].NumberInvoice != "INV-1" || !got[0].Amount().Equal(decimal.RequireFromString("1200.50")) {
		t.Errorf("first invoice = %+v", got[0])
	}
	if got[1].StatusInvoice != models.InvoicePaid || !got[1].Amount().Equal(decimal.NewFromInt(300)) {
		t.Errorf("second invoice = %+v", got[1])
	}
}

func TestInvoicesToRows(t *testing.T) {
	invs := []models.Invoice{{NumberInvoice: "INV-1", AmountDue: models.Ptr(decimal.NewFromInt(10))}}
	rows := invoicesToRows(invs)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want header plus one", len(rows))
	}
	if rows[0][1] != "Invoice Number" || rows[1][1] != "INV-1" {
		t.Errorf("unexpected rows %v", rows)
	}
	back := rowsToInvoices(rows, zerolog.Nop())
	if len(back) != 1 || back[0].NumberInvoice != "INV-1" {
		t.Errorf("round trip = %+v", back)
	}
}
