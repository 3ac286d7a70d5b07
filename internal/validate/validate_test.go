package validate

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"crm/pkg/models"
)

func TestInvoiceRequiresNumber(t *testing.T) {
	err := Invoice(models.Invoice{NumberInvoice: "  "})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.Field != "numberInvoice" || ve.Message != "is required" {
		t.Fatalf("unexpected error: %+v", ve)
	}
	if err := Invoice(models.Invoice{NumberInvoice: "INV-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReceiptRules(t *testing.T) {
	cases := []struct {
		name    string
		receipt models.Receipt
		field   string
	}{
		{"missing bank", models.Receipt{ReceiptAmount: decimal.NewFromInt(5)}, "bank"},
		{"zero amount", models.Receipt{Bank: "Maybank"}, "receiptAmount"},
		{"negative amount", models.Receipt{Bank: "Maybank", ReceiptAmount: decimal.NewFromInt(-1)}, "receiptAmount"},
		{"valid", models.Receipt{Bank: "Maybank", ReceiptAmount: decimal.RequireFromString("0.01")}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Receipt(tc.receipt)
			if tc.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != tc.field {
				t.Fatalf("expected error on %s, got %v", tc.field, err)
			}
		})
	}
}

func TestIsValidation(t *testing.T) {
	if !IsValidation(New("x", "bad")) {
		t.Fatalf("expected validation error")
	}
	if IsValidation(errors.New("other")) {
		t.Fatalf("plain error is not a validation error")
	}
}
