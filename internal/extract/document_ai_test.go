package extract

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func entity(kind, mention string) *documentaipb.Document_Entity {
	return &documentaipb.Document_Entity{Type: kind, MentionText: mention, Confidence: 0.9}
}

func TestInvoiceFromDocument(t *testing.T) {
	doc := &documentaipb.Document{
		Entities: []*documentaipb.Document_Entity{
			entity("invoice_id", " INV-2024-001 "),
			entity("invoice_date", "2024-03-05"),
			entity("receiver_name", "Siti Aminah"),
			entity("receiver_address", "12 Jalan Ampang\nKuala Lumpur"),
			entity("total_amount", "RM 1,500.00"),
			entity("amount_due", "RM 1,200.00"),
		},
	}

	result, err := invoiceFromDocument(doc, zerolog.Nop())
	if err != nil {
		t.Fatalf("invoiceFromDocument: %v", err)
	}

	inv := result.Invoice
	if inv.NumberInvoice != "INV-2024-001" {
		t.Errorf("NumberInvoice = %q", inv.NumberInvoice)
	}
	if inv.DateInvoice != "2024-03-05" {
		t.Errorf("DateInvoice = %q", inv.DateInvoice)
	}
	if inv.ClientName != "Siti Aminah" || inv.Address != "12 Jalan Ampang Kuala Lumpur" {
		t.Errorf("client = %q address = %q", inv.ClientName, inv.Address)
	}
	if inv.Amount().String() != "1200" {
		t.Errorf("AmountDue = %s, want 1200", inv.Amount())
	}
	if inv.StatusInvoice != "" || inv.TotalBoxes != nil || inv.PTP != nil {
		t.Errorf("fields the document does not carry must stay unset: %+v", inv)
	}
	if result.Confidence["invoice_id"] != 0.9 {
		t.Errorf("confidence = %v", result.Confidence)
	}
}

func TestInvoiceFromDocumentFallbackNumber(t *testing.T) {
	doc := &documentaipb.Document{
		Text:     "ACME SDN BHD\nInvoice Date: 5 March\nInvoice No: A-7781\n",
		Entities: []*documentaipb.Document_Entity{entity("total_amount", "88.50")},
	}

	result, err := invoiceFromDocument(doc, zerolog.Nop())
	if err != nil {
		t.Fatalf("invoiceFromDocument: %v", err)
	}
	if result.Invoice.NumberInvoice != "A-7781" {
		t.Errorf("NumberInvoice = %q, want A-7781", result.Invoice.NumberInvoice)
	}
	if result.Invoice.Amount().String() != "88.5" {
		t.Errorf("AmountDue = %s", result.Invoice.Amount())
	}
}

func TestInvoiceFromDocumentWithoutNumber(t *testing.T) {
	doc := &documentaipb.Document{Text: "nothing useful"}
	if _, err := invoiceFromDocument(doc, zerolog.Nop()); !errors.Is(err, ErrMissingInvoiceNumber) {
		t.Errorf("err = %v, want ErrMissingInvoiceNumber", err)
	}
}

func TestProcessingError(t *testing.T) {
	p := &Processor{config: Config{ProcessorID: "proc-1"}}
	tests := []struct {
		code codes.Code
		want error
	}{
		{codes.PermissionDenied, ErrInvalidCredentials},
		{codes.ResourceExhausted, ErrQuotaExceeded},
		{codes.NotFound, ErrProcessorNotFound},
		{codes.InvalidArgument, ErrInvalidPDF},
		{codes.DeadlineExceeded, context.DeadlineExceeded},
		{codes.Internal, ErrProcessingFailed},
	}
	for _, tt := range tests {
		err := p.processingError("ExtractInvoice", status.Error(tt.code, "boom"))
		if !errors.Is(err, tt.want) {
			t.Errorf("%v: err = %v, want %v", tt.code, err, tt.want)
		}
	}
}

func TestNewProcessorRequiresConfiguration(t *testing.T) {
	_, err := NewProcessor(context.Background(), Config{ProjectID: "p"})
	if !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("err = %v, want ErrInvalidConfiguration", err)
	}
}
