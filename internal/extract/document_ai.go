// Package extract turns invoice PDFs into candidate invoices using a Google
// Document AI invoice processor. Candidates are added through the invoice
// store, so an extracted invoice whose number already exists is merged into
// the stored record.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"crm/internal/csvio"
	"crm/internal/logger"
	"crm/pkg/models"
)

// MaxDocumentSizeBytes is the maximum document size for online processing (20MB).
const MaxDocumentSizeBytes = 20 * 1024 * 1024

var invoiceNumberPattern = regexp.MustCompile(
	`(?i)\b(?:invoice|inv)\s*(?:no|number|#)?[\s:.#-]*([A-Z0-9/-]*[0-9][A-Z0-9/-]*)`)

// Config selects the Document AI processor.
type Config struct {
	ProjectID   string
	Location    string
	ProcessorID string
	Timeout     time.Duration
}

// Result is an extracted candidate invoice and the per-entity confidence
// reported by Document AI.
type Result struct {
	Invoice    models.Invoice
	Confidence map[string]float32
}

// Processor extracts invoices with Google Document AI.
type Processor struct {
	client *documentai.DocumentProcessorClient
	config Config
	log    zerolog.Logger
}

// NewProcessor creates a Document AI client for cfg using credentials from
// GOOGLE_CREDENTIALS or GOOGLE_APPLICATION_CREDENTIALS.
func NewProcessor(ctx context.Context, cfg Config) (*Processor, error) {
	const op = "NewProcessor"

	if cfg.ProjectID == "" || cfg.ProcessorID == "" {
		return nil, wrap(op, ErrInvalidConfiguration, "GOOGLE_CLOUD_PROJECT and DOCUMENT_AI_PROCESSOR_ID are required")
	}
	if cfg.Location == "" {
		cfg.Location = "us"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	clientOptions := []option.ClientOption{
		option.WithEndpoint(fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)),
	}
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		clientOptions = append(clientOptions, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		clientOptions = append(clientOptions, option.WithCredentialsFile(credFile))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		if len(clientOptions) == 1 {
			return nil, wrap(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, wrap(op, err, fmt.Sprintf("failed to create Document AI client for location: %s", cfg.Location))
	}

	return &Processor{
		client: client,
		config: cfg,
		log:    logger.WithComponent("extract"),
	}, nil
}

// ExtractInvoice sends the PDF to Document AI and maps the returned
// entities onto a candidate invoice.
func (p *Processor) ExtractInvoice(ctx context.Context, pdf io.Reader) (*Result, error) {
	const op = "ExtractInvoice"

	pdfBytes, err := io.ReadAll(pdf)
	if err != nil {
		return nil, wrap(op, err, "failed to read PDF data")
	}
	if len(pdfBytes) > MaxDocumentSizeBytes {
		return nil, wrap(op, ErrDocumentTooLarge, fmt.Sprintf("file size: %d bytes", len(pdfBytes)))
	}
	if !bytes.HasPrefix(pdfBytes, []byte("%PDF")) {
		return nil, wrap(op, ErrInvalidPDF, "missing PDF header")
	}

	processCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	req := &documentaipb.ProcessRequest{
		Name: p.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  pdfBytes,
				MimeType: "application/pdf",
			},
		},
	}

	resp, err := p.client.ProcessDocument(processCtx, req)
	if err != nil {
		return nil, p.processingError(op, err)
	}
	if resp.GetDocument() == nil {
		return nil, wrap(op, ErrProcessingFailed, "no document in response")
	}

	result, err := invoiceFromDocument(resp.GetDocument(), p.log)
	if err != nil {
		return nil, wrap(op, err, "failed to extract invoice data")
	}

	p.log.Info().
		Str("invoice_number", result.Invoice.NumberInvoice).
		Str("client", result.Invoice.ClientName).
		Str("amount_due", result.Invoice.Amount().String()).
		Msg("Document AI extraction completed")
	return result, nil
}

func (p *Processor) processorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		p.config.ProjectID, p.config.Location, p.config.ProcessorID)
}

// processingError maps gRPC status codes to extraction errors.
func (p *Processor) processingError(op string, err error) error {
	var target error
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated:
		target = ErrInvalidCredentials
	case codes.ResourceExhausted:
		target = ErrQuotaExceeded
	case codes.NotFound:
		target = ErrProcessorNotFound
	case codes.InvalidArgument:
		target = ErrInvalidPDF
	case codes.DeadlineExceeded:
		target = context.DeadlineExceeded
	case codes.Canceled:
		target = context.Canceled
	default:
		target = ErrProcessingFailed
	}
	return &ExtractionError{Op: op, Err: target, Details: err.Error(), ProcessorID: p.config.ProcessorID}
}

// Close closes the underlying Document AI client.
func (p *Processor) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

// invoiceFromDocument converts Document AI invoice entities into a
// candidate invoice. Amount due wins over the invoice total.
func invoiceFromDocument(doc *documentaipb.Document, log zerolog.Logger) (*Result, error) {
	result := &Result{Confidence: make(map[string]float32)}
	inv := &result.Invoice

	var total, due *decimal.Decimal
	for _, entity := range doc.GetEntities() {
		kind := entity.GetType()
		value := strings.TrimSpace(entity.GetMentionText())
		result.Confidence[kind] = entity.GetConfidence()

		log.Debug().
			Str("entity_type", kind).
			Str("value", value).
			Float32("confidence", entity.GetConfidence()).
			Msg("Processing Document AI entity")

		switch kind {
		case "invoice_id", "invoice_number":
			inv.NumberInvoice = value
		case "invoice_date":
			if day, ok := entityDate(entity); ok {
				inv.DateInvoice = day
			}
		case "receiver_name", "customer_name", "buyer_name":
			inv.ClientName = value
		case "receiver_address", "ship_to_address":
			if inv.Address == "" {
				inv.Address = strings.Join(strings.Fields(value), " ")
			}
		case "receiver_phone":
			inv.PhoneNumber = value
		case "total_amount":
			if amount, ok := entityMoney(entity); ok {
				total = &amount
			} else {
				log.Warn().Str("raw_value", value).Msg("Failed to extract total amount")
			}
		case "amount_due":
			if amount, ok := entityMoney(entity); ok {
				due = &amount
			} else {
				log.Warn().Str("raw_value", value).Msg("Failed to extract amount due")
			}
		}
	}

	switch {
	case due != nil:
		inv.AmountDue = due
	case total != nil:
		inv.AmountDue = total
	}

	if inv.NumberInvoice == "" {
		if m := invoiceNumberPattern.FindStringSubmatch(doc.GetText()); m != nil && len(m[1]) >= 4 {
			inv.NumberInvoice = m[1]
			result.Confidence["invoice_number_fallback"] = 0.6
			log.Info().Str("fallback_number", m[1]).Msg("Invoice number extracted from document text")
		}
	}
	if inv.NumberInvoice == "" {
		return nil, ErrMissingInvoiceNumber
	}
	return result, nil
}

// entityDate reads a normalized date, falling back to the mention text.
func entityDate(entity *documentaipb.Document_Entity) (string, bool) {
	if d := entity.GetNormalizedValue().GetDateValue(); d != nil && d.GetYear() > 0 {
		t := time.Date(int(d.GetYear()), time.Month(d.GetMonth()), int(d.GetDay()), 0, 0, 0, 0, time.UTC)
		return t.Format(models.DateLayout), true
	}
	key := models.DayKey(entity.GetMentionText())
	return key, key != ""
}

// entityMoney reads a normalized money value, falling back to the mention text.
func entityMoney(entity *documentaipb.Document_Entity) (decimal.Decimal, bool) {
	if m := entity.GetNormalizedValue().GetMoneyValue(); m != nil {
		return decimal.New(m.GetUnits(), 0).Add(decimal.New(int64(m.GetNanos()), -9)), true
	}
	amount, err := csvio.ParseAmount(entity.GetMentionText())
	if err != nil || strings.TrimSpace(entity.GetMentionText()) == "" {
		return decimal.Zero, false
	}
	return amount, true
}
