// Package ocr reads text from receipt images using the Google Cloud Vision API.
//
// Receipts store their scanned image as a base64 data URI. The service decodes
// that URI, runs document text detection and suggests the payment amount found
// in the text so the receipt form can be pre-filled.
//
// Required Environment Variables:
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
package ocr

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// OCRService defines the interface for OCR text extraction services.
type OCRService interface {
	// ProcessImage extracts text from raw image bytes.
	ProcessImage(ctx context.Context, image []byte) (*OCRResult, error)

	// ProcessDataURI decodes a receipt image data URI and extracts its text.
	ProcessDataURI(ctx context.Context, uri string) (*OCRResult, error)

	Close() error
}

// OCRResult contains the results of OCR processing with metadata.
type OCRResult struct {
	// Text is the full detected text in reading order.
	Text string `json:"text"`

	// Confidence is the average page confidence (0.0 to 1.0).
	Confidence float32 `json:"confidence"`

	LanguageCodes []string `json:"language_codes,omitempty"`

	// Amount is the best-guess payment amount, set when AmountFound is true.
	Amount      decimal.Decimal `json:"amount"`
	AmountFound bool            `json:"amount_found"`

	ProcessedAt        time.Time     `json:"processed_at"`
	ProcessingDuration time.Duration `json:"processing_duration"`
}
