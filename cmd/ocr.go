package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"crm/internal/app"
	"crm/internal/logger"
	"crm/internal/ocr"
)

var receiptOCRCmd = &cobra.Command{
	Use:   "ocr <receipt-id|image-file>",
	Short: "Read the text and amount of a receipt image with Google Cloud Vision",
	Long: `Run Google Cloud Vision document text detection on a receipt image and
print the detected text with the suggested payment amount.

The argument is either the id of a stored receipt that has an image or the
path of an image file. With --apply the suggested amount is written to the
stored receipt.

Required environment variables:
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string`,
	Example: `  crm receipt ocr slip.jpg
  crm receipt ocr 6f1c2e1a-... --apply`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(runReceiptOCR),
}

func init() {
	receiptCmd.AddCommand(receiptOCRCmd)

	receiptOCRCmd.Flags().Bool("apply", false, "Store the suggested amount on the receipt")
	receiptOCRCmd.Flags().Int("timeout", 60, "Processing timeout in seconds")
}

func runReceiptOCR(cmd *cobra.Command, a *app.App, args []string) error {
	log := logger.WithComponent("ocr")
	apply, _ := cmd.Flags().GetBool("apply")

	r, isReceipt := a.Receipts.Get(args[0])
	var result *ocr.OCRResult
	var err error
	switch {
	case isReceipt && r.ImageURL == "":
		return fmt.Errorf("receipt %s has no image", r.ID)
	case isReceipt:
		result, err = recognizeDataURI(cmd, r.ImageURL)
	case apply:
		return fmt.Errorf("--apply needs a receipt id")
	default:
		result, err = recognizeFile(cmd, args[0], log)
	}
	if err != nil {
		return err
	}

	if apply {
		if !result.AmountFound {
			return fmt.Errorf("no amount found on the receipt image")
		}
		r.ReceiptAmount = result.Amount
		if _, err := a.Receipts.UpdateReceipt(cmd.Context(), r.ID, r); err != nil {
			return err
		}
		log.Info().Str("receipt", r.ID).Str("amount", result.Amount.String()).Msg("Receipt amount updated from image")
	}

	if jsonOutput(cmd) {
		return printJSON(cmd, result)
	}
	out := cmd.OutOrStdout()
	if result.AmountFound {
		fmt.Fprintf(out, "Suggested amount: %s\n", money(result.Amount))
	} else {
		fmt.Fprintln(out, "Suggested amount: none found")
	}
	if result.Confidence > 0 {
		fmt.Fprintf(out, "Confidence: %.1f%%\n", result.Confidence*100)
	}
	if len(result.LanguageCodes) > 0 {
		fmt.Fprintf(out, "Languages: %s\n", strings.Join(result.LanguageCodes, ", "))
	}
	fmt.Fprintf(out, "\n=== Extracted Text ===\n\n%s\n", result.Text)
	return nil
}

func recognizeFile(cmd *cobra.Command, path string, log zerolog.Logger) (*ocr.OCRResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no receipt or image file named %s", path)
		}
		return nil, fmt.Errorf("error accessing image file: %w", err)
	}
	if info.Size() > ocr.MaxImageBytes {
		return nil, fmt.Errorf("image file too large (%d bytes). Maximum size is %d bytes (20MB)", info.Size(), ocr.MaxImageBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}

	log.Info().Str("file", path).Int64("size", info.Size()).Msg("Processing receipt image")
	return recognize(cmd, func(ctx context.Context, svc ocr.OCRService) (*ocr.OCRResult, error) {
		return svc.ProcessImage(ctx, data)
	})
}

func recognizeDataURI(cmd *cobra.Command, uri string) (*ocr.OCRResult, error) {
	return recognize(cmd, func(ctx context.Context, svc ocr.OCRService) (*ocr.OCRResult, error) {
		return svc.ProcessDataURI(ctx, uri)
	})
}

// recognize runs fn against a Vision client bounded by the --timeout flag.
func recognize(cmd *cobra.Command, fn func(context.Context, ocr.OCRService) (*ocr.OCRResult, error)) (*ocr.OCRResult, error) {
	log := logger.WithComponent("ocr")

	timeoutSecs := 60
	if f := cmd.Flags().Lookup("timeout"); f != nil {
		timeoutSecs, _ = cmd.Flags().GetInt("timeout")
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(timeoutSecs)*time.Second)
	defer cancel()

	svc, err := createOCRService(ctx, log)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := svc.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close OCR service")
		}
	}()

	result, err := fn(ctx, svc)
	if err != nil {
		return nil, handleOCRError(err, log)
	}
	return result, nil
}

// createOCRService creates and configures the OCR service
func createOCRService(ctx context.Context, log zerolog.Logger) (ocr.OCRService, error) {
	hasCredentials := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" || os.Getenv("GOOGLE_CREDENTIALS") != ""
	if !hasCredentials {
		log.Error().Msg("Google Cloud credentials not configured")
		return nil, fmt.Errorf("Google Cloud credentials not configured. Please set one of:\n\n" +
			"1. Export GOOGLE_APPLICATION_CREDENTIALS with path to service account JSON:\n" +
			"   export GOOGLE_APPLICATION_CREDENTIALS=/path/to/service-account-key.json\n\n" +
			"2. Export GOOGLE_CREDENTIALS with inline JSON:\n" +
			"   export GOOGLE_CREDENTIALS='{\"type\":\"service_account\",\"project_id\":\"your-project\",...}'\n\n" +
			"3. Check that your .env file contains the credentials variables")
	}

	svc, err := ocr.NewGoogleVisionOCRService(ctx)
	if err != nil {
		log.Error().
			Err(err).
			Msg("Failed to create OCR service")
		return nil, fmt.Errorf("failed to create OCR service: %w", err)
	}

	log.Debug().Msg("OCR service created successfully")
	return svc, nil
}

// handleOCRError provides user-friendly error messages for OCR failures
func handleOCRError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("OCR processing failed")

	errStr := err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("OCR processing timed out. Try increasing --timeout")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("OCR processing was canceled")
	case errors.Is(err, ocr.ErrImageTooLarge):
		return fmt.Errorf("image is too large (maximum 20MB)")
	case errors.Is(err, ocr.ErrInvalidDataURI), errors.Is(err, ocr.ErrUnsupportedImage):
		return fmt.Errorf("the stored receipt image is not a readable image: %w", err)
	case errors.Is(err, ocr.ErrEmptyDocument):
		return fmt.Errorf("no readable text found in the image")
	case strings.Contains(errStr, "Unauthenticated") ||
		strings.Contains(errStr, "invalid_grant") ||
		strings.Contains(errStr, "transport: per-RPC creds failed"):
		return fmt.Errorf("Google Cloud authentication failed. Please check GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS: %v", err)
	case strings.Contains(errStr, "PERMISSION_DENIED"):
		return fmt.Errorf("permission denied. Please ensure your Google Cloud service account has the 'Cloud Vision API User' role")
	case strings.Contains(errStr, "QUOTA_EXCEEDED") || strings.Contains(errStr, "quota"):
		return fmt.Errorf("Google Cloud Vision API quota exceeded. Check your project quotas in the Google Cloud Console")
	default:
		return fmt.Errorf("OCR processing failed: %w", err)
	}
}
