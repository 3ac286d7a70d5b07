package ocr

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"crm/internal/logger"
)

// MaxImageBytes is the largest image accepted for synchronous annotation.
const MaxImageBytes = 20 * 1024 * 1024

// GoogleVisionOCRService implements OCRService using Google Cloud Vision API.
type GoogleVisionOCRService struct {
	client *vision.ImageAnnotatorClient
	log    zerolog.Logger
}

// NewGoogleVisionOCRService creates a new OCR service with credentials from environment.
// It expects either GOOGLE_CREDENTIALS JSON or a GOOGLE_APPLICATION_CREDENTIALS path.
func NewGoogleVisionOCRService(ctx context.Context) (*GoogleVisionOCRService, error) {
	const op = "NewGoogleVisionOCRService"

	var client *vision.ImageAnnotatorClient
	var err error

	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, WrapOCRError(op, err, "failed to create client with GOOGLE_CREDENTIALS")
		}
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credFile))
		if err != nil {
			return nil, WrapOCRError(op, err, "failed to create client with GOOGLE_APPLICATION_CREDENTIALS")
		}
	} else {
		client, err = vision.NewImageAnnotatorClient(ctx)
		if err != nil {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
	}

	return NewGoogleVisionOCRServiceWithClient(client), nil
}

// NewGoogleVisionOCRServiceWithClient creates a new OCR service with an explicit client.
func NewGoogleVisionOCRServiceWithClient(client *vision.ImageAnnotatorClient) *GoogleVisionOCRService {
	return &GoogleVisionOCRService{
		client: client,
		log:    logger.WithComponent("ocr"),
	}
}

// ProcessDataURI decodes uri and extracts the receipt text.
func (g *GoogleVisionOCRService) ProcessDataURI(ctx context.Context, uri string) (*OCRResult, error) {
	const op = "ProcessDataURI"

	data, mime, err := DecodeDataURI(uri)
	if err != nil {
		return nil, WrapOCRError(op, err, "")
	}
	g.log.Debug().Str("mime", mime).Int("bytes", len(data)).Msg("Decoded receipt image")
	return g.ProcessImage(ctx, data)
}

// ProcessImage extracts text from an image and guesses the payment amount.
func (g *GoogleVisionOCRService) ProcessImage(ctx context.Context, image []byte) (*OCRResult, error) {
	const op = "ProcessImage"
	startTime := time.Now()

	if len(image) == 0 {
		return nil, WrapOCRError(op, ErrEmptyDocument, "no image data")
	}
	if len(image) > MaxImageBytes {
		return nil, WrapOCRError(op, ErrImageTooLarge, fmt.Sprintf("image size: %d bytes", len(image)))
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: image},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	}

	resp, err := g.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.Responses) == 0 {
		return nil, WrapOCRError(op, ErrOCRFailed, "no response from Vision API")
	}

	result, err := resultFromResponse(resp.Responses[0])
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to process Vision API response")
	}

	result.ProcessedAt = time.Now()
	result.ProcessingDuration = result.ProcessedAt.Sub(startTime)

	g.log.Info().
		Int("text_length", len(result.Text)).
		Bool("amount_found", result.AmountFound).
		Dur("duration", result.ProcessingDuration).
		Msg("Receipt image processed")
	return result, nil
}

// resultFromResponse collects text, page confidence and detected languages
// from a single image annotation.
func resultFromResponse(resp *visionpb.AnnotateImageResponse) (*OCRResult, error) {
	if resp.GetError() != nil {
		return nil, fmt.Errorf("%w: %s", ErrOCRFailed, resp.GetError().GetMessage())
	}

	annotation := resp.GetFullTextAnnotation()
	text := annotation.GetText()
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}

	var confidenceSum float32
	languageSet := make(map[string]bool)
	pages := annotation.GetPages()
	for _, page := range pages {
		confidenceSum += page.GetConfidence()
		for _, lang := range page.GetProperty().GetDetectedLanguages() {
			if lang.GetLanguageCode() != "" {
				languageSet[lang.GetLanguageCode()] = true
			}
		}
	}

	var avgConfidence float32
	if len(pages) > 0 {
		avgConfidence = confidenceSum / float32(len(pages))
	}

	languages := make([]string, 0, len(languageSet))
	for lang := range languageSet {
		languages = append(languages, lang)
	}
	sort.Strings(languages)

	amount, found := GuessAmount(text)
	return &OCRResult{
		Text:          text,
		Confidence:    avgConfidence,
		LanguageCodes: languages,
		Amount:        amount,
		AmountFound:   found,
	}, nil
}

// Close closes the underlying Vision client.
func (g *GoogleVisionOCRService) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
