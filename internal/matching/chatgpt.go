// Package matching suggests invoices for receipts that were recorded
// without a valid invoice number.
package matching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"crm/internal/logger"
	"crm/pkg/models"
)

var ErrNoChoices = errors.New("no response choices from ChatGPT")

// Matcher links receipts to invoices.
type Matcher interface {
	MatchAll(ctx context.Context, receipts []models.Receipt, invoices []models.Invoice) (*Result, error)
}

// Match is one suggested receipt to invoice link.
type Match struct {
	ReceiptID     string  `json:"receiptId"`
	InvoiceNumber string  `json:"invoiceNumber"`
	Confidence    float64 `json:"confidence"`
	Reason        string  `json:"reason"`
}

// Result contains the outcome of a matching run.
type Result struct {
	Matches        []Match
	Unmatched      []models.Receipt
	TotalReceipts  int
	ProcessingTime time.Duration
}

// matchResponse is the JSON answer requested from the model.
type matchResponse struct {
	Matched        bool    `json:"matched"`
	CandidateIndex int     `json:"candidate_index"`
	Confidence     float64 `json:"confidence"`
	Reason         string  `json:"reason"`
}

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ChatGPTMatcher pre-filters invoices by amount and date and lets ChatGPT
// pick among the candidates.
type ChatGPTMatcher struct {
	client        chatClient
	model         string
	minConfidence float64
	log           zerolog.Logger
}

// NewChatGPTMatcher creates a matcher using the OpenAI API key and model.
func NewChatGPTMatcher(apiKey, model string) (*ChatGPTMatcher, error) {
	const op = "NewChatGPTMatcher"
	if apiKey == "" {
		return nil, fmt.Errorf("%s: OPENAI_API_KEY environment variable is required", op)
	}
	return newMatcher(openai.NewClient(apiKey), model), nil
}

func newMatcher(client chatClient, model string) *ChatGPTMatcher {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &ChatGPTMatcher{
		client:        client,
		model:         model,
		minConfidence: 0.5,
		log:           logger.WithComponent("matching-chatgpt"),
	}
}

// MatchAll processes the unlinked receipts one by one. An invoice is
// suggested for at most one receipt per run. Model failures leave the
// receipt unmatched.
func (m *ChatGPTMatcher) MatchAll(ctx context.Context, receipts []models.Receipt, invoices []models.Invoice) (*Result, error) {
	start := time.Now()
	pending := Unlinked(receipts, invoices)

	m.log.Info().
		Int("receipts", len(pending)).
		Int("invoices", len(invoices)).
		Msg("Starting ChatGPT receipt matching")

	result := &Result{TotalReceipts: len(pending)}
	used := make(map[string]bool)

	for _, r := range pending {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		candidates := FindCandidates(r, invoices, used)
		if len(candidates) == 0 {
			m.log.Debug().Str("receipt_id", r.ID).Msg("No candidate invoices found")
			result.Unmatched = append(result.Unmatched, r)
			continue
		}

		resp, err := m.ask(ctx, r, candidates)
		if err != nil {
			m.log.Warn().
				Err(err).
				Str("receipt_id", r.ID).
				Msg("Failed to get ChatGPT match result, treating as unmatched")
			result.Unmatched = append(result.Unmatched, r)
			continue
		}

		if !resp.Matched || resp.CandidateIndex < 0 || resp.CandidateIndex >= len(candidates) || resp.Confidence < m.minConfidence {
			result.Unmatched = append(result.Unmatched, r)
			continue
		}

		inv := candidates[resp.CandidateIndex].Invoice
		used[inv.NumberInvoice] = true
		result.Matches = append(result.Matches, Match{
			ReceiptID:     r.ID,
			InvoiceNumber: inv.NumberInvoice,
			Confidence:    resp.Confidence,
			Reason:        resp.Reason,
		})
		m.log.Info().
			Str("receipt_id", r.ID).
			Str("invoice_number", inv.NumberInvoice).
			Float64("confidence", resp.Confidence).
			Str("reason", resp.Reason).
			Msg("ChatGPT matched receipt")
	}

	result.ProcessingTime = time.Since(start)
	m.log.Info().
		Int("matched", len(result.Matches)).
		Int("unmatched", len(result.Unmatched)).
		Dur("processing_time", result.ProcessingTime).
		Msg("Receipt matching completed")
	return result, nil
}

func (m *ChatGPTMatcher) ask(ctx context.Context, r models.Receipt, candidates []Candidate) (matchResponse, error) {
	const op = "ask"

	prompt, err := buildPrompt(r, candidates)
	if err != nil {
		return matchResponse{}, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: m.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.1,
		MaxTokens:   500,
	})
	if err != nil {
		return matchResponse{}, fmt.Errorf("%s: ChatGPT request failed: %w", op, err)
	}
	if len(resp.Choices) == 0 {
		return matchResponse{}, fmt.Errorf("%s: %w", op, ErrNoChoices)
	}
	return parseResponse(resp.Choices[0].Message.Content)
}

func buildPrompt(r models.Receipt, candidates []Candidate) (string, error) {
	receiptJSON, err := json.MarshalIndent(map[string]interface{}{
		"date":      r.DateReceipt,
		"amount":    r.ReceiptAmount.StringFixed(2),
		"bank":      r.Bank,
		"client":    r.ClientName,
		"phone":     r.PhoneNumber,
		"collector": r.DebtCollectorName,
		"remark":    r.Remark,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal receipt JSON: %w", err)
	}

	rows := make([]map[string]interface{}, len(candidates))
	for i, c := range candidates {
		rows[i] = map[string]interface{}{
			"index":      i,
			"number":     c.Invoice.NumberInvoice,
			"date":       c.Invoice.DateInvoice,
			"client":     c.Invoice.ClientName,
			"phone":      c.Invoice.PhoneNumber,
			"amount_due": c.Invoice.Amount().StringFixed(2),
			"expected":   c.Expected.StringFixed(2),
			"status":     c.Invoice.StatusInvoice,
			"collector":  c.Invoice.DebtCollectorName,
		}
	}
	candidatesJSON, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal candidates JSON: %w", err)
	}

	return fmt.Sprintf(`Decide which of these invoices the payment receipt settles.

RECEIPT:
%s

CANDIDATE INVOICES:
%s

Consider:
1. Does the amount match the amount due or the expected amount?
2. Is the receipt dated on or after the invoice?
3. Do the client name, phone number and collector agree?
4. Does the remark mention the invoice?

Answer with JSON only, in this format:
{
  "matched": true,
  "candidate_index": 0,
  "confidence": 0.95,
  "reason": "amount and client match"
}

If no invoice fits, set "matched": false and "candidate_index": -1.`, receiptJSON, candidatesJSON), nil
}

// parseResponse decodes the model answer, which may be wrapped in a
// markdown code block.
func parseResponse(content string) (matchResponse, error) {
	cleaned := strings.TrimSpace(content)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
		cleaned = strings.TrimSpace(cleaned)
	}

	var resp matchResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		return matchResponse{}, fmt.Errorf("failed to parse ChatGPT response %q: %w", cleaned, err)
	}
	return resp, nil
}
