package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"crm/internal/app"
	"crm/internal/logger"
	"crm/internal/matching"
	"crm/pkg/models"
)

var receiptMatchCmd = &cobra.Command{
	Use:   "match",
	Short: "Suggest invoices for receipts without a valid invoice number",
	Long: `Find receipts whose invoice number is empty or unknown and ask ChatGPT to
pick the invoice each one pays. Invoices are pre-filtered by amount (within
1% of the amount due or the promised amount), invoice date and client name.

With --apply the suggested invoice number and the invoice's client and
attribution fields are written to the receipt, and a system message is
added to its conversation.

Environment Variables:
  OPENAI_API_KEY - OpenAI API key for ChatGPT
  OPENAI_MODEL   - Chat model (default: gpt-4o-mini)`,
	Example: `  crm receipt match
  crm receipt match --apply`,
	Args: cobra.NoArgs,
	RunE: withApp(runReceiptMatch),
}

func init() {
	receiptCmd.AddCommand(receiptMatchCmd)
	receiptMatchCmd.Flags().Bool("apply", false, "Link the matched receipts to their invoices")
}

func runReceiptMatch(cmd *cobra.Command, a *app.App, _ []string) error {
	log := logger.WithComponent("match")
	if err := a.Config.RequireOpenAI(); err != nil {
		return fmt.Errorf("%w. Please set:\n  OPENAI_API_KEY=your-openai-api-key", err)
	}
	matcher, err := matching.NewChatGPTMatcher(a.Config.OpenAIAPIKey, a.Config.OpenAIModel)
	if err != nil {
		return err
	}

	invoiceList := a.Invoices.List()
	result, err := matcher.MatchAll(cmd.Context(), a.Receipts.List(), invoiceList)
	if err != nil {
		return fmt.Errorf("receipt matching failed: %w", err)
	}

	apply, _ := cmd.Flags().GetBool("apply")
	if apply {
		for _, m := range result.Matches {
			if err := linkReceipt(cmd, a, m); err != nil {
				return err
			}
			log.Info().Str("receipt", m.ReceiptID).Str("invoice", m.InvoiceNumber).Msg("Linked receipt to invoice")
		}
	}

	if jsonOutput(cmd) {
		return printJSON(cmd, result)
	}

	w := newTable(cmd)
	row(w, "RECEIPT", "INVOICE", "CONFIDENCE", "REASON")
	for _, m := range result.Matches {
		row(w, m.ReceiptID, m.InvoiceNumber, percent(m.Confidence*100), m.Reason)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	verb := "suggested"
	if apply {
		verb = "linked"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d of %d receipt(s) %s, %d unmatched (%s)\n",
		len(result.Matches), result.TotalReceipts, verb, len(result.Unmatched), result.ProcessingTime.Round(time.Millisecond))
	return nil
}

// linkReceipt points the receipt at the matched invoice and copies the
// invoice fields the receipt is missing.
func linkReceipt(cmd *cobra.Command, a *app.App, m matching.Match) error {
	r, ok := a.Receipts.Get(m.ReceiptID)
	if !ok {
		return nil
	}
	inv, ok := a.Invoices.FindByNumber(m.InvoiceNumber)
	if !ok {
		return nil
	}

	previous := r.InvoiceNumber
	r.InvoiceNumber = inv.NumberInvoice
	for dst, src := range map[*string]string{
		&r.ClientName:        inv.ClientName,
		&r.PhoneNumber:       inv.PhoneNumber,
		&r.DebtCollectorName: inv.DebtCollectorName,
		&r.Salesperson:       inv.Salesperson,
		&r.Branch:            inv.Branch,
	} {
		if *dst == "" {
			*dst = src
		}
	}
	if _, err := a.Receipts.UpdateReceipt(cmd.Context(), r.ID, r); err != nil {
		return err
	}

	note := fmt.Sprintf("Linked to invoice %s (%.0f%% confidence: %s)", inv.NumberInvoice, m.Confidence*100, m.Reason)
	if previous != "" {
		note = fmt.Sprintf("Invoice number changed from %s to %s (%.0f%% confidence: %s)", previous, inv.NumberInvoice, m.Confidence*100, m.Reason)
	}
	if _, err := a.Conversations.AddMessage(cmd.Context(), r.ID, note, models.SystemSender); err != nil {
		log := logger.WithComponent("match")
		log.Warn().Err(err).Str("receipt", r.ID).Msg("Failed to record match message")
	}
	return nil
}
