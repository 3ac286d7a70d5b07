package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"crm/internal/app"
	"crm/internal/logger"
	"crm/pkg/models"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile [receipt-id...]",
	Short: "Review receipts and mark them reconciled",
	Long: `Show the reconciliation list: receipts filtered by status, bank, receipt
date and a free-text term that also searches each receipt's latest chat
message.

Receipt ids given as arguments are marked Reconciled and a system message
is added to their conversation. With --all every listed receipt is marked.`,
	Example: `  # Receipts still waiting for reconciliation
  crm reconcile --status New

  # Receipts paid to Maybank in March
  crm reconcile --bank Maybank --from 2024-03-01 --to 2024-03-31

  # Mark two receipts reconciled
  crm reconcile 6f1c2e1a-... 0b7d9c44-...

  # Preview marking everything currently on hold
  crm reconcile --status "On Hold" --all --dry-run`,
	RunE: withApp(runReconcile),
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	addReceiptFilterFlags(reconcileCmd.Flags())
	reconcileCmd.Flags().Bool("all", false, "Mark every listed receipt reconciled")
	reconcileCmd.Flags().Bool("dry-run", false, "Show what would be marked without saving")
}

func runReconcile(cmd *cobra.Command, a *app.App, args []string) error {
	log := logger.WithComponent("reconcile")
	all, _ := cmd.Flags().GetBool("all")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	filter, err := receiptFilter(cmd.Flags())
	if err != nil {
		return err
	}
	listed := filter.Apply(a.Receipts.List(), a.Conversations.LastMessage)

	ids := args
	if all {
		for _, r := range listed {
			if !r.Reconciled() {
				ids = append(ids, r.ID)
			}
		}
	}
	if len(ids) == 0 {
		if jsonOutput(cmd) {
			return printJSON(cmd, listed)
		}
		return printReceipts(cmd, a, listed)
	}

	log.Info().
		Int("receipts", len(ids)).
		Bool("dry_run", dryRun).
		Msg("Reconciling receipts")

	marked := 0
	for _, id := range ids {
		r, ok := a.Receipts.Get(id)
		if !ok {
			fmt.Fprintf(cmd.ErrOrStderr(), "Skipping %s: receipt not found\n", id)
			continue
		}
		if r.Reconciled() {
			continue
		}
		if dryRun {
			fmt.Fprintf(cmd.OutOrStdout(), "Would reconcile %s (%s, %s)\n", r.ID, r.InvoiceNumber, money(r.ReceiptAmount))
			marked++
			continue
		}
		if _, err := a.Receipts.UpdateStatus(cmd.Context(), id, models.ReceiptReconciled); err != nil {
			return err
		}
		note := fmt.Sprintf("Status changed from %s to %s", r.Status, models.ReceiptReconciled)
		if _, err := a.Conversations.AddMessage(cmd.Context(), id, note, models.SystemSender); err != nil {
			log.Warn().Err(err).Str("receipt", id).Msg("Failed to record reconciliation message")
		}
		marked++
	}

	if dryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "%d receipt(s) would be reconciled\n", marked)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Reconciled %d receipt(s)\n", marked)
	return nil
}
