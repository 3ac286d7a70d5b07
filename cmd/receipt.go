package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"crm/internal/app"
	"crm/internal/receipts"
	"crm/pkg/models"
)

var receiptCmd = &cobra.Command{
	Use:   "receipt",
	Short: "Record and manage payment receipts",
}

var receiptAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a payment receipt",
	Long: `Record a payment receipt. With --invoice the invoice number, client,
phone, debt collector, salesperson and branch are copied from that invoice.

With --image the receipt image is stored on the receipt. When --amount is
omitted and --ocr is set, the amount is read from the image with Google
Cloud Vision.`,
	Example: `  crm receipt add --invoice INV-1001 --bank Maybank --amount 500 --date 2024-03-04
  crm receipt add --invoice INV-1001 --bank CIMB --image slip.jpg --ocr`,
	Args: cobra.NoArgs,
	RunE: withApp(runReceiptAdd),
}

var receiptUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change fields of a receipt",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runReceiptUpdate),
}

var receiptStatusCmd = &cobra.Command{
	Use:     "status <id> <status>",
	Short:   "Move a receipt to another status",
	Example: `  crm receipt status 6f1c2e1a-... "On Hold"`,
	Args:    cobra.ExactArgs(2),
	RunE:    withApp(runReceiptStatus),
}

var receiptDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a receipt",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runReceiptDelete),
}

var receiptListCmd = &cobra.Command{
	Use:   "list",
	Short: "List receipts",
	Example: `  crm receipt list --status New
  crm receipt list --from 2024-03-01 --to 2024-03-31 --bank Maybank
  crm receipt list --search "transfer pending"`,
	Args: cobra.NoArgs,
	RunE: withApp(runReceiptList),
}

func addReceiptFlags(fs *pflag.FlagSet) {
	fs.String("invoice", "", "Invoice number the payment is for")
	fs.String("date", "", "Receipt date (yyyy-MM-dd)")
	fs.String("bank", "", "Bank the payment was made to")
	fs.String("amount", "", "Amount received")
	fs.String("status", "", "Receipt status (New, On Hold, Cancelled, Reconciled)")
	fs.String("remark", "", "Remark")
	fs.String("image", "", "Receipt image file (JPEG, PNG or GIF)")
	fs.String("client", "", "Client name")
	fs.String("phone", "", "Client phone number")
	fs.String("collector", "", "Debt collector")
	fs.String("salesperson", "", "Salesperson")
	fs.String("branch", "", "Branch")
}

func addReceiptFilterFlags(fs *pflag.FlagSet) {
	fs.String("search", "", "Free-text search across receipt fields and the latest chat message")
	fs.String("status", "", "Only receipts with this status")
	fs.String("bank", "", "Only receipts paid to this bank")
	fs.String("from", "", "First receipt date (yyyy-MM-dd)")
	fs.String("to", "", "Last receipt date (yyyy-MM-dd)")
}

func init() {
	rootCmd.AddCommand(receiptCmd)
	receiptCmd.AddCommand(receiptAddCmd, receiptUpdateCmd, receiptStatusCmd, receiptDeleteCmd, receiptListCmd)

	addReceiptFlags(receiptAddCmd.Flags())
	receiptAddCmd.Flags().Bool("ocr", false, "Read the amount from --image when --amount is omitted")
	_ = receiptAddCmd.MarkFlagRequired("bank")
	addReceiptFlags(receiptUpdateCmd.Flags())
	addReceiptFilterFlags(receiptListCmd.Flags())
}

// applyReceiptFlags copies every flag the user set onto r.
func applyReceiptFlags(fs *pflag.FlagSet, r *models.Receipt) error {
	text := map[string]*string{
		"invoice":     &r.InvoiceNumber,
		"date":        &r.DateReceipt,
		"bank":        &r.Bank,
		"remark":      &r.Remark,
		"client":      &r.ClientName,
		"phone":       &r.PhoneNumber,
		"collector":   &r.DebtCollectorName,
		"salesperson": &r.Salesperson,
		"branch":      &r.Branch,
	}
	for name, field := range text {
		if fs.Changed(name) {
			v, _ := fs.GetString(name)
			*field = strings.TrimSpace(v)
		}
	}
	if fs.Changed("status") {
		v, _ := fs.GetString("status")
		r.Status = models.ReceiptStatus(strings.TrimSpace(v))
	}
	if fs.Changed("amount") {
		v, _ := fs.GetString("amount")
		amount, err := parseDecimal("amount", v)
		if err != nil {
			return err
		}
		r.ReceiptAmount = amount
	}
	if fs.Changed("image") {
		path, _ := fs.GetString("image")
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}
		if r.ImageURL, err = receipts.ImageDataURI(data); err != nil {
			return err
		}
	}
	return nil
}

func runReceiptAdd(cmd *cobra.Command, a *app.App, _ []string) error {
	var r models.Receipt
	if number, _ := cmd.Flags().GetString("invoice"); number != "" {
		inv, ok := a.Invoices.FindByNumber(strings.TrimSpace(number))
		if ok {
			r = receipts.NewFromInvoice(inv)
		} else {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: invoice %s is not stored; recording the receipt anyway\n", number)
		}
	}
	if err := applyReceiptFlags(cmd.Flags(), &r); err != nil {
		return err
	}

	useOCR, _ := cmd.Flags().GetBool("ocr")
	if useOCR && !cmd.Flags().Changed("amount") && r.ImageURL != "" {
		result, err := recognizeDataURI(cmd, r.ImageURL)
		if err != nil {
			return err
		}
		if !result.AmountFound {
			return fmt.Errorf("no amount found on the receipt image; pass --amount")
		}
		r.ReceiptAmount = result.Amount
		fmt.Fprintf(cmd.ErrOrStderr(), "Amount read from image: %s\n", money(result.Amount))
	}

	stored, err := a.Receipts.AddReceipt(cmd.Context(), r)
	if err != nil {
		return err
	}
	if jsonOutput(cmd) {
		return printJSON(cmd, stored)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Recorded receipt %s for %s\n", stored.ID, money(stored.ReceiptAmount))
	return nil
}

func runReceiptUpdate(cmd *cobra.Command, a *app.App, args []string) error {
	r, ok := a.Receipts.Get(args[0])
	if !ok {
		return fmt.Errorf("receipt %q not found", args[0])
	}
	if err := applyReceiptFlags(cmd.Flags(), &r); err != nil {
		return err
	}
	found, err := a.Receipts.UpdateReceipt(cmd.Context(), args[0], r)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("receipt %q not found", args[0])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated receipt %s\n", args[0])
	return nil
}

func runReceiptStatus(cmd *cobra.Command, a *app.App, args []string) error {
	status := models.ReceiptStatus(strings.TrimSpace(args[1]))
	if active := a.Settings.ActiveValues(models.CategoryReceiptStatuses); len(active) > 0 {
		canonical, ok := matchFold(active, string(status))
		if !ok {
			return fmt.Errorf("unknown receipt status %q: use one of %s", status, strings.Join(active, ", "))
		}
		status = models.ReceiptStatus(canonical)
	}
	found, err := a.Receipts.UpdateStatus(cmd.Context(), args[0], status)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("receipt %q not found", args[0])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Receipt %s is now %s\n", args[0], status)
	return nil
}

func runReceiptDelete(cmd *cobra.Command, a *app.App, args []string) error {
	found, err := a.Receipts.DeleteReceipt(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("receipt %q not found", args[0])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted receipt %s\n", args[0])
	return nil
}

func runReceiptList(cmd *cobra.Command, a *app.App, _ []string) error {
	filter, err := receiptFilter(cmd.Flags())
	if err != nil {
		return err
	}
	list := filter.Apply(a.Receipts.List(), a.Conversations.LastMessage)
	if jsonOutput(cmd) {
		return printJSON(cmd, list)
	}
	return printReceipts(cmd, a, list)
}

func receiptFilter(fs *pflag.FlagSet) (receipts.Filter, error) {
	var f receipts.Filter
	f.Term, _ = fs.GetString("search")
	status, _ := fs.GetString("status")
	f.Status = models.ReceiptStatus(status)
	f.Bank, _ = fs.GetString("bank")

	for name, dst := range map[string]*time.Time{"from": &f.From, "to": &f.To} {
		raw, _ := fs.GetString(name)
		if raw == "" {
			continue
		}
		t, ok := models.ParseDate(raw)
		if !ok {
			return f, fmt.Errorf("invalid --%s %q: use yyyy-MM-dd", name, raw)
		}
		*dst = t
	}
	return f, nil
}

func printReceipts(cmd *cobra.Command, a *app.App, list []models.Receipt) error {
	w := newTable(cmd)
	row(w, "ID", "DATE", "INVOICE", "CLIENT", "BANK", "AMOUNT", "STATUS", "COLLECTOR", "LAST MESSAGE")
	total := map[bool]int{}
	for _, r := range list {
		date := r.DateReceipt
		if date == "" {
			date = r.CreatedAt.Format(models.DateLayout)
		}
		row(w, r.ID, date, r.InvoiceNumber, r.ClientName, r.Bank, money(r.ReceiptAmount), r.Status,
			r.DebtCollectorName, truncate(a.Conversations.LastMessage(r.ID), 40))
		total[r.Reconciled()]++
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d receipt(s), %d reconciled\n", len(list), total[true])
	return nil
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}
