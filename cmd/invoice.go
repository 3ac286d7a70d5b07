package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"crm/internal/app"
	"crm/internal/csvio"
	"crm/internal/extract"
	"crm/internal/invoices"
	"crm/internal/logger"
	"crm/pkg/models"
)

var invoiceCmd = &cobra.Command{
	Use:   "invoice",
	Short: "Add, edit, import and export invoices",
	Long: `Manage the invoice collection.

Invoices are identified by id for edits and deletes, and by invoice number
as their business key: adding an invoice whose number already exists merges
its non-empty fields into the stored invoice.`,
}

var invoiceAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an invoice or merge it into the invoice with the same number",
	Example: `  crm invoice add --number INV-1001 --date 2024-03-01 --client "Siti Aminah" \
    --amount 1250.00 --phone 012-3456789 --branch KL --salesperson Farid`,
	Args: cobra.NoArgs,
	RunE: withApp(runInvoiceAdd),
}

var invoiceUpdateCmd = &cobra.Command{
	Use:   "update <id|number>",
	Short: "Change fields of a stored invoice",
	Long: `Change the fields given as flags and keep every other field.

Changing the invoice number to one that another invoice already carries
merges this invoice into that one.`,
	Example: `  crm invoice update INV-1001 --status Paid
  crm invoice update 6f1c2e1a-... --number INV-1002`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(runInvoiceUpdate),
}

var invoiceDeleteCmd = &cobra.Command{
	Use:   "delete <id|number>",
	Short: "Delete an invoice",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runInvoiceDelete),
}

var invoiceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List invoices",
	Example: `  crm invoice list --search aminah
  crm invoice list --phone +60123456789
  crm invoice list --status Overdue --json`,
	Args: cobra.NoArgs,
	RunE: withApp(runInvoiceList),
}

var invoiceShowCmd = &cobra.Command{
	Use:   "show <id|number>",
	Short: "Show an invoice with its receipts and balance",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runInvoiceShow),
}

var invoiceImportCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Import invoices from a CSV file",
	Long: `Import invoices from a CSV file with a header row and the columns:

  ` + strings.Join(csvio.Header, ", ") + `

Rows sharing an invoice number are merged together and then merged into the
stored invoice with that number. Rows without a number are skipped. With
--replace the stored invoices are discarded first.`,
	Example: `  crm invoice import march.csv
  crm invoice import full-export.csv --replace`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(runInvoiceImport),
}

var invoiceExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export invoices as CSV or XLSX",
	Example: `  crm invoice export -o invoices.csv
  crm invoice export --format xlsx -o invoices.xlsx`,
	Args: cobra.NoArgs,
	RunE: withApp(runInvoiceExport),
}

var invoiceExtractCmd = &cobra.Command{
	Use:   "extract <pdf-file>",
	Short: "Extract an invoice from a PDF using Google Document AI",
	Long: `Process a PDF invoice with a Google Document AI invoice processor and
print the candidate invoice. With --save the candidate is added like
"invoice add", merging into an invoice with the same number.

Required environment variables:
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string
  GOOGLE_CLOUD_PROJECT - Your Google Cloud project ID
  GOOGLE_CLOUD_LOCATION - Processing location (us, eu, etc.)
  DOCUMENT_AI_PROCESSOR_ID - Your Document AI invoice processor ID`,
	Example: `  crm invoice extract scan.pdf
  crm invoice extract scan.pdf --save --branch KL`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(runInvoiceExtract),
}

type stringField struct {
	flag  string
	usage string
	field func(*models.Invoice) *string
}

var invoiceStringFields = []stringField{
	{"number", "Invoice number", func(i *models.Invoice) *string { return &i.NumberInvoice }},
	{"date", "Invoice date (yyyy-MM-dd)", func(i *models.Invoice) *string { return &i.DateInvoice }},
	{"branch", "Branch", func(i *models.Invoice) *string { return &i.Branch }},
	{"salesperson", "Salesperson", func(i *models.Invoice) *string { return &i.Salesperson }},
	{"collector", "Debt collector", func(i *models.Invoice) *string { return &i.DebtCollectorName }},
	{"client", "Client name", func(i *models.Invoice) *string { return &i.ClientName }},
	{"mykad", "MyKad (national ID) number", func(i *models.Invoice) *string { return &i.MyKadNo }},
	{"phone", "Phone number", func(i *models.Invoice) *string { return &i.PhoneNumber }},
	{"phone2", "Second phone number", func(i *models.Invoice) *string { return &i.PhoneNumber2 }},
	{"address", "Address line 1", func(i *models.Invoice) *string { return &i.Address }},
	{"address2", "Address line 2", func(i *models.Invoice) *string { return &i.Address2 }},
	{"postcode", "Postcode", func(i *models.Invoice) *string { return &i.Postcode }},
	{"city", "City", func(i *models.Invoice) *string { return &i.City }},
	{"state", "State", func(i *models.Invoice) *string { return &i.State }},
	{"country", "Country", func(i *models.Invoice) *string { return &i.Country }},
	{"tracking", "Tracking number", func(i *models.Invoice) *string { return &i.TrackingNo }},
	{"ptp-date", "Promise-to-pay date (yyyy-MM-dd)", func(i *models.Invoice) *string { return &i.PTPDate }},
	{"remark", "Remark", func(i *models.Invoice) *string { return &i.Remark }},
}

func addInvoiceFlags(fs *pflag.FlagSet) {
	for _, f := range invoiceStringFields {
		fs.String(f.flag, "", f.usage)
	}
	fs.String("status", "", "Invoice status (Pending, Paid, Overdue, Cancelled)")
	fs.String("amount", "", "Amount due")
	fs.Int("boxes", 0, "Total boxes")
	fs.Bool("ptp", false, "Client promised to pay")
	fs.String("ptp-amount", "", "Promise-to-pay amount")
}

// applyInvoiceFlags copies every flag the user set onto inv.
func applyInvoiceFlags(fs *pflag.FlagSet, inv *models.Invoice) error {
	for _, f := range invoiceStringFields {
		if fs.Changed(f.flag) {
			v, _ := fs.GetString(f.flag)
			*f.field(inv) = strings.TrimSpace(v)
		}
	}
	if fs.Changed("status") {
		v, _ := fs.GetString("status")
		inv.StatusInvoice = models.InvoiceStatus(strings.TrimSpace(v))
	}
	if fs.Changed("amount") {
		v, _ := fs.GetString("amount")
		amount, err := csvio.ParseAmount(v)
		if err != nil {
			return fmt.Errorf("invalid --amount %q: %w", v, err)
		}
		inv.AmountDue = &amount
	}
	if fs.Changed("boxes") {
		boxes, _ := fs.GetInt("boxes")
		inv.TotalBoxes = &boxes
	}
	if fs.Changed("ptp") {
		ptp, _ := fs.GetBool("ptp")
		inv.PTP = &ptp
	}
	if fs.Changed("ptp-amount") {
		v, _ := fs.GetString("ptp-amount")
		amount, err := csvio.ParseAmount(v)
		if err != nil {
			return fmt.Errorf("invalid --ptp-amount %q: %w", v, err)
		}
		inv.PTPAmount = &amount
	}
	return nil
}

func init() {
	rootCmd.AddCommand(invoiceCmd)
	invoiceCmd.AddCommand(invoiceAddCmd, invoiceUpdateCmd, invoiceDeleteCmd, invoiceListCmd,
		invoiceShowCmd, invoiceImportCmd, invoiceExportCmd, invoiceExtractCmd)

	addInvoiceFlags(invoiceAddCmd.Flags())
	_ = invoiceAddCmd.MarkFlagRequired("number")
	addInvoiceFlags(invoiceUpdateCmd.Flags())

	invoiceListCmd.Flags().String("search", "", "Free-text search across invoice fields")
	invoiceListCmd.Flags().String("phone", "", "Find invoices by phone number")
	invoiceListCmd.Flags().String("status", "", "Only invoices with this status")

	invoiceImportCmd.Flags().Bool("replace", false, "Discard stored invoices before importing")

	invoiceExportCmd.Flags().String("format", "csv", "Output format: csv or xlsx")
	invoiceExportCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")

	invoiceExtractCmd.Flags().Bool("save", false, "Add the extracted invoice to the store")
	invoiceExtractCmd.Flags().Int("timeout", 120, "Processing timeout in seconds")
	addInvoiceFlags(invoiceExtractCmd.Flags())
}

func runInvoiceAdd(cmd *cobra.Command, a *app.App, _ []string) error {
	var inv models.Invoice
	if err := applyInvoiceFlags(cmd.Flags(), &inv); err != nil {
		return err
	}
	warnUnknownOptions(a, inv)

	stored, err := a.Invoices.AddInvoice(cmd.Context(), inv)
	if err != nil {
		return err
	}
	if jsonOutput(cmd) {
		return printJSON(cmd, stored)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved invoice %s (%s)\n", stored.NumberInvoice, stored.ID)
	return nil
}

func runInvoiceUpdate(cmd *cobra.Command, a *app.App, args []string) error {
	inv, ok := resolveInvoice(a, args[0])
	if !ok {
		return fmt.Errorf("invoice %q not found", args[0])
	}
	id := inv.ID
	if err := applyInvoiceFlags(cmd.Flags(), &inv); err != nil {
		return err
	}
	warnUnknownOptions(a, inv)

	stored, found, err := a.Invoices.UpdateInvoice(cmd.Context(), id, inv)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("invoice %q not found", args[0])
	}
	if jsonOutput(cmd) {
		return printJSON(cmd, stored)
	}
	if stored.ID != id {
		fmt.Fprintf(cmd.OutOrStdout(), "Merged into invoice %s (%s)\n", stored.NumberInvoice, stored.ID)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated invoice %s\n", stored.NumberInvoice)
	return nil
}

func runInvoiceDelete(cmd *cobra.Command, a *app.App, args []string) error {
	inv, ok := resolveInvoice(a, args[0])
	if !ok {
		return fmt.Errorf("invoice %q not found", args[0])
	}
	if _, err := a.Invoices.DeleteInvoice(cmd.Context(), inv.ID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted invoice %s\n", inv.NumberInvoice)
	return nil
}

func runInvoiceList(cmd *cobra.Command, a *app.App, _ []string) error {
	search, _ := cmd.Flags().GetString("search")
	phone, _ := cmd.Flags().GetString("phone")
	status, _ := cmd.Flags().GetString("status")

	var list []models.Invoice
	switch {
	case phone != "":
		list = a.Invoices.FindByPhone(phone)
	case search != "":
		list = a.Invoices.Search(search)
	default:
		list = a.Invoices.List()
	}
	if status != "" {
		filtered := list[:0]
		for _, inv := range list {
			if strings.EqualFold(string(inv.StatusInvoice), status) {
				filtered = append(filtered, inv)
			}
		}
		list = filtered
	}

	if jsonOutput(cmd) {
		return printJSON(cmd, list)
	}
	w := newTable(cmd)
	row(w, "ID", "NUMBER", "DATE", "STATUS", "CLIENT", "PHONE", "BRANCH", "SALESPERSON", "AMOUNT DUE")
	for _, inv := range list {
		row(w, inv.ID, inv.NumberInvoice, inv.DateInvoice, inv.StatusInvoice, inv.ClientName,
			inv.PhoneNumber, inv.Branch, inv.Salesperson, money(inv.Amount()))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d invoice(s)\n", len(list))
	return nil
}

func runInvoiceShow(cmd *cobra.Command, a *app.App, args []string) error {
	inv, ok := resolveInvoice(a, args[0])
	if !ok {
		return fmt.Errorf("invoice %q not found", args[0])
	}
	bal := a.Balance(inv)
	if jsonOutput(cmd) {
		return printJSON(cmd, struct {
			Invoice   models.Invoice   `json:"invoice"`
			Received  string           `json:"received"`
			Remaining string           `json:"remaining"`
			Receipts  []models.Receipt `json:"receipts"`
		}{inv, bal.Received.String(), bal.Remaining.String(), bal.Receipts})
	}

	w := newTable(cmd)
	row(w, "Invoice", inv.NumberInvoice)
	row(w, "ID", inv.ID)
	row(w, "Date", inv.DateInvoice)
	row(w, "Status", inv.StatusInvoice)
	row(w, "Client", inv.ClientName)
	row(w, "MyKad", inv.MyKadNo)
	row(w, "Phones", strings.Join(inv.Phones(), ", "))
	row(w, "Address", strings.Join(nonEmpty(inv.Address, inv.Address2, inv.Postcode, inv.City, inv.State, inv.Country), ", "))
	row(w, "Branch", inv.Branch)
	row(w, "Salesperson", inv.Salesperson)
	row(w, "Debt collector", inv.DebtCollectorName)
	row(w, "Boxes", inv.Boxes())
	row(w, "Tracking", inv.TrackingNo)
	if inv.PromisedToPay() {
		ptp := inv.PTPDate
		if inv.PTPAmount != nil {
			ptp += " " + money(*inv.PTPAmount)
		}
		row(w, "Promise to pay", strings.TrimSpace(ptp))
	}
	row(w, "Amount due", money(bal.AmountDue))
	row(w, "Received", money(bal.Received))
	row(w, "Remaining", money(bal.Remaining))
	if err := w.Flush(); err != nil {
		return err
	}

	if len(bal.Receipts) == 0 {
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return printReceipts(cmd, a, bal.Receipts)
}

func runInvoiceImport(cmd *cobra.Command, a *app.App, args []string) error {
	log := logger.WithComponent("invoice")
	replace, _ := cmd.Flags().GetBool("replace")

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer f.Close()

	rows, err := csvio.ReadInvoices(f)
	if err != nil {
		return err
	}

	mode := invoices.ImportMerge
	if replace {
		mode = invoices.ImportReplace
	}
	log.Info().Str("file", args[0]).Int("rows", len(rows)).Bool("replace", replace).Msg("Importing invoices")

	return reportImport(cmd, a, rows, mode)
}

func reportImport(cmd *cobra.Command, a *app.App, rows []models.Invoice, mode invoices.ImportMode) error {
	result, err := a.Invoices.SetInvoices(cmd.Context(), rows, mode)
	if err != nil {
		return err
	}
	if jsonOutput(cmd) {
		return printJSON(cmd, result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d row(s): %d added, %d merged, %d skipped; %d invoice(s) stored\n",
		len(rows), result.Added, result.Merged, result.Skipped, result.Total)
	return nil
}

func runInvoiceExport(cmd *cobra.Command, a *app.App, _ []string) error {
	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")

	w, closeOut, err := createOutput(cmd, outputPath)
	if err != nil {
		return err
	}

	list := a.Invoices.List()
	switch strings.ToLower(format) {
	case "csv":
		err = csvio.WriteInvoices(w, list)
	case "xlsx":
		err = csvio.WriteXLSX(w, csvio.InvoiceSheet(list))
	default:
		err = fmt.Errorf("unknown format %q: use csv or xlsx", format)
	}
	if closeErr := closeOut(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	if outputPath != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d invoice(s) to %s\n", len(list), outputPath)
	}
	return nil
}

func runInvoiceExtract(cmd *cobra.Command, a *app.App, args []string) error {
	log := logger.WithComponent("invoice")
	save, _ := cmd.Flags().GetBool("save")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	if err := a.Config.RequireDocumentAI(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(timeoutSecs)*time.Second)
	defer cancel()

	processor, err := extract.NewProcessor(ctx, extract.Config{
		ProjectID:   a.Config.GoogleCloudProject,
		Location:    a.Config.GoogleCloudLocation,
		ProcessorID: a.Config.DocumentAIProcessorID,
		Timeout:     time.Duration(timeoutSecs) * time.Second,
	})
	if err != nil {
		return err
	}
	defer processor.Close()

	pdfFile, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open PDF file: %w", err)
	}
	defer pdfFile.Close()

	result, err := processor.ExtractInvoice(ctx, pdfFile)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return fmt.Errorf("invoice processing timed out. Try increasing --timeout")
		case errors.Is(err, extract.ErrMissingInvoiceNumber):
			return fmt.Errorf("no invoice number found in %s; add the invoice manually", args[0])
		}
		return err
	}

	inv := result.Invoice
	if err := applyInvoiceFlags(cmd.Flags(), &inv); err != nil {
		return err
	}
	log.Info().Str("file", args[0]).Str("number", inv.NumberInvoice).Bool("save", save).Msg("Invoice extracted")

	if save {
		if inv, err = a.Invoices.AddInvoice(cmd.Context(), inv); err != nil {
			return err
		}
	}
	if jsonOutput(cmd) || !save {
		return printJSON(cmd, struct {
			Invoice    models.Invoice     `json:"invoice"`
			Confidence map[string]float32 `json:"confidence,omitempty"`
		}{inv, result.Confidence})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved invoice %s (%s)\n", inv.NumberInvoice, inv.ID)
	return nil
}

// resolveInvoice finds an invoice by id, falling back to its number.
func resolveInvoice(a *app.App, ref string) (models.Invoice, bool) {
	if inv, ok := a.Invoices.Get(ref); ok {
		return inv, true
	}
	return a.Invoices.FindByNumber(ref)
}

// warnUnknownOptions logs attribution values that are not active options
// in settings. They are stored anyway.
func warnUnknownOptions(a *app.App, inv models.Invoice) {
	log := logger.WithComponent("invoice")
	checks := []struct {
		category models.Category
		value    string
	}{
		{models.CategoryStatuses, string(inv.StatusInvoice)},
		{models.CategoryBranches, inv.Branch},
		{models.CategorySalespeople, inv.Salesperson},
		{models.CategoryDebtCollectors, inv.DebtCollectorName},
	}
	for _, c := range checks {
		active := a.Settings.ActiveValues(c.category)
		if c.value == "" || len(active) == 0 || containsFold(active, c.value) {
			continue
		}
		log.Warn().Str("category", string(c.category)).Str("value", c.value).Msg("Value is not an active option in settings")
	}
}

func containsFold(values []string, v string) bool {
	_, ok := matchFold(values, v)
	return ok
}

// matchFold returns the entry of values equal to v ignoring case.
func matchFold(values []string, v string) (string, bool) {
	for _, s := range values {
		if strings.EqualFold(s, v) {
			return s, true
		}
	}
	return "", false
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
