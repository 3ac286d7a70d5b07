package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"crm/internal/app"
	"crm/internal/csvio"
	"crm/internal/kpi"
	"crm/pkg/models"
)

var kpiCmd = &cobra.Command{
	Use:   "kpi",
	Short: "Collection and sales dashboards",
	Long: `Report collection and sales KPIs computed from the stored invoices and
receipts. Only reconciled receipts count as collected.`,
}

var kpiDashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Overview of invoices, receipts and the top performers",
	Args:  cobra.NoArgs,
	RunE:  withApp(runKPIDashboard),
}

var kpiCollectorsCmd = &cobra.Command{
	Use:   "collectors",
	Short: "Debt collector performance and leaderboard",
	Example: `  crm kpi collectors --month 2024-03
  crm kpi collectors --collector Aina --collector Hafiz --from 2024-03-01 --to 2024-03-15 --date-type created`,
	Args: cobra.NoArgs,
	RunE: withApp(runKPICollectors),
}

var kpiSalesCmd = &cobra.Command{
	Use:     "salespeople",
	Aliases: []string{"sales"},
	Short:   "Salesperson performance and leaderboard",
	Args:    cobra.NoArgs,
	RunE:    withApp(runKPISales),
}

var kpiBranchesCmd = &cobra.Command{
	Use:   "branches",
	Short: "Branch performance and leaderboard",
	Args:  cobra.NoArgs,
	RunE:  withApp(runKPIBranches),
}

var kpiReceiptsCmd = &cobra.Command{
	Use:   "receipts",
	Short: "Receipt totals by status and bank",
	Args:  cobra.NoArgs,
	RunE:  withApp(runKPIReceipts),
}

var kpiDailyCmd = &cobra.Command{
	Use:   "daily <collectors|salespeople|branches>",
	Short: "Day-by-day report for a month",
	Long: `Print one row per active collector, salesperson or branch with a column
for every day of --month (default: the current month).`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"collectors", "salespeople", "branches"},
	RunE:      withApp(runKPIDaily),
}

var kpiProgressCmd = &cobra.Command{
	Use:   "progress <type>",
	Short: "Progress against a KPI target",
	Long: `Compare today's, this week's and this month's actuals with a KPI target.
Types: company and individual measure reconciled receipts; company-sales,
salesperson and branch-company measure invoiced amounts and boxes.`,
	Example: `  crm kpi progress company
  crm kpi progress individual --collector Aina
  crm kpi progress salesperson --salesperson Farid --as-of 2024-03-15`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(runKPIProgress),
}

func addKPIFilterFlags(fs *pflag.FlagSet) {
	fs.String("from", "", "First day (yyyy-MM-dd)")
	fs.String("to", "", "Last day (yyyy-MM-dd)")
	fs.String("month", "", "Whole calendar month (yyyy-MM); overrides --from/--to")
}

func init() {
	rootCmd.AddCommand(kpiCmd)
	kpiCmd.AddCommand(kpiDashboardCmd, kpiCollectorsCmd, kpiSalesCmd, kpiBranchesCmd,
		kpiReceiptsCmd, kpiDailyCmd, kpiProgressCmd)

	kpiDashboardCmd.Flags().Int("top", 0, "Entries per top list (default: CRM_DASHBOARD_TOP)")

	for _, c := range []*cobra.Command{kpiCollectorsCmd, kpiSalesCmd, kpiBranchesCmd} {
		addKPIFilterFlags(c.Flags())
		c.Flags().Int("top", 0, "Leaderboard size (default: CRM_LEADERBOARD_SIZE)")
		c.Flags().String("xlsx", "", "Also write the leaderboard to this XLSX file")
	}
	kpiCollectorsCmd.Flags().StringSlice("collector", nil, "Only these debt collectors (repeatable)")
	kpiCollectorsCmd.Flags().String("date-type", "receipt", "Date used for filtering: receipt or created")
	kpiSalesCmd.Flags().StringSlice("salesperson", nil, "Only these salespeople (repeatable)")
	kpiSalesCmd.Flags().StringSlice("branch", nil, "Only these branches (repeatable)")
	kpiBranchesCmd.Flags().StringSlice("branch", nil, "Only these branches (repeatable)")

	addKPIFilterFlags(kpiReceiptsCmd.Flags())

	kpiDailyCmd.Flags().String("month", "", "Month to report (yyyy-MM, default: current month)")
	kpiDailyCmd.Flags().String("date-type", "receipt", "Receipt date used for collectors: receipt or created")

	kpiProgressCmd.Flags().String("collector", "", "Debt collector for individual targets")
	kpiProgressCmd.Flags().String("salesperson", "", "Salesperson for salesperson targets")
	kpiProgressCmd.Flags().String("as-of", "", "Reference day (yyyy-MM-dd, default: today)")
	kpiProgressCmd.Flags().String("date-type", "receipt", "Receipt date used for collections: receipt or created")
}

// kpiRange reads --month or --from/--to into a day range.
func kpiRange(fs *pflag.FlagSet) (kpi.Range, error) {
	if month, _ := fs.GetString("month"); month != "" {
		t, err := parseMonth(month)
		if err != nil {
			return kpi.Range{}, err
		}
		return kpi.MonthRange(t), nil
	}
	var r kpi.Range
	for name, dst := range map[string]*time.Time{"from": &r.From, "to": &r.To} {
		raw, _ := fs.GetString(name)
		if raw == "" {
			continue
		}
		t, ok := models.ParseDate(raw)
		if !ok {
			return r, fmt.Errorf("invalid --%s %q: use yyyy-MM-dd", name, raw)
		}
		*dst = t
	}
	return r, nil
}

func parseMonth(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now(), nil
	}
	t, err := time.Parse("2006-01", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --month %q: use yyyy-MM", raw)
	}
	return t, nil
}

func parseDateType(fs *pflag.FlagSet) (kpi.DateType, error) {
	raw, _ := fs.GetString("date-type")
	switch strings.ToLower(raw) {
	case "", "receipt", strings.ToLower(string(kpi.ByReceiptDate)):
		return kpi.ByReceiptDate, nil
	case "created", strings.ToLower(string(kpi.ByCreatedDate)):
		return kpi.ByCreatedDate, nil
	}
	return "", fmt.Errorf("invalid --date-type %q: use receipt or created", raw)
}

func sizeFlag(cmd *cobra.Command, fallback int) int {
	if n, _ := cmd.Flags().GetInt("top"); n > 0 {
		return n
	}
	return fallback
}

// writeLeaderboard exports sheet when --xlsx is set.
func writeLeaderboard(cmd *cobra.Command, sheet csvio.Sheet) error {
	path, _ := cmd.Flags().GetString("xlsx")
	if path == "" {
		return nil
	}
	out, closeFn, err := createOutput(cmd, path)
	if err != nil {
		return err
	}
	err = csvio.WriteXLSX(out, sheet)
	if closeErr := closeFn(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Leaderboard written to %s\n", path)
	return nil
}

func runKPIDashboard(cmd *cobra.Command, a *app.App, _ []string) error {
	d := kpi.BuildDashboard(a.Invoices.List(), a.Receipts.List(), sizeFlag(cmd, a.Config.DashboardTopN))
	if jsonOutput(cmd) {
		return printJSON(cmd, d)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Invoices:        %d (%s, %d boxes, %.1f boxes/invoice)\n",
		d.Invoices.Count, money(d.Invoices.TotalAmount), d.Invoices.TotalBoxes, d.Invoices.AverageBoxes())
	for _, s := range []models.InvoiceStatus{models.InvoicePending, models.InvoicePaid, models.InvoiceOverdue, models.InvoiceCancelled} {
		fmt.Fprintf(out, "  %-14s %d\n", s, d.Invoices.ByStatus[s])
	}
	fmt.Fprintf(out, "Receipts:        %d (%s)\n", d.Receipts.Count, money(d.Receipts.TotalAmount))
	for _, s := range []models.ReceiptStatus{models.ReceiptNew, models.ReceiptOnHold, models.ReceiptCancelled, models.ReceiptReconciled} {
		fmt.Fprintf(out, "  %-14s %d\n", s, d.Receipts.ByStatus[s])
	}
	fmt.Fprintf(out, "Collection rate: %s\n\n", percent(d.CollectionRate()))

	w := newTable(cmd)
	row(w, "TOP BRANCHES", "AMOUNT", "INVOICES")
	for _, b := range d.TopBranches {
		row(w, orUnknown(b.Name), money(b.TotalAmount), b.TotalInvoices)
	}
	row(w)
	row(w, "TOP COLLECTORS", "COLLECTED", "SUCCESS")
	for _, c := range d.TopCollectors {
		row(w, orUnknown(c.Name), money(c.CollectedAmount), percent(c.SuccessRate()))
	}
	row(w)
	row(w, "TOP SALESPEOPLE", "AMOUNT", "BOXES")
	for _, s := range d.TopSalespeople {
		row(w, orUnknown(s.Name), money(s.TotalAmount), s.TotalBoxes)
	}
	return w.Flush()
}

func runKPICollectors(cmd *cobra.Command, a *app.App, _ []string) error {
	fs := cmd.Flags()
	rng, err := kpiRange(fs)
	if err != nil {
		return err
	}
	dt, err := parseDateType(fs)
	if err != nil {
		return err
	}
	names, _ := fs.GetStringSlice("collector")

	list := kpi.ReceiptFilter{Collectors: names, Range: rng, DateType: dt}.Apply(a.Receipts.List())
	stats := kpi.Collectors(list)
	summary := kpi.SummarizeCollectors(stats)
	board := kpi.CollectorLeaderboard(stats, sizeFlag(cmd, a.Config.LeaderboardSize))

	if jsonOutput(cmd) {
		return printJSON(cmd, map[string]any{"collectors": stats, "summary": summary, "leaderboard": board})
	}

	w := newTable(cmd)
	row(w, "RANK", "COLLECTOR", "COLLECTED", "RECEIPTS", "RECONCILED", "SUCCESS")
	rows := make([][]interface{}, 0, len(board))
	for i, c := range board {
		row(w, i+1, orUnknown(c.Name), money(c.CollectedAmount), c.TotalReceipts, c.ReconciledReceipts, percent(c.SuccessRate()))
		rows = append(rows, []interface{}{i + 1, c.Name, c.CollectedAmount.InexactFloat64(), c.TotalReceipts, c.ReconciledReceipts, c.SuccessRate()})
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d collector(s): %s collected from %d/%d receipts (%s), %s per collector\n",
		summary.ActiveCollectors, money(summary.CollectedAmount), summary.ReconciledReceipts,
		summary.TotalReceipts, percent(summary.SuccessRate()), money(summary.AverageCollected))

	return writeLeaderboard(cmd, csvio.Sheet{
		Name:   "Collectors",
		Header: []string{"Rank", "Collector", "Collected", "Receipts", "Reconciled", "Success %"},
		Rows:   rows,
	})
}

func runKPISales(cmd *cobra.Command, a *app.App, _ []string) error {
	fs := cmd.Flags()
	rng, err := kpiRange(fs)
	if err != nil {
		return err
	}
	people, _ := fs.GetStringSlice("salesperson")
	branches, _ := fs.GetStringSlice("branch")

	list := kpi.InvoiceFilter{Salespeople: people, Branches: branches, Range: rng}.Apply(a.Invoices.List())
	stats := kpi.Salespeople(list)
	summary := kpi.SummarizeSales(stats)
	board := kpi.SalesLeaderboard(stats, sizeFlag(cmd, a.Config.LeaderboardSize))

	if jsonOutput(cmd) {
		return printJSON(cmd, map[string]any{"salespeople": stats, "summary": summary, "leaderboard": board})
	}

	w := newTable(cmd)
	row(w, "RANK", "SALESPERSON", "AMOUNT", "INVOICES", "BOXES", "AVG INVOICE")
	rows := make([][]interface{}, 0, len(board))
	for i, s := range board {
		row(w, i+1, orUnknown(s.Name), money(s.TotalAmount), s.TotalInvoices, s.TotalBoxes, money(s.AverageAmount()))
		rows = append(rows, []interface{}{i + 1, s.Name, s.TotalAmount.InexactFloat64(), s.TotalInvoices, s.TotalBoxes})
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d salespeople: %s over %d invoices, %d boxes (%.1f per invoice), %s per salesperson\n",
		summary.ActiveSalespeople, money(summary.TotalAmount), summary.TotalInvoices, summary.TotalBoxes,
		summary.AverageBoxes, money(summary.AverageAmount))

	return writeLeaderboard(cmd, csvio.Sheet{
		Name:   "Salespeople",
		Header: []string{"Rank", "Salesperson", "Amount", "Invoices", "Boxes"},
		Rows:   rows,
	})
}

func runKPIBranches(cmd *cobra.Command, a *app.App, _ []string) error {
	fs := cmd.Flags()
	rng, err := kpiRange(fs)
	if err != nil {
		return err
	}
	branches, _ := fs.GetStringSlice("branch")

	list := kpi.InvoiceFilter{Branches: branches, Range: rng}.Apply(a.Invoices.List())
	stats := kpi.Branches(list)
	board := kpi.BranchLeaderboard(stats, sizeFlag(cmd, a.Config.LeaderboardSize))

	if jsonOutput(cmd) {
		return printJSON(cmd, map[string]any{"branches": stats, "leaderboard": board})
	}

	w := newTable(cmd)
	row(w, "RANK", "BRANCH", "AMOUNT", "INVOICES", "BOXES", "SALESPEOPLE")
	rows := make([][]interface{}, 0, len(board))
	for i, b := range board {
		row(w, i+1, orUnknown(b.Name), money(b.TotalAmount), b.TotalInvoices, b.TotalBoxes, len(b.Salespeople))
		rows = append(rows, []interface{}{i + 1, b.Name, b.TotalAmount.InexactFloat64(), b.TotalInvoices, b.TotalBoxes, strings.Join(b.Salespeople, ", ")})
	}
	if err := w.Flush(); err != nil {
		return err
	}

	return writeLeaderboard(cmd, csvio.Sheet{
		Name:   "Branches",
		Header: []string{"Rank", "Branch", "Amount", "Invoices", "Boxes", "Salespeople"},
		Rows:   rows,
	})
}

func runKPIReceipts(cmd *cobra.Command, a *app.App, _ []string) error {
	rng, err := kpiRange(cmd.Flags())
	if err != nil {
		return err
	}
	list := kpi.ReceiptFilter{Range: rng}.Apply(a.Receipts.List())
	report := kpi.SummarizeReceipts(list, time.Now())
	if jsonOutput(cmd) {
		return printJSON(cmd, report)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Receipts:   %d (%s)\n", report.Count, money(report.TotalAmount))
	fmt.Fprintf(out, "Reconciled: %d (%s)\n", report.ReconciledCount, money(report.ReconciledAmount))
	fmt.Fprintf(out, "Today:      %d (%s)\n", report.TodayCount, money(report.TodayAmount))
	for _, s := range []models.ReceiptStatus{models.ReceiptNew, models.ReceiptOnHold, models.ReceiptCancelled, models.ReceiptReconciled} {
		fmt.Fprintf(out, "  %-12s %d\n", s, report.ByStatus[s])
	}
	fmt.Fprintln(out)

	w := newTable(cmd)
	row(w, "BANK", "RECEIPTS", "AMOUNT")
	for _, b := range report.Banks {
		row(w, orUnknown(b.Bank), b.Count, money(b.Amount))
	}
	return w.Flush()
}

// activeNames prefers the configured active options and falls back to the
// names found in the data.
func activeNames(a *app.App, c models.Category, seen []string) []string {
	if names := a.Settings.ActiveValues(c); len(names) > 0 {
		return names
	}
	return seen
}

func runKPIDaily(cmd *cobra.Command, a *app.App, args []string) error {
	raw, _ := cmd.Flags().GetString("month")
	month, err := parseMonth(raw)
	if err != nil {
		return err
	}
	days := kpi.MonthDays(month)

	switch strings.ToLower(args[0]) {
	case "collectors":
		dt, err := parseDateType(cmd.Flags())
		if err != nil {
			return err
		}
		var seen []string
		for _, s := range kpi.Collectors(a.Receipts.List()) {
			seen = append(seen, s.Name)
		}
		rows := kpi.DailyCollections(a.Receipts.List(), month, activeNames(a, models.CategoryDebtCollectors, seen), dt)
		if jsonOutput(cmd) {
			return printJSON(cmd, rows)
		}
		return printDaily(cmd, days, rows, func(d kpi.CollectionDay) string {
			if d.Receipts == 0 {
				return "-"
			}
			return d.Collected.StringFixed(2)
		})
	case "salespeople", "sales":
		var seen []string
		for _, s := range kpi.Salespeople(a.Invoices.List()) {
			seen = append(seen, s.Name)
		}
		rows := kpi.DailySales(a.Invoices.List(), month, activeNames(a, models.CategorySalespeople, seen))
		if jsonOutput(cmd) {
			return printJSON(cmd, rows)
		}
		return printDaily(cmd, days, rows, salesCell)
	case "branches":
		var seen []string
		for _, s := range kpi.Branches(a.Invoices.List()) {
			seen = append(seen, s.Name)
		}
		rows := kpi.DailyBranches(a.Invoices.List(), month, activeNames(a, models.CategoryBranches, seen))
		if jsonOutput(cmd) {
			return printJSON(cmd, rows)
		}
		return printDaily(cmd, days, rows, salesCell)
	}
	return fmt.Errorf("unknown daily report %q: use collectors, salespeople or branches", args[0])
}

func salesCell(d kpi.SalesDay) string {
	if d.Invoices == 0 {
		return "-"
	}
	return d.Amount.StringFixed(2)
}

func printDaily[S any](cmd *cobra.Command, days []string, rows []kpi.DailyRow[S], cell func(S) string) error {
	w := newTable(cmd)
	header := []any{"NAME"}
	for _, d := range days {
		header = append(header, d[8:])
	}
	row(w, append(header, "TOTAL")...)
	for _, r := range rows {
		cells := []any{orUnknown(r.Name)}
		for _, d := range r.Days {
			cells = append(cells, cell(d.Stats))
		}
		row(w, append(cells, cell(r.Total))...)
	}
	return w.Flush()
}

func runKPIProgress(cmd *cobra.Command, a *app.App, args []string) error {
	fs := cmd.Flags()
	t := models.TargetType(strings.ToLower(args[0]))
	collector, _ := fs.GetString("collector")
	salesperson, _ := fs.GetString("salesperson")

	asOf := time.Now()
	if raw, _ := fs.GetString("as-of"); raw != "" {
		var ok bool
		if asOf, ok = models.ParseDate(raw); !ok {
			return fmt.Errorf("invalid --as-of %q: use yyyy-MM-dd", raw)
		}
	}
	dt, err := parseDateType(fs)
	if err != nil {
		return err
	}

	var subject string
	var actuals kpi.Actuals
	switch t {
	case models.TargetCompany:
		actuals = kpi.CollectionActuals(a.Receipts.List(), asOf, "", dt)
	case models.TargetIndividual:
		if collector == "" {
			return fmt.Errorf("individual targets need --collector")
		}
		subject = collector
		actuals = kpi.CollectionActuals(a.Receipts.List(), asOf, collector, dt)
	case models.TargetCompanySales, models.TargetBranchCompany:
		actuals = kpi.SalesActuals(a.Invoices.List(), asOf, nil)
	case models.TargetSalesperson:
		if salesperson == "" {
			return fmt.Errorf("salesperson targets need --salesperson")
		}
		subject = salesperson
		actuals = kpi.SalesActuals(a.Invoices.List(), asOf, func(inv models.Invoice) bool {
			return inv.Salesperson == salesperson
		})
	default:
		return fmt.Errorf("unknown target type %q", args[0])
	}

	target, ok := a.Settings.Target(t, subject)
	if !ok {
		return fmt.Errorf("no %s target set%s; use 'crm settings target set'", t, forSubject(subject))
	}
	amounts, boxes := kpi.AgainstTarget(target, actuals)
	if jsonOutput(cmd) {
		return printJSON(cmd, map[string]any{"target": target, "amounts": amounts, "boxes": boxes})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s target%s as of %s\n\n", t, forSubject(subject), asOf.Format(models.DateLayout))
	w := newTable(cmd)
	row(w, "PERIOD", "CURRENT", "TARGET", "REMAINING", "PROGRESS")
	for _, p := range amounts {
		row(w, p.Period, money(p.Current), money(p.Target), money(p.Remaining), percent(p.Percent))
	}
	if len(boxes) > 0 {
		row(w)
		row(w, "BOXES", "CURRENT", "TARGET", "REMAINING", "PROGRESS")
		for _, p := range boxes {
			row(w, p.Period, p.Current, p.Target, p.Remaining, percent(p.Percent))
		}
	}
	return w.Flush()
}

func forSubject(subject string) string {
	if subject == "" {
		return ""
	}
	return " for " + subject
}

func orUnknown(name string) string {
	if name == "" {
		return "(unassigned)"
	}
	return name
}
