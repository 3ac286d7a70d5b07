package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"crm/internal/app"
	"crm/internal/receipts"
	"crm/internal/settings"
	"crm/pkg/models"
)

var categoryHelp = func() string {
	names := make([]string, len(models.Categories))
	for i, c := range models.Categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}()

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage option lists and KPI targets",
	Long: `Manage the configurable option lists and KPI targets.

Categories: ` + categoryHelp,
}

var settingsListCmd = &cobra.Command{
	Use:   "list [category]",
	Short: "List options of one or all categories",
	Args:  cobra.MaximumNArgs(1),
	RunE:  withApp(runSettingsList),
}

var settingsAddCmd = &cobra.Command{
	Use:   "add <category> <value>",
	Short: "Add an option",
	Example: `  crm settings add branches "Kuala Lumpur"
  crm settings add salespeople Farid --branch "Kuala Lumpur" --image farid.jpg`,
	Args: cobra.ExactArgs(2),
	RunE: withApp(runSettingsAdd),
}

var settingsEditCmd = &cobra.Command{
	Use:     "edit <category> <id>",
	Short:   "Change an option",
	Example: `  crm settings edit banks 3 --value "Public Bank Berhad"`,
	Args:    cobra.ExactArgs(2),
	RunE:    withApp(runSettingsEdit),
}

var settingsToggleCmd = &cobra.Command{
	Use:   "toggle <category> <id>",
	Short: "Activate or deactivate an option",
	Args:  cobra.ExactArgs(2),
	RunE:  withApp(runSettingsToggle),
}

var settingsDeleteCmd = &cobra.Command{
	Use:   "delete <category> <id>",
	Short: "Delete an option",
	Args:  cobra.ExactArgs(2),
	RunE:  withApp(runSettingsDelete),
}

var targetCmd = &cobra.Command{
	Use:   "target",
	Short: "Manage KPI targets",
}

var targetSetCmd = &cobra.Command{
	Use:   "set <type>",
	Short: "Create or replace a KPI target",
	Long: `Create or replace a KPI target. Types: company, company-sales,
branch-company, individual (needs --collector) and salesperson (needs
--salesperson). Setting a target replaces the existing target of the same
scope.`,
	Example: `  crm settings target set company --daily 5000 --weekly 30000 --monthly 120000
  crm settings target set individual --collector Aina --monthly 20000
  crm settings target set salesperson --salesperson Farid --monthly 50000 --box-monthly 300`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(runTargetSet),
}

var targetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List KPI targets",
	Args:  cobra.NoArgs,
	RunE:  withApp(runTargetList),
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsListCmd, settingsAddCmd, settingsEditCmd, settingsToggleCmd, settingsDeleteCmd, targetCmd)
	targetCmd.AddCommand(targetSetCmd, targetListCmd)

	settingsAddCmd.Flags().String("branch", "", "Branch (required for salespeople)")
	settingsAddCmd.Flags().String("image", "", "Photo for collectors and salespeople")

	settingsEditCmd.Flags().String("value", "", "New value")
	settingsEditCmd.Flags().String("branch", "", "New branch")
	settingsEditCmd.Flags().String("image", "", "New photo")
	settingsEditCmd.Flags().Bool("active", true, "Whether the option is active")

	targetSetCmd.Flags().String("collector", "", "Debt collector for individual targets")
	targetSetCmd.Flags().String("salesperson", "", "Salesperson for salesperson targets")
	targetSetCmd.Flags().String("daily", "0", "Daily amount target")
	targetSetCmd.Flags().String("weekly", "0", "Weekly amount target")
	targetSetCmd.Flags().String("monthly", "0", "Monthly amount target")
	targetSetCmd.Flags().Int("box-daily", 0, "Daily box target")
	targetSetCmd.Flags().Int("box-weekly", 0, "Weekly box target")
	targetSetCmd.Flags().Int("box-monthly", 0, "Monthly box target")
}

func parseCategory(raw string) (models.Category, error) {
	for _, c := range models.Categories {
		if strings.EqualFold(string(c), raw) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q: use one of %s", raw, categoryHelp)
}

func runSettingsList(cmd *cobra.Command, a *app.App, args []string) error {
	categories := models.Categories
	if len(args) == 1 {
		c, err := parseCategory(args[0])
		if err != nil {
			return err
		}
		categories = []models.Category{c}
	}

	if jsonOutput(cmd) {
		out := make(map[models.Category][]models.SettingsOption, len(categories))
		for _, c := range categories {
			opts, err := a.Settings.Options(c)
			if err != nil {
				return err
			}
			out[c] = opts
		}
		return printJSON(cmd, out)
	}

	w := newTable(cmd)
	row(w, "CATEGORY", "ID", "VALUE", "ACTIVE", "BRANCH", "IMAGE")
	for _, c := range categories {
		opts, err := a.Settings.Options(c)
		if err != nil {
			return err
		}
		for _, o := range opts {
			image := ""
			if o.ImageURL != "" {
				image = "yes"
			}
			row(w, c, o.ID, o.Value, o.IsActive, o.Branch, image)
		}
	}
	return w.Flush()
}

func imagePatch(cmd *cobra.Command) (*string, error) {
	if !cmd.Flags().Changed("image") {
		return nil, nil
	}
	path, _ := cmd.Flags().GetString("image")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	uri, err := receipts.ImageDataURI(data)
	if err != nil {
		return nil, err
	}
	return &uri, nil
}

func runSettingsAdd(cmd *cobra.Command, a *app.App, args []string) error {
	c, err := parseCategory(args[0])
	if err != nil {
		return err
	}
	var patch settings.OptionPatch
	if cmd.Flags().Changed("branch") {
		branch, _ := cmd.Flags().GetString("branch")
		patch.Branch = &branch
	}
	if patch.ImageURL, err = imagePatch(cmd); err != nil {
		return err
	}

	opt, err := a.Settings.AddOption(cmd.Context(), c, args[1], patch)
	if err != nil {
		return err
	}
	if jsonOutput(cmd) {
		return printJSON(cmd, opt)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added %s %q (%s)\n", c, opt.Value, opt.ID)
	return nil
}

func runSettingsEdit(cmd *cobra.Command, a *app.App, args []string) error {
	c, err := parseCategory(args[0])
	if err != nil {
		return err
	}
	var patch settings.OptionPatch
	if cmd.Flags().Changed("value") {
		v, _ := cmd.Flags().GetString("value")
		patch.Value = &v
	}
	if cmd.Flags().Changed("branch") {
		v, _ := cmd.Flags().GetString("branch")
		patch.Branch = &v
	}
	if cmd.Flags().Changed("active") {
		v, _ := cmd.Flags().GetBool("active")
		patch.IsActive = &v
	}
	if patch.ImageURL, err = imagePatch(cmd); err != nil {
		return err
	}

	found, err := a.Settings.UpdateOption(cmd.Context(), c, args[1], patch)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%s option %q not found", c, args[1])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated %s option %s\n", c, args[1])
	return nil
}

func runSettingsToggle(cmd *cobra.Command, a *app.App, args []string) error {
	c, err := parseCategory(args[0])
	if err != nil {
		return err
	}
	found, err := a.Settings.ToggleOption(cmd.Context(), c, args[1])
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%s option %q not found", c, args[1])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Toggled %s option %s\n", c, args[1])
	return nil
}

func runSettingsDelete(cmd *cobra.Command, a *app.App, args []string) error {
	c, err := parseCategory(args[0])
	if err != nil {
		return err
	}
	found, err := a.Settings.DeleteOption(cmd.Context(), c, args[1])
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%s option %q not found", c, args[1])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s option %s\n", c, args[1])
	return nil
}

func runTargetSet(cmd *cobra.Command, a *app.App, args []string) error {
	fs := cmd.Flags()
	target := models.KPITarget{Type: models.TargetType(strings.ToLower(args[0]))}
	switch target.Type {
	case models.TargetIndividual:
		target.DebtCollectorName, _ = fs.GetString("collector")
	case models.TargetSalesperson:
		target.SalespersonName, _ = fs.GetString("salesperson")
	}

	for flag, dst := range map[string]*decimal.Decimal{
		"daily":   &target.DailyTarget,
		"weekly":  &target.WeeklyTarget,
		"monthly": &target.MonthlyTarget,
	} {
		raw, _ := fs.GetString(flag)
		d, err := parseDecimal(flag, raw)
		if err != nil {
			return err
		}
		*dst = d
	}
	for flag, dst := range map[string]**int{
		"box-daily":   &target.BoxDailyTarget,
		"box-weekly":  &target.BoxWeeklyTarget,
		"box-monthly": &target.BoxMonthlyTarget,
	} {
		if fs.Changed(flag) {
			v, _ := fs.GetInt(flag)
			*dst = &v
		}
	}

	stored, err := a.Settings.UpdateKPITarget(cmd.Context(), target)
	if err != nil {
		return err
	}
	if jsonOutput(cmd) {
		return printJSON(cmd, stored)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s target %s\n", stored.Type, stored.Subject())
	return nil
}

func runTargetList(cmd *cobra.Command, a *app.App, _ []string) error {
	targets := a.Settings.Settings().KPITargets
	if jsonOutput(cmd) {
		return printJSON(cmd, targets)
	}
	w := newTable(cmd)
	row(w, "TYPE", "SUBJECT", "DAILY", "WEEKLY", "MONTHLY", "BOXES D/W/M", "UPDATED")
	for _, t := range targets {
		row(w, t.Type, t.Subject(), money(t.DailyTarget), money(t.WeeklyTarget), money(t.MonthlyTarget),
			fmt.Sprintf("%s/%s/%s", intOrDash(t.BoxDailyTarget), intOrDash(t.BoxWeeklyTarget), intOrDash(t.BoxMonthlyTarget)),
			t.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func intOrDash(p *int) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprint(*p)
}
