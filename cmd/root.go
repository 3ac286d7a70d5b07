package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"crm/internal/app"
	"crm/internal/config"
	"crm/internal/logger"
)

var version = "1.0.0"

// cfg is replaced by Execute; commands read it through openApp.
var cfg = config.Default()

var rootCmd = &cobra.Command{
	Use:   "crm",
	Short: "Track invoices, payment receipts and collection KPIs",
	Long: `crm keeps invoices, payment receipts, receipt conversations and
settings in a local SQLite file (or PostgreSQL) and reports collection and
sales KPIs from them.

Invoices are keyed by invoice number: adding or importing an invoice whose
number already exists merges the new fields into the stored record.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with c as the base configuration.
func Execute(c *config.Config) {
	log := logger.WithComponent("cmd")
	if c != nil {
		cfg = c
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("backend", "", "Record store backend: sqlite, postgres or memory (default: CRM_BACKEND)")
	rootCmd.PersistentFlags().String("db", "", "SQLite database file (default: CRM_SQLITE_PATH)")
	rootCmd.PersistentFlags().Bool("json", false, "Print results as JSON")
}

// openApp applies the persistent flag overrides and opens the record store.
func openApp(cmd *cobra.Command) (*app.App, error) {
	c := *cfg
	if backend, _ := cmd.Flags().GetString("backend"); backend != "" {
		c.Backend = strings.ToLower(backend)
	}
	if path, _ := cmd.Flags().GetString("db"); path != "" {
		c.SQLitePath = path
	}
	if c.Backend == config.BackendMemory {
		fmt.Fprintln(cmd.ErrOrStderr(), "Warning: the memory backend keeps nothing after this command exits")
	}

	a, err := app.Open(cmd.Context(), &c)
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}
	return a, nil
}

// withApp opens the record store for the duration of fn.
func withApp(fn func(cmd *cobra.Command, a *app.App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := a.Close(); closeErr != nil {
				log := logger.WithComponent("cmd")
				log.Warn().Err(closeErr).Msg("Failed to close record store")
			}
		}()
		return fn(cmd, a, args)
	}
}
