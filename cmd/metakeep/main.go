package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vantagedata/metakeep/cmd/metakeep/commands"
	"github.com/vantagedata/metakeep/logger"
)

var rootCmd = &cobra.Command{
	Use:   "metakeep",
	Short: "metakeep - Versioned business metadata engine",
	Long: `metakeep - Audited business metadata for tables, columns and jobs.

Every value assignment produces a new immutable version; previous versions
are closed with an end-of-validity timestamp and a mutable pointer always
identifies the current one. The same discipline covers taxonomy term content
and reference code labels.

Examples:
  metakeep migrate                                    # Apply schema migrations
  metakeep bootstrap                                  # Seed demo reference data
  metakeep value set table orders retention_days --primitive '{"days":30}'
  metakeep value get table orders retention_days
  metakeep value list table orders
  metakeep value history table orders retention_days
  metakeep term content <term-id> --markdown "..."    # New term content version
  metakeep code label <code-id> --label "Public"      # New code label version`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.Initialize(jsonLogs); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: ./metakeep.toml)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit JSON structured logs")

	rootCmd.AddCommand(commands.MigrateCmd)
	rootCmd.AddCommand(commands.BootstrapCmd)
	rootCmd.AddCommand(commands.ValueCmd)
	rootCmd.AddCommand(commands.TermCmd)
	rootCmd.AddCommand(commands.CodeCmd)
}

func main() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
