package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	bcfg "github.com/rustyeddy/backtester/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Generate or validate configuration files",
		Long: `Manage configuration files for backtests.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  backtester config init -o backtest.yaml
  backtester config validate -f backtest.yaml`,
	}

	var output string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bcfg.Default().SaveToFile(output); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Created default configuration: %s\n", output)
			fmt.Fprintln(out, "\nEdit the file and run with:")
			fmt.Fprintf(out, "  backtester run --config %s\n", output)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&output, "output", "o", "backtest.yaml", "output config file path")

	var path string
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := bcfg.LoadFromFile(path)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}
			b := cfg.Backtest
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Configuration valid: %s\n", path)
			fmt.Fprintf(out, "  Run:      %s %s (%s to %s)\n", b.Instrument, b.Interval, orOpen(b.Start), orOpen(b.End))
			fmt.Fprintf(out, "  Capital:  %.2f (size %.0f%%, fee %.3f%%)\n", b.InitialCapital, b.PositionSizePct*100, b.FeeRate*100)
			fmt.Fprintf(out, "  Strategy: %s\n", b.Strategy)
			fmt.Fprintf(out, "  Data:     %s\n", cfg.Data.Source)
			fmt.Fprintf(out, "  Journal:  %s\n", orOpen(cfg.Journal.DBPath))
			return nil
		},
	}
	validateCmd.Flags().StringVarP(&path, "file", "f", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("file")

	cmd.AddCommand(initCmd, validateCmd)
	return cmd
}

func orOpen(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
