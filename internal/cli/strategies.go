package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/backtester/strategy"
)

func newStrategiesCmd() *cobra.Command {
	var show string

	cmd := &cobra.Command{
		Use:   "strategies",
		Short: "List the built-in strategies",
		Long: `List the built-in strategies and their rules.

Use --show to print one as YAML, ready to paste under
backtest.strategy.custom in a config file and edit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if show != "" {
				sc, err := strategy.Builtin(show, nil)
				if err != nil {
					return err
				}
				b, err := yaml.Marshal(sc)
				if err != nil {
					return err
				}
				_, err = out.Write(b)
				return err
			}

			for _, id := range strategy.Builtins() {
				sc, err := strategy.Builtin(id, nil)
				if err != nil {
					return err
				}
				compiled, err := sc.Compile(nil)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\n  %s\n", id, sc.Description)
				fmt.Fprintf(out, "  entry: %s\n", compiled.Entry)
				fmt.Fprintf(out, "  exit:  %s\n", compiled.Exit)
				fmt.Fprintf(out, "  risk:  %s\n\n", sc.Risk)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&show, "show", "", "Print one built-in strategy as YAML")
	return cmd
}
