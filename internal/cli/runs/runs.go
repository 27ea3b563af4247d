package runs

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/internal/cli/config"
	"github.com/rustyeddy/backtester/journal"
)

// New returns the runs command group, which reads the journal.
func New(rc *config.RootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded backtests",
	}
	cmd.AddCommand(
		newListCmd(rc),
		newShowCmd(rc),
		newExportCmd(rc),
		newDeleteCmd(rc),
	)
	return cmd
}

func open(rc *config.RootConfig) (*journal.SQLite, error) {
	cfg, err := rc.Load()
	if err != nil {
		return nil, err
	}
	return rc.OpenJournal(cfg.Journal.DBPath)
}

func newListCmd(rc *config.RootConfig) *cobra.Command {
	var f journal.RunFilter

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := open(rc)
			if err != nil {
				return err
			}
			defer j.Close()

			runs, err := j.ListRuns(cmd.Context(), f)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN ID\tCREATED\tINSTRUMENT\tINTERVAL\tSTRATEGY\tTRADES\tRETURN %\tMAX DD %\tALPHA")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%.2f\t%.2f\t%.2f\n",
					r.RunID, r.Created.Format("2006-01-02 15:04"), r.Instrument, r.Interval, r.Strategy,
					r.RoundTrips, r.TotalReturnPct, r.MaxDrawdownPct, r.Alpha)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&f.Instrument, "instrument", "", "Only runs of this instrument")
	cmd.Flags().StringVar(&f.Strategy, "strategy", "", "Only runs of this strategy")
	cmd.Flags().IntVar(&f.Limit, "limit", 20, "Maximum number of runs (0 for all)")
	return cmd
}

func newShowCmd(rc *config.RootConfig) *cobra.Command {
	var org bool

	cmd := &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Print the report of a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := open(rc)
			if err != nil {
				return err
			}
			defer j.Close()

			res, err := j.LoadResult(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if org {
				return journal.WriteOrg(cmd.OutOrStdout(), res)
			}
			backtest.PrintResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&org, "org", false, "Print the Org-mode report instead")
	return cmd
}

func newExportCmd(rc *config.RootConfig) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "export RUN_ID",
		Short: "Write JSON, CSV and Org exports of a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := open(rc)
			if err != nil {
				return err
			}
			defer j.Close()

			res, err := j.LoadResult(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			paths, err := journal.ExportDir(dir, res)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Output directory")
	return cmd
}

func newDeleteCmd(rc *config.RootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "delete RUN_ID...",
		Short: "Remove recorded runs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := open(rc)
			if err != nil {
				return err
			}
			defer j.Close()

			for _, id := range args {
				if err := j.DeleteRun(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			}
			return nil
		},
	}
}
