package backtest

import (
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/internal/cli/config"
	"github.com/rustyeddy/backtester/strategy"
)

// NewCompare returns the compare command, which runs several built-in
// strategies over the same series in parallel.
func NewCompare(rc *config.RootConfig) *cobra.Command {
	var (
		ids     []string
		workers int
		noSave  bool
		f       = &runFlags{}
	)

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Run several built-in strategies over the same candles",
		Long: `Run built-in strategies side by side and print one line per run.

Candles are loaded once per instrument and shared between the runs.

Example:
  backtester compare --instrument BTC-USD --strategies sma_crossover,rsi_reversal --workers 4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rc.Load()
			if err != nil {
				return err
			}
			if err := f.apply(cmd, cfg); err != nil {
				return err
			}
			// every run gets its candles through the same cache
			cfg.Data.Cache = true
			if len(ids) == 0 {
				ids = strategy.Builtins()
			}

			base, err := cfg.BacktestConfig()
			if err != nil {
				return err
			}
			cfgs := make([]backtest.Config, len(ids))
			for i, id := range ids {
				c := base
				c.Strategy = strategy.Selection{Builtin: id}
				if err := c.Validate(); err != nil {
					return err
				}
				if _, err := c.Strategy.Resolve(); err != nil {
					return err
				}
				cfgs[i] = c
			}
			opts, err := cfg.Limits.Options()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			src, closeSrc, err := rc.Provider(ctx, cfg.Data)
			if err != nil {
				return err
			}
			defer closeSrc()

			runner := &backtest.Runner{
				Provider: src,
				Logger:   rc.Logger().Named("backtest"),
				Options:  opts,
			}
			if !noSave && cfg.Journal.DBPath != "" {
				j, err := rc.OpenJournal(cfg.Journal.DBPath)
				if err != nil {
					return err
				}
				defer j.Close()
				runner.Store = j
			}

			outcomes := runner.RunMany(ctx, cfgs, workers)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STRATEGY\tRUN ID\tTRADES\tWIN %\tRETURN %\tMAX DD %\tPROFIT FACTOR\tALPHA")
			for _, o := range outcomes {
				if o.Err != nil {
					fmt.Fprintf(tw, "%s\t-\tfailed: %v\n", o.Config.Strategy, o.Err)
					continue
				}
				r := o.Result
				fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%.2f\t%.2f\t%s\t%.2f\n",
					r.Summary.Strategy, r.RunID, r.Summary.RoundTrips, r.Summary.WinRate*100,
					r.Metrics.TotalReturnPercentage, r.Metrics.MaxDrawdownPercentage,
					backtest.FormatProfitFactor(r.Metrics.ProfitFactor), r.Metrics.Alpha)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			return backtest.JoinErrors(outcomes)
		},
	}

	fl := cmd.Flags()
	fl.StringSliceVar(&ids, "strategies", nil, "Built-in strategy ids (default: all)")
	fl.IntVar(&workers, "workers", 0, "Runs in flight at once (0 for one per strategy)")
	fl.BoolVar(&noSave, "no-save", false, "Do not record the runs in the journal")
	fl.StringVar(&f.instrument, "instrument", "", "Instrument, e.g. BTC-USD")
	fl.StringVar(&f.interval, "interval", "", "Bar interval")
	fl.StringVar(&f.start, "start", "", "Start date (2006-01-02 or RFC3339)")
	fl.StringVar(&f.end, "end", "", "End date, exclusive")
	fl.Float64Var(&f.capital, "capital", 0, "Initial capital")
	fl.Float64Var(&f.size, "size", 0, "Fraction of cash per entry, (0,1]")
	fl.Float64Var(&f.fee, "fee", 0, "Fee rate per fill")
	fl.StringVar(&f.source, "source", "", "Candle source: csv|postgres|oanda")
	fl.StringVar(&f.dataDir, "data-dir", "", "Directory of candle CSV files")
	fl.StringVar(&f.timeout, "timeout", "", "Abort runs longer than this, e.g. 30s")
	fl.IntVar(&f.maxBars, "max-bars", 0, "Reject series longer than this (-1 for no limit)")
	return cmd
}
