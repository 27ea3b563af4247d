package backtest

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/backtester/backtest"
	bcfg "github.com/rustyeddy/backtester/config"
	"github.com/rustyeddy/backtester/internal/cli/config"
	"github.com/rustyeddy/backtester/journal"
	"github.com/rustyeddy/backtester/risk"
	"github.com/rustyeddy/backtester/strategy"
)

type runFlags struct {
	instrument   string
	interval     string
	start        string
	end          string
	capital      float64
	size         float64
	fee          float64
	strategy     string
	strategyFile string
	params       map[string]string
	stopLoss     float64
	takeProfit   float64
	trailing     float64
	source       string
	dataDir      string
	timeout      string
	maxBars      int
	exportDir    string
	asJSON       bool
	noSave       bool
}

// New returns the run command.
func New(rc *config.RootConfig) *cobra.Command {
	f := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a backtest",
		Long: `Run one backtest and print its report.

Settings come from --config (or the defaults) and are overridden by flags.

Examples:
  backtester run --instrument BTC-USD --interval 1d --strategy sma_crossover --param fast=10,slow=30
  backtester run --config backtest.yaml --sl 3 --tp 9 --export ./out`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rc.Load()
			if err != nil {
				return err
			}
			if err := f.apply(cmd, cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			return run(ctx, cmd, rc, cfg, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.instrument, "instrument", "", "Instrument, e.g. BTC-USD")
	fl.StringVar(&f.interval, "interval", "", "Bar interval: 1m|5m|15m|30m|1h|4h|1d|1w (or H1, D, ...)")
	fl.StringVar(&f.start, "start", "", "Start date (2006-01-02 or RFC3339)")
	fl.StringVar(&f.end, "end", "", "End date, exclusive (2006-01-02 or RFC3339)")
	fl.Float64Var(&f.capital, "capital", 0, "Initial capital")
	fl.Float64Var(&f.size, "size", 0, "Fraction of cash per entry, (0,1]")
	fl.Float64Var(&f.fee, "fee", 0, "Fee rate per fill, e.g. 0.001")
	fl.StringVar(&f.strategy, "strategy", "", "Built-in strategy id (see 'backtester strategies')")
	fl.StringVar(&f.strategyFile, "strategy-file", "", "Custom strategy file (YAML or JSON)")
	fl.StringToStringVar(&f.params, "param", nil, "Built-in strategy parameters, e.g. fast=10,slow=30")
	fl.Float64Var(&f.stopLoss, "sl", 0, "Stop loss percent (overrides the strategy)")
	fl.Float64Var(&f.takeProfit, "tp", 0, "Take profit percent (overrides the strategy)")
	fl.Float64Var(&f.trailing, "trail", 0, "Trailing stop percent (overrides the strategy)")
	fl.StringVar(&f.source, "source", "", "Candle source: csv|postgres|oanda")
	fl.StringVar(&f.dataDir, "data-dir", "", "Directory of candle CSV files")
	fl.StringVar(&f.timeout, "timeout", "", "Abort runs longer than this, e.g. 30s")
	fl.IntVar(&f.maxBars, "max-bars", 0, "Reject series longer than this (-1 for no limit)")
	fl.StringVar(&f.exportDir, "export", "", "Write JSON, CSV and Org exports to this directory")
	fl.BoolVar(&f.asJSON, "json", false, "Print the result as JSON instead of the report")
	fl.BoolVar(&f.noSave, "no-save", false, "Do not record the run in the journal")

	return cmd
}

// apply copies the flags that were set into cfg.
func (f *runFlags) apply(cmd *cobra.Command, cfg *bcfg.Config) error {
	fl := cmd.Flags()
	b := &cfg.Backtest

	if fl.Changed("instrument") {
		b.Instrument = f.instrument
	}
	if fl.Changed("interval") {
		b.Interval = f.interval
	}
	if fl.Changed("start") {
		b.Start = f.start
	}
	if fl.Changed("end") {
		b.End = f.end
	}
	if fl.Changed("capital") {
		b.InitialCapital = f.capital
	}
	if fl.Changed("size") {
		b.PositionSizePct = f.size
	}
	if fl.Changed("fee") {
		b.FeeRate = f.fee
	}

	switch {
	case fl.Changed("strategy") && fl.Changed("strategy-file"):
		return fmt.Errorf("--strategy and --strategy-file are mutually exclusive")
	case fl.Changed("strategy"):
		b.Strategy = strategy.Selection{Builtin: f.strategy}
	case fl.Changed("strategy-file"):
		sc, err := loadStrategy(f.strategyFile)
		if err != nil {
			return err
		}
		b.Strategy = strategy.Selection{Custom: sc}
	}
	if len(f.params) > 0 {
		if b.Strategy.Builtin == "" {
			return fmt.Errorf("--param only applies to built-in strategies")
		}
		params, err := parseParams(f.params)
		if err != nil {
			return err
		}
		b.Strategy.Params = params
	}

	if fl.Changed("sl") || fl.Changed("tp") || fl.Changed("trail") {
		pol, err := f.riskOverride(b)
		if err != nil {
			return err
		}
		b.Risk = pol
	}

	if fl.Changed("source") {
		cfg.Data.Source = f.source
	}
	if fl.Changed("data-dir") {
		cfg.Data.Dir = f.dataDir
	}
	if fl.Changed("timeout") {
		cfg.Limits.Timeout = f.timeout
	}
	if fl.Changed("max-bars") {
		cfg.Limits.MaxBars = f.maxBars
	}
	if fl.Changed("export") {
		cfg.Journal.ExportDir = f.exportDir
	}
	return nil
}

// riskOverride starts from the existing override, or the strategy's own
// policy, and replaces the values given on the command line.
func (f *runFlags) riskOverride(b *bcfg.BacktestConfig) (*risk.Policy, error) {
	var pol risk.Policy
	if b.Risk != nil {
		pol = *b.Risk
	} else {
		sc, err := b.Strategy.Resolve()
		if err != nil {
			return nil, err
		}
		pol = sc.Risk
	}
	if f.stopLoss != 0 {
		pol.StopLossPct = f.stopLoss
	}
	if f.takeProfit != 0 {
		pol.TakeProfitPct = f.takeProfit
	}
	if f.trailing != 0 {
		pol.TrailingStopPct = risk.Pct(f.trailing)
	}
	return &pol, nil
}

func parseParams(in map[string]string) (map[string]float64, error) {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		x, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("--param %s: %w", k, err)
		}
		out[strings.TrimSpace(k)] = x
	}
	return out, nil
}

func loadStrategy(path string) (*strategy.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read strategy file: %w", err)
	}
	// JSON is valid YAML
	var sc strategy.Config
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse strategy file: %w", err)
	}
	return &sc, nil
}

func run(ctx context.Context, cmd *cobra.Command, rc *config.RootConfig, cfg *bcfg.Config, f *runFlags) error {
	log := rc.Logger()

	bc, err := cfg.BacktestConfig()
	if err != nil {
		return err
	}
	opts, err := cfg.Limits.Options()
	if err != nil {
		return err
	}

	src, closeSrc, err := rc.Provider(ctx, cfg.Data)
	if err != nil {
		return err
	}
	defer closeSrc()

	runner := &backtest.Runner{
		Provider: src,
		Logger:   log.Named("backtest"),
		Options:  opts,
	}
	if !f.noSave && cfg.Journal.DBPath != "" {
		j, err := rc.OpenJournal(cfg.Journal.DBPath)
		if err != nil {
			return err
		}
		defer j.Close()
		runner.Store = j
	}
	if !rc.NoProgress {
		runner.Options.Progress = progress(cmd)
	}

	res, err := runner.Run(ctx, bc)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if f.asJSON {
		if err := journal.WriteJSON(out, res); err != nil {
			return err
		}
	} else {
		backtest.PrintResult(out, res)
	}

	if cfg.Journal.ExportDir != "" {
		dir := filepath.Join(cfg.Journal.ExportDir, res.RunID)
		paths, err := journal.ExportDir(dir, res)
		if err != nil {
			return err
		}
		log.Info("exported", zap.String("run_id", res.RunID), zap.Strings("files", paths))
	}
	return nil
}

// progress draws a bar on stderr. The bar is created on the first call,
// when the total is known.
func progress(cmd *cobra.Command) func(done, total int) {
	var bar *progressbar.ProgressBar
	return func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionSetElapsedTime(true),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionThrottle(100*time.Millisecond),
				progressbar.OptionSetDescription("Backtesting..."),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
			)
		}
		_ = bar.Set(done)
		if done == total {
			_ = bar.Finish()
			fmt.Fprintln(cmd.ErrOrStderr())
		}
	}
}
