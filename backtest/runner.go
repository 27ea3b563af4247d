package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/pkg/id"
)

// PriceSeriesProvider loads the whole candle series of a run in one call.
// Retries and caching are the provider's business.
type PriceSeriesProvider interface {
	Candles(ctx context.Context, instrument string, start, end time.Time, interval market.Interval) ([]market.Candle, error)
}

// ResultStore persists finished runs.
type ResultStore interface {
	SaveResult(ctx context.Context, r *Result) error
}

// Runner loads candles from a provider, runs the backtest and optionally
// stores the result.
type Runner struct {
	Provider PriceSeriesProvider
	Store    ResultStore
	Logger   *zap.Logger
	Options  Options

	// NewID assigns run ids. Defaults to id.New.
	NewID func() string
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// Run validates and compiles cfg, fetches its candles exactly once and runs the
// backtest. Provider failures are returned as *ProviderError.
func (r *Runner) Run(ctx context.Context, cfg Config) (*Result, error) {
	if r.Provider == nil {
		return nil, fmt.Errorf("backtest: Provider is required")
	}
	// reject bad strategies before paying for the fetch
	_, strat, err := cfg.compile(r.Options.withDefaults().Registry)
	if err != nil {
		return nil, err
	}

	newID := r.NewID
	if newID == nil {
		newID = id.New
	}
	runID := newID()
	log := r.logger().With(
		zap.String("run_id", runID),
		zap.String("instrument", cfg.Instrument),
		zap.String("strategy", cfg.Strategy.String()),
	)
	if strat.Exit.Empty() && !strat.Risk.HasStopLoss() && !strat.Risk.HasTakeProfit() && !strat.Risk.HasTrailingStop() {
		log.Warn("strategy has no exit rule and no risk exits; positions close at the end of the period")
	}
	log.Debug("strategy compiled", zap.Int("warmup_bars", strat.Engine.Warmup()))

	fetchStart := time.Now()
	candles, err := r.Provider.Candles(ctx, cfg.Instrument, cfg.Start, cfg.End, cfg.Interval)
	if err != nil {
		log.Error("fetch candles", zap.Error(err))
		return nil, &ProviderError{Instrument: cfg.Instrument, Err: err}
	}
	log.Debug("candles loaded", zap.Int("bars", len(candles)), zap.Duration("took", time.Since(fetchStart)))

	if gaps := market.Gaps(candles, cfg.Interval); len(gaps) > 0 {
		log.Debug("series has gaps", zap.Int("gaps", len(gaps)))
	}

	runStart := time.Now()
	res, err := Run(ctx, cfg, candles, r.Options)
	if err != nil {
		log.Warn("backtest failed", zap.Error(err))
		return nil, err
	}
	res.RunID = runID

	log.Info("backtest finished",
		zap.Int("bars", res.Summary.Bars),
		zap.Int("round_trips", res.Summary.RoundTrips),
		zap.Float64("total_return_pct", res.Metrics.TotalReturnPercentage),
		zap.Float64("alpha", res.Metrics.Alpha),
		zap.Duration("took", time.Since(runStart)),
	)

	if r.Store != nil {
		if err := r.Store.SaveResult(ctx, res); err != nil {
			return nil, fmt.Errorf("backtest: save result %s: %w", runID, err)
		}
	}
	return res, nil
}

// Outcome is the result or error of one run of RunMany.
type Outcome struct {
	Config Config
	Result *Result
	Err    error
}

// RunMany runs independent backtests with at most workers in flight (one
// per config when workers <= 0). A failing run does not cancel the others;
// outcomes are returned in the order of cfgs.
func (r *Runner) RunMany(ctx context.Context, cfgs []Config, workers int) []Outcome {
	out := make([]Outcome, len(cfgs))

	var g errgroup.Group
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, cfg := range cfgs {
		g.Go(func() error {
			res, err := r.Run(ctx, cfg)
			out[i] = Outcome{Config: cfg, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// JoinErrors joins the errors of the failed outcomes. It is nil when every
// run succeeded.
func JoinErrors(outcomes []Outcome) error {
	var errs []error
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errors.Join(errs...)
}
