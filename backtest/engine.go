package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/metrics"
	"github.com/rustyeddy/backtester/signal"
	"github.com/rustyeddy/backtester/sim"
	"github.com/rustyeddy/backtester/strategy"
)

// Run replays candles through the configured strategy in one forward pass
// and returns the complete result. It is a pure function of cfg and
// candles: it does no I/O and keeps no state between calls.
//
// Per bar the indicators are updated, then while LONG the risk exits and
// the exit rule are applied, and while FLAT the entry rule. A bar makes at
// most one transition. No entry is taken on the last bar, and a position
// still open there is closed at its close before the equity point is
// recorded.
//
// Errors are *ConfigError before the loop, ErrAborted when ctx is done and
// *ResourceLimitError when a budget is exceeded. No partial result is ever
// returned.
func Run(ctx context.Context, cfg Config, candles []market.Candle, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	sc, strat, err := cfg.compile(opts.Registry)
	if err != nil {
		return nil, err
	}

	if err := market.ValidateSeries(candles); err != nil {
		if errors.Is(err, market.ErrEmptySeries) {
			return nil, &ConfigError{Field: "candles", Msg: "insufficient data", Err: err}
		}
		return nil, configErr("candles", err)
	}
	n := len(candles)
	if opts.MaxBars > 0 && n > opts.MaxBars {
		return nil, &ResourceLimitError{Limit: "bars", Bars: n, MaxBars: opts.MaxBars}
	}

	pos := sim.New(sim.Config{
		InitialCapital:  cfg.InitialCapital,
		PositionSizePct: cfg.PositionSizePct,
		FeeRate:         cfg.FeeRate,
		Risk:            strat.Risk,
	})

	history := make([]EquityPoint, 0, n)
	var prev, cur, spare indicators.Snapshot
	last := n - 1
	started := time.Now()

	for i, c := range candles {
		if i%opts.CheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%w at bar %d/%d: %w", ErrAborted, i, n, err)
			}
			if opts.MaxDuration > 0 {
				if el := time.Since(started); el > opts.MaxDuration {
					return nil, &ResourceLimitError{Limit: "duration", Bars: i, Elapsed: el, Max: opts.MaxDuration}
				}
			}
			if opts.Progress != nil {
				opts.Progress(i, n)
			}
		}

		cur = strat.Engine.Update(c, spare)

		switch pos.State() {
		case sim.Long:
			if pos.CheckRisk(i, c) {
				break
			}
			if ok, reasons := strat.Exit.Evaluate(prev, cur); ok {
				if err := pos.Close(i, c.Time, c.Close, signal.Reason(reasons)); err != nil {
					return nil, err
				}
			}
		case sim.Flat:
			if i == last {
				break
			}
			if ok, reasons := strat.Entry.Evaluate(prev, cur); ok {
				err := pos.Open(i, c.Time, c.Close, signal.Reason(reasons))
				if err != nil && !errors.Is(err, sim.ErrCannotOpen) {
					return nil, err
				}
			}
		}

		if i == last {
			pos.ForceClose(i, c)
		}
		history = append(history, EquityPoint{Time: c.Time, Equity: pos.Equity(c.Close)})

		prev, spare = cur, prev
	}
	if opts.Progress != nil {
		opts.Progress(n, n)
	}

	res := assemble(cfg, sc, candles, pos, history)
	res.Summary.WarmupBars = strat.Engine.Warmup()
	return res, nil
}

func assemble(cfg Config, sc strategy.Config, candles []market.Candle, pos *sim.Position, history []EquityPoint) *Result {
	first, last := candles[0], candles[len(candles)-1]
	trips := pos.RoundTrips()

	m := metrics.Compute(metrics.Input{
		InitialCapital:       cfg.InitialCapital,
		Trades:               pos.Trades(),
		RoundTrips:           trips,
		Equity:               history,
		HoldReturnPercentage: metrics.HoldReturnPercentage(first.Close, last.Close),
	})

	s := Summary{
		Strategy:       sc.Name,
		Bars:           len(candles),
		Start:          first.Time,
		End:            last.Time,
		Trades:         len(pos.Trades()),
		RoundTrips:     len(trips),
		WinRate:        m.WinRate,
		InitialCapital: cfg.InitialCapital,
		FinalCapital:   pos.Cash(),
		FirstClose:     first.Close,
		LastClose:      last.Close,
	}
	for _, rt := range trips {
		s.TotalPnL += rt.PnL
		switch {
		case rt.Win():
			s.Wins++
		case rt.Loss():
			s.Losses++
		}
	}

	return &Result{
		Config:         cfg,
		Strategy:       sc,
		Trades:         pos.Trades(),
		RoundTrips:     trips,
		CapitalHistory: history,
		Summary:        s,
		Metrics:        m,
	}
}
