package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/sim"
)

// RunInfo is one row of the runs table.
type RunInfo struct {
	RunID          string
	Created        time.Time
	Instrument     string
	Interval       string
	Strategy       string
	Start          time.Time
	End            time.Time
	Bars           int
	RoundTrips     int
	Wins           int
	Losses         int
	InitialCapital float64
	FinalCapital   float64
	TotalReturnPct float64
	MaxDrawdownPct float64
	Alpha          float64
}

// RunFilter narrows ListRuns. Zero values match everything.
type RunFilter struct {
	Instrument string
	Strategy   string
	Limit      int
}

// ListRuns returns stored runs, newest first.
func (j *SQLite) ListRuns(ctx context.Context, f RunFilter) ([]RunInfo, error) {
	q := `
		SELECT run_id, created, instrument, interval, strategy, start_time, end_time, bars, round_trips,
		       wins, losses, initial_capital, final_capital, total_return_pct, max_drawdown_pct, alpha
		FROM runs
		WHERE (? = '' OR instrument = ?) AND (? = '' OR strategy = ?)
		ORDER BY created DESC, run_id DESC`
	args := []any{f.Instrument, f.Instrument, f.Strategy, f.Strategy}
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var (
			ri                  RunInfo
			created, start, end string
		)
		if err := rows.Scan(
			&ri.RunID, &created, &ri.Instrument, &ri.Interval, &ri.Strategy, &start, &end,
			&ri.Bars, &ri.RoundTrips, &ri.Wins, &ri.Losses, &ri.InitialCapital, &ri.FinalCapital,
			&ri.TotalReturnPct, &ri.MaxDrawdownPct, &ri.Alpha,
		); err != nil {
			return nil, err
		}
		if ri.Created, err = parseTS(created); err != nil {
			return nil, err
		}
		if ri.Start, err = parseTS(start); err != nil {
			return nil, err
		}
		if ri.End, err = parseTS(end); err != nil {
			return nil, err
		}
		out = append(out, ri)
	}
	return out, rows.Err()
}

// LoadResult rebuilds a stored result.
func (j *SQLite) LoadResult(ctx context.Context, runID string) (*backtest.Result, error) {
	var cfgJSON, stratJSON, sumJSON, metJSON string
	err := j.db.QueryRowContext(ctx, `
		SELECT config_json, strategy_json, summary_json, metrics_json
		FROM runs WHERE run_id = ?`, runID,
	).Scan(&cfgJSON, &stratJSON, &sumJSON, &metJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}

	r := &backtest.Result{RunID: runID}
	for _, part := range []struct {
		src string
		dst any
	}{
		{cfgJSON, &r.Config},
		{stratJSON, &r.Strategy},
		{sumJSON, &r.Summary},
		{metJSON, &r.Metrics},
	} {
		if err := json.Unmarshal([]byte(part.src), part.dst); err != nil {
			return nil, fmt.Errorf("journal: decode run %s: %w", runID, err)
		}
	}

	if r.Trades, err = j.loadTrades(ctx, runID); err != nil {
		return nil, err
	}
	if r.RoundTrips, err = j.loadRoundTrips(ctx, runID); err != nil {
		return nil, err
	}
	if r.CapitalHistory, err = j.loadEquity(ctx, runID); err != nil {
		return nil, err
	}
	return r, nil
}

func (j *SQLite) loadTrades(ctx context.Context, runID string) ([]sim.Trade, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, side, time, price, quantity, capital_after, fees, pnl, pnl_pct, reason
		FROM trades WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sim.Trade
	for rows.Next() {
		var (
			t        sim.Trade
			side, at string
		)
		if err := rows.Scan(&t.Seq, &side, &at, &t.Price, &t.Quantity, &t.CapitalAfter,
			&t.Fees, &t.PnL, &t.PnLPercentage, &t.Reason); err != nil {
			return nil, err
		}
		t.Side = sim.Side(side)
		if t.Time, err = parseTS(at); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (j *SQLite) loadRoundTrips(ctx context.Context, runID string) ([]sim.RoundTrip, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT entry_time, exit_time, entry_price, exit_price, quantity, entry_fees, exit_fees,
		       pnl, pnl_pct, entry_reason, exit_reason, exit_kind, entry_bar, exit_bar,
		       planned_risk, risk_pct, reward_risk
		FROM round_trips WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sim.RoundTrip
	for rows.Next() {
		var (
			rt                sim.RoundTrip
			entry, exit, kind string
		)
		if err := rows.Scan(&entry, &exit, &rt.EntryPrice, &rt.ExitPrice, &rt.Quantity,
			&rt.EntryFees, &rt.ExitFees, &rt.PnL, &rt.PnLPercentage, &rt.EntryReason,
			&rt.ExitReason, &kind, &rt.EntryBar, &rt.ExitBar,
			&rt.PlannedRisk, &rt.RiskPct, &rt.RewardRisk); err != nil {
			return nil, err
		}
		rt.Exit = sim.ExitKind(kind)
		if rt.EntryTime, err = parseTS(entry); err != nil {
			return nil, err
		}
		if rt.ExitTime, err = parseTS(exit); err != nil {
			return nil, err
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}

func (j *SQLite) loadEquity(ctx context.Context, runID string) ([]backtest.EquityPoint, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT time, equity FROM equity WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []backtest.EquityPoint
	for rows.Next() {
		var (
			p  backtest.EquityPoint
			at string
		)
		if err := rows.Scan(&at, &p.Equity); err != nil {
			return nil, err
		}
		if p.Time, err = parseTS(at); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
