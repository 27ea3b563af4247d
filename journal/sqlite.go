package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/pkg/id"
)

var ErrRunNotFound = errors.New("journal: run not found")

// SQLite stores complete backtest results. It implements
// backtest.ResultStore.
type SQLite struct {
	db  *sql.DB
	log *zap.Logger
}

var _ backtest.ResultStore = (*SQLite)(nil)

// NewSQLite opens (or creates) the database at path and applies Schema. A
// nil logger disables logging. Writes are serialized over one connection,
// so a SQLite value may be shared by concurrent runs.
func NewSQLite(path string, log *zap.Logger) (*SQLite, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: apply schema: %w", err)
	}
	return &SQLite{db: db, log: log}, nil
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

const timeLayout = time.RFC3339Nano

func ts(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTS(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// SaveResult writes r and all its trades, round trips and equity points in
// one transaction. A result without a RunID gets a new one, set on r only
// once the transaction commits.
func (j *SQLite) SaveResult(ctx context.Context, r *backtest.Result) (err error) {
	runID := r.RunID
	if runID == "" {
		runID = id.New()
	}

	cfgJSON, err := json.Marshal(r.Config)
	if err != nil {
		return err
	}
	stratJSON, err := json.Marshal(r.Strategy)
	if err != nil {
		return err
	}
	sumJSON, err := json.Marshal(r.Summary)
	if err != nil {
		return err
	}
	metJSON, err := json.Marshal(r.Metrics)
	if err != nil {
		return err
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	created := time.Now()
	if t, perr := id.Time(runID); perr == nil {
		created = t
	}

	s, m := r.Summary, r.Metrics
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, created, instrument, interval, strategy, start_time, end_time, bars, round_trips, wins, losses,
		 initial_capital, final_capital, total_return_pct, max_drawdown_pct, alpha,
		 config_json, strategy_json, summary_json, metrics_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, ts(created), r.Config.Instrument, string(r.Config.Interval), s.Strategy,
		ts(s.Start), ts(s.End), s.Bars, s.RoundTrips, s.Wins, s.Losses,
		s.InitialCapital, s.FinalCapital, m.TotalReturnPercentage, m.MaxDrawdownPercentage, m.Alpha,
		string(cfgJSON), string(stratJSON), string(sumJSON), string(metJSON),
	)
	if err != nil {
		return fmt.Errorf("journal: insert run %s: %w", runID, err)
	}

	for _, t := range r.Trades {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO trades
			(run_id, seq, side, time, price, quantity, capital_after, fees, pnl, pnl_pct, reason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, t.Seq, string(t.Side), ts(t.Time), t.Price, t.Quantity,
			t.CapitalAfter, t.Fees, t.PnL, t.PnLPercentage, t.Reason,
		)
		if err != nil {
			return fmt.Errorf("journal: insert trade %d: %w", t.Seq, err)
		}
	}

	for i, rt := range r.RoundTrips {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO round_trips
			(run_id, seq, entry_time, exit_time, entry_price, exit_price, quantity, entry_fees, exit_fees,
			 pnl, pnl_pct, entry_reason, exit_reason, exit_kind, entry_bar, exit_bar,
			 planned_risk, risk_pct, reward_risk)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, i, ts(rt.EntryTime), ts(rt.ExitTime), rt.EntryPrice, rt.ExitPrice, rt.Quantity,
			rt.EntryFees, rt.ExitFees, rt.PnL, rt.PnLPercentage, rt.EntryReason, rt.ExitReason,
			string(rt.Exit), rt.EntryBar, rt.ExitBar,
			rt.PlannedRisk, rt.RiskPct, rt.RewardRisk,
		)
		if err != nil {
			return fmt.Errorf("journal: insert round trip %d: %w", i, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO equity (run_id, seq, time, equity) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, p := range r.CapitalHistory {
		if _, err = stmt.ExecContext(ctx, runID, i, ts(p.Time), p.Equity); err != nil {
			return fmt.Errorf("journal: insert equity %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}
	r.RunID = runID
	j.log.Debug("run saved",
		zap.String("run_id", runID),
		zap.Int("trades", len(r.Trades)),
		zap.Int("equity_points", len(r.CapitalHistory)),
	)
	return nil
}

// DeleteRun removes a run and everything recorded for it.
func (j *SQLite) DeleteRun(ctx context.Context, runID string) error {
	res, err := j.db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}
