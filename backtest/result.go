package backtest

import (
	"fmt"
	"time"

	"github.com/rustyeddy/backtester/metrics"
	"github.com/rustyeddy/backtester/sim"
	"github.com/rustyeddy/backtester/strategy"
)

// EquityPoint is one entry of the capital history.
type EquityPoint = metrics.EquityPoint

// Summary holds the counts and totals of a run.
type Summary struct {
	Strategy       string    `json:"strategy"`
	Bars           int       `json:"bars"`
	WarmupBars     int       `json:"warmup_bars"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	Trades         int       `json:"trades"`
	RoundTrips     int       `json:"round_trips"`
	Wins           int       `json:"wins"`
	Losses         int       `json:"losses"`
	WinRate        float64   `json:"win_rate"`
	TotalPnL       float64   `json:"total_pnl"`
	InitialCapital float64   `json:"initial_capital"`
	FinalCapital   float64   `json:"final_capital"`
	FirstClose     float64   `json:"first_close"`
	LastClose      float64   `json:"last_close"`
}

// Result is the complete output of a run. RunID is only set by Runner.
type Result struct {
	RunID          string          `json:"run_id,omitempty"`
	Config         Config          `json:"config"`
	Strategy       strategy.Config `json:"strategy"`
	Trades         []sim.Trade     `json:"trades"`
	RoundTrips     []sim.RoundTrip `json:"round_trips"`
	CapitalHistory []EquityPoint   `json:"capital_history"`
	Summary        Summary         `json:"summary"`
	Metrics        metrics.Metrics `json:"metrics"`
}

// Advice is a one-line reading of the result against buy-and-hold.
func (r *Result) Advice() string {
	m := r.Metrics
	switch {
	case r.Summary.RoundTrips == 0:
		return "No trades were triggered. Loosen the entry conditions or test a longer period."
	case m.MaxDrawdownPercentage <= -25:
		return fmt.Sprintf("Drawdown reached %.1f%%. Tighten the stop loss or reduce the position size before trading this.", m.MaxDrawdownPercentage)
	case m.Alpha > 0 && m.TotalReturn > 0:
		return fmt.Sprintf("The strategy beat buy-and-hold by %.2f%% with a %.0f%% win rate.", m.Alpha, m.WinRate*100)
	case m.TotalReturn > 0:
		return fmt.Sprintf("The strategy was profitable but trailed buy-and-hold by %.2f%%.", -m.Alpha)
	case m.Alpha > 0:
		return fmt.Sprintf("The strategy lost %.2f%% but lost less than buy-and-hold.", -m.TotalReturnPercentage)
	}
	return fmt.Sprintf("The strategy lost %.2f%% and trailed buy-and-hold by %.2f%%. Rework the entry and exit rules.", -m.TotalReturnPercentage, -m.Alpha)
}
