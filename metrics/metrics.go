// Package metrics computes the performance statistics of a finished run.
// Every function is a pure function of its inputs.
package metrics

import (
	"math"
	"time"

	"github.com/rustyeddy/backtester/sim"
)

// ProfitFactorNoLosses is reported as the profit factor when there are
// winning trades and no losing ones.
const ProfitFactorNoLosses = math.MaxFloat64

// EquityPoint is the mark-to-market equity at the close of one bar.
type EquityPoint struct {
	Time   time.Time `json:"time"`
	Equity float64   `json:"equity"`
}

// Input is everything Compute needs.
type Input struct {
	InitialCapital       float64
	Trades               []sim.Trade
	RoundTrips           []sim.RoundTrip
	Equity               []EquityPoint
	HoldReturnPercentage float64
}

// Metrics holds the run statistics. Percentages are in percent; WinRate is a
// fraction.
type Metrics struct {
	TotalReturn                  float64       `json:"total_return"`
	TotalReturnPercentage        float64       `json:"total_return_percentage"`
	MaxDrawdown                  float64       `json:"max_drawdown"`
	MaxDrawdownPercentage        float64       `json:"max_drawdown_percentage"`
	MaxDrawdownDuration          time.Duration `json:"max_drawdown_duration"`
	Alpha                        float64       `json:"alpha"`
	ProfitFactor                 float64       `json:"profit_factor"`
	AverageWin                   float64       `json:"average_win"`
	AverageLoss                  float64       `json:"average_loss"`
	TotalFees                    float64       `json:"total_fees"`
	HoldStrategyReturnPercentage float64       `json:"hold_strategy_return_percentage"`

	WinRate              float64 `json:"win_rate"`
	GrossProfit          float64 `json:"gross_profit"`
	GrossLoss            float64 `json:"gross_loss"`
	Expectancy           float64 `json:"expectancy"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
	AverageBarsHeld      float64 `json:"average_bars_held"`
	ExposurePercentage   float64 `json:"exposure_percentage"`
	SharpeRatio          float64 `json:"sharpe_ratio"`
}

func Compute(in Input) Metrics {
	var m Metrics

	final := in.InitialCapital
	if n := len(in.Equity); n > 0 {
		final = in.Equity[n-1].Equity
	}
	m.TotalReturn = final - in.InitialCapital
	if in.InitialCapital > 0 {
		m.TotalReturnPercentage = m.TotalReturn / in.InitialCapital * 100
	}
	m.HoldStrategyReturnPercentage = in.HoldReturnPercentage
	m.Alpha = m.TotalReturnPercentage - m.HoldStrategyReturnPercentage

	m.MaxDrawdown, m.MaxDrawdownPercentage, m.MaxDrawdownDuration = Drawdown(in.InitialCapital, in.Equity)

	for _, t := range in.Trades {
		m.TotalFees += t.Fees
	}

	var wins, losses, held int
	var total float64
	streak := 0
	for _, rt := range in.RoundTrips {
		total += rt.PnL
		held += rt.BarsHeld()
		switch {
		case rt.Win():
			wins++
			m.GrossProfit += rt.PnL
			streak = 0
		case rt.Loss():
			losses++
			m.GrossLoss += rt.PnL
			streak++
			m.MaxConsecutiveLosses = max(m.MaxConsecutiveLosses, streak)
		default:
			streak = 0
		}
	}

	if n := len(in.RoundTrips); n > 0 {
		m.WinRate = float64(wins) / float64(n)
		m.Expectancy = total / float64(n)
		m.AverageBarsHeld = float64(held) / float64(n)
	}
	if wins > 0 {
		m.AverageWin = m.GrossProfit / float64(wins)
	}
	if losses > 0 {
		m.AverageLoss = m.GrossLoss / float64(losses)
	}
	m.ProfitFactor = ProfitFactor(m.GrossProfit, m.GrossLoss)

	if len(in.Equity) > 0 {
		m.ExposurePercentage = float64(held) / float64(len(in.Equity)) * 100
	}
	m.SharpeRatio = Sharpe(in.InitialCapital, in.Equity)

	return m
}

// ProfitFactor is grossProfit / |grossLoss|. With no losses it is
// ProfitFactorNoLosses if there was any profit and 0 otherwise.
func ProfitFactor(grossProfit, grossLoss float64) float64 {
	if grossLoss == 0 {
		if grossProfit > 0 {
			return ProfitFactorNoLosses
		}
		return 0
	}
	return grossProfit / math.Abs(grossLoss)
}

// HoldReturnPercentage is the buy-and-hold return from first to last close,
// in percent. A zero first close yields 0.
func HoldReturnPercentage(firstClose, lastClose float64) float64 {
	if firstClose == 0 {
		return 0
	}
	return (lastClose/firstClose - 1) * 100
}

// Drawdown returns the deepest drop of equity below its running peak, as an
// amount and as a percentage of the peak at that instant (both ≤ 0), and
// the time from that peak to the deepest point. The peak starts at
// initial.
func Drawdown(initial float64, equity []EquityPoint) (float64, float64, time.Duration) {
	peak := initial
	var peakTime time.Time
	if len(equity) > 0 {
		peakTime = equity[0].Time
	}

	var dd, ddPct float64
	var dur time.Duration
	for _, p := range equity {
		if p.Equity > peak {
			peak = p.Equity
			peakTime = p.Time
		}
		d := p.Equity - peak
		if d < dd {
			dd = d
			dur = p.Time.Sub(peakTime)
		}
		if peak > 0 {
			if pct := d / peak * 100; pct < ddPct {
				ddPct = pct
			}
		}
	}
	return dd, ddPct, dur
}

// Sharpe is the unannualised mean over sample standard deviation of the
// per-bar equity returns. It is 0 with fewer than two returns or zero
// variance.
func Sharpe(initial float64, equity []EquityPoint) float64 {
	rets := make([]float64, 0, len(equity))
	prev := initial
	for _, p := range equity {
		if prev > 0 {
			rets = append(rets, p.Equity/prev-1)
		}
		prev = p.Equity
	}
	if len(rets) < 2 {
		return 0
	}

	var sum float64
	for _, r := range rets {
		sum += r
	}
	mean := sum / float64(len(rets))

	var ss float64
	for _, r := range rets {
		d := r - mean
		ss += d * d
	}
	sd := math.Sqrt(ss / float64(len(rets)-1))
	if sd == 0 {
		return 0
	}
	return mean / sd
}
