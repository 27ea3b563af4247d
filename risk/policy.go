package risk

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidPolicy = errors.New("invalid risk policy")

// Policy holds the per-position exit rules. Percentages are whole numbers
// (5 = 5%); zero disables a rule. TrailingStopPct is optional.
type Policy struct {
	StopLossPct     float64  `json:"stop_loss_pct" yaml:"stop_loss_pct"`
	TakeProfitPct   float64  `json:"take_profit_pct" yaml:"take_profit_pct"`
	TrailingStopPct *float64 `json:"trailing_stop_pct,omitempty" yaml:"trailing_stop_pct,omitempty"`
}

// Pct returns a pointer to v, for TrailingStopPct.
func Pct(v float64) *float64 {
	return &v
}

func (p Policy) Validate() error {
	check := func(name string, v float64) error {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: %s must be >= 0, got %g", ErrInvalidPolicy, name, v)
		}
		return nil
	}
	if err := check("stop_loss_pct", p.StopLossPct); err != nil {
		return err
	}
	if p.StopLossPct >= 100 {
		return fmt.Errorf("%w: stop_loss_pct must be below 100, got %g", ErrInvalidPolicy, p.StopLossPct)
	}
	if err := check("take_profit_pct", p.TakeProfitPct); err != nil {
		return err
	}
	if p.TrailingStopPct != nil {
		if err := check("trailing_stop_pct", *p.TrailingStopPct); err != nil {
			return err
		}
		if *p.TrailingStopPct >= 100 {
			return fmt.Errorf("%w: trailing_stop_pct must be below 100, got %g", ErrInvalidPolicy, *p.TrailingStopPct)
		}
	}
	return nil
}

func (p Policy) HasStopLoss() bool   { return p.StopLossPct > 0 }
func (p Policy) HasTakeProfit() bool { return p.TakeProfitPct > 0 }

func (p Policy) HasTrailingStop() bool {
	return p.TrailingStopPct != nil && *p.TrailingStopPct > 0
}

// Plan is the set of exit levels for one entry. Disabled levels are zero.
type Plan struct {
	Entry      float64
	StopLoss   float64
	TakeProfit float64
	RR         float64
}

func (p Policy) Plan(entry float64) Plan {
	pl := Plan{Entry: entry}
	if p.HasStopLoss() {
		pl.StopLoss = StopLossPrice(entry, p.StopLossPct)
	}
	if p.HasTakeProfit() {
		pl.TakeProfit = TakeProfitPrice(entry, p.TakeProfitPct)
	}
	if pl.StopLoss > 0 && pl.TakeProfit > 0 {
		pl.RR = RR(entry, pl.StopLoss, pl.TakeProfit)
	}
	return pl
}

func (p Policy) String() string {
	s := fmt.Sprintf("sl=%g%% tp=%g%%", p.StopLossPct, p.TakeProfitPct)
	if p.HasTrailingStop() {
		s += fmt.Sprintf(" trail=%g%%", *p.TrailingStopPct)
	}
	return s
}
