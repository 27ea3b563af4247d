package backtest

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/risk"
	"github.com/rustyeddy/backtester/strategy"
)

// Config describes one run. PositionSizePct and FeeRate are fractions; Risk,
// when set, replaces the strategy's own risk policy.
type Config struct {
	Instrument      string             `json:"instrument" yaml:"instrument"`
	Start           time.Time          `json:"start" yaml:"start"`
	End             time.Time          `json:"end" yaml:"end"`
	Interval        market.Interval    `json:"interval" yaml:"interval"`
	InitialCapital  float64            `json:"initial_capital" yaml:"initial_capital"`
	PositionSizePct float64            `json:"position_size_pct" yaml:"position_size_pct"`
	FeeRate         float64            `json:"fee_rate" yaml:"fee_rate"`
	Strategy        strategy.Selection `json:"strategy" yaml:"strategy"`
	Risk            *risk.Policy       `json:"risk,omitempty" yaml:"risk,omitempty"`
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Validate checks the run parameters. It does not resolve the strategy; Run
// does that. Errors are *ConfigError.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Instrument) == "" {
		return &ConfigError{Field: "instrument", Msg: "instrument is required"}
	}
	if !c.Interval.Valid() {
		return &ConfigError{Field: "interval", Msg: fmt.Sprintf("unknown interval %q", c.Interval)}
	}
	if !c.Start.IsZero() && !c.End.IsZero() && !c.End.After(c.Start) {
		return &ConfigError{Field: "end", Msg: "end must be after start"}
	}
	if !finite(c.InitialCapital) || c.InitialCapital <= 0 {
		return &ConfigError{Field: "initial_capital", Msg: fmt.Sprintf("must be > 0, got %g", c.InitialCapital)}
	}
	if !finite(c.PositionSizePct) || c.PositionSizePct <= 0 || c.PositionSizePct > 1 {
		return &ConfigError{Field: "position_size_pct", Msg: fmt.Sprintf("must be in (0,1], got %g", c.PositionSizePct)}
	}
	if !finite(c.FeeRate) || c.FeeRate < 0 || c.FeeRate >= 1 {
		return &ConfigError{Field: "fee_rate", Msg: fmt.Sprintf("must be in [0,1), got %g", c.FeeRate)}
	}
	if c.Risk != nil {
		if err := c.Risk.Validate(); err != nil {
			return configErr("risk", err)
		}
	}
	return nil
}

// resolve returns the strategy of the run with the risk override applied.
func (c Config) resolve() (strategy.Config, error) {
	sc, err := c.Strategy.Resolve()
	if err != nil {
		return strategy.Config{}, configErr("strategy", err)
	}
	if c.Risk != nil {
		sc.Risk = *c.Risk
	}
	return sc, nil
}

// compile validates c and builds its strategy against reg. It returns the
// resolved strategy config along with the compiled form.
func (c Config) compile(reg *indicators.Registry) (strategy.Config, *strategy.Compiled, error) {
	if err := c.Validate(); err != nil {
		return strategy.Config{}, nil, err
	}
	sc, err := c.resolve()
	if err != nil {
		return strategy.Config{}, nil, err
	}
	strat, err := sc.Compile(reg)
	if err != nil {
		return strategy.Config{}, nil, configErr("strategy", err)
	}
	return sc, strat, nil
}
