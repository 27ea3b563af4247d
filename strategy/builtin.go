package strategy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/risk"
	"github.com/rustyeddy/backtester/signal"
)

// Builder makes a built-in strategy from its parameters. Unset parameters
// take the builder's defaults.
type Builder func(p indicators.Params) (Config, error)

var builtins = map[string]Builder{
	"sma_crossover":       smaCrossover,
	"ema_crossover":       emaCrossover,
	"ema_adx":             emaADX,
	"rsi_reversal":        rsiReversal,
	"macd_crossover":      macdCrossover,
	"bollinger_reversion": bollingerReversion,
}

// Builtins returns the ids of the built-in strategies, sorted.
func Builtins() []string {
	ids := make([]string, 0, len(builtins))
	for id := range builtins {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Builtin builds the built-in strategy id. Ids are case insensitive and
// accept '-' for '_'.
func Builtin(id string, p indicators.Params) (Config, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(id)), "-", "_")
	b, ok := builtins[key]
	if !ok {
		return Config{}, fmt.Errorf("%w %q (supported: %s)", ErrUnknownStrategy, id, strings.Join(Builtins(), ", "))
	}
	c, err := b(p)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err)
	}
	return c, nil
}

// policy reads the risk parameters shared by every built-in.
func policy(p indicators.Params, sl, tp float64) (risk.Policy, error) {
	pol := risk.Policy{StopLossPct: sl, TakeProfitPct: tp}
	if v, ok := p["stop_loss_pct"]; ok {
		pol.StopLossPct = v
	}
	if v, ok := p["take_profit_pct"]; ok {
		pol.TakeProfitPct = v
	}
	if v, ok := p["trailing_stop_pct"]; ok {
		pol.TrailingStopPct = risk.Pct(v)
	}
	return pol, pol.Validate()
}

func crossover(typ, name string, p indicators.Params, fastDef, slowDef int) (Config, error) {
	fast, err := p.Int("fast", fastDef)
	if err != nil {
		return Config{}, err
	}
	slow, err := p.Int("slow", slowDef)
	if err != nil {
		return Config{}, err
	}
	if fast >= slow {
		return Config{}, fmt.Errorf("fast period %d must be below slow period %d", fast, slow)
	}
	pol, err := policy(p, 5, 15)
	if err != nil {
		return Config{}, err
	}

	return Config{
		Name:        name,
		Description: fmt.Sprintf("Buy when %s(%d) crosses above %s(%d), sell on the opposite cross.", strings.ToUpper(typ), fast, strings.ToUpper(typ), slow),
		Indicators: []indicators.Definition{
			{Type: typ, Key: "fast", Params: indicators.Params{"period": float64(fast)}},
			{Type: typ, Key: "slow", Params: indicators.Params{"period": float64(slow)}},
		},
		Entry: signal.RuleSet{Conditions: []signal.Condition{
			{Indicator: "fast", Operator: signal.OpCrossesAbove, Compare: "slow"},
		}},
		Exit: signal.RuleSet{Conditions: []signal.Condition{
			{Indicator: "fast", Operator: signal.OpCrossesBelow, Compare: "slow"},
		}},
		Risk: pol,
	}, nil
}

func smaCrossover(p indicators.Params) (Config, error) {
	return crossover("sma", "sma_crossover", p, 10, 30)
}

func emaCrossover(p indicators.Params) (Config, error) {
	return crossover("ema", "ema_crossover", p, 12, 26)
}

func rsiReversal(p indicators.Params) (Config, error) {
	period, err := p.Int("period", 14)
	if err != nil {
		return Config{}, err
	}
	oversold, err := p.Float("oversold", 30)
	if err != nil {
		return Config{}, err
	}
	overbought, err := p.Float("overbought", 70)
	if err != nil {
		return Config{}, err
	}
	if oversold >= overbought || overbought >= 100 {
		return Config{}, fmt.Errorf("need 0 < oversold %g < overbought %g < 100", oversold, overbought)
	}
	pol, err := policy(p, 5, 10)
	if err != nil {
		return Config{}, err
	}

	return Config{
		Name:        "rsi_reversal",
		Description: fmt.Sprintf("Buy when RSI(%d) recovers above %g, sell when it reaches %g.", period, oversold, overbought),
		Indicators: []indicators.Definition{
			{Type: "rsi", Key: "rsi", Params: indicators.Params{"period": float64(period)}},
		},
		Entry: signal.RuleSet{Conditions: []signal.Condition{
			{Indicator: "rsi", Operator: signal.OpCrossesAbove, Value: signal.Const(oversold)},
		}},
		Exit: signal.RuleSet{Conditions: []signal.Condition{
			{Indicator: "rsi", Operator: signal.OpGreaterEqual, Value: signal.Const(overbought)},
		}},
		Risk: pol,
	}, nil
}

func macdCrossover(p indicators.Params) (Config, error) {
	fast, err := p.Int("fast", 12)
	if err != nil {
		return Config{}, err
	}
	slow, err := p.Int("slow", 26)
	if err != nil {
		return Config{}, err
	}
	sig, err := p.Int("signal", 9)
	if err != nil {
		return Config{}, err
	}
	pol, err := policy(p, 5, 0)
	if err != nil {
		return Config{}, err
	}
	if pol.TrailingStopPct == nil {
		pol.TrailingStopPct = risk.Pct(8)
	}

	return Config{
		Name:        "macd_crossover",
		Description: fmt.Sprintf("Buy when MACD(%d,%d,%d) crosses above its signal line, sell on the opposite cross.", fast, slow, sig),
		Indicators: []indicators.Definition{
			{Type: "macd", Key: "macd", Params: indicators.Params{
				"fast": float64(fast), "slow": float64(slow), "signal": float64(sig),
			}},
		},
		Entry: signal.RuleSet{Conditions: []signal.Condition{
			{Indicator: "macd", Operator: signal.OpCrossesAbove, Compare: "macd.signal"},
		}},
		Exit: signal.RuleSet{Conditions: []signal.Condition{
			{Indicator: "macd", Operator: signal.OpCrossesBelow, Compare: "macd.signal"},
		}},
		Risk: pol,
	}, nil
}

func bollingerReversion(p indicators.Params) (Config, error) {
	period, err := p.Int("period", 20)
	if err != nil {
		return Config{}, err
	}
	k, err := p.Float("stddev", 2)
	if err != nil {
		return Config{}, err
	}
	pol, err := policy(p, 5, 0)
	if err != nil {
		return Config{}, err
	}

	return Config{
		Name:        "bollinger_reversion",
		Description: fmt.Sprintf("Buy when the close drops below the lower Bollinger band (%d, %g), sell at the middle band.", period, k),
		Indicators: []indicators.Definition{
			{Type: "bollinger", Key: "bb", Params: indicators.Params{"period": float64(period), "stddev": k}},
		},
		Entry: signal.RuleSet{Conditions: []signal.Condition{
			{Indicator: "close", Operator: signal.OpLess, Compare: "bb.lower"},
		}},
		Exit: signal.RuleSet{Conditions: []signal.Condition{
			{Indicator: "close", Operator: signal.OpGreaterEqual, Compare: "bb.middle"},
		}},
		Risk: pol,
	}, nil
}

// emaADX is the EMA crossover gated by trend strength: the cross only
// counts while ADX is at least the threshold and +DI leads -DI.
func emaADX(p indicators.Params) (Config, error) {
	c, err := crossover("ema", "ema_adx", p, 10, 30)
	if err != nil {
		return Config{}, err
	}
	period, err := p.Int("adx_period", 14)
	if err != nil {
		return Config{}, err
	}
	threshold, err := p.Float("adx_threshold", 20)
	if err != nil {
		return Config{}, err
	}
	if threshold < 0 || threshold >= 100 {
		return Config{}, fmt.Errorf("adx_threshold %g must be in [0,100)", threshold)
	}

	c.Description = fmt.Sprintf("%s Entries need ADX(%d) >= %g with +DI above -DI.", c.Description, period, threshold)
	c.Indicators = append(c.Indicators,
		indicators.Definition{Type: "adx", Key: "adx", Params: indicators.Params{"period": float64(period)}})
	c.Entry.Combinator = signal.AllAnd
	c.Entry.Conditions = append(c.Entry.Conditions,
		signal.Condition{Indicator: "adx", Operator: signal.OpGreaterEqual, Value: signal.Const(threshold)},
		signal.Condition{Indicator: "adx.plus_di", Operator: signal.OpGreater, Compare: "adx.minus_di"},
	)
	return c, nil
}
