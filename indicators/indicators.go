// Package indicators provides streaming technical analysis indicators and an
// engine that evaluates a set of them bar by bar.
package indicators

import "github.com/rustyeddy/backtester/market"

// Indicator computes a streaming value from candles.
// It is deterministic and safe to use in replay and backtests.
type Indicator interface {
	// Name returns a stable identifier like "EMA(20)" or "RSI(14)".
	Name() string

	// Warmup returns how many updates are needed before Ready() can be true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next *closed* candle and updates internal state.
	Update(c market.Candle)

	// Ready reports whether Value() is meaningful (warmup completed).
	Ready() bool

	// Value returns the primary output. If !Ready() it returns 0; callers
	// should always check Ready().
	Value() float64
}

// MultiValue is implemented by indicators with more than one output, such as
// MACD or Bollinger Bands. Outputs are published as "<key>.<output>".
type MultiValue interface {
	Outputs() []string
	Output(name string) float64
}
