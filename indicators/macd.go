package indicators

import (
	"fmt"

	"github.com/rustyeddy/backtester/market"
)

const (
	OutputSignal    = "signal"
	OutputHistogram = "histogram"
)

// MACD is the Moving Average Convergence Divergence indicator. The primary
// value is the MACD line (fast EMA - slow EMA); the signal line is an EMA of
// the MACD line and the histogram is their difference.
type MACD struct {
	fastPeriod, slowPeriod, signalPeriod int

	fast   *ExponentialMA
	slow   *ExponentialMA
	signal *ExponentialMA
}

func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{
		fastPeriod:   fast,
		slowPeriod:   slow,
		signalPeriod: signal,
		fast:         NewEMA(fast),
		slow:         NewEMA(slow),
		signal:       NewEMA(signal),
	}
}

func (m *MACD) Name() string {
	return fmt.Sprintf("MACD(%d,%d,%d)", m.fastPeriod, m.slowPeriod, m.signalPeriod)
}

func (m *MACD) Warmup() int {
	return m.slowPeriod + m.signalPeriod - 1
}

func (m *MACD) Reset() {
	m.fast.Reset()
	m.slow.Reset()
	m.signal.Reset()
}

func (m *MACD) Update(c market.Candle) {
	m.fast.Update(c)
	m.slow.Update(c)
	if m.fast.Ready() && m.slow.Ready() {
		m.signal.update(m.line())
	}
}

func (m *MACD) line() float64 {
	return m.fast.Value() - m.slow.Value()
}

func (m *MACD) Ready() bool {
	return m.signal.Ready()
}

func (m *MACD) Value() float64 {
	if !m.Ready() {
		return 0
	}
	return m.line()
}

func (m *MACD) Outputs() []string {
	return []string{OutputSignal, OutputHistogram}
}

func (m *MACD) Output(name string) float64 {
	if !m.Ready() {
		return 0
	}
	switch name {
	case OutputSignal:
		return m.signal.Value()
	case OutputHistogram:
		return m.line() - m.signal.Value()
	}
	return 0
}
