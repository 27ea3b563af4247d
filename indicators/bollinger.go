package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/backtester/market"
)

const (
	OutputUpper  = "upper"
	OutputMiddle = "middle"
	OutputLower  = "lower"
)

// Bollinger computes Bollinger Bands over a rolling window of closes:
// middle = SMA(period), upper/lower = middle ± k·σ (population σ).
type Bollinger struct {
	period int
	k      float64
	win    *window
}

func NewBollinger(period int, k float64) *Bollinger {
	return &Bollinger{period: period, k: k, win: newWindow(period)}
}

func (b *Bollinger) Name() string {
	return fmt.Sprintf("BB(%d,%g)", b.period, b.k)
}

func (b *Bollinger) Warmup() int {
	return b.period
}

func (b *Bollinger) Reset() {
	b.win.reset()
}

func (b *Bollinger) Update(c market.Candle) {
	b.win.push(c.Close)
}

func (b *Bollinger) Ready() bool {
	return b.win.full()
}

// Value returns the middle band.
func (b *Bollinger) Value() float64 {
	if !b.Ready() {
		return 0
	}
	return b.win.mean()
}

func (b *Bollinger) Outputs() []string {
	return []string{OutputUpper, OutputMiddle, OutputLower}
}

func (b *Bollinger) Output(name string) float64 {
	if !b.Ready() {
		return 0
	}
	mid := b.win.mean()
	dev := b.k * math.Sqrt(b.win.variance())
	switch name {
	case OutputUpper:
		return mid + dev
	case OutputMiddle:
		return mid
	case OutputLower:
		return mid - dev
	}
	return 0
}
