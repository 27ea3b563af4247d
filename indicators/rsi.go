package indicators

import (
	"fmt"

	"github.com/rustyeddy/backtester/market"
)

// RSI is a streaming Relative Strength Index using Wilder smoothing.
// The first value is produced after period price changes (period+1 candles).
type RSI struct {
	period int

	prevClose float64
	havePrev  bool

	changes int
	avgGain float64
	avgLoss float64
}

func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

func (r *RSI) Name() string {
	return fmt.Sprintf("RSI(%d)", r.period)
}

func (r *RSI) Warmup() int {
	return r.period + 1
}

func (r *RSI) Reset() {
	*r = RSI{period: r.period}
}

func (r *RSI) Update(c market.Candle) {
	if !r.havePrev {
		r.prevClose = c.Close
		r.havePrev = true
		return
	}

	change := c.Close - r.prevClose
	r.prevClose = c.Close

	var gain, loss float64
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}

	p := float64(r.period)
	if r.changes < r.period {
		// seed with the simple average of the first period changes
		r.avgGain += gain / p
		r.avgLoss += loss / p
		r.changes++
		return
	}
	r.avgGain = (r.avgGain*(p-1) + gain) / p
	r.avgLoss = (r.avgLoss*(p-1) + loss) / p
}

func (r *RSI) Ready() bool {
	return r.changes >= r.period
}

// Value returns the RSI in [0,100]. A series with no movement at all reads
// as a neutral 50.
func (r *RSI) Value() float64 {
	if !r.Ready() {
		return 0
	}
	if r.avgLoss == 0 {
		if r.avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := r.avgGain / r.avgLoss
	return 100 - 100/(1+rs)
}
