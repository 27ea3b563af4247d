package market

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrEmptySeries     = errors.New("empty candle series")
	ErrUnorderedSeries = errors.New("candles not strictly ascending by time")
	ErrNonFinite       = errors.New("non-finite candle value")
	ErrOutOfRange      = errors.New("open or close outside high/low range")
)

// ValidateSeries checks that candles are non-empty, strictly ascending by
// time and carry finite OHLCV values with open and close inside
// [low, high].
func ValidateSeries(candles []Candle) error {
	if len(candles) == 0 {
		return ErrEmptySeries
	}
	for i, c := range candles {
		for _, v := range [...]float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("candle %d (%s): %w", i, c.Time.Format(time.RFC3339), ErrNonFinite)
			}
		}
		if c.High < c.Low {
			return fmt.Errorf("candle %d (%s): high %g below low %g", i, c.Time.Format(time.RFC3339), c.High, c.Low)
		}
		if c.Open < c.Low || c.Open > c.High || c.Close < c.Low || c.Close > c.High {
			return fmt.Errorf("candle %d (%s): %w", i, c.Time.Format(time.RFC3339), ErrOutOfRange)
		}
		if c.Low < 0 {
			return fmt.Errorf("candle %d (%s): negative price %g", i, c.Time.Format(time.RFC3339), c.Low)
		}
		if i > 0 && !c.Time.After(candles[i-1].Time) {
			return fmt.Errorf("candle %d (%s): %w", i, c.Time.Format(time.RFC3339), ErrUnorderedSeries)
		}
	}
	return nil
}

type Gap struct {
	StartIdx int           // index of the first candle after the gap
	Missing  int           // number of missing intervals
	Span     time.Duration // wall time between the two candles
}

// Gaps reports places where consecutive candles are more than one interval
// apart. Weekend gaps on daily or intraday data are reported like any other.
func Gaps(candles []Candle, iv Interval) []Gap {
	d := iv.Duration()
	if d <= 0 || len(candles) < 2 {
		return nil
	}

	var gaps []Gap
	for i := 1; i < len(candles); i++ {
		span := candles[i].Time.Sub(candles[i-1].Time)
		if span <= d {
			continue
		}
		gaps = append(gaps, Gap{
			StartIdx: i,
			Missing:  int(span/d) - 1,
			Span:     span,
		})
	}
	return gaps
}

// Closes returns the close prices of the series.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
