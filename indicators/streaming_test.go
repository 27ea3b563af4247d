package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/rustyeddy/backtester/market"
	"github.com/stretchr/testify/assert"
)

func closesToCandles(closes ...float64) []market.Candle {
	baseTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		out[i] = market.Candle{Open: c, High: c, Low: c, Close: c, Time: baseTime.Add(time.Duration(i) * time.Hour)}
	}
	return out
}

func TestSimpleMAStreaming(t *testing.T) {
	baseTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := []market.Candle{
		{Open: 100, High: 105, Low: 99, Close: 102, Time: baseTime, Volume: 1000},
		{Open: 102, High: 107, Low: 101, Close: 105, Time: baseTime.Add(time.Hour), Volume: 1100},
		{Open: 105, High: 108, Low: 104, Close: 106, Time: baseTime.Add(2 * time.Hour), Volume: 1200},
		{Open: 106, High: 110, Low: 105, Close: 108, Time: baseTime.Add(3 * time.Hour), Volume: 1300},
		{Open: 108, High: 112, Low: 107, Close: 110, Time: baseTime.Add(4 * time.Hour), Volume: 1400},
	}

	t.Run("basic functionality", func(t *testing.T) {
		ma := NewMA(3)
		assert.Equal(t, "MA(3)", ma.Name())
		assert.Equal(t, 3, ma.Warmup())
		assert.False(t, ma.Ready())
		assert.Equal(t, 0.0, ma.Value())

		ma.Update(candles[0])
		assert.False(t, ma.Ready())
		ma.Update(candles[1])
		assert.False(t, ma.Ready())

		// Third candle completes the window
		ma.Update(candles[2])
		assert.True(t, ma.Ready())
		expected := (102.0 + 105.0 + 106.0) / 3.0
		assert.InDelta(t, expected, ma.Value(), 0.001)

		// Fourth candle rolls the oldest value out
		ma.Update(candles[3])
		expected = (105.0 + 106.0 + 108.0) / 3.0
		assert.InDelta(t, expected, ma.Value(), 0.001)
	})

	t.Run("reset functionality", func(t *testing.T) {
		ma := NewMA(2)
		ma.Update(candles[0])
		ma.Update(candles[1])
		assert.True(t, ma.Ready())

		ma.Reset()
		assert.False(t, ma.Ready())
		assert.Equal(t, 0.0, ma.Value())
	})

	t.Run("matches batch calculation", func(t *testing.T) {
		ma := NewMA(3)
		for _, c := range candles {
			ma.Update(c)
		}
		batchResult, err := MA(candles, 3)
		assert.NoError(t, err)
		assert.InDelta(t, batchResult, ma.Value(), 1e-9)
	})

	t.Run("flat series stays exact", func(t *testing.T) {
		ma := NewMA(4)
		for _, c := range closesToCandles(100, 100, 100, 100, 100, 100, 100) {
			ma.Update(c)
		}
		assert.Equal(t, 100.0, ma.Value())
	})
}

func TestExponentialMAStreaming(t *testing.T) {
	candles := closesToCandles(102, 105, 106, 108, 110, 111, 113)

	t.Run("basic functionality", func(t *testing.T) {
		ema := NewEMA(3)
		assert.Equal(t, "EMA(3)", ema.Name())
		assert.Equal(t, 3, ema.Warmup())
		assert.False(t, ema.Ready())

		ema.Update(candles[0])
		ema.Update(candles[1])
		assert.False(t, ema.Ready())

		// Third candle seeds the EMA with the SMA
		ema.Update(candles[2])
		assert.True(t, ema.Ready())
		expectedSMA := (102.0 + 105.0 + 106.0) / 3.0
		assert.InDelta(t, expectedSMA, ema.Value(), 0.001)

		// multiplier = 2/(3+1) = 0.5
		ema.Update(candles[3])
		expectedEMA := (108.0-expectedSMA)*0.5 + expectedSMA
		assert.InDelta(t, expectedEMA, ema.Value(), 0.001)
	})

	t.Run("matches batch calculation", func(t *testing.T) {
		ema := NewEMA(5)
		for _, c := range candles {
			ema.Update(c)
		}
		batchResult, err := EMA(candles, 5)
		assert.NoError(t, err)
		assert.InDelta(t, batchResult, ema.Value(), 1e-9)
	})

	t.Run("batch errors", func(t *testing.T) {
		_, err := EMA(candles, 0)
		assert.Error(t, err)
		_, err = MA(candles, 50)
		assert.Error(t, err)
	})
}

func TestAverageTrueRangeStreaming(t *testing.T) {
	baseTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := []market.Candle{
		{High: 10, Low: 8, Close: 9, Time: baseTime},
		{High: 11, Low: 9, Close: 10, Time: baseTime.Add(time.Hour)},
		{High: 12, Low: 10, Close: 11, Time: baseTime.Add(2 * time.Hour)},
		{High: 11, Low: 9, Close: 10, Time: baseTime.Add(3 * time.Hour)},
		{High: 12, Low: 10, Close: 11, Time: baseTime.Add(4 * time.Hour)},
		{High: 13, Low: 11, Close: 12, Time: baseTime.Add(5 * time.Hour)},
	}

	t.Run("basic functionality", func(t *testing.T) {
		atr := NewATR(3)
		assert.Equal(t, "ATR(3)", atr.Name())
		assert.Equal(t, 4, atr.Warmup())

		for i := 0; i < 3; i++ {
			atr.Update(candles[i])
			assert.False(t, atr.Ready())
		}

		atr.Update(candles[3])
		assert.True(t, atr.Ready())
		// every true range in this data is 2
		assert.InDelta(t, 2.0, atr.Value(), 0.001)
	})

	t.Run("matches batch calculation", func(t *testing.T) {
		atr := NewATR(3)
		for _, c := range candles {
			atr.Update(c)
		}
		batchResult, err := ATRFunc(candles, 3)
		assert.NoError(t, err)
		assert.InDelta(t, batchResult, atr.Value(), 1e-9)
	})

	t.Run("true range uses previous close", func(t *testing.T) {
		current := market.Candle{High: 110, Low: 100, Close: 105}
		previous := market.Candle{Close: 120}
		assert.Equal(t, 20.0, trueRange(current, previous))
	})
}

func TestRSIStreaming(t *testing.T) {
	rsi := NewRSI(2)
	assert.Equal(t, "RSI(2)", rsi.Name())
	assert.Equal(t, 3, rsi.Warmup())

	candles := closesToCandles(10, 11, 12, 11, 13)

	rsi.Update(candles[0])
	rsi.Update(candles[1])
	assert.False(t, rsi.Ready())

	// changes +1,+1: no losses yet
	rsi.Update(candles[2])
	assert.True(t, rsi.Ready())
	assert.Equal(t, 100.0, rsi.Value())

	// -1: avgGain 0.5, avgLoss 0.5
	rsi.Update(candles[3])
	assert.InDelta(t, 50.0, rsi.Value(), 1e-9)

	// +2: avgGain 1.25, avgLoss 0.25 => RS 5
	rsi.Update(candles[4])
	assert.InDelta(t, 100-100.0/6, rsi.Value(), 1e-9)

	t.Run("flat series is neutral", func(t *testing.T) {
		r := NewRSI(3)
		for _, c := range closesToCandles(5, 5, 5, 5, 5) {
			r.Update(c)
		}
		assert.True(t, r.Ready())
		assert.Equal(t, 50.0, r.Value())
	})

	rsi.Reset()
	assert.False(t, rsi.Ready())
}

func TestMACDStreaming(t *testing.T) {
	candles := closesToCandles(10, 11, 13, 12, 15, 16, 14, 18)

	macd := NewMACD(2, 3, 2)
	fast, slow := NewEMA(2), NewEMA(3)
	signal := NewEMA(2)

	assert.Equal(t, "MACD(2,3,2)", macd.Name())
	assert.Equal(t, 4, macd.Warmup())

	for i, c := range candles {
		macd.Update(c)
		fast.Update(c)
		slow.Update(c)
		if fast.Ready() && slow.Ready() {
			signal.update(fast.Value() - slow.Value())
		}

		if i < 3 {
			assert.False(t, macd.Ready(), "bar %d", i)
			continue
		}
		assert.True(t, macd.Ready(), "bar %d", i)
		line := fast.Value() - slow.Value()
		assert.InDelta(t, line, macd.Value(), 1e-12)
		assert.InDelta(t, signal.Value(), macd.Output(OutputSignal), 1e-12)
		assert.InDelta(t, line-signal.Value(), macd.Output(OutputHistogram), 1e-12)
	}
	assert.Equal(t, []string{OutputSignal, OutputHistogram}, macd.Outputs())
}

func TestBollingerStreaming(t *testing.T) {
	bb := NewBollinger(3, 2)
	assert.Equal(t, "BB(3,2)", bb.Name())

	for _, c := range closesToCandles(1, 2, 3) {
		bb.Update(c)
	}
	assert.True(t, bb.Ready())

	sd := math.Sqrt(2.0 / 3.0)
	assert.InDelta(t, 2.0, bb.Value(), 1e-12)
	assert.InDelta(t, 2.0, bb.Output(OutputMiddle), 1e-12)
	assert.InDelta(t, 2+2*sd, bb.Output(OutputUpper), 1e-12)
	assert.InDelta(t, 2-2*sd, bb.Output(OutputLower), 1e-12)

	t.Run("flat series collapses the bands", func(t *testing.T) {
		flat := NewBollinger(4, 2)
		for _, c := range closesToCandles(7.3, 7.3, 7.3, 7.3, 7.3) {
			flat.Update(c)
		}
		assert.InDelta(t, flat.Output(OutputUpper), flat.Output(OutputLower), 1e-5)
	})
}

func TestADXStreaming(t *testing.T) {
	adx := NewADX(3)
	assert.Equal(t, 7, adx.Warmup())

	// steadily rising highs and lows: all movement is directional up
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		p := 100 + float64(i)
		adx.Update(market.Candle{Time: base.Add(time.Duration(i) * time.Hour), High: p + 1, Low: p - 1, Close: p})
		if i+1 < adx.Warmup() {
			assert.False(t, adx.Ready(), "candle %d", i)
		}
	}
	assert.True(t, adx.Ready())
	assert.InDelta(t, 100.0, adx.Value(), 1e-9)
	// +DM is 1 and the true range 2 on every bar
	assert.InDelta(t, 50.0, adx.Output(OutputPlusDI), 1e-9)
	assert.Equal(t, 0.0, adx.Output(OutputMinusDI))

	adx.Reset()
	assert.False(t, adx.Ready())
	assert.Equal(t, 0.0, adx.Value())
}

func TestIndicatorInterface(t *testing.T) {
	var _ Indicator = &SimpleMA{}
	var _ Indicator = &ExponentialMA{}
	var _ Indicator = &ATR{}
	var _ Indicator = &RSI{}
	var _ Indicator = &MACD{}
	var _ Indicator = &Bollinger{}
	var _ Indicator = &ADX{}
	var _ MultiValue = &MACD{}
	var _ MultiValue = &Bollinger{}
	var _ MultiValue = &ADX{}
}
