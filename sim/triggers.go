package sim

import "github.com/rustyeddy/backtester/market"

// The triggers compare a long position's levels against the bar's range.
// A zero level is disabled.

func hitStopLoss(c market.Candle, level float64) bool {
	return level > 0 && c.Low <= level
}

func hitTakeProfit(c market.Candle, level float64) bool {
	return level > 0 && c.High >= level
}
