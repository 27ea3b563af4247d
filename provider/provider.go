// Package provider loads candle series for backtests from CSV files,
// PostgreSQL, or an in-memory cache in front of either.
package provider

import (
	"errors"
	"time"

	"github.com/rustyeddy/backtester/market"
)

var (
	ErrNoCandles            = errors.New("no candles found in datasource")
	ErrIntervalNotSupported = errors.New("interval not supported")
)

// inRange reports whether t lies in [start, end). Zero bounds are open.
func inRange(t, start, end time.Time) bool {
	if !start.IsZero() && t.Before(start) {
		return false
	}
	if !end.IsZero() && !t.Before(end) {
		return false
	}
	return true
}

func checkInterval(iv market.Interval) error {
	if !iv.Valid() {
		return ErrIntervalNotSupported
	}
	return nil
}
