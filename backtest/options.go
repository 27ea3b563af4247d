package backtest

import (
	"time"

	"github.com/rustyeddy/backtester/indicators"
)

const (
	DefaultCheckEvery = 1024
	DefaultMaxBars    = 5_000_000
)

// Options bound and observe a run. The zero value uses the defaults.
type Options struct {
	// CheckEvery is how many bars pass between cancellation, budget and
	// progress checks.
	CheckEvery int

	// MaxBars rejects longer series. Negative means unlimited.
	MaxBars int

	// MaxDuration bounds wall-clock time. Zero means unlimited.
	MaxDuration time.Duration

	// Progress, if set, is called with the number of bars done so far.
	Progress func(done, total int)

	// Registry resolves indicator types. Nil means the default registry.
	Registry *indicators.Registry
}

func (o Options) withDefaults() Options {
	if o.CheckEvery <= 0 {
		o.CheckEvery = DefaultCheckEvery
	}
	if o.MaxBars == 0 {
		o.MaxBars = DefaultMaxBars
	}
	return o
}
