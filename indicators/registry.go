package indicators

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
)

var ErrUnknownType = errors.New("unknown indicator type")

// Params holds numeric indicator parameters such as "period".
type Params map[string]float64

// MaxPeriod bounds integer parameters. Indicators keep a window of that
// many values, so the bound caps memory per indicator.
const MaxPeriod = 10_000

// Int returns an integer parameter in [1, MaxPeriod], or def when it is
// not set.
func (p Params) Int(name string, def int) (int, error) {
	v, ok := p[name]
	if !ok {
		return def, nil
	}
	if v < 1 || v != math.Trunc(v) {
		return 0, fmt.Errorf("%s must be a positive integer, got %g", name, v)
	}
	if v > MaxPeriod {
		return 0, fmt.Errorf("%s must be at most %d, got %g", name, MaxPeriod, v)
	}
	return int(v), nil
}

// Float returns a strictly positive parameter, or def when it is not set.
func (p Params) Float(name string, def float64) (float64, error) {
	v, ok := p[name]
	if !ok {
		return def, nil
	}
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s must be positive, got %g", name, v)
	}
	return v, nil
}

// Factory builds a fresh indicator from its parameters.
type Factory func(Params) (Indicator, error)

// Registry maps indicator type names ("sma", "rsi", ...) to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry with SMA, EMA, RSI, MACD, Bollinger
// Bands, ATR and ADX registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("sma", func(p Params) (Indicator, error) {
		n, err := p.Int("period", 20)
		if err != nil {
			return nil, err
		}
		return NewMA(n), nil
	})
	r.Register("ema", func(p Params) (Indicator, error) {
		n, err := p.Int("period", 20)
		if err != nil {
			return nil, err
		}
		return NewEMA(n), nil
	})
	r.Register("rsi", func(p Params) (Indicator, error) {
		n, err := p.Int("period", 14)
		if err != nil {
			return nil, err
		}
		return NewRSI(n), nil
	})
	r.Register("macd", func(p Params) (Indicator, error) {
		fast, err := p.Int("fast", 12)
		if err != nil {
			return nil, err
		}
		slow, err := p.Int("slow", 26)
		if err != nil {
			return nil, err
		}
		signal, err := p.Int("signal", 9)
		if err != nil {
			return nil, err
		}
		if fast >= slow {
			return nil, fmt.Errorf("fast period %d must be below slow period %d", fast, slow)
		}
		return NewMACD(fast, slow, signal), nil
	})
	r.Register("bollinger", func(p Params) (Indicator, error) {
		n, err := p.Int("period", 20)
		if err != nil {
			return nil, err
		}
		k, err := p.Float("stddev", 2)
		if err != nil {
			return nil, err
		}
		return NewBollinger(n, k), nil
	})
	r.Register("atr", func(p Params) (Indicator, error) {
		n, err := p.Int("period", 14)
		if err != nil {
			return nil, err
		}
		return NewATR(n), nil
	})
	r.Register("adx", func(p Params) (Indicator, error) {
		n, err := p.Int("period", 14)
		if err != nil {
			return nil, err
		}
		return NewADX(n), nil
	})
	return r
}

// Register adds or replaces the factory for typ. Type names are case
// insensitive.
func (r *Registry) Register(typ string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(typ)] = f
}

// New builds the indicator described by def.
func (r *Registry) New(def Definition) (Indicator, error) {
	r.mu.RLock()
	f, ok := r.factories[strings.ToLower(def.Type)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownType, def.Type)
	}
	ind, err := f(def.Params)
	if err != nil {
		return nil, fmt.Errorf("%s %q: %w", def.Type, def.Key, err)
	}
	return ind, nil
}

// Types returns the registered type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
