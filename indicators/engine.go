package indicators

import (
	"fmt"
	"strings"

	"github.com/rustyeddy/backtester/market"
)

// Definition declares one indicator instance of a strategy.
type Definition struct {
	Type   string `json:"type" yaml:"type"`
	Key    string `json:"key" yaml:"key"`
	Params Params `json:"params,omitempty" yaml:"params,omitempty"`
}

// Snapshot holds the indicator values of one bar. Keys whose indicator is
// still warming up are absent.
type Snapshot map[string]float64

func (s Snapshot) Get(key string) (float64, bool) {
	v, ok := s[key]
	return v, ok
}

// Engine updates a fixed set of indicators one candle at a time.
type Engine struct {
	names []string
	inds  []Indicator
	keys  []string
}

// NewEngine validates the definitions and instantiates their indicators.
// Keys must be unique, must not contain '.', and must not shadow a price
// field.
func NewEngine(reg *Registry, defs []Definition) (*Engine, error) {
	if reg == nil {
		reg = DefaultRegistry()
	}

	e := &Engine{
		keys: append([]string(nil), market.PriceFields...),
	}
	seen := make(map[string]bool)
	for _, f := range market.PriceFields {
		seen[f] = true
	}

	for i, def := range defs {
		key := strings.TrimSpace(def.Key)
		switch {
		case key == "":
			return nil, fmt.Errorf("indicator %d (%s): key is required", i, def.Type)
		case strings.Contains(key, "."):
			return nil, fmt.Errorf("indicator key %q must not contain '.'", key)
		case seen[key]:
			return nil, fmt.Errorf("duplicate indicator key %q", key)
		}
		seen[key] = true

		ind, err := reg.New(def)
		if err != nil {
			return nil, err
		}
		e.names = append(e.names, key)
		e.inds = append(e.inds, ind)
		e.keys = append(e.keys, outputKeys(key, ind)...)
	}
	return e, nil
}

func outputKeys(key string, ind Indicator) []string {
	keys := []string{key}
	if mv, ok := ind.(MultiValue); ok {
		for _, out := range mv.Outputs() {
			keys = append(keys, key+"."+out)
		}
	}
	return keys
}

// Keys returns every key a Snapshot of this engine can contain: the price
// fields followed by the indicator outputs.
func (e *Engine) Keys() []string {
	return append([]string(nil), e.keys...)
}

// Warmup returns the longest warm-up of the engine's indicators.
func (e *Engine) Warmup() int {
	n := 0
	for _, ind := range e.inds {
		if w := ind.Warmup(); w > n {
			n = w
		}
	}
	return n
}

// Update feeds c to every indicator and writes the bar's values into dst,
// which is cleared first. A nil dst is allocated.
func (e *Engine) Update(c market.Candle, dst Snapshot) Snapshot {
	if dst == nil {
		dst = make(Snapshot, len(e.keys))
	} else {
		clear(dst)
	}

	dst[market.FieldOpen] = c.Open
	dst[market.FieldHigh] = c.High
	dst[market.FieldLow] = c.Low
	dst[market.FieldClose] = c.Close
	dst[market.FieldVolume] = c.Volume

	for i, ind := range e.inds {
		ind.Update(c)
		if !ind.Ready() {
			continue
		}
		key := e.names[i]
		dst[key] = ind.Value()
		if mv, ok := ind.(MultiValue); ok {
			for _, out := range mv.Outputs() {
				dst[key+"."+out] = mv.Output(out)
			}
		}
	}
	return dst
}
