package risk

// Trailing tracks the high-water mark of closes since entry. The mark
// starts at the entry price.
type Trailing struct {
	pct       float64
	highWater float64
}

func NewTrailing(pct, entry float64) *Trailing {
	return &Trailing{pct: pct, highWater: entry}
}

func (t *Trailing) HighWater() float64 {
	return t.highWater
}

// Level is the current stop level.
func (t *Trailing) Level() float64 {
	return TrailingStopPrice(t.highWater, t.pct)
}

// Update raises the high-water mark to close if it is higher.
func (t *Trailing) Update(close float64) {
	if close > t.highWater {
		t.highWater = close
	}
}
