package market

import "time"

// Candle represents OHLCV (Open, High, Low, Close, Volume) bar data for one interval.
type Candle struct {
	Time   time.Time `json:"time" yaml:"time"`
	Open   float64   `json:"open" yaml:"open"`
	High   float64   `json:"high" yaml:"high"`
	Low    float64   `json:"low" yaml:"low"`
	Close  float64   `json:"close" yaml:"close"`
	Volume float64   `json:"volume" yaml:"volume"`
}

// Field returns the named price field of the candle.
// Valid names are open, high, low, close and volume.
func (c Candle) Field(name string) (float64, bool) {
	switch name {
	case FieldOpen:
		return c.Open, true
	case FieldHigh:
		return c.High, true
	case FieldLow:
		return c.Low, true
	case FieldClose:
		return c.Close, true
	case FieldVolume:
		return c.Volume, true
	}
	return 0, false
}

const (
	FieldOpen   = "open"
	FieldHigh   = "high"
	FieldLow    = "low"
	FieldClose  = "close"
	FieldVolume = "volume"
)

// PriceFields lists the candle fields that are always available to strategies.
var PriceFields = []string{FieldOpen, FieldHigh, FieldLow, FieldClose, FieldVolume}
