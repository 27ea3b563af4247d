package sim

import "time"

// Side is the direction of a trade leg. Positions are long only, so an open
// leg buys and a close leg sells.
type Side string

const (
	SideOpen  Side = "open"
	SideClose Side = "close"
)

// ExitKind says which rule closed a position.
type ExitKind string

const (
	ExitStopLoss     ExitKind = "stop_loss"
	ExitTakeProfit   ExitKind = "take_profit"
	ExitTrailingStop ExitKind = "trailing_stop"
	ExitSignal       ExitKind = "signal"
	ExitEndOfPeriod  ExitKind = "end_of_period"
)

// EndOfPeriod is the reason recorded when the last bar closes a position.
const EndOfPeriod = "end of period"

// Trade is one leg of a round trip. PnL and PnLPercentage are set on close
// legs only.
type Trade struct {
	Seq           int       `json:"seq"`
	Side          Side      `json:"side"`
	Time          time.Time `json:"time"`
	Price         float64   `json:"price"`
	Quantity      float64   `json:"quantity"`
	CapitalAfter  float64   `json:"capital_after"`
	Fees          float64   `json:"fees"`
	PnL           float64   `json:"pnl"`
	PnLPercentage float64   `json:"pnl_percentage"`
	Reason        string    `json:"reason"`
}

// RoundTrip is an entry fused with its exit, emitted when the position
// closes. PlannedRisk is the loss at the stop level fixed on entry and
// RiskPct that loss as a percent of cash before entry; RewardRisk is the
// target-to-stop ratio. All three are zero without a stop loss.
type RoundTrip struct {
	EntryTime     time.Time `json:"entry_time"`
	ExitTime      time.Time `json:"exit_time"`
	EntryPrice    float64   `json:"entry_price"`
	ExitPrice     float64   `json:"exit_price"`
	Quantity      float64   `json:"quantity"`
	EntryFees     float64   `json:"entry_fees"`
	ExitFees      float64   `json:"exit_fees"`
	PnL           float64   `json:"pnl"`
	PnLPercentage float64   `json:"pnl_percentage"`
	EntryReason   string    `json:"entry_reason"`
	ExitReason    string    `json:"exit_reason"`
	Exit          ExitKind  `json:"exit"`
	EntryBar      int       `json:"entry_bar"`
	ExitBar       int       `json:"exit_bar"`
	PlannedRisk   float64   `json:"planned_risk"`
	RiskPct       float64   `json:"risk_pct"`
	RewardRisk    float64   `json:"reward_risk"`
}

func (rt RoundTrip) Fees() float64 {
	return rt.EntryFees + rt.ExitFees
}

func (rt RoundTrip) BarsHeld() int {
	return rt.ExitBar - rt.EntryBar
}

func (rt RoundTrip) Win() bool  { return rt.PnL > 0 }
func (rt RoundTrip) Loss() bool { return rt.PnL < 0 }
