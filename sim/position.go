package sim

import (
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/risk"
)

var (
	ErrNotFlat = errors.New("sim: position already open")
	ErrNotLong = errors.New("sim: no open position")

	// ErrCannotOpen is returned when there is no price or no cash to buy
	// with. The position stays flat.
	ErrCannotOpen = errors.New("sim: cannot open position")
)

type State int

const (
	Flat State = iota
	Long
)

func (s State) String() string {
	if s == Long {
		return "LONG"
	}
	return "FLAT"
}

// Config parameterises a Position. PositionSizePct and FeeRate are
// fractions; the risk policy uses whole percents.
type Config struct {
	InitialCapital  float64
	PositionSizePct float64
	FeeRate         float64
	Risk            risk.Policy
}

// Position is the capital and single long-or-flat position of one run. It
// records every trade leg and emits a RoundTrip for each close.
type Position struct {
	cfg   Config
	cash  float64
	state State

	qty         float64
	entryPrice  float64
	entryFees   float64
	entryTime   time.Time
	entryBar    int
	entryReason string
	plan        risk.Plan
	plannedRisk float64
	riskPct     float64
	trail       *risk.Trailing

	trades []Trade
	trips  []RoundTrip
}

func New(cfg Config) *Position {
	return &Position{cfg: cfg, cash: cfg.InitialCapital}
}

func (p *Position) State() State  { return p.state }
func (p *Position) Cash() float64 { return p.cash }

// Equity is the mark-to-market value at price: cash plus the open quantity
// valued at price.
func (p *Position) Equity(price float64) float64 {
	if p.state == Long {
		return p.cash + p.qty*price
	}
	return p.cash
}

func (p *Position) Trades() []Trade         { return p.trades }
func (p *Position) RoundTrips() []RoundTrip { return p.trips }

// Open buys at price with PositionSizePct of the current cash. The fee is
// taken out of the allocation so quantity×price + fee equals it.
func (p *Position) Open(bar int, t time.Time, price float64, reason string) error {
	if p.state != Flat {
		return ErrNotFlat
	}
	if price <= 0 {
		return fmt.Errorf("%w: non-positive price %g", ErrCannotOpen, price)
	}

	equity := p.cash
	alloc := p.cash * p.cfg.PositionSizePct
	qty := risk.Quantity(p.cash, p.cfg.PositionSizePct, price, p.cfg.FeeRate)
	if qty <= 0 {
		return fmt.Errorf("%w: nothing to allocate from cash %g", ErrCannotOpen, p.cash)
	}
	fees := risk.Fee(qty, price, p.cfg.FeeRate)

	p.cash -= alloc

	p.state = Long
	p.qty = qty
	p.entryPrice = price
	p.entryFees = fees
	p.entryTime = t
	p.entryBar = bar
	p.entryReason = reason
	p.plan = p.cfg.Risk.Plan(price)
	p.plannedRisk, p.riskPct = 0, 0
	if p.plan.StopLoss > 0 {
		p.plannedRisk = risk.PlannedRisk(qty, price, p.plan.StopLoss)
		p.riskPct = risk.RiskPct(p.plannedRisk, equity) * 100
	}
	p.trail = nil
	if p.cfg.Risk.HasTrailingStop() {
		p.trail = risk.NewTrailing(*p.cfg.Risk.TrailingStopPct, price)
	}

	p.trades = append(p.trades, Trade{
		Seq:          len(p.trades),
		Side:         SideOpen,
		Time:         t,
		Price:        price,
		Quantity:     qty,
		CapitalAfter: p.cash,
		Fees:         fees,
		Reason:       reason,
	})
	return nil
}

// CheckRisk applies the risk exits to bar c, in priority order: stop loss,
// take profit, trailing stop. Bars up to and including the entry bar are
// never checked. It reports whether the position was closed. When nothing
// triggers, the trailing high-water mark is raised to the bar's close.
func (p *Position) CheckRisk(bar int, c market.Candle) bool {
	if p.state != Long || bar <= p.entryBar {
		return false
	}

	pol := p.cfg.Risk
	switch {
	case hitStopLoss(c, p.plan.StopLoss):
		p.close(bar, c.Time, p.plan.StopLoss, ExitStopLoss,
			fmt.Sprintf("stop loss -%g%% at %.10g", pol.StopLossPct, p.plan.StopLoss))
		return true

	case hitTakeProfit(c, p.plan.TakeProfit):
		p.close(bar, c.Time, p.plan.TakeProfit, ExitTakeProfit,
			fmt.Sprintf("take profit +%g%% at %.10g", pol.TakeProfitPct, p.plan.TakeProfit))
		return true

	case p.trail != nil && hitStopLoss(c, p.trail.Level()):
		level := p.trail.Level()
		p.close(bar, c.Time, level, ExitTrailingStop,
			fmt.Sprintf("trailing stop -%g%% from high %.10g at %.10g", *pol.TrailingStopPct, p.trail.HighWater(), level))
		return true
	}

	if p.trail != nil {
		p.trail.Update(c.Close)
	}
	return false
}

// Close sells the whole position at price because of a strategy exit.
func (p *Position) Close(bar int, t time.Time, price float64, reason string) error {
	if p.state != Long {
		return ErrNotLong
	}
	p.close(bar, t, price, ExitSignal, reason)
	return nil
}

// ForceClose closes an open position at the bar's close with the
// EndOfPeriod reason. It is a no-op when flat.
func (p *Position) ForceClose(bar int, c market.Candle) bool {
	if p.state != Long {
		return false
	}
	p.close(bar, c.Time, c.Close, ExitEndOfPeriod, EndOfPeriod)
	return true
}

func (p *Position) close(bar int, t time.Time, price float64, kind ExitKind, reason string) {
	notional := p.qty * price
	exitFees := notional * p.cfg.FeeRate
	proceeds := notional - exitFees
	cost := p.qty * p.entryPrice

	pnl := proceeds - (cost + p.entryFees)
	var pnlPct float64
	if cost > 0 {
		pnlPct = pnl / cost * 100
	}

	p.cash += proceeds

	p.trades = append(p.trades, Trade{
		Seq:           len(p.trades),
		Side:          SideClose,
		Time:          t,
		Price:         price,
		Quantity:      p.qty,
		CapitalAfter:  p.cash,
		Fees:          exitFees,
		PnL:           pnl,
		PnLPercentage: pnlPct,
		Reason:        reason,
	})
	p.trips = append(p.trips, RoundTrip{
		EntryTime:     p.entryTime,
		ExitTime:      t,
		EntryPrice:    p.entryPrice,
		ExitPrice:     price,
		Quantity:      p.qty,
		EntryFees:     p.entryFees,
		ExitFees:      exitFees,
		PnL:           pnl,
		PnLPercentage: pnlPct,
		EntryReason:   p.entryReason,
		ExitReason:    reason,
		Exit:          kind,
		EntryBar:      p.entryBar,
		ExitBar:       bar,
		PlannedRisk:   p.plannedRisk,
		RiskPct:       p.riskPct,
		RewardRisk:    p.plan.RR,
	})

	p.state = Flat
	p.qty = 0
	p.entryPrice = 0
	p.entryFees = 0
	p.entryReason = ""
	p.plan = risk.Plan{}
	p.plannedRisk, p.riskPct = 0, 0
	p.trail = nil
}
