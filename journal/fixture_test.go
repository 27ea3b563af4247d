package journal

import (
	"time"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/metrics"
	"github.com/rustyeddy/backtester/pkg/id"
	"github.com/rustyeddy/backtester/risk"
	"github.com/rustyeddy/backtester/signal"
	"github.com/rustyeddy/backtester/sim"
	"github.com/rustyeddy/backtester/strategy"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func day(i int) time.Time { return t0.AddDate(0, 0, i) }

func sampleStrategy() strategy.Config {
	return strategy.Config{
		Name:        "fast_slow",
		Description: "fast over slow",
		Indicators: []indicators.Definition{
			{Type: "sma", Key: "fast", Params: indicators.Params{"period": 2}},
			{Type: "sma", Key: "slow", Params: indicators.Params{"period": 3}},
		},
		Entry: signal.RuleSet{
			Conditions: []signal.Condition{{Indicator: "fast", Operator: signal.OpCrossesAbove, Compare: "slow"}},
			Combinator: signal.AllAnd,
		},
		Exit: signal.RuleSet{
			Conditions: []signal.Condition{{Indicator: "close", Operator: signal.OpLess, Value: signal.Const(90.5)}},
			Combinator: signal.AnyOr,
		},
		Risk: risk.Policy{StopLossPct: 5, TakeProfitPct: 10},
	}
}

// sampleResult is a hand-built result with two round trips over six daily
// bars. The numbers are consistent with each other but were not produced by
// the engine.
func sampleResult() *backtest.Result {
	sc := sampleStrategy()
	return &backtest.Result{
		RunID: id.NewAt(t0.Add(48 * time.Hour)),
		Config: backtest.Config{
			Instrument:      "BTC-USD",
			Start:           day(0),
			End:             day(6),
			Interval:        market.OneDay,
			InitialCapital:  1000,
			PositionSizePct: 1,
			FeeRate:         0.001,
			Strategy:        strategy.Selection{Custom: &sc},
		},
		Strategy: sc,
		Trades: []sim.Trade{
			{Seq: 0, Side: sim.SideOpen, Time: day(1), Price: 100, Quantity: 9.99, CapitalAfter: 0, Fees: 0.999, Reason: "fast crosses_above slow"},
			{Seq: 1, Side: sim.SideClose, Time: day(2), Price: 110, Quantity: 9.99, CapitalAfter: 1097.80101, Fees: 1.0989, PnL: 97.80101, PnLPercentage: 9.79, Reason: "take profit +10% at 110"},
			{Seq: 2, Side: sim.SideOpen, Time: day(3), Price: 108, Quantity: 10.1546, CapitalAfter: 0, Fees: 1.0967, Reason: "fast crosses_above slow"},
			{Seq: 3, Side: sim.SideClose, Time: day(5), Price: 102.6, Quantity: 10.1546, CapitalAfter: 1040.8, Fees: 1.0419, PnL: -57.0, PnLPercentage: -5.2, Reason: "stop loss -5% at 102.6"},
		},
		RoundTrips: []sim.RoundTrip{
			{EntryTime: day(1), ExitTime: day(2), EntryPrice: 100, ExitPrice: 110, Quantity: 9.99, EntryFees: 0.999, ExitFees: 1.0989, PnL: 97.80101, PnLPercentage: 9.79, EntryReason: "fast crosses_above slow", ExitReason: "take profit +10% at 110", Exit: sim.ExitTakeProfit, EntryBar: 1, ExitBar: 2},
			{EntryTime: day(3), ExitTime: day(5), EntryPrice: 108, ExitPrice: 102.6, Quantity: 10.1546, EntryFees: 1.0967, ExitFees: 1.0419, PnL: -57.0, PnLPercentage: -5.2, EntryReason: "fast crosses_above slow", ExitReason: "stop loss -5% at 102.6", Exit: sim.ExitStopLoss, EntryBar: 3, ExitBar: 5, PlannedRisk: 54.8348, RiskPct: 5.0291, RewardRisk: 2},
		},
		CapitalHistory: []backtest.EquityPoint{
			{Time: day(0), Equity: 1000},
			{Time: day(1), Equity: 999.001},
			{Time: day(2), Equity: 1097.80101},
			{Time: day(3), Equity: 1096.7},
			{Time: day(4), Equity: 1070.3},
			{Time: day(5), Equity: 1040.8},
		},
		Summary: backtest.Summary{
			Strategy:       "fast_slow",
			Bars:           6,
			Start:          day(0),
			End:            day(5),
			Trades:         4,
			RoundTrips:     2,
			Wins:           1,
			Losses:         1,
			WinRate:        0.5,
			TotalPnL:       40.80101,
			InitialCapital: 1000,
			FinalCapital:   1040.8,
			FirstClose:     99,
			LastClose:      102.6,
		},
		Metrics: metrics.Metrics{
			TotalReturn:                  40.8,
			TotalReturnPercentage:        4.08,
			MaxDrawdown:                  -57.00101,
			MaxDrawdownPercentage:        -5.19,
			MaxDrawdownDuration:          72 * time.Hour,
			Alpha:                        0.444,
			ProfitFactor:                 1.7158,
			AverageWin:                   97.80101,
			AverageLoss:                  -57.0,
			TotalFees:                    4.2365,
			HoldStrategyReturnPercentage: 3.636,
			WinRate:                      0.5,
			GrossProfit:                  97.80101,
			GrossLoss:                    -57.0,
			Expectancy:                   20.400505,
			MaxConsecutiveLosses:         1,
			AverageBarsHeld:              1.5,
			ExposurePercentage:           50,
			SharpeRatio:                  0.12,
		},
	}
}
