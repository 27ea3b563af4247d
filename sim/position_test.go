package sim

import (
	"testing"
	"time"

	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func bar(i int, o, h, l, c float64) market.Candle {
	return market.Candle{Time: t0.Add(time.Duration(i) * time.Hour), Open: o, High: h, Low: l, Close: c}
}

func TestOpenSizingAndFees(t *testing.T) {
	t.Parallel()

	p := New(Config{InitialCapital: 10000, PositionSizePct: 0.5, FeeRate: 0.001})
	require.NoError(t, p.Open(0, t0, 100, "fast crosses_above slow"))

	assert.Equal(t, Long, p.State())
	wantQty := 5000 / (100 * 1.001)
	assert.InDelta(t, wantQty, p.Trades()[0].Quantity, 1e-9)
	assert.InDelta(t, 5000.0, p.Cash(), 1e-9)

	tr := p.Trades()
	require.Len(t, tr, 1)
	assert.Equal(t, SideOpen, tr[0].Side)
	assert.InDelta(t, wantQty*100*0.001, tr[0].Fees, 1e-9)
	assert.Equal(t, "fast crosses_above slow", tr[0].Reason)
	assert.Equal(t, 5000.0, tr[0].CapitalAfter)

	assert.ErrorIs(t, p.Open(1, t0, 100, "again"), ErrNotFlat)
	assert.InDelta(t, 5000+wantQty*110, p.Equity(110), 1e-9)
}

func TestCloseAccounting(t *testing.T) {
	t.Parallel()

	p := New(Config{InitialCapital: 10000, PositionSizePct: 1, FeeRate: 0.01})
	require.NoError(t, p.Open(0, t0, 100, "in"))
	qty := p.Trades()[0].Quantity
	entryFees := p.Trades()[0].Fees

	require.NoError(t, p.Close(3, t0.Add(3*time.Hour), 120, "out"))
	assert.Equal(t, Flat, p.State())

	proceeds := qty * 120 * 0.99
	pnl := proceeds - (qty*100 + entryFees)

	trips := p.RoundTrips()
	require.Len(t, trips, 1)
	rt := trips[0]
	assert.InDelta(t, pnl, rt.PnL, 1e-9)
	assert.InDelta(t, pnl/(qty*100)*100, rt.PnLPercentage, 1e-9)
	assert.Equal(t, ExitSignal, rt.Exit)
	assert.Equal(t, 3, rt.BarsHeld())
	assert.Equal(t, "in", rt.EntryReason)
	assert.Equal(t, "out", rt.ExitReason)
	assert.InDelta(t, entryFees+qty*120*0.01, rt.Fees(), 1e-9)

	assert.InDelta(t, proceeds, p.Cash(), 1e-9)
	assert.InDelta(t, 10000+pnl, p.Cash(), 1e-6)
	assert.ErrorIs(t, p.Close(4, t0, 120, "again"), ErrNotLong)
}

func TestZeroFeeRoundTripIsExact(t *testing.T) {
	t.Parallel()

	p := New(Config{InitialCapital: 10000, PositionSizePct: 1})
	require.NoError(t, p.Open(0, t0, 100, "in"))
	require.NoError(t, p.Close(1, t0.Add(time.Hour), 150, "out"))
	assert.Equal(t, 15000.0, p.Cash())
	assert.Equal(t, 5000.0, p.RoundTrips()[0].PnL)
	assert.Equal(t, 50.0, p.RoundTrips()[0].PnLPercentage)
}

func TestRiskExits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		policy    risk.Policy
		bars      []market.Candle
		wantExit  ExitKind
		wantPrice float64
		wantBar   int
	}{
		{
			name:      "stop loss fills at the stop, not the low",
			policy:    risk.Policy{StopLossPct: 5},
			bars:      []market.Candle{bar(1, 100, 100, 80, 80)},
			wantExit:  ExitStopLoss,
			wantPrice: 95,
			wantBar:   1,
		},
		{
			name:      "take profit fills at the target",
			policy:    risk.Policy{TakeProfitPct: 10},
			bars:      []market.Candle{bar(1, 100, 105, 99, 104), bar(2, 104, 115, 103, 114)},
			wantExit:  ExitTakeProfit,
			wantPrice: 110,
			wantBar:   2,
		},
		{
			name:      "stop wins when both touch",
			policy:    risk.Policy{StopLossPct: 5, TakeProfitPct: 10},
			bars:      []market.Candle{bar(1, 100, 120, 90, 100)},
			wantExit:  ExitStopLoss,
			wantPrice: 95,
			wantBar:   1,
		},
		{
			name:   "trailing stop follows the high-water close",
			policy: risk.Policy{TrailingStopPct: risk.Pct(10)},
			bars: []market.Candle{
				bar(1, 100, 121, 100, 120), // hwm 120, level 108
				bar(2, 120, 121, 110, 115), // no trigger
				bar(3, 115, 116, 107, 108), // low 107 <= 108
			},
			wantExit:  ExitTrailingStop,
			wantPrice: 108,
			wantBar:   3,
		},
		{
			name:      "take profit beats trailing stop",
			policy:    risk.Policy{TakeProfitPct: 10, TrailingStopPct: risk.Pct(1)},
			bars:      []market.Candle{bar(1, 100, 111, 98, 105)},
			wantExit:  ExitTakeProfit,
			wantPrice: 110,
			wantBar:   1,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := New(Config{InitialCapital: 1000, PositionSizePct: 1, Risk: tt.policy})
			require.NoError(t, p.Open(0, t0, 100, "in"))

			for i, c := range tt.bars {
				if p.CheckRisk(i+1, c) {
					break
				}
			}

			require.Len(t, p.RoundTrips(), 1)
			rt := p.RoundTrips()[0]
			assert.Equal(t, tt.wantExit, rt.Exit)
			assert.InDelta(t, tt.wantPrice, rt.ExitPrice, 1e-9)
			assert.Equal(t, tt.wantBar, rt.ExitBar)
		})
	}
}

func TestRiskNotCheckedOnEntryBar(t *testing.T) {
	t.Parallel()

	p := New(Config{InitialCapital: 1000, PositionSizePct: 1, Risk: risk.Policy{StopLossPct: 1}})
	require.NoError(t, p.Open(5, t0, 100, "in"))
	assert.False(t, p.CheckRisk(5, bar(5, 100, 100, 50, 100)))
	assert.Equal(t, Long, p.State())
}

func TestNoRiskRulesHolds(t *testing.T) {
	t.Parallel()

	p := New(Config{InitialCapital: 1000, PositionSizePct: 1})
	require.NoError(t, p.Open(0, t0, 100, "in"))
	assert.False(t, p.CheckRisk(1, bar(1, 100, 1000, 1, 50)))
	assert.Equal(t, Long, p.State())
}

func TestForceClose(t *testing.T) {
	t.Parallel()

	p := New(Config{InitialCapital: 1000, PositionSizePct: 1})
	assert.False(t, p.ForceClose(0, bar(0, 1, 1, 1, 1)), "flat is a no-op")

	require.NoError(t, p.Open(0, t0, 100, "in"))
	assert.True(t, p.ForceClose(4, bar(4, 100, 100, 100, 90)))

	rt := p.RoundTrips()[0]
	assert.Equal(t, ExitEndOfPeriod, rt.Exit)
	assert.Equal(t, EndOfPeriod, rt.ExitReason)
	assert.Equal(t, 90.0, rt.ExitPrice)

	tr := p.Trades()
	require.Len(t, tr, 2)
	assert.Equal(t, SideClose, tr[1].Side)
	assert.Equal(t, 1, tr[1].Seq)
	assert.Equal(t, tr[0].Quantity, tr[1].Quantity)
	assert.Equal(t, 900.0, p.Cash())
}

func TestOpenRejectsZeroPrice(t *testing.T) {
	t.Parallel()

	p := New(Config{InitialCapital: 1000, PositionSizePct: 1})
	assert.ErrorIs(t, p.Open(0, t0, 0, "in"), ErrCannotOpen)
	assert.Equal(t, Flat, p.State())
	assert.Empty(t, p.Trades())
}

func TestRoundTripPlannedRisk(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		policy   risk.Policy
		wantRisk float64
		wantPct  float64
		wantRR   float64
	}{
		// 5000 cash at 100 buys 50 units; a 4% stop loses 4 per unit.
		{"stop and target", risk.Policy{StopLossPct: 4, TakeProfitPct: 12}, 200, 2, 3},
		{"stop only", risk.Policy{StopLossPct: 4}, 200, 2, 0},
		{"target only", risk.Policy{TakeProfitPct: 12}, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := New(Config{InitialCapital: 10000, PositionSizePct: 0.5, Risk: tt.policy})
			require.NoError(t, p.Open(0, t0, 100, "in"))
			require.NoError(t, p.Close(1, t0.Add(time.Hour), 101, "out"))

			rt := p.RoundTrips()[0]
			assert.InDelta(t, tt.wantRisk, rt.PlannedRisk, 1e-9)
			assert.InDelta(t, tt.wantPct, rt.RiskPct, 1e-9)
			assert.InDelta(t, tt.wantRR, rt.RewardRisk, 1e-9)
		})
	}
}
