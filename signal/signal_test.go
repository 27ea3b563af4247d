package signal

import (
	"testing"

	"github.com/rustyeddy/backtester/indicators"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKeys = []string{"close", "fast", "slow", "rsi"}

func TestConditionOperators(t *testing.T) {
	t.Parallel()

	cur := indicators.Snapshot{"close": 10, "fast": 5, "slow": 5, "rsi": 30}

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{"greater", Condition{Indicator: "close", Operator: OpGreater, Value: Const(9)}, true},
		{"greater equal boundary", Condition{Indicator: "close", Operator: OpGreater, Value: Const(10)}, false},
		{"less", Condition{Indicator: "rsi", Operator: OpLess, Value: Const(31)}, true},
		{"greater or equal", Condition{Indicator: "fast", Operator: OpGreaterEqual, Compare: "slow"}, true},
		{"less or equal", Condition{Indicator: "fast", Operator: OpLessEqual, Compare: "slow"}, true},
		{"equal with default epsilon", Condition{Indicator: "rsi", Operator: OpEqual, Value: Const(30 + 1e-12)}, true},
		{"equal outside epsilon", Condition{Indicator: "rsi", Operator: OpEqual, Value: Const(30.1)}, false},
		{"equal custom epsilon", Condition{Indicator: "rsi", Operator: OpEqual, Value: Const(30.1), Epsilon: 0.5}, true},
		{"missing lhs", Condition{Indicator: "macd", Operator: OpGreater, Value: Const(0)}, false},
		{"missing rhs", Condition{Indicator: "close", Operator: OpGreater, Compare: "macd"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cond.eval(nil, cur))
		})
	}
}

func TestCrossing(t *testing.T) {
	t.Parallel()

	above := Condition{Indicator: "fast", Operator: OpCrossesAbove, Compare: "slow"}
	below := Condition{Indicator: "fast", Operator: OpCrossesBelow, Compare: "slow"}

	t.Run("no previous bar", func(t *testing.T) {
		assert.False(t, above.eval(nil, indicators.Snapshot{"fast": 2, "slow": 1}))
	})

	t.Run("cross above from equal", func(t *testing.T) {
		prev := indicators.Snapshot{"fast": 1, "slow": 1}
		cur := indicators.Snapshot{"fast": 2, "slow": 1}
		assert.True(t, above.eval(prev, cur))
		assert.False(t, below.eval(prev, cur))
	})

	t.Run("already above does not cross", func(t *testing.T) {
		prev := indicators.Snapshot{"fast": 3, "slow": 1}
		cur := indicators.Snapshot{"fast": 4, "slow": 1}
		assert.False(t, above.eval(prev, cur))
	})

	t.Run("cross below", func(t *testing.T) {
		prev := indicators.Snapshot{"fast": 3, "slow": 2}
		cur := indicators.Snapshot{"fast": 1, "slow": 2}
		assert.True(t, below.eval(prev, cur))
	})

	t.Run("previous value warming up", func(t *testing.T) {
		prev := indicators.Snapshot{"slow": 2}
		cur := indicators.Snapshot{"fast": 3, "slow": 2}
		assert.False(t, above.eval(prev, cur))
	})

	t.Run("cross a constant level", func(t *testing.T) {
		c := Condition{Indicator: "rsi", Operator: OpCrossesBelow, Value: Const(30)}
		assert.True(t, c.eval(indicators.Snapshot{"rsi": 35}, indicators.Snapshot{"rsi": 25}))
	})
}

func TestCompileCombinators(t *testing.T) {
	t.Parallel()

	conds := []Condition{
		{Indicator: "close", Operator: OpGreater, Value: Const(100)},
		{Indicator: "rsi", Operator: OpLess, Value: Const(30)},
	}
	both := indicators.Snapshot{"close": 101, "rsi": 20}
	first := indicators.Snapshot{"close": 101, "rsi": 50}
	none := indicators.Snapshot{"close": 99, "rsi": 50}

	t.Run("all and", func(t *testing.T) {
		r, err := Compile(RuleSet{Conditions: conds}, testKeys)
		require.NoError(t, err)

		ok, reasons := r.Evaluate(nil, both)
		assert.True(t, ok)
		assert.Equal(t, []string{"close > 100", "rsi < 30"}, reasons)

		ok, reasons = r.Evaluate(nil, first)
		assert.False(t, ok)
		assert.Nil(t, reasons)
	})

	t.Run("any or", func(t *testing.T) {
		r, err := Compile(RuleSet{Conditions: conds, Combinator: AnyOr}, testKeys)
		require.NoError(t, err)

		ok, reasons := r.Evaluate(nil, first)
		assert.True(t, ok)
		assert.Equal(t, []string{"close > 100"}, reasons)

		ok, reasons = r.Evaluate(nil, both)
		assert.True(t, ok)
		assert.Len(t, reasons, 2)

		ok, _ = r.Evaluate(nil, none)
		assert.False(t, ok)
	})

	t.Run("custom", func(t *testing.T) {
		// close > 100 AND NOT (rsi < 30)
		expr := AndOf(Ref(0), NotOf(Ref(1)))
		r, err := Compile(RuleSet{Conditions: conds, Combinator: Custom, Expression: &expr}, testKeys)
		require.NoError(t, err)
		assert.Equal(t, "close > 100 AND (NOT (rsi < 30))", r.String())

		ok, reasons := r.Evaluate(nil, first)
		assert.True(t, ok)
		assert.Equal(t, []string{"close > 100", "NOT (rsi < 30)"}, reasons)

		ok, _ = r.Evaluate(nil, both)
		assert.False(t, ok)
	})

	t.Run("nested or inside and", func(t *testing.T) {
		conds := append(conds, Condition{Indicator: "fast", Operator: OpGreater, Compare: "slow"})
		expr := AndOf(OrOf(Ref(0), Ref(1)), Ref(2))
		r, err := Compile(RuleSet{Conditions: conds, Combinator: "custom", Expression: &expr}, testKeys)
		require.NoError(t, err)

		ok, reasons := r.Evaluate(nil, indicators.Snapshot{"close": 50, "rsi": 20, "fast": 2, "slow": 1})
		assert.True(t, ok)
		assert.Equal(t, []string{"rsi < 30", "fast > slow"}, reasons)

		ok, _ = r.Evaluate(nil, indicators.Snapshot{"close": 50, "rsi": 20, "fast": 1, "slow": 2})
		assert.False(t, ok)
	})

	t.Run("empty rule never fires", func(t *testing.T) {
		r, err := Compile(RuleSet{}, testKeys)
		require.NoError(t, err)
		assert.True(t, r.Empty())
		ok, _ := r.Evaluate(nil, both)
		assert.False(t, ok)
	})
}

func TestCompileErrors(t *testing.T) {
	t.Parallel()

	idx := func(i int) *int { return &i }
	valid := Condition{Indicator: "close", Operator: OpGreater, Value: Const(1)}

	tests := []struct {
		name string
		rs   RuleSet
	}{
		{"unknown indicator", RuleSet{Conditions: []Condition{{Indicator: "sma50", Operator: OpGreater, Value: Const(1)}}}},
		{"unknown compare key", RuleSet{Conditions: []Condition{{Indicator: "close", Operator: OpGreater, Compare: "sma50"}}}},
		{"unknown operator", RuleSet{Conditions: []Condition{{Indicator: "close", Operator: "!=", Value: Const(1)}}}},
		{"both sides", RuleSet{Conditions: []Condition{{Indicator: "close", Operator: OpGreater, Value: Const(1), Compare: "fast"}}}},
		{"no rhs", RuleSet{Conditions: []Condition{{Indicator: "close", Operator: OpGreater}}}},
		{"epsilon on >", RuleSet{Conditions: []Condition{{Indicator: "close", Operator: OpGreater, Value: Const(1), Epsilon: 0.1}}}},
		{"unknown combinator", RuleSet{Conditions: []Condition{valid}, Combinator: "XOR"}},
		{"custom without expression", RuleSet{Conditions: []Condition{valid}, Combinator: Custom}},
		{"expression without custom", RuleSet{Conditions: []Condition{valid}, Expression: &Node{Op: "cond", Cond: idx(0)}}},
		{"index out of range", RuleSet{Conditions: []Condition{valid}, Combinator: Custom, Expression: &Node{Op: "cond", Cond: idx(3)}}},
		{"not with two args", RuleSet{Conditions: []Condition{valid}, Combinator: Custom, Expression: &Node{Op: "not", Args: []Node{Ref(0), Ref(0)}}}},
		{"empty and", RuleSet{Conditions: []Condition{valid}, Combinator: Custom, Expression: &Node{Op: "and"}}},
		{"unknown op", RuleSet{Conditions: []Condition{valid}, Combinator: Custom, Expression: &Node{Op: "xor", Args: []Node{Ref(0)}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.rs, testKeys)
			assert.ErrorIs(t, err, ErrInvalidRule)
		})
	}

	t.Run("too deep", func(t *testing.T) {
		n := Ref(0)
		for i := 0; i <= maxDepth+1; i++ {
			n = NotOf(n)
		}
		_, err := Compile(RuleSet{Conditions: []Condition{valid}, Combinator: Custom, Expression: &n}, testKeys)
		assert.ErrorIs(t, err, ErrInvalidRule)
	})
}

func TestRuleSetKeys(t *testing.T) {
	rs := RuleSet{Conditions: []Condition{
		{Indicator: "fast", Operator: OpCrossesAbove, Compare: "slow"},
		{Indicator: "rsi", Operator: OpLess, Value: Const(70)},
	}}
	assert.Equal(t, []string{"fast", "slow", "rsi"}, rs.Keys())
}
