package signal

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rustyeddy/backtester/indicators"
)

type Operator string

const (
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
	OpEqual        Operator = "=="
	OpCrossesAbove Operator = "crosses_above"
	OpCrossesBelow Operator = "crosses_below"
)

// DefaultEpsilon is the absolute tolerance of "==" when a condition does not
// set its own.
const DefaultEpsilon = 1e-9

// Operators lists every supported operator.
var Operators = []Operator{
	OpGreater, OpLess, OpGreaterEqual, OpLessEqual, OpEqual, OpCrossesAbove, OpCrossesBelow,
}

func (o Operator) Valid() bool {
	for _, op := range Operators {
		if o == op {
			return true
		}
	}
	return false
}

// crossing reports whether o needs the previous bar.
func (o Operator) crossing() bool {
	return o == OpCrossesAbove || o == OpCrossesBelow
}

// Condition compares an indicator key against either a constant (Value) or
// another key of the same bar (Compare). Exactly one of the two is set.
type Condition struct {
	Indicator string   `json:"indicator" yaml:"indicator"`
	Operator  Operator `json:"operator" yaml:"operator"`
	Value     *float64 `json:"value,omitempty" yaml:"value,omitempty"`
	Compare   string   `json:"compare,omitempty" yaml:"compare,omitempty"`
	Epsilon   float64  `json:"epsilon,omitempty" yaml:"epsilon,omitempty"`
}

// Const returns a pointer to v, for building conditions in code.
func Const(v float64) *float64 {
	return &v
}

func (c Condition) String() string {
	rhs := c.Compare
	if c.Value != nil {
		rhs = strconv.FormatFloat(*c.Value, 'g', -1, 64)
	}
	return fmt.Sprintf("%s %s %s", c.Indicator, c.Operator, rhs)
}

func (c Condition) rhs(s indicators.Snapshot) (float64, bool) {
	if c.Value != nil {
		return *c.Value, true
	}
	return s.Get(c.Compare)
}

// eval evaluates c against the current bar (and the previous bar for the
// crossing operators). Any unavailable operand makes the condition false.
func (c Condition) eval(prev, cur indicators.Snapshot) bool {
	l, ok := cur.Get(c.Indicator)
	if !ok {
		return false
	}
	r, ok := c.rhs(cur)
	if !ok {
		return false
	}

	switch c.Operator {
	case OpGreater:
		return l > r
	case OpLess:
		return l < r
	case OpGreaterEqual:
		return l >= r
	case OpLessEqual:
		return l <= r
	case OpEqual:
		eps := c.Epsilon
		if eps == 0 {
			eps = DefaultEpsilon
		}
		return math.Abs(l-r) <= eps
	}

	if prev == nil {
		return false
	}
	pl, ok := prev.Get(c.Indicator)
	if !ok {
		return false
	}
	pr, ok := c.rhs(prev)
	if !ok {
		return false
	}
	switch c.Operator {
	case OpCrossesAbove:
		return pl <= pr && l > r
	case OpCrossesBelow:
		return pl >= pr && l < r
	}
	return false
}

type Combinator string

const (
	AllAnd Combinator = "ALL_AND"
	AnyOr  Combinator = "ANY_OR"
	Custom Combinator = "CUSTOM"
)

// ParseCombinator accepts the canonical names case-insensitively, plus
// "and"/"all" and "or"/"any". An empty string means AllAnd.
func ParseCombinator(s string) (Combinator, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "ALL_AND", "AND", "ALL":
		return AllAnd, nil
	case "ANY_OR", "OR", "ANY":
		return AnyOr, nil
	case "CUSTOM":
		return Custom, nil
	}
	return "", fmt.Errorf("%w: unknown combinator %q", ErrInvalidRule, s)
}

// Node is the serialised form of a CUSTOM expression. Op is one of "and",
// "or", "not" or "cond"; a "cond" node references RuleSet.Conditions by
// index.
type Node struct {
	Op   string `json:"op" yaml:"op"`
	Args []Node `json:"args,omitempty" yaml:"args,omitempty"`
	Cond *int   `json:"cond,omitempty" yaml:"cond,omitempty"`
}

// Ref returns a "cond" node referencing condition i.
func Ref(i int) Node {
	return Node{Op: "cond", Cond: &i}
}

func AndOf(args ...Node) Node { return Node{Op: "and", Args: args} }
func OrOf(args ...Node) Node  { return Node{Op: "or", Args: args} }
func NotOf(arg Node) Node     { return Node{Op: "not", Args: []Node{arg}} }

// RuleSet is the loosely typed rule description found in strategy files.
type RuleSet struct {
	Conditions []Condition `json:"conditions" yaml:"conditions"`
	Combinator Combinator  `json:"combinator,omitempty" yaml:"combinator,omitempty"`
	Expression *Node       `json:"expression,omitempty" yaml:"expression,omitempty"`
}

// Keys returns every snapshot key referenced by the rule set.
func (rs RuleSet) Keys() []string {
	var keys []string
	for _, c := range rs.Conditions {
		keys = append(keys, c.Indicator)
		if c.Compare != "" {
			keys = append(keys, c.Compare)
		}
	}
	return keys
}
