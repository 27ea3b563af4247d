package signal

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rustyeddy/backtester/indicators"
)

var ErrInvalidRule = errors.New("invalid rule")

// maxDepth bounds CUSTOM expression nesting.
const maxDepth = 32

// Rule is a compiled rule set. The zero Rule never fires.
type Rule struct {
	expr Expr
}

// Compile validates rs against the set of keys a snapshot can contain and
// builds its expression tree. Every error wraps ErrInvalidRule.
func Compile(rs RuleSet, knownKeys []string) (Rule, error) {
	known := make(map[string]bool, len(knownKeys))
	for _, k := range knownKeys {
		known[k] = true
	}

	leaves := make([]Expr, len(rs.Conditions))
	for i, c := range rs.Conditions {
		if err := checkCondition(c, known); err != nil {
			return Rule{}, fmt.Errorf("%w: condition %d (%s): %v", ErrInvalidRule, i, c, err)
		}
		leaves[i] = Leaf{Cond: c}
	}

	comb, err := ParseCombinator(string(rs.Combinator))
	if err != nil {
		return Rule{}, err
	}

	if comb != Custom && rs.Expression != nil {
		return Rule{}, fmt.Errorf("%w: expression is only allowed with the %s combinator", ErrInvalidRule, Custom)
	}
	if len(leaves) == 0 {
		if rs.Expression != nil {
			return Rule{}, fmt.Errorf("%w: expression without conditions", ErrInvalidRule)
		}
		return Rule{}, nil
	}

	switch comb {
	case AllAnd:
		if len(leaves) == 1 {
			return Rule{expr: leaves[0]}, nil
		}
		return Rule{expr: And(leaves)}, nil
	case AnyOr:
		if len(leaves) == 1 {
			return Rule{expr: leaves[0]}, nil
		}
		return Rule{expr: Or(leaves)}, nil
	}

	if rs.Expression == nil {
		return Rule{}, fmt.Errorf("%w: %s combinator requires an expression", ErrInvalidRule, Custom)
	}
	expr, err := build(*rs.Expression, leaves, 0)
	if err != nil {
		return Rule{}, fmt.Errorf("%w: expression: %v", ErrInvalidRule, err)
	}
	return Rule{expr: expr}, nil
}

func checkCondition(c Condition, known map[string]bool) error {
	if strings.TrimSpace(c.Indicator) == "" {
		return errors.New("indicator is required")
	}
	if !known[c.Indicator] {
		return fmt.Errorf("unknown indicator %q", c.Indicator)
	}
	if !c.Operator.Valid() {
		return fmt.Errorf("unknown operator %q", c.Operator)
	}
	switch {
	case c.Value != nil && c.Compare != "":
		return errors.New("set either value or compare, not both")
	case c.Value == nil && c.Compare == "":
		return errors.New("value or compare is required")
	case c.Value != nil && (math.IsNaN(*c.Value) || math.IsInf(*c.Value, 0)):
		return errors.New("value must be finite")
	case c.Compare != "" && !known[c.Compare]:
		return fmt.Errorf("unknown indicator %q", c.Compare)
	}
	if c.Epsilon < 0 || math.IsNaN(c.Epsilon) {
		return errors.New("epsilon must not be negative")
	}
	if c.Epsilon != 0 && c.Operator != OpEqual {
		return fmt.Errorf("epsilon only applies to %q", OpEqual)
	}
	return nil
}

func build(n Node, leaves []Expr, depth int) (Expr, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("nesting deeper than %d", maxDepth)
	}

	switch strings.ToLower(strings.TrimSpace(n.Op)) {
	case "cond":
		if n.Cond == nil {
			return nil, errors.New("cond node without an index")
		}
		if len(n.Args) != 0 {
			return nil, errors.New("cond node must not have args")
		}
		i := *n.Cond
		if i < 0 || i >= len(leaves) {
			return nil, fmt.Errorf("condition index %d out of range [0,%d)", i, len(leaves))
		}
		return leaves[i], nil

	case "not":
		if len(n.Args) != 1 {
			return nil, fmt.Errorf("not takes exactly one argument, got %d", len(n.Args))
		}
		x, err := build(n.Args[0], leaves, depth+1)
		if err != nil {
			return nil, err
		}
		return Not{X: x}, nil

	case "and", "or":
		if n.Cond != nil {
			return nil, fmt.Errorf("%s node must not reference a condition", n.Op)
		}
		if len(n.Args) == 0 {
			return nil, fmt.Errorf("%s needs at least one argument", n.Op)
		}
		xs := make([]Expr, len(n.Args))
		for i, a := range n.Args {
			x, err := build(a, leaves, depth+1)
			if err != nil {
				return nil, err
			}
			xs[i] = x
		}
		if strings.EqualFold(strings.TrimSpace(n.Op), "and") {
			return And(xs), nil
		}
		return Or(xs), nil
	}
	return nil, fmt.Errorf("unknown op %q", n.Op)
}

// Empty reports whether the rule can never fire.
func (r Rule) Empty() bool {
	return r.expr == nil
}

// Evaluate reports whether the rule fires on cur, with prev as the previous
// bar (nil on the first bar). The reasons describe the conditions that fired.
func (r Rule) Evaluate(prev, cur indicators.Snapshot) (bool, []string) {
	if r.expr == nil {
		return false, nil
	}
	ok, reasons := r.expr.eval(prev, cur, nil)
	if !ok {
		return false, nil
	}
	return true, reasons
}

// Reason joins the reasons returned by Evaluate into one line.
func Reason(reasons []string) string {
	return strings.Join(reasons, "; ")
}

func (r Rule) String() string {
	if r.expr == nil {
		return "never"
	}
	return r.expr.String()
}
