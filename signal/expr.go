package signal

import (
	"strings"

	"github.com/rustyeddy/backtester/indicators"
)

// Expr is a compiled, typed condition tree.
type Expr interface {
	// eval appends the descriptions of the conditions that made the
	// expression true to reasons.
	eval(prev, cur indicators.Snapshot, reasons []string) (bool, []string)
	String() string
}

type Leaf struct {
	Cond Condition
}

type And []Expr

type Or []Expr

type Not struct {
	X Expr
}

func (l Leaf) eval(prev, cur indicators.Snapshot, reasons []string) (bool, []string) {
	if !l.Cond.eval(prev, cur) {
		return false, reasons
	}
	return true, append(reasons, l.Cond.String())
}

func (l Leaf) String() string {
	return l.Cond.String()
}

func (a And) eval(prev, cur indicators.Snapshot, reasons []string) (bool, []string) {
	mark := len(reasons)
	for _, x := range a {
		var ok bool
		ok, reasons = x.eval(prev, cur, reasons)
		if !ok {
			return false, reasons[:mark]
		}
	}
	return true, reasons
}

func (a And) String() string {
	return join(a, " AND ")
}

// Or evaluates every branch so that the reasons list all that fired.
func (o Or) eval(prev, cur indicators.Snapshot, reasons []string) (bool, []string) {
	fired := false
	for _, x := range o {
		var ok bool
		ok, reasons = x.eval(prev, cur, reasons)
		fired = fired || ok
	}
	return fired, reasons
}

func (o Or) String() string {
	return join(o, " OR ")
}

func (n Not) eval(prev, cur indicators.Snapshot, reasons []string) (bool, []string) {
	mark := len(reasons)
	ok, reasons := n.X.eval(prev, cur, reasons)
	reasons = reasons[:mark]
	if ok {
		return false, reasons
	}
	return true, append(reasons, n.String())
}

func (n Not) String() string {
	return "NOT (" + n.X.String() + ")"
}

func join[T ~[]Expr](xs T, sep string) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		s := x.String()
		if _, leaf := x.(Leaf); !leaf {
			s = "(" + s + ")"
		}
		parts[i] = s
	}
	return strings.Join(parts, sep)
}
