// Package eval implements the minimal s-expression evaluator backing
// the Lisp runtime shell (spec §4.K). The concrete Lisp evaluator
// (parser, GC, primitive table) is explicitly out of scope per spec
// §1 — no example repo or ecosystem library in the retrieval pack
// supplies an embeddable Lisp/Scheme engine for Go, so this package is
// the one core piece of the system built without a third-party
// dependency (documented in DESIGN.md). It is deliberately small:
// integers, symbols, quote, if, progn, and primitive-call forms —
// just enough to exercise the shell's lifecycle, print-routing, event
// primitive, and task-scheduling contract.
package eval

import "fmt"

// Kind is a primitive's static argument/return type, per spec §9's
// redesign note: signatures are declared as metadata at registration
// time instead of probed via a non-local-exit "description mode" call.
type Kind int

const (
	KindAny Kind = iota
	KindInt
	KindString
	KindBool
)

// Value is anything the evaluator can produce: int64, string, bool,
// Symbol, or a *Pair-based list. nil represents the empty list/no
// value, the evaluator's analogue of Lisp's NIL.
type Value interface{}

// Symbol is an unevaluated identifier.
type Symbol string

// Pair is a single cons cell; a proper list is a chain of Pairs ending
// in nil.
type Pair struct {
	Car Value
	Cdr Value
}

// List builds a proper list from vs.
func List(vs ...Value) Value {
	var out Value
	for i := len(vs) - 1; i >= 0; i-- {
		out = &Pair{Car: vs[i], Cdr: out}
	}
	return out
}

// Slice flattens a proper list back into a Go slice. Returns an error
// if v is not a proper list.
func Slice(v Value) ([]Value, error) {
	var out []Value
	for v != nil {
		p, ok := v.(*Pair)
		if !ok {
			return nil, fmt.Errorf("eval: improper list")
		}
		out = append(out, p.Car)
		v = p.Cdr
	}
	return out, nil
}

// AsInt coerces v to int64.
func AsInt(v Value) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("eval: expected int, got %T", v)
	}
}

// AsBool coerces v using Lisp truthiness: anything but nil and the
// literal false value is true.
func AsBool(v Value) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}
