// Package scalar defines the numeric type constraint shared by the
// taylor, codegen and stepper packages. A single implementation is
// provided today — float64 — but every generic algorithm in those
// packages is written against Float so that a wider scalar (e.g. an
// extended-precision or dual-number type) can be dropped in later
// without touching the recurrences themselves.
package scalar

import "golang.org/x/exp/constraints"

// Float is the numeric type constraint for Taylor-coefficient
// arithmetic. It is exactly constraints.Float: the recurrences in
// package taylor need division, comparison against literal zero and
// conversion from small integers, all of which constraints.Float
// already provides for float32/float64.
//
// A binary80 or binary128 scalar can satisfy this constraint the day a
// Go type implements it; nothing in taylor/codegen/stepper assumes
// float64 beyond this constraint.
type Float interface {
	constraints.Float
}
