// Package odeerr defines the construction-time error kinds surfaced by the
// expression algebra, the decomposer, and the stepper's option validation.
//
// Runtime failures discovered while stepping (a log of a non-positive
// number, division by a zero coefficient, ...) are never reported through
// this package: per the error-handling design, those surface as a per-lane
// Outcome instead, so that one diverging lane in a batch never aborts its
// neighbours.
package odeerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a construction-time error.
type Kind string

const (
	// InvalidExpression marks a malformed symbolic expression: a reserved
	// "u_" variable name supplied by a user, a Pow call whose exponent is
	// not a numeric literal where a recurrence requires one, or a set of
	// free variables in an ODE system that does not match the state
	// variables.
	InvalidExpression Kind = "InvalidExpression"
	// InvalidConfig marks a Stepper constructed with an invalid option:
	// zero batch size, non-positive tolerance, h_min > h_max, or an order
	// too low to run the adaptive recurrence (order < 2: a first-order
	// Taylor method degenerates to forward Euler and has no order-1
	// coefficient pair to drive stepsize selection from).
	InvalidConfig Kind = "InvalidConfig"
)

// Error is the error type returned by every construction-time failure in
// this module. It carries a Kind so callers can switch on the failure
// category, and wraps the underlying cause with a stack trace via
// github.com/pkg/errors so diagnostics survive a trip through several
// constructor layers (expr -> decompose -> stepper).
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

// New creates an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		cause:   errors.New(fmt.Sprintf(format, args...)),
	}
}

// Wrap attaches a Kind and a stack trace to an existing error.
func Wrap(kind Kind, err error, context string) *Error {
	return &Error{
		Kind:    kind,
		Message: context,
		cause:   errors.Wrap(err, context),
	}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped, stack-annotated cause to errors.Is/As.
func (e *Error) Unwrap() error {
	return e.cause
}

// StackTrace forwards to the underlying pkg/errors cause, when present,
// so callers can print "%+v" for a full trace.
func (e *Error) StackTrace() errors.StackTrace {
	type stackTracer interface {
		StackTrace() errors.StackTrace
	}
	if st, ok := e.cause.(stackTracer); ok {
		return st.StackTrace()
	}
	return nil
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
