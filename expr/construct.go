package expr

import (
	"strings"

	"taylorode/odeerr"
)

// Num builds a numeric literal.
func Num(x float64) Expr {
	return &Number{Value: x}
}

// Var builds a user variable. Names starting with "u_" are reserved for
// the decomposer and rejected here, per the data-model invariant that
// user-facing constructors must reject them.
func Var(name string) (Expr, error) {
	if strings.HasPrefix(name, "u_") {
		return nil, odeerr.New(odeerr.InvalidExpression,
			"variable name %q is reserved for decomposition temporaries (the u_ prefix)", name)
	}
	if name == "" {
		return nil, odeerr.New(odeerr.InvalidExpression, "variable name must not be empty")
	}
	return &Variable{Name: name}, nil
}

// asNumber reports the Number payload and whether e is one.
func asNumber(e Expr) (*Number, bool) {
	n, ok := e.(*Number)
	return n, ok
}

// Add builds e1 + e2, folding numeric operands and pruning the additive
// identity: 0+x -> x, x+0 -> x.
func Add(e1, e2 Expr) Expr {
	if n1, ok := asNumber(e1); ok {
		if n2, ok := asNumber(e2); ok {
			return Num(n1.Value + n2.Value)
		}
		if n1.IsZero() {
			return e2
		}
	}
	if n2, ok := asNumber(e2); ok && n2.IsZero() {
		return e1
	}
	return &Binary{Op: OpAdd, LHS: e1, RHS: e2}
}

// Sub builds e1 - e2, folding numeric operands and pruning identities:
// 0-x -> -x, x-0 -> x.
func Sub(e1, e2 Expr) Expr {
	if n1, ok := asNumber(e1); ok {
		if n2, ok := asNumber(e2); ok {
			return Num(n1.Value - n2.Value)
		}
		if n1.IsZero() {
			return Neg(e2)
		}
	}
	if n2, ok := asNumber(e2); ok && n2.IsZero() {
		return e1
	}
	return &Binary{Op: OpSub, LHS: e1, RHS: e2}
}

// Mul builds e1 * e2, folding numeric operands and pruning the
// multiplicative identity and the zero annihilator.
func Mul(e1, e2 Expr) Expr {
	if n1, ok := asNumber(e1); ok {
		if n2, ok := asNumber(e2); ok {
			return Num(n1.Value * n2.Value)
		}
		if n1.IsZero() {
			return Num(0)
		}
		if n1.IsOne() {
			return e2
		}
	}
	if n2, ok := asNumber(e2); ok {
		if n2.IsZero() {
			return Num(0)
		}
		if n2.IsOne() {
			return e1
		}
	}
	return &Binary{Op: OpMul, LHS: e1, RHS: e2}
}

// Div builds e1 / e2. Division by a zero numeric literal is a
// construction-time error. x/1 -> x, x/-1 -> -x, and x/c for a numeric
// c not in {0, 1, -1} is rewritten as x * (1/c), which is permitted but
// not required by the source spec (it changes rounding slightly); we
// take that option, matching heyoka's operator/.
func Div(e1, e2 Expr) (Expr, error) {
	if n2, ok := asNumber(e2); ok {
		if n2.IsZero() {
			return nil, odeerr.New(odeerr.InvalidExpression, "division by the numeric literal zero")
		}
		if n1, ok := asNumber(e1); ok {
			return Num(n1.Value / n2.Value), nil
		}
		if n2.IsOne() {
			return e1, nil
		}
		if n2.IsNegativeOne() {
			return Neg(e1), nil
		}
		return Mul(e1, Num(1/n2.Value)), nil
	}
	return &Binary{Op: OpDiv, LHS: e1, RHS: e2}, nil
}

// Neg builds -e as the number -1 multiplied by e, per the data-model
// invariant that 0-x is represented that way, and mirroring heyoka's
// unary operator-.
func Neg(e Expr) Expr {
	return Mul(Num(-1), e)
}

func call1(k FnKind, x Expr) Expr {
	return &Call{Fn: k, Args: []Expr{x}}
}

// Sin builds sin(x).
func Sin(x Expr) Expr { return call1(FnSin, x) }

// Cos builds cos(x).
func Cos(x Expr) Expr { return call1(FnCos, x) }

// Exp builds exp(x).
func Exp(x Expr) Expr { return call1(FnExp, x) }

// Log builds log(x).
func Log(x Expr) Expr { return call1(FnLog, x) }

// Sqrt builds sqrt(x).
func Sqrt(x Expr) Expr { return call1(FnSqrt, x) }

// Pow builds base^exponent. The Taylor-coefficient engine and the
// decomposer both require the exponent to be a numeric literal; Pow
// itself accepts a general Expr so that, e.g., differentiating a
// symbolic-exponent power is still representable, but decomposition of
// a non-numeric exponent fails with InvalidExpression (see package
// decompose).
func Pow(base, exponent Expr) Expr {
	return &Call{Fn: FnPow, Args: []Expr{base, exponent}}
}

// PowNum is a convenience for the common case of a numeric exponent.
func PowNum(base Expr, alpha float64) Expr {
	return Pow(base, Num(alpha))
}
