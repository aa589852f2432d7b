package expr

// Diff computes the symbolic derivative of e with respect to the named
// variable s. Every rule goes through the package's constructors, so
// the result is already in normal form (the structural simplifications
// described in the package doc, nothing more).
func Diff(e Expr, s string) Expr {
	switch n := e.(type) {
	case *Number:
		return Num(0)
	case *Variable:
		if n.Name == s {
			return Num(1)
		}
		return Num(0)
	case *Binary:
		return diffBinary(n, s)
	case *Call:
		return diffCall(n, s)
	default:
		return Num(0)
	}
}

func diffBinary(b *Binary, s string) Expr {
	switch b.Op {
	case OpAdd:
		return Add(Diff(b.LHS, s), Diff(b.RHS, s))
	case OpSub:
		return Sub(Diff(b.LHS, s), Diff(b.RHS, s))
	case OpMul:
		// Product rule: (f*g)' = f'*g + f*g'.
		return Add(Mul(Diff(b.LHS, s), b.RHS), Mul(b.LHS, Diff(b.RHS, s)))
	default: // OpDiv
		// Quotient rule: (f/g)' = (f'*g - f*g') / g^2.
		num := Sub(Mul(Diff(b.LHS, s), b.RHS), Mul(b.LHS, Diff(b.RHS, s)))
		den := Mul(b.RHS, b.RHS)
		d, err := Div(num, den)
		if err != nil {
			// den is g^2 of a live expression; it can only fold to a
			// numeric zero if g was itself the zero literal, in which
			// case the original expression was already malformed.
			return Num(0)
		}
		return d
	}
}

func diffCall(c *Call, s string) Expr {
	switch c.Fn {
	case FnSin:
		return Mul(Cos(c.Args[0]), Diff(c.Args[0], s))
	case FnCos:
		return Neg(Mul(Sin(c.Args[0]), Diff(c.Args[0], s)))
	case FnExp:
		return Mul(Exp(c.Args[0]), Diff(c.Args[0], s))
	case FnLog:
		d, err := Div(Diff(c.Args[0], s), c.Args[0])
		if err != nil {
			return Num(0)
		}
		return d
	case FnSqrt:
		d, err := Div(Diff(c.Args[0], s), Mul(Num(2), Sqrt(c.Args[0])))
		if err != nil {
			return Num(0)
		}
		return d
	default: // FnPow
		return diffPow(c, s)
	}
}

// diffPow differentiates base^exponent with respect to s.
//
// When the exponent is a numeric literal alpha, the classical power
// rule applies and stays valid even where the base is negative (the
// decomposer and coefficient engine only ever see numeric exponents, so
// this is the path exercised at runtime): d/ds[b^a] = a*b^(a-1)*b'.
//
// When the exponent itself depends on s, we fall back to the general
// logarithmic-derivative form, valid for base > 0:
// d/ds[b^c] = b^c * (c'*log(b) + c*b'/b).
func diffPow(c *Call, s string) Expr {
	base, exponent := c.Args[0], c.Args[1]
	if alpha, ok := asNumber(exponent); ok {
		dBase := Diff(base, s)
		return Mul(Mul(Num(alpha.Value), PowNum(base, alpha.Value-1)), dBase)
	}

	dBase := Diff(base, s)
	dExp := Diff(exponent, s)
	ratio, err := Div(Mul(exponent, dBase), base)
	if err != nil {
		ratio = Num(0)
	}
	inner := Add(Mul(dExp, Log(base)), ratio)
	return Mul(Pow(base, exponent), inner)
}
