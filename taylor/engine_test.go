package taylor_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taylorode/decompose"
	"taylorode/expr"
	"taylorode/taylor"
)

// buildSeries decomposes a one-variable system "dt/dt = 1" (so the
// state variable t(h) = t0+h exactly) together with a probe expression
// built from t, and returns the Taylor coefficients of the probe's own
// u-variable up to order p, seeded at t0.
func buildSeries(t *testing.T, probe func(t expr.Expr) expr.Expr, t0 float64, p int) []float64 {
	t.Helper()
	tv, err := expr.Var("t")
	require.NoError(t, err)
	e := probe(tv)

	// The second state variable "y" never needs to hold anything
	// meaningful; Sub(y, y) folds to the value zero but — unlike the
	// numeric identities — is not pruned away structurally, so "y"
	// still counts as a free variable of the second equation and the
	// system passes the free-variable/state-variable membership check,
	// while the decomposition of e itself is untouched by adding zero.
	yv, err := expr.Var("y")
	require.NoError(t, err)
	observed := expr.Add(e, expr.Sub(yv, yv))

	sys, err := decompose.Decompose([]expr.Expr{expr.Num(1), observed}, []string{"t", "y"})
	require.NoError(t, err)

	buf := taylor.NewBuffer[float64](len(sys.Defs), p, 1)
	faults := taylor.NewFaultMask(1)
	taylor.SeedOrderZero(sys, buf, []float64{t0, 0}, faults)
	for n := 1; n <= p; n++ {
		taylor.ComputeOrder(sys, buf, n, faults)
	}
	require.False(t, faults.AnyFaulted(), faults.Reason(0))

	// the probe's own tail definition, the equation for "y"
	idx := sys.TailIndex(1)
	out := make([]float64, p+1)
	for n := 0; n <= p; n++ {
		out[n] = buf.Coef(idx, n)[0]
	}
	return out
}

func hornerEval(coeffs []float64, h float64) float64 {
	var acc float64
	for i := len(coeffs) - 1; i >= 0; i-- {
		acc = acc*h + coeffs[i]
	}
	return acc
}

func mustDivByTPlusOne(t *testing.T, tv expr.Expr) expr.Expr {
	t.Helper()
	d, err := expr.Div(tv, expr.Add(tv, expr.Num(1)))
	require.NoError(t, err)
	return d
}

func TestTaylorCoefficientsMatchDirectEvaluation(t *testing.T) {
	const p = 6
	const h = 1e-3

	cases := []struct {
		name   string
		probe  func(*testing.T, expr.Expr) expr.Expr
		t0     float64
		direct func(float64) float64
	}{
		{"mul", func(_ *testing.T, tv expr.Expr) expr.Expr { return expr.Mul(tv, tv) }, 0.7, func(x float64) float64 { return x * x }},
		{"exp", func(_ *testing.T, tv expr.Expr) expr.Expr { return expr.Exp(tv) }, 0.4, math.Exp},
		{"sin", func(_ *testing.T, tv expr.Expr) expr.Expr { return expr.Sin(tv) }, 0.9, math.Sin},
		{"cos", func(_ *testing.T, tv expr.Expr) expr.Expr { return expr.Cos(tv) }, 0.9, math.Cos},
		{"log", func(_ *testing.T, tv expr.Expr) expr.Expr { return expr.Log(tv) }, 2.0, math.Log},
		{"sqrt", func(_ *testing.T, tv expr.Expr) expr.Expr { return expr.Sqrt(tv) }, 2.0, math.Sqrt},
		{"pow", func(_ *testing.T, tv expr.Expr) expr.Expr { return expr.PowNum(tv, 2.5) }, 2.0, func(x float64) float64 { return math.Pow(x, 2.5) }},
		{"div", mustDivByTPlusOne, 2.0, func(x float64) float64 { return x / (x + 1) }},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			coeffs := buildSeries(t, func(tv expr.Expr) expr.Expr { return c.probe(t, tv) }, c.t0, p)
			got := hornerEval(coeffs, h)
			want := c.direct(c.t0 + h)
			assert.InDelta(t, want, got, 1e-9, "case %s", c.name)
		})
	}
}

func TestMulCauchyProductMatchesPolynomial(t *testing.T) {
	x, err := expr.Var("x")
	require.NoError(t, err)
	y, err := expr.Var("y")
	require.NoError(t, err)
	z, err := expr.Var("z")
	require.NoError(t, err)

	// z's own equation is a zero-valued wrapper around x*y (see
	// buildSeries for why Sub(z,z) rather than a numeric zero): it lets
	// z satisfy the free-variable/state-variable membership check while
	// its tail coefficients, by the additive recurrence, equal x*y's
	// exactly, with x(t)=t+0.3 and y(t)=t-0.2 held exact by their own
	// trivial dx/dt=1, dy/dt=1 equations.
	observed := expr.Add(expr.Mul(x, y), expr.Sub(z, z))
	sys, err := decompose.Decompose(
		[]expr.Expr{expr.Num(1), expr.Num(1), observed},
		[]string{"x", "y", "z"},
	)
	require.NoError(t, err)

	const p = 4
	buf := taylor.NewBuffer[float64](len(sys.Defs), p, 1)
	faults := taylor.NewFaultMask(1)
	taylor.SeedOrderZero(sys, buf, []float64{0.3, -0.2, 0}, faults)
	for n := 1; n <= p; n++ {
		taylor.ComputeOrder(sys, buf, n, faults)
	}
	require.False(t, faults.AnyFaulted())

	idx := sys.TailIndex(2)
	// x(t)=t+0.3, y(t)=t-0.2 => x(t)*y(t) = t^2 + 0.1 t - 0.06
	assert.InDelta(t, 0.3*-0.2, buf.Coef(idx, 0)[0], 1e-12)
	assert.InDelta(t, 0.1, buf.Coef(idx, 1)[0], 1e-12)
	assert.InDelta(t, 1.0, buf.Coef(idx, 2)[0], 1e-12)
	assert.InDelta(t, 0.0, buf.Coef(idx, 3)[0], 1e-12)
}

func TestDivisionByZeroOperandFaultsLane(t *testing.T) {
	x, err := expr.Var("x")
	require.NoError(t, err)
	d, err := expr.Div(expr.Num(1), x)
	require.NoError(t, err)

	sys, err := decompose.Decompose([]expr.Expr{d}, []string{"x"})
	require.NoError(t, err)

	buf := taylor.NewBuffer[float64](len(sys.Defs), 2, 1)
	faults := taylor.NewFaultMask(1)
	taylor.SeedOrderZero(sys, buf, []float64{0}, faults)

	assert.True(t, faults.AnyFaulted())
}
