package eqparse_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taylorode/eqparse"
	"taylorode/expr"
)

func TestParseHarmonicOscillatorRecoversStateVarsAndExpr(t *testing.T) {
	rhs, stateVars, err := eqparse.Parse("dx/dt = v; dv/dt = -x - 0.01*v;")
	require.NoError(t, err)

	assert.Equal(t, []string{"x", "v"}, stateVars)
	require.Len(t, rhs, 2)

	v, err := expr.Var("v")
	require.NoError(t, err)
	assert.Equal(t, v, rhs[0])

	x, err := expr.Var("x")
	require.NoError(t, err)
	v2, err := expr.Var("v")
	require.NoError(t, err)
	want := expr.Sub(expr.Neg(x), expr.Mul(expr.Num(0.01), v2))
	assert.Equal(t, want, rhs[1])
}

func TestParseHandlesCallsAndRightAssociativePower(t *testing.T) {
	rhs, stateVars, err := eqparse.Parse("dy/dt = sin(y) + pow(y, 2) + 2^3^2;")
	require.NoError(t, err)
	assert.Equal(t, []string{"y"}, stateVars)
	require.Len(t, rhs, 1)

	y, err := expr.Var("y")
	require.NoError(t, err)
	want := expr.Add(
		expr.Add(expr.Sin(y), expr.Pow(y, expr.Num(2))),
		expr.Pow(expr.Num(2), expr.Pow(expr.Num(3), expr.Num(2))),
	)
	assert.Equal(t, want, rhs[0])
}

func TestParseHonorsParenthesesOverPrecedence(t *testing.T) {
	rhs, _, err := eqparse.Parse("dz/dt = (z + 1) * 2;")
	require.NoError(t, err)

	z, err := expr.Var("z")
	require.NoError(t, err)
	want := expr.Mul(expr.Add(z, expr.Num(1)), expr.Num(2))
	assert.Equal(t, want, rhs[0])
}

func TestParseRejectsWrongArgumentCountForUnaryFunctions(t *testing.T) {
	_, _, err := eqparse.Parse("dx/dt = sin(x, y);")
	require.Error(t, err)
}

func TestParseRejectsMalformedInput(t *testing.T) {
	_, _, err := eqparse.Parse("dx/dt = + ;")
	require.Error(t, err)
}

func TestParseRejectsUnknownFunction(t *testing.T) {
	_, _, err := eqparse.Parse("dx/dt = frobnicate(x);")
	require.Error(t, err)
}
