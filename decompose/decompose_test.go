package decompose_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taylorode/decompose"
	"taylorode/expr"
)

func mustVar(t *testing.T, name string) expr.Expr {
	t.Helper()
	v, err := expr.Var(name)
	require.NoError(t, err)
	return v
}

// Harmonic oscillator: ẋ = v, v̇ = -x. Exercises both the bare-state-
// variable RHS (alias tail entry) and an interior Mul node.
func TestDecomposeHarmonicOscillator(t *testing.T) {
	x := mustVar(t, "x")
	v := mustVar(t, "v")

	sys, err := decompose.Decompose([]expr.Expr{v, expr.Neg(x)}, []string{"x", "v"})
	require.NoError(t, err)

	require.Len(t, sys.Defs, 4) // u_0=x, u_1=v (seeds), u_2=alias(v), u_3=mul(-1,x)
	assert.Equal(t, decompose.DefState, sys.Defs[0].Kind)
	assert.Equal(t, "x", sys.Defs[0].VarName)
	assert.Equal(t, decompose.DefState, sys.Defs[1].Kind)
	assert.Equal(t, "v", sys.Defs[1].VarName)

	assert.Equal(t, decompose.DefAlias, sys.Defs[2].Kind)
	assert.Equal(t, 1, sys.Defs[2].Alias)

	assert.Equal(t, decompose.DefBinary, sys.Defs[3].Kind)
	assert.Equal(t, expr.OpMul, sys.Defs[3].Op)

	assert.Equal(t, 2, sys.TailIndex(0))
	assert.Equal(t, 3, sys.TailIndex(1))
}

// Every operand index in every definition must be strictly less than
// the definition's own index — the invariant the coefficient engine's
// single forward sweep relies on.
func TestDecomposeOperandsReferenceOnlyEarlierIndices(t *testing.T) {
	x := mustVar(t, "x")
	y := mustVar(t, "y")

	rhs1, err := expr.Div(expr.Add(expr.Mul(x, y), expr.Sin(x)), expr.Exp(y))
	require.NoError(t, err)
	rhs2 := expr.Cos(expr.Mul(x, x))

	sys, err := decompose.Decompose([]expr.Expr{rhs1, rhs2}, []string{"x", "y"})
	require.NoError(t, err)

	checkOperand := func(t *testing.T, i int, op decompose.Operand) {
		if !op.IsNumber {
			assert.Less(t, op.UIndex, i)
		}
	}
	for i, d := range sys.Defs {
		switch d.Kind {
		case decompose.DefBinary:
			checkOperand(t, i, d.LHS)
			checkOperand(t, i, d.RHS)
		case decompose.DefCall:
			for _, a := range d.Args {
				checkOperand(t, i, a)
			}
		case decompose.DefAlias:
			assert.Less(t, d.Alias, i)
		}
	}
}

func TestDecomposeRejectsFreeVariableMismatch(t *testing.T) {
	x := mustVar(t, "x")
	z := mustVar(t, "z")
	_, err := decompose.Decompose([]expr.Expr{expr.Add(x, z)}, []string{"x", "y"})
	require.Error(t, err)
}

func TestDecomposeRejectsEquationCountMismatch(t *testing.T) {
	x := mustVar(t, "x")
	_, err := decompose.Decompose([]expr.Expr{x}, []string{"x", "y"})
	require.Error(t, err)
}

func TestDecomposeRejectsSymbolicPowExponent(t *testing.T) {
	x := mustVar(t, "x")
	y := mustVar(t, "y")
	_, err := decompose.Decompose([]expr.Expr{expr.Pow(x, y), y}, []string{"x", "y"})
	require.Error(t, err)
}

// A bare numeric literal RHS still gets its own tail definition, even
// though it contributes no free variables at all.
func TestDecomposeBareNumericRHS(t *testing.T) {
	x := mustVar(t, "x")
	y := mustVar(t, "y")
	sys, err := decompose.Decompose([]expr.Expr{expr.Num(1), expr.Mul(x, y)}, []string{"x", "y"})
	require.NoError(t, err)

	require.Len(t, sys.Defs, 4) // u_0=x, u_1=y (seeds), u_2=number(1), u_3=mul(x,y)
	assert.Equal(t, decompose.DefNumber, sys.Defs[2].Kind)
	assert.Equal(t, 1.0, sys.Defs[2].Number)
	assert.Equal(t, decompose.DefBinary, sys.Defs[3].Kind)
	assert.Equal(t, expr.OpMul, sys.Defs[3].Op)
}
