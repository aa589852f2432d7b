package codegen_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taylorode/codegen"
	"taylorode/decompose"
	"taylorode/expr"
)

func TestSelectStrategyUsesThresholdUnlessForced(t *testing.T) {
	assert.Equal(t, codegen.Unrolled, codegen.SelectStrategy(10, nil))
	assert.Equal(t, codegen.Compact, codegen.SelectStrategy(codegen.DefaultUnrolledThreshold+1, nil))

	forced := codegen.Compact
	assert.Equal(t, codegen.Compact, codegen.SelectStrategy(1, &forced))
}

func TestDefaultBatchWidthReturnsAPositivePowerOfTwoLane(t *testing.T) {
	w := codegen.DefaultBatchWidth()
	assert.Contains(t, []int{1, 4, 8}, w)
}

func harmonicSystem(t *testing.T) *decompose.System {
	t.Helper()
	x, err := expr.Var("x")
	require.NoError(t, err)
	v, err := expr.Var("v")
	require.NoError(t, err)
	negX := expr.Sub(expr.Num(0), x)
	sys, err := decompose.Decompose([]expr.Expr{v, negX}, []string{"x", "v"})
	require.NoError(t, err)
	return sys
}

func TestEmitModuleUnrolledProducesOnePerOrderFunction(t *testing.T) {
	sys := harmonicSystem(t)
	m, err := codegen.EmitModule(sys, 3, codegen.Unrolled)
	require.NoError(t, err)

	text := m.String()
	// negX folds to (-1)*x and decomposes to a single DefBinary (OpMul); expect a distinct
	// function per order 1..3.
	assert.True(t, strings.Contains(text, "order1"))
	assert.True(t, strings.Contains(text, "order2"))
	assert.True(t, strings.Contains(text, "order3"))
}

func TestEmitModuleCompactSharesOneFunctionPerShape(t *testing.T) {
	sys := harmonicSystem(t)
	m, err := codegen.EmitModule(sys, 3, codegen.Compact)
	require.NoError(t, err)

	text := m.String()
	assert.True(t, strings.Contains(text, "shape_mul"))
	// compact mode must not grow one function per order.
	assert.False(t, strings.Contains(text, "order1"))
}

func TestEmitModuleDeclaresIntrinsicsForElementaryFunctions(t *testing.T) {
	x, err := expr.Var("x")
	require.NoError(t, err)
	rhs := expr.Sin(x)
	sys, err := decompose.Decompose([]expr.Expr{rhs}, []string{"x"})
	require.NoError(t, err)

	m, err := codegen.EmitModule(sys, 2, codegen.Unrolled)
	require.NoError(t, err)

	text := m.String()
	assert.True(t, strings.Contains(text, "llvm.sin.f64"))
	assert.True(t, strings.Contains(text, "order0_sin"))
}
