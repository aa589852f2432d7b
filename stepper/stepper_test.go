package stepper_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taylorode/codegen"
	"taylorode/decompose"
	"taylorode/expr"
	"taylorode/odeerr"
	"taylorode/stepper"
)

func harmonicOscillator(t *testing.T) *decompose.System {
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

func TestHarmonicOscillatorReturnsToStartAfterFullPeriod(t *testing.T) {
	sys := harmonicOscillator(t)
	st, err := stepper.New[float64](sys, []float64{1, 0}, stepper.WithOrder(16), stepper.WithTolerance(1e-14))
	require.NoError(t, err)

	results := st.PropagateUntil(2*math.Pi, nil)
	require.Len(t, results, 1)
	assert.Equal(t, stepper.Success, results[0].Outcome)

	state := make([]float64, 2)
	st.State(0, state)
	assert.InDelta(t, 1.0, state[0], 1e-6, "x should return to its initial value after one full period")
	assert.InDelta(t, 0.0, state[1], 1e-6, "v should return to its initial value after one full period")
}

func TestOrderOneRejectsConstruction(t *testing.T) {
	sys := harmonicOscillator(t)
	_, err := stepper.New[float64](sys, []float64{1, 0}, stepper.WithOrder(1))
	require.Error(t, err)
	assert.True(t, odeerr.Is(err, odeerr.InvalidConfig))
}

func TestInvalidConfigRejectsZeroBatchNonPositiveToleranceAndBadStepBounds(t *testing.T) {
	sys := harmonicOscillator(t)

	_, err := stepper.New[float64](sys, []float64{1, 0}, stepper.WithBatchSize(0))
	require.Error(t, err)
	assert.True(t, odeerr.Is(err, odeerr.InvalidConfig))

	_, err = stepper.New[float64](sys, []float64{1, 0}, stepper.WithTolerance(0))
	require.Error(t, err)
	assert.True(t, odeerr.Is(err, odeerr.InvalidConfig))

	_, err = stepper.New[float64](sys, []float64{1, 0}, stepper.WithStepBounds(1, 0.1))
	require.Error(t, err)
	assert.True(t, odeerr.Is(err, odeerr.InvalidConfig))
}

func TestLogOfNegativeNumberReportsNaNDetected(t *testing.T) {
	x, err := expr.Var("x")
	require.NoError(t, err)
	rhs := expr.Log(x)

	sys, err := decompose.Decompose([]expr.Expr{rhs}, []string{"x"})
	require.NoError(t, err)

	st, err := stepper.New[float64](sys, []float64{-1}, stepper.WithOrder(4))
	require.NoError(t, err)

	out := make([]stepper.StepResult, 1)
	st.Step(out)
	assert.Equal(t, stepper.NaNDetected, out[0].Outcome)

	// the lane must stay Failed on every subsequent call, never
	// recomputing or touching memory again.
	st.Step(out)
	assert.Equal(t, stepper.Failed, out[0].Outcome)
}

func TestBatchLanesAreIndependentWhenOneDiverges(t *testing.T) {
	x, err := expr.Var("x")
	require.NoError(t, err)
	rhs := expr.Log(x)

	sys, err := decompose.Decompose([]expr.Expr{rhs}, []string{"x"})
	require.NoError(t, err)

	// lane 0 starts in-domain (x=2), lane 1 starts out-of-domain (x=-2):
	// lane 1 must fault while lane 0 keeps stepping normally.
	st, err := stepper.New[float64](sys, []float64{2, -2}, stepper.WithOrder(4), stepper.WithBatchSize(2))
	require.NoError(t, err)

	out := make([]stepper.StepResult, 2)
	st.Step(out)
	assert.Equal(t, stepper.Success, out[0].Outcome)
	assert.Equal(t, stepper.NaNDetected, out[1].Outcome)

	st.Step(out)
	assert.Equal(t, stepper.Success, out[0].Outcome)
	assert.Equal(t, stepper.Failed, out[1].Outcome)
}

func TestCodegenStrategyHonorsCompactModeOverride(t *testing.T) {
	sys := harmonicOscillator(t)
	st, err := stepper.New[float64](sys, []float64{1, 0}, stepper.WithOrder(4))
	require.NoError(t, err)
	// a two-equation system is well under DefaultUnrolledThreshold, so
	// the size heuristic alone picks Unrolled.
	assert.Equal(t, codegen.Unrolled, st.CodegenStrategy())

	forced, err := stepper.New[float64](sys, []float64{1, 0}, stepper.WithOrder(4), stepper.WithCompactMode(true))
	require.NoError(t, err)
	assert.Equal(t, codegen.Compact, forced.CodegenStrategy())
}

func TestResolveOptionsAppliesDefaultsAndOverrides(t *testing.T) {
	o := stepper.ResolveOptions()
	assert.Equal(t, 1, o.BatchSize)
	assert.False(t, o.CompactMode)

	o = stepper.ResolveOptions(stepper.WithCompactMode(true), stepper.WithBatchSize(3))
	assert.Equal(t, 3, o.BatchSize)
	assert.True(t, o.CompactMode)
}

func TestBatchLanesWithIdenticalInitialStateProduceIdenticalResults(t *testing.T) {
	sys := harmonicOscillator(t)
	// row-major layout state[i*batchSize+lane]: x for both lanes, then v
	// for both lanes, so both lanes start at the identical (x=1, v=0).
	st, err := stepper.New[float64](sys, []float64{1, 1, 0, 0}, stepper.WithOrder(10), stepper.WithBatchSize(2))
	require.NoError(t, err)

	out := make([]stepper.StepResult, 2)
	for i := 0; i < 20; i++ {
		st.Step(out)
		require.Equal(t, out[0].Outcome, out[1].Outcome)
		assert.Equal(t, out[0].H, out[1].H)
	}

	s0, s1 := make([]float64, 2), make([]float64, 2)
	st.State(0, s0)
	st.State(1, s1)
	assert.Equal(t, s0, s1)
}

// keplerSystem builds the planar two-body problem x''=-x/|x|^3 as a
// first-order system (x, y, vx, vy), matching the concrete end-to-end
// scenario "Two-body problem ... energy drift < 1e-12".
func keplerSystem(t *testing.T) *decompose.System {
	t.Helper()
	x, err := expr.Var("x")
	require.NoError(t, err)
	y, err := expr.Var("y")
	require.NoError(t, err)
	vx, err := expr.Var("vx")
	require.NoError(t, err)
	vy, err := expr.Var("vy")
	require.NoError(t, err)

	r2 := expr.Add(expr.Mul(x, x), expr.Mul(y, y))
	invR3 := expr.PowNum(r2, -1.5)
	axEq := expr.Neg(expr.Mul(x, invR3))
	ayEq := expr.Neg(expr.Mul(y, invR3))

	sys, err := decompose.Decompose([]expr.Expr{vx, vy, axEq, ayEq}, []string{"x", "y", "vx", "vy"})
	require.NoError(t, err)
	return sys
}

func keplerEnergy(state []float64) float64 {
	x, y, vx, vy := state[0], state[1], state[2], state[3]
	r := math.Hypot(x, y)
	return 0.5*(vx*vx+vy*vy) - 1/r
}

func TestKeplerOrbitConservesEnergy(t *testing.T) {
	sys := keplerSystem(t)
	// a circular unit orbit: x=1,y=0,vx=0,vy=1 has period 2*pi.
	initial := []float64{1, 0, 0, 1}
	tol := 1e-14
	st, err := stepper.New[float64](sys, initial, stepper.WithOrder(18), stepper.WithTolerance(tol))
	require.NoError(t, err)

	e0 := keplerEnergy(initial)

	state := make([]float64, 4)
	maxDrift := 0.0
	for i := 0; i < 4000; i++ {
		out := make([]stepper.StepResult, 1)
		st.Step(out)
		require.Equal(t, stepper.Success, out[0].Outcome, "step %d", i)

		st.State(0, state)
		drift := math.Abs(keplerEnergy(state) - e0)
		if drift > maxDrift {
			maxDrift = drift
		}
	}
	assert.Less(t, maxDrift, tol*100, "energy drift must stay within tol*100 over the run")
}

func TestTimeReversedPropagationReturnsToStart(t *testing.T) {
	sys := harmonicOscillator(t)
	st, err := stepper.New[float64](sys, []float64{1, 0}, stepper.WithOrder(12), stepper.WithTolerance(1e-13))
	require.NoError(t, err)

	res := st.PropagateUntil(1.5, nil)
	require.Equal(t, stepper.Success, res[0].Outcome)

	mid := make([]float64, 2)
	st.State(0, mid)

	sysBack := harmonicOscillator(t)
	stBack, err := stepper.New[float64](sysBack, mid, stepper.WithOrder(12), stepper.WithTolerance(1e-13))
	require.NoError(t, err)
	resBack := stBack.PropagateUntil(-1.5, nil)
	require.Equal(t, stepper.Success, resBack[0].Outcome)

	final := make([]float64, 2)
	stBack.State(0, final)
	assert.InDelta(t, 1.0, final[0], 1e-6)
	assert.InDelta(t, 0.0, final[1], 1e-6)
}
