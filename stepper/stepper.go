// Package stepper implements the adaptive Taylor-series stepper: it
// drives package taylor's coefficient engine up to a configured order
// each step, picks a stepsize from the last two orders' coefficient
// magnitudes, advances the state by Horner evaluation, and exposes the
// per-lane Ready/Stepping/Failed state machine described by §4.4.
package stepper

import (
	"math"

	"taylorode/codegen"
	"taylorode/decompose"
	"taylorode/odeerr"
	"taylorode/scalar"
	"taylorode/taylor"
)

// Outcome is a lane's terminal status for one step call.
type Outcome int

const (
	Success Outcome = iota
	MinStepReached
	NaNDetected
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "Success"
	case MinStepReached:
		return "MinStepReached"
	case NaNDetected:
		return "NaNDetected"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// StepResult is what Step writes per lane.
type StepResult struct {
	Outcome Outcome
	H       float64
}

type laneState int

const (
	laneReady laneState = iota
	laneStepping
	laneFailed
)

// stepsizeSafety is the small safety factor rho in the stepsize
// formula, heyoka's conventional choice.
const stepsizeSafety = 0.9

// Stepper advances a decomposed ODE system's state one adaptive step
// at a time. A Stepper instance is single-owner: concurrent calls to
// Step on the same instance are disallowed (see RunParallel in
// swarm.go for running many independent instances concurrently).
type Stepper[F scalar.Float] struct {
	sys  *decompose.System
	opts Options

	buf    *taylor.Buffer[F]
	faults *taylor.FaultMask

	t     []F
	state []F // row-major m*B
	lanes []laneState
}

// New constructs a Stepper for sys, seeded at initialState (row-major,
// length m for scalar or m*batchSize for batch, layout
// state[i*batchSize+lane]), applying opts over the library defaults.
// Construction validates the options and the initial state length,
// returning an odeerr.InvalidConfig error on violation.
func New[F scalar.Float](sys *decompose.System, initialState []F, opts ...Option) (*Stepper[F], error) {
	o := defaultOptions()
	for _, apply := range opts {
		apply(&o)
	}
	if err := validateOptions(o); err != nil {
		return nil, err
	}
	m := sys.NumStates
	if len(initialState) != m*o.BatchSize {
		return nil, odeerr.New(odeerr.InvalidConfig,
			"initial state has length %d, expected %d (%d state variables * batch size %d)",
			len(initialState), m*o.BatchSize, m, o.BatchSize)
	}

	s := &Stepper[F]{
		sys:    sys,
		opts:   o,
		buf:    taylor.NewBuffer[F](len(sys.Defs), o.Order, o.BatchSize),
		faults: taylor.NewFaultMask(o.BatchSize),
		t:      make([]F, o.BatchSize),
		state:  append([]F(nil), initialState...),
		lanes:  make([]laneState, o.BatchSize),
	}
	return s, nil
}

func validateOptions(o Options) error {
	if o.BatchSize < 1 {
		return odeerr.New(odeerr.InvalidConfig, "batch size must be >= 1, got %d", o.BatchSize)
	}
	if o.Tol <= 0 {
		return odeerr.New(odeerr.InvalidConfig, "tolerance must be positive, got %g", o.Tol)
	}
	if o.HMin > o.HMax {
		return odeerr.New(odeerr.InvalidConfig, "h_min (%g) must not exceed h_max (%g)", o.HMin, o.HMax)
	}
	if o.Order < 2 {
		return odeerr.New(odeerr.InvalidConfig, "order must be >= 2, got %d", o.Order)
	}
	return nil
}

// BatchSize returns the stepper's lane count.
func (s *Stepper[F]) BatchSize() int { return s.opts.BatchSize }

// Options returns the (resolved, post-default, post-validation) Options
// the Stepper was constructed with, for callers that want to attach it
// to a report.Run record.
func (s *Stepper[F]) Options() Options { return s.opts }

// NumStates returns the number of state variables m, for callers that
// need to size a per-lane state buffer without reaching into the
// decompose.System directly.
func (s *Stepper[F]) NumStates() int { return s.sys.NumStates }

// CodegenStrategy returns the package codegen strategy this Stepper's
// system would realize as a compiled kernel: Options.CompactMode, when
// set, forces Compact regardless of system size; otherwise
// codegen.SelectStrategy's size heuristic decides. Emitting the actual
// IR is package codegen's job (see codegen.EmitModule) — this just
// exposes which strategy a given configuration resolves to, e.g. for a
// caller logging a run's shape alongside report.NewRun(s.Options()).
func (s *Stepper[F]) CodegenStrategy() codegen.Strategy {
	var forced *codegen.Strategy
	if s.opts.CompactMode {
		c := codegen.Compact
		forced = &c
	}
	return codegen.SelectStrategy(len(s.sys.Defs), forced)
}

// Time returns lane's current time.
func (s *Stepper[F]) Time(lane int) F { return s.t[lane] }

// State copies lane's current state vector into dst (length m).
func (s *Stepper[F]) State(lane int, dst []F) {
	m := s.sys.NumStates
	for i := 0; i < m; i++ {
		dst[i] = s.state[i*s.BatchSize()+lane]
	}
}

// Step advances every non-failed lane by one adaptive step, writing
// one StepResult per lane into out (len(out) must equal BatchSize()).
// A lane already in the Failed state reports Failed immediately
// without recomputing anything.
func (s *Stepper[F]) Step(out []StepResult) {
	s.step(out, nil)
}

// step is Step's implementation, with an optional per-lane signed cap
// on the proposed step (used by PropagateUntil both to pick a
// direction — backward in time when hCap is negative — and to land
// exactly on t_end). A nil hCap steps forward unconstrained.
func (s *Stepper[F]) step(out []StepResult, hCap []F) {
	b := s.BatchSize()
	s.faults.Clear()
	for lane := 0; lane < b; lane++ {
		if s.lanes[lane] == laneFailed {
			s.faults.Fault(lane, "lane previously failed")
		} else {
			s.lanes[lane] = laneStepping
		}
	}

	taylor.SeedOrderZero(s.sys, s.buf, s.state, s.faults)
	for n := 1; n <= s.opts.Order; n++ {
		taylor.ComputeOrder(s.sys, s.buf, n, s.faults)
	}

	h, rawBelowMin := s.pickStepsize(hCap)

	for lane := 0; lane < b; lane++ {
		switch {
		case s.lanes[lane] == laneFailed:
			out[lane] = StepResult{Outcome: Failed}
		case s.faults.Faulted(lane):
			s.lanes[lane] = laneFailed
			out[lane] = StepResult{Outcome: NaNDetected}
		case rawBelowMin[lane]:
			s.lanes[lane] = laneFailed
			out[lane] = StepResult{Outcome: MinStepReached}
		default:
			s.applyHorner(lane, h[lane])
			s.t[lane] += h[lane]
			s.lanes[lane] = laneReady
			out[lane] = StepResult{Outcome: Success, H: float64(h[lane])}
		}
	}
}

// pickStepsize computes the per-lane stepsize magnitude from the order
// p-1 and p coefficients of every state variable:
//
//	|h| = rho * min_i ( tol / max(|a_i[p-1]|, |a_i[p]|) )^(1/p)
//
// clamped to [h_min, h_max] in magnitude. hCap, when given, supplies
// both the integration direction (its sign) and an upper bound on |h|
// (so PropagateUntil can land exactly on its target time, including a
// final near-zero step that is not itself a stepsize-control failure);
// a nil hCap steps forward (positive direction) unconstrained.
//
// The returned belowMin flags reflect the algorithm's own unclamped
// choice of |h|, not a caller-imposed cap, so a PropagateUntil landing
// step (whose cap can be arbitrarily small) never misreports
// MinStepReached for a lane that has simply arrived at its target time.
func (s *Stepper[F]) pickStepsize(hCap []F) ([]F, []bool) {
	p := s.opts.Order
	m := s.sys.NumStates
	b := s.BatchSize()
	h := make([]F, b)
	belowMin := make([]bool, b)
	for lane := 0; lane < b; lane++ {
		if s.faults.Faulted(lane) {
			h[lane] = 0
			continue
		}
		dir := 1.0
		if hCap != nil && hCap[lane] < 0 {
			dir = -1.0
		}

		minRatio := math.Inf(1)
		for i := 0; i < m; i++ {
			ap1 := math.Abs(float64(s.buf.Coef(i, p-1)[lane]))
			ap := math.Abs(float64(s.buf.Coef(i, p)[lane]))
			mag := math.Max(ap1, ap)
			if mag == 0 {
				continue
			}
			ratio := s.opts.Tol / mag
			if ratio < minRatio {
				minRatio = ratio
			}
		}
		var mag float64
		if math.IsInf(minRatio, 1) {
			mag = s.opts.HMax
		} else {
			mag = stepsizeSafety * math.Pow(minRatio, 1.0/float64(p))
		}
		if mag > s.opts.HMax {
			mag = s.opts.HMax
		}
		belowMin[lane] = mag < s.opts.HMin
		if hCap != nil && math.Abs(float64(hCap[lane])) < mag {
			mag = math.Abs(float64(hCap[lane]))
		}
		h[lane] = F(dir * mag)
	}
	return h, belowMin
}

// applyHorner updates lane's state vector from the coefficient buffer:
// x <- ((...((a[p]*h + a[p-1])*h) + ...)*h + a[0]).
func (s *Stepper[F]) applyHorner(lane int, h F) {
	m := s.sys.NumStates
	b := s.BatchSize()
	for i := 0; i < m; i++ {
		var acc F
		for n := s.opts.Order; n >= 0; n-- {
			acc = acc*h + s.buf.Coef(i, n)[lane]
		}
		s.state[i*b+lane] = acc
	}
}

// PropagateUntil steps every lane toward tEnd (backward in time when
// tEnd is earlier than the lane's time) until its time reaches tEnd,
// clamping the final step so time lands exactly on tEnd. keepGoing is
// consulted at each step boundary; returning false cancels the
// propagation early (e.g. from a different goroutine or a deadline),
// per the cooperative-cancellation model in §5.
func (s *Stepper[F]) PropagateUntil(tEnd F, keepGoing func() bool) []StepResult {
	b := s.BatchSize()
	last := make([]StepResult, b)
	out := make([]StepResult, b)
	hCap := make([]F, b)

	for {
		done := true
		for lane := 0; lane < b; lane++ {
			remaining := tEnd - s.t[lane]
			if s.lanes[lane] != laneFailed && math.Abs(float64(remaining)) >= s.opts.HMin {
				done = false
			}
			hCap[lane] = remaining
		}
		if done || (keepGoing != nil && !keepGoing()) {
			break
		}
		s.step(out, hCap)
		for lane := range out {
			if out[lane].Outcome != MinStepReached || math.Abs(float64(hCap[lane])) >= s.opts.HMin {
				last[lane] = out[lane]
			}
		}
	}
	return last
}
