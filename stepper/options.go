package stepper

import "math"

// Options configures a Stepper's construction. Build one with the
// With* functional options below; zero-valued fields are replaced by
// defaultOptions before validation.
type Options struct {
	Order       int
	Tol         float64
	HMin, HMax  float64
	BatchSize   int
	CompactMode bool
}

// Option mutates an in-progress Options during New.
type Option func(*Options)

// WithOrder forces the Taylor order p. The library default picks p
// from the tolerance (see defaultOrder); order must be >= 2 (a
// first-order Taylor method degenerates to forward Euler and is
// explicitly rejected — see the concrete end-to-end scenario "Stepper
// built with order=1 rejects construction").
func WithOrder(p int) Option { return func(o *Options) { o.Order = p } }

// WithTolerance sets the absolute step-acceptance tolerance.
func WithTolerance(tol float64) Option { return func(o *Options) { o.Tol = tol } }

// WithStepBounds bounds |h|.
func WithStepBounds(hMin, hMax float64) Option {
	return func(o *Options) { o.HMin, o.HMax = hMin, hMax }
}

// WithBatchSize sets the number of independent trajectories per call.
func WithBatchSize(b int) Option { return func(o *Options) { o.BatchSize = b } }

// WithCompactMode forces the compact-kernel codegen strategy
// regardless of system size (see package codegen).
func WithCompactMode(force bool) Option { return func(o *Options) { o.CompactMode = force } }

const defaultTol = 1e-16

// defaultOptions returns the library's bare-New defaults: a single
// lane. BatchSize stays at 1 here regardless of the machine's SIMD
// width — a caller who asked for one Stepper gets one trajectory, not
// a surprise fan-out. Callers that want hardware-width batching ask
// for it explicitly with WithBatchSize(codegen.DefaultBatchWidth()),
// which is how cmd/taylorstep's run command picks its default --lanes.
func defaultOptions() Options {
	return Options{
		Order:     defaultOrder(defaultTol),
		Tol:       defaultTol,
		HMin:      1e-12,
		HMax:      1.0,
		BatchSize: 1,
	}
}

// ResolveOptions applies opts over the library defaults and returns
// the result without constructing a Stepper, for callers (like
// cmd/taylorstep's emit-ir) that need a resolved Options — e.g. to
// read CompactMode — without an initial state to integrate.
func ResolveOptions(opts ...Option) Options {
	o := defaultOptions()
	for _, apply := range opts {
		apply(&o)
	}
	return o
}

// defaultOrder approximates heyoka's own default order selection: more
// orders buy roughly one extra decimal digit of local accuracy per
// order, so pick the smallest p putting machine epsilon's p-th root
// near the target tolerance's. This is a heuristic, not a contractual
// value — callers wanting a specific order should pass WithOrder.
func defaultOrder(tol float64) int {
	p := int(math.Ceil(-0.5 * math.Log2(tol)))
	if p < 2 {
		p = 2
	}
	return p
}
