// Package codegen realizes a decomposed system's per-order derivative
// computation as a "kernel" (§4.5's term): the teacher's
// internal/jit/jit.go sketches tiered compilation (a Profiler deciding
// when to promote a hot Function from interpreted to compiled) but
// never builds a real compiler — Compile is a stub returning an empty
// CompiledFunction. This package generalizes that shape into an actual
// LLVM IR builder (see llvm.go) while keeping the tier-selection idea:
// Unrolled for small systems, Compact once |U| grows past a threshold.
package codegen

// Strategy selects how a kernel's generated code is shaped.
type Strategy int

const (
	// Unrolled emits one IR function per (u-variable, order) pair, each
	// inlining its operands directly — fastest, but code size grows
	// linearly with |U|. Selected by default when |U| <=
	// DefaultUnrolledThreshold.
	Unrolled Strategy = iota
	// Compact emits one shared IR function per distinct binary operator
	// shape, taking the order and pointers to the operand coefficient
	// arrays as arguments, bounding generated code size when |U| reaches
	// into the thousands.
	Compact
)

func (s Strategy) String() string {
	if s == Compact {
		return "Compact"
	}
	return "Unrolled"
}

// baseUnrolledThreshold is the |U| cutoff for a scalar (batch width 1)
// machine, per §4.5's "unrolled when |U| <= threshold (~100), else
// compact".
const baseUnrolledThreshold = 100

// DefaultUnrolledThreshold is the |U| cutoff above which SelectStrategy
// switches to Compact. A wider SIMD batch width means each unrolled
// IR function carries proportionally more live vector state, so the
// threshold shrinks by the same factor DefaultBatchWidth grows by,
// keeping generated code size roughly constant across machines.
var DefaultUnrolledThreshold = baseUnrolledThreshold / DefaultBatchWidth()

// SelectStrategy picks Unrolled or Compact for a system of the given
// size. force, when non-nil, overrides the heuristic — the CLI wires
// this to stepper.Options.CompactMode via stepper.ResolveOptions.
func SelectStrategy(numU int, force *Strategy) Strategy {
	if force != nil {
		return *force
	}
	if numU > DefaultUnrolledThreshold {
		return Compact
	}
	return Unrolled
}
