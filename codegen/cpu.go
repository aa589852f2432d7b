package codegen

import "golang.org/x/sys/cpu"

// DefaultBatchWidth returns the SIMD-friendly batch size this machine's
// floating-point unit can process per vector instruction. It scales
// DefaultUnrolledThreshold and is cmd/taylorstep run's default --lanes
// count; stepper.New's own default batch size stays 1. It returns
// 8 lanes under AVX-512, 4 under AVX2, 1 otherwise (a scalar stepper,
// still functionally correct, just without vector-width batching).
// This replaces jit.go's hardcoded tier thresholds with a runtime
// feature probe, per §4.5's "implementations may expose this as a
// configuration knob".
func DefaultBatchWidth() int {
	switch {
	case cpu.X86.HasAVX512F:
		return 8
	case cpu.X86.HasAVX2:
		return 4
	default:
		return 1
	}
}
