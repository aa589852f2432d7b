package taylor

import "taylorode/scalar"

// Buffer is the coefficient array a[i][n][lane] described by the data
// model: one row per u-variable, order axis up to Order, and an
// innermost SIMD-contiguous lane axis of width Batch. It is allocated
// once per stepper and reused across steps — no per-step allocation is
// permitted on the hot path, so every coefficient access below returns
// a sub-slice of pre-allocated storage.
type Buffer[F scalar.Float] struct {
	Order int
	Batch int
	NumU  int

	data [][]F // data[i] has length (Order+1)*Batch, order-major
}

// NewBuffer allocates a coefficient buffer for a system of numU
// u-variables, Taylor order, and batch width.
func NewBuffer[F scalar.Float](numU, order, batch int) *Buffer[F] {
	b := &Buffer[F]{Order: order, Batch: batch, NumU: numU, data: make([][]F, numU)}
	for i := range b.data {
		b.data[i] = make([]F, (order+1)*batch)
	}
	return b
}

// Coef returns the Batch-wide lane slice for u-variable i at order n.
// Mutating the returned slice mutates the buffer.
func (b *Buffer[F]) Coef(i, n int) []F {
	start := n * b.Batch
	return b.data[i][start : start+b.Batch]
}

// Reset zeroes every coefficient, leaving the buffer ready for a fresh
// seed. The stepper does not call it: a new Buffer is already zeroed,
// and steady-state stepping overwrites order 0 directly from the prior
// step's final state instead of resetting, since that is cheaper than
// clearing the whole buffer every step.
func (b *Buffer[F]) Reset() {
	for i := range b.data {
		row := b.data[i]
		for j := range row {
			row[j] = 0
		}
	}
}
