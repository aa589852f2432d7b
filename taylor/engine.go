// Package taylor implements the per-definition Taylor-coefficient
// recurrences: given a decomposed system (package decompose) and a
// coefficient Buffer, it fills in a[i][n] for every u-variable i at
// order n from already-computed lower orders, exactly per the
// recurrence table this library is built from. Every routine here is
// lane-wise and allocation-free on the hot path, per the resource
// model: no recurrence reads or writes across lanes, and a lane that
// has already faulted this step is skipped rather than aborting the
// whole call.
package taylor

import (
	"math"

	"taylorode/decompose"
	"taylorode/expr"
	"taylorode/scalar"
)

// SeedOrderZero fills a[i][0] for every u-variable: state slots from
// the caller-supplied initial state (row-major, state[i*batch+lane]),
// numeric defs from their literal, and every other def from the
// order-0 closed form of its recurrence. It must run once before the
// first call to ComputeOrder for a step.
func SeedOrderZero[F scalar.Float](sys *decompose.System, buf *Buffer[F], state []F, faults *FaultMask) {
	for i := 0; i < sys.NumStates; i++ {
		dst := buf.Coef(i, 0)
		for lane := range dst {
			if faults.Faulted(lane) {
				continue // a previously failed lane's buffer is never touched again
			}
			dst[lane] = state[i*buf.Batch+lane]
		}
	}
	for i := sys.NumStates; i < len(sys.Defs); i++ {
		seedDefOrderZero(sys, buf, i, faults)
	}
}

func seedDefOrderZero[F scalar.Float](sys *decompose.System, buf *Buffer[F], i int, faults *FaultMask) {
	def := sys.Defs[i]
	dst := buf.Coef(i, 0)
	switch def.Kind {
	case decompose.DefNumber:
		c := F(def.Number)
		for lane := range dst {
			if !faults.Faulted(lane) {
				dst[lane] = c
			}
		}
	case decompose.DefAlias:
		src := buf.Coef(def.Alias, 0)
		for lane := range dst {
			if !faults.Faulted(lane) {
				dst[lane] = src[lane]
			}
		}
	case decompose.DefBinary:
		l, r := operandAt(buf, def.LHS, 0), operandAt(buf, def.RHS, 0)
		for lane := range dst {
			if faults.Faulted(lane) {
				continue
			}
			lv, rv := l(lane), r(lane)
			switch def.Op {
			case expr.OpAdd:
				dst[lane] = lv + rv
			case expr.OpSub:
				dst[lane] = lv - rv
			case expr.OpMul:
				dst[lane] = lv * rv
			default: // OpDiv
				if rv == 0 {
					faults.Fault(lane, "division by zero at order 0")
					continue
				}
				dst[lane] = lv / rv
			}
		}
	case decompose.DefCall:
		arg0 := operandAt(buf, def.Args[0], 0)
		for lane := range dst {
			if faults.Faulted(lane) {
				continue
			}
			x := float64(arg0(lane))
			switch def.Fn {
			case expr.FnSin:
				dst[lane] = F(math.Sin(x))
			case expr.FnCos:
				dst[lane] = F(math.Cos(x))
			case expr.FnExp:
				dst[lane] = F(math.Exp(x))
			case expr.FnLog:
				if x <= 0 {
					faults.Fault(lane, "log of non-positive value at order 0")
					continue
				}
				dst[lane] = F(math.Log(x))
			case expr.FnSqrt:
				if x < 0 {
					faults.Fault(lane, "sqrt of negative value at order 0")
					continue
				}
				dst[lane] = F(math.Sqrt(x))
			case expr.FnPow:
				y := float64(operandAt(buf, def.Args[1], 0)(lane))
				dst[lane] = F(math.Pow(x, y))
			}
		}
	}
}

// operandAt returns a per-lane accessor for an operand's coefficient at
// order n: a constant function for a numeric literal (whose n>=1
// coefficients are always zero), otherwise a read of the referenced
// u-variable's row.
func operandAt[F scalar.Float](buf *Buffer[F], op decompose.Operand, n int) func(int) F {
	if op.IsNumber {
		if n == 0 {
			c := F(op.Number)
			return func(int) F { return c }
		}
		return func(int) F { return 0 }
	}
	src := buf.Coef(op.UIndex, n)
	return func(lane int) F { return src[lane] }
}

// ComputeOrder fills a[i][n] for n>=1 for every u-variable. It first
// propagates the previous order's equation outputs into the state
// slots (a_x[n] = b_rhs[n-1]/n, the standard relation between a state
// variable's Taylor series and its derivative's), then sweeps the
// remaining definitions in decomposition order.
func ComputeOrder[F scalar.Float](sys *decompose.System, buf *Buffer[F], n int, faults *FaultMask) {
	if n < 1 {
		return
	}
	for eq := 0; eq < sys.NumStates; eq++ {
		tail := sys.TailIndex(eq)
		src := buf.Coef(tail, n-1)
		dst := buf.Coef(eq, n)
		for lane := range dst {
			if faults.Faulted(lane) {
				continue
			}
			dst[lane] = src[lane] / F(n)
		}
	}
	for i := sys.NumStates; i < len(sys.Defs); i++ {
		computeDefOrderN(sys, buf, i, n, faults)
	}
}

func computeDefOrderN[F scalar.Float](sys *decompose.System, buf *Buffer[F], i, n int, faults *FaultMask) {
	def := sys.Defs[i]
	dst := buf.Coef(i, n)
	switch def.Kind {
	case decompose.DefNumber:
		// a[n]=0 for n>=1, already zero from allocation.
	case decompose.DefAlias:
		src := buf.Coef(def.Alias, n)
		for lane := range dst {
			if !faults.Faulted(lane) {
				dst[lane] = src[lane]
			}
		}
	case decompose.DefBinary:
		computeBinaryOrderN(buf, i, def, dst, n, faults)
	case decompose.DefCall:
		if (def.Fn == expr.FnSin || def.Fn == expr.FnCos) && i > def.Paired {
			return // the lower-indexed sibling already wrote both rows for this order
		}
		computeCallOrderN(buf, i, def, n, faults)
	}
}

func computeBinaryOrderN[F scalar.Float](buf *Buffer[F], i int, def decompose.Def, dst []F, n int, faults *FaultMask) {
	switch def.Op {
	case expr.OpAdd, expr.OpSub:
		l, r := operandAt(buf, def.LHS, n), operandAt(buf, def.RHS, n)
		for lane := range dst {
			if faults.Faulted(lane) {
				continue
			}
			if def.Op == expr.OpAdd {
				dst[lane] = l(lane) + r(lane)
			} else {
				dst[lane] = l(lane) - r(lane)
			}
		}
	case expr.OpMul:
		for lane := range dst {
			if faults.Faulted(lane) {
				continue
			}
			var sum F
			for j := 0; j <= n; j++ {
				b := operandAt(buf, def.LHS, n-j)(lane)
				c := operandAt(buf, def.RHS, j)(lane)
				sum += b * c
			}
			dst[lane] = sum
		}
	default: // OpDiv: a[n] = (b[n] - sum_{j=1..n} a[n-j]*c[j]) / c[0]
		c0Fn := operandAt(buf, def.RHS, 0)
		bNFn := operandAt(buf, def.LHS, n)
		for lane := range dst {
			if faults.Faulted(lane) {
				continue
			}
			c0 := c0Fn(lane)
			if c0 == 0 {
				faults.Fault(lane, "division by zero at order >0")
				continue
			}
			var sum F
			for j := 1; j <= n; j++ {
				aPrev := buf.Coef(i, n-j)[lane] // own earlier-order coefficient
				cj := operandAt(buf, def.RHS, j)(lane)
				sum += aPrev * cj
			}
			dst[lane] = (bNFn(lane) - sum) / c0
		}
	}
}

func computeCallOrderN[F scalar.Float](buf *Buffer[F], i int, def decompose.Def, n int, faults *FaultMask) {
	dst := buf.Coef(i, n)
	switch def.Fn {
	case expr.FnExp:
		for lane := range dst {
			if faults.Faulted(lane) {
				continue
			}
			var sum F
			for j := 1; j <= n; j++ {
				bj := operandAt(buf, def.Args[0], j)(lane)
				sum += F(float64(j)/float64(n)) * bj * buf.Coef(i, n-j)[lane]
			}
			dst[lane] = sum
		}
	case expr.FnLog:
		b0Fn := operandAt(buf, def.Args[0], 0)
		bNFn := operandAt(buf, def.Args[0], n)
		for lane := range dst {
			if faults.Faulted(lane) {
				continue
			}
			base0 := b0Fn(lane)
			if base0 <= 0 {
				faults.Fault(lane, "log of non-positive value")
				continue
			}
			var sum F
			for j := 1; j < n; j++ {
				aj := buf.Coef(i, j)[lane]
				bnj := operandAt(buf, def.Args[0], n-j)(lane)
				sum += F(float64(j)) * aj * bnj
			}
			dst[lane] = (bNFn(lane) - sum/F(n)) / base0
		}
	case expr.FnSqrt:
		bNFn := operandAt(buf, def.Args[0], n)
		for lane := range dst {
			if faults.Faulted(lane) {
				continue
			}
			a0 := buf.Coef(i, 0)[lane]
			if a0 == 0 {
				faults.Fault(lane, "sqrt recurrence divides by a zero order-0 coefficient")
				continue
			}
			var sum F
			for j := 1; j < n; j++ {
				sum += buf.Coef(i, j)[lane] * buf.Coef(i, n-j)[lane]
			}
			dst[lane] = (bNFn(lane) - sum) / (2 * a0)
		}
	case expr.FnPow:
		alpha := def.Args[1].Number // validated numeric at decomposition time
		b0Fn := operandAt(buf, def.Args[0], 0)
		for lane := range dst {
			if faults.Faulted(lane) {
				continue
			}
			base0 := b0Fn(lane)
			if base0 == 0 {
				faults.Fault(lane, "pow recurrence divides by a zero order-0 base")
				continue
			}
			var sum F
			for j := 0; j < n; j++ {
				aj := buf.Coef(i, j)[lane]
				bnj := operandAt(buf, def.Args[0], n-j)(lane)
				weight := alpha*float64(n-j) - float64(j)
				sum += F(weight) * aj * bnj
			}
			dst[lane] = sum / F(float64(n)*base0)
		}
	case expr.FnSin, expr.FnCos:
		computeSinCosOrderN(buf, i, def, n, faults)
	}
}

// computeSinCosOrderN fills both rows of a sin/cos pair for order n in
// one pass: s[n] = sum (j/n)*b[j]*c[n-j], c[n] = -sum (j/n)*b[j]*s[n-j].
// Called once per pair per order, from whichever of the two sibling
// indices the sweep reaches first (see computeDefOrderN's guard).
func computeSinCosOrderN[F scalar.Float](buf *Buffer[F], i int, def decompose.Def, n int, faults *FaultMask) {
	sinIdx, cosIdx := i, def.Paired
	if def.Fn == expr.FnCos {
		sinIdx, cosIdx = def.Paired, i
	}
	sRow, cRow := buf.Coef(sinIdx, n), buf.Coef(cosIdx, n)
	for lane := range sRow {
		if faults.Faulted(lane) {
			continue
		}
		var sSum, cSum F
		for j := 1; j <= n; j++ {
			bj := operandAt(buf, def.Args[0], j)(lane)
			weight := F(float64(j) / float64(n))
			sSum += weight * bj * buf.Coef(cosIdx, n-j)[lane]
			cSum += weight * bj * buf.Coef(sinIdx, n-j)[lane]
		}
		sRow[lane] = sSum
		cRow[lane] = -cSum
	}
}
