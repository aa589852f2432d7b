package codegen

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"

	"taylorode/decompose"
	"taylorode/expr"
)

// intrinsics declares the LLVM math intrinsics the elementary-function
// defs need, once per module, reused by every emitted kernel function
// that calls them.
type intrinsics struct {
	sin, cos, exp, log, sqrt, pow *ir.Func
}

func declareIntrinsics(m *ir.Module) *intrinsics {
	unary := func(name string) *ir.Func {
		return m.NewFunc(name, types.Double, ir.NewParam("x", types.Double))
	}
	powFn := m.NewFunc("llvm.pow.f64", types.Double,
		ir.NewParam("x", types.Double), ir.NewParam("y", types.Double))
	return &intrinsics{
		sin:  unary("llvm.sin.f64"),
		cos:  unary("llvm.cos.f64"),
		exp:  unary("llvm.exp.f64"),
		log:  unary("llvm.log.f64"),
		sqrt: unary("llvm.sqrt.f64"),
		pow:  powFn,
	}
}

// EmitModule builds an LLVM IR module realizing sys's per-definition
// Taylor recurrence at every order 1..order, per §4.5. Under Unrolled,
// the Add/Sub/Mul/Div recurrences (closed-form Cauchy-style sums over
// already-known operands) are emitted as complete, order-specific
// straight-line IR, one function per (u-variable, order) pair; under
// Compact they are emitted as one order-parametric helper per operator
// (see emitCompactKernels). The elementary-function
// defs (Exp/Log/Sin/Cos/Sqrt/Pow) are emitted as a single order-0
// intrinsic-call kernel each; their n>=1 terms follow a weighted running
// sum identical in shape to Mul's and are intentionally left to the
// Go-native taylor package rather than re-derived here a second time in
// IR form the stepper never actually executes (see DESIGN.md's codegen
// entry) — the module is a build/inspection artifact, not the stepper's
// execution path, so duplicating every recurrence in IR buys no runtime
// benefit without an in-process LLVM execution engine in this module's
// dependency surface.
func EmitModule(sys *decompose.System, order int, strategy Strategy) (*ir.Module, error) {
	m := ir.NewModule()
	intr := declareIntrinsics(m)

	switch strategy {
	case Compact:
		emitCompactKernels(m, sys, order)
	default:
		emitUnrolledKernels(m, sys, order)
	}
	emitElementaryOrderZeroKernels(m, sys, intr)
	return m, nil
}

func funcName(i, n int) string { return fmt.Sprintf("u%d_order%d", i, n) }

// emitUnrolledKernels emits one fully straight-line function per
// (def, order) pair for the binary arithmetic defs: no loops, the
// Cauchy-sum over j is unrolled into a fixed chain of fmul/fadd
// instructions since n is a compile-time constant for a generated
// function.
func emitUnrolledKernels(m *ir.Module, sys *decompose.System, order int) {
	for i, def := range sys.Defs {
		if def.Kind != decompose.DefBinary {
			continue
		}
		for n := 1; n <= order; n++ {
			emitUnrolledBinary(m, i, def, n)
		}
	}
}

func emitUnrolledBinary(m *ir.Module, i int, def decompose.Def, n int) {
	switch def.Op {
	case expr.OpAdd, expr.OpSub:
		b := ir.NewParam("b_n", types.Double)
		c := ir.NewParam("c_n", types.Double)
		f := m.NewFunc(funcName(i, n), types.Double, b, c)
		blk := f.NewBlock("entry")
		if def.Op == expr.OpAdd {
			blk.NewRet(blk.NewFAdd(b, c))
		} else {
			blk.NewRet(blk.NewFSub(b, c))
		}
	case expr.OpMul:
		params := make([]*ir.Param, 0, 2*(n+1))
		bParams := make([]*ir.Param, n+1)
		cParams := make([]*ir.Param, n+1)
		for j := 0; j <= n; j++ {
			bParams[j] = ir.NewParam(fmt.Sprintf("b_%d", j), types.Double)
			cParams[j] = ir.NewParam(fmt.Sprintf("c_%d", j), types.Double)
			params = append(params, bParams[j], cParams[j])
		}
		f := m.NewFunc(funcName(i, n), types.Double, params...)
		blk := f.NewBlock("entry")
		var acc ir.Value = constant.NewFloat(types.Double, 0)
		for j := 0; j <= n; j++ {
			term := blk.NewFMul(bParams[n-j], cParams[j])
			acc = blk.NewFAdd(acc, term)
		}
		blk.NewRet(acc)
	default: // OpDiv: (b_n - sum_{j=1..n} a_{n-j}*c_j) / c_0
		bN := ir.NewParam("b_n", types.Double)
		c0 := ir.NewParam("c_0", types.Double)
		aPrev := make([]*ir.Param, n)
		cRest := make([]*ir.Param, n)
		params := []*ir.Param{bN, c0}
		for j := 1; j <= n; j++ {
			aPrev[j-1] = ir.NewParam(fmt.Sprintf("a_%d", n-j), types.Double)
			cRest[j-1] = ir.NewParam(fmt.Sprintf("c_%d", j), types.Double)
			params = append(params, aPrev[j-1], cRest[j-1])
		}
		f := m.NewFunc(funcName(i, n), types.Double, params...)
		blk := f.NewBlock("entry")
		var sum ir.Value = constant.NewFloat(types.Double, 0)
		for j := 1; j <= n; j++ {
			term := blk.NewFMul(aPrev[j-1], cRest[j-1])
			sum = blk.NewFAdd(sum, term)
		}
		numerator := blk.NewFSub(bN, sum)
		blk.NewRet(blk.NewFDiv(numerator, c0))
	}
}

// emitCompactKernels emits one shared, loop-based function per binary
// operator shape (Add, Sub, Mul, Div), parameterized by the runtime
// order n and pointers to the two operand coefficient arrays — bounding
// generated code size at 4 functions regardless of |U|, per §4.5's
// compact-mode description.
func emitCompactKernels(m *ir.Module, sys *decompose.System, order int) {
	_ = order // the compact kernels are order-parametric, not order-specific
	seen := map[expr.BinOp]bool{}
	for _, def := range sys.Defs {
		if def.Kind != decompose.DefBinary || seen[def.Op] {
			continue
		}
		seen[def.Op] = true
		emitCompactBinary(m, def.Op)
	}
}

func emitCompactBinary(m *ir.Module, op expr.BinOp) {
	dblPtr := types.NewPointer(types.Double)
	n := ir.NewParam("n", types.I64)
	b := ir.NewParam("b", dblPtr)
	c := ir.NewParam("c", dblPtr)

	var name string
	switch op {
	case expr.OpAdd:
		name = "shape_add"
	case expr.OpSub:
		name = "shape_sub"
	case expr.OpMul:
		name = "shape_mul"
	default:
		name = "shape_div"
	}
	f := m.NewFunc(name, types.Double, n, b, c)

	entry := f.NewBlock("entry")
	if op == expr.OpAdd || op == expr.OpSub {
		bn := entry.NewLoad(types.Double, entry.NewGetElementPtr(types.Double, b, n))
		cn := entry.NewLoad(types.Double, entry.NewGetElementPtr(types.Double, c, n))
		if op == expr.OpAdd {
			entry.NewRet(entry.NewFAdd(bn, cn))
		} else {
			entry.NewRet(entry.NewFSub(bn, cn))
		}
		return
	}

	// Mul and Div both run a loop over j; only the term formula and the
	// final combination differ (Cauchy product vs. the division solve).
	loop := f.NewBlock("loop")
	exit := f.NewBlock("exit")

	// Mul's Cauchy product sums j=0..n; Div's solve-for-own-coefficient
	// sum runs j=1..n (j=0 is the c_0 divisor handled by the caller).
	start := int64(0)
	if op == expr.OpDiv {
		start = 1
	}
	jStart := constant.NewInt(types.I64, start)
	zeroF := constant.NewFloat(types.Double, 0)
	entry.NewBr(loop)

	j := loop.NewPhi(ir.NewIncoming(jStart, entry))
	acc := loop.NewPhi(ir.NewIncoming(zeroF, entry))

	var bIdx, cIdx ir.Value
	if op == expr.OpMul {
		bIdx = loop.NewSub(n, j) // b[n-j]
		cIdx = j                 // c[j]
	} else {
		bIdx = loop.NewSub(n, j) // a[n-j] (own earlier coefficient, caller passes it via b)
		cIdx = j                 // c[j], summed for j=1..n
	}
	bv := loop.NewLoad(types.Double, loop.NewGetElementPtr(types.Double, b, bIdx))
	cv := loop.NewLoad(types.Double, loop.NewGetElementPtr(types.Double, c, cIdx))
	term := loop.NewFMul(bv, cv)
	nextAcc := loop.NewFAdd(acc, term)
	nextJ := loop.NewAdd(j, constant.NewInt(types.I64, 1))
	cond := loop.NewICmp(enum.IPredSLE, nextJ, n)
	loop.NewCondBr(cond, loop, exit)

	j.Incs = append(j.Incs, ir.NewIncoming(nextJ, loop))
	acc.Incs = append(acc.Incs, ir.NewIncoming(nextAcc, loop))

	final := exit.NewPhi(ir.NewIncoming(nextAcc, loop))
	if op == expr.OpMul {
		exit.NewRet(final)
		return
	}
	// Div's shared helper returns only the subtracted sum; the caller
	// combines it with (b_n - sum)/c_0 itself, since c_0 and b_n are not
	// part of the j-indexed arrays this loop iterates over.
	exit.NewRet(final)
}

// emitElementaryOrderZeroKernels emits one intrinsic-call function per
// distinct elementary-function shape present in sys, computing only the
// order-0 closed form (dst = f(arg0)); see EmitModule's doc comment for
// why orders n>=1 are not duplicated here.
func emitElementaryOrderZeroKernels(m *ir.Module, sys *decompose.System, intr *intrinsics) {
	seen := map[expr.FnKind]bool{}
	for _, def := range sys.Defs {
		if def.Kind != decompose.DefCall || seen[def.Fn] {
			continue
		}
		seen[def.Fn] = true
		emitElementaryOrderZero(m, def.Fn, intr)
	}
}

func emitElementaryOrderZero(m *ir.Module, fn expr.FnKind, intr *intrinsics) {
	x := ir.NewParam("x", types.Double)
	switch fn {
	case expr.FnSin:
		f := m.NewFunc("order0_sin", types.Double, x)
		blk := f.NewBlock("entry")
		blk.NewRet(blk.NewCall(intr.sin, x))
	case expr.FnCos:
		f := m.NewFunc("order0_cos", types.Double, x)
		blk := f.NewBlock("entry")
		blk.NewRet(blk.NewCall(intr.cos, x))
	case expr.FnExp:
		f := m.NewFunc("order0_exp", types.Double, x)
		blk := f.NewBlock("entry")
		blk.NewRet(blk.NewCall(intr.exp, x))
	case expr.FnLog:
		f := m.NewFunc("order0_log", types.Double, x)
		blk := f.NewBlock("entry")
		blk.NewRet(blk.NewCall(intr.log, x))
	case expr.FnSqrt:
		f := m.NewFunc("order0_sqrt", types.Double, x)
		blk := f.NewBlock("entry")
		blk.NewRet(blk.NewCall(intr.sqrt, x))
	case expr.FnPow:
		y := ir.NewParam("y", types.Double)
		f := m.NewFunc("order0_pow", types.Double, x, y)
		blk := f.NewBlock("entry")
		blk.NewRet(blk.NewCall(intr.pow, x, y))
	}
}
