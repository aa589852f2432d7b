package expr

import (
	"fmt"
	"math"
)

// Eval evaluates e against a name->value environment, failing when a
// variable is unbound.
func Eval(e Expr, env map[string]float64) (float64, error) {
	switch n := e.(type) {
	case *Number:
		return n.Value, nil
	case *Variable:
		v, ok := env[n.Name]
		if !ok {
			return 0, fmt.Errorf("unbound variable %q", n.Name)
		}
		return v, nil
	case *Binary:
		l, err := Eval(n.LHS, env)
		if err != nil {
			return 0, err
		}
		r, err := Eval(n.RHS, env)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case OpAdd:
			return l + r, nil
		case OpSub:
			return l - r, nil
		case OpMul:
			return l * r, nil
		default:
			return l / r, nil
		}
	case *Call:
		return evalCall(n, env)
	default:
		return 0, fmt.Errorf("unknown expression node %T", e)
	}
}

func evalCall(c *Call, env map[string]float64) (float64, error) {
	args := make([]float64, len(c.Args))
	for i, a := range c.Args {
		v, err := Eval(a, env)
		if err != nil {
			return 0, err
		}
		args[i] = v
	}
	switch c.Fn {
	case FnSin:
		return math.Sin(args[0]), nil
	case FnCos:
		return math.Cos(args[0]), nil
	case FnExp:
		return math.Exp(args[0]), nil
	case FnLog:
		return math.Log(args[0]), nil
	case FnSqrt:
		return math.Sqrt(args[0]), nil
	default: // FnPow
		return math.Pow(args[0], args[1]), nil
	}
}

// EvalBatch evaluates e across B independent environments at once, one
// slice per variable name, returning one result per lane. This is the
// expression-level analogue of the stepper's batch mode, ported from
// heyoka's eval_batch_dbl.
func EvalBatch(e Expr, env map[string][]float64) ([]float64, error) {
	b, err := batchWidth(e, env)
	if err != nil {
		return nil, err
	}
	out := make([]float64, b)
	for lane := 0; lane < b; lane++ {
		laneEnv := make(map[string]float64, len(env))
		for name, values := range env {
			laneEnv[name] = values[lane]
		}
		v, err := Eval(e, laneEnv)
		if err != nil {
			return nil, err
		}
		out[lane] = v
	}
	return out, nil
}

func batchWidth(e Expr, env map[string][]float64) (int, error) {
	width := -1
	for _, name := range GetVariables(e) {
		values, ok := env[name]
		if !ok {
			return 0, fmt.Errorf("unbound variable %q", name)
		}
		if width == -1 {
			width = len(values)
		} else if len(values) != width {
			return 0, fmt.Errorf("variable %q has batch width %d, expected %d", name, len(values), width)
		}
	}
	if width == -1 {
		width = 1
	}
	return width, nil
}

// Grad evaluates the reverse-mode gradient of e at env in a single
// forward+backward sweep, independent of symbolic Diff. It is a cheap
// numerical cross-check for the algebraic derivative rules (see the
// package's tests), ported from heyoka's compute_node_values_dbl /
// update_grad_dbl pair, simplified to a pointer-keyed cache instead of
// an explicit index/connections table (Go's map-of-interface gives us
// that bookkeeping for free).
func Grad(e Expr, env map[string]float64) (map[string]float64, error) {
	values := map[Expr]float64{}
	var computeVal func(Expr) (float64, error)
	computeVal = func(n Expr) (float64, error) {
		if v, ok := values[n]; ok {
			return v, nil
		}
		var v float64
		var err error
		switch t := n.(type) {
		case *Number:
			v = t.Value
		case *Variable:
			var ok bool
			v, ok = env[t.Name]
			if !ok {
				return 0, fmt.Errorf("unbound variable %q", t.Name)
			}
		case *Binary:
			l, e1 := computeVal(t.LHS)
			r, e2 := computeVal(t.RHS)
			if e1 != nil {
				return 0, e1
			}
			if e2 != nil {
				return 0, e2
			}
			switch t.Op {
			case OpAdd:
				v = l + r
			case OpSub:
				v = l - r
			case OpMul:
				v = l * r
			default:
				v = l / r
			}
		case *Call:
			args := make([]float64, len(t.Args))
			for i, a := range t.Args {
				args[i], err = computeVal(a)
				if err != nil {
					return 0, err
				}
			}
			v = applyFn(t.Fn, args)
		}
		values[n] = v
		return v, err
	}
	if _, err := computeVal(e); err != nil {
		return nil, err
	}

	grad := map[string]float64{}
	var walk func(Expr, float64)
	walk = func(n Expr, acc float64) {
		switch t := n.(type) {
		case *Number:
		case *Variable:
			grad[t.Name] += acc
		case *Binary:
			l, r := values[t.LHS], values[t.RHS]
			switch t.Op {
			case OpAdd:
				walk(t.LHS, acc)
				walk(t.RHS, acc)
			case OpSub:
				walk(t.LHS, acc)
				walk(t.RHS, -acc)
			case OpMul:
				walk(t.LHS, acc*r)
				walk(t.RHS, acc*l)
			default: // OpDiv
				walk(t.LHS, acc/r)
				walk(t.RHS, -acc*l/(r*r))
			}
		case *Call:
			walkCall(t, acc, values, walk)
		}
	}
	walk(e, 1)
	return grad, nil
}

func applyFn(k FnKind, args []float64) float64 {
	switch k {
	case FnSin:
		return math.Sin(args[0])
	case FnCos:
		return math.Cos(args[0])
	case FnExp:
		return math.Exp(args[0])
	case FnLog:
		return math.Log(args[0])
	case FnSqrt:
		return math.Sqrt(args[0])
	default:
		return math.Pow(args[0], args[1])
	}
}

func walkCall(c *Call, acc float64, values map[Expr]float64, walk func(Expr, float64)) {
	x := values[c.Args[0]]
	switch c.Fn {
	case FnSin:
		walk(c.Args[0], acc*math.Cos(x))
	case FnCos:
		walk(c.Args[0], -acc*math.Sin(x))
	case FnExp:
		walk(c.Args[0], acc*math.Exp(x))
	case FnLog:
		walk(c.Args[0], acc/x)
	case FnSqrt:
		walk(c.Args[0], acc/(2*math.Sqrt(x)))
	default: // FnPow
		y := values[c.Args[1]]
		walk(c.Args[0], acc*y*math.Pow(x, y-1))
		walk(c.Args[1], acc*math.Pow(x, y)*math.Log(x))
	}
}
