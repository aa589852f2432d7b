// Package decompose rewrites an expression DAG — the right-hand sides of
// an ODE system — into the flat, ordered list of three-address
// definitions ("u-variables") that the Taylor-coefficient engine
// operates on. Every operand in every definition refers only to earlier
// definitions or numeric literals, which is the invariant the
// coefficient engine's single forward pass over n relies on.
package decompose

import (
	"fmt"
	"sort"

	"taylorode/expr"
	"taylorode/odeerr"
)

// DefKind classifies one entry of a System's Defs list.
type DefKind int

const (
	// DefNumber: u_k := c. a[0]=c, a[n]=0 for n>=1.
	DefNumber DefKind = iota
	// DefState: u_k is one of the m state-variable storage slots. a[0]
	// holds the current state; a[n] for n>=1 is written by the stepper
	// from the corresponding equation's computed derivative.
	DefState
	// DefAlias: u_k := u_j, a pure coefficient-wise copy of an earlier
	// definition. Produced only when an equation's right-hand side is,
	// in its entirety, a bare state variable (e.g. ẋ = v) or a sin/cos
	// call: the equation still needs its own tail slot (see System.Defs
	// doc), but its value is simply that of the referenced state slot or
	// sin/cos definition.
	DefAlias
	// DefBinary: u_k := lhs OP rhs.
	DefBinary
	// DefCall: u_k := fn(args...).
	DefCall
)

// Operand is a reference to either a numeric literal or an earlier
// u-variable (by index, always < the index of the definition using it).
type Operand struct {
	IsNumber bool
	Number   float64
	UIndex   int // valid when !IsNumber
}

// Def is one entry of the u-list.
type Def struct {
	Kind DefKind

	Number  float64      // DefNumber
	VarName string       // DefState
	Alias   int          // DefAlias: index of the aliased earlier u-variable
	Op      expr.BinOp   // DefBinary
	LHS     Operand      // DefBinary
	RHS     Operand      // DefBinary
	Fn      expr.FnKind  // DefCall
	Args    []Operand    // DefCall

	// Paired is, for a DefCall with Fn FnSin or FnCos, the index of the
	// companion definition over the same argument (see decomposeSinCosPair):
	// the order-n>=1 recurrence for sine and cosine is mutually coupled, so
	// the decomposer always emits both even when the expression only uses
	// one of them. Unused (-1 conceptually, left zero) for every other kind.
	Paired int
}

// System is the full decomposition of an ODE right-hand-side list.
// Defs[0:len(StateVars)] are the DefState seed slots, one per state
// variable in StateVars order. Defs[len(Defs)-len(StateVars):] are the
// tail entries for the m equations, one per state variable, in the same
// order — this is the invariant the stepper relies on to locate each
// equation's computed derivative after one forward sweep over Defs.
type System struct {
	Defs       []Def
	StateVars  []string
	NumStates  int // == len(StateVars), kept for readability at call sites
}

type ctx struct {
	defs       []Def
	stateIndex map[string]int
}

// Decompose builds a System from a list of right-hand-side expressions,
// one per state variable, and the state-variable names in the order
// they appear in the state vector. len(rhs) must equal len(stateVars).
//
// Decompose validates, before doing any work, that the set of free
// variables across all of rhs equals the set of stateVars — a mismatch
// is an InvalidExpression construction error, per §6 of the external
// interface contract.
func Decompose(rhs []expr.Expr, stateVars []string) (*System, error) {
	if len(rhs) != len(stateVars) {
		return nil, odeerr.New(odeerr.InvalidExpression,
			"system has %d equations but %d state variables", len(rhs), len(stateVars))
	}
	if err := checkFreeVariables(rhs, stateVars); err != nil {
		return nil, err
	}

	c := &ctx{stateIndex: make(map[string]int, len(stateVars))}
	for i, name := range stateVars {
		c.defs = append(c.defs, Def{Kind: DefState, VarName: name})
		c.stateIndex[name] = i
	}

	// Each equation's tail entry is held back and appended only after
	// every equation's interior definitions, so the tails form the final
	// m entries of Defs. A sin/cos tail stays with its pair and is
	// referenced through a DefAlias instead.
	tails := make([]Def, 0, len(rhs))
	for _, e := range rhs {
		idx, err := decomposeTop(e, c)
		if err != nil {
			return nil, err
		}
		last := c.defs[idx]
		paired := last.Kind == DefCall && (last.Fn == expr.FnSin || last.Fn == expr.FnCos)
		if idx == len(c.defs)-1 && !paired {
			c.defs = c.defs[:idx]
			tails = append(tails, last)
		} else {
			tails = append(tails, Def{Kind: DefAlias, Alias: idx})
		}
	}
	c.defs = append(c.defs, tails...)

	return &System{Defs: c.defs, StateVars: stateVars, NumStates: len(stateVars)}, nil
}

func checkFreeVariables(rhs []expr.Expr, stateVars []string) error {
	want := make(map[string]struct{}, len(stateVars))
	for _, v := range stateVars {
		want[v] = struct{}{}
	}
	got := map[string]struct{}{}
	for _, e := range rhs {
		for _, v := range expr.GetVariables(e) {
			got[v] = struct{}{}
		}
	}
	if len(got) != len(want) {
		return mismatchError(got, want)
	}
	for v := range got {
		if _, ok := want[v]; !ok {
			return mismatchError(got, want)
		}
	}
	return nil
}

func mismatchError(got, want map[string]struct{}) error {
	gotList, wantList := sortedKeys(got), sortedKeys(want)
	return odeerr.New(odeerr.InvalidExpression,
		"free variables in the system %v do not match the state variables %v", gotList, wantList)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// decomposeTop decomposes a single equation's RHS. Unlike
// decomposeOperand, it always allocates a fresh tail u-variable, even
// for a bare number or state variable; Decompose then moves these tail
// entries behind all interior definitions, so that the final m entries
// of the list line up one-to-one with the m equations.
func decomposeTop(e expr.Expr, c *ctx) (int, error) {
	switch n := e.(type) {
	case *expr.Number:
		c.defs = append(c.defs, Def{Kind: DefNumber, Number: n.Value})
		return len(c.defs) - 1, nil
	case *expr.Variable:
		idx, ok := c.stateIndex[n.Name]
		if !ok {
			return 0, odeerr.New(odeerr.InvalidExpression, "unbound variable %q in equation right-hand side", n.Name)
		}
		c.defs = append(c.defs, Def{Kind: DefAlias, Alias: idx})
		return len(c.defs) - 1, nil
	default:
		return decomposeInner(e, c)
	}
}

// decomposeOperand resolves e as an operand of some enclosing
// definition: numeric literals stay inline, state-variable references
// resolve directly to their seed slot (no new u-variable), and any
// other subexpression is recursively decomposed and referenced by
// index.
func decomposeOperand(e expr.Expr, c *ctx) (Operand, error) {
	switch n := e.(type) {
	case *expr.Number:
		return Operand{IsNumber: true, Number: n.Value}, nil
	case *expr.Variable:
		idx, ok := c.stateIndex[n.Name]
		if !ok {
			return Operand{}, odeerr.New(odeerr.InvalidExpression, "unbound variable %q", n.Name)
		}
		return Operand{UIndex: idx}, nil
	default:
		idx, err := decomposeInner(e, c)
		if err != nil {
			return Operand{}, err
		}
		return Operand{UIndex: idx}, nil
	}
}

// decomposeInner handles *expr.Binary and *expr.Call: it decomposes
// both operands bottom-up (depth-first, post-order — every operand's
// index is therefore strictly less than this node's), then appends
// exactly one new definition for this node.
func decomposeInner(e expr.Expr, c *ctx) (int, error) {
	switch n := e.(type) {
	case *expr.Binary:
		lhs, err := decomposeOperand(n.LHS, c)
		if err != nil {
			return 0, err
		}
		rhs, err := decomposeOperand(n.RHS, c)
		if err != nil {
			return 0, err
		}
		c.defs = append(c.defs, Def{Kind: DefBinary, Op: n.Op, LHS: lhs, RHS: rhs})
		return len(c.defs) - 1, nil
	case *expr.Call:
		if n.Fn == expr.FnPow {
			if _, ok := n.Args[1].(*expr.Number); !ok {
				return 0, odeerr.New(odeerr.InvalidExpression,
					"pow() exponent must be a numeric literal, got %s", n.Args[1])
			}
		}
		args := make([]Operand, len(n.Args))
		for i, a := range n.Args {
			op, err := decomposeOperand(a, c)
			if err != nil {
				return 0, err
			}
			args[i] = op
		}
		if n.Fn == expr.FnSin || n.Fn == expr.FnCos {
			return decomposeSinCosPair(n.Fn, args, c), nil
		}
		c.defs = append(c.defs, Def{Kind: DefCall, Fn: n.Fn, Args: args})
		return len(c.defs) - 1, nil
	default:
		return 0, fmt.Errorf("decompose: unreachable expression node %T", e)
	}
}

// decomposeSinCosPair allocates a sin(args) / cos(args) definition pair
// together, since the order-n>=1 Taylor recurrence for one needs the
// other's lower-order coefficients (see package taylor). It returns the
// index of whichever of the two corresponds to fn, the one actually
// present in the source expression; its sibling is a bookkeeping entry
// the engine sweeps but no other definition ever references as an
// operand.
func decomposeSinCosPair(fn expr.FnKind, args []Operand, c *ctx) int {
	sinIdx := len(c.defs)
	c.defs = append(c.defs, Def{Kind: DefCall, Fn: expr.FnSin, Args: args})
	cosIdx := len(c.defs)
	c.defs = append(c.defs, Def{Kind: DefCall, Fn: expr.FnCos, Args: args, Paired: sinIdx})
	c.defs[sinIdx].Paired = cosIdx
	if fn == expr.FnSin {
		return sinIdx
	}
	return cosIdx
}

// TailIndex returns the index in Defs of the u-variable for the
// eqIndex-th equation (0-based), i.e. the equation's computed
// derivative for orders n>=1.
func (s *System) TailIndex(eqIndex int) int {
	return len(s.Defs) - s.NumStates + eqIndex
}
