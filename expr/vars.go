package expr

import "sort"

// GetVariables returns the deduplicated, sorted set of user variable
// names appearing in e.
func GetVariables(e Expr) []string {
	seen := map[string]struct{}{}
	collectVariables(e, seen)
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func collectVariables(e Expr, seen map[string]struct{}) {
	switch n := e.(type) {
	case *Number:
	case *Variable:
		seen[n.Name] = struct{}{}
	case *Binary:
		collectVariables(n.LHS, seen)
		collectVariables(n.RHS, seen)
	case *Call:
		for _, a := range n.Args {
			collectVariables(a, seen)
		}
	}
}

// RenameVariables returns a copy of e with every Variable renamed
// according to repl map (names absent from the map are left alone).
//
// The source spec mutates the expression in place; our Expr nodes are
// immutable values once built (structural sharing is allowed, mutation
// is not, per the data model), so renaming is a pure rewrite instead —
// the Design Notes explicitly permit implementations that preserve
// value equality and never expose mutation.
func RenameVariables(e Expr, repl map[string]string) Expr {
	switch n := e.(type) {
	case *Number:
		return n
	case *Variable:
		if newName, ok := repl[n.Name]; ok {
			return &Variable{Name: newName}
		}
		return n
	case *Binary:
		return &Binary{Op: n.Op, LHS: RenameVariables(n.LHS, repl), RHS: RenameVariables(n.RHS, repl)}
	case *Call:
		args := make([]Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = RenameVariables(a, repl)
		}
		return &Call{Fn: n.Fn, Args: args}
	default:
		return e
	}
}

// Subs replaces every Variable whose name is a key of smap with the
// corresponding expression, deep-rewriting the tree. Substitution order
// is unspecified (and irrelevant) because every replacement is pure.
func Subs(e Expr, smap map[string]Expr) Expr {
	switch n := e.(type) {
	case *Number:
		return n
	case *Variable:
		if repl, ok := smap[n.Name]; ok {
			return repl
		}
		return n
	case *Binary:
		return &Binary{Op: n.Op, LHS: Subs(n.LHS, smap), RHS: Subs(n.RHS, smap)}
	case *Call:
		args := make([]Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = Subs(a, smap)
		}
		return &Call{Fn: n.Fn, Args: args}
	default:
		return e
	}
}
