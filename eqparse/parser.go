// Package eqparse parses the equation DSL used to describe an ODE
// right-hand side textually ("dx/dt = v; dv/dt = -x - 0.01*v;") into the
// expr package's Expr trees, instead of requiring every caller to build
// them by hand through expr.Add/expr.Mul/... Grounded on
// kanso-lang-kanso's grammar package: the same participle.Build[Program]
// construction, the same stateful-lexer-plus-struct-tag-grammar idiom,
// and the same fatih/color caret-style error reporting on a parse
// failure.
package eqparse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/fatih/color"

	"taylorode/expr"
	"taylorode/odeerr"
)

var equationParser = participle.MustBuild[Program](
	participle.Lexer(EquationLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(2),
)

// Result is one parsed "d<name>/dt = <rhs>;" equation, converted to the
// expr package's representation.
type Result struct {
	StateVar string
	RHS      expr.Expr
}

// Parse parses src as a sequence of derivative equations and converts
// each right-hand side into an expr.Expr, in source order. The returned
// state-variable names are in the same order the equations appeared in,
// matching the convention decompose.Decompose expects (stateVars[i] is
// the variable whose derivative is rhs[i]).
func Parse(src string) ([]expr.Expr, []string, error) {
	prog, err := equationParser.ParseString("", src)
	if err != nil {
		return nil, nil, reportParseError(src, err)
	}

	rhs := make([]expr.Expr, 0, len(prog.Equations))
	stateVars := make([]string, 0, len(prog.Equations))
	for _, eq := range prog.Equations {
		name, err := derivVarName(eq.Deriv)
		if err != nil {
			return nil, nil, err
		}
		e, err := buildAddExpr(eq.RHS)
		if err != nil {
			return nil, nil, err
		}
		stateVars = append(stateVars, name)
		rhs = append(rhs, e)
	}
	return rhs, stateVars, nil
}

// derivVarName strips the "d" prefix and "/dt" suffix off a Deriv token
// to recover the bare state variable name ("dx/dt" -> "x").
func derivVarName(tok string) (string, error) {
	if !strings.HasPrefix(tok, "d") || !strings.HasSuffix(tok, "/dt") {
		return "", odeerr.New(odeerr.InvalidExpression, "malformed derivative marker %q", tok)
	}
	return strings.TrimSuffix(strings.TrimPrefix(tok, "d"), "/dt"), nil
}

func buildAddExpr(a *AddExpr) (expr.Expr, error) {
	acc, err := buildMulExpr(a.Left)
	if err != nil {
		return nil, err
	}
	for _, op := range a.Ops {
		rhs, err := buildMulExpr(op.Right)
		if err != nil {
			return nil, err
		}
		if op.Sign == "+" {
			acc = expr.Add(acc, rhs)
		} else {
			acc = expr.Sub(acc, rhs)
		}
	}
	return acc, nil
}

func buildMulExpr(m *MulExpr) (expr.Expr, error) {
	acc, err := buildPowExpr(m.Left)
	if err != nil {
		return nil, err
	}
	for _, op := range m.Ops {
		rhs, err := buildPowExpr(op.Right)
		if err != nil {
			return nil, err
		}
		if op.Sign == "*" {
			acc = expr.Mul(acc, rhs)
		} else {
			acc, err = expr.Div(acc, rhs)
			if err != nil {
				return nil, err
			}
		}
	}
	return acc, nil
}

func buildPowExpr(p *PowExpr) (expr.Expr, error) {
	base, err := buildUnaryExpr(p.Base)
	if err != nil {
		return nil, err
	}
	if p.Exponent == nil {
		return base, nil
	}
	exponent, err := buildPowExpr(p.Exponent)
	if err != nil {
		return nil, err
	}
	return expr.Pow(base, exponent), nil
}

func buildUnaryExpr(u *UnaryExpr) (expr.Expr, error) {
	v, err := buildPrimaryExpr(u.Value)
	if err != nil {
		return nil, err
	}
	if u.Sign != nil && *u.Sign == "-" {
		return expr.Neg(v), nil
	}
	return v, nil
}

func buildPrimaryExpr(p *PrimaryExpr) (expr.Expr, error) {
	switch {
	case p.Call != nil:
		return buildCallExpr(p.Call)
	case p.Number != nil:
		v, err := strconv.ParseFloat(*p.Number, 64)
		if err != nil {
			return nil, odeerr.New(odeerr.InvalidExpression, "malformed numeric literal %q", *p.Number)
		}
		return expr.Num(v), nil
	case p.Ident != nil:
		return expr.Var(*p.Ident)
	case p.Parens != nil:
		return buildAddExpr(p.Parens)
	default:
		return nil, odeerr.New(odeerr.InvalidExpression, "empty expression")
	}
}

var unaryFns = map[string]func(expr.Expr) expr.Expr{
	"sin":  expr.Sin,
	"cos":  expr.Cos,
	"exp":  expr.Exp,
	"log":  expr.Log,
	"sqrt": expr.Sqrt,
}

func buildCallExpr(c *CallExpr) (expr.Expr, error) {
	args := make([]expr.Expr, 0, len(c.Args))
	for _, a := range c.Args {
		e, err := buildAddExpr(a)
		if err != nil {
			return nil, err
		}
		args = append(args, e)
	}

	if fn, ok := unaryFns[c.Func]; ok {
		if len(args) != 1 {
			return nil, odeerr.New(odeerr.InvalidExpression,
				"%s expects 1 argument, got %d", c.Func, len(args))
		}
		return fn(args[0]), nil
	}
	if c.Func == "pow" {
		if len(args) != 2 {
			return nil, odeerr.New(odeerr.InvalidExpression,
				"pow expects 2 arguments, got %d", len(args))
		}
		return expr.Pow(args[0], args[1]), nil
	}
	return nil, odeerr.New(odeerr.InvalidExpression, "unknown function %q", c.Func)
}

// reportParseError turns a participle parse error into a caret-annotated,
// colored diagnostic in the same style as kanso-lang-kanso's
// grammar.reportParseError: the offending line, a caret under the
// column the lexer/parser stopped at, and the message in red.
func reportParseError(src string, err error) error {
	perr, ok := err.(participle.Error)
	if !ok {
		return odeerr.New(odeerr.InvalidExpression, "%s", err.Error())
	}

	pos := perr.Position()
	lines := strings.Split(src, "\n")
	var annotated strings.Builder
	fmt.Fprintf(&annotated, "%s\n", color.RedString("parse error: %s", perr.Message()))
	if pos.Line >= 1 && pos.Line <= len(lines) {
		line := lines[pos.Line-1]
		fmt.Fprintf(&annotated, "  %s\n", line)
		col := pos.Column
		if col < 1 {
			col = 1
		}
		caret := strings.Repeat(" ", col-1) + color.HiRedString("^")
		fmt.Fprintf(&annotated, "  %s\n", caret)
	}
	return odeerr.New(odeerr.InvalidExpression, "%s", annotated.String())
}
