package eqparse

import "github.com/alecthomas/participle/v2/lexer"

// EquationLexer tokenizes the equation DSL, e.g.:
//
//	dx/dt = v;
//	dv/dt = -x - 0.01*v;
//
// Grounded on kanso-lang-kanso's grammar.KansoLexer (same
// lexer.MustStateful/lexer.Rules shape): the "Deriv" rule recognizes a
// whole "d<ident>/dt" derivative marker as one token rather than three,
// since the lexer's greedy identifier rule would otherwise swallow the
// leading "d" into the state name (kanso has no equivalent construct to
// generalize from here — this rule is new, built in the same lexer
// idiom).
var EquationLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{"Comment", `//[^\n]*`, nil},
		{"Deriv", `d[a-zA-Z_][a-zA-Z0-9_]*/dt`, nil},
		{"Ident", `[a-zA-Z_][a-zA-Z0-9_]*`, nil},
		{"Number", `[0-9]+(\.[0-9]+)?([eE][+-]?[0-9]+)?`, nil},
		{"Operator", `(\^|\+|-|\*|/|=)`, nil},
		{"Punctuation", `[(),;]`, nil},
		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})
