package reader

import (
	"github.com/open-ir/policyc/ast"
	"github.com/open-ir/policyc/parser"
)

// ParseQuery parses a standalone ad-hoc query expression (e.g.
// "data.p.allow" or "data.p.f(21)"), the host API surface alongside
// Module()/New(). It reuses the same expression grammar a rule body
// uses, rather than a second bespoke query language, since a query is
// itself just a ref or a call.
func ParseQuery(text string) (*ast.Node, ast.Errors) {
	top, errs := parser.Parse(ast.NewSyntheticSource("<query>", text))
	if len(errs) != 0 {
		return nil, errs
	}
	r := New(nil)
	file := top.Child(0)
	if file == nil || file.Len() == 0 {
		return nil, ast.Errors{ast.NewError(ast.ParseErr, nil, "empty query")}
	}
	toks := flatten(file.Child(0))
	expr := r.parseAssignLevel(toks)
	return expr, r.errs
}
