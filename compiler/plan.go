package compiler

import (
	"strings"

	"github.com/open-ir/policyc/ast"
	"github.com/open-ir/policyc/ir"
)

// compileQueryPlan implements pass "add_plans": lowers one ad-hoc query
// (as produced by reader.ParseQuery, e.g. "data.p.allow" or
// "data.p.f(21)") into a Plan that invokes the addressed function and
// packages its value as {"result": ...}, matching the host API's
// per-query result-set shape.
func (c *Compiler) compileQueryPlan(name string, q *ast.Node) (*ir.Plan, ast.Errors) {
	e := q
	if e.Tag() == ast.TagExpr {
		e = e.Child(0)
	}

	var refNode *ast.Node
	var argExprs []*ast.Node
	switch e.Tag() {
	case ast.TagRef:
		refNode = e
	case ast.TagExprCall:
		refNode = e.Child(0)
		argExprs = e.Child(1).Children()
	default:
		return nil, ast.Errors{ast.NewError(ast.CompileErr, q.Location(),
			"query must be a data reference or call, got %s", e.Tag())}
	}

	qualified, ok := dataPath(refNode)
	if !ok {
		return nil, ast.Errors{ast.NewError(ast.CompileErr, q.Location(),
			"query must start with \"data.\"")}
	}

	fb := newFuncBuilder(nil, 2)
	blk := &ir.Block{}
	var errs ast.Errors
	var args []ir.Operand
	for _, a := range argExprs {
		op, aerrs := c.lowerExpr(fb, a, blk)
		errs = append(errs, aerrs...)
		args = append(args, op)
	}

	callTarget := fb.alloc()
	callStmt := &ir.Statement{Type: ir.Call, Target: callTarget}
	callStmt.Ext.Func = ir.StringOperand(c.bundle.InternString(qualified))
	callStmt.Ext.Args = args
	blk.Statements = append(blk.Statements, callStmt)

	obj := fb.alloc()
	blk.Statements = append(blk.Statements, &ir.Statement{Type: ir.MakeObject, Target: obj})
	blk.Statements = append(blk.Statements, &ir.Statement{
		Type: ir.ObjectInsert, Target: obj,
		Op0: ir.StringOperand(c.bundle.InternString("result")),
		Op1: ir.LocalOperand(callTarget),
	})
	blk.Statements = append(blk.Statements, &ir.Statement{Type: ir.ResultSetAdd, Op0: ir.LocalOperand(obj)})

	return &ir.Plan{Name: name, Blocks: []*ir.Block{blk}}, errs
}

// dataPath extracts the dotted path after a leading "data" RefHead, the
// qualified function name the compiler assigns every lifted rule
// (Function.Name is the plain dotted form; the "g0"-prefixed form that
// compileRuleGroup stores in Function.Path is not used here).
func dataPath(ref *ast.Node) (string, bool) {
	if ref.Tag() != ast.TagRef || ref.Child(0).Text() != "data" {
		return "", false
	}
	parts := []string{}
	for _, arg := range ref.Child(1).Children() {
		if arg.Tag() != ast.TagRefArgDot {
			return "", false
		}
		parts = append(parts, arg.Child(0).Text())
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "."), true
}
