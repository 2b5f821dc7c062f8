package compiler

import (
	"strconv"
	"strings"

	"github.com/open-ir/policyc/ast"
	"github.com/open-ir/policyc/depgraph"
	"github.com/open-ir/policyc/ir"
)

// funcBuilder tracks local-name bindings while one rule body is lowered
// to IR statement blocks. `input`/`data` are preregistered in every
// builder; everything else is allocated the first time it's written,
// matching the depgraph's write-before-read schedule.
type funcBuilder struct {
	names map[string]ir.LocalIdx
	next  ir.LocalIdx
}

func newFuncBuilder(extra map[string]ir.LocalIdx, next ir.LocalIdx) *funcBuilder {
	fb := &funcBuilder{names: map[string]ir.LocalIdx{"input": ir.Input, "data": ir.Data}, next: next}
	for k, v := range extra {
		fb.names[k] = v
	}
	return fb
}

func (fb *funcBuilder) alloc() ir.LocalIdx {
	l := fb.next
	fb.next++
	return l
}

func (fb *funcBuilder) declare(name string) ir.LocalIdx {
	if name == "_" {
		return fb.alloc()
	}
	if l, ok := fb.names[name]; ok {
		return l
	}
	l := fb.alloc()
	fb.names[name] = l
	return l
}

func (fb *funcBuilder) lookup(name string) (ir.LocalIdx, bool) {
	l, ok := fb.names[name]
	return l, ok
}

// compileRuleGroup lowers every Rule sharing one qualified identifier
// into a single Function (lift_functions), interning every string it
// touches into the bundle's shared string table along the way
// (index_strings_locals runs incrementally rather than as a separate
// closing pass, since each lowering step already knows the strings it
// needs).
func (c *Compiler) compileRuleGroup(g *ruleGroup) (*ir.Function, ast.Errors) {
	var errs ast.Errors
	fn := &ir.Function{
		Name: g.qualified,
		Path: append([]string{"g0"}, append(append([]string(nil), g.pkgPath...), g.ident)...),
	}
	switch g.kind {
	case "function":
		fn.Kind = ir.KindFunction
	case "partial_set":
		fn.Kind = ir.KindPartialSet
	case "partial_object":
		fn.Kind = ir.KindPartialObject
	default:
		fn.Kind = ir.KindComplete
	}

	paramNames, paramLocals := functionParams(g)
	baseLocals := map[string]ir.LocalIdx{}
	next := ir.LocalIdx(2)
	for i, name := range paramNames {
		baseLocals[name] = paramLocals[i]
		if paramLocals[i] >= next {
			next = paramLocals[i] + 1
		}
	}
	fn.Parameters = append([]ir.LocalIdx{ir.Input, ir.Data}, paramLocals...)
	fn.Arity = len(fn.Parameters)
	fn.Cacheable = fn.Arity == 2

	resultLocal := ir.LocalIdx(0)
	resultAllocated := false

	for _, rule := range g.rules {
		head := rule.Child(3)
		bodySeq := rule.Child(4)
		bodies := bodySeq.Children()
		if len(bodies) == 0 {
			bodies = []*ast.Node{nil} // an implicit empty body
		}

		if head.Tag() == ast.TagDefault {
			fb := newFuncBuilder(baseLocals, next)
			if !resultAllocated {
				resultLocal = fb.alloc()
				resultAllocated = true
			} else {
				fb.next = resultLocal + 1
			}
			blk := &ir.Block{}
			val, verrs := c.lowerExpr(fb, head.Child(0).Child(0), blk)
			errs = append(errs, verrs...)
			emit(blk, ir.AssignVarOnce, resultLocal, val, ir.Operand{})
			fn.Default = blk
			continue
		}

		for _, body := range bodies {
			fb := newFuncBuilder(baseLocals, next)
			if !resultAllocated {
				resultLocal = fb.alloc()
				resultAllocated = true
			} else if resultLocal >= fb.next {
				fb.next = resultLocal + 1
			}
			blk := &ir.Block{}
			var literals []*ast.Node
			if body != nil {
				literals = body.Children()
			}
			headTag := head.Tag()
			finish := func(fb *funcBuilder, blk *ir.Block) ast.Errors {
				var ferrs ast.Errors
				switch headTag {
				case ast.TagRuleHeadComplete:
					val, verrs := c.lowerExpr(fb, head.Child(0), blk)
					ferrs = append(ferrs, verrs...)
					emit(blk, ir.AssignVarOnce, resultLocal, val, ir.Operand{})
				case ast.TagRuleHeadFunction:
					val, verrs := c.lowerExpr(fb, head.Child(1), blk)
					ferrs = append(ferrs, verrs...)
					emit(blk, ir.AssignVarOnce, resultLocal, val, ir.Operand{})
				case ast.TagRuleHeadPartialSet:
					key, verrs := c.lowerExpr(fb, head.Child(0), blk)
					ferrs = append(ferrs, verrs...)
					emit(blk, ir.SetAdd, resultLocal, key, ir.Operand{})
				case ast.TagRuleHeadPartialObject:
					key, kerrs := c.lowerExpr(fb, head.Child(0), blk)
					ferrs = append(ferrs, kerrs...)
					val, verrs := c.lowerExpr(fb, head.Child(1), blk)
					ferrs = append(ferrs, verrs...)
					stmt := &ir.Statement{Type: ir.ObjectInsertOnce, Target: resultLocal, Op0: key, Op1: val}
					blk.Statements = append(blk.Statements, stmt)
				}
				return ferrs
			}
			lerrs := c.lowerBody(fb, literals, blk, finish)
			errs = append(errs, lerrs...)
			fn.Blocks = append(fn.Blocks, blk)
		}
	}
	fn.Result = resultLocal
	return fn, errs
}

// functionParams extracts the formal parameter names/locals from the
// first function-headed rule in the group.
func functionParams(g *ruleGroup) ([]string, []ir.LocalIdx) {
	for _, rule := range g.rules {
		head := rule.Child(3)
		if head.Tag() != ast.TagRuleHeadFunction {
			continue
		}
		args := head.Child(0)
		var names []string
		var locals []ir.LocalIdx
		next := ir.LocalIdx(2)
		for _, a := range args.Children() {
			name, ok := bareExprVarName(a)
			if !ok {
				continue
			}
			names = append(names, name)
			locals = append(locals, next)
			next++
		}
		return names, locals
	}
	return nil, nil
}

// bareExprVarName reports whether n is a bare variable reference (an
// identifier, or a single-segment ref with no further path), returning
// its name. Anything else (a literal, a dotted ref, a call) is not a
// var and reports ok=false.
func bareExprVarName(n *ast.Node) (string, bool) {
	switch n.Tag() {
	case ast.TagIdent, ast.TagVarToken:
		return n.Text(), true
	}
	if n.Tag() == ast.TagExpr && n.Len() == 1 {
		n = n.Child(0)
	}
	if n.Tag() != ast.TagRef || n.Len() != 2 || n.Child(1).Len() != 0 {
		return "", false
	}
	return n.Child(0).Text(), true
}

func emit(blk *ir.Block, t ir.StmtType, target ir.LocalIdx, op0, op1 ir.Operand) *ir.Statement {
	s := &ir.Statement{Type: t, Target: target, Op0: op0, Op1: op1}
	blk.Statements = append(blk.Statements, s)
	return s
}

// finishFunc emits whatever must run once every literal in a body has
// passed (a rule head's value/key write, or nothing for a plain boolean
// test like `every`'s inner body). It receives whichever block is
// innermost at that point, since a body ending in `some x in e` nests
// everything after it inside the Scan that `some` emits.
type finishFunc func(fb *funcBuilder, blk *ir.Block) ast.Errors

func noFinish(*funcBuilder, *ir.Block) ast.Errors { return nil }

// lowerBody schedules literals via depgraph and lowers them in that
// order, then runs finish in whatever block turns out to be innermost.
// A `some x in e` literal consumes every literal after it (including
// finish itself) as the body of the Scan it emits, since those are
// exactly the statements that may read the bound variable.
func (c *Compiler) lowerBody(fb *funcBuilder, literals []*ast.Node, blk *ir.Block, finish finishFunc) ast.Errors {
	var errs ast.Errors
	g, gerrs := depgraph.Build(literals, nil)
	errs = append(errs, gerrs...)
	if len(gerrs) != 0 {
		return errs
	}
	order, serrs := g.Schedule()
	errs = append(errs, serrs...)
	return append(errs, c.lowerLiteralSeq(fb, order, blk, finish)...)
}

func (c *Compiler) lowerLiteralSeq(fb *funcBuilder, order []*ast.Node, blk *ir.Block, finish finishFunc) ast.Errors {
	var errs ast.Errors
	for i := 0; i < len(order); i++ {
		lit := order[i]
		inner := lit.Child(0)
		if inner.Tag() == ast.TagSomeDecl && inner.Len() > 1 {
			serrs := c.lowerSomeScan(fb, inner, order[i+1:], blk, finish)
			errs = append(errs, serrs...)
			return errs // everything after `some ... in ...`, incl. finish, is inside the scan
		}
		lerrs := c.lowerLiteral(fb, lit, blk)
		errs = append(errs, lerrs...)
	}
	ferrs := finish(fb, blk)
	return append(errs, ferrs...)
}

func (c *Compiler) lowerLiteral(fb *funcBuilder, lit *ast.Node, blk *ir.Block) ast.Errors {
	var withSeq *ast.Node
	if lit.Len() > 1 {
		withSeq = lit.Child(1)
	}
	target := blk
	if withSeq != nil && withSeq.Len() > 0 {
		target = &ir.Block{}
	}
	errs := c.lowerLiteralBody(fb, lit.Child(0), target)
	if withSeq != nil {
		wrapped := target
		for i := withSeq.Len() - 1; i >= 0; i-- {
			w := withSeq.Child(i)
			path, perrs := c.lowerWithPath(fb, w.Child(0))
			errs = append(errs, perrs...)
			val, verrs := c.lowerExpr(fb, w.Child(1), blk)
			errs = append(errs, verrs...)
			local := ir.Input
			if len(path) > 0 && path[0] == "data" {
				local = ir.Data
			}
			stmt := &ir.Statement{Type: ir.With, Op0: ir.LocalOperand(local), Op1: val}
			stmt.Ext.Path = internAll(c.bundle, path)
			stmt.Ext.Blocks = []*ir.Block{wrapped}
			inner := &ir.Block{Statements: []*ir.Statement{stmt}}
			wrapped = inner
		}
		blk.Statements = append(blk.Statements, wrapped.Statements...)
	}
	return errs
}

func internAll(b interface{ InternString(string) ir.StrIdx }, path []string) []ir.StrIdx {
	out := make([]ir.StrIdx, len(path))
	for i, p := range path {
		out[i] = b.InternString(p)
	}
	return out
}

// lowerWithPath resolves the ref a `with` clause targets (`input`,
// `data.x.y`, or a bare built-in/rule name) to its dotted path segments.
func (c *Compiler) lowerWithPath(fb *funcBuilder, target *ast.Node) ([]string, ast.Errors) {
	if target.Tag() != ast.TagRef {
		return nil, nil
	}
	path := []string{target.Child(0).Text()}
	for _, arg := range target.Child(1).Children() {
		if arg.Tag() == ast.TagRefArgDot {
			path = append(path, arg.Child(0).Text())
		}
	}
	return path, nil
}

func (c *Compiler) lowerLiteralBody(fb *funcBuilder, inner *ast.Node, blk *ir.Block) ast.Errors {
	switch inner.Tag() {
	case ast.TagNotExpr:
		sub := &ir.Block{}
		errs := c.lowerCondition(fb, inner.Child(0), sub)
		stmt := &ir.Statement{Type: ir.Not}
		stmt.Ext.Blocks = []*ir.Block{sub}
		blk.Statements = append(blk.Statements, stmt)
		return errs
	case ast.TagSomeDecl:
		// A bare `some x` with no `in` source: just declares a free
		// local, no statement needed.
		varSeq := inner.Child(0)
		for _, v := range varSeq.Children() {
			fb.declare(v.Text())
		}
		return nil
	case ast.TagExprEvery:
		return c.lowerEvery(fb, inner, blk)
	default: // Expr
		return c.lowerCondition(fb, inner, blk)
	}
}

// lowerCondition lowers an expression used as a pass/fail test (a bare
// body literal, or the expression guarded by `not`): assignment writes
// its target; comparison emits Equal/NotEqual directly; anything else is
// asserted truthy.
func (c *Compiler) lowerCondition(fb *funcBuilder, expr *ast.Node, blk *ir.Block) ast.Errors {
	e := expr
	if e.Tag() == ast.TagExpr {
		e = e.Child(0)
	}
	if e.Tag() == ast.TagExprInfix && e.Len() == 3 && e.Child(1).Tag() == ast.TagAssignOperator {
		return c.lowerAssignOrUnify(fb, e, blk)
	}
	if e.Tag() == ast.TagExprInfix && e.Len() == 3 && e.Child(1).Tag() == ast.TagOperator && isComparisonOp(e.Child(1).Text()) {
		lhs, errs1 := c.lowerExpr(fb, e.Child(0), blk)
		rhs, errs2 := c.lowerExpr(fb, e.Child(2), blk)
		errs := append(errs1, errs2...)
		t := ir.Equal
		if e.Child(1).Text() == "!=" {
			t = ir.NotEqual
		}
		if op := e.Child(1).Text(); op != "==" && op != "!=" {
			// Ordering comparisons (<, <=, >, >=) go through a builtin
			// call that returns a bool, then assert it's true.
			tmp := fb.alloc()
			blk.Statements = append(blk.Statements, &ir.Statement{
				Type: ir.Call, Target: tmp,
				Ext: ir.StatementExt{Func: ir.StringOperand(c.bundle.InternString(comparisonBuiltin(op))), Args: []ir.Operand{lhs, rhs}},
			})
			blk.Statements = append(blk.Statements, &ir.Statement{Type: ir.Equal, Op0: ir.LocalOperand(tmp), Op1: ir.BoolOperand(true)})
			return errs
		}
		blk.Statements = append(blk.Statements, &ir.Statement{Type: t, Op0: lhs, Op1: rhs})
		return errs
	}
	if e.Tag() == ast.TagMembership {
		lhs, errs1 := c.lowerExpr(fb, e.Child(0), blk)
		coll, errs2 := c.lowerExpr(fb, e.Child(1), blk)
		tmp := fb.alloc()
		blk.Statements = append(blk.Statements, &ir.Statement{
			Type: ir.Call, Target: tmp,
			Ext: ir.StatementExt{Func: ir.StringOperand(c.bundle.InternString("internal.member")), Args: []ir.Operand{lhs, coll}},
		})
		blk.Statements = append(blk.Statements, &ir.Statement{Type: ir.Equal, Op0: ir.LocalOperand(tmp), Op1: ir.BoolOperand(true)})
		return append(errs1, errs2...)
	}
	// Anything else (a bare ref/call/term as a literal) is asserted truthy.
	val, errs := c.lowerExpr(fb, expr, blk)
	blk.Statements = append(blk.Statements, &ir.Statement{Type: ir.Equal, Op0: val, Op1: ir.BoolOperand(true)})
	return errs
}

// lowerAssignOrUnify reproduces depgraph's var-direction heuristic at
// lowering time: whichever side is a still-unbound bare var becomes the
// AssignVarOnce target; otherwise it's an equality test. This mirrors
// depgraph.tryPlanOne rather than threading its decision through the
// AST, since the two must agree on the same heuristic either way.
func (c *Compiler) lowerAssignOrUnify(fb *funcBuilder, infix *ast.Node, blk *ir.Block) ast.Errors {
	lhs, rhs := infix.Child(0), infix.Child(2)
	isAssign := infix.Child(1).Text() == ":="
	if name, ok := bareExprVarName(lhs); ok && (isAssign || !isBound(fb, name)) {
		val, errs := c.lowerExpr(fb, rhs, blk)
		target := fb.declare(name)
		blk.Statements = append(blk.Statements, &ir.Statement{Type: ir.AssignVarOnce, Target: target, Op0: val})
		return errs
	}
	if name, ok := bareExprVarName(rhs); ok && !isBound(fb, name) {
		val, errs := c.lowerExpr(fb, lhs, blk)
		target := fb.declare(name)
		blk.Statements = append(blk.Statements, &ir.Statement{Type: ir.AssignVarOnce, Target: target, Op0: val})
		return errs
	}
	lv, errs1 := c.lowerExpr(fb, lhs, blk)
	rv, errs2 := c.lowerExpr(fb, rhs, blk)
	blk.Statements = append(blk.Statements, &ir.Statement{Type: ir.Equal, Op0: lv, Op1: rv})
	return append(errs1, errs2...)
}

func isBound(fb *funcBuilder, name string) bool {
	_, ok := fb.lookup(name)
	return ok
}

// lowerSomeScan compiles `some x in e; <rest>` / `some k, v in e; <rest>`
// into a Scan statement whose body is every remaining literal, including
// the rule head's finish (so the head is evaluated and written once per
// matching element, not once after the scan completes).
func (c *Compiler) lowerSomeScan(fb *funcBuilder, someDecl *ast.Node, rest []*ast.Node, blk *ir.Block, finish finishFunc) ast.Errors {
	varSeq := someDecl.Child(0)
	src, errs := c.lowerExpr(fb, someDecl.Child(1), blk)

	var keyName, valName string
	switch varSeq.Len() {
	case 1:
		valName = varSeq.Child(0).Text()
	case 2:
		keyName, valName = varSeq.Child(0).Text(), varSeq.Child(1).Text()
	}
	keyLocal := fb.declare("_")
	if keyName != "" {
		keyLocal = fb.declare(keyName)
	}
	valLocal := fb.declare(valName)

	body := &ir.Block{}
	errs = append(errs, c.lowerLiteralSeq(fb, rest, body, finish)...)

	stmt := &ir.Statement{Type: ir.Scan, Op0: src}
	stmt.Ext.ScanKey = keyLocal
	stmt.Ext.ScanVal = valLocal
	stmt.Ext.Blocks = []*ir.Block{body}
	blk.Statements = append(blk.Statements, stmt)
	return errs
}

// lowerEvery compiles `every [k,] v in e { body }` to a reset/scan/
// assert-all-ok pattern: a fresh `ok` local starts true, the scan's
// body clears it on any failing element, and the literal succeeds iff
// `ok` is still true afterward.
func (c *Compiler) lowerEvery(fb *funcBuilder, every *ast.Node, blk *ir.Block) ast.Errors {
	varSeq, src, bodySeq := every.Child(0), every.Child(1), every.Child(2)
	srcOp, errs := c.lowerExpr(fb, src, blk)

	ok := fb.alloc()
	blk.Statements = append(blk.Statements, &ir.Statement{Type: ir.AssignVar, Target: ok, Op0: ir.BoolOperand(true)})

	inner := &ir.Block{}
	innerFb := newFuncBuilder(fb.names, fb.next)
	var keyName, valName string
	switch varSeq.Len() {
	case 1:
		valName = varSeq.Child(0).Text()
	case 2:
		keyName, valName = varSeq.Child(0).Text(), varSeq.Child(1).Text()
	}
	keyLocal := innerFb.declare("_")
	if keyName != "" {
		keyLocal = innerFb.declare(keyName)
	}
	valLocal := innerFb.declare(valName)

	var bodyLiterals []*ast.Node
	if bodySeq.Len() > 0 {
		bodyLiterals = bodySeq.Child(0).Children()
	}
	testBlock := &ir.Block{}
	errs = append(errs, c.lowerBody(innerFb, bodyLiterals, testBlock, noFinish)...)
	// Not(testBlock) succeeds exactly when the per-element test failed;
	// when it fails (the element satisfied the test) the rest of this
	// iteration's statements are skipped (all-succeed-or-abort-rest), so
	// `ok` is only ever cleared for a genuinely failing element, and
	// every element is still visited since Scan iterates regardless of
	// its body's per-iteration success.
	notOK := &ir.Statement{Type: ir.Not}
	notOK.Ext.Blocks = []*ir.Block{testBlock}
	onFail := &ir.Statement{Type: ir.AssignVar, Target: ok, Op0: ir.BoolOperand(false)}
	inner.Statements = append(inner.Statements, notOK, onFail)

	scan := &ir.Statement{Type: ir.Scan, Op0: srcOp}
	scan.Ext.ScanKey = keyLocal
	scan.Ext.ScanVal = valLocal
	scan.Ext.Blocks = []*ir.Block{inner}
	blk.Statements = append(blk.Statements, scan)
	blk.Statements = append(blk.Statements, &ir.Statement{Type: ir.Equal, Op0: ir.LocalOperand(ok), Op1: ir.BoolOperand(true)})
	return errs
}

// lowerExpr lowers an expression used for its VALUE (as opposed to
// lowerCondition's pass/fail use) to an Operand, emitting whatever
// statements are needed to compute it.
func (c *Compiler) lowerExpr(fb *funcBuilder, expr *ast.Node, blk *ir.Block) (ir.Operand, ast.Errors) {
	e := expr
	if e.Tag() == ast.TagExpr {
		e = e.Child(0)
	}
	switch e.Tag() {
	case ast.TagTerm:
		return c.lowerTerm(fb, e.Child(0), blk)
	case ast.TagRef:
		return c.lowerRef(fb, e, blk)
	case ast.TagExprCall:
		return c.lowerCall(fb, e, blk)
	case ast.TagExprInfix:
		return c.lowerInfixValue(fb, e, blk)
	case ast.TagMembership:
		errs := c.lowerCondition(fb, expr, blk)
		return ir.BoolOperand(true), errs
	default:
		return ir.Operand{}, ast.Errors{ast.NewError(ast.CompileErr, expr.Location(), "unsupported expression shape %s", e.Tag())}
	}
}

func (c *Compiler) lowerInfixValue(fb *funcBuilder, infix *ast.Node, blk *ir.Block) (ir.Operand, ast.Errors) {
	op := infix.Child(1).Text()
	if isComparisonOp(op) {
		tmp := fb.alloc()
		lhs, e1 := c.lowerExpr(fb, infix.Child(0), blk)
		rhs, e2 := c.lowerExpr(fb, infix.Child(2), blk)
		builtin := comparisonBuiltin(op)
		blk.Statements = append(blk.Statements, &ir.Statement{
			Type: ir.Call, Target: tmp,
			Ext: ir.StatementExt{Func: ir.StringOperand(c.bundle.InternString(builtin)), Args: []ir.Operand{lhs, rhs}},
		})
		return ir.LocalOperand(tmp), append(e1, e2...)
	}
	lhs, e1 := c.lowerExpr(fb, infix.Child(0), blk)
	rhs, e2 := c.lowerExpr(fb, infix.Child(2), blk)
	tmp := fb.alloc()
	name := arithBuiltin(op)
	blk.Statements = append(blk.Statements, &ir.Statement{
		Type: ir.Call, Target: tmp,
		Ext: ir.StatementExt{Func: ir.StringOperand(c.bundle.InternString(name)), Args: []ir.Operand{lhs, rhs}},
	})
	return ir.LocalOperand(tmp), append(e1, e2...)
}

func (c *Compiler) lowerRef(fb *funcBuilder, ref *ast.Node, blk *ir.Block) (ir.Operand, ast.Errors) {
	headName := ref.Child(0).Text()
	local, ok := fb.lookup(headName)
	if !ok {
		return ir.Operand{}, ast.Errors{ast.NewError(ast.CompileErr, ref.Location(),
			"undefined variable %q%s", headName, ast.SuggestName(headName, fb.names_()))}
	}
	cur := ir.LocalOperand(local)
	var errs ast.Errors
	for _, arg := range ref.Child(1).Children() {
		var key ir.Operand
		switch arg.Tag() {
		case ast.TagRefArgDot:
			key = ir.StringOperand(c.bundle.InternString(arg.Child(0).Text()))
		case ast.TagRefArgBrack:
			var kerrs ast.Errors
			key, kerrs = c.lowerExpr(fb, arg.Child(0), blk)
			errs = append(errs, kerrs...)
		}
		target := fb.alloc()
		stmt := &ir.Statement{Type: ir.Dot, Target: target, Op0: cur}
		stmt.Ext.Key = key
		blk.Statements = append(blk.Statements, stmt)
		cur = ir.LocalOperand(target)
	}
	return cur, errs
}

func (fb *funcBuilder) names_() []string {
	out := make([]string, 0, len(fb.names))
	for k := range fb.names {
		out = append(out, k)
	}
	return out
}

func (c *Compiler) lowerCall(fb *funcBuilder, call *ast.Node, blk *ir.Block) (ir.Operand, ast.Errors) {
	ref := call.Child(0)
	name := dottedCalleeName(ref)
	var errs ast.Errors
	var args []ir.Operand
	for _, a := range call.Child(1).Children() {
		op, aerrs := c.lowerExpr(fb, a, blk)
		errs = append(errs, aerrs...)
		args = append(args, op)
	}
	target := fb.alloc()
	stmt := &ir.Statement{Type: ir.Call, Target: target}
	stmt.Ext.Func = ir.StringOperand(c.bundle.InternString(name))
	stmt.Ext.Args = args
	blk.Statements = append(blk.Statements, stmt)
	return ir.LocalOperand(target), errs
}

func dottedCalleeName(ref *ast.Node) string {
	parts := []string{ref.Child(0).Text()}
	for _, arg := range ref.Child(1).Children() {
		if arg.Tag() == ast.TagRefArgDot {
			parts = append(parts, arg.Child(0).Text())
		}
	}
	return strings.Join(parts, ".")
}

func (c *Compiler) lowerTerm(fb *funcBuilder, term *ast.Node, blk *ir.Block) (ir.Operand, ast.Errors) {
	switch term.Tag() {
	case ast.TagScalar:
		return c.lowerScalar(fb, term.Child(0), blk)
	case ast.TagArray:
		return c.lowerArray(fb, term, blk)
	case ast.TagObject:
		return c.lowerObject(fb, term, blk)
	case ast.TagSet:
		return c.lowerSet(fb, term, blk)
	case ast.TagArrayCompr, ast.TagSetCompr, ast.TagObjectCompr:
		return c.lowerCompr(fb, term, blk)
	default:
		return ir.Operand{}, ast.Errors{ast.NewError(ast.CompileErr, term.Location(),
			"unexpected term kind (%s)", term.Tag())}
	}
}

// lowerCompr compiles an array/set/object comprehension: allocate the
// result aggregate, run the comprehension's own body literals in a
// nested scope (sharing the enclosing scope's bindings, the way
// lowerEvery's per-element test block does), and append/insert the
// value (or key/value, for an object comprehension) once per body
// success, just as a partial-set/partial-object rule's finish does for
// every matching element.
func (c *Compiler) lowerCompr(fb *funcBuilder, compr *ast.Node, blk *ir.Block) (ir.Operand, ast.Errors) {
	var bodySeq *ast.Node
	var valueExpr, keyExpr *ast.Node
	switch compr.Tag() {
	case ast.TagObjectCompr:
		kv := compr.Child(0)
		keyExpr, valueExpr = kv.Child(0), kv.Child(1)
		bodySeq = compr.Child(1)
	default:
		valueExpr = compr.Child(0)
		bodySeq = compr.Child(1)
	}

	result := fb.alloc()
	switch compr.Tag() {
	case ast.TagArrayCompr:
		blk.Statements = append(blk.Statements, &ir.Statement{Type: ir.MakeArray, Target: result})
	case ast.TagSetCompr:
		blk.Statements = append(blk.Statements, &ir.Statement{Type: ir.MakeSet, Target: result})
	case ast.TagObjectCompr:
		blk.Statements = append(blk.Statements, &ir.Statement{Type: ir.MakeObject, Target: result})
	}

	innerFb := newFuncBuilder(fb.names, fb.next)
	var bodyLiterals []*ast.Node
	if bodySeq.Len() > 0 {
		bodyLiterals = bodySeq.Child(0).Children()
	}

	finish := func(fb *funcBuilder, blk *ir.Block) ast.Errors {
		var ferrs ast.Errors
		switch compr.Tag() {
		case ast.TagObjectCompr:
			key, kerrs := c.lowerExpr(fb, keyExpr, blk)
			ferrs = append(ferrs, kerrs...)
			val, verrs := c.lowerExpr(fb, valueExpr, blk)
			ferrs = append(ferrs, verrs...)
			blk.Statements = append(blk.Statements, &ir.Statement{Type: ir.ObjectInsert, Target: result, Op0: key, Op1: val})
		case ast.TagSetCompr:
			val, verrs := c.lowerExpr(fb, valueExpr, blk)
			ferrs = append(ferrs, verrs...)
			blk.Statements = append(blk.Statements, &ir.Statement{Type: ir.SetAdd, Target: result, Op0: val})
		default:
			val, verrs := c.lowerExpr(fb, valueExpr, blk)
			ferrs = append(ferrs, verrs...)
			blk.Statements = append(blk.Statements, &ir.Statement{Type: ir.ArrayAppend, Target: result, Op0: val})
		}
		return ferrs
	}

	// The body is the first alternative of a BlockStmt whose second
	// alternative is empty, so a failing body leaves the aggregate as
	// built so far instead of failing the enclosing block.
	sub := &ir.Block{}
	errs := c.lowerBody(innerFb, bodyLiterals, sub, finish)
	blk.Statements = append(blk.Statements, &ir.Statement{Type: ir.BlockStmt, Ext: ir.StatementExt{Blocks: []*ir.Block{sub, {}}}})
	return ir.LocalOperand(result), errs
}

func (c *Compiler) lowerArray(fb *funcBuilder, arr *ast.Node, blk *ir.Block) (ir.Operand, ast.Errors) {
	var errs ast.Errors
	target := fb.alloc()
	blk.Statements = append(blk.Statements, &ir.Statement{Type: ir.MakeArray, Target: target})
	for _, elem := range arr.Children() {
		val, eerrs := c.lowerExpr(fb, elem, blk)
		errs = append(errs, eerrs...)
		blk.Statements = append(blk.Statements, &ir.Statement{Type: ir.ArrayAppend, Target: target, Op0: val})
	}
	return ir.LocalOperand(target), errs
}

func (c *Compiler) lowerSet(fb *funcBuilder, set *ast.Node, blk *ir.Block) (ir.Operand, ast.Errors) {
	var errs ast.Errors
	target := fb.alloc()
	blk.Statements = append(blk.Statements, &ir.Statement{Type: ir.MakeSet, Target: target})
	for _, elem := range set.Children() {
		val, eerrs := c.lowerExpr(fb, elem, blk)
		errs = append(errs, eerrs...)
		blk.Statements = append(blk.Statements, &ir.Statement{Type: ir.SetAdd, Target: target, Op0: val})
	}
	return ir.LocalOperand(target), errs
}

func (c *Compiler) lowerObject(fb *funcBuilder, obj *ast.Node, blk *ir.Block) (ir.Operand, ast.Errors) {
	var errs ast.Errors
	target := fb.alloc()
	blk.Statements = append(blk.Statements, &ir.Statement{Type: ir.MakeObject, Target: target})
	for _, kv := range obj.Children() {
		key, kerrs := c.lowerExpr(fb, kv.Child(0), blk)
		errs = append(errs, kerrs...)
		val, verrs := c.lowerExpr(fb, kv.Child(1), blk)
		errs = append(errs, verrs...)
		blk.Statements = append(blk.Statements, &ir.Statement{Type: ir.ObjectInsert, Target: target, Op0: key, Op1: val})
	}
	return ir.LocalOperand(target), errs
}

func (c *Compiler) lowerScalar(fb *funcBuilder, leaf *ast.Node, blk *ir.Block) (ir.Operand, ast.Errors) {
	switch leaf.Tag() {
	case ast.TagBool:
		return ir.BoolOperand(leaf.Text() == "true"), nil
	case ast.TagNull:
		target := fb.alloc()
		blk.Statements = append(blk.Statements, &ir.Statement{Type: ir.MakeNull, Target: target})
		return ir.LocalOperand(target), nil
	case ast.TagInt:
		if v, err := strconv.ParseInt(leaf.Text(), 10, 64); err == nil {
			return ir.ValueOperand(v), nil
		}
		// Oversized integer: preserved as source text and promoted by
		// the evaluator.
		return c.lowerNumberRef(fb, leaf.Text(), blk), nil
	case ast.TagFloat:
		return c.lowerNumberRef(fb, leaf.Text(), blk), nil
	case ast.TagString:
		return ir.StringOperand(c.bundle.InternString(unquoteString(leaf.Text()))), nil
	case ast.TagRawString:
		return ir.StringOperand(c.bundle.InternString(unquoteRaw(leaf.Text()))), nil
	default:
		return ir.Operand{}, nil
	}
}

// lowerNumberRef materializes a number too big (or too irregular) for an
// int64 immediate via MakeNumberRef, preserving its source-text form
// rather than lossily converting through float64.
func (c *Compiler) lowerNumberRef(fb *funcBuilder, text string, blk *ir.Block) ir.Operand {
	target := fb.alloc()
	idx := c.bundle.InternString(text)
	stmt := &ir.Statement{Type: ir.MakeNumberRef, Target: target}
	stmt.Ext.StrIdx = idx
	blk.Statements = append(blk.Statements, stmt)
	return ir.LocalOperand(target)
}

// unquoteString strips the surrounding double quotes a lexed TagString
// token retains and resolves the handful of escapes Rego-family JSON
// string literals support.
func unquoteString(raw string) string {
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		raw = raw[1 : len(raw)-1]
	}
	if !strings.ContainsRune(raw, '\\') {
		return raw
	}
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\\' && i+1 < len(raw) {
			i++
			switch raw[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '"', '\\', '/':
				b.WriteByte(raw[i])
			default:
				b.WriteByte(raw[i])
			}
			continue
		}
		b.WriteByte(raw[i])
	}
	return b.String()
}

// unquoteRaw strips the backticks a lexed TagRawString token retains;
// raw strings have no escape processing.
func unquoteRaw(raw string) string {
	if len(raw) >= 2 && raw[0] == '`' && raw[len(raw)-1] == '`' {
		return raw[1 : len(raw)-1]
	}
	return raw
}

func isComparisonOp(op string) bool {
	switch op {
	case "==", "!=", "<", "<=", ">", ">=":
		return true
	}
	return false
}

func comparisonBuiltin(op string) string {
	switch op {
	case "==":
		return "equal"
	case "!=":
		return "neq"
	case "<":
		return "lt"
	case "<=":
		return "lte"
	case ">":
		return "gt"
	case ">=":
		return "gte"
	}
	return op
}

func arithBuiltin(op string) string {
	switch op {
	case "+":
		return "plus"
	case "-":
		return "minus"
	case "*":
		return "mul"
	case "/":
		return "div"
	case "%":
		return "rem"
	case "&":
		return "and"
	case "|":
		return "or"
	}
	return op
}
