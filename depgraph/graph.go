// Package depgraph builds, for a single rule body, the bipartite
// dependency graph of literals and locals: unification planning, cycle
// detection, and a deterministic topological ordering that the
// compiler lowers straight into IR statement blocks. Uses the same
// worklist-with-termination-test algorithm as the reference
// dependency_graph.cc implementation, combined with OPA's old
// RuleGraph/checkRecursion cycle-reporting style from ast/compile.go.
package depgraph

import (
	"fmt"
	"sort"

	"github.com/open-ir/policyc/ast"
)

// LitKind classifies a literal node for scheduling purposes.
type LitKind int

const (
	KindPlain LitKind = iota // pure read: Expr, NotExpr, Membership test
	KindAssign                // ExprAssign: single direction, `:=`
	KindUnify                 // ExprUnify: `=`, direction not yet planned
	KindSome
	KindEvery
	KindScan
)

// Lit is one literal in a rule body, annotated with what it reads and
// writes once planning has completed.
type Lit struct {
	Node   *ast.Node
	Kind   LitKind
	Reads  []string
	Writes []string
	index  int
}

// Graph is the bipartite literal<->local dependency graph for one body.
type Graph struct {
	Literals []*Lit
	// writer maps a local name to the index of the literal that writes
	// it, or -1 if it is a Capture (a free variable read from the
	// enclosing scope, never written in this body).
	writer map[string]int
	fresh  int
}

// Build constructs the graph from a rule body's literals (already
// parsed by the reader into Literal/SomeDecl/ExprEvery nodes) and the
// set of names already declared as rule locals.
func Build(literals []*ast.Node, declaredLocals []string) (*Graph, ast.Errors) {
	g := &Graph{writer: make(map[string]int)}
	for _, name := range declaredLocals {
		g.writer[name] = -1
	}
	var errs ast.Errors
	for i, n := range literals {
		lit, e := g.classify(n, i)
		errs = append(errs, e...)
		g.Literals = append(g.Literals, lit)
	}
	errs = append(errs, g.planUnifications()...)
	return g, errs
}

func (g *Graph) classify(n *ast.Node, idx int) (*Lit, ast.Errors) {
	lit := &Lit{Node: n, index: idx}
	var errs ast.Errors
	inner := n.Child(0)
	switch inner.Tag() {
	case ast.TagSomeDecl:
		lit.Kind = KindSome
		varSeq := inner.Child(0)
		for _, v := range varSeq.Children() {
			lit.Writes = append(lit.Writes, v.Text())
		}
		if inner.Len() > 1 {
			lit.Reads = freeVars(inner.Child(1), g.writer)
		}
	case ast.TagExprEvery:
		lit.Kind = KindEvery
		lit.Reads = freeVars(inner.Child(1), g.writer)
	case ast.TagNotExpr:
		lit.Kind = KindPlain
		lit.Reads = freeVars(inner, g.writer)
	case ast.TagExpr:
		expr := inner.Child(0)
		if expr.Tag() == ast.TagExprInfix && expr.Len() == 3 && expr.Child(1).Tag() == ast.TagAssignOperator {
			op := expr.Child(1).Text()
			lhs, rhs := expr.Child(0), expr.Child(2)
			if op == ":=" {
				lit.Kind = KindAssign
				// `:=` always declares: a bare-var LHS becomes the write
				// target; a destructuring pattern (array/object of vars)
				// is left as a read of the whole pattern plus the RHS,
				// deferred to the compiler's pattern-unification lowering
				// rather than decomposed here (see DESIGN.md).
				if name, ok := bareVarName(lhs); ok {
					lit.Writes = []string{name}
					lit.Reads = freeVars(rhs, g.writer)
				} else {
					lit.Reads = append(freeVars(lhs, g.writer), freeVars(rhs, g.writer)...)
				}
			} else {
				lit.Kind = KindUnify
				lit.Reads = append(freeVars(lhs, g.writer), freeVars(rhs, g.writer)...)
			}
		} else {
			lit.Kind = KindPlain
			lit.Reads = freeVars(inner, g.writer)
		}
	default:
		lit.Kind = KindPlain
		lit.Reads = freeVars(inner, g.writer)
	}
	for _, w := range lit.Writes {
		if existing, ok := g.writer[w]; ok && existing >= 0 {
			errs = append(errs, ast.NewError(ast.CompileErr, n.Location(), "local %q assigned more than once", w))
			continue
		}
		g.writer[w] = idx
	}
	return lit, errs
}

// freeVars collects the names of every bare single-segment Ref inside n
// (a var reference), excluding wildcards, deduplicated.
func freeVars(n *ast.Node, known map[string]int) []string {
	seen := map[string]bool{}
	var out []string
	ast.Walk(n, func(cur *ast.Node) bool {
		if cur.Tag() != ast.TagRef {
			return true
		}
		if cur.Len() != 2 || cur.Child(1).Len() != 0 {
			return true // a dotted/bracketed ref, not a bare var
		}
		name := cur.Child(0).Text()
		if name == "input" || name == "data" || seen[name] {
			return true
		}
		seen[name] = true
		out = append(out, name)
		return true
	})
	return out
}

func (g *Graph) freshLocal(hint string) string {
	g.fresh++
	return fmt.Sprintf("%s$%d", hint, g.fresh)
}

// planUnifications runs tryPlanOne over each `=`-literal, repeating
// until a pass makes no progress, and reports anything still pending as
// a unify cycle. tryPlanOne settles every literal on its first try (as
// an Assign or an Equals test) and never splits a unification into
// sub-unifications, so no cycle is reported from here.
func (g *Graph) planUnifications() ast.Errors {
	pending := make([]*Lit, 0)
	for _, lit := range g.Literals {
		if lit.Kind == KindUnify {
			pending = append(pending, lit)
		}
	}
	for {
		var remaining []*Lit
		progressed := false
		for _, lit := range pending {
			if g.tryPlanOne(lit) {
				progressed = true
			} else {
				remaining = append(remaining, lit)
			}
		}
		pending = remaining
		if !progressed || len(pending) == 0 {
			break
		}
	}
	var errs ast.Errors
	for _, lit := range pending {
		errs = append(errs, ast.NewError(ast.CompileErr, lit.Node.Location(),
			"unify cycle: unable to resolve %s", lit.Node.Dump()))
	}
	return errs
}

// tryPlanOne attempts to resolve a single `=` literal. var/var and
// var/term resolve immediately by picking the unbound side as the
// writer; term/term degrades to a pure equality test; a ref needing
// evaluation on either side is not decomposed further here (the
// compiler's expr_to_opblock lowering evaluates refs structurally, so
// the graph only needs to know its free-variable reads, already
// captured in lit.Reads) — this keeps the planner's scope to exactly
// the var-direction question.
func (g *Graph) tryPlanOne(lit *Lit) bool {
	expr := lit.Node.Child(0).Child(0)
	lhs, rhs := expr.Child(0), expr.Child(2)
	lhsVar, lhsIsVar := bareVarName(lhs)
	rhsVar, rhsIsVar := bareVarName(rhs)

	switch {
	case lhsIsVar && !isWritten(g.writer, lhsVar):
		lit.Writes = []string{lhsVar}
		lit.Reads = removeName(freeVars(rhs, g.writer), lhsVar)
		g.writer[lhsVar] = lit.index
		lit.Kind = KindAssign
		return true
	case rhsIsVar && !isWritten(g.writer, rhsVar):
		lit.Writes = []string{rhsVar}
		lit.Reads = removeName(freeVars(lhs, g.writer), rhsVar)
		g.writer[rhsVar] = lit.index
		lit.Kind = KindAssign
		return true
	default:
		// Both sides already bound (or neither is a bare var): this is
		// a pure equality test, always resolvable.
		lit.Kind = KindPlain
		lit.Reads = append(freeVars(lhs, g.writer), freeVars(rhs, g.writer)...)
		return true
	}
}

func bareVarName(n *ast.Node) (string, bool) {
	if n.Tag() == ast.TagExpr {
		n = n.Child(0)
	}
	if n.Tag() != ast.TagRef || n.Len() != 2 || n.Child(1).Len() != 0 {
		return "", false
	}
	name := n.Child(0).Text()
	if name == "input" || name == "data" || name == "_" {
		return "", false
	}
	return name, true
}

func isWritten(writer map[string]int, name string) bool {
	idx, ok := writer[name]
	return ok && idx >= 0
}

func removeName(names []string, drop string) []string {
	out := names[:0:0]
	for _, n := range names {
		if n != drop {
			out = append(out, n)
		}
	}
	return out
}

// Schedule implements Kahn's algorithm over the planned graph: a
// literal becomes ready once every local it reads has already been
// written (or was never written at all, i.e. is a Capture). Ties are
// broken by original source order for a deterministic result. An empty scheduled body yields a single
// `Literal(Expr(Term(Scalar(true))))`
func (g *Graph) Schedule() ([]*ast.Node, ast.Errors) {
	if len(g.Literals) == 0 {
		return []*ast.Node{trueLiteral()}, nil
	}
	written := map[string]bool{}
	for name, idx := range g.writer {
		if idx < 0 {
			written[name] = true // capture: available from the start
		}
	}
	done := make([]bool, len(g.Literals))
	var order []*ast.Node
	for len(order) < len(g.Literals) {
		progressed := false
		var ready []int
		for i, lit := range g.Literals {
			if done[i] {
				continue
			}
			if allWritten(lit.Reads, written) {
				ready = append(ready, i)
			}
		}
		sort.Ints(ready)
		for _, i := range ready {
			lit := g.Literals[i]
			done[i] = true
			for _, w := range lit.Writes {
				written[w] = true
			}
			order = append(order, lit.Node)
			progressed = true
		}
		if !progressed {
			var errs ast.Errors
			for i, lit := range g.Literals {
				if !done[i] {
					errs = append(errs, ast.NewError(ast.CompileErr, lit.Node.Location(),
						"no writer for one of %v before use", lit.Reads))
				}
			}
			return order, errs
		}
	}
	return order, nil
}

func allWritten(reads []string, written map[string]bool) bool {
	for _, r := range reads {
		if !written[r] {
			return false
		}
	}
	return true
}

func trueLiteral() *ast.Node {
	lit := ast.NewNode(ast.TagLiteral, nil)
	expr := ast.NewNode(ast.TagExpr, nil)
	term := ast.NewNode(ast.TagTerm, nil)
	scalar := ast.NewNode(ast.TagScalar, nil)
	scalar.Append(ast.NewLeaf(ast.TagBool, nil, "true"))
	term.Append(scalar)
	expr.Append(term)
	lit.Append(expr)
	return lit
}

// InferLocals implements local inference: after
// scheduling, any name that appears in the graph with no declaration is
// reported so the caller (the compiler's `locals` pass) can add it to
// the enclosing rule's LocalSeq.
func (g *Graph) InferLocals(alreadyDeclared map[string]bool) []string {
	var out []string
	seen := map[string]bool{}
	for _, lit := range g.Literals {
		for _, w := range lit.Writes {
			if !alreadyDeclared[w] && !seen[w] {
				seen[w] = true
				out = append(out, w)
			}
		}
	}
	sort.Strings(out)
	return out
}
