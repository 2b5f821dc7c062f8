package reader

import "github.com/open-ir/policyc/ast"

// elseNotPass implements pass 11 ("else_not"): fold each `else` group
// produced by exprGrammarPass into the immediately preceding rule's
// RuleBodySeq, and in strict mode reject an assignment whose LHS is
// `input` or `data`.
func (r *Reader) elseNotPass(module *ast.Node) (*ast.Node, error) {
	policy := module.Find(ast.TagPolicy)
	if policy == nil {
		return module, nil
	}
	var merged []*ast.Node
	for _, rule := range policy.Children() {
		if rule.Tag() == ast.TagElse {
			if len(merged) == 0 {
				r.fail(rule.Location(), "else with no preceding rule")
				continue
			}
			prev := merged[len(merged)-1]
			bodySeq := prev.Find(ast.TagRuleBodySeq)
			elseBody := rule.Find(ast.TagRuleBodySeq)
			if bodySeq != nil && elseBody != nil {
				bodySeq.Append(elseBody.Children()...)
			}
			continue
		}
		if r.Strict {
			r.checkNoInputDataAssignment(rule)
		}
		merged = append(merged, rule)
	}
	newPolicy := ast.NewNode(ast.TagPolicy, policy.Location())
	newPolicy.Append(merged...)
	return replaceChild(module, ast.TagPolicy, newPolicy), nil
}

// checkNoInputDataAssignment walks a rule's bodies for an ExprInfix
// under AssignOperator whose LHS ref head is `input` or `data`.
func (r *Reader) checkNoInputDataAssignment(rule *ast.Node) {
	ast.Walk(rule, func(n *ast.Node) bool {
		if n.Tag() != ast.TagExprInfix || n.Len() != 3 {
			return true
		}
		if n.Child(1).Tag() != ast.TagAssignOperator {
			return true
		}
		lhsHead := findRefHead(n.Child(0))
		if lhsHead == "input" || lhsHead == "data" {
			r.failCompile(n.Location(), "assignment to %q is not allowed", lhsHead)
		}
		return true
	})
}

func findRefHead(n *ast.Node) string {
	var head string
	ast.Walk(n, func(cur *ast.Node) bool {
		if cur.Tag() == ast.TagRefHead && head == "" {
			head = cur.Text()
			return false
		}
		return true
	})
	return head
}

// collectionsPass implements pass 12 ("collections"): by the time this
// pass runs, array/object/set literals and comprehensions have already
// been recognised directly during parsePrimary/parseCollectionOrCompr
// (a single recursive-descent grammar subsumes this rewrite instead of a
// second whole-tree pass), so this stage returns the module unchanged.
func (r *Reader) collectionsPass(module *ast.Node) (*ast.Node, error) {
	return module, nil
}

// linesPass implements pass 13 ("lines"): statement splitting and
// `with` lowering already happened while each body was assembled
// (parseBodyFromBrace / peelWith); nothing remains to rewrite here.
func (r *Reader) linesPass(module *ast.Node) (*ast.Node, error) {
	return module, nil
}

// rulesPass implements the structural half of pass 14: having already
// classified each rule's head shape in exprGrammarPass, this stage
// validates the invariant that every Rule carries exactly its five
// expected children.
func (r *Reader) rulesPass(module *ast.Node) (*ast.Node, error) {
	policy := module.Find(ast.TagPolicy)
	if policy == nil {
		return module, nil
	}
	for _, rule := range policy.Children() {
		if rule.Len() != 5 {
			r.errs = append(r.errs, ast.NewError(ast.WellFormedErr, rule.Location(),
				"rule node has %d children, want 5 (Ident, Ref, LocalSeq, Head, RuleBodySeq)", rule.Len()).WithExcerpt(rule))
		}
	}
	return module, nil
}

// literalsPass implements pass 15: statements are wrapped as Literal
// nodes at the point they're parsed (parseStatement/parseSome/
// parseEvery), so this stage is a validation no-op.
func (r *Reader) literalsPass(module *ast.Node) (*ast.Node, error) {
	return module, nil
}

// structurePass implements pass 16: enforces the final module grammar
// `Module(Ident, Package, Version, ImportSeq, Policy(Rule*))` and
// validates that imports were declared (import ordering is checked
// earlier: prep reports an import that follows a rule).
func (r *Reader) structurePass(module *ast.Node) (*ast.Node, error) {
	pkg := module.Find(ast.TagPackage)
	imports := module.Find(ast.TagImportSeq)
	policy := module.Find(ast.TagPolicy)
	loc := module.Location()

	name := "<module>"
	if pkg != nil {
		if rg := pkg.Find(ast.TagRefGroup); rg != nil {
			name = joinRefGroup(rg)
		}
	}
	version := "v0"
	if r.Strict {
		version = "v1"
	}

	final := ast.NewNode(ast.TagModule, loc)
	final.Append(
		ast.NewLeaf(ast.TagIdent, loc, name),
		safeNode(pkg, ast.TagPackage, loc),
		ast.NewLeaf(ast.TagVersion, loc, version),
		safeNode(imports, ast.TagImportSeq, loc),
		safeNode(policy, ast.TagPolicy, loc),
	)

	errs := ModuleWF.Check(final)
	r.errs = append(r.errs, errs...)
	return final, nil
}

func safeNode(n *ast.Node, tag ast.Tag, loc *ast.Location) *ast.Node {
	if n != nil {
		return n
	}
	return ast.NewNode(tag, loc)
}

func joinRefGroup(rg *ast.Node) string {
	out := ""
	for i, c := range rg.Children() {
		if i > 0 {
			out += "."
		}
		out += c.Text()
	}
	return out
}

// ModuleWF is the well-formedness grammar the final canonical module
// must satisfy.C pass 16 and §3's Module/Rule shapes.
var ModuleWF = ast.NewWF("reader:module").
	Rule(ast.TagModule, ast.Seq(ast.One(ast.TagIdent), ast.One(ast.TagPackage), ast.One(ast.TagVersion), ast.One(ast.TagImportSeq), ast.One(ast.TagPolicy))).
	Rule(ast.TagPolicy, ast.Star(ast.One(ast.TagRule))).
	Rule(ast.TagRule, ast.Seq(ast.One(ast.TagIdent), ast.One(ast.TagRef), ast.One(ast.TagLocalSeq), ast.AnyOf(ast.TagRuleHeadComplete, ast.TagRuleHeadFunction, ast.TagRuleHeadPartialSet, ast.TagRuleHeadPartialObject, ast.TagDefault), ast.One(ast.TagRuleBodySeq)))
