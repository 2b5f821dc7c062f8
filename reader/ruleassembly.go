package reader

import "github.com/open-ir/policyc/ast"

// exprGrammarPass assembles each top-level Policy declaration (still a
// raw Group straight from the parser) into a Rule node, running the
// full expression grammar — passes 4 through 10
// (ref_args, refs, groups, terms, unary, the two arithmetic precedence
// levels, comparison, membership, assign) plus the some/every folding of
// pass 3 — over both the rule's head signature and its body. `else`
// continuations are left tagged TagElse here; elseNotPass folds them
// into the preceding rule.
func (r *Reader) exprGrammarPass(module *ast.Node) (*ast.Node, error) {
	policy := module.Find(ast.TagPolicy)
	if policy == nil {
		return module, nil
	}
	rules := make([]*ast.Node, 0, policy.Len())
	for _, group := range policy.Children() {
		toks := flatten(group)
		if len(toks) == 0 {
			continue
		}
		rules = append(rules, r.parseRuleDecl(toks))
	}
	newPolicy := ast.NewNode(ast.TagPolicy, policy.Location())
	newPolicy.Append(rules...)
	return replaceChild(module, ast.TagPolicy, newPolicy), nil
}

func replaceChild(parent *ast.Node, tag ast.Tag, replacement *ast.Node) *ast.Node {
	out := ast.NewNode(parent.Tag(), parent.Location())
	for _, c := range parent.Children() {
		if c.Tag() == tag {
			out.Append(replacement)
		} else {
			out.Append(c)
		}
	}
	return out
}

// parseRuleDecl classifies and builds one rule declaration: complete, function, partial-set, partial-
// object, or default, based on head syntax.
func (r *Reader) parseRuleDecl(toks []*ast.Node) *ast.Node {
	loc := toks[0].Location()

	if toks[0].Tag() == ast.TagKeyword && toks[0].Text() == "else" {
		return r.parseElseDecl(toks[1:], loc)
	}

	isDefault := false
	if toks[0].Tag() == ast.TagKeyword && toks[0].Text() == "default" {
		isDefault = true
		toks = toks[1:]
	}

	var bodyBrace *ast.Node
	head := toks
	if len(toks) > 0 && toks[len(toks)-1].Tag() == ast.TagBrace {
		bodyBrace = toks[len(toks)-1]
		head = toks[:len(toks)-1]
	}
	head = r.stripIf(head, bodyBrace, loc)

	if isDefault {
		return r.buildDefaultRule(head, loc)
	}
	return r.buildRule(head, bodyBrace, loc)
}

// stripIf consumes the contextual `if` keyword separating a rule head
// from its body.
func (r *Reader) stripIf(head []*ast.Node, bodyBrace *ast.Node, loc *ast.Location) []*ast.Node {
	if n := len(head); n > 0 && head[n-1].Tag() == ast.TagIdent && head[n-1].Text() == "if" && r.keywordEnabled("if") {
		return head[:n-1]
	}
	if bodyBrace != nil && r.Strict {
		r.failCompile(loc, "rule body must be preceded by 'if' in rego.v1 mode")
	}
	return head
}

func (r *Reader) parseElseDecl(toks []*ast.Node, loc *ast.Location) *ast.Node {
	var bodyBrace *ast.Node
	head := toks
	if len(toks) > 0 && toks[len(toks)-1].Tag() == ast.TagBrace {
		bodyBrace = toks[len(toks)-1]
		head = toks[:len(toks)-1]
	}
	elseNode := ast.NewNode(ast.TagElse, loc)
	if i, ok := findTopLevelOp(head, ":="); ok {
		elseNode.Append(r.parseAssignLevel(head[i+1:]))
	} else {
		elseNode.Append(ast.NewNode(ast.TagExpr, loc).Append(ast.NewNode(ast.TagTerm, loc).Append(wrapScalar(ast.NewLeaf(ast.TagBool, loc, "true")))))
	}
	if bodyBrace != nil {
		elseNode.Append(r.parseBodyFromBrace(bodyBrace))
	} else {
		elseNode.Append(ast.NewNode(ast.TagRuleBodySeq, loc))
	}
	return elseNode
}

func (r *Reader) buildDefaultRule(head []*ast.Node, loc *ast.Location) *ast.Node {
	i, ok := findTopLevelOp(head, ":=", "=")
	var name string
	var value *ast.Node
	if ok {
		name = refName(head[:i])
		value = r.parseAssignLevel(head[i+1:])
	} else {
		name = refName(head)
		value = ast.NewNode(ast.TagExpr, loc).Append(ast.NewNode(ast.TagTerm, loc).Append(wrapScalar(ast.NewLeaf(ast.TagBool, loc, "false"))))
	}
	ref := r.assembleRef(head)
	headNode := ast.NewNode(ast.TagRuleHeadComplete, loc)
	headNode.Append(value)
	def := ast.NewNode(ast.TagDefault, loc)
	def.Append(headNode)
	return makeRule(name, ref, def, ast.NewNode(ast.TagRuleBodySeq, loc), loc)
}

func (r *Reader) buildRule(head []*ast.Node, bodyBrace *ast.Node, loc *ast.Location) *ast.Node {
	var bodySeq *ast.Node
	if bodyBrace != nil {
		bodySeq = r.parseBodyFromBrace(bodyBrace)
	} else {
		bodySeq = ast.NewNode(ast.TagRuleBodySeq, loc)
	}

	// `contains` sugar: `Ref contains Expr`.
	if i, ok := findTopLevelKeyword(r, head, "contains"); ok {
		ref := r.assembleRef(head[:i])
		key := r.parseAssignLevel(head[i+1:])
		headNode := ast.NewNode(ast.TagRuleHeadPartialSet, loc)
		headNode.Append(key)
		name := refName(head[:i])
		return makeRule(name, ref, headNode, bodySeq, loc)
	}

	assignIdx, hasAssign := findTopLevelOp(head, ":=", "=")
	var lhs []*ast.Node
	var rhs *ast.Node
	if hasAssign {
		lhs = head[:assignIdx]
		rhs = r.parseAssignLevel(head[assignIdx+1:])
	} else {
		lhs = head
	}

	if bracketArg, params, ok := splitTrailingParen(lhs); ok {
		ref := r.assembleRef(lhs[:len(lhs)-bracketLen(lhs)])
		headNode := ast.NewNode(ast.TagRuleHeadFunction, loc)
		headNode.Append(params)
		if rhs != nil {
			headNode.Append(rhs)
		} else {
			headNode.Append(ast.NewNode(ast.TagExpr, loc).Append(ast.NewNode(ast.TagTerm, loc).Append(wrapScalar(ast.NewLeaf(ast.TagBool, loc, "true")))))
		}
		_ = bracketArg
		return makeRule(refName(lhs), ref, headNode, bodySeq, loc)
	}

	if key, ref, ok := splitTrailingBracket(r, lhs); ok {
		if rhs != nil {
			headNode := ast.NewNode(ast.TagRuleHeadPartialObject, loc)
			headNode.Append(key, rhs)
			return makeRule(refName(lhs), ref, headNode, bodySeq, loc)
		}
		headNode := ast.NewNode(ast.TagRuleHeadPartialSet, loc)
		headNode.Append(key)
		return makeRule(refName(lhs), ref, headNode, bodySeq, loc)
	}

	ref := r.assembleRef(lhs)
	headNode := ast.NewNode(ast.TagRuleHeadComplete, loc)
	if rhs != nil {
		headNode.Append(rhs)
	} else {
		headNode.Append(ast.NewNode(ast.TagExpr, loc).Append(ast.NewNode(ast.TagTerm, loc).Append(wrapScalar(ast.NewLeaf(ast.TagBool, loc, "true")))))
	}
	return makeRule(refName(lhs), ref, headNode, bodySeq, loc)
}

func makeRule(name string, ref, head, bodySeq *ast.Node, loc *ast.Location) *ast.Node {
	rule := ast.NewNode(ast.TagRule, loc)
	rule.Append(ast.NewLeaf(ast.TagIdent, loc, name), ref, ast.NewNode(ast.TagLocalSeq, loc), head, bodySeq)
	return rule
}

func refName(toks []*ast.Node) string {
	if len(toks) == 0 {
		return ""
	}
	return toks[0].Text()
}

// splitTrailingParen recognises a function head `name(args)` and returns
// its parsed parameter list.
func splitTrailingParen(toks []*ast.Node) (*ast.Node, *ast.Node, bool) {
	if len(toks) == 0 || toks[len(toks)-1].Tag() != ast.TagParen {
		return nil, nil, false
	}
	paren := toks[len(toks)-1]
	args := ast.NewNode(ast.TagArgs, paren.Location())
	for _, elem := range paren.Children() {
		args.Append(flatten(elem)...)
	}
	return paren, args, true
}

func bracketLen(toks []*ast.Node) int {
	if len(toks) > 0 && toks[len(toks)-1].Tag() == ast.TagParen {
		return 1
	}
	return 0
}

// splitTrailingBracket recognises `name[key]` (partial set/object
// sugar), returning the key expression and the ref built from the rest.
func splitTrailingBracket(r *Reader, toks []*ast.Node) (*ast.Node, *ast.Node, bool) {
	if len(toks) == 0 || toks[len(toks)-1].Tag() != ast.TagSquare {
		return nil, nil, false
	}
	ref := r.assembleRef(toks[:len(toks)-1])
	key := r.parseAssignLevel(soleGroup(toks[len(toks)-1]))
	return key, ref, true
}
