package reader

import "github.com/open-ir/policyc/ast"

// parseStatement implements pass 15 ("literals"): wrap one body
// statement as Literal(expr_or_some_or_not, WithSeq), after peeling any
// `with T as V` suffixes (pass 13, "lines", "With(Term, Expr)").
func (r *Reader) parseStatement(toks []*ast.Node) *ast.Node {
	main, withSeq := r.peelWith(toks)
	var loc *ast.Location
	if len(main) > 0 {
		loc = main[0].Location()
	}
	lit := ast.NewNode(ast.TagLiteral, loc)

	switch {
	case len(main) > 0 && main[0].Tag() == ast.TagKeyword && main[0].Text() == "not":
		inner := r.parseAssignLevel(main[1:])
		not := ast.NewNode(ast.TagNotExpr, loc)
		not.Append(inner)
		lit.Append(not)
	default:
		lit.Append(r.parseAssignLevel(main))
	}
	if withSeq != nil {
		lit.Append(withSeq)
	}
	return lit
}

// peelWith splits off one or more trailing `with T as V` clauses (pass
// 13). Multiple `with` clauses compose left-to-right into one WithSeq.
func (r *Reader) peelWith(toks []*ast.Node) ([]*ast.Node, *ast.Node) {
	idx := -1
	for i, t := range toks {
		if t.Tag() == ast.TagKeyword && t.Text() == "with" {
			idx = i
			break
		}
	}
	if idx < 0 {
		return toks, nil
	}
	seq := ast.NewNode(ast.TagWithSeq, toks[idx].Location())
	rest := toks[idx:]
	for len(rest) > 0 {
		if !(rest[0].Tag() == ast.TagKeyword && rest[0].Text() == "with") {
			break
		}
		asIdx := -1
		for i, t := range rest {
			if t.Tag() == ast.TagKeyword && t.Text() == "as" {
				asIdx = i
				break
			}
		}
		if asIdx < 0 {
			r.fail(rest[0].Location(), "with clause missing 'as'")
			break
		}
		nextWith := len(rest)
		for i := asIdx + 1; i < len(rest); i++ {
			if rest[i].Tag() == ast.TagKeyword && rest[i].Text() == "with" {
				nextWith = i
				break
			}
		}
		target := r.assembleRef(rest[1:asIdx])
		value := r.parseAssignLevel(rest[asIdx+1 : nextWith])
		w := ast.NewNode(ast.TagWith, rest[0].Location())
		w.Append(target, value)
		seq.Append(w)
		rest = rest[nextWith:]
	}
	return toks[:idx], seq
}

// parseSome implements half of pass 3 (some_every): `some x, y in e` or
// a bare `some x, y` declaration with no `in` (free variable decl).
// varToks is the already-merged token run following the `some` keyword.
func (r *Reader) parseSome(varToks []*ast.Node, withSeq *ast.Node) *ast.Node {
	var loc *ast.Location
	if len(varToks) > 0 {
		loc = varToks[0].Location()
	}
	decl := ast.NewNode(ast.TagSomeDecl, loc)
	vars := ast.NewNode(ast.TagVarSeq, loc)

	if i, ok := findTopLevelKeyword(r, varToks, "in"); ok {
		for _, v := range splitTopLevelCommas(varToks[:i]) {
			if len(v) == 1 {
				vars.Append(v[0])
			}
		}
		decl.Append(vars)
		decl.Append(r.parseAssignLevel(varToks[i+1:]))
	} else {
		for _, v := range splitTopLevelCommas(varToks) {
			if len(v) == 1 {
				vars.Append(v[0])
			}
		}
		decl.Append(vars)
	}
	lit := ast.NewNode(ast.TagLiteral, loc)
	lit.Append(decl)
	if withSeq != nil {
		lit.Append(withSeq)
	}
	return lit
}

// parseEvery implements the other half of pass 3: `every [k,] v in e {
// body }`.
func (r *Reader) parseEvery(toks []*ast.Node, withSeq *ast.Node) *ast.Node {
	var loc *ast.Location
	if len(toks) > 0 {
		loc = toks[0].Location()
	}
	// The body Brace is the last token if present on the same line.
	var bodyBrace *ast.Node
	headToks := toks
	if len(toks) > 0 && toks[len(toks)-1].Tag() == ast.TagBrace {
		bodyBrace = toks[len(toks)-1]
		headToks = toks[:len(toks)-1]
	}
	inIdx, ok := findTopLevelKeyword(r, headToks, "in")
	if !ok {
		r.fail(loc, "every declaration missing 'in'")
		inIdx = len(headToks)
	}
	varParts := splitTopLevelCommas(headToks[:inIdx])
	vars := ast.NewNode(ast.TagVarSeq, loc)
	for _, v := range varParts {
		if len(v) == 1 {
			vars.Append(v[0])
		}
	}
	src := r.parseAssignLevel(headToks[min(inIdx+1, len(headToks)):])

	every := ast.NewNode(ast.TagExprEvery, loc)
	every.Append(vars, src)
	if bodyBrace != nil {
		every.Append(r.parseBodyFromBrace(bodyBrace))
	} else {
		every.Append(ast.NewNode(ast.TagRuleBodySeq, loc))
	}
	lit := ast.NewNode(ast.TagLiteral, loc)
	lit.Append(every)
	if withSeq != nil {
		lit.Append(withSeq)
	}
	return lit
}

func splitTopLevelCommas(toks []*ast.Node) [][]*ast.Node {
	var out [][]*ast.Node
	start := 0
	for i, t := range toks {
		if t.Tag() == ast.TagOperator && t.Text() == "," {
			out = append(out, toks[start:i])
			start = i + 1
		}
	}
	out = append(out, toks[start:])
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// parseBodyFromBrace turns a rule-body Brace's children (each a bare
// Group per statement, or a List-wrapped Group if an embedded `some`/
// `every` comma briefly triggered list mode) into a single RuleBody of
// Literals, after first re-merging any such split declarations.
func (r *Reader) parseBodyFromBrace(brace *ast.Node) *ast.Node {
	merged := mergeSomeEvery(r, brace.Children())
	seq := ast.NewNode(ast.TagRuleBodySeq, brace.Location())
	body := ast.NewNode(ast.TagRuleBody, brace.Location())
	for _, child := range merged {
		toks := flatten(child)
		if len(toks) == 0 {
			continue
		}
		body.Append(r.parseOneBodyElement(toks))
	}
	seq.Append(body)
	return seq
}

func (r *Reader) parseOneBodyElement(toks []*ast.Node) *ast.Node {
	main, withSeq := r.peelWith(toks)
	if len(main) > 0 && main[0].Tag() == ast.TagKeyword && main[0].Text() == "some" {
		return r.parseSome(main[1:], withSeq)
	}
	if len(main) > 0 && main[0].Tag() == ast.TagIdent && main[0].Text() == "every" && r.keywordEnabled("every") {
		return r.parseEvery(main[1:], withSeq)
	}
	return r.parseStatement(toks)
}
