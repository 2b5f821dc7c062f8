package reader

import "github.com/open-ir/policyc/ast"

// operator precedence levels, lowest first: pass 8
// ("unary, arith/bin first ×÷%&, arith/bin second +−|, comparison").
var precLevels = [][]string{
	{"==", "!=", "<", "<=", ">", ">="}, // comparison (outermost/loosest)
	{"+", "-", "|"},                    // arith/bin second
	{"*", "/", "%", "&"},               // arith/bin first
}

// parseAssignLevel implements passes 10 (assign) atop the comparison
// grammar: a top-level `:=` or `=` splits lhs/rhs and is classified into
// an AssignOperator node. There is at most one per statement; `=` used
// for unification is left un-specialised here (the Unify-vs-Equals
// distinction per this module's `rules` pass is made once the compiler knows
// whether both sides are constants).
func (r *Reader) parseAssignLevel(toks []*ast.Node) *ast.Node {
	if i, ok := findTopLevelOp(toks, ":=", "="); ok {
		opTok := toks[i]
		lhs := r.parseMembership(toks[:i])
		rhs := r.parseMembership(toks[i+1:])
		assignOp := ast.NewLeaf(ast.TagAssignOperator, opTok.Location(), opTok.Text())
		infix := ast.NewNode(ast.TagExprInfix, opTok.Location())
		infix.Append(lhs, assignOp, rhs)
		return wrapExpr(infix)
	}
	return r.parseMembership(toks)
}

// parseMembership implements pass 9: lower `x in e` (single var) into a
// Membership node; `k, v in e` is only valid inside a `some`/`every`
// declarator and is handled by parseSome/parseEvery directly, never
// reaching here as a bare List.
func (r *Reader) parseMembership(toks []*ast.Node) *ast.Node {
	if i, ok := findTopLevelKeyword(r, toks, "in"); ok {
		lhs := r.parseComparison(toks[:i])
		rhs := r.parseComparison(toks[i+1:])
		m := ast.NewNode(ast.TagMembership, lhs.Location())
		m.Append(lhs, rhs)
		return wrapExpr(m)
	}
	return r.parseComparison(toks)
}

func (r *Reader) parseComparison(toks []*ast.Node) *ast.Node {
	return r.parseBinaryLevel(toks, 0)
}

// parseBinaryLevel implements the precedence-climbing core of passes 8:
// each level scans right-to-left for the last of its operators not
// nested inside a bracket (bracket nesting is already resolved into
// single Brace/Square/Paren nodes by the parser, so no depth tracking is
// needed here), recursing into the same level on the left and the
// next-tighter level on the right. An operator in first position has no
// left operand, so it is left for parseUnary.
func (r *Reader) parseBinaryLevel(toks []*ast.Node, level int) *ast.Node {
	if level >= len(precLevels) {
		return r.parseUnary(toks)
	}
	if i, op, ok := findLastTopLevelOperator(toks, precLevels[level]); ok && i > 0 {
		lhs := r.parseBinaryLevel(toks[:i], level)
		rhs := r.parseBinaryLevel(toks[i+1:], level+1)
		infix := ast.NewNode(ast.TagExprInfix, lhs.Location())
		infix.Append(lhs, ast.NewLeaf(ast.TagOperator, toks[i].Location(), op), rhs)
		return wrapExpr(infix)
	}
	return r.parseBinaryLevel(toks, level+1)
}

// parseUnary handles a leading `-` on a single term/ref/call (`not` is
// peeled off by parseStatement before an expression is parsed).
func (r *Reader) parseUnary(toks []*ast.Node) *ast.Node {
	if len(toks) == 0 {
		return wrapExpr(ast.NewNode(ast.TagTerm, nil))
	}
	if toks[0].Tag() == ast.TagOperator && toks[0].Text() == "-" && len(toks) > 1 {
		inner := r.parsePrimary(toks[1:])
		infix := ast.NewNode(ast.TagExprInfix, toks[0].Location())
		zero := ast.NewLeaf(ast.TagInt, toks[0].Location(), "0")
		infix.Append(wrapExpr(ast.NewNode(ast.TagTerm, toks[0].Location()).Append(wrapScalar(zero))),
			ast.NewLeaf(ast.TagOperator, toks[0].Location(), "-"), inner)
		return wrapExpr(infix)
	}
	return r.parsePrimary(toks)
}

// parsePrimary implements passes 4-7 (ref_args, refs, groups, terms):
// assembles a Ref(RefHead, RefArgSeq) from a leading Ident plus any
// dotted/bracketed trailers, recognises a trailing Paren as a call,
// falls back to Term for scalars/collections, and recurses into a
// parenthesised sub-expression.
func (r *Reader) parsePrimary(toks []*ast.Node) *ast.Node {
	if len(toks) == 0 {
		return wrapExpr(ast.NewNode(ast.TagTerm, nil))
	}
	head := toks[0]

	switch head.Tag() {
	case ast.TagParen:
		if len(toks) == 1 {
			inner := soleGroup(head)
			return wrapExpr(r.parseAssignLevel(inner))
		}
	case ast.TagSquare, ast.TagBrace:
		if len(toks) == 1 {
			return wrapExpr(ast.NewNode(ast.TagTerm, head.Location()).Append(r.parseCollectionOrCompr(head)))
		}
	case ast.TagIdent, ast.TagVarToken:
		ref := r.assembleRef(toks)
		return wrapExpr(ref)
	}

	if len(toks) == 1 {
		return wrapExpr(ast.NewNode(ast.TagTerm, head.Location()).Append(wrapScalar(head)))
	}
	// Fallback: treat the whole thing as a ref/call chain starting from
	// whatever leading token we have (defensive; a well-formed program
	// should not reach this branch for non-Ident heads).
	return wrapExpr(r.assembleRef(toks))
}

// assembleRef builds Ref(RefHead, RefArgSeq) and, if a trailing Paren
// immediately follows the ref, an ExprCall wrapping it.
func (r *Reader) assembleRef(toks []*ast.Node) *ast.Node {
	head := ast.NewLeaf(ast.TagRefHead, toks[0].Location(), toks[0].Text())
	args := ast.NewNode(ast.TagRefArgSeq, toks[0].Location())
	i := 1
	for i < len(toks) {
		switch {
		case toks[i].Tag() == ast.TagDot && i+1 < len(toks):
			arg := ast.NewNode(ast.TagRefArgDot, toks[i+1].Location())
			arg.Append(toks[i+1])
			args.Append(arg)
			i += 2
		case toks[i].Tag() == ast.TagSquare:
			arg := ast.NewNode(ast.TagRefArgBrack, toks[i].Location())
			inner := soleGroup(toks[i])
			if len(inner) == 0 {
				arg.Append(ast.NewLeaf(ast.TagWildcard, toks[i].Location(), "_"))
			} else {
				arg.Append(r.parseAssignLevel(inner))
			}
			args.Append(arg)
			i++
		case toks[i].Tag() == ast.TagParen:
			// Call arguments: each List element of the Paren is one arg.
			call := ast.NewNode(ast.TagExprCall, toks[0].Location())
			ref := ast.NewNode(ast.TagRef, toks[0].Location())
			ref.Append(head, args)
			call.Append(ref, r.parseArgList(toks[i]))
			return call
		default:
			// Unexpected trailer; stop assembling the ref here so the
			// remaining tokens surface as a malformed-expression error
			// upstream rather than being silently dropped.
			i = len(toks)
		}
	}
	ref := ast.NewNode(ast.TagRef, toks[0].Location())
	ref.Append(head, args)
	return ref
}

func (r *Reader) parseArgList(paren *ast.Node) *ast.Node {
	seq := ast.NewNode(ast.TagRefArgSeq, paren.Location())
	for _, elem := range paren.Children() {
		seq.Append(r.parseAssignLevel(flatten(elem)))
	}
	return seq
}

// parseCollectionOrCompr implements pass 6 ("groups"): a Square/Brace
// container whose first element has a top-level `|` operator is a
// comprehension (value left of `|`, body literals right of it and in
// every further element); otherwise it's an array/object/set literal,
// built here from its elements parsed as expressions (a Brace is an
// object when it is empty or its first element has a top-level `:`,
// and a set otherwise).
func (r *Reader) parseCollectionOrCompr(container *ast.Node) *ast.Node {
	if container.Len() > 0 {
		toks := flatten(container.Child(0))
		if i, ok := findTopLevelOp(toks, "|"); ok {
			return r.parseComprehension(container, toks[:i], toks[i+1:], container.Children()[1:])
		}
	}
	tag := map[ast.Tag]ast.Tag{ast.TagSquare: ast.TagArray, ast.TagBrace: ast.TagSet}[container.Tag()]
	if _, isObj := findTopLevelOp(soleGroup(container), ":"); tag == ast.TagSet && (isObj || container.Len() == 0) {
		tag = ast.TagObject
	}
	out := ast.NewNode(tag, container.Location())
	for _, elem := range container.Children() {
		toks := flatten(elem)
		if i, ok := findTopLevelOp(toks, ":"); ok && tag == ast.TagObject {
			out.Append(ast.NewNode(ast.TagKeyValue, elem.Location()).Append(r.parseAssignLevel(toks[:i]), r.parseAssignLevel(toks[i+1:])))
			continue
		}
		out.Append(r.parseAssignLevel(toks))
	}
	return out
}

func (r *Reader) parseComprehension(container *ast.Node, valueToks, bodyToks, more []*ast.Node) *ast.Node {
	tag := ast.TagArrayCompr
	if container.Tag() == ast.TagBrace {
		tag = ast.TagSetCompr
		if i, ok := findTopLevelOp(valueToks, ":"); ok {
			tag = ast.TagObjectCompr
			key := r.parseAssignLevel(valueToks[:i])
			val := r.parseAssignLevel(valueToks[i+1:])
			kv := ast.NewNode(ast.TagKeyValue, container.Location())
			kv.Append(key, val)
			compr := ast.NewNode(tag, container.Location())
			compr.Append(kv, r.parseBodyLiterals(bodyToks, more))
			return compr
		}
	}
	value := r.parseAssignLevel(valueToks)
	compr := ast.NewNode(tag, container.Location())
	compr.Append(value, r.parseBodyLiterals(bodyToks, more))
	return compr
}

// parseBodyLiterals turns a comprehension's inline body into Literals:
// toks (the tokens after `|`) is the first one, and each element in
// more (the List siblings the parser split off at `,`/`;`) is another.
func (r *Reader) parseBodyLiterals(toks, more []*ast.Node) *ast.Node {
	seq := ast.NewNode(ast.TagRuleBodySeq, nil)
	body := ast.NewNode(ast.TagRuleBody, nil)
	body.Append(r.parseOneBodyElement(toks))
	for _, elem := range more {
		body.Append(r.parseOneBodyElement(flatten(elem)))
	}
	seq.Append(body)
	return seq
}

func soleGroup(container *ast.Node) []*ast.Node {
	if container.Len() == 0 {
		return nil
	}
	return flatten(container.Child(0))
}

func wrapExpr(n *ast.Node) *ast.Node {
	e := ast.NewNode(ast.TagExpr, n.Location())
	e.Append(n)
	return e
}

func wrapScalar(leaf *ast.Node) *ast.Node {
	s := ast.NewNode(ast.TagScalar, leaf.Location())
	s.Append(leaf)
	return s
}

// findTopLevelOp finds the first occurrence of an Operator (including
// `|`) or Colon token whose text matches one of wants.
func findTopLevelOp(toks []*ast.Node, wants ...string) (int, bool) {
	for i, t := range toks {
		if t.Tag() != ast.TagOperator && t.Tag() != ast.TagColon {
			continue
		}
		for _, w := range wants {
			if t.Text() == w {
				return i, true
			}
		}
	}
	return 0, false
}

// findLastTopLevelOperator scans right-to-left so that e.g. `a - b - c`
// groups as `(a - b) - c` (left associative).
func findLastTopLevelOperator(toks []*ast.Node, ops []string) (int, string, bool) {
	for i := len(toks) - 1; i >= 0; i-- {
		t := toks[i]
		if t.Tag() != ast.TagOperator {
			continue
		}
		for _, op := range ops {
			if t.Text() == op {
				return i, op, true
			}
		}
	}
	return 0, "", false
}

func findTopLevelKeyword(r *Reader, toks []*ast.Node, kw string) (int, bool) {
	for i, t := range toks {
		if t.Tag() == ast.TagKeyword && t.Text() == kw {
			return i, true
		}
		if t.Tag() == ast.TagIdent && t.Text() == kw && r.keywordEnabled(kw) {
			return i, true
		}
	}
	return 0, false
}
