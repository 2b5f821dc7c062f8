package reader

import "github.com/open-ir/policyc/ast"

// mergeSomeEvery undoes the raw parser's comma-triggered List splitting
// for `some x, y in e` / `every k, v in e { ... }` declarations: these
// are the one place a bare (non-bracketed) comma appears inside a rule
// body, and the generic parser (which has no keyword awareness) cannot
// tell it apart from an ordinary list separator. This is pass 3
// ("some_every"), run lazily wherever a rule body is assembled rather
// than as a whole-tree walk, since only rule bodies can contain such a
// declaration.
func mergeSomeEvery(r *Reader, children []*ast.Node) []*ast.Node {
	var out []*ast.Node
	i := 0
	for i < len(children) {
		toks := flatten(children[i])
		if len(toks) == 0 || !isSomeOrEveryLead(r, toks[0]) {
			out = append(out, children[i])
			i++
			continue
		}
		merged := append([]*ast.Node(nil), toks...)
		j := i
		for !hasTopLevelIn(r, merged) && j+1 < len(children) {
			j++
			comma := ast.NewLeaf(ast.TagOperator, toks[0].Location(), ",")
			merged = append(merged, comma)
			merged = append(merged, flatten(children[j])...)
		}
		wrapped := ast.NewNode(ast.TagGroup, toks[0].Location())
		wrapped.Append(merged...)
		out = append(out, wrapped)
		i = j + 1
	}
	return out
}

func isSomeOrEveryLead(r *Reader, tok *ast.Node) bool {
	if tok.Tag() == ast.TagKeyword && tok.Text() == "some" {
		return true
	}
	return tok.Tag() == ast.TagIdent && tok.Text() == "every" && r.keywordEnabled("every")
}

func hasTopLevelIn(r *Reader, toks []*ast.Node) bool {
	_, ok := findTopLevelKeyword(r, toks, "in")
	return ok
}
