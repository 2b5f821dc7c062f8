package reader

import "github.com/open-ir/policyc/ast"

// prep implements pass 1: split the file into package, imports, and
// the remaining rule declarations; package refs become a RefGroup,
// each import becomes Import(RefGroup, Var). The query case is handled
// by reader.ParseQuery, which skips straight past this pass's
// package/import handling and parses a single standalone expression
// instead.
func (r *Reader) prep(top *ast.Node) (*ast.Node, error) {
	file := top.Find(ast.TagFile)
	if file == nil {
		r.fail(top.Location(), "expected a File node from the parser")
		return top, nil
	}

	module := ast.NewNode(ast.TagModule, file.Location())
	pkg := ast.NewNode(ast.TagPackage, file.Location())
	imports := ast.NewNode(ast.TagImportSeq, file.Location())
	policy := ast.NewNode(ast.TagPolicy, file.Location())

	sawPackage := false
	for _, group := range file.Children() {
		children := flatten(group)
		if len(children) == 0 {
			continue
		}
		head := children[0]
		switch {
		case head.Tag() == ast.TagKeyword && head.Text() == "package":
			if sawPackage {
				r.fail(head.Location(), "multiple package declarations in one module")
				continue
			}
			sawPackage = true
			pkg.Append(refGroupFromTokens(children[1:]))
		case head.Tag() == ast.TagKeyword && head.Text() == "import":
			if policy.Len() > 0 {
				r.fail(head.Location(), "import must precede rules")
			}
			imports.Append(r.parseImport(children[1:]))
		default:
			if !sawPackage {
				r.fail(head.Location(), "expected package declaration before rules")
			}
			policy.Append(group)
		}
	}
	if !sawPackage {
		r.fail(file.Location(), "missing package declaration")
	}

	module.Append(pkg, imports, policy)
	return module, nil
}

// flatten returns a Group's direct children, or a List-wrapped element's
// inner Group's children, so prep can uniformly inspect "the tokens of
// this top-level statement" regardless of which terminator produced it.
func flatten(n *ast.Node) []*ast.Node {
	if n.Tag() == ast.TagList && n.Len() == 1 {
		return n.Child(0).Children()
	}
	return n.Children()
}

// refGroupFromTokens assembles a dotted path of Ident/Dot tokens (the
// raw form a package/import ref takes before the `refs` pass builds a
// proper Ref(RefHead, RefArgSeq) node) into a RefGroup leaf sequence.
func refGroupFromTokens(toks []*ast.Node) *ast.Node {
	var loc *ast.Location
	if len(toks) > 0 {
		loc = toks[0].Location()
	}
	rg := ast.NewNode(ast.TagRefGroup, loc)
	for _, t := range toks {
		if t.Tag() == ast.TagDot {
			continue
		}
		rg.Append(t)
	}
	return rg
}

// parseImport handles `import <ref> [as <var>]`.
func (r *Reader) parseImport(toks []*ast.Node) *ast.Node {
	var loc *ast.Location
	if len(toks) > 0 {
		loc = toks[0].Location()
	}
	imp := ast.NewNode(ast.TagImport, loc)
	// Split on `as`.
	asIdx := -1
	for i, t := range toks {
		if t.Tag() == ast.TagKeyword && t.Text() == "as" {
			asIdx = i
			break
		}
	}
	if asIdx < 0 {
		imp.Append(refGroupFromTokens(toks))
		return imp
	}
	imp.Append(refGroupFromTokens(toks[:asIdx]))
	if asIdx+1 < len(toks) {
		imp.Append(toks[asIdx+1])
	}
	return imp
}
