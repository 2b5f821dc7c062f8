package reader

import "github.com/open-ir/policyc/ast"

var allContextualKeywords = []string{"if", "in", "contains", "every"}

// keywordsPass implements pass 2: recognise `rego.v1` /
// `future.keywords.*` imports and enable `if|in|contains|every` as
// keywords for this module only; the two forms are mutually exclusive.
func (r *Reader) keywordsPass(module *ast.Node) (*ast.Node, error) {
	imports := module.Find(ast.TagImportSeq)
	if imports == nil {
		return module, nil
	}
	sawRegoV1 := false
	sawFutureKeyword := false
	for _, imp := range imports.Children() {
		rg := imp.Find(ast.TagRefGroup)
		if rg == nil {
			continue
		}
		segs := refGroupSegments(rg)
		switch {
		case len(segs) == 2 && segs[0] == "rego" && segs[1] == "v1":
			sawRegoV1 = true
			for _, kw := range allContextualKeywords {
				r.keywordsOn[kw] = true
			}
			r.Strict = true
		case len(segs) >= 2 && segs[0] == "future" && segs[1] == "keywords":
			sawFutureKeyword = true
			if len(segs) == 2 {
				for _, kw := range allContextualKeywords {
					r.keywordsOn[kw] = true
				}
			} else {
				r.keywordsOn[segs[2]] = true
			}
		}
	}
	if sawRegoV1 && sawFutureKeyword {
		r.failCompile(imports.Location(), "rego.v1 and future.keywords.* imports are mutually exclusive")
	}
	return module, nil
}

func refGroupSegments(rg *ast.Node) []string {
	segs := make([]string, 0, rg.Len())
	for _, c := range rg.Children() {
		segs = append(segs, c.Text())
	}
	return segs
}

// keywordEnabled reports whether the contextual keyword name has been
// turned on by this module's imports. Permanent keywords are classified
// by the tokenizer and are not tracked here.
func (r *Reader) keywordEnabled(name string) bool { return r.keywordsOn[name] }
