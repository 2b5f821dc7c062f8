package parser

import (
	"testing"

	"github.com/open-ir/policyc/ast"
)

func dump(t *testing.T, n *ast.Node) string {
	t.Helper()
	return n.Dump()
}

func TestLexBasic(t *testing.T) {
	src := ast.NewSyntheticSource("<test>", `package p

allow := true`)
	toks, errs := Lex(src)
	if len(errs) != 0 {
		t.Fatalf("unexpected lex errors: %v", errs)
	}
	var kinds []Kind
	for _, tok := range toks {
		if tok.Kind == KindEOF {
			continue
		}
		kinds = append(kinds, tok.Kind)
	}
	want := []Kind{KindKeyword, KindIdent, KindNewline, KindNewline, KindIdent, KindOperator, KindBool}
	if len(kinds) != len(want) {
		t.Fatalf("got %d tokens %v, want %d", len(kinds), kinds, len(want))
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("token %d: got %s, want %s", i, kinds[i], want[i])
		}
	}
}

func TestParseGroupsSeparatedByNewline(t *testing.T) {
	src := ast.NewSyntheticSource("<test>", "package p\nallow := true\ndeny := false")
	top, errs := Parse(src)
	if len(errs) != 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	file := top.Child(0)
	if file.Tag() != ast.TagFile {
		t.Fatalf("expected File, got %s", file.Tag())
	}
	if got := file.Len(); got != 3 {
		t.Fatalf("expected 3 top-level groups, got %d:\n%s", got, dump(t, top))
	}
	for _, g := range file.Children() {
		if g.Tag() != ast.TagGroup {
			t.Errorf("expected bare Group at top level, got %s", g.Tag())
		}
	}
}

func TestParseCommaListInsideBrackets(t *testing.T) {
	src := ast.NewSyntheticSource("<test>", "x := [1, 2, 3]")
	top, errs := Parse(src)
	if len(errs) != 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	group := top.Child(0).Child(0)
	square := group.FindAll(ast.TagSquare)
	if len(square) != 1 {
		t.Fatalf("expected one Square container, got %d:\n%s", len(square), dump(t, top))
	}
	if got := square[0].Len(); got != 3 {
		t.Fatalf("expected 3 list elements in [1, 2, 3], got %d:\n%s", got, dump(t, top))
	}
	for _, elem := range square[0].Children() {
		if elem.Tag() != ast.TagList {
			t.Errorf("expected List-wrapped element, got %s", elem.Tag())
		}
	}
}

func TestParseUnterminatedBraceIsParseError(t *testing.T) {
	src := ast.NewSyntheticSource("<test>", "allow { input.x == 1")
	_, errs := Parse(src)
	if len(errs) == 0 {
		t.Fatal("expected a parse error for an unterminated brace")
	}
	if errs[0].Code != ast.ParseErr {
		t.Errorf("expected ParseErr, got %s", errs[0].Code)
	}
}

func TestParseSetEmptyToken(t *testing.T) {
	src := ast.NewSyntheticSource("<test>", "x := set()")
	top, errs := Parse(src)
	if len(errs) != 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	group := top.Child(0).Child(0)
	if got := group.FindAll(ast.TagSetEmpty); len(got) != 1 {
		t.Fatalf("expected one SetEmpty token:\n%s", dump(t, top))
	}
}
