package depgraph_test

import (
	"testing"

	"github.com/open-ir/policyc/ast"
	"github.com/open-ir/policyc/depgraph"
	"github.com/open-ir/policyc/parser"
	"github.com/open-ir/policyc/reader"
)

func bodyLiterals(t *testing.T, text string) []*ast.Node {
	t.Helper()
	top, perrs := parser.Parse(ast.NewSyntheticSource("<test>", text))
	if len(perrs) != 0 {
		t.Fatalf("parse errors: %v", perrs)
	}
	module, errs := reader.New(nil).Read(top)
	if len(errs) != 0 {
		t.Fatalf("reader errors: %v", errs)
	}
	policy := module.Find(ast.TagPolicy)
	rule := policy.Child(0)
	bodySeq := rule.Child(4)
	return bodySeq.Child(0).Children()
}

func TestScheduleOrdersWriterBeforeReader(t *testing.T) {
	lits := bodyLiterals(t, `package p
allow { y := x; x := 1 }`)
	g, errs := depgraph.Build(lits, nil)
	if len(errs) != 0 {
		t.Fatalf("build errors: %v", errs)
	}
	order, errs := g.Schedule()
	if len(errs) != 0 {
		t.Fatalf("schedule errors: %v", errs)
	}
	if len(order) != 2 {
		t.Fatalf("expected 2 scheduled literals, got %d", len(order))
	}
	// x := 1 must be scheduled before y := x even though it appears
	// second in source order, since y reads x.
	first := order[0].Dump()
	if !contains(first, "1") {
		t.Errorf("expected x:=1 scheduled first, got:\n%s", first)
	}
}

func TestScheduleDetectsCycle(t *testing.T) {
	lits := bodyLiterals(t, `package p
allow { x := y; y := x }`)
	g, errs := depgraph.Build(lits, nil)
	if len(errs) != 0 {
		t.Fatalf("build errors: %v", errs)
	}
	if _, errs := g.Schedule(); len(errs) == 0 {
		t.Fatalf("expected a cycle error")
	}
}

func TestScheduleDeterministicForIndependentLiterals(t *testing.T) {
	lits := bodyLiterals(t, `package p
allow { input.a == 1; input.b == 2 }`)
	g, errs := depgraph.Build(lits, nil)
	if len(errs) != 0 {
		t.Fatalf("build errors: %v", errs)
	}
	order, errs := g.Schedule()
	if len(errs) != 0 {
		t.Fatalf("schedule errors: %v", errs)
	}
	if len(order) != 2 {
		t.Fatalf("expected 2 literals, got %d", len(order))
	}
	if !contains(order[0].Dump(), "Ident(a)") {
		t.Errorf("expected the input.a literal first (source order), got:\n%s", order[0].Dump())
	}
}

func TestEmptyBodyScheduleYieldsTrueLiteral(t *testing.T) {
	g, errs := depgraph.Build(nil, nil)
	if len(errs) != 0 {
		t.Fatalf("build errors: %v", errs)
	}
	order, errs := g.Schedule()
	if len(errs) != 0 {
		t.Fatalf("schedule errors: %v", errs)
	}
	if len(order) != 1 {
		t.Fatalf("expected synthetic true literal, got %d", len(order))
	}
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
