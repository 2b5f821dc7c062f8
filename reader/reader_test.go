package reader

import (
	"testing"

	"github.com/open-ir/policyc/ast"
	"github.com/open-ir/policyc/parser"
)

func mustRead(t *testing.T, text string) *ast.Node {
	t.Helper()
	top, perrs := parser.Parse(ast.NewSyntheticSource("<test>", text))
	if len(perrs) != 0 {
		t.Fatalf("parse errors: %v", perrs)
	}
	module, errs := New(nil).Read(top)
	if len(errs) != 0 {
		t.Fatalf("reader errors: %v\n%s", errs, top.Dump())
	}
	return module
}

func TestReadCompleteRule(t *testing.T) {
	module := mustRead(t, "package p\nallow := true")
	policy := module.Find(ast.TagPolicy)
	if policy.Len() != 1 {
		t.Fatalf("expected 1 rule, got %d:\n%s", policy.Len(), module.Dump())
	}
	rule := policy.Child(0)
	if rule.Child(0).Text() != "allow" {
		t.Errorf("expected rule ident 'allow', got %q", rule.Child(0).Text())
	}
	if rule.Child(3).Tag() != ast.TagRuleHeadComplete {
		t.Errorf("expected RuleHeadComplete, got %s", rule.Child(3).Tag())
	}
}

func TestReadBodyRule(t *testing.T) {
	module := mustRead(t, `package p
allow { input.role == "admin" }`)
	policy := module.Find(ast.TagPolicy)
	rule := policy.Child(0)
	bodySeq := rule.Child(4)
	if bodySeq.Len() != 1 {
		t.Fatalf("expected 1 body in RuleBodySeq, got %d:\n%s", bodySeq.Len(), module.Dump())
	}
	body := bodySeq.Child(0)
	if body.Len() != 1 {
		t.Fatalf("expected 1 literal, got %d:\n%s", body.Len(), module.Dump())
	}
}

func TestReadFunctionRule(t *testing.T) {
	module := mustRead(t, "package p\nf(x) := x*2")
	policy := module.Find(ast.TagPolicy)
	rule := policy.Child(0)
	if rule.Child(3).Tag() != ast.TagRuleHeadFunction {
		t.Errorf("expected RuleHeadFunction, got %s", rule.Child(3).Tag())
	}
}

func TestReadPartialSetWithSome(t *testing.T) {
	module := mustRead(t, "package p\nimport future.keywords\ng contains x { some x in [1, 2, 3]; x > 1 }")
	policy := module.Find(ast.TagPolicy)
	rule := policy.Child(0)
	if rule.Child(3).Tag() != ast.TagRuleHeadPartialSet {
		t.Fatalf("expected RuleHeadPartialSet, got %s:\n%s", rule.Child(3).Tag(), module.Dump())
	}
	body := rule.Child(4).Child(0)
	if body.Len() != 2 {
		t.Fatalf("expected 2 literals (some-decl, comparison), got %d:\n%s", body.Len(), module.Dump())
	}
	if body.Child(0).Child(0).Tag() != ast.TagSomeDecl {
		t.Errorf("expected first literal to be SomeDecl, got %s", body.Child(0).Child(0).Tag())
	}
}

func TestReadDefaultRule(t *testing.T) {
	module := mustRead(t, "package p\ndefault allow := false\nallow := true")
	policy := module.Find(ast.TagPolicy)
	if policy.Len() != 2 {
		t.Fatalf("expected 2 rules, got %d", policy.Len())
	}
	if policy.Child(0).Child(3).Tag() != ast.TagDefault {
		t.Errorf("expected first rule head to be Default, got %s", policy.Child(0).Child(3).Tag())
	}
}

func TestReadElseChain(t *testing.T) {
	module := mustRead(t, `package p
grade := "a" { input.score > 90 }
else := "b" { input.score > 80 }`)
	policy := module.Find(ast.TagPolicy)
	if policy.Len() != 1 {
		t.Fatalf("expected else to merge into 1 rule, got %d:\n%s", policy.Len(), module.Dump())
	}
	bodySeq := policy.Child(0).Child(4)
	if bodySeq.Len() != 2 {
		t.Fatalf("expected 2 bodies (primary + else), got %d:\n%s", bodySeq.Len(), module.Dump())
	}
}

func TestReadStrictModeRejectsDataAssignment(t *testing.T) {
	top, _ := parser.Parse(ast.NewSyntheticSource("<test>", "package p\nimport rego.v1\nallow if { data := 1 }"))
	_, errs := New(nil).Read(top)
	if !errs.HasCode(ast.CompileErr) {
		t.Fatalf("expected a rego_compile_error for assigning to data, got %v", errs)
	}
}
