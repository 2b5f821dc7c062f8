package rego_test

import (
	"testing"

	"github.com/open-ir/policyc/rego"
)

// End-to-end correctness checks: parse, compile, and evaluate a module
// against a query and check the result set's shape.

func TestCompleteRule(t *testing.T) {
	r := rego.New(
		rego.Module("p.rego", "package p\nallow := true"),
		rego.Query("data.p.allow"),
	)
	rs, err := r.Eval()
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if len(rs) != 1 {
		t.Fatalf("expected 1 result, got %d: %+v", len(rs), rs)
	}
	if v, _ := rs[0].Expressions["result"].(bool); !v {
		t.Errorf("expected result=true, got %+v", rs[0].Expressions)
	}
}

func TestPartialSetRule(t *testing.T) {
	r := rego.New(
		rego.Module("p.rego", "package p\nr[x] { x := 1 }\nr[x] { x := 2 }"),
		rego.Query("data.p.r"),
	)
	rs, err := r.Eval()
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if len(rs) != 1 {
		t.Fatalf("expected 1 result, got %d", len(rs))
	}
}

func TestFunctionRule(t *testing.T) {
	r := rego.New(
		rego.Module("p.rego", "package p\nf(x) := x*2"),
		rego.Query("data.p.f(21)"),
	)
	rs, err := r.Eval()
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if len(rs) != 1 {
		t.Fatalf("expected 1 result, got %d", len(rs))
	}
	if v, _ := rs[0].Expressions["result"].(int64); v != 42 {
		t.Errorf("expected result=42, got %+v", rs[0].Expressions)
	}
}

func TestInputDependentRule(t *testing.T) {
	r := rego.New(
		rego.Module("p.rego", `package p
allow { input.role == "admin" }`),
		rego.Query("data.p.allow"),
		rego.Input(map[string]any{"role": "admin"}),
	)
	rs, err := r.Eval()
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if len(rs) != 1 {
		t.Fatalf("expected 1 result for admin input, got %d", len(rs))
	}
}

func TestInputDependentRuleDenied(t *testing.T) {
	r := rego.New(
		rego.Module("p.rego", `package p
allow { input.role == "admin" }`),
		rego.Query("data.p.allow"),
		rego.Input(map[string]any{"role": "guest"}),
	)
	rs, err := r.Eval()
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if len(rs) != 0 {
		t.Fatalf("expected 0 results for non-admin input, got %d", len(rs))
	}
}

func TestWithOverride(t *testing.T) {
	r := rego.New(
		rego.Module("p.rego", `package p
v := 1 with input as {"x": 2}`),
		rego.Query("data.p.v"),
	)
	rs, err := r.Eval()
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if len(rs) != 1 {
		t.Fatalf("expected 1 result, got %d", len(rs))
	}
	if v, _ := rs[0].Expressions["result"].(int64); v != 1 {
		t.Errorf("expected result=1, got %+v", rs[0].Expressions)
	}
}

func TestArrayComprehension(t *testing.T) {
	r := rego.New(
		rego.Module("p.rego", `package p
import rego.v1
doubled := [x * 2 | some x in [1, 2, 3]]`),
		rego.Query("data.p.doubled"),
	)
	rs, err := r.Eval()
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if len(rs) != 1 {
		t.Fatalf("expected 1 result, got %d", len(rs))
	}
	arr, ok := rs[0].Expressions["result"].([]any)
	if !ok || len(arr) != 3 {
		t.Fatalf("expected a 3-element array, got %+v", rs[0].Expressions)
	}
}

func TestObjectComprehension(t *testing.T) {
	r := rego.New(
		rego.Module("p.rego", `package p
import rego.v1
squares := {x: x | some x in ["a", "b", "c"]}`),
		rego.Query("data.p.squares"),
	)
	rs, err := r.Eval()
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if len(rs) != 1 {
		t.Fatalf("expected 1 result, got %d", len(rs))
	}
	obj, ok := rs[0].Expressions["result"].(map[string]any)
	if !ok || len(obj) != 3 {
		t.Fatalf("expected a 3-entry object, got %+v", rs[0].Expressions)
	}
}

func TestSomeScanPartialSet(t *testing.T) {
	r := rego.New(
		rego.Module("p.rego", `package p
import rego.v1
g contains x if { some x in [1, 2, 3]; x > 1 }`),
		rego.Query("data.p.g"),
	)
	rs, err := r.Eval()
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if len(rs) != 1 {
		t.Fatalf("expected 1 result, got %d", len(rs))
	}
}
