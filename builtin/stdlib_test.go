package builtin_test

import (
	"testing"

	"github.com/open-ir/policyc/builtin"
)

func newStandard() *builtin.Registry {
	r := builtin.NewRegistry()
	builtin.RegisterStandard(r)
	return r
}

func TestArithmetic(t *testing.T) {
	r := newStandard()
	v, err := r.Call("plus", []any{int64(1), int64(2)})
	if err != nil {
		t.Fatalf("plus: %v", err)
	}
	if v != int64(3) {
		t.Errorf("plus(1, 2) = %v, want 3", v)
	}

	if _, err := r.Call("div", []any{int64(1), int64(0)}); err == nil {
		t.Error("div by zero: expected error, got nil")
	}
}

func TestCountAndSum(t *testing.T) {
	r := newStandard()
	v, err := r.Call("count", []any{[]any{"a", "b", "c"}})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if v != int64(3) {
		t.Errorf("count = %v, want 3", v)
	}

	v, err = r.Call("sum", []any{[]any{int64(1), int64(2), int64(3)}})
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if v != int64(6) {
		t.Errorf("sum = %v, want 6", v)
	}
}

func TestStringBuiltins(t *testing.T) {
	r := newStandard()
	v, err := r.Call("upper", []any{"abc"})
	if err != nil || v != "ABC" {
		t.Errorf("upper(abc) = %v, %v, want ABC, nil", v, err)
	}
	v, err = r.Call("lower", []any{"ABC"})
	if err != nil || v != "abc" {
		t.Errorf("lower(ABC) = %v, %v, want abc, nil", v, err)
	}
}

func TestArityMismatch(t *testing.T) {
	r := newStandard()
	if _, err := r.Call("plus", []any{int64(1)}); err == nil {
		t.Error("expected arity error, got nil")
	}
}

func TestUnknownBuiltin(t *testing.T) {
	r := builtin.NewRegistry()
	if _, err := r.Call("nope", nil); err == nil {
		t.Error("expected error for unregistered built-in, got nil")
	}
	if _, ok := r.Lookup("nope"); ok {
		t.Error("Lookup found an unregistered built-in")
	}
}

func TestRegisterOverridesCopyOnWrite(t *testing.T) {
	base := builtin.NewRegistry()
	builtin.RegisterStandard(base)

	custom := *base // shares base's table until Register copies it
	custom.Register(builtin.Decl{Name: "plus", Arity: 2, Fn: func(args []any) (any, error) {
		return "overridden", nil
	}})

	v, err := custom.Call("plus", []any{int64(1), int64(2)})
	if err != nil || v != "overridden" {
		t.Errorf("custom plus = %v, %v, want overridden, nil", v, err)
	}
	v, err = base.Call("plus", []any{int64(1), int64(2)})
	if err != nil || v != int64(3) {
		t.Errorf("base plus = %v, %v, want 3, nil (registries must not share state)", v, err)
	}
}
