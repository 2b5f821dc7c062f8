package encoding_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/open-ir/policyc/ir"
	"github.com/open-ir/policyc/ir/encoding"
)

func sampleBundle() *ir.Bundle {
	b := ir.NewBundle()
	b.Data = map[string]any{"servers": []any{"s1", "s2"}, "count": int64(2)}
	b.LocalCount = 4
	b.InternString("p")
	b.InternString("allow")

	body := &ir.Block{Statements: []*ir.Statement{
		{Type: ir.AssignInt, Target: 2, Op0: ir.ValueOperand(1)},
		{Type: ir.ResultSetAdd, Op0: ir.LocalOperand(2)},
	}}
	fn := &ir.Function{
		Name:       "g0.data.p.allow",
		Path:       []string{"p", "allow"},
		Parameters: []ir.LocalIdx{ir.Input, ir.Data},
		Result:     2,
		Arity:      0,
		Cacheable:  true,
		Kind:       ir.KindComplete,
		Blocks:     []*ir.Block{body},
	}
	b.Functions = append(b.Functions, fn)
	b.NameToFunc[fn.Name] = 0

	plan := &ir.Plan{Name: "query", Blocks: []*ir.Block{{
		Statements: []*ir.Statement{
			{Type: ir.Call, Target: 3, Ext: ir.StatementExt{
				Func: ir.StringOperand(0),
			}},
			{Type: ir.ResultSetAdd, Op0: ir.LocalOperand(3)},
		},
	}}}
	b.Plans = append(b.Plans, plan)
	b.NameToPlan["query"] = 0
	b.QueryPlan = 0
	b.Query = "data.p.allow"

	return b
}

func TestJSONRoundTrip(t *testing.T) {
	want := sampleBundle()

	raw, err := encoding.MarshalJSON(want)
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	got, err := encoding.UnmarshalJSON(raw)
	if err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}

	if diff := cmp.Diff(want.Data, got.Data); diff != "" {
		t.Errorf("Data mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want.Query, got.Query); diff != "" {
		t.Errorf("Query mismatch (-want +got):\n%s", diff)
	}
	if len(got.Functions) != 1 || got.Functions[0].Name != want.Functions[0].Name {
		t.Fatalf("Functions mismatch: got %+v", got.Functions)
	}
	if len(got.Plans) != 1 || got.Plans[0].Name != want.Plans[0].Name {
		t.Fatalf("Plans mismatch: got %+v", got.Plans)
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	want := sampleBundle()

	raw, err := encoding.MarshalBinary(want)
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	got, err := encoding.UnmarshalBinary(raw)
	if err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}

	if diff := cmp.Diff(want.Data, got.Data); diff != "" {
		t.Errorf("Data mismatch (-want +got):\n%s", diff)
	}
	if got.QueryPlan != want.QueryPlan {
		t.Errorf("QueryPlan = %d, want %d", got.QueryPlan, want.QueryPlan)
	}
	if got.LocalCount != want.LocalCount {
		t.Errorf("LocalCount = %d, want %d", got.LocalCount, want.LocalCount)
	}
	if len(got.Functions) != 1 || got.Functions[0].Name != want.Functions[0].Name {
		t.Fatalf("Functions mismatch: got %+v", got.Functions)
	}
}

func TestBinaryRejectsBadMagic(t *testing.T) {
	raw, err := encoding.MarshalBinary(sampleBundle())
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	raw[0] = 'X'
	if _, err := encoding.UnmarshalBinary(raw); err == nil {
		t.Fatal("expected error for corrupted magic, got nil")
	}
}
