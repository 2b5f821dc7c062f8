// Package vm implements a stack-machine evaluator: a Frame-based
// interpreter over the compiler's Block/Statement IR, operating on
// plain decoded-JSON values (nil, bool, int64/float64, string, []any,
// map[string]any) plus a canonically-ordered Set. Follows OPA's
// topdown/eval.go iterator style, generalized from OPA's AST-walking
// evaluator to a pre-planned IR.
package vm

import (
	"fmt"
	"sort"
)

// Undefined is the VM's "no result" sentinel, distinct from a JSON null
// so a statement can tell "produced null" from "produced nothing".
type undefinedT struct{}

var Undefined = undefinedT{}

func isUndefined(v any) bool {
	_, ok := v.(undefinedT)
	return ok
}

// Set is an unordered-input, canonically-ordered collection of unique
// values.
type Set struct {
	elems []any
}

func NewSet() *Set { return &Set{} }

func (s *Set) Add(v any) {
	i := sort.Search(len(s.elems), func(i int) bool { return Compare(s.elems[i], v) >= 0 })
	if i < len(s.elems) && Compare(s.elems[i], v) == 0 {
		return
	}
	s.elems = append(s.elems, nil)
	copy(s.elems[i+1:], s.elems[i:])
	s.elems[i] = v
}

func (s *Set) Slice() []any {
	if s == nil {
		return nil
	}
	return s.elems
}

func (s *Set) Len() int { return len(s.elems) }

// typeRank orders values of different kinds for Compare, matching the
// null < bool < number < string < array < object < set ordering Rego's
// own term comparison uses.
func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int64, float64:
		return 2
	case string:
		return 3
	case []any:
		return 4
	case map[string]any:
		return 5
	case *Set:
		return 6
	default:
		return 7
	}
}

// Compare implements the total order this module's canonical sort requires
// for set/object key ordering and for deterministic iteration.
func Compare(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return ra - rb
	}
	switch av := a.(type) {
	case nil:
		return 0
	case bool:
		bv := b.(bool)
		if av == bv {
			return 0
		}
		if !av {
			return -1
		}
		return 1
	case int64, float64:
		af, bf := asFloat(a), asFloat(b)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	case string:
		bv := b.(string)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case []any:
		bv := b.([]any)
		for i := 0; i < len(av) && i < len(bv); i++ {
			if c := Compare(av[i], bv[i]); c != 0 {
				return c
			}
		}
		return len(av) - len(bv)
	case map[string]any:
		bv := b.(map[string]any)
		ak, bk := sortedKeys(av), sortedKeys(bv)
		for i := 0; i < len(ak) && i < len(bk); i++ {
			if c := compareStrings(ak[i], bk[i]); c != 0 {
				return c
			}
			if c := Compare(av[ak[i]], bv[bk[i]]); c != 0 {
				return c
			}
		}
		return len(ak) - len(bk)
	case *Set:
		bv := b.(*Set)
		for i := 0; i < len(av.elems) && i < len(bv.elems); i++ {
			if c := Compare(av.elems[i], bv.elems[i]); c != 0 {
				return c
			}
		}
		return len(av.elems) - len(bv.elems)
	default:
		return 0
	}
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func sortedKeys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}

// Equal reports deep value equality using Compare, the notion of
// equality Equal/NotEqual statements and set/object membership use.
func Equal(a, b any) bool { return Compare(a, b) == 0 }

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case int64, float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case *Set:
		return "set"
	default:
		return fmt.Sprintf("%T", v)
	}
}
