package builtin

import (
	"fmt"
	"strings"
)

// RegisterStandard wires up the arithmetic, comparison, aggregate, and
// string built-ins compiled programs' Call statements reach for. Names
// match what the compiler emits for infix operators
// (compiler/lower.go's arithBuiltin/comparisonBuiltin), except `and`
// and `or` (emitted for `&` and `|`), which are not registered; the
// rest are the handful of function-call built-ins a realistic policy
// needs.
func RegisterStandard(r *Registry) {
	arith := map[string]func(a, b float64) float64{
		"plus":  func(a, b float64) float64 { return a + b },
		"minus": func(a, b float64) float64 { return a - b },
		"mul":   func(a, b float64) float64 { return a * b },
	}
	for name, fn := range arith {
		name, fn := name, fn
		r.Register(Decl{Name: name, Arity: 2, Fn: func(args []any) (any, error) {
			a, b, err := numPair(args)
			if err != nil {
				return nil, err
			}
			return normalizeNumber(fn(a, b)), nil
		}})
	}
	r.Register(Decl{Name: "div", Arity: 2, Fn: func(args []any) (any, error) {
		a, b, err := numPair(args)
		if err != nil {
			return nil, err
		}
		if b == 0 {
			return nil, fmt.Errorf("builtin: div: divide by zero")
		}
		return normalizeNumber(a / b), nil
	}})
	r.Register(Decl{Name: "rem", Arity: 2, Fn: func(args []any) (any, error) {
		a, b, err := numPair(args)
		if err != nil {
			return nil, err
		}
		if b == 0 {
			return nil, fmt.Errorf("builtin: rem: divide by zero")
		}
		ai, bi := int64(a), int64(b)
		return ai % bi, nil
	}})

	cmp := map[string]func(c int) bool{
		"equal": func(c int) bool { return c == 0 },
		"neq":   func(c int) bool { return c != 0 },
		"lt":    func(c int) bool { return c < 0 },
		"lte":   func(c int) bool { return c <= 0 },
		"gt":    func(c int) bool { return c > 0 },
		"gte":   func(c int) bool { return c >= 0 },
	}
	for name, fn := range cmp {
		name, fn := name, fn
		r.Register(Decl{Name: name, Arity: 2, Fn: func(args []any) (any, error) {
			if len(args) != 2 {
				return nil, fmt.Errorf("builtin: %s: expected 2 args", name)
			}
			return fn(compareValues(args[0], args[1])), nil
		}})
	}

	r.Register(Decl{Name: "internal.member", Arity: 2, Fn: func(args []any) (any, error) {
		return memberOf(args[0], args[1]), nil
	}})

	r.Register(Decl{Name: "count", Arity: 1, Fn: func(args []any) (any, error) {
		switch v := args[0].(type) {
		case []any:
			return int64(len(v)), nil
		case string:
			return int64(len([]rune(v))), nil
		case map[string]any:
			return int64(len(v)), nil
		default:
			return nil, fmt.Errorf("builtin: count: unsupported type")
		}
	}})
	r.Register(Decl{Name: "sum", Arity: 1, Fn: func(args []any) (any, error) {
		arr, ok := args[0].([]any)
		if !ok {
			return nil, fmt.Errorf("builtin: sum: expected array")
		}
		var total float64
		for _, e := range arr {
			f, err := asNumber(e)
			if err != nil {
				return nil, err
			}
			total += f
		}
		return normalizeNumber(total), nil
	}})
	r.Register(Decl{Name: "upper", Arity: 1, Fn: func(args []any) (any, error) {
		s, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("builtin: upper: expected string")
		}
		return strings.ToUpper(s), nil
	}})
	r.Register(Decl{Name: "lower", Arity: 1, Fn: func(args []any) (any, error) {
		s, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("builtin: lower: expected string")
		}
		return strings.ToLower(s), nil
	}})
	r.Register(Decl{Name: "concat", Arity: 2, Fn: func(args []any) (any, error) {
		sep, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("builtin: concat: expected string separator")
		}
		arr, ok := args[1].([]any)
		if !ok {
			return nil, fmt.Errorf("builtin: concat: expected array")
		}
		parts := make([]string, len(arr))
		for i, e := range arr {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("builtin: concat: array element is not a string")
			}
			parts[i] = s
		}
		return strings.Join(parts, sep), nil
	}})
}

func numPair(args []any) (float64, float64, error) {
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("builtin: expected 2 numeric args")
	}
	a, err := asNumber(args[0])
	if err != nil {
		return 0, 0, err
	}
	b, err := asNumber(args[1])
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func asNumber(v any) (float64, error) {
	switch n := v.(type) {
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return 0, fmt.Errorf("builtin: expected number, got %T", v)
	}
}

// normalizeNumber keeps whole-valued arithmetic results as int64 rather
// than always promoting to float64, matching Rego's own number-kind
// preservation for +,-,* over integer operands.
func normalizeNumber(f float64) any {
	if f == float64(int64(f)) {
		return int64(f)
	}
	return f
}

func memberOf(needle, coll any) bool {
	switch c := coll.(type) {
	case []any:
		for _, e := range c {
			if compareValues(needle, e) == 0 {
				return true
			}
		}
	case map[string]any:
		for _, v := range c {
			if compareValues(needle, v) == 0 {
				return true
			}
		}
	}
	return false
}
