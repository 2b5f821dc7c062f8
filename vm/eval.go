package vm

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/open-ir/policyc/builtin"
	"github.com/open-ir/policyc/internal/deepcopy"
	"github.com/open-ir/policyc/ir"
)

// Evaluator runs a compiled Bundle's query plan against a given input.
// Cacheable functions (arity 2, i.e. no explicit args beyond input/data)
// are memoised via an LRU keyed on function index. RunPlan clears the
// cache before each evaluation and runWith clears it around each With
// block, so a cached result never outlives the input/data it was
// computed from.
type Evaluator struct {
	bundle       *ir.Bundle
	builtins     *builtin.Registry
	strictErrors bool
	cache        *lru.Cache[cacheKey, any]
}

// cacheKey memoizes a cacheable function's result while input/data stay
// unchanged (see Evaluator), so the function index alone is a valid
// cache key.
type cacheKey struct {
	fn int
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithStrictErrors makes a built-in call failure abort evaluation with
// an error instead of silently producing Undefined.
func WithStrictErrors(strict bool) Option {
	return func(e *Evaluator) { e.strictErrors = strict }
}

// New returns an Evaluator for bundle using the given built-in registry.
func New(bundle *ir.Bundle, builtins *builtin.Registry, opts ...Option) *Evaluator {
	cache, _ := lru.New[cacheKey, any](1024)
	e := &Evaluator{bundle: bundle, builtins: builtins, cache: cache}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Query runs the bundle's designated query plan (RunPlan runs any other) and
// returns the result-set entries it produced, each an object, per
// this module's `[{"result": ...}]` host API shape.
func (e *Evaluator) Query(input any) ([]any, error) {
	if e.bundle.QueryPlan < 0 || e.bundle.QueryPlan >= len(e.bundle.Plans) {
		return nil, fmt.Errorf("vm: no query plan set")
	}
	return e.RunPlan(e.bundle.Plans[e.bundle.QueryPlan], input)
}

// RunPlan executes one named plan's blocks in order against input,
// returning every object Scan/ResultSetAdd accumulated.
func (e *Evaluator) RunPlan(plan *ir.Plan, input any) ([]any, error) {
	e.cache.Purge()
	frame := newFrame(e.bundle.LocalCount)
	frame.set(ir.Input, input)
	frame.set(ir.Data, e.bundle.Data)
	var results []any
	for _, blk := range plan.Blocks {
		ok, err := e.runBlock(frame, blk, func(obj any) { results = append(results, obj) })
		if err != nil {
			return nil, err
		}
		_ = ok
	}
	return results, nil
}

// onResult receives an object produced by a ResultSetAdd statement.
type onResult func(any)

// runBlock executes stmts in sequence; the first undefined/failing
// statement aborts the rest of the block, reported as ok=false with no error.
func (e *Evaluator) runBlock(frame *Frame, blk *ir.Block, emit onResult) (bool, error) {
	if blk == nil {
		return true, nil
	}
	for _, stmt := range blk.Statements {
		ok, err := e.runStatement(frame, stmt, emit)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (e *Evaluator) operand(frame *Frame, op ir.Operand) (any, error) {
	switch op.Kind {
	case ir.OperandLocal:
		v := frame.get(op.Local)
		if isUndefined(v) {
			return nil, errUndefinedOperand
		}
		return v, nil
	case ir.OperandString:
		return e.str(op.Str), nil
	case ir.OperandValue:
		return op.Value, nil
	case ir.OperandBool:
		return op.Bool, nil
	case ir.OperandIndex:
		return int64(op.Index), nil
	default:
		return nil, nil
	}
}

var errUndefinedOperand = fmt.Errorf("vm: operand is undefined")

func (e *Evaluator) str(idx ir.StrIdx) string {
	if int(idx) >= len(e.bundle.Strings) {
		return ""
	}
	return e.bundle.Strings[idx]
}

// runStatement executes one IR instruction. Returning (false, nil)
// means "this statement's condition did not hold", which is how
// Equal/NotEqual/Not report pass/fail without it being an error.
func (e *Evaluator) runStatement(frame *Frame, s *ir.Statement, emit onResult) (bool, error) {
	switch s.Type {
	case ir.MakeObject:
		frame.set(s.Target, map[string]any{})
		return true, nil
	case ir.MakeArray:
		frame.set(s.Target, []any{})
		return true, nil
	case ir.MakeSet:
		frame.set(s.Target, NewSet())
		return true, nil
	case ir.MakeNull:
		frame.set(s.Target, nil)
		return true, nil
	case ir.MakeNumberInt:
		frame.set(s.Target, s.Op0.Value)
		return true, nil
	case ir.MakeNumberRef:
		v, err := parseNumberText(e.str(s.Ext.StrIdx))
		if err != nil {
			return false, err
		}
		frame.set(s.Target, v)
		return true, nil
	case ir.AssignInt:
		frame.set(s.Target, s.Op0.Value)
		return true, nil
	case ir.AssignVar:
		v, err := e.operand(frame, s.Op0)
		if err != nil {
			return false, nil
		}
		frame.set(s.Target, v)
		return true, nil
	case ir.AssignVarOnce:
		if !isUndefined(frame.get(s.Target)) {
			return false, fmt.Errorf("vm: local %d assigned more than once", s.Target)
		}
		v, err := e.operand(frame, s.Op0)
		if err != nil {
			return false, nil
		}
		frame.set(s.Target, v)
		return true, nil
	case ir.ResetLocal:
		frame.set(s.Target, Undefined)
		return true, nil
	case ir.IsDefined:
		return !isUndefined(frame.get(s.Target)), nil
	case ir.IsUndefined:
		return isUndefined(frame.get(s.Target)), nil
	case ir.ReturnLocal:
		return true, nil
	case ir.ResultSetAdd:
		v, err := e.operand(frame, s.Op0)
		if err != nil {
			return false, nil
		}
		emit(v)
		return true, nil
	case ir.Len:
		v, err := e.operand(frame, s.Op0)
		if err != nil {
			return false, nil
		}
		n, ok := lengthOf(v)
		if !ok {
			return false, nil
		}
		frame.set(s.Target, n)
		return true, nil
	case ir.IsObject:
		v, _ := e.operand(frame, s.Op0)
		_, ok := v.(map[string]any)
		return ok, nil
	case ir.IsArray:
		v, _ := e.operand(frame, s.Op0)
		_, ok := v.([]any)
		return ok, nil
	case ir.IsSet:
		v, _ := e.operand(frame, s.Op0)
		_, ok := v.(*Set)
		return ok, nil
	case ir.Equal:
		a, err1 := e.operand(frame, s.Op0)
		b, err2 := e.operand(frame, s.Op1)
		if err1 != nil || err2 != nil {
			return false, nil
		}
		return Equal(a, b), nil
	case ir.NotEqual:
		a, err1 := e.operand(frame, s.Op0)
		b, err2 := e.operand(frame, s.Op1)
		if err1 != nil || err2 != nil {
			return false, nil
		}
		return !Equal(a, b), nil
	case ir.ObjectInsert, ir.ObjectInsertOnce:
		return e.objectInsert(frame, s)
	case ir.ObjectMerge:
		base, _ := e.operand(frame, s.Op0)
		other := frame.get(s.Ext.LocalB)
		merged, ok := mergeObjects(base, other)
		if !ok {
			return false, nil
		}
		frame.set(s.Target, merged)
		return true, nil
	case ir.ArrayAppend:
		arr, _ := frame.get(s.Target).([]any)
		v, err := e.operand(frame, s.Op0)
		if err != nil {
			return false, nil
		}
		frame.set(s.Target, append(arr, v))
		return true, nil
	case ir.SetAdd:
		set, _ := frame.get(s.Target).(*Set)
		if set == nil {
			set = NewSet()
		}
		v, err := e.operand(frame, s.Op0)
		if err != nil {
			return false, nil
		}
		set.Add(v)
		frame.set(s.Target, set)
		return true, nil
	case ir.Dot:
		return e.dot(frame, s)
	case ir.Call:
		return e.call(frame, s, e.str(s.Ext.Func.Str), s.Ext.Args)
	case ir.CallDynamic:
		// The callee isn't one pre-resolved string (as for Call); it's a
		// path of interned segments — e.g. a rule reached through
		// data[x].y — joined into a dotted name and resolved exactly like
		// a static call. No lowering pass currently emits this opcode
		// (lowerCall always resolves a static dotted name), so this path
		// is presently unreachable from compiled output; it's implemented
		// against Ext.Path rather than left a stub so a future dynamic-ref
		// lowering has a real opcode to target.
		segs := make([]string, len(s.Ext.Path))
		for i, idx := range s.Ext.Path {
			segs[i] = e.str(idx)
		}
		return e.call(frame, s, strings.Join(segs, "."), s.Ext.Args)
	case ir.BlockStmt:
		return e.runAlternatives(frame, s.Ext.Blocks, emit)
	case ir.Not:
		ok, err := e.runBlock(frame, s.Ext.Blocks[0], emit)
		if err != nil {
			return false, err
		}
		return !ok, nil
	case ir.Scan:
		return e.scan(frame, s, emit)
	case ir.With:
		return e.runWith(frame, s, emit)
	case ir.Break:
		return false, nil
	case ir.Nop:
		return true, nil
	default:
		return false, fmt.Errorf("vm: unhandled statement type %v", s.Type)
	}
}

// runAlternatives tries each block in order and stops at the first
// success (BlockStmt's "else" chain semantics).
func (e *Evaluator) runAlternatives(frame *Frame, blocks []*ir.Block, emit onResult) (bool, error) {
	for _, b := range blocks {
		ok, err := e.runBlock(frame, b, emit)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (e *Evaluator) objectInsert(frame *Frame, s *ir.Statement) (bool, error) {
	obj, _ := frame.get(s.Target).(map[string]any)
	if obj == nil {
		obj = map[string]any{}
	}
	key, err := e.operand(frame, s.Op0)
	if err != nil {
		return false, nil
	}
	ks, ok := key.(string)
	if !ok {
		return false, fmt.Errorf("vm: object key must be a string, got %s", typeName(key))
	}
	val, err := e.operand(frame, s.Op1)
	if err != nil {
		return false, nil
	}
	if s.Type == ir.ObjectInsertOnce {
		if existing, found := obj[ks]; found && !Equal(existing, val) {
			return false, fmt.Errorf("vm: object key %q value conflict", ks)
		}
	}
	obj[ks] = val
	frame.set(s.Target, obj)
	return true, nil
}

func mergeObjects(a, b any) (any, bool) {
	am, aok := a.(map[string]any)
	bm, bok := b.(map[string]any)
	if !aok || !bok {
		return nil, false
	}
	out := make(map[string]any, len(am)+len(bm))
	for k, v := range am {
		out[k] = v
	}
	for k, v := range bm {
		if existing, ok := out[k]; ok {
			if merged, ok := mergeObjects(existing, v); ok {
				out[k] = merged
				continue
			}
		}
		out[k] = v
	}
	return out, true
}

func lengthOf(v any) (int64, bool) {
	switch x := v.(type) {
	case string:
		return int64(len([]rune(x))), true
	case []any:
		return int64(len(x)), true
	case map[string]any:
		return int64(len(x)), true
	case *Set:
		return int64(x.Len()), true
	default:
		return 0, false
	}
}

func (e *Evaluator) dot(frame *Frame, s *ir.Statement) (bool, error) {
	base, err := e.operand(frame, s.Op0)
	if err != nil {
		return false, nil
	}
	key, err := e.operand(frame, s.Ext.Key)
	if err != nil {
		return false, nil
	}
	switch b := base.(type) {
	case map[string]any:
		ks, ok := key.(string)
		if !ok {
			return false, nil
		}
		v, found := b[ks]
		if !found {
			return false, nil
		}
		frame.set(s.Target, v)
		return true, nil
	case []any:
		idx, ok := intIndex(key)
		if !ok || idx < 0 || idx >= len(b) {
			return false, nil
		}
		frame.set(s.Target, b[idx])
		return true, nil
	default:
		return false, nil
	}
}

func intIndex(v any) (int, bool) {
	switch n := v.(type) {
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func deepCopy(v any) any { return deepcopy.DeepCopy(v) }
