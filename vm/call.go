package vm

import (
	"fmt"

	"github.com/open-ir/policyc/ir"
)

// call resolves a Call/CallDynamic statement's callee: built-ins first
// (most Call statements the compiler emits are arithmetic/comparison
// built-ins), then compiled rule functions by their qualified name.
// Returning (false, nil) for an undefined built-in argument lets a
// failed lookup (e.g. `input.role` absent) propagate as ordinary
// rule-body failure rather than an error, matching Equal/NotEqual's
// same convention.
func (e *Evaluator) call(frame *Frame, s *ir.Statement, name string, argOps []ir.Operand) (bool, error) {
	args := make([]any, len(argOps))
	for i, op := range argOps {
		v, err := e.operand(frame, op)
		if err != nil {
			return false, nil
		}
		args[i] = v
	}

	if _, ok := e.builtins.Lookup(name); ok {
		v, err := e.builtins.Call(name, args)
		if err != nil {
			if e.strictErrors {
				return false, err
			}
			return false, nil
		}
		frame.set(s.Target, v)
		return true, nil
	}

	if idx := e.bundle.FindFunction(name); idx >= 0 {
		v, ok, err := e.callFunction(e.bundle.Functions[idx], idx, frame, args)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		frame.set(s.Target, v)
		return true, nil
	}

	return false, fmt.Errorf("vm: unresolved call to %q", name)
}

// callFunction invokes one compiled rule function against the calling
// frame's current input/data (functions always see the same input/data
// the caller does; only their explicit parameters vary), returning its
// Result local's value.
func (e *Evaluator) callFunction(fn *ir.Function, idx int, caller *Frame, args []any) (any, bool, error) {
	var key cacheKey
	if fn.Cacheable {
		key = cacheKey{fn: idx}
		if v, ok := e.cache.Get(key); ok {
			return v, true, nil
		}
	}

	sub := newFrame(len(fn.Parameters) + 1)
	sub.set(ir.Input, caller.get(ir.Input))
	sub.set(ir.Data, caller.get(ir.Data))
	for i, p := range fn.Parameters[2:] {
		sub.set(p, args[i])
	}

	switch fn.Kind {
	case ir.KindPartialSet:
		sub.set(fn.Result, NewSet())
		for _, b := range fn.Blocks {
			sub.reset(append(append([]ir.LocalIdx{}, fn.Parameters...), fn.Result)...)
			if _, err := e.runBlock(sub, b, nil); err != nil {
				return nil, false, err
			}
		}
		v := sub.get(fn.Result)
		if fn.Cacheable {
			e.cache.Add(key, v)
		}
		return v, true, nil
	case ir.KindPartialObject:
		sub.set(fn.Result, map[string]any{})
		for _, b := range fn.Blocks {
			sub.reset(append(append([]ir.LocalIdx{}, fn.Parameters...), fn.Result)...)
			if _, err := e.runBlock(sub, b, nil); err != nil {
				return nil, false, err
			}
		}
		v := sub.get(fn.Result)
		if fn.Cacheable {
			e.cache.Add(key, v)
		}
		return v, true, nil
	default: // KindComplete, KindFunction
		// Every body is an independent attempt: a partial body that fails
		// after already writing a temp (or fn.Result) must not leak those
		// bindings into the next body's AssignVarOnce, so non-parameter
		// locals — including fn.Result itself — are cleared before each try.
		for _, b := range fn.Blocks {
			sub.reset(fn.Parameters...)
			ok, err := e.runBlock(sub, b, nil)
			if err != nil {
				return nil, false, err
			}
			if ok {
				v := sub.get(fn.Result)
				if fn.Cacheable {
					e.cache.Add(key, v)
				}
				return v, true, nil
			}
		}
		if fn.Default != nil {
			sub.reset(fn.Parameters...)
			if _, err := e.runBlock(sub, fn.Default, nil); err != nil {
				return nil, false, err
			}
			v := sub.get(fn.Result)
			if fn.Cacheable {
				e.cache.Add(key, v)
			}
			return v, true, nil
		}
		return nil, false, nil
	}
}
