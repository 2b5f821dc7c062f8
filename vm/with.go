package vm

import "github.com/open-ir/policyc/ir"

// runWith implements the With opcode (`with input as X` / `with
// data.a.b as X`): the named local is overridden for the duration of
// the nested block, then unconditionally restored, whether or not that
// block succeeded.
func (e *Evaluator) runWith(frame *Frame, s *ir.Statement, emit onResult) (bool, error) {
	path := make([]string, len(s.Ext.Path))
	for i, idx := range s.Ext.Path {
		path[i] = e.str(idx)
	}
	val, err := e.operand(frame, s.Op1)
	if err != nil {
		return false, nil
	}

	target := s.Op0.Local
	old := frame.get(target)
	defer frame.set(target, old)
	// Cached function results depend on the input/data being replaced.
	e.cache.Purge()
	defer e.cache.Purge()

	if len(path) <= 1 {
		frame.set(target, val)
	} else {
		frame.set(target, deepSet(old, path[1:], val))
	}

	return e.runBlock(frame, s.Ext.Blocks[0], emit)
}

// deepSet clones base and overrides the value reached by following
// segments, creating intermediate objects as needed, without mutating
// base itself (so the restore after the With block sees the untouched
// original).
func deepSet(base any, segments []string, val any) any {
	if len(segments) == 0 {
		return val
	}
	m, _ := base.(map[string]any)
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = deepCopy(v)
	}
	out[segments[0]] = deepSet(out[segments[0]], segments[1:], val)
	return out
}
