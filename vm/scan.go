package vm

import "github.com/open-ir/policyc/ir"

// scan iterates a collection's (key, value) pairs in canonical order,
// running its body once per element with
// ScanKey/ScanVal bound. Scan always visits every element regardless of
// whether one iteration's body succeeds or fails — only `every`'s
// not/assign-false pattern relies on that to observe every element.
func (e *Evaluator) scan(frame *Frame, s *ir.Statement, emit onResult) (bool, error) {
	coll, err := e.operand(frame, s.Op0)
	if err != nil {
		return false, nil
	}
	body := s.Ext.Blocks[0]

	switch c := coll.(type) {
	case []any:
		for i, v := range c {
			frame.set(s.Ext.ScanKey, int64(i))
			frame.set(s.Ext.ScanVal, v)
			if _, err := e.runBlock(frame, body, emit); err != nil {
				return false, err
			}
		}
	case map[string]any:
		for _, k := range sortedKeys(c) {
			frame.set(s.Ext.ScanKey, k)
			frame.set(s.Ext.ScanVal, c[k])
			if _, err := e.runBlock(frame, body, emit); err != nil {
				return false, err
			}
		}
	case *Set:
		for _, v := range c.Slice() {
			frame.set(s.Ext.ScanKey, v)
			frame.set(s.Ext.ScanVal, v)
			if _, err := e.runBlock(frame, body, emit); err != nil {
				return false, err
			}
		}
	default:
		return false, nil
	}
	return true, nil
}
