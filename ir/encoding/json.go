// Package encoding implements the two Bundle serializations: a
// human-readable JSON form and a compact binary form.
package encoding

import (
	"encoding/json"
	"fmt"

	"github.com/open-ir/policyc/ir"
)

// jsonOperand mirrors this module's `{"type": "...", "value": ...}`
// operand shape.
type jsonOperand struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

func operandToJSON(o ir.Operand) jsonOperand {
	switch o.Kind {
	case ir.OperandLocal:
		return jsonOperand{Type: "local", Value: o.Local}
	case ir.OperandString:
		return jsonOperand{Type: "string_index", Value: o.Str}
	case ir.OperandBool:
		return jsonOperand{Type: "bool", Value: o.Bool}
	case ir.OperandIndex:
		return jsonOperand{Type: "index", Value: o.Index}
	case ir.OperandValue:
		return jsonOperand{Type: "value", Value: o.Value}
	default:
		return jsonOperand{Type: "none"}
	}
}

func operandFromJSON(j jsonOperand) (ir.Operand, error) {
	num := func() (float64, error) {
		f, ok := j.Value.(float64)
		if !ok {
			return 0, fmt.Errorf("encoding: operand %q expects numeric value", j.Type)
		}
		return f, nil
	}
	switch j.Type {
	case "local":
		f, err := num()
		if err != nil {
			return ir.Operand{}, err
		}
		return ir.LocalOperand(ir.LocalIdx(f)), nil
	case "string_index":
		f, err := num()
		if err != nil {
			return ir.Operand{}, err
		}
		return ir.StringOperand(ir.StrIdx(f)), nil
	case "bool":
		b, _ := j.Value.(bool)
		return ir.BoolOperand(b), nil
	case "index":
		f, err := num()
		if err != nil {
			return ir.Operand{}, err
		}
		return ir.IndexOperand(int(f)), nil
	case "value":
		f, err := num()
		if err != nil {
			return ir.Operand{}, err
		}
		return ir.ValueOperand(int64(f)), nil
	case "none", "":
		return ir.Operand{}, nil
	default:
		return ir.Operand{}, fmt.Errorf("encoding: unknown operand type %q", j.Type)
	}
}

var stmtTypeNames = map[ir.StmtType]string{
	ir.MakeObject: "MakeObject", ir.MakeArray: "MakeArray", ir.MakeSet: "MakeSet",
	ir.MakeNull: "MakeNull", ir.MakeNumberInt: "MakeNumberInt", ir.MakeNumberRef: "MakeNumberRef",
	ir.AssignInt: "AssignInt", ir.AssignVar: "AssignVar", ir.AssignVarOnce: "AssignVarOnce",
	ir.ResetLocal: "ResetLocal", ir.IsDefined: "IsDefined", ir.IsUndefined: "IsUndefined",
	ir.ReturnLocal: "ReturnLocal", ir.ResultSetAdd: "ResultSetAdd", ir.Len: "Len",
	ir.IsObject: "IsObject", ir.IsArray: "IsArray", ir.IsSet: "IsSet",
	ir.Equal: "Equal", ir.NotEqual: "NotEqual",
	ir.ObjectInsert: "ObjectInsert", ir.ObjectInsertOnce: "ObjectInsertOnce", ir.ObjectMerge: "ObjectMerge",
	ir.ArrayAppend: "ArrayAppend", ir.SetAdd: "SetAdd", ir.Dot: "Dot",
	ir.Call: "Call", ir.CallDynamic: "CallDynamic", ir.BlockStmt: "BlockStmt",
	ir.Not: "Not", ir.Scan: "Scan", ir.With: "With", ir.Break: "Break", ir.Nop: "Nop",
}

var stmtTypeByName = func() map[string]ir.StmtType {
	out := make(map[string]ir.StmtType, len(stmtTypeNames))
	for t, n := range stmtTypeNames {
		out[n] = t
	}
	return out
}()

// jsonStatement is one `{"type": "<Name>Stmt", "stmt": {...}}` entry.
type jsonStatement struct {
	Type string          `json:"type"`
	Stmt jsonStatementBody `json:"stmt"`
}

type jsonStatementBody struct {
	Target  ir.LocalIdx   `json:"target,omitempty"`
	Op0     jsonOperand   `json:"op0,omitzero"`
	Op1     jsonOperand   `json:"op1,omitzero"`
	Func    jsonOperand   `json:"func,omitzero"`
	Args    []jsonOperand `json:"args,omitempty"`
	Path    []ir.StrIdx   `json:"path,omitempty"`
	Key     jsonOperand   `json:"key,omitzero"`
	LocalB  ir.LocalIdx   `json:"local_b,omitempty"`
	ScanKey ir.LocalIdx   `json:"scan_key,omitempty"`
	ScanVal ir.LocalIdx   `json:"scan_val,omitempty"`
	StrIdx  ir.StrIdx     `json:"str_idx,omitempty"`
	Blocks  []jsonBlock   `json:"blocks,omitempty"`
}

type jsonBlock struct {
	Statements []jsonStatement `json:"statements"`
}

func blockToJSON(b *ir.Block) jsonBlock {
	if b == nil {
		return jsonBlock{}
	}
	out := jsonBlock{Statements: make([]jsonStatement, len(b.Statements))}
	for i, s := range b.Statements {
		out.Statements[i] = statementToJSON(s)
	}
	return out
}

func statementToJSON(s *ir.Statement) jsonStatement {
	body := jsonStatementBody{
		Target: s.Target, Op0: operandToJSON(s.Op0), Op1: operandToJSON(s.Op1),
		Func: operandToJSON(s.Ext.Func), Key: operandToJSON(s.Ext.Key),
		LocalB: s.Ext.LocalB, ScanKey: s.Ext.ScanKey, ScanVal: s.Ext.ScanVal, StrIdx: s.Ext.StrIdx,
		Path: s.Ext.Path,
	}
	for _, a := range s.Ext.Args {
		body.Args = append(body.Args, operandToJSON(a))
	}
	for _, b := range s.Ext.Blocks {
		body.Blocks = append(body.Blocks, blockToJSON(b))
	}
	name := stmtTypeNames[s.Type]
	return jsonStatement{Type: name + "Stmt", Stmt: body}
}

func blockFromJSON(b jsonBlock) (*ir.Block, error) {
	out := &ir.Block{}
	for _, js := range b.Statements {
		s, err := statementFromJSON(js)
		if err != nil {
			return nil, err
		}
		out.Statements = append(out.Statements, s)
	}
	return out, nil
}

func statementFromJSON(js jsonStatement) (*ir.Statement, error) {
	name := js.Type
	if len(name) > 4 && name[len(name)-4:] == "Stmt" {
		name = name[:len(name)-4]
	}
	t, ok := stmtTypeByName[name]
	if !ok {
		return nil, fmt.Errorf("encoding: unknown statement type %q", js.Type)
	}
	op0, err := operandFromJSON(js.Stmt.Op0)
	if err != nil {
		return nil, err
	}
	op1, err := operandFromJSON(js.Stmt.Op1)
	if err != nil {
		return nil, err
	}
	fn, err := operandFromJSON(js.Stmt.Func)
	if err != nil {
		return nil, err
	}
	key, err := operandFromJSON(js.Stmt.Key)
	if err != nil {
		return nil, err
	}
	s := &ir.Statement{Type: t, Target: js.Stmt.Target, Op0: op0, Op1: op1}
	s.Ext.Func = fn
	s.Ext.Key = key
	s.Ext.LocalB = js.Stmt.LocalB
	s.Ext.ScanKey = js.Stmt.ScanKey
	s.Ext.ScanVal = js.Stmt.ScanVal
	s.Ext.StrIdx = js.Stmt.StrIdx
	s.Ext.Path = js.Stmt.Path
	for _, a := range js.Stmt.Args {
		op, err := operandFromJSON(a)
		if err != nil {
			return nil, err
		}
		s.Ext.Args = append(s.Ext.Args, op)
	}
	for _, jb := range js.Stmt.Blocks {
		blk, err := blockFromJSON(jb)
		if err != nil {
			return nil, err
		}
		s.Ext.Blocks = append(s.Ext.Blocks, blk)
	}
	return s, nil
}

type jsonPlan struct {
	Name   string      `json:"name"`
	Blocks []jsonBlock `json:"blocks"`
}

type jsonFunc struct {
	Name       string        `json:"name"`
	Path       []string      `json:"path"`
	Parameters []ir.LocalIdx `json:"params"`
	Result     ir.LocalIdx   `json:"result"`
	Arity      int           `json:"arity"`
	Cacheable  bool          `json:"cacheable"`
	Kind       int           `json:"kind"`
	Blocks     []jsonBlock   `json:"blocks"`
	Default    *jsonBlock    `json:"default,omitempty"`
}

type jsonDoc struct {
	Data any `json:"data"`
	Plan struct {
		Static struct {
			Strings      []string                  `json:"strings"`
			Files        []string                  `json:"files"`
			BuiltinFuncs map[string]ir.BuiltinDecl  `json:"builtin_funcs"`
		} `json:"static"`
		Plans struct {
			Plans []jsonPlan `json:"plans"`
		} `json:"plans"`
		Funcs struct {
			Funcs []jsonFunc `json:"funcs"`
		} `json:"funcs"`
		Query      string `json:"query"`
		QueryPlan  int    `json:"query_plan"`
		LocalCount int    `json:"local_count"`
	} `json:"plan"`
}

// MarshalJSON renders bundle as this module's JSON form.
func MarshalJSON(bundle *ir.Bundle) ([]byte, error) {
	var doc jsonDoc
	doc.Data = bundle.Data
	doc.Plan.Static.Strings = bundle.Strings
	doc.Plan.Static.Files = bundle.Files
	doc.Plan.Static.BuiltinFuncs = bundle.BuiltinFuncs
	doc.Plan.Query = bundle.Query
	doc.Plan.QueryPlan = bundle.QueryPlan
	doc.Plan.LocalCount = bundle.LocalCount

	for _, p := range bundle.Plans {
		jp := jsonPlan{Name: p.Name}
		for _, b := range p.Blocks {
			jp.Blocks = append(jp.Blocks, blockToJSON(b))
		}
		doc.Plan.Plans.Plans = append(doc.Plan.Plans.Plans, jp)
	}
	for _, f := range bundle.Functions {
		jf := jsonFunc{
			Name: f.Name, Path: f.Path, Parameters: f.Parameters, Result: f.Result,
			Arity: f.Arity, Cacheable: f.Cacheable, Kind: int(f.Kind),
		}
		for _, b := range f.Blocks {
			jf.Blocks = append(jf.Blocks, blockToJSON(b))
		}
		if f.Default != nil {
			db := blockToJSON(f.Default)
			jf.Default = &db
		}
		doc.Plan.Funcs.Funcs = append(doc.Plan.Funcs.Funcs, jf)
	}
	return json.MarshalIndent(doc, "", "  ")
}

// UnmarshalJSON parses this module's JSON form back into a Bundle.
func UnmarshalJSON(data []byte) (*ir.Bundle, error) {
	var doc jsonDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	b := ir.NewBundle()
	b.Data = doc.Data
	b.Strings = doc.Plan.Static.Strings
	b.Files = doc.Plan.Static.Files
	if doc.Plan.Static.BuiltinFuncs != nil {
		b.BuiltinFuncs = doc.Plan.Static.BuiltinFuncs
	}
	b.Query = doc.Plan.Query
	b.QueryPlan = doc.Plan.QueryPlan
	b.LocalCount = doc.Plan.LocalCount

	for _, jp := range doc.Plan.Plans.Plans {
		p := &ir.Plan{Name: jp.Name}
		for _, jb := range jp.Blocks {
			blk, err := blockFromJSON(jb)
			if err != nil {
				return nil, err
			}
			p.Blocks = append(p.Blocks, blk)
		}
		b.NameToPlan[p.Name] = len(b.Plans)
		b.Plans = append(b.Plans, p)
	}
	for _, jf := range doc.Plan.Funcs.Funcs {
		f := &ir.Function{
			Name: jf.Name, Path: jf.Path, Parameters: jf.Parameters, Result: jf.Result,
			Arity: jf.Arity, Cacheable: jf.Cacheable, Kind: ir.FuncKind(jf.Kind),
		}
		for _, jb := range jf.Blocks {
			blk, err := blockFromJSON(jb)
			if err != nil {
				return nil, err
			}
			f.Blocks = append(f.Blocks, blk)
		}
		if jf.Default != nil {
			blk, err := blockFromJSON(*jf.Default)
			if err != nil {
				return nil, err
			}
			f.Default = blk
		}
		b.NameToFunc[f.Name] = len(b.Functions)
		b.Functions = append(b.Functions, f)
	}
	return b, nil
}
