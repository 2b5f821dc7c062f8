// Package rego exposes the host API: parse modules and an ad-hoc
// query, compile them to a Bundle, and evaluate that bundle against an
// input document. Follows OPA's rego/rego.go functional-options
// `Rego`/`New`/`Eval` surface, narrowed to a single-shot scope (no
// partial evaluation, no storage transactions).
package rego

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/open-ir/policyc/ast"
	"github.com/open-ir/policyc/builtin"
	"github.com/open-ir/policyc/compiler"
	"github.com/open-ir/policyc/internal/logging"
	"github.com/open-ir/policyc/ir"
	"github.com/open-ir/policyc/parser"
	"github.com/open-ir/policyc/reader"
	"github.com/open-ir/policyc/vm"
)

// Result is one entry of a query's result set: this module's `{"result":
// ...}` shape is already built into the compiled query plan, so Result
// just carries whatever value the plan produced.
type Result struct {
	Expressions map[string]any
}

// ResultSet holds every result a query produced; an empty set means the
// query was undefined.
type ResultSet []Result

// rawModule is one not-yet-parsed source file queued on a Rego object.
type rawModule struct {
	filename string
	text     string
}

// Rego accumulates modules, an input document, and a query, the way
// OPA's functional-options Rego object does, then Eval parses,
// compiles, and runs them in one shot.
type Rego struct {
	query        string
	modules      []rawModule
	data         any
	input        any
	builtins     *builtin.Registry
	log          logrus.FieldLogger
	logLevel     string
	strictErrors bool
}

// Option configures a Rego object, mirroring OPA's `func(*Rego)`
// option shape.
type Option func(*Rego)

// Query sets the ad-hoc entry-point query (e.g. "data.p.allow").
func Query(q string) Option { return func(r *Rego) { r.query = q } }

// Module queues one policy source file for compilation.
func Module(filename, text string) Option {
	return func(r *Rego) { r.modules = append(r.modules, rawModule{filename, text}) }
}

// Data sets the base document merged underneath compiled rules.
func Data(d any) Option { return func(r *Rego) { r.data = d } }

// Input sets the `input` document a query is evaluated against.
func Input(i any) Option { return func(r *Rego) { r.input = i } }

// Builtins supplies a pre-populated built-in registry; when omitted, Eval
// registers the standard library via builtin.RegisterStandard.
func Builtins(reg *builtin.Registry) Option { return func(r *Rego) { r.builtins = reg } }

// RegisterBuiltin adds one custom built-in declaration on top of the
// standard library.
func RegisterBuiltin(decl builtin.Decl) Option {
	return func(r *Rego) {
		if r.builtins == nil {
			r.builtins = builtin.NewRegistry()
			builtin.RegisterStandard(r.builtins)
		}
		r.builtins.Register(decl)
	}
}

// Logger sets the logrus logger threaded through the reader/compiler.
func Logger(log logrus.FieldLogger) Option { return func(r *Rego) { r.log = log } }

// LogLevel parses a "debug"/"info"/"warn"/"error" level string and
// applies it to the default logger. Ignored if Logger supplied one
// already, since a caller-provided logger owns its own level.
func LogLevel(level string) Option {
	return func(r *Rego) { r.logLevel = level }
}

// StrictErrors makes a built-in call failure abort evaluation with an
// error rather than silently producing an undefined result.
func StrictErrors(strict bool) Option { return func(r *Rego) { r.strictErrors = strict } }

// New returns a Rego object configured by opts.
func New(opts ...Option) *Rego {
	r := &Rego{}
	for _, o := range opts {
		o(r)
	}
	if r.builtins == nil {
		r.builtins = builtin.NewRegistry()
		builtin.RegisterStandard(r.builtins)
	}
	if r.log == nil {
		std := logrus.New()
		std.SetFormatter(logging.GetFormatter("text", ""))
		if r.logLevel != "" {
			if lvl, err := logging.GetLevel(r.logLevel); err == nil {
				std.SetLevel(lvl)
			}
		}
		r.log = std
	}
	return r
}

// Compile parses every queued module plus the query and lowers them to
// a self-contained Bundle, without running it. Useful for
// Bundle.Save/Load round-tripping.
func (r *Rego) Compile() (*ir.Bundle, error) {
	var modules []*ast.Node
	for _, m := range r.modules {
		top, perrs := parser.Parse(ast.NewSyntheticSource(m.filename, m.text))
		if len(perrs) != 0 {
			return nil, fmt.Errorf("rego: parse %s: %v", m.filename, perrs)
		}
		mod, rerrs := reader.New(r.log).Read(top)
		if len(rerrs) != 0 {
			return nil, fmt.Errorf("rego: read %s: %v", m.filename, rerrs)
		}
		modules = append(modules, mod)
	}

	var queries []*ast.Node
	if r.query != "" {
		q, qerrs := reader.ParseQuery(r.query)
		if len(qerrs) != 0 {
			return nil, fmt.Errorf("rego: parse query %q: %v", r.query, qerrs)
		}
		queries = append(queries, q)
	}

	c := compiler.New(r.log)
	bundle, cerrs := c.Compile(modules, r.data, queries)
	if len(cerrs) != 0 {
		return nil, fmt.Errorf("rego: compile: %v", cerrs)
	}
	return bundle, nil
}

// Eval parses, compiles, and runs the configured query against input,
// returning its result set.
func (r *Rego) Eval() (ResultSet, error) {
	bundle, err := r.Compile()
	if err != nil {
		return nil, err
	}
	return r.EvalBundle(bundle)
}

// EvalBundle runs an already-compiled bundle (e.g. one loaded via
// Bundle.Load) against this Rego object's input.
func (r *Rego) EvalBundle(bundle *ir.Bundle) (ResultSet, error) {
	ev := vm.New(bundle, r.builtins, vm.WithStrictErrors(r.strictErrors))
	raw, err := ev.Query(r.input)
	if err != nil {
		return nil, err
	}
	out := make(ResultSet, 0, len(raw))
	for _, obj := range raw {
		m, ok := obj.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, Result{Expressions: m})
	}
	return out, nil
}
