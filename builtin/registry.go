// Package builtin implements a name-keyed registry of built-in
// functions the evaluator calls out to for every Call statement whose
// callee isn't a compiled rule function. Follows OPA's
// topdown/builtins.go global-registration-map pattern, adapted from
// OPA's ast.Builtin-keyed registry to an untyped arity/behavior pair.
package builtin

import "fmt"

// AnyArity marks a built-in that accepts a variable number of
// arguments (e.g. string concatenation helpers); Decl.Arity is ignored
// for these and the implementation validates argument count itself.
const AnyArity = -1

// Func is a built-in's behavior: decoded-JSON-shaped arguments in,
// a decoded-JSON-shaped result out. Returning an error for a
// non-strict built-in is converted to Undefined by the caller
// (StrictErrors gates whether that conversion is silent).
type Func func(args []any) (any, error)

// Decl is a registered built-in's signature.
type Decl struct {
	Name  string
	Arity int
	Fn    Func
}

// Registry is a mutable, name-keyed built-in table.
type Registry struct {
	decls map[string]Decl
}

// NewRegistry returns an empty registry; call RegisterStandard to add
// the built-in set this module ships.
func NewRegistry() *Registry {
	return &Registry{decls: map[string]Decl{}}
}

// Register adds or replaces a built-in declaration.
func (r *Registry) Register(d Decl) {
	r.decls = cloneDecls(r.decls)
	r.decls[d.Name] = d
}

func cloneDecls(m map[string]Decl) map[string]Decl {
	cpy := make(map[string]Decl, len(m)+1)
	for k, v := range m {
		cpy[k] = v
	}
	return cpy
}

// Lookup returns the named built-in, or ok=false if unregistered.
func (r *Registry) Lookup(name string) (Decl, bool) {
	d, ok := r.decls[name]
	return d, ok
}

// Call invokes the named built-in against args, checking arity first.
func (r *Registry) Call(name string, args []any) (any, error) {
	d, ok := r.decls[name]
	if !ok {
		return nil, fmt.Errorf("builtin: unknown function %q", name)
	}
	if d.Arity != AnyArity && d.Arity != len(args) {
		return nil, fmt.Errorf("builtin: %s: expected %d args, got %d", name, d.Arity, len(args))
	}
	return d.Fn(args)
}
