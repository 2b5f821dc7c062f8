package ast

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/open-ir/policyc/util"
)

// Symbol is a single binding recorded in a SymbolTable: a local variable,
// function argument, or comprehension/every-loop binding.
type Symbol struct {
	Name string
	Decl *Node // the Node that introduced the binding (TagVarToken, etc.)
}

func hashName(k any) int    { return int(xxhash.Sum64String(k.(string))) }
func eqName(a, b any) bool  { return a.(string) == b.(string) }
func newSymbolScope() *util.HashMap[string, *Symbol] {
	return util.NewHashMap[string, *Symbol](eqName, hashName)
}

// SymbolTable implements the scope chain: each scope-opening node
// (Module, Rule, *Compr, ExprEvery — see Tag.IsScopeOpening) gets its
// own table, linked to its lexical parent so lookups fall through to
// enclosing scopes, and a later declaration of the same name in an
// inner scope shadows rather than conflicts with an outer one. Symbols
// are kept in a util.HashMap (xxhash-keyed) rather than a plain Go map.
type SymbolTable struct {
	parent  *SymbolTable
	symbols *util.HashMap[string, *Symbol]
	// counters track how many fresh names have been minted per hint, so
	// repeated calls with the same hint in the same table don't collide.
	counters map[string]int
}

// NewSymbolTable returns a root (module-level) scope.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{symbols: newSymbolScope(), counters: make(map[string]int)}
}

// Child opens a nested scope whose lookups fall through to this one.
func (s *SymbolTable) Child() *SymbolTable {
	return &SymbolTable{parent: s, symbols: newSymbolScope(), counters: make(map[string]int)}
}

// Declare binds name in this scope, shadowing (not erroring on) any
// binding of the same name visible from an enclosing scope. Redeclaring
// the same name twice within the SAME scope is the caller's
// responsibility to reject (it depends on pass-specific rules: rule
// bodies permit re-assignment via `=`, `:=` of an already-bound local is
// an error the reader pass raises itself).
func (s *SymbolTable) Declare(name string, decl *Node) *Symbol {
	sym := &Symbol{Name: name, Decl: decl}
	s.symbols.Put(name, sym)
	return sym
}

// Lookup resolves name against this scope and its ancestors, innermost
// first, returning the Symbol and whether it was found.
func (s *SymbolTable) Lookup(name string) (*Symbol, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if sym, ok := cur.symbols.Get(name); ok {
			return sym, true
		}
	}
	return nil, false
}

// LocalLookup resolves name against this scope only, without falling
// through to enclosing scopes. Used to detect a second `:=` of a name
// already local to the current rule body.
func (s *SymbolTable) LocalLookup(name string) (*Symbol, bool) {
	return s.symbols.Get(name)
}

// Names returns every name declared directly in this scope, for "did you
// mean" suggestions scoped to what's actually visible.
func (s *SymbolTable) Names() []string {
	names := make([]string, 0, s.symbols.Len())
	s.symbols.Iter(func(n string, _ *Symbol) bool {
		names = append(names, n)
		return false
	})
	return names
}

// VisibleNames returns every name visible from this scope, innermost
// scope's names first, walking outward.
func (s *SymbolTable) VisibleNames() []string {
	var out []string
	for cur := s; cur != nil; cur = cur.parent {
		out = append(out, cur.Names()...)
	}
	return out
}

// Fresh mints a new identifier guaranteed unique within this scope,
// built from hint (e.g. a rule or builtin name) and a per-scope counter,
// matching the `scanindex$17`-style synthetic names the reader pipeline
// needs for desugared comprehensions, scans, and with-clones.
func (s *SymbolTable) Fresh(hint string) string {
	n := s.counters[hint]
	s.counters[hint] = n + 1
	return fmt.Sprintf("%s$%d", hint, n)
}
