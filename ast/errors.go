package ast

import (
	"fmt"
	"sort"
	"strings"

	"github.com/open-ir/policyc/internal/levenshtein"
)

// ErrCode classifies an Error.
type ErrCode int

const (
	// WellFormedErr indicates an internal pass invariant was broken: a
	// pass produced a tree that does not match its own well-formedness
	// grammar. This always indicates a compiler bug, never bad input.
	WellFormedErr ErrCode = iota
	// ParseErr indicates a lexical/syntactic problem.
	ParseErr
	// CompileErr indicates a semantic problem caught in strict mode.
	CompileErr
	// TypeErr indicates an ill-typed operation caught at compile time.
	TypeErr
	// EvalTypeErr indicates a built-in operand failed a type precondition.
	EvalTypeErr
	// EvalBuiltinErr indicates a built-in computed an error value.
	EvalBuiltinErr
	// EvalConflictErr indicates a partial-object insert-once conflict.
	EvalConflictErr
	// RuntimeErr indicates an evaluator-level failure (timeout, overflow, I/O).
	RuntimeErr
)

func (c ErrCode) String() string {
	switch c {
	case WellFormedErr:
		return "wellformed_error"
	case ParseErr:
		return "rego_parse_error"
	case CompileErr:
		return "rego_compile_error"
	case TypeErr:
		return "rego_type_error"
	case EvalTypeErr:
		return "eval_type_error"
	case EvalBuiltinErr:
		return "eval_builtin_error"
	case EvalConflictErr:
		return "eval_conflict_error"
	case RuntimeErr:
		return "runtime_error"
	default:
		return "unknown_error"
	}
}

// Error is a single diagnostic, always carrying a source location and,
// where available, an excerpt of the offending AST so the message is
// self-contained.
type Error struct {
	Code     ErrCode
	Location *Location
	Message  string
	Excerpt  string
}

func NewError(code ErrCode, loc *Location, format string, args ...any) *Error {
	return &Error{Code: code, Location: loc, Message: fmt.Sprintf(format, args...)}
}

// WithExcerpt attaches a textual AST excerpt to the error and returns it,
// for chaining at the call site.
func (e *Error) WithExcerpt(n *Node) *Error {
	if n != nil {
		e.Excerpt = n.Dump()
	}
	return e
}

func (e *Error) Error() string {
	prefix := e.Code.String()
	if e.Location != nil {
		prefix = fmt.Sprintf("%s: %s", e.Location.String(), e.Code.String())
	}
	msg := fmt.Sprintf("%s: %s", prefix, e.Message)
	if e.Excerpt != "" {
		msg += "\n" + e.Excerpt
	}
	return msg
}

// Errors is a collected batch of diagnostics from one compile/eval run.
// One error does not suppress others raised in the same pass.
type Errors []*Error

func (e Errors) Error() string {
	if len(e) == 0 {
		return "no error(s)"
	}
	if len(e) == 1 {
		return "1 error occurred: " + e[0].Error()
	}
	parts := make([]string, len(e))
	for i, err := range e {
		parts[i] = err.Error()
	}
	return fmt.Sprintf("%d errors occurred:\n%s", len(e), strings.Join(parts, "\n"))
}

// HasCode reports whether any collected error has the given code.
func (e Errors) HasCode(code ErrCode) bool {
	for _, err := range e {
		if err.Code == code {
			return true
		}
	}
	return false
}

// SuggestName appends a "did you mean ...?" clause built from the closest
// candidate(s) by edit distance, using the same levenshtein library
// OPA's go.mod requires for this exact purpose.
func SuggestName(name string, candidates []string) string {
	sort.Strings(candidates)
	closest := levenshtein.ClosestStrings(nameSuggestThreshold(name), name, slicesValues(candidates))
	if len(closest) == 0 {
		return ""
	}
	return fmt.Sprintf(" (did you mean %s?)", strings.Join(closest, " or "))
}

func nameSuggestThreshold(name string) int {
	// Scale the acceptable edit distance with name length so short
	// identifiers don't match everything.
	n := len(name) / 2
	if n < 2 {
		n = 2
	}
	return n
}

func slicesValues(ss []string) func(yield func(string) bool) {
	return func(yield func(string) bool) {
		for _, s := range ss {
			if !yield(s) {
				return
			}
		}
	}
}
