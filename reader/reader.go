// Package reader lowers the parser's generic Top/File/Group tree into
// the canonical module AST: Module(Ident, Package, Version, ImportSeq,
// Policy(Rule*)). It runs the rewrite passes needed to get there as a
// staged pipeline, following OPA's ast/compile.go ordered-`[]stage{...}`
// pattern (a pass is a named `func(*Reader, *ast.Node) (*ast.Node,
// error)`, run in sequence,
// with errors collected into r.errs and the pipeline stopping early
// only when a stage's errors would make the next stage's assumptions
// unsafe to run, e.g. a parse tree that never resolved into a Module
// shape at all).
package reader

import (
	"github.com/sirupsen/logrus"

	"github.com/open-ir/policyc/ast"
)

// Reader holds the mutable state threaded through one module's passes:
// whether strict (rego.v1) mode is active, which contextual keywords are
// enabled, the module-level symbol table, and an optional logger.
type Reader struct {
	Strict       bool
	keywordsOn   map[string]bool
	symtab       *ast.SymbolTable
	log          logrus.FieldLogger
	errs         ast.Errors
	freshCounter int
}

// New returns a Reader with no contextual keywords enabled (classic
// mode); Module-level pass 2 (*keywords*) turns them on per-import.
func New(log logrus.FieldLogger) *Reader {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Reader{
		keywordsOn: make(map[string]bool),
		symtab:     ast.NewSymbolTable(),
		log:        log,
	}
}

type stage struct {
	name string
	fn   func(*Reader, *ast.Node) (*ast.Node, error)
}

// stages lists the reader pipeline in execution order. Several adjacent
// passes that are mechanically one recursive-descent
// expression grammar (ref_args, refs, groups, terms, unary, the two
// arith/bin precedence levels, and comparison) are implemented by the
// recursive-descent functions in expr.go (parseAssignLevel down to
// parsePrimary), invoked from the `exprGrammar` stage;
// each still does exactly the rewrite this module assigns it, named in
// comments at its call site in expr.go.
var stages = []stage{
	{"prep", (*Reader).prep},
	{"keywords", (*Reader).keywordsPass},
	{"exprGrammar", (*Reader).exprGrammarPass}, // some_every, ref_args, refs, groups, terms, unary, arith*2, comparison, membership, assign
	{"else_not", (*Reader).elseNotPass},
	{"collections", (*Reader).collectionsPass},
	{"lines", (*Reader).linesPass},
	{"rules", (*Reader).rulesPass},
	{"literals", (*Reader).literalsPass},
	{"structure", (*Reader).structurePass},
}

// Read runs every stage over top (as produced by parser.Parse) and
// returns the canonical Module node, or the errors collected along the
// way. A stage's errors do not by themselves stop the pipeline but a
// stage that cannot produce a node to hand to the next one aborts the
// remaining stages.
func (r *Reader) Read(top *ast.Node) (*ast.Node, ast.Errors) {
	n := top
	for _, st := range stages {
		out, err := st.fn(r, n)
		if err != nil {
			r.errs = append(r.errs, ast.NewError(ast.ParseErr, nil, "%s: %v", st.name, err))
			return nil, r.errs
		}
		n = out
		r.log.WithField("pass", st.name).Debug("reader pass complete")
	}
	return n, r.errs
}

// Fresh mints a globally-unique synthetic identifier for this reader
// run, e.g. for `else`/`with` temporaries minted before a rule's own
// scope exists.
func (r *Reader) Fresh(hint string) string {
	r.freshCounter++
	return r.symtab.Fresh(hint)
}

func (r *Reader) fail(loc *ast.Location, format string, args ...any) {
	r.errs = append(r.errs, ast.NewError(ast.ParseErr, loc, format, args...))
}

func (r *Reader) failCompile(loc *ast.Location, format string, args ...any) {
	r.errs = append(r.errs, ast.NewError(ast.CompileErr, loc, format, args...))
}
