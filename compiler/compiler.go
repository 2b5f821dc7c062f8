// Package compiler implements the Rego→Bundle passes on top of the
// reader's canonical module AST, adapted from OPA's
// internal/planner/planner.go: one Function per lifted rule identifier,
// one Plan per entry point, built by walking each rule's dependency-
// scheduled body (depgraph) and lowering every literal to IR statements
// (expr_to_opblock).
package compiler

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/open-ir/policyc/ast"
	"github.com/open-ir/policyc/ir"
)

// Compiler holds the cross-rule state a compile run accumulates: the
// bundle under construction, a logger, and the counter freshCloneName
// numbers clones with.
type Compiler struct {
	bundle  *ir.Bundle
	log     logrus.FieldLogger
	cloneID int
}

// New returns a Compiler ready to absorb one or more modules (the
// `merge` pass, §4.E) before Compile assembles the bundle.
func New(log logrus.FieldLogger) *Compiler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Compiler{bundle: ir.NewBundle(), log: log}
}

// ruleGroup accumulates every Rule sharing one fully-qualified name; a
// partial set/object rule may have many definitions, a complete or
// function rule normally has one plus any `else` alternatives (already
// folded into that rule's own RuleBodySeq by the reader).
type ruleGroup struct {
	qualified string
	pkgPath   []string
	ident     string
	kind      string // "complete", "function", "partial_set", "partial_object"
	rules     []*ast.Node
}

// Compile runs the merge/unify/expr_to_opblock/lift_functions/add_plans/
// index_strings_locals passes over modules (already-read Module nodes,
// one per source file) and the supplied entry-point queries, producing a
// self-contained Bundle. data is the decoded base document merged under
// the virtual document built from modules.
func (c *Compiler) Compile(modules []*ast.Node, data any, queries []*ast.Node) (*ir.Bundle, ast.Errors) {
	c.bundle.Data = data
	var errs ast.Errors

	groups, gerrs := c.mergeModules(modules)
	errs = append(errs, gerrs...)

	for _, g := range groups {
		fn, ferrs := c.compileRuleGroup(g)
		errs = append(errs, ferrs...)
		if fn == nil {
			continue
		}
		idx := len(c.bundle.Functions)
		c.bundle.Functions = append(c.bundle.Functions, fn)
		c.bundle.NameToFunc[fn.Name] = idx
		c.log.WithField("function", fn.Name).Debug("compiler: lifted function")
	}

	for i, q := range queries {
		plan, perrs := c.compileQueryPlan(fmt.Sprintf("query%d", i), q)
		errs = append(errs, perrs...)
		if plan == nil {
			continue
		}
		idx := len(c.bundle.Plans)
		c.bundle.Plans = append(c.bundle.Plans, plan)
		c.bundle.NameToPlan[plan.Name] = idx
		if i == 0 {
			c.bundle.QueryPlan = idx
		}
	}

	c.bundle.LocalCount = int(c.bundle.MaxLocal()) + 1
	return c.bundle, errs
}

// mergeModules implements pass "merge": absorbs every module's rules
// under the single virtual document and groups them by qualified
// identifier. Import aliasing (`import data.a.b as c`) is resolved by
// substituting the alias head with its target path wherever it appears
// as a RefHead, so downstream passes never see the alias name.
func (c *Compiler) mergeModules(modules []*ast.Node) ([]*ruleGroup, ast.Errors) {
	var errs ast.Errors
	order := map[string]int{}
	var groups []*ruleGroup

	for _, module := range modules {
		pkg := module.Find(ast.TagPackage)
		pkgPath := refGroupPath(pkg)
		aliases := importAliases(module)

		policy := module.Find(ast.TagPolicy)
		if policy == nil {
			continue
		}
		for _, rule := range policy.Children() {
			substituteAliases(rule, aliases)
			ident := rule.Child(0).Text()
			qualified := strings.Join(append(append([]string(nil), pkgPath...), ident), ".")
			kind := ruleKind(rule)
			idx, ok := order[qualified]
			if !ok {
				idx = len(groups)
				order[qualified] = idx
				groups = append(groups, &ruleGroup{qualified: qualified, pkgPath: pkgPath, ident: ident, kind: kind})
			}
			groups[idx].rules = append(groups[idx].rules, rule)
		}
	}
	return groups, errs
}

func refGroupPath(pkg *ast.Node) []string {
	if pkg == nil {
		return nil
	}
	rg := pkg.Find(ast.TagRefGroup)
	if rg == nil {
		return nil
	}
	var out []string
	for _, c := range rg.Children() {
		out = append(out, c.Text())
	}
	return out
}

// importAliases collects `import data.a.b as c` style aliases from a
// module's ImportSeq, keyed by the alias's bare var name.
func importAliases(module *ast.Node) map[string][]string {
	out := map[string][]string{}
	imports := module.Find(ast.TagImportSeq)
	if imports == nil {
		return out
	}
	for _, imp := range imports.Children() {
		if imp.Len() < 2 {
			continue
		}
		rg := imp.Child(0)
		alias := imp.Child(1)
		if rg.Tag() != ast.TagRefGroup || alias.Text() == "" {
			continue
		}
		var path []string
		for _, seg := range rg.Children() {
			path = append(path, seg.Text())
		}
		out[alias.Text()] = path
	}
	return out
}

// substituteAliases rewrites every RefHead in rule matching an import
// alias into the alias's first path segment, leaving the rest of the
// path to resolve normally through ordinary RefArgDot segments prepended
// here.
func substituteAliases(rule *ast.Node, aliases map[string][]string) {
	if len(aliases) == 0 {
		return
	}
	ast.Walk(rule, func(n *ast.Node) bool {
		if n.Tag() != ast.TagRefHead {
			return true
		}
		target, ok := aliases[n.Text()]
		if !ok || len(target) == 0 {
			return true
		}
		n.SetText(target[0])
		parent := n.Parent()
		if parent == nil || parent.Tag() != ast.TagRef || len(target) < 2 {
			return true
		}
		argSeq := parent.Find(ast.TagRefArgSeq)
		if argSeq == nil {
			return true
		}
		var prepend []*ast.Node
		for _, seg := range target[1:] {
			arg := ast.NewNode(ast.TagRefArgDot, n.Location())
			arg.Append(ast.NewLeaf(ast.TagIdent, n.Location(), seg))
			prepend = append(prepend, arg)
		}
		newSeq := ast.NewNode(ast.TagRefArgSeq, argSeq.Location())
		newSeq.Append(prepend...)
		newSeq.Append(argSeq.Children()...)
		for i, c := range parent.Children() {
			if c == argSeq {
				parent.ReplaceAt(i, newSeq)
			}
		}
		return true
	})
}

// ruleKind maps a Rule's head tag to the function kind the lifter needs.
func ruleKind(rule *ast.Node) string {
	head := rule.Child(3)
	switch head.Tag() {
	case ast.TagRuleHeadFunction:
		return "function"
	case ast.TagRuleHeadPartialSet:
		return "partial_set"
	case ast.TagRuleHeadPartialObject:
		return "partial_object"
	case ast.TagDefault:
		return "complete"
	default:
		return "complete"
	}
}

// freshCloneName returns a `g<N>_<base>_<uuid8>` name for a with_rules
// function clone: N counts clones per Compiler value, and the random
// uuid suffix keeps names from different Compiler values apart. No
// compiler pass calls it.
func (c *Compiler) freshCloneName(base string) string {
	c.cloneID++
	return fmt.Sprintf("g%d_%s_%s", c.cloneID, base, uuid.New().String()[:8])
}
