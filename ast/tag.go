package ast

// Tag is the closed set of AST node kinds. Every Node carries its Tag by
// value; the tree has no subclassing, only dynamic dispatch over node
// tags, a tag switch instead of type assertions.
type Tag int

const (
	TagInvalid Tag = iota

	// Raw parser output (component B): generic container nodes.
	TagTop
	TagFile
	TagGroup
	TagBrace
	TagSquare
	TagParen
	TagList // a comma/semicolon separated element inside a container

	// Terminals recognised by the tokenizer.
	TagInt
	TagFloat
	TagString
	TagRawString
	TagBool
	TagNull
	TagIdent
	TagVarToken
	TagWildcard // `_`
	TagSetEmpty // `set()`
	TagKeyword  // package, import, as, with, default, some, else, not, in, contains, every, if
	TagOperator // infix operator token (+ - * / % & | := = == != < <= > >=)
	TagDot
	TagColon

	// Reader pipeline intermediate / canonical shapes (component C).
	TagModule
	TagQuery
	TagPackage
	TagVersion
	TagImportSeq
	TagImport
	TagPolicy
	TagRefGroup

	TagSomeDecl
	TagEveryDecl
	TagVarSeq

	TagRefArgSeq
	TagRefArgDot
	TagRefArgBrack
	TagRef
	TagRefHead

	TagTerm
	TagExpr
	TagExprCall
	TagExprInfix
	TagExprEvery
	TagMembership
	TagNotExpr
	TagAssignOperator // wraps `:=` or `=` classification
	TagElse
	TagWith

	TagScalar
	TagArray
	TagObject
	TagSet
	TagArrayCompr
	TagObjectCompr
	TagSetCompr
	TagKeyValue

	TagLiteral
	TagWithSeq

	TagRule
	TagRuleHeadComplete
	TagRuleHeadFunction
	TagRuleHeadPartialSet
	TagRuleHeadPartialObject
	TagRuleBodySeq
	TagRuleBody
	TagDefault
	TagLocalSeq
	TagArgs

	// Dependency-graph synthetic literal kinds (component D); these are
	// graph-only annotations, not part of the persisted tree, but are
	// given tags so the WF framework can validate intermediate shapes
	// produced while planning a body.
	TagLocalDecl
	TagCapture
	TagExprAssign
	TagExprUnify
	TagExprScan

	tagSentinel // must stay last; used to size lookup tables
)

var tagNames = map[Tag]string{
	TagInvalid:               "Invalid",
	TagTop:                   "Top",
	TagFile:                  "File",
	TagGroup:                 "Group",
	TagBrace:                 "Brace",
	TagSquare:                "Square",
	TagParen:                 "Paren",
	TagList:                  "List",
	TagInt:                   "Int",
	TagFloat:                 "Float",
	TagString:                "String",
	TagRawString:             "RawString",
	TagBool:                  "Bool",
	TagNull:                  "Null",
	TagIdent:                 "Ident",
	TagVarToken:              "Var",
	TagWildcard:              "Wildcard",
	TagSetEmpty:              "SetEmpty",
	TagKeyword:               "Keyword",
	TagOperator:              "Operator",
	TagDot:                   "Dot",
	TagColon:                 "Colon",
	TagModule:                "Module",
	TagQuery:                 "Query",
	TagPackage:               "Package",
	TagVersion:               "Version",
	TagImportSeq:             "ImportSeq",
	TagImport:                "Import",
	TagPolicy:                "Policy",
	TagRefGroup:              "RefGroup",
	TagSomeDecl:              "SomeDecl",
	TagEveryDecl:             "EveryDecl",
	TagVarSeq:                "VarSeq",
	TagRefArgSeq:             "RefArgSeq",
	TagRefArgDot:             "RefArgDot",
	TagRefArgBrack:           "RefArgBrack",
	TagRef:                   "Ref",
	TagRefHead:               "RefHead",
	TagTerm:                  "Term",
	TagExpr:                  "Expr",
	TagExprCall:              "ExprCall",
	TagExprInfix:             "ExprInfix",
	TagExprEvery:             "ExprEvery",
	TagMembership:            "Membership",
	TagNotExpr:               "NotExpr",
	TagAssignOperator:        "AssignOperator",
	TagElse:                  "Else",
	TagWith:                  "With",
	TagScalar:                "Scalar",
	TagArray:                 "Array",
	TagObject:                "Object",
	TagSet:                   "Set",
	TagArrayCompr:            "ArrayCompr",
	TagObjectCompr:           "ObjectCompr",
	TagSetCompr:              "SetCompr",
	TagKeyValue:              "KeyValue",
	TagLiteral:               "Literal",
	TagWithSeq:               "WithSeq",
	TagRule:                  "Rule",
	TagRuleHeadComplete:      "RuleHeadComplete",
	TagRuleHeadFunction:      "RuleHeadFunction",
	TagRuleHeadPartialSet:    "RuleHeadPartialSet",
	TagRuleHeadPartialObject: "RuleHeadPartialObject",
	TagRuleBodySeq:           "RuleBodySeq",
	TagRuleBody:              "RuleBody",
	TagDefault:               "Default",
	TagLocalSeq:              "LocalSeq",
	TagArgs:                  "Args",
	TagLocalDecl:             "LocalDecl",
	TagCapture:               "Capture",
	TagExprAssign:            "ExprAssign",
	TagExprUnify:             "ExprUnify",
	TagExprScan:              "ExprScan",
}

func (t Tag) String() string {
	if n, ok := tagNames[t]; ok {
		return n
	}
	return "Tag(?)"
}

// scopeOpeningTags are tags that open a new lexical scope (symtab),
//
var scopeOpeningTags = map[Tag]bool{
	TagModule:     true,
	TagRule:       true,
	TagArrayCompr: true,
	TagObjectCompr: true,
	TagSetCompr:   true,
	TagExprEvery:  true,
}

// IsScopeOpening reports whether nodes with this tag open a new scope.
func (t Tag) IsScopeOpening() bool { return scopeOpeningTags[t] }
