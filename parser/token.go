// Package parser tokenises policy source text and builds the initial
// generic parse tree of Top/File/Group/Brace/Square/Paren nodes that the
// reader pipeline subsequently lowers into the canonical module AST.
// Uses a regex-driven scanner in the style of OPA's ast/parser.go,
// generalised to a tag-tree parser instead of OPA's typed-term parser.
package parser

// Kind enumerates lexical token classes.
type Kind int

const (
	KindEOF Kind = iota
	KindInt
	KindFloat
	KindString
	KindRawString
	KindBool
	KindNull
	KindIdent
	KindVar // an identifier that began with a letter/underscore and is not a keyword
	KindWildcard
	KindSetEmpty
	KindKeyword
	KindOperator
	KindDot
	KindColon
	KindComma
	KindSemicolon
	KindNewline
	KindLBrace
	KindRBrace
	KindLSquare
	KindRSquare
	KindLParen
	KindRParen
)

func (k Kind) String() string {
	switch k {
	case KindEOF:
		return "EOF"
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindString:
		return "String"
	case KindRawString:
		return "RawString"
	case KindBool:
		return "Bool"
	case KindNull:
		return "Null"
	case KindIdent:
		return "Ident"
	case KindVar:
		return "Var"
	case KindWildcard:
		return "Wildcard"
	case KindSetEmpty:
		return "SetEmpty"
	case KindKeyword:
		return "Keyword"
	case KindOperator:
		return "Operator"
	case KindDot:
		return "Dot"
	case KindColon:
		return "Colon"
	case KindComma:
		return "Comma"
	case KindSemicolon:
		return "Semicolon"
	case KindNewline:
		return "Newline"
	case KindLBrace, KindRBrace:
		return "Brace"
	case KindLSquare, KindRSquare:
		return "Square"
	case KindLParen, KindRParen:
		return "Paren"
	default:
		return "?"
	}
}

// Token is one lexeme with its byte span in the source.
type Token struct {
	Kind Kind
	Text string
	Pos  int
	Len  int
}

// keywords is the fixed keyword set. `if`, `in`,
// `contains`, `every` are contextual (only active once `rego.v1` or the
// matching `future.keywords.*` import is seen) and are recognised by the
// reader pipeline's *keywords* pass, not here; the tokenizer always
// classifies them as KindIdent so that pass can promote them.
var keywords = map[string]bool{
	"package": true,
	"import":  true,
	"as":      true,
	"with":    true,
	"default": true,
	"some":    true,
	"else":    true,
	"not":     true,
}

// contextualKeywords lists the identifiers that become keywords only
// once enabled for the current module.
var contextualKeywords = map[string]bool{
	"if":       true,
	"in":       true,
	"contains": true,
	"every":    true,
}

// IsContextualKeyword reports whether name is one of the keywords whose
// activation depends on an import.
func IsContextualKeyword(name string) bool { return contextualKeywords[name] }

var operators = []string{
	":=", "==", "!=", "<=", ">=",
	"=", "+", "-", "*", "/", "%", "&", "|", "<", ">",
}
