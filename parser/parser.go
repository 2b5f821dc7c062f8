package parser

import "github.com/open-ir/policyc/ast"

// state drives one Source's token stream into a parse tree.
type state struct {
	src  *ast.Source
	toks []Token
	pos  int
	errs ast.Errors
}

func (s *state) peek() Token  { return s.toks[s.pos] }
func (s *state) next() Token  { t := s.toks[s.pos]; s.pos++; return t }
func (s *state) loc(t Token) *ast.Location {
	return ast.NewLocation(s.src, t.Pos, t.Len)
}

// Parse tokenises and parses a single source into `Top(File(Group*))`,
//
func Parse(src *ast.Source) (*ast.Node, ast.Errors) {
	toks, lexErrs := Lex(src)
	s := &state{src: src, toks: toks, errs: lexErrs}
	file := ast.NewNode(ast.TagFile, s.loc(s.peek()))
	file.Append(s.parseElements(KindEOF)...)
	top := ast.NewNode(ast.TagTop, file.Location())
	top.Append(file)
	return top, s.errs
}

// ParseTop parses each of srcs independently and assembles them under a
// single Top node, for a multi-file compile.
func ParseTop(srcs ...*ast.Source) (*ast.Node, ast.Errors) {
	var top *ast.Node
	var errs ast.Errors
	for _, src := range srcs {
		t, e := Parse(src)
		errs = append(errs, e...)
		if top == nil {
			top = t
			continue
		}
		top.Append(t.Children()...)
	}
	if top == nil {
		top = ast.NewNode(ast.TagTop, nil)
	}
	return top, errs
}

// parseElements consumes tokens until it sees closeKind (or EOF),
// applying this module's terminator rules: a bare newline always ends
// the current group (a no-op right after a `,`/`;`); `,`/`;` always end
// the current element and wrap it as a List, and flip the container
// into list mode.
func (s *state) parseElements(closeKind Kind) []*ast.Node {
	var children []*ast.Node
	sawListSep := false
	cur := ast.NewNode(ast.TagGroup, s.loc(s.peek()))

	flushBare := func() {
		if cur.Len() > 0 {
			children = append(children, cur)
		}
		cur = ast.NewNode(ast.TagGroup, s.loc(s.peek()))
	}
	flushList := func() {
		wrapped := ast.NewNode(ast.TagList, cur.Location())
		wrapped.Append(cur)
		children = append(children, wrapped)
		cur = ast.NewNode(ast.TagGroup, s.loc(s.peek()))
	}

	for {
		tok := s.peek()
		if tok.Kind == closeKind || tok.Kind == KindEOF {
			break
		}
		switch tok.Kind {
		case KindNewline:
			// A newline always ends whatever element is currently open.
			// This is a no-op when the element was already flushed by a
			// trailing comma/semicolon (the universal style for
			// multi-line arrays/objects/call args), so list-shaped
			// containers stay correct across line breaks without needing
			// a "currently mid-list" flag that would otherwise bleed
			// across unrelated statements once any comma had appeared
			// anywhere earlier in the same container (e.g. a `some x, y
			// in xs` declaration inside a multi-statement rule body).
			s.next()
			flushBare()
		case KindComma, KindSemicolon:
			s.next()
			sawListSep = true
			flushList()
		case KindLBrace:
			cur.Append(s.parseContainer(ast.TagBrace, KindRBrace))
		case KindLSquare:
			cur.Append(s.parseContainer(ast.TagSquare, KindRSquare))
		case KindLParen:
			cur.Append(s.parseContainer(ast.TagParen, KindRParen))
		default:
			cur.Append(ast.NewLeaf(leafTag(tok.Kind), s.loc(tok), tok.Text))
			s.next()
		}
	}

	if sawListSep {
		if cur.Len() > 0 {
			flushList()
		}
	} else if cur.Len() > 0 {
		children = append(children, cur)
	}
	return children
}

// parseContainer consumes the already-peeked opening bracket, parses its
// elements, and consumes the matching close bracket (reporting a parse
// error if the stream runs out first).
func (s *state) parseContainer(tag ast.Tag, closeKind Kind) *ast.Node {
	open := s.next()
	node := ast.NewNode(tag, s.loc(open))
	node.Append(s.parseElements(closeKind)...)
	if s.peek().Kind == closeKind {
		s.next()
	} else {
		s.errs = append(s.errs, ast.NewError(ast.ParseErr, s.loc(s.peek()),
			"unterminated %s: expected closing bracket", tag))
	}
	return node
}

func leafTag(k Kind) ast.Tag {
	switch k {
	case KindInt:
		return ast.TagInt
	case KindFloat:
		return ast.TagFloat
	case KindString:
		return ast.TagString
	case KindRawString:
		return ast.TagRawString
	case KindBool:
		return ast.TagBool
	case KindNull:
		return ast.TagNull
	case KindIdent:
		return ast.TagIdent
	case KindWildcard:
		return ast.TagWildcard
	case KindSetEmpty:
		return ast.TagSetEmpty
	case KindKeyword:
		return ast.TagKeyword
	case KindOperator:
		return ast.TagOperator
	case KindDot:
		return ast.TagDot
	case KindColon:
		return ast.TagColon
	default:
		return ast.TagInvalid
	}
}

// WF is the well-formedness grammar the raw parse tree must satisfy
// before the reader pipeline begins.
var WF = ast.NewWF("parser:raw").
	Rule(ast.TagTop, ast.Star(ast.One(ast.TagFile))).
	Rule(ast.TagFile, ast.Star(ast.AnyOf(ast.TagGroup, ast.TagList)))
