package parser

import (
	"regexp"
	"sort"

	"github.com/open-ir/policyc/ast"
)

// token pattern table, tried in order; first match wins. Follows OPA's
// ast/internal/scanner regex-driven approach: a small ordered
// set of compiled regexes instead of a hand-rolled switch over runes.
var tokenPatterns = []struct {
	kind Kind
	re   *regexp.Regexp
}{
	{KindFloat, regexp.MustCompile(`^[0-9]+\.[0-9]+([eE][+-]?[0-9]+)?|^[0-9]+[eE][+-]?[0-9]+`)},
	{KindInt, regexp.MustCompile(`^[0-9]+`)},
	{KindString, regexp.MustCompile(`^"(\\.|[^"\\])*"`)},
	{KindRawString, regexp.MustCompile("^`[^`]*`")},
	{KindSetEmpty, regexp.MustCompile(`^set\(\)`)},
	{KindIdent, regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*`)},
}

var opPattern *regexp.Regexp

func init() {
	// Longest-operator-first so `:=` is not mis-lexed as `:` then `=`.
	ops := append([]string(nil), operators...)
	sort.Slice(ops, func(i, j int) bool { return len(ops[i]) > len(ops[j]) })
	parts := make([]string, len(ops))
	for i, o := range ops {
		parts[i] = regexp.QuoteMeta(o)
	}
	pattern := "^(" + parts[0]
	for _, p := range parts[1:] {
		pattern += "|" + p
	}
	pattern += ")"
	opPattern = regexp.MustCompile(pattern)
}

// Lex tokenises src.Text in full, returning every token including
// newlines (needed by the parser to apply this module's terminator
// rules) but skipping spaces, tabs, carriage returns and `#` comments.
func Lex(src *ast.Source) ([]Token, ast.Errors) {
	var toks []Token
	var errs ast.Errors
	text := src.Text
	pos := 0
	for pos < len(text) {
		b := text[pos]
		switch {
		case b == ' ' || b == '\t' || b == '\r':
			pos++
			continue
		case b == '#':
			for pos < len(text) && text[pos] != '\n' {
				pos++
			}
			continue
		case b == '\n':
			toks = append(toks, Token{Kind: KindNewline, Text: "\n", Pos: pos, Len: 1})
			pos++
			continue
		case b == '{':
			toks = append(toks, Token{Kind: KindLBrace, Text: "{", Pos: pos, Len: 1})
			pos++
			continue
		case b == '}':
			toks = append(toks, Token{Kind: KindRBrace, Text: "}", Pos: pos, Len: 1})
			pos++
			continue
		case b == '[':
			toks = append(toks, Token{Kind: KindLSquare, Text: "[", Pos: pos, Len: 1})
			pos++
			continue
		case b == ']':
			toks = append(toks, Token{Kind: KindRSquare, Text: "]", Pos: pos, Len: 1})
			pos++
			continue
		case b == '(':
			toks = append(toks, Token{Kind: KindLParen, Text: "(", Pos: pos, Len: 1})
			pos++
			continue
		case b == ')':
			toks = append(toks, Token{Kind: KindRParen, Text: ")", Pos: pos, Len: 1})
			pos++
			continue
		case b == ',':
			toks = append(toks, Token{Kind: KindComma, Text: ",", Pos: pos, Len: 1})
			pos++
			continue
		case b == ';':
			toks = append(toks, Token{Kind: KindSemicolon, Text: ";", Pos: pos, Len: 1})
			pos++
			continue
		case b == '.':
			// Only a bare Dot if not the start of a float (handled above).
			toks = append(toks, Token{Kind: KindDot, Text: ".", Pos: pos, Len: 1})
			pos++
			continue
		case b == ':' && !matchesPrefix(text[pos:], ":="):
			toks = append(toks, Token{Kind: KindColon, Text: ":", Pos: pos, Len: 1})
			pos++
			continue
		case b == '_' && !isIdentByte(peekByte(text, pos+1)):
			toks = append(toks, Token{Kind: KindWildcard, Text: "_", Pos: pos, Len: 1})
			pos++
			continue
		}

		if loc := opPattern.FindString(string(text[pos:])); loc != "" {
			toks = append(toks, Token{Kind: KindOperator, Text: loc, Pos: pos, Len: len(loc)})
			pos += len(loc)
			continue
		}

		matched := false
		for _, tp := range tokenPatterns {
			m := tp.re.FindString(string(text[pos:]))
			if m == "" {
				continue
			}
			matched = true
			kind := tp.kind
			if kind == KindIdent {
				switch m {
				case "true", "false":
					kind = KindBool
				case "null":
					kind = KindNull
				default:
					if keywords[m] {
						kind = KindKeyword
					}
				}
			}
			toks = append(toks, Token{Kind: kind, Text: m, Pos: pos, Len: len(m)})
			pos += len(m)
			break
		}
		if !matched {
			errs = append(errs, ast.NewError(ast.ParseErr, ast.NewLocation(src, pos, 1),
				"unexpected character %q", string(rune(b))))
			pos++
		}
	}
	toks = append(toks, Token{Kind: KindEOF, Pos: len(text)})
	return toks, errs
}

func matchesPrefix(b []byte, s string) bool {
	if len(b) < len(s) {
		return false
	}
	return string(b[:len(s)]) == s
}

func peekByte(text []byte, i int) byte {
	if i < 0 || i >= len(text) {
		return 0
	}
	return text[i]
}

func isIdentByte(b byte) bool {
	return b == '_' || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}
