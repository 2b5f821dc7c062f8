// Package ast defines the universal AST datum used by every compiler pass:
// a tagged Node tree with locations, plus the well-formedness grammar
// machinery that validates each pass's output.
package ast

import "fmt"

// Source is an immutable view over policy text, either a named file or a
// synthetic buffer (e.g. a query string, or text generated by a rewrite
// rule). Two Locations over the same Source compare equal when their
// string contents compare equal, so Source itself never needs identity
// semantics beyond its bytes.
type Source struct {
	Name string // file path, or a synthetic name such as "<query>"
	Text []byte
}

// NewSource returns a Source backed by a file's contents.
func NewSource(name string, text []byte) *Source {
	return &Source{Name: name, Text: text}
}

// NewSyntheticSource returns a Source for text that did not come from a
// file on disk (a query string, or text minted by a rewrite pass).
func NewSyntheticSource(hint string, text string) *Source {
	return &Source{Name: hint, Text: []byte(text)}
}

func (s *Source) String() string {
	if s == nil {
		return "<nil>"
	}
	return s.Name
}

// Location is a byte-offset view into a Source, resolvable on demand to a
// 1-based line/column pair. Locations compare equal when their underlying
// text content is equal, regardless of Source identity, per spec.
type Location struct {
	Source *Source
	Pos    int // byte offset into Source.Text
	Len    int // length in bytes
}

// NewLocation returns a new Location.
func NewLocation(src *Source, pos, length int) *Location {
	return &Location{Source: src, Pos: pos, Len: length}
}

// Text returns the source text covered by the location.
func (l *Location) Text() string {
	if l == nil || l.Source == nil {
		return ""
	}
	end := l.Pos + l.Len
	if end > len(l.Source.Text) {
		end = len(l.Source.Text)
	}
	if l.Pos < 0 || l.Pos > len(l.Source.Text) {
		return ""
	}
	return string(l.Source.Text[l.Pos:end])
}

// LineCol resolves the byte offset to a 1-based (line, column) pair.
func (l *Location) LineCol() (line, col int) {
	if l == nil || l.Source == nil {
		return 0, 0
	}
	line, col = 1, 1
	limit := l.Pos
	if limit > len(l.Source.Text) {
		limit = len(l.Source.Text)
	}
	for _, b := range l.Source.Text[:limit] {
		if b == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

// Equal compares two Locations by their textual content, per spec: "Two
// Locations compare equal when their string contents compare equal."
func (l *Location) Equal(other *Location) bool {
	if l == nil || other == nil {
		return l == other
	}
	return l.Text() == other.Text()
}

func (l *Location) String() string {
	if l == nil || l.Source == nil {
		return "<generated>"
	}
	line, col := l.LineCol()
	return fmt.Sprintf("%s:%d:%d", l.Source.Name, line, col)
}
