package ast

import "strings"

// Node is the universal AST datum. Structural polymorphism is by Tag,
// never by a Go type hierarchy: every stage of the pipeline, from the raw
// parse tree through the canonical module AST, is represented with this
// one type. Children are held by an ordinary Go slice of pointers; Go's
// tracing garbage collector makes the non-owning Parent back-reference
// safe without manual reference counting or weak pointers: a Node
// reachable only through its parent's child slice, with no other root
// reaching it, is still collected even though parent<->child forms a
// cycle of pointers.
type Node struct {
	tag      Tag
	loc      *Location
	children []*Node
	parent   *Node

	// text holds the literal lexeme for terminal nodes (Ident, Int,
	// String, Operator, Keyword, ...). Non-terminal nodes leave it empty
	// and carry their payload entirely through children.
	text string
}

// NewNode returns a fresh Node with the given tag and no children.
func NewNode(tag Tag, loc *Location) *Node {
	return &Node{tag: tag, loc: loc}
}

// NewLeaf returns a fresh terminal Node carrying literal text.
func NewLeaf(tag Tag, loc *Location, text string) *Node {
	return &Node{tag: tag, loc: loc, text: text}
}

// Tag returns the node's tag.
func (n *Node) Tag() Tag { return n.tag }

// Location returns the node's source location, or nil if synthesised
// without one (some rewrite-minted nodes inherit their operand's location
// instead; callers that need a location should fall back up the tree).
func (n *Node) Location() *Location { return n.loc }

// SetLocation overwrites the node's location. Used by passes that splice
// in a node built elsewhere but want diagnostics to point at the original
// surface syntax.
func (n *Node) SetLocation(loc *Location) { n.loc = loc }

// Text returns the terminal lexeme, or "" for non-terminal nodes.
func (n *Node) Text() string { return n.text }

// SetText overwrites the terminal lexeme.
func (n *Node) SetText(s string) { n.text = s }

// Parent returns the node's non-owning back-reference, or nil at the root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the node's children in order. Callers must not mutate
// the returned slice; use Append/Insert/ReplaceAt/RemoveAt instead so the
// parent back-reference invariant is maintained.
func (n *Node) Children() []*Node { return n.children }

// Child returns the i'th child, or nil if out of range.
func (n *Node) Child(i int) *Node {
	if i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i]
}

// Len returns the number of children.
func (n *Node) Len() int { return len(n.children) }

// Append adds a child at the end, adopting it (clearing any previous
// parent link on the child — this lifts/moves a subtree cheaply: the
// subtree itself is not copied, only re-parented).
func (n *Node) Append(children ...*Node) *Node {
	for _, c := range children {
		if c == nil {
			continue
		}
		c.parent = n
		n.children = append(n.children, c)
	}
	return n
}

// Insert places child at index i, shifting subsequent children right.
func (n *Node) Insert(i int, child *Node) {
	child.parent = n
	n.children = append(n.children, nil)
	copy(n.children[i+1:], n.children[i:])
	n.children[i] = child
}

// ReplaceAt swaps the child at index i for a new subtree.
func (n *Node) ReplaceAt(i int, child *Node) {
	child.parent = n
	n.children[i] = child
}

// RemoveAt deletes the child at index i.
func (n *Node) RemoveAt(i int) {
	n.children = append(n.children[:i], n.children[i+1:]...)
}

// Find returns the first direct child with the given tag, or nil.
func (n *Node) Find(tag Tag) *Node {
	for _, c := range n.children {
		if c.tag == tag {
			return c
		}
	}
	return nil
}

// FindAll returns every direct child with the given tag.
func (n *Node) FindAll(tag Tag) []*Node {
	var out []*Node
	for _, c := range n.children {
		if c.tag == tag {
			out = append(out, c)
		}
	}
	return out
}

// Clone makes a deep structural copy of the subtree rooted at n; the
// copy shares no nodes with the original.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	cp := &Node{tag: n.tag, loc: n.loc, text: n.text}
	for _, c := range n.children {
		cp.Append(c.Clone())
	}
	return cp
}

// Root walks up Parent links to the tree root.
func (n *Node) Root() *Node {
	cur := n
	for cur.parent != nil {
		cur = cur.parent
	}
	return cur
}

// Walk performs a pre-order traversal of the subtree rooted at n, calling
// visit for every node including n itself. If visit returns false, the
// node's children are skipped but the traversal continues elsewhere.
func Walk(n *Node, visit func(*Node) bool) {
	if n == nil {
		return
	}
	if !visit(n) {
		return
	}
	for _, c := range n.children {
		Walk(c, visit)
	}
}

// Transform performs a post-order rewrite: fn is applied bottom-up, and
// each node's children are rebuilt from fn's replacements before fn is
// applied to the node itself. Returning nil drops the node (and, if it
// was a child, removes it from its parent's child list).
func Transform(n *Node, fn func(*Node) (*Node, error)) (*Node, error) {
	if n == nil {
		return nil, nil
	}
	var newChildren []*Node
	for _, c := range n.children {
		rc, err := Transform(c, fn)
		if err != nil {
			return nil, err
		}
		if rc != nil {
			newChildren = append(newChildren, rc)
		}
	}
	n.children = nil
	n.Append(newChildren...)
	return fn(n)
}

// Dump renders a compact s-expression form, for diagnostics and tests.
func (n *Node) Dump() string {
	var b strings.Builder
	n.dump(&b, 0)
	return b.String()
}

func (n *Node) dump(b *strings.Builder, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(n.tag.String())
	if n.text != "" {
		b.WriteString("(")
		b.WriteString(n.text)
		b.WriteString(")")
	}
	b.WriteByte('\n')
	for _, c := range n.children {
		c.dump(b, depth+1)
	}
}
