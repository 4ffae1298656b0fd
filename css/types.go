package css

import (
	"io"
	"strings"
)

// cssEscapeDoubleQuoted escapes a string for use inside CSS double quotes.
// Backslashes and double quotes are escaped per CSS syntax: \" and \\.
func cssEscapeDoubleQuoted(s string) string {
	// Fast path: nothing to escape.
	if !strings.ContainsAny(s, "\"\\\n") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\a `)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Quote returns s as a double quoted CSS string.
func Quote(s string) string {
	return `"` + cssEscapeDoubleQuoted(s) + `"`
}

// URL returns CSS url() function referencing s.
func URL(s string) string {
	return "url(" + Quote(s) + ")"
}

// Node is an element of the stylesheet tree.
type Node interface {
	node()
}

// Container is a node which holds child nodes.
type Container interface {
	Node
	Children() []Node
	SetChildren([]Node)
}

// Stylesheet is the root of the parsed CSS tree.
type Stylesheet struct {
	Nodes []Node
}

// Rule is a qualified rule: selector list and a block.
type Rule struct {
	Selectors []string
	Nodes     []Node
}

// AtRule is any at-rule, with or without block (@media, @import, @keyframes...).
type AtRule struct {
	Name     string // without leading '@'
	Params   string
	HasBlock bool
	Nodes    []Node
}

// Declaration is a single property declaration.
type Declaration struct {
	Property  string
	Value     string
	Important bool
}

// Comment keeps comment text without delimiters.
type Comment struct {
	Text string
}

func (*Stylesheet) node()  {}
func (*Rule) node()        {}
func (*AtRule) node()      {}
func (*Declaration) node() {}
func (*Comment) node()     {}

func (s *Stylesheet) Children() []Node        { return s.Nodes }
func (s *Stylesheet) SetChildren(nodes []Node) { s.Nodes = nodes }
func (r *Rule) Children() []Node              { return r.Nodes }
func (r *Rule) SetChildren(nodes []Node)      { r.Nodes = nodes }
func (a *AtRule) Children() []Node            { return a.Nodes }
func (a *AtRule) SetChildren(nodes []Node)    { a.Nodes = nodes }

// Selector returns the joined selector list.
func (r *Rule) Selector() string {
	return strings.Join(r.Selectors, ",")
}

// Decl returns the last declaration for the property (case insensitive).
func (r *Rule) Decl(prop string) *Declaration {
	var found *Declaration
	for _, n := range r.Nodes {
		if d, ok := n.(*Declaration); ok && strings.EqualFold(d.Property, prop) {
			found = d
		}
	}
	return found
}

// Append adds nodes to the end of the stylesheet.
func (s *Stylesheet) Append(nodes ...Node) {
	s.Nodes = append(s.Nodes, nodes...)
}

// Prepend adds nodes to the start of the stylesheet keeping their order.
func (s *Stylesheet) Prepend(nodes ...Node) {
	s.Nodes = append(append(make([]Node, 0, len(nodes)+len(s.Nodes)), nodes...), s.Nodes...)
}

// Clone makes a deep copy of the stylesheet.
func (s *Stylesheet) Clone() *Stylesheet {
	if s == nil {
		return nil
	}
	return &Stylesheet{Nodes: cloneNodes(s.Nodes)}
}

func cloneNodes(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, CloneNode(n))
	}
	return out
}

// CloneNode makes a deep copy of a single node.
func CloneNode(n Node) Node {
	switch v := n.(type) {
	case *Stylesheet:
		return v.Clone()
	case *Rule:
		return &Rule{Selectors: append([]string(nil), v.Selectors...), Nodes: cloneNodes(v.Nodes)}
	case *AtRule:
		return &AtRule{Name: v.Name, Params: v.Params, HasBlock: v.HasBlock, Nodes: cloneNodes(v.Nodes)}
	case *Declaration:
		c := *v
		return &c
	case *Comment:
		c := *v
		return &c
	}
	return n
}

// WriteTo serializes stylesheet to w. Output is deterministic: one top level
// node per line, blocks written compactly.
func (s *Stylesheet) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	for i, n := range s.Nodes {
		if i > 0 {
			b.WriteByte('\n')
		}
		writeNode(&b, n)
	}
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// String returns serialized stylesheet.
func (s *Stylesheet) String() string {
	var b strings.Builder
	_, _ = s.WriteTo(&b)
	return b.String()
}

// NodeString serializes a single node.
func NodeString(n Node) string {
	var b strings.Builder
	writeNode(&b, n)
	return b.String()
}

func writeNode(b *strings.Builder, n Node) {
	switch v := n.(type) {
	case *Stylesheet:
		for i, c := range v.Nodes {
			if i > 0 {
				b.WriteByte('\n')
			}
			writeNode(b, c)
		}
	case *Rule:
		b.WriteString(v.Selector())
		writeBlock(b, v.Nodes)
	case *AtRule:
		b.WriteByte('@')
		b.WriteString(v.Name)
		if v.Params != "" {
			b.WriteByte(' ')
			b.WriteString(v.Params)
		}
		if v.HasBlock {
			writeBlock(b, v.Nodes)
		} else {
			b.WriteByte(';')
		}
	case *Declaration:
		b.WriteString(v.Property)
		b.WriteByte(':')
		b.WriteString(v.Value)
		if v.Important {
			b.WriteString(" !important")
		}
		b.WriteByte(';')
	case *Comment:
		b.WriteString("/*")
		b.WriteString(v.Text)
		b.WriteString("*/")
	}
}

func writeBlock(b *strings.Builder, nodes []Node) {
	b.WriteByte('{')
	for _, c := range nodes {
		writeNode(b, c)
	}
	b.WriteByte('}')
}
