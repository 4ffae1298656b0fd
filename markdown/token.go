package markdown

import (
	"strings"

	"github.com/yuin/goldmark/ast"
)

// Attr is a single token attribute.
type Attr struct {
	Name  string
	Value string
}

// Token is a node of the flat token stream. Block level tokens form
// open/close pairs (Nesting 1 and -1), self closing tokens have Nesting 0.
// Inline content is kept in Children of "inline" tokens.
type Token struct {
	Type     string
	Tag      string
	Nesting  int
	Attrs    []Attr
	Map      []int // [start, end) zero based source lines, may be nil
	Level    int
	Children []*Token
	Content  string
	Markup   string
	Info     string
	Meta     map[string]any
	Block    bool
	Hidden   bool

	// parsed inline content waiting for the inline rule
	node ast.Node
}

// NewToken creates a token.
func NewToken(typ, tag string, nesting int) *Token {
	return &Token{Type: typ, Tag: tag, Nesting: nesting}
}

// AttrIndex returns index of the attribute or -1.
func (t *Token) AttrIndex(name string) int {
	for i, a := range t.Attrs {
		if a.Name == name {
			return i
		}
	}
	return -1
}

// AttrGet returns attribute value.
func (t *Token) AttrGet(name string) (string, bool) {
	if i := t.AttrIndex(name); i >= 0 {
		return t.Attrs[i].Value, true
	}
	return "", false
}

// AttrSet sets attribute value, existing attribute keeps its position.
func (t *Token) AttrSet(name, value string) {
	if i := t.AttrIndex(name); i >= 0 {
		t.Attrs[i].Value = value
		return
	}
	t.Attrs = append(t.Attrs, Attr{Name: name, Value: value})
}

// AttrJoin appends value to the attribute separated by space.
func (t *Token) AttrJoin(name, value string) {
	if i := t.AttrIndex(name); i >= 0 && t.Attrs[i].Value != "" {
		t.Attrs[i].Value += " " + value
		return
	}
	t.AttrSet(name, value)
}

// AttrDel removes attribute.
func (t *Token) AttrDel(name string) {
	if i := t.AttrIndex(name); i >= 0 {
		t.Attrs = append(t.Attrs[:i], t.Attrs[i+1:]...)
	}
}

// SetMeta stores value in token metadata.
func (t *Token) SetMeta(key string, value any) {
	if t.Meta == nil {
		t.Meta = make(map[string]any)
	}
	t.Meta[key] = value
}

// HasMeta reports if metadata key is present.
func (t *Token) HasMeta(key string) bool {
	_, ok := t.Meta[key]
	return ok
}

// MetaValue returns typed metadata value.
func MetaValue[T any](t *Token, key string) (T, bool) {
	var zero T
	if t == nil || t.Meta == nil {
		return zero, false
	}
	v, ok := t.Meta[key].(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// Clone makes a copy of the token. Attributes, map and children are copied,
// metadata map is shallow copied.
func (t *Token) Clone() *Token {
	c := *t
	c.Attrs = append([]Attr(nil), t.Attrs...)
	if t.Map != nil {
		c.Map = append([]int(nil), t.Map...)
	}
	if t.Children != nil {
		c.Children = make([]*Token, 0, len(t.Children))
		for _, ch := range t.Children {
			c.Children = append(c.Children, ch.Clone())
		}
	}
	if t.Meta != nil {
		c.Meta = make(map[string]any, len(t.Meta))
		for k, v := range t.Meta {
			c.Meta[k] = v
		}
	}
	return &c
}

// Is reports if token type is one of the types.
func (t *Token) Is(types ...string) bool {
	for _, typ := range types {
		if t.Type == typ {
			return true
		}
	}
	return false
}

// IsOpen reports if token is opening token of block type, prefix is type
// without "_open".
func (t *Token) IsOpen(prefix string) bool {
	return t.Nesting == 1 && t.Type == prefix+"_open"
}

// IsClose reports if token is closing token of block type.
func (t *Token) IsClose(prefix string) bool {
	return t.Nesting == -1 && t.Type == prefix+"_close"
}

// TextContent returns concatenated content of text-like children, used for
// alt text and slugs.
func TextContent(children []*Token) string {
	var b strings.Builder
	for _, c := range children {
		switch c.Type {
		case "text", "code_inline":
			b.WriteString(c.Content)
		case "image":
			b.WriteString(TextContent(c.Children))
		case "softbreak", "hardbreak":
			b.WriteByte('\n')
		}
	}
	return b.String()
}
