package markdown

import (
	"strings"

	"github.com/yuin/goldmark/util"
)

// RenderFunc renders token at idx.
type RenderFunc func(r *Renderer, tokens []*Token, idx int, b *strings.Builder)

// Renderer produces HTML from token stream. Rules are keyed by token type,
// tokens without rule are rendered by RenderToken. Hidden tokens are never
// rendered.
type Renderer struct {
	Rules map[string]RenderFunc
	// HTML allows raw HTML tokens to pass through, when off they are
	// escaped.
	HTML bool
	// Breaks renders soft breaks as <br>.
	Breaks bool
	// XHTML closes void elements.
	XHTML bool
}

// NewRenderer creates renderer with default rules.
func NewRenderer() *Renderer {
	return &Renderer{
		Rules: map[string]RenderFunc{
			"text":        renderText,
			"code_inline": renderCodeInline,
			"code_block":  renderCodeBlock,
			"fence":       renderFence,
			"image":       renderImage,
			"hardbreak":   renderHardbreak,
			"softbreak":   renderSoftbreak,
			"html_block":  renderHTMLBlock,
			"html_inline": renderHTMLInline,
		},
	}
}

// Escape escapes text for HTML output.
func Escape(s string) string {
	return string(util.EscapeHTML([]byte(s)))
}

// Render renders block tokens.
func (r *Renderer) Render(tokens []*Token) string {
	var b strings.Builder
	for i, t := range tokens {
		if t.Hidden {
			continue
		}
		if t.Type == "inline" {
			r.renderInline(t.Children, &b)
			continue
		}
		r.renderAt(tokens, i, &b)
	}
	return b.String()
}

// RenderInline renders inline tokens.
func (r *Renderer) RenderInline(tokens []*Token) string {
	var b strings.Builder
	r.renderInline(tokens, &b)
	return b.String()
}

func (r *Renderer) renderInline(tokens []*Token, b *strings.Builder) {
	for i := range tokens {
		r.renderAt(tokens, i, b)
	}
}

func (r *Renderer) renderAt(tokens []*Token, idx int, b *strings.Builder) {
	if tokens[idx].Hidden {
		return
	}
	if fn, ok := r.Rules[tokens[idx].Type]; ok {
		fn(r, tokens, idx, b)
		return
	}
	r.RenderToken(tokens, idx, b)
}

// RenderAttrs renders token attributes with leading spaces.
func (r *Renderer) RenderAttrs(t *Token) string {
	var b strings.Builder
	for _, a := range t.Attrs {
		b.WriteByte(' ')
		b.WriteString(Escape(a.Name))
		b.WriteString(`="`)
		b.WriteString(Escape(a.Value))
		b.WriteByte('"')
	}
	return b.String()
}

// RenderToken is the default rule: tag with attributes, block tokens get
// line feeds.
func (r *Renderer) RenderToken(tokens []*Token, idx int, b *strings.Builder) {
	t := tokens[idx]
	if t.Hidden {
		return
	}
	if t.Block && t.Nesting != -1 && idx > 0 && tokens[idx-1].Hidden {
		b.WriteByte('\n')
	}
	if t.Nesting == -1 {
		b.WriteString("</")
	} else {
		b.WriteByte('<')
	}
	b.WriteString(t.Tag)
	b.WriteString(r.RenderAttrs(t))
	if t.Nesting == 0 && r.XHTML {
		b.WriteString(" /")
	}

	needLF := false
	if t.Block {
		needLF = true
		if t.Nesting == 1 && idx+1 < len(tokens) {
			next := tokens[idx+1]
			switch {
			case next.Type == "inline" || next.Hidden:
				needLF = false
			case next.Nesting == -1 && next.Tag == t.Tag:
				needLF = false
			}
		}
	}
	if needLF {
		b.WriteString(">\n")
	} else {
		b.WriteByte('>')
	}
}

// RenderInlineAsText renders inline tokens as plain text, used for
// attributes like image alt.
func (r *Renderer) RenderInlineAsText(tokens []*Token) string {
	var b strings.Builder
	for _, t := range tokens {
		switch t.Type {
		case "text", "code_inline":
			b.WriteString(t.Content)
		case "image":
			b.WriteString(r.RenderInlineAsText(t.Children))
		case "softbreak", "hardbreak":
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func renderText(_ *Renderer, tokens []*Token, idx int, b *strings.Builder) {
	b.WriteString(Escape(tokens[idx].Content))
}

func renderCodeInline(r *Renderer, tokens []*Token, idx int, b *strings.Builder) {
	t := tokens[idx]
	b.WriteString("<code")
	b.WriteString(r.RenderAttrs(t))
	b.WriteByte('>')
	b.WriteString(Escape(t.Content))
	b.WriteString("</code>")
}

func renderCodeBlock(r *Renderer, tokens []*Token, idx int, b *strings.Builder) {
	t := tokens[idx]
	b.WriteString("<pre")
	b.WriteString(r.RenderAttrs(t))
	b.WriteString("><code>")
	b.WriteString(Escape(t.Content))
	b.WriteString("</code></pre>\n")
}

func renderFence(r *Renderer, tokens []*Token, idx int, b *strings.Builder) {
	t := tokens[idx]
	lang := ""
	if f := strings.Fields(t.Info); len(f) > 0 {
		lang = f[0]
	}
	attrs := t
	if lang != "" {
		attrs = t.Clone()
		attrs.AttrJoin("class", "language-"+lang)
	}
	b.WriteString("<pre><code")
	b.WriteString(r.RenderAttrs(attrs))
	b.WriteByte('>')
	b.WriteString(Escape(t.Content))
	b.WriteString("</code></pre>\n")
}

func renderImage(r *Renderer, tokens []*Token, idx int, b *strings.Builder) {
	t := tokens[idx].Clone()
	t.AttrSet("alt", r.RenderInlineAsText(t.Children))
	r.RenderToken([]*Token{t}, 0, b)
}

func renderHardbreak(r *Renderer, _ []*Token, _ int, b *strings.Builder) {
	if r.XHTML {
		b.WriteString("<br />\n")
		return
	}
	b.WriteString("<br>\n")
}

func renderSoftbreak(r *Renderer, tokens []*Token, idx int, b *strings.Builder) {
	if r.Breaks {
		renderHardbreak(r, tokens, idx, b)
		return
	}
	b.WriteByte('\n')
}

func renderHTMLBlock(r *Renderer, tokens []*Token, idx int, b *strings.Builder) {
	if r.HTML {
		b.WriteString(tokens[idx].Content)
		return
	}
	b.WriteString(Escape(tokens[idx].Content))
}

func renderHTMLInline(r *Renderer, tokens []*Token, idx int, b *strings.Builder) {
	if r.HTML {
		b.WriteString(tokens[idx].Content)
		return
	}
	b.WriteString(Escape(tokens[idx].Content))
}
