package markdown

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

var (
	reATXHeading = regexp.MustCompile(`^ {0,3}#`)
	reFence      = regexp.MustCompile("^ {0,3}(`{3,}|~{3,})")
)

// converter turns goldmark AST into tokens.
type converter struct {
	src        []byte
	lineStarts []int
	hrLines    []int
	cursor     int
	level      int
	out        []*Token
}

func newConverter(src []byte) *converter {
	c := &converter{src: src, lineStarts: []int{0}}
	for i, b := range src {
		if b == '\n' {
			c.lineStarts = append(c.lineStarts, i+1)
		}
	}
	for i := range c.lineStarts {
		if isThematicBreak(c.line(i)) {
			c.hrLines = append(c.hrLines, i)
		}
	}
	return c
}

func isThematicBreak(line string) bool {
	if len(line)-len(strings.TrimLeft(line, " ")) > 3 {
		return false
	}
	marks := strings.Join(strings.Fields(line), "")
	if len(marks) < 3 || !strings.ContainsAny(marks[:1], "-*_") {
		return false
	}
	return strings.Count(marks, marks[:1]) == len(marks)
}

func (c *converter) lineOf(offset int) int {
	return sort.Search(len(c.lineStarts), func(i int) bool { return c.lineStarts[i] > offset }) - 1
}

func (c *converter) line(n int) string {
	if n < 0 || n >= len(c.lineStarts) {
		return ""
	}
	end := len(c.src)
	if n+1 < len(c.lineStarts) {
		end = c.lineStarts[n+1] - 1
	}
	return string(c.src[c.lineStarts[n]:end])
}

// lineRange returns [start, end) source lines covered by block node.
func (c *converter) lineRange(n ast.Node) (int, int, bool) {
	if n.Type() != ast.TypeBlock {
		return 0, 0, false
	}
	switch v := n.(type) {
	case *ast.FencedCodeBlock:
		return c.fenceRange(v)
	case *ast.HTMLBlock:
		start, end, ok := c.segmentsRange(v.Lines())
		if v.HasClosure() {
			cl := c.lineOf(v.ClosureLine.Start)
			if !ok {
				start = cl
			}
			end, ok = cl+1, true
		}
		return start, end, ok
	case *ast.Heading:
		start, end, ok := c.segmentsRange(v.Lines())
		if ok && !reATXHeading.MatchString(c.line(start)) {
			// setext underline
			end++
		}
		return start, end, ok
	}
	if start, end, ok := c.segmentsRange(n.Lines()); ok {
		return start, end, ok
	}

	var (
		start, end int
		found      bool
	)
	for ch := n.FirstChild(); ch != nil; ch = ch.NextSibling() {
		s, e, ok := c.lineRange(ch)
		if !ok {
			continue
		}
		if !found {
			start, found = s, true
		}
		end = max(end, e)
	}
	return start, end, found
}

func (c *converter) segmentsRange(lines *text.Segments) (int, int, bool) {
	if lines == nil || lines.Len() == 0 {
		return 0, 0, false
	}
	first, last := lines.At(0), lines.At(lines.Len()-1)
	stop := last.Stop - 1
	if stop < last.Start {
		stop = last.Start
	}
	return c.lineOf(first.Start), c.lineOf(stop) + 1, true
}

func (c *converter) fenceRange(n *ast.FencedCodeBlock) (int, int, bool) {
	var start int
	switch {
	case n.Info != nil:
		start = c.lineOf(n.Info.Segment.Start)
	case n.Lines().Len() > 0:
		start = c.lineOf(n.Lines().At(0).Start) - 1
	default:
		// empty fence without info, search from cursor
		start = c.cursor
		for start < len(c.lineStarts) && !reFence.MatchString(c.line(start)) {
			start++
		}
		if start >= len(c.lineStarts) {
			return 0, 0, false
		}
	}
	end := start + 1 + n.Lines().Len()
	if end < len(c.lineStarts) && reFence.MatchString(c.line(end)) {
		end++
	}
	return start, end, true
}

func (c *converter) push(t *Token) *Token {
	t.Block = true
	switch t.Nesting {
	case 1:
		t.Level = c.level
		c.level++
	case -1:
		c.level--
		t.Level = c.level
	default:
		t.Level = c.level
	}
	c.out = append(c.out, t)
	return t
}

func (c *converter) open(typ, tag, markup string, mp []int) *Token {
	t := NewToken(typ+"_open", tag, 1)
	t.Markup, t.Map = markup, mp
	return c.push(t)
}

func (c *converter) close(typ, tag, markup string) *Token {
	t := NewToken(typ+"_close", tag, -1)
	t.Markup = markup
	return c.push(t)
}

func (c *converter) inlineToken(n ast.Node, mp []int) *Token {
	t := NewToken("inline", "", 0)
	t.Content = strings.TrimSpace(string(n.Lines().Value(c.src)))
	t.Map = mp
	t.node = n
	return c.push(t)
}

func (c *converter) document(doc ast.Node) {
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		c.block(n, true)
	}
}

func (c *converter) mapOf(n ast.Node) []int {
	if start, end, ok := c.lineRange(n); ok {
		return []int{start, end}
	}
	return nil
}

func (c *converter) block(n ast.Node, top bool) {
	mp := c.mapOf(n)
	if top && mp != nil {
		defer func() { c.cursor = max(c.cursor, mp[1]) }()
	}

	switch v := n.(type) {
	case *ast.Paragraph:
		c.open("paragraph", "p", "", mp)
		c.inlineToken(v, mp)
		c.close("paragraph", "p", "")

	case *ast.TextBlock:
		c.open("paragraph", "p", "", mp).Hidden = true
		c.inlineToken(v, mp)
		c.close("paragraph", "p", "").Hidden = true

	case *ast.Heading:
		tag := "h" + strconv.Itoa(v.Level)
		markup := strings.Repeat("#", v.Level)
		if mp != nil && !reATXHeading.MatchString(c.line(mp[0])) {
			markup = "="
			if v.Level == 2 {
				markup = "-"
			}
		}
		c.open("heading", tag, markup, mp)
		c.inlineToken(v, mp)
		c.close("heading", tag, markup)

	case *ast.ThematicBreak:
		t := NewToken("hr", "hr", 0)
		t.Markup = "---"
		if top {
			for _, l := range c.hrLines {
				if l >= c.cursor {
					t.Map = []int{l, l + 1}
					t.Markup = strings.Join(strings.Fields(c.line(l)), "")
					c.cursor = l + 1
					break
				}
			}
		}
		c.push(t)

	case *ast.CodeBlock:
		t := NewToken("code_block", "code", 0)
		t.Content = string(v.Lines().Value(c.src))
		t.Map = mp
		c.push(t)

	case *ast.FencedCodeBlock:
		t := NewToken("fence", "code", 0)
		t.Content = string(v.Lines().Value(c.src))
		t.Map = mp
		t.Markup = "```"
		if mp != nil {
			if m := reFence.FindStringSubmatch(c.line(mp[0])); m != nil {
				t.Markup = m[1]
			}
		}
		if v.Info != nil {
			t.Info = strings.TrimSpace(string(unescape(v.Info.Segment.Value(c.src))))
		}
		c.push(t)

	case *ast.HTMLBlock:
		t := NewToken("html_block", "", 0)
		content := v.Lines().Value(c.src)
		if v.HasClosure() {
			content = append(content, v.ClosureLine.Value(c.src)...)
		}
		t.Content = string(content)
		t.Map = mp
		c.push(t)

	case *ast.Blockquote:
		c.open("blockquote", "blockquote", ">", mp)
		c.children(v)
		c.close("blockquote", "blockquote", ">")

	case *ast.List:
		typ, tag := "bullet_list", "ul"
		if v.IsOrdered() {
			typ, tag = "ordered_list", "ol"
		}
		markup := string(v.Marker)
		t := c.open(typ, tag, markup, mp)
		if v.IsOrdered() && v.Start != 1 {
			t.AttrSet("start", strconv.Itoa(v.Start))
		}
		num := v.Start
		for item := v.FirstChild(); item != nil; item = item.NextSibling() {
			it := c.open("list_item", "li", markup, c.mapOf(item))
			if v.IsOrdered() {
				it.Info = strconv.Itoa(num)
				num++
			}
			c.children(item)
			c.close("list_item", "li", markup)
		}
		c.close(typ, tag, markup)

	case *east.Table:
		c.table(v, mp)

	default:
		c.children(n)
	}
}

func (c *converter) children(n ast.Node) {
	for ch := n.FirstChild(); ch != nil; ch = ch.NextSibling() {
		c.block(ch, false)
	}
}

func (c *converter) table(tbl *east.Table, mp []int) {
	c.open("table", "table", "", mp)
	bodyOpen := false
	for row := tbl.FirstChild(); row != nil; row = row.NextSibling() {
		header := false
		switch row.(type) {
		case *east.TableHeader:
			header = true
			c.open("thead", "thead", "", c.mapOf(row))
		default:
			if !bodyOpen {
				c.open("tbody", "tbody", "", c.mapOf(row))
				bodyOpen = true
			}
		}

		c.open("tr", "tr", "", c.mapOf(row))
		cellTag := "td"
		if header {
			cellTag = "th"
		}
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			tc, ok := cell.(*east.TableCell)
			if !ok {
				continue
			}
			t := c.open(cellTag, cellTag, "", c.mapOf(cell))
			if tc.Alignment != east.AlignNone {
				t.AttrSet("style", "text-align:"+tc.Alignment.String())
			}
			c.inlineToken(tc, t.Map)
			c.close(cellTag, cellTag, "")
		}
		c.close("tr", "tr", "")

		if header {
			c.close("thead", "thead", "")
		}
	}
	if bodyOpen {
		c.close("tbody", "tbody", "")
	}
	c.close("table", "table", "")
}

// inlines converts inline children of the node.
func (c *converter) inlines(parent ast.Node) []*Token {
	var out []*Token
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		out = c.inline(n, out)
	}
	return out
}

func textToken(s string) *Token {
	t := NewToken("text", "", 0)
	t.Content = s
	return t
}

func appendText(out []*Token, s string) []*Token {
	if s == "" {
		return out
	}
	if l := len(out); l > 0 && out[l-1].Type == "text" {
		out[l-1].Content += s
		return out
	}
	return append(out, textToken(s))
}

func unescape(v []byte) []byte {
	return util.UnescapePunctuations(util.ResolveNumericReferences(util.ResolveEntityNames(v)))
}

func (c *converter) inline(n ast.Node, out []*Token) []*Token {
	switch v := n.(type) {
	case *ast.Text:
		val := v.Segment.Value(c.src)
		if !v.IsRaw() {
			val = unescape(val)
		}
		out = appendText(out, string(val))
		switch {
		case v.HardLineBreak():
			out = append(out, NewToken("hardbreak", "br", 0))
		case v.SoftLineBreak():
			out = append(out, NewToken("softbreak", "br", 0))
		}

	case *ast.String:
		out = appendText(out, string(v.Value))

	case *ast.CodeSpan:
		var b strings.Builder
		for ch := v.FirstChild(); ch != nil; ch = ch.NextSibling() {
			switch t := ch.(type) {
			case *ast.Text:
				b.Write(t.Segment.Value(c.src))
			case *ast.String:
				b.Write(t.Value)
			}
		}
		t := NewToken("code_inline", "code", 0)
		t.Content = b.String()
		t.Markup = "`"
		out = append(out, t)

	case *ast.Emphasis:
		typ, tag, markup := "em", "em", "*"
		if v.Level == 2 {
			typ, tag, markup = "strong", "strong", "**"
		}
		t := NewToken(typ+"_open", tag, 1)
		t.Markup = markup
		out = append(out, t)
		for ch := v.FirstChild(); ch != nil; ch = ch.NextSibling() {
			out = c.inline(ch, out)
		}
		t = NewToken(typ+"_close", tag, -1)
		t.Markup = markup
		out = append(out, t)

	case *ast.Link:
		t := NewToken("link_open", "a", 1)
		t.AttrSet("href", string(util.URLEscape(v.Destination, true)))
		if len(v.Title) > 0 {
			t.AttrSet("title", string(unescape(v.Title)))
		}
		out = append(out, t)
		for ch := v.FirstChild(); ch != nil; ch = ch.NextSibling() {
			out = c.inline(ch, out)
		}
		out = append(out, NewToken("link_close", "a", -1))

	case *ast.AutoLink:
		href := string(v.URL(c.src))
		if v.AutoLinkType == ast.AutoLinkEmail && !strings.HasPrefix(strings.ToLower(href), "mailto:") {
			href = "mailto:" + href
		}
		t := NewToken("link_open", "a", 1)
		t.AttrSet("href", string(util.URLEscape([]byte(href), false)))
		t.Markup = "autolink"
		out = append(out, t, textToken(string(v.Label(c.src))))
		t = NewToken("link_close", "a", -1)
		t.Markup = "autolink"
		out = append(out, t)

	case *ast.Image:
		t := NewToken("image", "img", 0)
		t.AttrSet("src", string(util.URLEscape(v.Destination, true)))
		t.AttrSet("alt", "")
		if len(v.Title) > 0 {
			t.AttrSet("title", string(unescape(v.Title)))
		}
		for ch := v.FirstChild(); ch != nil; ch = ch.NextSibling() {
			t.Children = c.inline(ch, t.Children)
		}
		t.Content = TextContent(t.Children)
		out = append(out, t)

	case *ast.RawHTML:
		t := NewToken("html_inline", "", 0)
		t.Content = string(v.Segments.Value(c.src))
		out = append(out, t)

	case *east.Strikethrough:
		t := NewToken("s_open", "s", 1)
		t.Markup = "~~"
		out = append(out, t)
		for ch := v.FirstChild(); ch != nil; ch = ch.NextSibling() {
			out = c.inline(ch, out)
		}
		t = NewToken("s_close", "s", -1)
		t.Markup = "~~"
		out = append(out, t)

	case *east.TaskCheckBox:
		t := NewToken("checkbox", "input", 0)
		t.AttrSet("type", "checkbox")
		t.AttrSet("disabled", "")
		if v.IsChecked {
			t.AttrSet("checked", "")
		}
		out = append(out, t)

	default:
		for ch := n.FirstChild(); ch != nil; ch = ch.NextSibling() {
			out = c.inline(ch, out)
		}
	}
	return out
}

// firstInlineContainer finds first block which holds inline content.
func firstInlineContainer(doc ast.Node) ast.Node {
	var found ast.Node
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if found != nil {
			return ast.WalkStop, nil
		}
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.(type) {
		case *ast.Paragraph, *ast.TextBlock, *ast.Heading:
			found = n
			return ast.WalkStop, nil
		case *ast.HTMLBlock, *ast.CodeBlock, *ast.FencedCodeBlock:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return found
}
