package markdown

import (
	"mdeck/utils/debug"
)

// Dump produces readable token tree for debug reports. Nesting of block
// tokens is shown by indentation.
func Dump(tokens []*Token) string {
	tw := debug.NewTreeWriter()
	dumpTokens(tw, tokens, 0)
	return tw.String()
}

func dumpTokens(tw *debug.TreeWriter, tokens []*Token, depth int) {
	for _, t := range tokens {
		if t.Nesting == -1 && depth > 0 {
			depth--
		}
		hidden := ""
		if t.Hidden {
			hidden = " hidden"
		}
		tw.Line(depth, "%s <%s> map=%v%s", t.Type, t.Tag, t.Map, hidden)
		for _, a := range t.Attrs {
			tw.Line(depth+1, "@%s=%q", a.Name, a.Value)
		}
		tw.Map(depth+1, "meta", t.Meta)
		if t.Type != "inline" {
			tw.TextBlock(depth+1, "content", t.Content)
		}
		if len(t.Children) > 0 {
			dumpTokens(tw, t.Children, depth+1)
		}
		if t.Nesting == 1 {
			depth++
		}
	}
}
