package deck

import (
	"strings"

	"mdeck/directive"
	"mdeck/markdown"
)

func elementTokens(typ string, e Element) (open, close *markdown.Token) {
	open = markdown.NewToken(typ+"_open", e.Tag, 1)
	open.Block = true
	if classes := strings.Fields(e.Class); len(classes) > 0 {
		seen := make(map[string]bool, len(classes))
		uniq := classes[:0]
		for _, c := range classes {
			if !seen[c] {
				seen[c] = true
				uniq = append(uniq, c)
			}
		}
		open.AttrSet("class", strings.Join(uniq, " "))
	}
	if e.ID != "" {
		open.AttrSet("id", e.ID)
	}
	close = markdown.NewToken(typ+"_close", e.Tag, -1)
	close.Block = true
	return open, close
}

// wrap surrounds tokens with elements, first element is outermost.
func wrap(typ string, elements []Element, tokens []*markdown.Token) []*markdown.Token {
	if len(elements) == 0 {
		return tokens
	}
	opens := make([]*markdown.Token, 0, len(elements))
	closes := make([]*markdown.Token, len(elements))
	for i, e := range elements {
		open, close := elementTokens(typ, e)
		opens = append(opens, open)
		closes[len(elements)-1-i] = close
	}
	out := make([]*markdown.Token, 0, len(tokens)+2*len(elements))
	out = append(out, opens...)
	out = append(out, tokens...)
	return append(out, closes...)
}

// splitChunks splits token stream into balanced top level parts.
func splitChunks(tokens []*markdown.Token) [][]*markdown.Token {
	var chunks [][]*markdown.Token
	start, depth := 0, 0
	for i, t := range tokens {
		depth += t.Nesting
		if depth == 0 {
			chunks = append(chunks, tokens[start:i+1])
			start = i + 1
		}
	}
	if start < len(tokens) {
		chunks = append(chunks, tokens[start:])
	}
	return chunks
}

// inlineSVG wraps every slide into svg > foreignObject sized by theme.
func (d *Deck) inlineSVG(s *markdown.State) error {
	if !d.opts.InlineSVG.Enabled {
		return nil
	}
	w, h := d.opts.Themes.PixelSize(envOf(s).global[directive.Theme])
	width, height := formatFloat(w), formatFloat(h)

	out := make([]*markdown.Token, 0, len(s.Tokens)+4*len(envOf(s).slides))
	for _, t := range s.Tokens {
		switch slideElement(t) {
		case 1:
			svg := markdown.NewToken("marpit_inline_svg_open", "svg", 1)
			svg.Block = true
			svg.AttrSet("data-marpit-svg", "")
			svg.AttrSet("viewBox", "0 0 "+width+" "+height)
			fo := markdown.NewToken("marpit_inline_svg_content_open", "foreignObject", 1)
			fo.Block = true
			fo.AttrSet("width", width)
			fo.AttrSet("height", height)
			out = append(out, svg, fo, t)
		case -1:
			fo := markdown.NewToken("marpit_inline_svg_content_close", "foreignObject", -1)
			fo.Block = true
			svg := markdown.NewToken("marpit_inline_svg_close", "svg", -1)
			svg.Block = true
			out = append(out, t, fo, svg)
		default:
			out = append(out, t)
		}
	}
	s.Tokens = out
	return nil
}

// slideContainers wraps every slide (with its svg wrapper) into slide
// containers.
func (d *Deck) slideContainers(s *markdown.State) error {
	if len(d.opts.SlideContainers) == 0 {
		return nil
	}
	out := make([]*markdown.Token, 0, len(s.Tokens))
	for _, chunk := range splitChunks(s.Tokens) {
		out = append(out, wrap("marpit_slide_containers", d.opts.SlideContainers, chunk)...)
	}
	s.Tokens = out
	return nil
}

// containers records per slide chunks and wraps the whole deck.
func (d *Deck) containers(s *markdown.State) error {
	envOf(s).chunks = splitChunks(s.Tokens)
	s.Tokens = wrap("marpit_containers", d.opts.Containers, s.Tokens)
	return nil
}
