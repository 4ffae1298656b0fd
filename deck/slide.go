package deck

import (
	"slices"
	"strconv"
	"strings"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"mdeck/directive"
	"mdeck/markdown"
)

// slideElement returns 1 for slide open token, -1 for slide close token and
// 0 for anything else.
func slideElement(t *markdown.Token) int {
	v, _ := markdown.MetaValue[int](t, metaSlideElement)
	return v
}

// HeadingAnchor is AnchorFunc which uses slug of the first heading as slide
// id, falling back to slide number.
func HeadingAnchor(index int, tokens []*markdown.Token) string {
	for i, t := range tokens {
		if t.Type != "heading_open" || i+1 >= len(tokens) || tokens[i+1].Type != "inline" {
			continue
		}
		if id := slug.Make(markdown.TextContent(tokens[i+1].Children)); id != "" {
			return id
		}
		break
	}
	return defaultAnchor(index, tokens)
}

// sweep hides HTML blocks and inline content made of whitespace only.
func sweep(s *markdown.State) error {
	for _, t := range s.Tokens {
		switch t.Type {
		case "html_block":
			if strings.TrimSpace(t.Content) == "" {
				t.Hidden = true
			}
		case "inline":
			if blankInline(t.Children) {
				t.Hidden = true
			}
		}
	}
	return nil
}

func blankInline(children []*markdown.Token) bool {
	for _, c := range children {
		switch {
		case c.Hidden, c.Type == "softbreak":
		case c.Type == "text" && strings.TrimSpace(c.Content) == "":
		default:
			return false
		}
	}
	return true
}

// sweepParagraph hides paragraphs without visible content.
func sweepParagraph(s *markdown.State) error {
	type frame struct {
		open    *markdown.Token
		visible bool
	}
	var stack []frame
	for _, t := range s.Tokens {
		switch t.Type {
		case "paragraph_open":
			stack = append(stack, frame{open: t})
		case "paragraph_close":
			if len(stack) == 0 {
				continue
			}
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !f.visible {
				f.open.Hidden, t.Hidden = true, true
			}
		default:
			if len(stack) > 0 && !t.Hidden {
				stack[len(stack)-1].visible = true
			}
		}
	}
	return nil
}

func headingLevel(t *markdown.Token) int {
	if len(t.Tag) != 2 || t.Tag[0] != 'h' {
		return 0
	}
	n, _ := strconv.Atoi(t.Tag[1:])
	return n
}

// headingDivider inserts hidden slide separators before top level headings
// of configured levels. Separator is not inserted when there is no visible
// content since previous separator.
func (d *Deck) headingDivider(s *markdown.State) error {
	levels := d.opts.HeadingDivider
	if v, ok := envOf(s).global[directive.HeadingDivider]; ok {
		parsed, err := directive.ParseHeadingDivider(v)
		if err != nil {
			d.log.Warn("Bad headingDivider directive", zap.String("value", v), zap.Error(err))
		} else {
			levels = parsed
		}
	}
	if len(levels) == 0 {
		return nil
	}

	out := make([]*markdown.Token, 0, len(s.Tokens)+8)
	visible := false
	for _, t := range s.Tokens {
		switch {
		case t.Type == "hr" && t.Level == 0:
			visible = false
		case t.Type == "heading_open" && t.Level == 0 && slices.Contains(levels, headingLevel(t)):
			if visible {
				hr := markdown.NewToken("hr", "hr", 0)
				hr.Block, hr.Hidden = true, true
				hr.Markup = "heading_divider"
				if t.Map != nil {
					hr.Map = append([]int(nil), t.Map...)
				}
				out = append(out, hr)
			}
			visible = true
		case !t.Hidden:
			visible = true
		}
		out = append(out, t)
	}
	s.Tokens = out
	return nil
}

// slide splits token stream on top level thematic breaks and wraps every
// part into slide element.
func (d *Deck) slide(s *markdown.State) error {
	env := envOf(s)

	var (
		groups  [][]*markdown.Token
		markers []*markdown.Token
		cur     []*markdown.Token
	)
	for _, t := range s.Tokens {
		if t.Type == "hr" && t.Level == 0 {
			groups, cur = append(groups, cur), nil
			markers = append(markers, t)
			continue
		}
		cur = append(cur, t)
	}
	groups = append(groups, cur)
	total := len(groups)

	out := make([]*markdown.Token, 0, len(s.Tokens)+2*total)
	env.slides = make([]*markdown.Token, 0, total)
	for i, g := range groups {
		mp := []int{0, 1}
		if i > 0 && markers[i-1].Map != nil {
			mp = append([]int(nil), markers[i-1].Map...)
		} else if j := slices.IndexFunc(g, func(t *markdown.Token) bool { return t.Map != nil }); j >= 0 {
			mp = append([]int(nil), g[j].Map...)
		}

		open := markdown.NewToken("marpit_slide_open", "section", 1)
		open.Block, open.Map = true, mp
		open.SetMeta(metaSlideElement, 1)
		open.SetMeta(metaSlide, i)
		open.SetMeta(metaSlideTotal, total)
		if !d.opts.DisableAnchor {
			if id := d.opts.Anchor(i, g); id != "" {
				open.AttrSet("id", id)
			}
		}

		close := markdown.NewToken("marpit_slide_close", "section", -1)
		close.Block = true
		close.SetMeta(metaSlideElement, -1)
		close.SetMeta(metaSlide, i)
		close.SetMeta(metaSlideTotal, total)

		out = append(out, open)
		out = append(out, g...)
		out = append(out, close)
		env.slides = append(env.slides, open)
	}
	s.Tokens = out
	return nil
}
