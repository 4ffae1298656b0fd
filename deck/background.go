package deck

import (
	"cmp"
	"strconv"
	"strings"

	"mdeck/css"
	"mdeck/directive"
	"mdeck/markdown"
)

// Advanced background layer names.
const (
	layerBackground = "background"
	layerContent    = "content"
	layerPseudo     = "pseudo"
)

// BackgroundImage is a single background image of slide.
type BackgroundImage struct {
	URL    string
	Size   string
	Width  string
	Height string
	Filter string
	Alt    string
}

// Background collects background images of slide.
type Background struct {
	Images []BackgroundImage
	// Advanced is set when images are rendered as separate layer, otherwise
	// the last image is applied with CSS.
	Advanced  bool
	Direction string
	Split     string
	SplitSize string
}

// applyBackgroundImage assigns background images to slides. With inline SVG
// images are collected for advanced rendering, otherwise the last image
// becomes backgroundImage spot directive.
func applyBackgroundImage(s *markdown.State) error {
	var (
		svg  *markdown.Token
		open *markdown.Token
		bg   *Background
	)
	for _, t := range s.Tokens {
		switch {
		case t.Type == "marpit_inline_svg_content_open":
			svg = t
			continue
		case slideElement(t) == 1:
			open, bg = t, &Background{Advanced: svg != nil}
			continue
		case slideElement(t) == -1:
			if len(bg.Images) > 0 {
				open.SetMeta(metaBackground, bg)
				if svg != nil {
					svg.SetMeta(metaBackground, bg)
				}
			}
			svg, open, bg = nil, nil, nil
			continue
		case open == nil || t.Type != "inline":
			continue
		}

		for _, c := range t.Children {
			img := imageOf(c)
			if img == nil || !img.Background || strings.TrimSpace(img.URL) == "" {
				continue
			}
			bg.Images = append(bg.Images, BackgroundImage{
				URL:    img.URL,
				Size:   img.CSSSize(),
				Width:  img.Width,
				Height: img.Height,
				Filter: img.FilterChain(),
				Alt:    c.Content,
			})
			if img.Direction != "" {
				bg.Direction = img.Direction
			}
			if img.Split != "" {
				bg.Split, bg.SplitSize = img.Split, img.SplitSize
			}
			if bg.Advanced {
				continue
			}

			dirs := directivesOf(open).Clone()
			dirs[directive.BackgroundImage] = css.URL(img.URL)
			if size := img.CSSSize(); size != "" {
				dirs[directive.BackgroundSize] = size
			}
			open.SetMeta(metaDirectives, dirs)
		}
	}
	return nil
}

func figure(img BackgroundImage) []*markdown.Token {
	style := css.NewInlineStyle("").Set("background-image", css.URL(img.URL))
	if img.Size != "" {
		style.Set("background-size", img.Size)
	}
	if img.Filter != "" {
		style.Set("filter", img.Filter)
	}

	open := markdown.NewToken("marpit_advanced_background_image_open", "figure", 1)
	open.Block = true
	open.AttrSet("style", style.String())
	out := []*markdown.Token{open}

	if alt := strings.TrimSpace(img.Alt); alt != "" {
		caption := markdown.NewToken("marpit_advanced_background_figcaption_open", "figcaption", 1)
		caption.Block = true
		text := markdown.NewToken("text", "", 0)
		text.Content = alt
		inline := markdown.NewToken("inline", "", 0)
		inline.Children = []*markdown.Token{text}
		end := markdown.NewToken("marpit_advanced_background_figcaption_close", "figcaption", -1)
		end.Block = true
		out = append(out, caption, inline, end)
	}

	end := markdown.NewToken("marpit_advanced_background_image_close", "figure", -1)
	end.Block = true
	return append(out, end)
}

// layer returns foreignObject and section pair copying attributes of slide
// element.
func layer(name, width, height string, slide *markdown.Token) (open, section *markdown.Token) {
	open = markdown.NewToken("marpit_advanced_background_foreign_object_open", "foreignObject", 1)
	open.Block = true
	open.AttrSet("width", width)
	open.AttrSet("height", height)

	section = slide.Clone()
	section.Type = "marpit_advanced_background_section_open"
	section.Children, section.Meta = nil, nil
	section.AttrDel("id")
	section.AttrSet("data-marpit-advanced-background", name)
	return open, section
}

func closeLayer() []*markdown.Token {
	section := markdown.NewToken("marpit_advanced_background_section_close", "section", -1)
	section.Block = true
	fo := markdown.NewToken("marpit_advanced_background_foreign_object_close", "foreignObject", -1)
	fo.Block = true
	return []*markdown.Token{section, fo}
}

// advancedBackground renders collected background images as separate layer
// behind slide content and adds pseudo layer on top of it for generated
// content.
func advancedBackground(s *markdown.State) error {
	out := make([]*markdown.Token, 0, len(s.Tokens))
	var pseudo []*markdown.Token
	for i, t := range s.Tokens {
		switch {
		case t.Type == "marpit_inline_svg_content_open" && t.HasMeta(metaBackground):
			bg, _ := markdown.MetaValue[*Background](t, metaBackground)
			slide := nextSlide(s.Tokens[i+1:])
			if slide == nil {
				out = append(out, t)
				continue
			}
			width, _ := t.AttrGet("width")
			height, _ := t.AttrGet("height")

			slide.AttrSet("data-marpit-advanced-background", layerContent)
			if bg.Split != "" {
				size := cmp.Or(bg.SplitSize, "50%")
				pct, _ := strconv.ParseFloat(strings.TrimSuffix(size, "%"), 64)
				slide.AttrSet("data-marpit-advanced-background-split", bg.Split)
				t.AttrSet("width", formatFloat(100-pct)+"%")
				if bg.Split == "left" {
					t.AttrSet("x", size)
				}
				attr, _ := slide.AttrGet("style")
				slide.AttrSet("style", css.NewInlineStyle(attr).Set("--marpit-advanced-background-split", size).String())
			}

			fo, section := layer(layerBackground, width, height, slide)
			container := markdown.NewToken("marpit_advanced_background_image_container_open", "div", 1)
			container.Block = true
			container.AttrSet("data-marpit-advanced-background-container", "")
			container.AttrSet("data-marpit-advanced-background-direction", cmp.Or(bg.Direction, "horizontal"))
			out = append(out, fo, section, container)
			for _, img := range bg.Images {
				out = append(out, figure(img)...)
			}
			end := markdown.NewToken("marpit_advanced_background_image_container_close", "div", -1)
			end.Block = true
			out = append(out, end)
			out = append(out, closeLayer()...)
			out = append(out, t)

			fo, section = layer(layerPseudo, width, height, slide)
			fo.AttrSet("data-marpit-advanced-background", layerPseudo)
			attr, _ := section.AttrGet("style")
			style := css.NewInlineStyle("")
			if color, ok := css.NewInlineStyle(attr).Get("color"); ok {
				style.Set("color", color)
			}
			if str := style.String(); str != "" {
				section.AttrSet("style", str)
			} else {
				section.AttrDel("style")
			}
			pseudo = append([]*markdown.Token{fo, section}, closeLayer()...)

		case t.Type == "marpit_inline_svg_content_close" && pseudo != nil:
			out = append(out, t)
			out = append(out, pseudo...)
			pseudo = nil

		default:
			out = append(out, t)
		}
	}
	s.Tokens = out
	return nil
}

func nextSlide(tokens []*markdown.Token) *markdown.Token {
	for _, t := range tokens {
		if slideElement(t) == 1 {
			return t
		}
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
