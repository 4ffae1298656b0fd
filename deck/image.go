package deck

import (
	"cmp"
	"fmt"
	"regexp"
	"strings"

	"mdeck/css"
	"mdeck/markdown"
)

// ImageOption is a single whitespace separated word of image alternative
// text.
type ImageOption struct {
	Content string
	// Leading is whitespace preceding the word.
	Leading  string
	Consumed bool

	child int
}

// Filter is a single CSS filter function.
type Filter struct {
	Name string
	Arg  string
}

func (f Filter) String() string {
	return f.Name + "(" + f.Arg + ")"
}

// Image holds keywords recognized in image alternative text.
type Image struct {
	URL     string
	Options []ImageOption

	Size    string
	Width   string
	Height  string
	Filters []Filter

	Background     bool
	BackgroundSize string
	// Direction is "horizontal" or "vertical", empty when not set.
	Direction string
	// Split is "left" or "right", empty when not set.
	Split     string
	SplitSize string
}

// FilterChain returns filters as CSS filter value.
func (img *Image) FilterChain() string {
	parts := make([]string, 0, len(img.Filters))
	for _, f := range img.Filters {
		parts = append(parts, f.String())
	}
	return strings.Join(parts, " ")
}

// CSSSize returns size suitable for background-size.
func (img *Image) CSSSize() string {
	size := cmp.Or(img.Size, img.BackgroundSize)
	if (img.Width != "" || img.Height != "") && size != "contain" && size != "cover" {
		return cmp.Or(img.Width, size, "auto") + " " + cmp.Or(img.Height, size, "auto")
	}
	return size
}

func imageOf(t *markdown.Token) *Image {
	img, _ := markdown.MetaValue[*Image](t, metaImage)
	return img
}

const lengthUnits = `(?:%|ch|cm|em|ex|in|mm|pc|pt|px)`

var (
	reOption     = regexp.MustCompile(`(\s*)(\S+)`)
	reUnit       = regexp.MustCompile(lengthUnits + `$`)
	reEscapeArg  = regexp.MustCompile(`[\\;:()]`)
	reColorFunc  = regexp.MustCompile(`^((?:rgb|hsl)a?|hwb|(?:ok)?(?:lab|lch)|color)\((.*)\)$`)
	reDropShadow = regexp.MustCompile(`^drop-shadow(?::(.+?),(.+?)(?:,(.+?))?(?:,(.+?))?)?$`)
)

type optionMatcher struct {
	re    *regexp.Regexp
	apply func(m []string, img *Image)
}

func lengthMatcher(prefix string, set func(img *Image, v string)) optionMatcher {
	return optionMatcher{
		re: regexp.MustCompile(`^` + prefix + `:((?:\d*\.)?\d+` + lengthUnits + `?|auto)$`),
		apply: func(m []string, img *Image) {
			v := m[1]
			if v != "auto" && !reUnit.MatchString(v) {
				v += "px"
			}
			set(img, v)
		},
	}
}

func filterMatcher(name, def string) optionMatcher {
	return optionMatcher{
		re: regexp.MustCompile(`^` + name + `(?::(.+))?$`),
		apply: func(m []string, img *Image) {
			arg := def
			if m[1] != "" {
				arg = escapeArg(m[1])
			}
			img.Filters = append(img.Filters, Filter{Name: name, Arg: arg})
		},
	}
}

// escapeArg prevents keyword arguments from breaking out of CSS function.
func escapeArg(s string) string {
	return reEscapeArg.ReplaceAllStringFunc(s, func(c string) string {
		return fmt.Sprintf("\\%x ", c[0])
	})
}

var imageOptionMatchers = []optionMatcher{
	{
		re:    regexp.MustCompile(`^(?:\d*\.)?\d+%$`),
		apply: func(m []string, img *Image) { img.Size = m[0] },
	},
	lengthMatcher(`w(?:idth)?`, func(img *Image, v string) { img.Width = v }),
	lengthMatcher(`h(?:eight)?`, func(img *Image, v string) { img.Height = v }),
	filterMatcher("blur", "10px"),
	filterMatcher("brightness", "1.5"),
	filterMatcher("contrast", "2"),
	{
		re: reDropShadow,
		apply: func(m []string, img *Image) {
			arg := "0 5px 10px rgba(0,0,0,.4)"
			if m[1] != "" {
				args := make([]string, 0, 4)
				for _, a := range m[1:] {
					if a == "" {
						continue
					}
					if cm := reColorFunc.FindStringSubmatch(a); cm != nil {
						args = append(args, cm[1]+"("+escapeArg(cm[2])+")")
						continue
					}
					args = append(args, escapeArg(a))
				}
				arg = strings.Join(args, " ")
			}
			img.Filters = append(img.Filters, Filter{Name: "drop-shadow", Arg: arg})
		},
	},
	filterMatcher("grayscale", "1"),
	filterMatcher("hue-rotate", "180deg"),
	filterMatcher("invert", "1"),
	filterMatcher("opacity", ".5"),
	filterMatcher("saturate", "2"),
	filterMatcher("sepia", "1"),
}

func splitOptions(children []*markdown.Token) []ImageOption {
	var opts []ImageOption
	for i, c := range children {
		if c.Type != "text" {
			continue
		}
		for _, m := range reOption.FindAllStringSubmatch(c.Content, -1) {
			opts = append(opts, ImageOption{Leading: m[1], Content: m[2], child: i})
		}
	}
	return opts
}

// parseImage recognizes size and filter keywords in image alternative text.
func (d *Deck) parseImage(s *markdown.State) error {
	for _, t := range s.Tokens {
		if t.Type != "inline" {
			continue
		}
		for _, c := range t.Children {
			if c.Type != "image" {
				continue
			}
			src, _ := c.AttrGet("src")
			img := &Image{URL: src, Options: splitOptions(c.Children)}
			for i := range img.Options {
				o := &img.Options[i]
				for _, m := range imageOptionMatchers {
					if sm := m.re.FindStringSubmatch(o.Content); sm != nil {
						m.apply(sm, img)
						o.Consumed = true
						break
					}
				}
			}
			c.SetMeta(metaImage, img)

			attr, _ := c.AttrGet("style")
			style := css.NewInlineStyle(attr)
			if img.Width != "" && !strings.HasSuffix(img.Width, "%") {
				style.Set("width", img.Width)
			}
			if img.Height != "" && !strings.HasSuffix(img.Height, "%") {
				style.Set("height", img.Height)
			}
			if len(img.Filters) > 0 {
				style.Set("filter", img.FilterChain())
			}
			if str := style.String(); str != "" {
				c.AttrSet("style", str)
			}
		}
	}
	return nil
}

var (
	reSplit          = regexp.MustCompile(`^(left|right)(?::((?:\d*\.)?\d+%))?$`)
	backgroundSizes  = map[string]string{"auto": "auto", "contain": "contain", "cover": "cover", "fit": "contain"}
	backgroundLayout = map[string]bool{"horizontal": true, "vertical": true}
)

// parseBackgroundImage recognizes background keywords and rewrites
// alternative text of every image without consumed keywords.
func parseBackgroundImage(s *markdown.State) error {
	for _, t := range s.Tokens {
		if t.Type != "inline" {
			continue
		}
		for _, c := range t.Children {
			img := imageOf(c)
			if img == nil {
				continue
			}
			if hasOption(img, "bg") {
				img.Background = true
				c.Hidden = true
				for i := range img.Options {
					o := &img.Options[i]
					if o.Consumed {
						continue
					}
					switch {
					case o.Content == "bg":
						o.Consumed = true
					case backgroundSizes[o.Content] != "":
						img.BackgroundSize, o.Consumed = backgroundSizes[o.Content], true
					case backgroundLayout[o.Content]:
						img.Direction, o.Consumed = o.Content, true
					default:
						if m := reSplit.FindStringSubmatch(o.Content); m != nil {
							img.Split, img.SplitSize, o.Consumed = m[1], m[2], true
						}
					}
				}
			}
			rewriteAlt(c, img)
		}
	}
	return nil
}

func hasOption(img *Image, word string) bool {
	for _, o := range img.Options {
		if !o.Consumed && o.Content == word {
			return true
		}
	}
	return false
}

// rewriteAlt drops consumed keywords from text children of image.
func rewriteAlt(t *markdown.Token, img *Image) {
	texts := make(map[int]*strings.Builder)
	written := false
	for _, o := range img.Options {
		b, ok := texts[o.child]
		if !ok {
			b = &strings.Builder{}
			texts[o.child] = b
		}
		if o.Consumed {
			continue
		}
		if written {
			b.WriteString(o.Leading)
		}
		b.WriteString(o.Content)
		written = true
	}
	for i, b := range texts {
		t.Children[i].Content = b.String()
	}
	t.Content = strings.TrimSpace(markdown.TextContent(t.Children))
}
