// Package theme keeps named theme stylesheets and packs them into the final
// deck CSS.
package theme

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"

	"mdeck/css"
)

// ErrMissingName is returned when theme CSS has no @theme meta comment.
var ErrMissingName = errors.New("theme CSS requires @theme meta")

// MetaType declares how repeated meta keys are kept.
type MetaType int

const (
	// MetaString keeps the last value only.
	MetaString MetaType = iota
	// MetaArray accumulates all values in document order.
	MetaArray
)

// Options for FromCSS.
type Options struct {
	// MetaType declares array typed meta keys, unlisted keys are strings.
	MetaType map[string]MetaType
	// CSSOnly skips theme contract validation, such themes have no name and
	// are used for styles which are not registered.
	CSSOnly bool
}

// ImportRule references other theme by name.
type ImportRule struct {
	Name string
	// Theme is set for @import-theme, which is always inlined at the
	// beginning of packed stylesheet.
	Theme bool
}

// Theme is an immutable named stylesheet.
type Theme struct {
	name        string
	css         string
	sheet       *css.Stylesheet
	meta        map[string][]string
	metaType    map[string]MetaType
	importRules []ImportRule
	width       string
	height      string

	pxOnce   sync.Once
	widthPx  float64
	heightPx float64
}

var reMeta = regexp.MustCompile(`^[*!\s]*@([\w-]+)\s+(.+)$`)

// FromCSS parses stylesheet and builds theme from it.
func FromCSS(data string, opts Options) (*Theme, error) {
	sheet, err := css.NewParser(nil).Parse([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unable to parse theme CSS: %w", err)
	}

	t := &Theme{
		css:      data,
		sheet:    sheet,
		meta:     make(map[string][]string),
		metaType: opts.MetaType,
	}
	t.collectMeta()
	t.collectSize()
	t.importRules = importRules(sheet)

	if !opts.CSSOnly {
		name := t.Meta("theme")
		if name == "" {
			return nil, ErrMissingName
		}
		t.name = name
	}
	return t, nil
}

func (t *Theme) collectMeta() {
	css.Walk(t.sheet, func(n css.Node, _ css.Container) bool {
		c, ok := n.(*css.Comment)
		if !ok {
			return true
		}
		for line := range strings.SplitSeq(strings.TrimPrefix(c.Text, "!"), "\n") {
			m := reMeta.FindStringSubmatch(strings.TrimSpace(line))
			if m == nil {
				continue
			}
			key, value := m[1], strings.TrimSpace(m[2])
			if t.metaType[key] == MetaArray {
				t.meta[key] = append(t.meta[key], value)
				continue
			}
			t.meta[key] = []string{value}
		}
		return true
	})
}

// collectSize looks for width and height declared on the slide root.
func (t *Theme) collectSize() {
	for _, n := range t.sheet.Nodes {
		r, ok := n.(*css.Rule)
		if !ok || !slices.ContainsFunc(r.Selectors, isRootSelector) {
			continue
		}
		for _, c := range r.Nodes {
			d, ok := c.(*css.Declaration)
			if !ok {
				continue
			}
			switch strings.ToLower(d.Property) {
			case "width":
				t.width = d.Value
			case "height":
				t.height = d.Value
			}
		}
	}
}

func isRootSelector(s string) bool {
	return s == "section" || s == ":root"
}

// importRules collects top level @import and @import-theme rules with
// quoted theme name.
func importRules(sheet *css.Stylesheet) []ImportRule {
	var out []ImportRule
	for _, n := range sheet.Nodes {
		a, ok := n.(*css.AtRule)
		if !ok {
			continue
		}
		if name, ok := importName(a); ok {
			out = append(out, ImportRule{Name: name, Theme: a.Name == "import-theme"})
		}
	}
	return out
}

// importName extracts theme name from @import "name" or @import-theme
// "name". url() and unquoted references are regular CSS imports.
func importName(a *css.AtRule) (string, bool) {
	if a.Name != "import" && a.Name != "import-theme" {
		return "", false
	}
	p := strings.TrimSpace(a.Params)
	if p == "" || (p[0] != '"' && p[0] != '\'') {
		return "", false
	}
	quote := p[0]
	var (
		b   strings.Builder
		esc bool
	)
	for i := 1; i < len(p); i++ {
		ch := p[i]
		switch {
		case esc:
			b.WriteByte(ch)
			esc = false
		case ch == '\\':
			esc = true
		case ch == quote:
			return b.String(), true
		default:
			b.WriteByte(ch)
		}
	}
	return "", false
}

// Name returns unique theme name.
func (t *Theme) Name() string { return t.name }

// CSS returns source stylesheet.
func (t *Theme) CSS() string { return t.css }

// Width returns declared slide width or empty string.
func (t *Theme) Width() string { return t.width }

// Height returns declared slide height or empty string.
func (t *Theme) Height() string { return t.height }

// ImportRules returns theme imports in document order.
func (t *Theme) ImportRules() []ImportRule {
	return slices.Clone(t.importRules)
}

// Meta returns value of meta key, for array typed keys the last one.
func (t *Theme) Meta(key string) string {
	v := t.meta[key]
	if len(v) == 0 {
		return ""
	}
	return v[len(v)-1]
}

// MetaValues returns all values of meta key.
func (t *Theme) MetaValues(key string) []string {
	return slices.Clone(t.meta[key])
}

// stylesheet returns copy of parsed CSS safe for modification.
func (t *Theme) stylesheet() *css.Stylesheet {
	return t.sheet.Clone()
}

// WidthPixel returns width converted to pixels, 0 when unknown.
func (t *Theme) WidthPixel() float64 {
	t.computePixels()
	return t.widthPx
}

// HeightPixel returns height converted to pixels, 0 when unknown.
func (t *Theme) HeightPixel() float64 {
	t.computePixels()
	return t.heightPx
}

func (t *Theme) computePixels() {
	t.pxOnce.Do(func() {
		t.widthPx, _ = ToPixels(t.width)
		t.heightPx, _ = ToPixels(t.height)
	})
}

var reLength = regexp.MustCompile(`(?i)^\s*(\d*\.?\d+)(px|pt|pc|in|cm|mm|q)\s*$`)

var pxPerUnit = map[string]float64{
	"px": 1,
	"pt": 4.0 / 3.0,
	"pc": 16,
	"in": 96,
	"cm": 96 / 2.54,
	"mm": 96 / 25.4,
	"q":  96 / 101.6,
}

// ToPixels converts absolute CSS length to pixels.
func ToPixels(length string) (float64, bool) {
	m := reLength.FindStringSubmatch(length)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v * pxPerUnit[strings.ToLower(m[2])], true
}
