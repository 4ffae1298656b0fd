package deck

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"mdeck/css"
	"mdeck/directive"
	"mdeck/markdown"
)

var (
	reStyleBlock   = regexp.MustCompile(`(?is)^\s*<style\b[^>]*>(.*?)</style>\s*$`)
	reSectionRoot  = regexp.MustCompile(`^(?:section|:root)(?:$|[^\w-])`)
	reKeyframes    = regexp.MustCompile(`^(?:-(?:webkit|moz|o)-)?keyframes$`)
	reAnimation    = regexp.MustCompile(`^(?:-(?:webkit|moz|o)-)?animation(?:-name)?$`)
	reAnimationArg = regexp.MustCompile(`[^\s,]+`)
)

// scopedStyles are style blocks which apply to a single slide.
type scopedStyles struct {
	key    string
	styles []string
}

// isScoped reports if style element has scoped attribute.
func isScoped(block string) bool {
	z := html.NewTokenizer(strings.NewReader(block))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.DataAtom != atom.Style {
				return false
			}
			for _, a := range tok.Attr {
				if strings.EqualFold(a.Key, "scoped") {
					return true
				}
			}
			return false
		}
	}
}

// styleParse turns <style> HTML blocks into style tokens.
func (d *Deck) styleParse(s *markdown.State) error {
	if !d.opts.InlineStyle {
		return nil
	}
	for _, t := range s.Tokens {
		if t.Type != "html_block" {
			continue
		}
		m := reStyleBlock.FindStringSubmatch(t.Content)
		if m == nil {
			continue
		}
		scoped := isScoped(t.Content)
		t.Type, t.Tag = "marpit_style", "style"
		t.Content, t.Hidden = strings.TrimSpace(m[1]), true
		t.SetMeta(metaStyleScoped, scoped)
	}
	return nil
}

func (d *Deck) parseStyle(style string) (*css.Stylesheet, bool) {
	sheet, err := css.NewParser(d.log).Parse([]byte(style))
	if err != nil {
		d.log.Warn("Style ignored", zap.Error(err))
		return nil, false
	}
	return sheet, true
}

// styleAssign collects style blocks. Global style directive goes first,
// then unscoped blocks in document order, then scoped blocks rewritten to
// match their slides only.
func (d *Deck) styleAssign(s *markdown.State) error {
	env := envOf(s)
	var global, scoped []string
	if v := env.global[directive.Style]; v != "" {
		if _, ok := d.parseStyle(v); ok {
			global = append(global, v)
		}
	}

	var (
		cur *markdown.Token
		sc  *scopedStyles
	)
	for _, t := range s.Tokens {
		switch {
		case slideElement(t) == 1:
			cur, sc = t, nil
		case slideElement(t) == -1:
			if sc != nil {
				scoped = append(scoped, d.scopeStyles(sc)...)
			}
			cur, sc = nil, nil
		case t.Type == "marpit_style":
			if ok, _ := markdown.MetaValue[bool](t, metaStyleScoped); ok && cur != nil {
				if sc == nil {
					sc = &scopedStyles{key: d.opts.KeyGenerator()}
					cur.SetMeta(metaScope, sc)
					cur.AttrSet("data-marpit-scope-"+sc.key, "")
				}
				sc.styles = append(sc.styles, t.Content)
				continue
			}
			if _, ok := d.parseStyle(t.Content); ok {
				global = append(global, t.Content)
			}
		}
	}
	env.styles = append(global, scoped...)
	return nil
}

func scopeSelector(sel, key string) string {
	slide := ":marpit-container > :marpit-slide[data-marpit-scope-" + key + "]"
	if reSectionRoot.MatchString(sel) {
		name := "section"
		if strings.HasPrefix(sel, ":root") {
			name = ":root"
		}
		return slide + sel[len(name):]
	}
	return slide + " " + sel
}

// scopeRules rewrites selectors of rules which are not inside keyframes.
func scopeRules(c css.Container, key string) {
	for _, n := range c.Children() {
		switch v := n.(type) {
		case *css.Rule:
			for i, sel := range v.Selectors {
				v.Selectors[i] = scopeSelector(sel, key)
			}
		case *css.AtRule:
			if !reKeyframes.MatchString(v.Name) {
				scopeRules(v, key)
			}
		}
	}
}

// scopeStyles makes slide styles apply to the slide only. Keyframes
// defined by the slide get key suffix and animations referring to them are
// renamed accordingly.
func (d *Deck) scopeStyles(sc *scopedStyles) []string {
	sheets := make([]*css.Stylesheet, 0, len(sc.styles))
	for _, style := range sc.styles {
		if sheet, ok := d.parseStyle(style); ok {
			sheets = append(sheets, sheet)
		}
	}

	keyframes := make(map[string]bool)
	for _, sheet := range sheets {
		css.WalkAtRules(sheet, "", func(a *css.AtRule, _ css.Container) {
			if reKeyframes.MatchString(a.Name) {
				keyframes[strings.TrimSpace(a.Params)] = true
			}
		})
	}

	out := make([]string, 0, len(sheets))
	for _, sheet := range sheets {
		scopeRules(sheet, sc.key)
		if len(keyframes) > 0 {
			css.WalkAtRules(sheet, "", func(a *css.AtRule, _ css.Container) {
				if reKeyframes.MatchString(a.Name) {
					a.Params = strings.TrimSpace(a.Params) + "-" + sc.key
				}
			})
			css.WalkDecls(sheet, func(decl *css.Declaration, _ css.Container) {
				if !reAnimation.MatchString(decl.Property) {
					return
				}
				decl.Value = reAnimationArg.ReplaceAllStringFunc(decl.Value, func(name string) string {
					if keyframes[name] {
						return name + "-" + sc.key
					}
					return name
				})
			})
		}
		out = append(out, sheet.String())
	}
	return out
}
