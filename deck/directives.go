package deck

import (
	"maps"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"mdeck/css"
	"mdeck/directive"
	"mdeck/markdown"
)

// parseGlobalDirectives resolves global directives: front matter first,
// then comments in document order. Later assignments win.
func (d *Deck) parseGlobalDirectives(s *markdown.State) error {
	env := envOf(s)
	global := directive.Set{}
	if d.opts.Lang != "" {
		if v, ok := directive.Normalize(directive.Lang, d.opts.Lang, d.opts.Themes); ok {
			global[directive.Lang] = v
		}
	}
	if fm := frontMatterOf(s.Tokens); fm != nil {
		d.resolver.Global(global, fm)
	}
	eachComment(s.Tokens, func(t *markdown.Token) {
		obj, ok := markdown.MetaValue[map[string]any](t, metaParsed)
		if ok && d.resolver.Global(global, obj) {
			t.SetMeta(metaCommentParsed, parsedGlobal)
			logComment(d.log, t, parsedGlobal)
		}
	})
	env.global = global
	return nil
}

// parseDirectives folds local and spot directives over slides. Local values
// carry to subsequent slides, spot values apply to the slide they appear
// on only.
func (d *Deck) parseDirectives(s *markdown.State) error {
	env := envOf(s)
	local, spot := directive.Set{}, directive.Set{}
	if fm := frontMatterOf(s.Tokens); fm != nil {
		d.resolver.Local(local, spot, fm)
	}

	apply := func(t *markdown.Token) {
		obj, ok := markdown.MetaValue[map[string]any](t, metaParsed)
		if ok && d.resolver.Local(local, spot, obj) {
			t.SetMeta(metaCommentParsed, parsedLocal)
			logComment(d.log, t, parsedLocal)
		}
	}
	for _, t := range s.Tokens {
		switch {
		case slideElement(t) == -1:
			open := env.slides[len(env.slides)-1]
			if i, ok := markdown.MetaValue[int](t, metaSlide); ok && i < len(env.slides) {
				open = env.slides[i]
			}
			open.SetMeta(metaDirectives, directive.Merge(env.global, local, spot))
			spot = directive.Set{}
		case t.Type == "marpit_comment":
			apply(t)
		case t.Type == "inline":
			for _, c := range t.Children {
				if c.Type == "marpit_comment" {
					apply(c)
				}
			}
		}
	}
	paginate(env.slides)
	return nil
}

// paginate numbers slides. Skipped slides are not counted, held slides
// repeat current number, total is the last number used. Hold before the
// first counted slide has no number to repeat.
func paginate(slides []*markdown.Token) {
	page := 0
	numbered := make([]*markdown.Token, 0, len(slides))
	for _, t := range slides {
		dirs := directivesOf(t)
		switch dirs[directive.Paginate] {
		case directive.PaginateSkip:
			continue
		case directive.PaginateHold:
			if page == 0 {
				continue
			}
		default:
			page++
		}
		if dirs.Truthy(directive.Paginate) {
			t.SetMeta(metaPage, page)
			numbered = append(numbered, t)
		}
	}
	for _, t := range numbered {
		t.SetMeta(metaPageTotal, page)
	}
}

func directivesOf(t *markdown.Token) directive.Set {
	dirs, _ := markdown.MetaValue[directive.Set](t, metaDirectives)
	if dirs == nil {
		return directive.Set{}
	}
	return dirs
}

// kebab converts camel case directive name into attribute form.
func kebab(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsUpper(r) {
			b.WriteByte('-')
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// applyDirectives projects resolved directives onto slide elements.
func applyDirectives(s *markdown.State) error {
	for _, t := range s.Tokens {
		if slideElement(t) != 1 {
			continue
		}
		dirs := directivesOf(t)
		attr, _ := t.AttrGet("style")
		style := css.NewInlineStyle(attr)

		for _, name := range slices.Sorted(maps.Keys(dirs)) {
			if name == directive.Style || !directive.IsBuiltin(name) || !dirs.Truthy(name) {
				continue
			}
			t.AttrSet("data-"+kebab(name), dirs[name])
			style.Set("--"+kebab(name), dirs[name])
		}

		if v := dirs[directive.Class]; v != "" {
			t.AttrJoin("class", v)
		}
		if v := dirs[directive.Lang]; v != "" {
			t.AttrSet("lang", v)
		}
		if v := dirs[directive.Color]; v != "" {
			style.Set("color", v)
		}
		if v := dirs[directive.BackgroundColor]; v != "" {
			style.Set("background-color", v).Set("background-image", "none")
		}
		if v := dirs[directive.BackgroundImage]; v != "" {
			style.Set("background-image", v).
				Set("background-position", "center").
				Set("background-repeat", "no-repeat").
				Set("background-size", "cover")
			if v := dirs[directive.BackgroundPosition]; v != "" {
				style.Set("background-position", v)
			}
			if v := dirs[directive.BackgroundRepeat]; v != "" {
				style.Set("background-repeat", v)
			}
			if v := dirs[directive.BackgroundSize]; v != "" {
				style.Set("background-size", v)
			}
		}

		if page, ok := markdown.MetaValue[int](t, metaPage); ok {
			total, _ := markdown.MetaValue[int](t, metaPageTotal)
			t.AttrSet("data-marpit-pagination", strconv.Itoa(page))
			t.AttrSet("data-marpit-pagination-total", strconv.Itoa(total))
		}
		if v := dirs[directive.Header]; v != "" {
			t.SetMeta(metaHeader, v)
		}
		if v := dirs[directive.Footer]; v != "" {
			t.SetMeta(metaFooter, v)
		}

		if str := style.String(); str != "" {
			t.AttrSet("style", str)
		} else {
			t.AttrDel("style")
		}
	}
	return nil
}

// headerAndFooter renders header and footer directives as inline Markdown
// at the start and the end of slide.
func (d *Deck) headerAndFooter(s *markdown.State) error {
	out := make([]*markdown.Token, 0, len(s.Tokens))
	for _, t := range s.Tokens {
		switch slideElement(t) {
		case 1:
			out = append(out, t)
			if v, ok := markdown.MetaValue[string](t, metaHeader); ok {
				out = append(out, d.marginal("header", v, s.Env)...)
			}
		case -1:
			if i, ok := markdown.MetaValue[int](t, metaSlide); ok && i < len(envOf(s).slides) {
				if v, ok := markdown.MetaValue[string](envOf(s).slides[i], metaFooter); ok {
					out = append(out, d.marginal("footer", v, s.Env)...)
				}
			}
			out = append(out, t)
		default:
			out = append(out, t)
		}
	}
	s.Tokens = out
	return nil
}

func (d *Deck) marginal(tag, src string, env any) []*markdown.Token {
	inline, err := d.md.ParseInline(src, env)
	if err != nil {
		d.log.Warn("Unable to parse slide "+tag, zap.String("value", src), zap.Error(err))
		return nil
	}
	open := markdown.NewToken("marpit_"+tag+"_open", tag, 1)
	open.Block = true
	close := markdown.NewToken("marpit_"+tag+"_close", tag, -1)
	close.Block = true

	out := make([]*markdown.Token, 0, len(inline)+2)
	out = append(out, open)
	out = append(out, inline...)
	return append(out, close)
}
