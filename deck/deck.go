// Package deck compiles Markdown with directives into slides: HTML for every
// slide and the CSS of selected theme. Processing is a chain of named passes
// over the token stream, passes communicate through token metadata only.
package deck

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"mdeck/directive"
	"mdeck/markdown"
	"mdeck/theme"
)

// Token metadata keys.
const (
	metaSlideElement  = "marpitSlideElement"
	metaSlide         = "marpitSlide"
	metaSlideTotal    = "marpitSlideTotal"
	metaDirectives    = "marpitDirectives"
	metaParsed        = "marpitParsed"
	metaCommentParsed = "marpitCommentParsed"
	metaImage         = "marpitImage"
	metaBackground    = "marpitBackground"
	metaFragment      = "marpitFragment"
	metaFragments     = "marpitFragments"
	metaPage          = "marpitPage"
	metaPageTotal     = "marpitPageTotal"
	metaStyleScoped   = "marpitStyleScoped"
	metaScope         = "marpitScope"
	metaHeader        = "marpitHeader"
	metaFooter        = "marpitFooter"
)

// Pass names usable as anchors.
const (
	RuleFrontMatter          = "front_matter"
	RuleStyleParse           = "marpit_style_parse"
	RuleComment              = "marpit_comment"
	RuleCommentInline        = "marpit_comment_inline"
	RuleImage                = "marpit_image"
	RuleBackgroundImage      = "marpit_background_image"
	RuleSweep                = "marpit_sweep"
	RuleGlobalDirectives     = "marpit_directives_global_parse"
	RuleHeadingDivider       = "marpit_heading_divider"
	RuleSlide                = "marpit_slide"
	RuleDirectives           = "marpit_directives_parse"
	RuleFragment             = "marpit_fragment"
	RuleApplyFragment        = "marpit_apply_fragment"
	RuleInlineSVG            = "marpit_inline_svg"
	RuleApplyBackgroundImage = "marpit_apply_background_image"
	RuleApplyDirectives      = "marpit_directives_apply"
	RuleAdvancedBackground   = "marpit_advanced_background"
	RuleHeaderAndFooter      = "marpit_header_and_footer"
	RuleSlideContainers      = "marpit_slide_containers"
	RuleContainers           = "marpit_containers"
	RuleCollectComment       = "marpit_collect_comment"
	RuleStyleAssign          = "marpit_style_assign"
	RuleSweepParagraph       = "marpit_sweep_paragraph"
)

// Deck is configured compiler. It is not modified by Render, so it could be
// used concurrently as long as themes are not modified at the same time.
type Deck struct {
	opts     Options
	md       *markdown.Parser
	resolver directive.Resolver
	log      *zap.Logger
}

// RenderOptions controls single Render call.
type RenderOptions struct {
	// HTMLAsArray fills Result.HTMLSlides with HTML of every slide.
	HTMLAsArray bool
}

// Slide is a view of a single rendered slide.
type Slide struct {
	Index      int
	Total      int
	ID         string
	Directives directive.Set
	// Fragments is number of fragment list items.
	Fragments int
	// Page is 1-based page number, 0 when page number is not shown.
	Page      int
	PageTotal int
	// ScopeKey is set when slide has scoped styles.
	ScopeKey   string
	Background *Background
}

// Result of Render.
type Result struct {
	HTML       string
	HTMLSlides []string
	CSS        string
	// Comments are non directive comments of every slide.
	Comments         [][]string
	Slides           []Slide
	GlobalDirectives directive.Set
	// Tokens is final token stream.
	Tokens []*markdown.Token
}

// renderEnv holds state of single Render call.
type renderEnv struct {
	global   directive.Set
	slides   []*markdown.Token
	chunks   [][]*markdown.Token
	comments [][]string
	styles   []string
}

func envOf(s *markdown.State) *renderEnv {
	if env, ok := s.Env.(*renderEnv); ok {
		return env
	}
	return &renderEnv{}
}

type pass struct {
	before, after string
	name          string
	fn            markdown.RuleFunc
	// inline passes run for inline sub-parses too
	inline bool
}

// New validates options and builds deck.
func New(opts Options) (*Deck, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts.setDefaults()

	d := &Deck{
		opts: opts,
		log:  opts.Logger.Named("deck"),
	}
	d.md = markdown.NewParser(opts.Logger)
	d.resolver = directive.Resolver{Registry: opts.Directives, Themes: opts.Themes}

	passes := []pass{
		{before: markdown.RuleBlock, name: RuleFrontMatter, fn: d.frontMatter},
		{after: markdown.RuleBlock, name: RuleStyleParse, fn: d.styleParse},
		{after: RuleStyleParse, name: RuleComment, fn: d.comment},
		{after: markdown.RuleInline, name: RuleCommentInline, fn: d.commentInline, inline: true},
		{after: RuleCommentInline, name: RuleImage, fn: d.parseImage, inline: true},
		{after: RuleImage, name: RuleBackgroundImage, fn: parseBackgroundImage, inline: true},
		{after: RuleBackgroundImage, name: RuleSweep, fn: sweep},
		{after: RuleSweep, name: RuleGlobalDirectives, fn: d.parseGlobalDirectives},
		{after: RuleGlobalDirectives, name: RuleHeadingDivider, fn: d.headingDivider},
		{after: RuleHeadingDivider, name: RuleSlide, fn: d.slide},
		{after: RuleSlide, name: RuleDirectives, fn: d.parseDirectives},
		{after: RuleDirectives, name: RuleFragment, fn: fragment},
		{after: RuleFragment, name: RuleApplyFragment, fn: applyFragment},
		{after: RuleApplyFragment, name: RuleInlineSVG, fn: d.inlineSVG},
		{after: RuleInlineSVG, name: RuleApplyBackgroundImage, fn: applyBackgroundImage},
		{after: RuleApplyBackgroundImage, name: RuleApplyDirectives, fn: applyDirectives},
		{after: RuleApplyDirectives, name: RuleAdvancedBackground, fn: advancedBackground},
		{after: RuleAdvancedBackground, name: RuleHeaderAndFooter, fn: d.headerAndFooter},
		{after: RuleHeaderAndFooter, name: RuleSlideContainers, fn: d.slideContainers},
		{after: RuleSlideContainers, name: RuleContainers, fn: d.containers},
		{after: RuleContainers, name: RuleCollectComment, fn: collectComment},
		{after: RuleCollectComment, name: RuleStyleAssign, fn: d.styleAssign},
		{after: RuleStyleAssign, name: RuleSweepParagraph, fn: sweepParagraph},
	}
	for _, p := range passes {
		fn := p.fn
		if !p.inline {
			fn = skipInline(fn)
		}
		var err error
		if p.before != "" {
			err = d.md.Core.Before(p.before, p.name, fn)
		} else {
			err = d.md.Core.After(p.after, p.name, fn)
		}
		if err != nil {
			return nil, fmt.Errorf("unable to register %s: %w", p.name, err)
		}
	}
	return d, nil
}

// skipInline guards slide oriented passes, inline sub-parses never produce
// slides.
func skipInline(fn markdown.RuleFunc) markdown.RuleFunc {
	return func(s *markdown.State) error {
		if s.Inline {
			return nil
		}
		return fn(s)
	}
}

// Passes returns names of registered passes in execution order.
func (d *Deck) Passes() []string {
	return d.md.Core.Names()
}

// Themes returns theme set used by deck.
func (d *Deck) Themes() *theme.Set {
	return d.opts.Themes
}

func (d *Deck) newRenderer() *markdown.Renderer {
	r := markdown.NewRenderer()
	r.HTML = d.opts.HTML
	return r
}

// Render compiles Markdown source.
func (d *Deck) Render(src string, opts RenderOptions) (*Result, error) {
	env := &renderEnv{global: directive.Set{}}
	tokens, err := d.md.Parse(src, env)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Comments:         env.comments,
		GlobalDirectives: env.global.Clone(),
		Tokens:           tokens,
	}
	if res.Comments == nil {
		res.Comments = [][]string{}
	}

	r := d.newRenderer()
	res.HTML = r.Render(tokens)
	if opts.HTMLAsArray {
		res.HTMLSlides = make([]string, 0, len(env.chunks))
		for _, chunk := range env.chunks {
			res.HTMLSlides = append(res.HTMLSlides, r.Render(chunk))
		}
	}

	if res.CSS, err = d.renderStyle(env); err != nil {
		return nil, err
	}
	res.Slides = slideViews(env.slides)

	d.log.Debug("Deck rendered",
		zap.Int("slides", len(res.Slides)),
		zap.Int("styles", len(env.styles)),
		zap.String("theme", env.global[directive.Theme]))
	return res, nil
}

func (d *Deck) packOptions(after string) theme.PackOptions {
	return theme.PackOptions{
		After:            after,
		Containers:       append(append([]Element(nil), d.opts.Containers...), d.opts.SlideContainers...),
		InlineSVG:        d.opts.InlineSVG.Enabled,
		WebKitWorkaround: d.opts.InlineSVG.WebKitWorkaround,
		Printable:        d.opts.Printable,
		CSSNesting:       d.opts.CSSNesting,
		ContainerQuery:   d.opts.ContainerQuery,
		ContainerNames:   d.opts.ContainerQueryNames,
	}
}

func (d *Deck) renderStyle(env *renderEnv) (string, error) {
	out, err := d.opts.Themes.Pack(env.global[directive.Theme], d.packOptions(strings.Join(env.styles, "\n")))
	if err != nil {
		return "", fmt.Errorf("unable to pack theme: %w", err)
	}
	return out, nil
}

func slideViews(slides []*markdown.Token) []Slide {
	out := make([]Slide, 0, len(slides))
	for _, t := range slides {
		s := Slide{}
		s.Index, _ = markdown.MetaValue[int](t, metaSlide)
		s.Total, _ = markdown.MetaValue[int](t, metaSlideTotal)
		s.ID, _ = t.AttrGet("id")
		s.Directives, _ = markdown.MetaValue[directive.Set](t, metaDirectives)
		if s.Directives == nil {
			s.Directives = directive.Set{}
		}
		s.Fragments, _ = markdown.MetaValue[int](t, metaFragments)
		s.Page, _ = markdown.MetaValue[int](t, metaPage)
		s.PageTotal, _ = markdown.MetaValue[int](t, metaPageTotal)
		if sc, ok := markdown.MetaValue[*scopedStyles](t, metaScope); ok {
			s.ScopeKey = sc.key
		}
		s.Background, _ = markdown.MetaValue[*Background](t, metaBackground)
		out = append(out, s)
	}
	return out
}
