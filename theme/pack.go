package theme

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"mdeck/css"
)

// RootFontSizeProp is custom property carrying font size of the slide root,
// rem units are rewritten to use it.
const RootFontSizeProp = "--marpit-root-font-size"

// markForPrint is the media query used while packing, it becomes "print" at
// the end so author rules are not affected by printable pass.
const markForPrint = "marpit-print"

// Pseudo selectors used by theme authors, they are replaced with concrete
// wrapper elements during packing.
const (
	pseudoContainer = ":marpit-container"
	pseudoSlide     = ":marpit-slide"
)

// CircularImportError is returned from Pack when theme imports itself,
// directly or transitively.
type CircularImportError struct {
	Name string
}

func (e *CircularImportError) Error() string {
	return fmt.Sprintf("circular import of theme %q detected", e.Name)
}

// Element describes wrapper HTML element.
type Element struct {
	Tag   string
	Class string
	ID    string
}

// Selector returns CSS selector matching element.
func (e Element) Selector() string {
	var b strings.Builder
	b.WriteString(e.Tag)
	var seen []string
	for c := range strings.FieldsSeq(e.Class) {
		if slices.Contains(seen, c) {
			continue
		}
		seen = append(seen, c)
		b.WriteByte('.')
		b.WriteString(c)
	}
	if e.ID != "" {
		b.WriteByte('#')
		b.WriteString(e.ID)
	}
	return b.String()
}

// PackOptions controls Pack.
type PackOptions struct {
	// Before and After are CSS added around theme, invalid CSS is ignored.
	Before string
	After  string
	// Containers are elements wrapping slides, outermost first.
	Containers []Element
	// InlineSVG wraps slides into svg > foreignObject.
	InlineSVG bool
	// WebKitWorkaround comments out declarations breaking foreignObject
	// rendering, requires InlineSVG.
	WebKitWorkaround bool
	Printable        bool
	// CSSNesting flattens nested rules.
	CSSNesting bool
	// ContainerQuery makes slide a size query container.
	ContainerQuery bool
	ContainerNames []string
}

type packer struct {
	set   *Set
	theme *Theme
	opts  PackOptions
	log   *zap.Logger
}

type packPass struct {
	name string
	on   bool
	fn   func(sheet *css.Stylesheet) error
}

// Pack builds final deck stylesheet from the theme name (default theme or
// scaffold when unknown). Output is deterministic for the same set content
// and options.
func (s *Set) Pack(name string, opts PackOptions) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := &packer{
		set:   s,
		theme: s.getOrDefault(name),
		opts:  opts,
		log:   s.log.With(zap.String("theme", name)),
	}
	sheet := p.theme.stylesheet()

	passes := []packPass{
		{"additional", true, p.additional},
		{"import-hoisting", true, importHoisting},
		{"import-replace", true, p.importReplace},
		{"printable", opts.Printable, p.printable},
		{"scaffold", p.theme != Scaffold(), prependScaffold},
		{"nesting", opts.CSSNesting, flattenNesting},
		{"advanced-background", opts.InlineSVG, advancedBackground},
		{"pagination", true, paginationGuard},
		{"root-replace", true, rootReplace},
		{"root-font-size", true, rootFontSize},
		{"container-query", opts.ContainerQuery, p.containerQuery},
		{"pseudo-prepend", true, pseudoPrepend},
		{"pseudo-replace", true, p.pseudoReplace},
		{"printable-postprocess", opts.Printable, printablePostprocess},
		{"rem", true, remToCustomProp},
		{"webkit-workaround", opts.InlineSVG && opts.WebKitWorkaround, webkitWorkaround},
		{"import-hoisting-final", true, importHoisting},
	}
	for _, ps := range passes {
		if !ps.on {
			continue
		}
		if err := ps.fn(sheet); err != nil {
			return "", fmt.Errorf("pack %s: %w", ps.name, err)
		}
	}
	return sheet.String(), nil
}

func (p *packer) additional(sheet *css.Stylesheet) error {
	parse := func(data, which string) []css.Node {
		if strings.TrimSpace(data) == "" {
			return nil
		}
		extra, err := css.NewParser(p.log).Parse([]byte(data), which)
		if err != nil {
			p.log.Debug("Additional CSS ignored", zap.String("where", which), zap.Error(err))
			return nil
		}
		return extra.Nodes
	}
	sheet.Prepend(parse(p.opts.Before, "before")...)
	sheet.Append(parse(p.opts.After, "after")...)
	return nil
}

// importHoisting moves the first @charset and all @import rules to the top.
func importHoisting(sheet *css.Stylesheet) error {
	var (
		charset css.Node
		imports []css.Node
	)
	css.ReplaceDeep(sheet, func(n css.Node, _ css.Container) []css.Node {
		a, ok := n.(*css.AtRule)
		if !ok {
			return css.Keep(n)
		}
		switch a.Name {
		case "charset":
			if charset == nil {
				charset = a
			}
			return nil
		case "import":
			imports = append(imports, a)
			return nil
		}
		return css.Keep(n)
	})
	if charset != nil {
		imports = append([]css.Node{charset}, imports...)
	}
	sheet.Prepend(imports...)
	return nil
}

// importReplace inlines registered themes referenced by @import and
// @import-theme. Imports of unknown themes stay regular CSS imports.
func (p *packer) importReplace(sheet *css.Stylesheet) error {
	var prepend []css.Node

	var resolve func(c css.Container, stack []string) error
	resolve = func(c css.Container, stack []string) error {
		var rerr error
		css.Replace(c, func(n css.Node) []css.Node {
			a, ok := n.(*css.AtRule)
			if rerr != nil || !ok {
				return css.Keep(n)
			}
			name, ok := importName(a)
			if !ok {
				return css.Keep(n)
			}
			imported, ok := p.set.themes[name]
			if !ok {
				if a.Name == "import-theme" {
					p.log.Debug("Unknown theme in @import-theme dropped", zap.String("import", name))
					return nil
				}
				return css.Keep(n)
			}
			if slices.Contains(stack, imported.Name()) {
				rerr = &CircularImportError{Name: imported.Name()}
				return nil
			}
			sub := imported.stylesheet()
			if err := resolve(sub, append(slices.Clone(stack), imported.Name())); err != nil {
				rerr = err
				return nil
			}
			if a.Name == "import-theme" {
				prepend = append(prepend, sub.Nodes...)
				return nil
			}
			return sub.Nodes
		})
		return rerr
	}

	var stack []string
	if p.theme.Name() != "" {
		stack = append(stack, p.theme.Name())
	}
	if err := resolve(sheet, stack); err != nil {
		return err
	}
	sheet.Prepend(prepend...)
	return nil
}

func (p *packer) printable(sheet *css.Stylesheet) error {
	width, height := p.set.prop(p.theme, PropWidth), p.set.prop(p.theme, PropHeight)
	extra, err := css.NewParser(p.log).Parse(fmt.Appendf(nil, `
@page { size: %s %s; margin: 0; }
@media %s {
  html, body {
    background-color: #fff;
    margin: 0;
    page-break-inside: avoid;
    break-inside: avoid-page;
  }
  section {
    page-break-before: always;
    break-before: page;
  }
}`, width, height, markForPrint), "printable")
	if err != nil {
		return err
	}
	sheet.Prepend(extra.Nodes...)
	return nil
}

func printablePostprocess(sheet *css.Stylesheet) error {
	css.WalkAtRules(sheet, "media", func(a *css.AtRule, _ css.Container) {
		if a.Params == markForPrint {
			a.Params = "print"
		}
	})
	return nil
}

func prependScaffold(sheet *css.Stylesheet) error {
	sheet.Prepend(Scaffold().stylesheet().Nodes...)
	return nil
}

// isOpaqueAtRule reports at-rules which children are not style rules.
func isOpaqueAtRule(name string) bool {
	return strings.HasSuffix(name, "keyframes") || name == "font-face" || name == "page" || name == "counter-style" || name == "property"
}

// flattenNesting turns nested rules into top level ones.
func flattenNesting(sheet *css.Stylesheet) error {
	sheet.Nodes = flattenNodes(sheet.Nodes)
	return nil
}

func flattenNodes(nodes []css.Node) []css.Node {
	out := make([]css.Node, 0, len(nodes))
	for _, n := range nodes {
		switch v := n.(type) {
		case *css.Rule:
			out = append(out, flattenRule(v.Selectors, v.Nodes)...)
		case *css.AtRule:
			if v.HasBlock && !isOpaqueAtRule(v.Name) {
				v.Nodes = flattenNodes(v.Nodes)
			}
			out = append(out, v)
		default:
			out = append(out, n)
		}
	}
	return out
}

func flattenRule(selectors []string, children []css.Node) []css.Node {
	own := &css.Rule{Selectors: selectors}
	var rest []css.Node
	for _, c := range children {
		switch v := c.(type) {
		case *css.Rule:
			rest = append(rest, flattenRule(combineSelectors(selectors, v.Selectors), v.Nodes)...)
		case *css.AtRule:
			if v.HasBlock && !isOpaqueAtRule(v.Name) {
				rest = append(rest, &css.AtRule{Name: v.Name, Params: v.Params, HasBlock: true, Nodes: flattenRule(selectors, v.Nodes)})
				continue
			}
			own.Nodes = append(own.Nodes, c)
		default:
			own.Nodes = append(own.Nodes, c)
		}
	}
	if len(own.Nodes) == 0 {
		return rest
	}
	return append([]css.Node{own}, rest...)
}

func combineSelectors(parents, children []string) []string {
	out := make([]string, 0, len(parents)*len(children))
	for _, p := range parents {
		for _, c := range children {
			if strings.Contains(c, "&") {
				out = append(out, strings.ReplaceAll(c, "&", p))
				continue
			}
			out = append(out, p+" "+c)
		}
	}
	return out
}

const advancedBackgroundCSS = `
section[data-marpit-advanced-background="background"] {
  columns: initial !important;
  display: block !important;
  padding: 0 !important;
}
section[data-marpit-advanced-background="background"]::before,
section[data-marpit-advanced-background="background"]::after,
section[data-marpit-advanced-background="content"]::before,
section[data-marpit-advanced-background="content"]::after {
  display: none !important;
}
section[data-marpit-advanced-background="background"] > div[data-marpit-advanced-background-container] {
  all: initial;
  display: flex;
  flex-direction: row;
  height: 100%;
  overflow: hidden;
  width: 100%;
}
section[data-marpit-advanced-background="background"] > div[data-marpit-advanced-background-container][data-marpit-advanced-background-direction="vertical"] {
  flex-direction: column;
}
section[data-marpit-advanced-background="background"][data-marpit-advanced-background-split] > div[data-marpit-advanced-background-container] {
  width: var(--marpit-advanced-background-split, 50%);
}
section[data-marpit-advanced-background="background"][data-marpit-advanced-background-split="right"] > div[data-marpit-advanced-background-container] {
  margin-left: calc(100% - var(--marpit-advanced-background-split, 50%));
}
section[data-marpit-advanced-background="background"] > div[data-marpit-advanced-background-container] > figure {
  all: initial;
  background-position: center;
  background-repeat: no-repeat;
  background-size: cover;
  flex: auto;
  margin: 0;
}
section[data-marpit-advanced-background="background"] > div[data-marpit-advanced-background-container] > figure > figcaption {
  position: absolute;
  border: 0;
  clip: rect(0, 0, 0, 0);
  height: 1px;
  margin: -1px;
  overflow: hidden;
  padding: 0;
  white-space: nowrap;
  width: 1px;
}
section[data-marpit-advanced-background="content"],
section[data-marpit-advanced-background="pseudo"] {
  background: transparent !important;
}
section[data-marpit-advanced-background="pseudo"],
:marpit-container > svg[data-marpit-svg] > foreignObject[data-marpit-advanced-background="pseudo"] {
  pointer-events: none !important;
}
section[data-marpit-advanced-background-split] {
  width: 100%;
  height: 100%;
}`

var advancedBackgroundSheet = sync.OnceValue(func() *css.Stylesheet {
	return css.MustParse(advancedBackgroundCSS)
})

func advancedBackground(sheet *css.Stylesheet) error {
	sheet.Append(advancedBackgroundSheet().Clone().Nodes...)
	return nil
}

func isIdentByte(c byte) bool {
	return c == '-' || c == '_' || c >= 0x80 ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// hasTypePrefix reports if selector starts with element type tag.
func hasTypePrefix(sel, tag string) bool {
	return strings.HasPrefix(sel, tag) && (len(sel) == len(tag) || !isIdentByte(sel[len(tag)]))
}

var reAttrSelector = regexp.MustCompile(`\[[^\]]*\]`)

// isSlideRoot reports selectors targeting slide element itself, like
// "section", "section.lead" or "section:first-child".
func isSlideRoot(sel string) bool {
	if !hasTypePrefix(sel, "section") || strings.Contains(sel, "::") {
		return false
	}
	rest := reAttrSelector.ReplaceAllString(sel[len("section"):], "")
	return !strings.ContainsAny(rest, " >+~")
}

// isSlideAfter reports selectors of slide ::after pseudo element which
// shows page number.
func isSlideAfter(sel string) bool {
	if !hasTypePrefix(sel, "section") {
		return false
	}
	rest := reAttrSelector.ReplaceAllString(sel[len("section"):], "")
	mid, ok := strings.CutSuffix(rest, "::after")
	return ok && !strings.ContainsAny(mid, " >+~")
}

// walkStyleRules visits rules which are not inside @keyframes. Nested rules
// are visited when nested is set.
func walkStyleRules(c css.Container, nested bool, fn func(r *css.Rule)) {
	for _, n := range c.Children() {
		switch v := n.(type) {
		case *css.Rule:
			fn(v)
			if nested {
				walkStyleRules(v, nested, fn)
			}
		case *css.AtRule:
			if v.HasBlock && !isOpaqueAtRule(v.Name) {
				walkStyleRules(v, nested, fn)
			}
		}
	}
}

var (
	reQuoted        = regexp.MustCompile(`"(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*'`)
	rePaginationRef = regexp.MustCompile(`attr\(\s*data-marpit-pagination(?:-total)?\s*\)`)
)

// paginationGuard removes content declarations of slide ::after which do
// not show page numbers, the pseudo element is reserved for pagination.
func paginationGuard(sheet *css.Stylesheet) error {
	walkStyleRules(sheet, false, func(r *css.Rule) {
		if !slices.ContainsFunc(r.Selectors, isSlideAfter) {
			return
		}
		r.Nodes = slices.DeleteFunc(r.Nodes, func(n css.Node) bool {
			d, ok := n.(*css.Declaration)
			if !ok || !strings.EqualFold(d.Property, "content") {
				return false
			}
			switch strings.ToLower(strings.TrimSpace(d.Value)) {
			case "none", "normal", "initial", "inherit", "unset":
				return false
			}
			rest := rePaginationRef.ReplaceAllString(reQuoted.ReplaceAllString(d.Value, ""), "")
			return strings.TrimSpace(rest) != "" || !rePaginationRef.MatchString(d.Value)
		})
	})
	return nil
}

var reRoot = regexp.MustCompile(`(^|[\s>+~(,])(?:section)?:root($|[^\w-])`)

// rootReplace makes ":root" selectors target slide element.
func rootReplace(sheet *css.Stylesheet) error {
	walkStyleRules(sheet, true, func(r *css.Rule) {
		for i, sel := range r.Selectors {
			// ReplaceAllString does not handle adjacent matches sharing the
			// separator, loop until stable
			for {
				next := reRoot.ReplaceAllString(sel, "${1}section${2}")
				if next == sel {
					break
				}
				sel = next
			}
			r.Selectors[i] = sel
		}
	})
	return nil
}

// rootFontSize adds rule exposing font size of slide root as custom
// property right after every slide root rule declaring font-size.
func rootFontSize(sheet *css.Stylesheet) error {
	css.ReplaceDeep(sheet, func(n css.Node, parent css.Container) []css.Node {
		r, ok := n.(*css.Rule)
		if !ok {
			return css.Keep(n)
		}
		if a, ok := parent.(*css.AtRule); ok && isOpaqueAtRule(a.Name) {
			return css.Keep(n)
		}
		var selectors []string
		for _, s := range r.Selectors {
			if isSlideRoot(s) {
				selectors = append(selectors, s)
			}
		}
		if len(selectors) == 0 {
			return css.Keep(n)
		}
		inject := &css.Rule{Selectors: selectors}
		for _, c := range r.Nodes {
			if d, ok := c.(*css.Declaration); ok && strings.EqualFold(d.Property, "font-size") {
				inject.Nodes = append(inject.Nodes, &css.Declaration{Property: RootFontSizeProp, Value: d.Value, Important: d.Important})
			}
		}
		if len(inject.Nodes) == 0 {
			return css.Keep(n)
		}
		return []css.Node{r, inject}
	})
	return nil
}

var reservedContainerNames = []string{"none", "and", "not", "or", "inherit", "initial", "revert", "revert-layer", "unset", "default"}

var reIdent = regexp.MustCompile(`^-?[_a-zA-Z][\w-]*$`)

// ContainerNames filters names which could be used as container-name.
func ContainerNames(names []string) []string {
	var out []string
	for _, n := range names {
		n = strings.TrimSpace(n)
		if !reIdent.MatchString(n) || slices.Contains(reservedContainerNames, strings.ToLower(n)) || slices.Contains(out, n) {
			continue
		}
		out = append(out, n)
	}
	return out
}

func (p *packer) containerQuery(sheet *css.Stylesheet) error {
	rule := &css.Rule{
		Selectors: []string{"section"},
		Nodes:     []css.Node{&css.Declaration{Property: "container-type", Value: "size"}},
	}
	if names := ContainerNames(p.opts.ContainerNames); len(names) > 0 {
		rule.Nodes = append(rule.Nodes, &css.Declaration{Property: "container-name", Value: strings.Join(names, " ")})
	}
	sheet.Prepend(rule)
	return nil
}

// pseudoPrepend pins every top level selector to slide so theme rules never
// leak outside of the deck.
func pseudoPrepend(sheet *css.Stylesheet) error {
	walkStyleRules(sheet, false, func(r *css.Rule) {
		for i, sel := range r.Selectors {
			r.Selectors[i] = prependSlide(sel)
		}
	})
	return nil
}

func prependSlide(sel string) string {
	const prefix = pseudoContainer + " > " + pseudoSlide
	switch {
	case hasTypePrefix(sel, "section"):
		return prefix + sel[len("section"):]
	case strings.HasPrefix(sel, pseudoContainer):
		return sel
	case strings.HasPrefix(sel, pseudoSlide):
		return pseudoContainer + " > " + sel
	case hasTypePrefix(sel, "html"), hasTypePrefix(sel, "body"):
		return sel
	}
	return prefix + " " + sel
}

var (
	reContainerSlide = regexp.MustCompile(`:marpit-container\s*>\s*:marpit-slide($|[^\w-])`)
	reContainer      = regexp.MustCompile(`:marpit-container($|[^\w-])`)
	reSlide          = regexp.MustCompile(`:marpit-slide($|[^\w-])`)
)

func elementsSelector(elements []Element) string {
	parts := make([]string, 0, len(elements))
	for _, e := range elements {
		if s := e.Selector(); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " > ")
}

func escapeRepl(s string) string {
	return strings.ReplaceAll(s, "$", "$$")
}

// pseudoReplace turns pseudo selectors into concrete element chain.
func (p *packer) pseudoReplace(sheet *css.Stylesheet) error {
	container := elementsSelector(p.opts.Containers)
	slide := "section"
	if p.opts.InlineSVG {
		slide = "svg > foreignObject > section"
	}
	full := slide
	if container != "" {
		full = container + " > " + slide
	}
	bare := container
	if bare == "" {
		bare = ":root"
	}

	walkStyleRules(sheet, true, func(r *css.Rule) {
		for i, sel := range r.Selectors {
			sel = reContainerSlide.ReplaceAllString(sel, escapeRepl(full)+"${1}")
			sel = reContainer.ReplaceAllString(sel, escapeRepl(bare)+"${1}")
			sel = reSlide.ReplaceAllString(sel, escapeRepl(slide)+"${1}")
			r.Selectors[i] = sel
		}
	})
	return nil
}

var (
	reSkipRem = regexp.MustCompile(`"[^"]*"|'[^']*'|(?:attr|url|var)\([^)]*\)`)
	reRem     = regexp.MustCompile(`(\d*\.?\d+)rem\b`)
)

const remReplacement = "calc(var(" + RootFontSizeProp + ", 1rem) * ${1})"

// remToCustomProp makes rem units relative to slide font size instead of
// the document root.
func remToCustomProp(sheet *css.Stylesheet) error {
	css.WalkDecls(sheet, func(d *css.Declaration, _ css.Container) {
		if d.Property == RootFontSizeProp || !strings.Contains(d.Value, "rem") {
			return
		}
		d.Value = replaceOutside(d.Value, reSkipRem, func(s string) string {
			return reRem.ReplaceAllString(s, remReplacement)
		})
	})
	return nil
}

// replaceOutside applies fn to parts of s not matched by skip.
func replaceOutside(s string, skip *regexp.Regexp, fn func(string) string) string {
	var (
		b    strings.Builder
		last int
	)
	for _, m := range skip.FindAllStringIndex(s, -1) {
		b.WriteString(fn(s[last:m[0]]))
		b.WriteString(s[m[0]:m[1]])
		last = m[1]
	}
	b.WriteString(fn(s[last:]))
	return b.String()
}

// webkitWorkaround comments out declarations which make WebKit render
// foreignObject content outside of the svg.
func webkitWorkaround(sheet *css.Stylesheet) error {
	css.ReplaceDeep(sheet, func(n css.Node, _ css.Container) []css.Node {
		d, ok := n.(*css.Declaration)
		if !ok {
			return css.Keep(n)
		}
		prop, value := strings.ToLower(d.Property), strings.ToLower(d.Value)
		switch {
		case prop == "will-change", prop == "backdrop-filter", prop == "-webkit-backdrop-filter":
		case prop == "position" && (value == "fixed" || value == "sticky"):
		default:
			return css.Keep(n)
		}
		return []css.Node{&css.Comment{Text: " " + css.NodeString(d) + " "}}
	})
	return nil
}
