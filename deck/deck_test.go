package deck

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"mdeck/directive"
	"mdeck/markdown"
	"mdeck/theme"
)

func newTestDeck(t *testing.T, opts Options) *Deck {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
	}
	d, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return d
}

func render(t *testing.T, d *Deck, src string) *Result {
	t.Helper()
	res, err := d.Render(src, RenderOptions{HTMLAsArray: true})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	return res
}

func sequentialKeys() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("k%d", n)
	}
}

func assertHTML(t *testing.T, html string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(html, w) {
			t.Errorf("output does not contain %q\n%s", w, html)
		}
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want error
	}{
		{"heading level", Options{HeadingDivider: []int{1, 7}}, ErrInvalidHeadingDivider},
		{"container tag", Options{Containers: []Element{{Tag: " "}}}, ErrInvalidContainer},
		{"slide container tag", Options{SlideContainers: []Element{{Class: "x"}}}, ErrInvalidContainer},
		{"lang", Options{Lang: "not a language!"}, ErrInvalidLang},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opts); !errors.Is(err, tt.want) {
				t.Errorf("New() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDeck_Passes(t *testing.T) {
	d := newTestDeck(t, Options{})
	names := d.Passes()
	order := []string{
		markdown.RuleNormalize, RuleFrontMatter, markdown.RuleBlock, RuleStyleParse, RuleComment,
		markdown.RuleInline, RuleCommentInline, RuleImage, RuleBackgroundImage, RuleSweep,
		RuleGlobalDirectives, RuleHeadingDivider, RuleSlide, RuleDirectives,
		RuleFragment, RuleApplyFragment, RuleInlineSVG, RuleApplyBackgroundImage,
		RuleApplyDirectives, RuleAdvancedBackground, RuleHeaderAndFooter,
		RuleSlideContainers, RuleContainers, RuleCollectComment, RuleStyleAssign, RuleSweepParagraph,
	}
	if !reflect.DeepEqual(names, order) {
		t.Errorf("Passes() = %v\nwant %v", names, order)
	}
}

func TestRender_Slides(t *testing.T) {
	d := newTestDeck(t, Options{})
	res := render(t, d, "# A\n\n---\n\n# B")

	want := "<div class=\"marpit\">\n" +
		"<section id=\"1\">\n<h1>A</h1>\n</section>\n" +
		"<section id=\"2\">\n<h1>B</h1>\n</section>\n" +
		"</div>\n"
	if res.HTML != want {
		t.Errorf("HTML = %q, want %q", res.HTML, want)
	}

	wantSlides := []string{
		"<section id=\"1\">\n<h1>A</h1>\n</section>\n",
		"<section id=\"2\">\n<h1>B</h1>\n</section>\n",
	}
	if !reflect.DeepEqual(res.HTMLSlides, wantSlides) {
		t.Errorf("HTMLSlides = %q, want %q", res.HTMLSlides, wantSlides)
	}

	if len(res.Slides) != 2 {
		t.Fatalf("slides = %d, want 2", len(res.Slides))
	}
	for i, s := range res.Slides {
		if s.Index != i || s.Total != 2 || s.ID != fmt.Sprint(i+1) {
			t.Errorf("slide %d = %+v", i, s)
		}
	}
	if !strings.Contains(res.CSS, "div.marpit > section{") {
		t.Errorf("CSS does not target slides in container\n%s", res.CSS)
	}
}

func TestRender_EmptyDocument(t *testing.T) {
	d := newTestDeck(t, Options{})
	res := render(t, d, "")
	if len(res.Slides) != 1 {
		t.Errorf("slides = %d, want 1", len(res.Slides))
	}
	if !reflect.DeepEqual(res.Comments, [][]string{{}}) {
		t.Errorf("Comments = %v", res.Comments)
	}
}

func TestRender_Containers(t *testing.T) {
	d := newTestDeck(t, Options{
		Containers:      []Element{},
		SlideContainers: []Element{{Tag: "div", Class: "slide a slide"}},
		DisableAnchor:   true,
	})
	res := render(t, d, "# A\n\n---\n\n# B")
	if strings.Contains(res.HTML, "marpit") || strings.Contains(res.HTML, "id=") {
		t.Errorf("unexpected container or anchor\n%s", res.HTML)
	}
	if got := strings.Count(res.HTML, `<div class="slide a">`); got != 2 {
		t.Errorf("slide containers = %d, want 2\n%s", got, res.HTML)
	}
	if len(res.HTMLSlides) != 2 || !strings.HasPrefix(res.HTMLSlides[1], `<div class="slide a">`) {
		t.Errorf("HTMLSlides = %q", res.HTMLSlides)
	}
	assertHTML(t, res.CSS, "div.slide.a > section{")
}

func TestRender_HeadingAnchor(t *testing.T) {
	d := newTestDeck(t, Options{Anchor: HeadingAnchor})
	res := render(t, d, "# Hello World\n\n---\n\ntext")
	if res.Slides[0].ID != "hello-world" || res.Slides[1].ID != "2" {
		t.Errorf("ids = %q %q", res.Slides[0].ID, res.Slides[1].ID)
	}
}

func TestRender_DirectiveCascade(t *testing.T) {
	d := newTestDeck(t, Options{})
	res := render(t, d, `<!-- color: red -->

# A

---

<!-- _class: lead -->

# B

---

# C
`)
	want := []directive.Set{
		{"color": "red"},
		{"color": "red", "class": "lead"},
		{"color": "red"},
	}
	for i, s := range res.Slides {
		if !reflect.DeepEqual(s.Directives, want[i]) {
			t.Errorf("slide %d directives = %v, want %v", i, s.Directives, want[i])
		}
	}
	if got := strings.Count(res.HTML, ` class="lead"`); got != 1 {
		t.Errorf("lead class applied %d times\n%s", got, res.HTML)
	}
	assertHTML(t, res.HTML, `data-color="red"`, `style="--color:red;color:red;"`)
	if !reflect.DeepEqual(res.Comments, [][]string{{}, {}, {}}) {
		t.Errorf("directive comments leaked into notes: %v", res.Comments)
	}
}

func TestRender_FrontMatter(t *testing.T) {
	d := newTestDeck(t, Options{})
	res := render(t, d, "---\nclass: lead\npaginate: true\n---\n\n# A\n")

	s := res.Slides[0]
	if want := (directive.Set{"class": "lead", "paginate": "true"}); !reflect.DeepEqual(s.Directives, want) {
		t.Errorf("directives = %v, want %v", s.Directives, want)
	}
	if s.Page != 1 || s.PageTotal != 1 {
		t.Errorf("page = %d/%d", s.Page, s.PageTotal)
	}
	assertHTML(t, res.HTML, `data-marpit-pagination="1"`, `data-marpit-pagination-total="1"`)
	if strings.Contains(res.HTML, "<hr") {
		t.Errorf("front matter rendered\n%s", res.HTML)
	}

	i := slices.IndexFunc(res.Tokens, func(t *markdown.Token) bool { return t.Type == "heading_open" })
	if i < 0 || !reflect.DeepEqual(res.Tokens[i].Map, []int{5, 6}) {
		t.Errorf("heading map is not preserved")
	}
}

func TestRender_FrontMatterLocalCarry(t *testing.T) {
	d := newTestDeck(t, Options{})
	res := render(t, d, "---\npaginate: true\n_class: lead\n---\n\n# A\n\n---\n\n<!-- paginate: false -->\n\n# B\n\n---\n\n# C\n")

	if len(res.Slides) != 3 {
		t.Fatalf("slides = %d, want 3", len(res.Slides))
	}
	want := []directive.Set{
		{"class": "lead", "paginate": "true"},
		{"paginate": "false"},
		{"paginate": "false"},
	}
	for i, s := range res.Slides {
		if !reflect.DeepEqual(s.Directives, want[i]) {
			t.Errorf("slide %d directives = %v, want %v", i, s.Directives, want[i])
		}
	}
	if s := res.Slides[0]; s.Page != 1 || s.PageTotal != 1 {
		t.Errorf("first slide page = %d/%d, want 1/1", s.Page, s.PageTotal)
	}
	if got := strings.Count(res.HTML, ` class="lead"`); got != 1 {
		t.Errorf("spot class from front matter applied %d times\n%s", got, res.HTML)
	}
}

func TestRender_GlobalDirectives(t *testing.T) {
	themes := theme.NewSet(zaptest.NewLogger(t))
	if _, err := themes.Add("/* @theme small */ section { width: 960px; height: 540px; }"); err != nil {
		t.Fatal(err)
	}
	d := newTestDeck(t, Options{Themes: themes, InlineSVG: InlineSVGOptions{Enabled: true}, Lang: "en-US"})

	res := render(t, d, "<!-- theme: small -->\n\n# A\n\n---\n\n<!-- $lang: fr -->\n")
	if want := (directive.Set{"theme": "small", "lang": "fr"}); !reflect.DeepEqual(res.GlobalDirectives, want) {
		t.Errorf("global directives = %v, want %v", res.GlobalDirectives, want)
	}
	assertHTML(t, res.HTML, `<svg data-marpit-svg="" viewBox="0 0 960 540">`, `lang="fr"`)
	assertHTML(t, res.CSS, "width:960px")

	res = render(t, d, "<!-- theme: unknown -->\n\n# A")
	if _, ok := res.GlobalDirectives[directive.Theme]; ok {
		t.Errorf("unknown theme accepted: %v", res.GlobalDirectives)
	}
	assertHTML(t, res.HTML, `viewBox="0 0 1280 720"`, `lang="en-US"`)
}

func TestRender_CustomDirective(t *testing.T) {
	reg := directive.NewRegistry()
	err := reg.DefineLocal("preset", func(v any) map[string]any {
		if v == "sunset" {
			return map[string]any{"color": "orange", "backgroundColor": "black", "theme": "x"}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	d := newTestDeck(t, Options{Directives: reg})
	res := render(t, d, "<!-- _preset: sunset -->\n\n# A\n\n---\n\n# B")
	if want := (directive.Set{"color": "orange", "backgroundColor": "black"}); !reflect.DeepEqual(res.Slides[0].Directives, want) {
		t.Errorf("directives = %v, want %v", res.Slides[0].Directives, want)
	}
	if len(res.Slides[1].Directives) != 0 {
		t.Errorf("spot directive leaked: %v", res.Slides[1].Directives)
	}
	assertHTML(t, res.HTML, "background-color:black;background-image:none;")
}

func TestRender_Pagination(t *testing.T) {
	d := newTestDeck(t, Options{})
	res := render(t, d, `<!-- paginate: true -->

# 1

---

<!-- _paginate: skip -->

# 2

---

<!-- _paginate: hold -->

# 3

---

# 4
`)
	want := [][2]int{{1, 2}, {0, 0}, {1, 2}, {2, 2}}
	for i, s := range res.Slides {
		if got := [2]int{s.Page, s.PageTotal}; got != want[i] {
			t.Errorf("slide %d page = %v, want %v", i, got, want[i])
		}
	}
	if got := strings.Count(res.HTML, "data-marpit-pagination="); got != 3 {
		t.Errorf("pagination attributes = %d, want 3", got)
	}
}

func TestRender_PaginationLeadingHold(t *testing.T) {
	d := newTestDeck(t, Options{})
	res := render(t, d, `<!-- paginate: true -->
<!-- _paginate: hold -->

# 1

---

# 2

---

<!-- _paginate: hold -->

# 3
`)
	want := [][2]int{{0, 0}, {1, 1}, {1, 1}}
	for i, s := range res.Slides {
		if got := [2]int{s.Page, s.PageTotal}; got != want[i] {
			t.Errorf("slide %d page = %v, want %v", i, got, want[i])
		}
	}
	if got := strings.Count(res.HTML, "data-marpit-pagination="); got != 2 {
		t.Errorf("pagination attributes = %d, want 2", got)
	}
}

func TestRender_Comments(t *testing.T) {
	d := newTestDeck(t, Options{})
	res := render(t, d, `<!-- just a note -->

# A <!-- inline note -->

<!-- prettier-ignore -->

---

<!-- color: blue -->
`)
	want := [][]string{{"just a note", "inline note"}, {}}
	if !reflect.DeepEqual(res.Comments, want) {
		t.Errorf("Comments = %q, want %q", res.Comments, want)
	}
	if strings.Contains(res.HTML, "<!--") || strings.Contains(res.HTML, "&lt;!--") {
		t.Errorf("comments rendered\n%s", res.HTML)
	}
}

func TestRender_Fragments(t *testing.T) {
	d := newTestDeck(t, Options{})
	res := render(t, d, "* a\n* b\n\n---\n\n- c\n- d\n\n---\n\n1) e\n2) f\n3) g\n")
	got := []int{res.Slides[0].Fragments, res.Slides[1].Fragments, res.Slides[2].Fragments}
	if want := []int{2, 0, 3}; !reflect.DeepEqual(got, want) {
		t.Errorf("fragments = %v, want %v", got, want)
	}
	assertHTML(t, res.HTML, `<li data-marpit-fragment="2">`, `data-marpit-fragments="2"`, `data-marpit-fragments="3"`)
	if strings.Contains(res.HTMLSlides[1], "data-marpit-fragment") {
		t.Errorf("dash list marked as fragments\n%s", res.HTMLSlides[1])
	}
}

func TestRender_HeadingDivider(t *testing.T) {
	tests := []struct {
		name   string
		opts   Options
		src    string
		slides int
	}{
		{"option", Options{HeadingDivider: []int{2}}, "# T\n\n## A\n\ntext\n\n## B\n", 3},
		{"leading heading", Options{HeadingDivider: []int{2}}, "## A\n\n## B\n", 2},
		{"deeper level ignored", Options{HeadingDivider: []int{1}}, "# A\n\n## B\n", 1},
		{"directive", Options{}, "<!-- headingDivider: 1 -->\n\n# A\n\n# B\n", 2},
		{"directive overrides option", Options{HeadingDivider: []int{1}}, "<!-- headingDivider: false -->\n\n# A\n\n# B\n", 1},
		{"explicit ruler", Options{HeadingDivider: []int{1}}, "# A\n\n---\n\n# B\n", 2},
		{"nested heading", Options{HeadingDivider: []int{1}}, "# A\n\n> # B\n", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDeck(t, tt.opts)
			res := render(t, d, tt.src)
			if len(res.Slides) != tt.slides {
				t.Errorf("slides = %d, want %d\n%s", len(res.Slides), tt.slides, res.HTML)
			}
		})
	}
}

func TestRender_HeaderAndFooter(t *testing.T) {
	d := newTestDeck(t, Options{})
	res := render(t, d, "<!-- header: '**Hi**' -->\n\n<!-- _footer: bye -->\n\n# A\n\n---\n\n# B")
	assertHTML(t, res.HTMLSlides[0], "<header><strong>Hi</strong></header>", "<footer>bye</footer>\n</section>")
	assertHTML(t, res.HTMLSlides[1], "<header><strong>Hi</strong></header>")
	if strings.Contains(res.HTMLSlides[1], "<footer") {
		t.Errorf("spot footer leaked\n%s", res.HTMLSlides[1])
	}
}

func TestRender_ImageOptions(t *testing.T) {
	d := newTestDeck(t, Options{})
	res := render(t, d, "![w:100 sepia](a.png)\n\n![blur:5px hello 50%](b.png)\n")
	assertHTML(t, res.HTML,
		`<img src="a.png" alt="" style="width:100px;filter:sepia(1);">`,
		`<img src="b.png" alt="hello" style="filter:blur(5px);">`,
	)
}

func TestRender_BackgroundCSS(t *testing.T) {
	d := newTestDeck(t, Options{})
	res := render(t, d, "![bg contain](bg.png)\n\n# A")

	s := res.Slides[0]
	if s.Directives[directive.BackgroundImage] != `url("bg.png")` || s.Directives[directive.BackgroundSize] != "contain" {
		t.Errorf("directives = %v", s.Directives)
	}
	if s.Background == nil || len(s.Background.Images) != 1 || s.Background.Advanced {
		t.Fatalf("background = %+v", s.Background)
	}
	if strings.Contains(res.HTML, "<img") || strings.Contains(res.HTML, "<p>") {
		t.Errorf("background image rendered inline\n%s", res.HTML)
	}
	assertHTML(t, res.HTML, "background-size:contain;")

	res = render(t, d, "![bg](x.png)\n![bg](y.png)\n\n# A")
	if got := res.Slides[0].Directives[directive.BackgroundImage]; got != `url("y.png")` {
		t.Errorf("last background image must win, got %q", got)
	}

	res = render(t, d, "![bg]( )\n\n# A")
	if res.Slides[0].Background != nil {
		t.Errorf("blank url accepted: %+v", res.Slides[0].Background)
	}
}

func TestRender_BackgroundAdvanced(t *testing.T) {
	d := newTestDeck(t, Options{InlineSVG: InlineSVGOptions{Enabled: true}})

	res := render(t, d, "![bg sepia](x.png)\n\n# A")
	if got := strings.Count(res.HTML, "<figure"); got != 1 {
		t.Errorf("figures = %d, want 1\n%s", got, res.HTML)
	}
	assertHTML(t, res.HTML,
		`data-marpit-advanced-background="background"`,
		`data-marpit-advanced-background="content"`,
		`<foreignObject width="1280" height="720" data-marpit-advanced-background="pseudo">`,
		`data-marpit-advanced-background-direction="horizontal"`,
		"filter:sepia(1);",
	)
	if bg := res.Slides[0].Background; bg == nil || !bg.Advanced {
		t.Errorf("background = %+v", bg)
	}
	if _, ok := res.Slides[0].Directives[directive.BackgroundImage]; ok {
		t.Error("advanced background must not use backgroundImage directive")
	}
	if got := strings.Count(res.HTML, `id="1"`); got != 1 {
		t.Errorf("slide id duplicated in layers: %d", got)
	}

	res = render(t, d, "![bg left:30% vertical](x.png)\n![bg caption](y.png)\n\n# A")
	assertHTML(t, res.HTML,
		`<foreignObject width="70%" height="720" x="30%">`,
		`data-marpit-advanced-background-split="left"`,
		"--marpit-advanced-background-split:30%;",
		`data-marpit-advanced-background-direction="vertical"`,
		"<figcaption>caption</figcaption>",
	)
	if got := strings.Count(res.HTML, "<figure"); got != 2 {
		t.Errorf("figures = %d, want 2", got)
	}
}

func TestRender_Styles(t *testing.T) {
	d := newTestDeck(t, Options{InlineStyle: true, KeyGenerator: sequentialKeys()})
	res := render(t, d, `<!-- style: 'h4 { color: pink; }' -->

<style scoped>
h1 { color: red; }
</style>

<style>h3 { color: green; }</style>

# A

---

<style scoped>
@keyframes fade { from { opacity: 0; } to { opacity: 1; } }
h1 { animation: fade 1s; }
</style>

<style scoped>section { color: blue; }</style>

<style>} broken {</style>

# B
`)
	if res.Slides[0].ScopeKey != "k1" || res.Slides[1].ScopeKey != "k2" {
		t.Errorf("scope keys = %q %q", res.Slides[0].ScopeKey, res.Slides[1].ScopeKey)
	}
	assertHTML(t, res.HTMLSlides[0], `data-marpit-scope-k1=""`)
	assertHTML(t, res.HTMLSlides[1], `data-marpit-scope-k2=""`)
	assertHTML(t, res.CSS,
		"div.marpit > section[data-marpit-scope-k1] h1{color:red;}",
		"div.marpit > section[data-marpit-scope-k2]{color:blue;}",
		"@keyframes fade-k2",
		"animation:fade-k2 1s;",
		"div.marpit > section h3{color:green;}",
	)
	if strings.Contains(res.CSS, "broken") {
		t.Errorf("invalid style kept\n%s", res.CSS)
	}
	if h4, h3 := strings.Index(res.CSS, "h4{color:pink;}"), strings.Index(res.CSS, "h3{color:green;}"); h4 < 0 || h4 > h3 {
		t.Errorf("style directive must precede style blocks\n%s", res.CSS)
	}
	if strings.Contains(res.HTML, "<style") {
		t.Errorf("style block rendered\n%s", res.HTML)
	}

	d = newTestDeck(t, Options{})
	res = render(t, d, "<style>h1 { color: red; }</style>\n\n# A")
	assertHTML(t, res.HTML, "&lt;style&gt;")
}

func TestRender_HTML(t *testing.T) {
	src := "<div>x</div>\n\n# A <b>b</b>"

	res := render(t, newTestDeck(t, Options{}), src)
	assertHTML(t, res.HTML, "&lt;div&gt;", "&lt;b&gt;")

	res = render(t, newTestDeck(t, Options{HTML: true}), src)
	assertHTML(t, res.HTML, "<div>x</div>", "<b>b</b>")
}

func TestRender_Printable(t *testing.T) {
	d := newTestDeck(t, Options{Printable: true, ContainerQuery: true})
	res := render(t, d, "# A")
	assertHTML(t, res.CSS, "@page{size:1280px 720px;margin:0;}", "container-type:size;")
}
