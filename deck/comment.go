package deck

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"mdeck/directive"
	"mdeck/markdown"
)

// Kinds of parsed comments stored in metaCommentParsed.
const (
	parsedGlobal = "global"
	parsedLocal  = "local"
	parsedMagic  = "well-known-magic-comment"
)

var (
	reFrontMatterClose = regexp.MustCompile(`^(?:---|\.\.\.)[ \t]*$`)
	reComment          = regexp.MustCompile(`<!--+([\s\S]*?)-+->`)

	magicComments = []*regexp.Regexp{
		// prettier
		regexp.MustCompile(`^prettier-ignore(?:-(?:start|end))?$`),
		// markdownlint
		regexp.MustCompile(`^markdownlint-(?:(?:disable|enable).*|capture|restore)$`),
		// remark-lint
		regexp.MustCompile(`^lint (?:disable|enable|ignore).*$`),
	}
)

// looseNames returns names for loose directive decoding, nil when loose
// mode is off.
func (d *Deck) looseNames() []string {
	if !d.opts.LooseYAML {
		return nil
	}
	return d.opts.Directives.Names()
}

// frontMatter extracts leading "---" delimited block. Its lines are blanked
// in source so line maps of other tokens stay exact.
func (d *Deck) frontMatter(s *markdown.State) error {
	first, rest, ok := strings.Cut(s.Src, "\n")
	if !ok || strings.TrimRight(first, " \t") != "---" {
		return nil
	}
	lines := strings.Split(rest, "\n")
	end := -1
	for i, l := range lines {
		if reFrontMatterClose.MatchString(l) {
			end = i
			break
		}
	}
	if end < 0 {
		return nil
	}

	t := markdown.NewToken("front_matter", "", 0)
	t.Block, t.Hidden = true, true
	t.Markup = "---"
	t.Content = strings.Join(lines[:end], "\n")
	t.Map = []int{0, end + 2}
	if obj, ok := directive.Decode(t.Content, d.looseNames()); ok {
		t.SetMeta(metaParsed, obj)
	} else {
		d.log.Debug("Front matter ignored, not a mapping")
	}
	s.Tokens = append(s.Tokens, t)

	s.Src = strings.Repeat("\n", end+2) + strings.Join(lines[end+1:], "\n")
	return nil
}

// frontMatterOf returns decoded front matter. It is the first token before
// segmentation and follows the opening of the first slide after it.
func frontMatterOf(tokens []*markdown.Token) map[string]any {
	for _, t := range tokens {
		switch {
		case t.Type == "front_matter":
			obj, _ := markdown.MetaValue[map[string]any](t, metaParsed)
			return obj
		case slideElement(t) == -1:
			return nil
		}
	}
	return nil
}

// splitComments returns trimmed bodies when text holds only comments and
// whitespace.
func splitComments(text string) ([]string, bool) {
	var bodies []string
	rest := text
	for {
		rest = strings.TrimLeft(rest, " \t\r\n")
		if rest == "" {
			break
		}
		loc := reComment.FindStringSubmatchIndex(rest)
		if loc == nil || loc[0] != 0 {
			return nil, false
		}
		bodies = append(bodies, strings.TrimSpace(rest[loc[2]:loc[3]]))
		rest = rest[loc[1]:]
	}
	return bodies, len(bodies) > 0
}

func isMagicComment(body string) bool {
	for _, re := range magicComments {
		if re.MatchString(body) {
			return true
		}
	}
	return false
}

func (d *Deck) commentToken(body string, block bool) *markdown.Token {
	t := markdown.NewToken("marpit_comment", "", 0)
	t.Content, t.Markup = body, "<!--"
	t.Block, t.Hidden = block, true
	if obj, ok := directive.Decode(body, d.looseNames()); ok {
		t.SetMeta(metaParsed, obj)
	}
	if isMagicComment(body) {
		t.SetMeta(metaCommentParsed, parsedMagic)
	}
	return t
}

// comment turns HTML blocks made of comments into comment tokens.
func (d *Deck) comment(s *markdown.State) error {
	out := make([]*markdown.Token, 0, len(s.Tokens))
	for _, t := range s.Tokens {
		if t.Type != "html_block" {
			out = append(out, t)
			continue
		}
		bodies, ok := splitComments(t.Content)
		if !ok {
			out = append(out, t)
			continue
		}
		for _, body := range bodies {
			c := d.commentToken(body, true)
			c.Level = t.Level
			if t.Map != nil {
				c.Map = append([]int(nil), t.Map...)
			}
			out = append(out, c)
		}
	}
	s.Tokens = out
	return nil
}

// commentInline does the same for inline HTML.
func (d *Deck) commentInline(s *markdown.State) error {
	for _, t := range s.Tokens {
		if t.Type != "inline" {
			continue
		}
		children := make([]*markdown.Token, 0, len(t.Children))
		for _, c := range t.Children {
			if c.Type != "html_inline" {
				children = append(children, c)
				continue
			}
			bodies, ok := splitComments(c.Content)
			if !ok {
				children = append(children, c)
				continue
			}
			for _, body := range bodies {
				children = append(children, d.commentToken(body, false))
			}
		}
		t.Children = children
	}
	return nil
}

// eachComment visits block and inline comment tokens in document order.
func eachComment(tokens []*markdown.Token, fn func(t *markdown.Token)) {
	for _, t := range tokens {
		switch t.Type {
		case "marpit_comment":
			fn(t)
		case "inline":
			for _, c := range t.Children {
				if c.Type == "marpit_comment" {
					fn(c)
				}
			}
		}
	}
}

func isNote(t *markdown.Token) bool {
	return t.Type == "marpit_comment" && !t.HasMeta(metaCommentParsed)
}

// collectComment gathers comments which were not consumed as directives,
// one list per slide.
func collectComment(s *markdown.State) error {
	env := envOf(s)
	env.comments = [][]string{}
	cur := -1
	for _, t := range s.Tokens {
		switch {
		case slideElement(t) == 1:
			env.comments = append(env.comments, []string{})
			cur++
		case cur < 0:
		case isNote(t):
			env.comments[cur] = append(env.comments[cur], t.Content)
		case t.Type == "inline":
			for _, c := range t.Children {
				if isNote(c) {
					env.comments[cur] = append(env.comments[cur], c.Content)
				}
			}
		}
	}
	return nil
}

func logComment(log *zap.Logger, t *markdown.Token, kind string) {
	if log.Core().Enabled(zap.DebugLevel) {
		log.Debug("Directive comment", zap.String("kind", kind), zap.Ints("map", t.Map))
	}
}
