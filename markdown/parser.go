// Package markdown turns Markdown source into a flat stream of tokens which
// is processed by an ordered chain of named rules and rendered to HTML.
// Parsing itself is done by goldmark, its AST is converted to tokens.
package markdown

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
	"go.uber.org/zap"
)

// Core rule names usable as anchors.
const (
	RuleNormalize = "normalize"
	RuleBlock     = "block"
	RuleInline    = "inline"
)

// State is passed through the rule chain.
type State struct {
	Src    string
	Tokens []*Token
	// Inline is set for inline only parsing, block structure is not
	// produced and slide oriented rules must not run.
	Inline bool
	// Env carries caller data for the duration of a single parse.
	Env any
}

// Parser owns the core rule chain.
type Parser struct {
	Core *Chain
	md   goldmark.Markdown
	log  *zap.Logger
}

// NewParser creates parser with core rules registered.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Parser{
		Core: &Chain{},
		md:   goldmark.New(goldmark.WithExtensions(extension.GFM)),
		log:  log.Named("markdown"),
	}
	// names are unique, chain is empty: no errors possible
	_ = p.Core.Push(RuleNormalize, normalize)
	_ = p.Core.Push(RuleBlock, p.block)
	_ = p.Core.Push(RuleInline, p.inline)
	return p
}

// Parse runs the whole chain over the source.
func (p *Parser) Parse(src string, env any) ([]*Token, error) {
	s := &State{Src: src, Env: env}
	if err := p.Core.Run(s); err != nil {
		return nil, err
	}
	return s.Tokens, nil
}

// ParseInline runs the chain in inline mode. Result is a single "inline"
// token with parsed children.
func (p *Parser) ParseInline(src string, env any) ([]*Token, error) {
	s := &State{Src: src, Env: env, Inline: true}
	if err := p.Core.Run(s); err != nil {
		return nil, err
	}
	return s.Tokens, nil
}

func normalize(s *State) error {
	s.Src = strings.NewReplacer("\r\n", "\n", "\r", "\n", "\x00", "�").Replace(s.Src)
	return nil
}

func (p *Parser) block(s *State) error {
	src := []byte(s.Src)
	doc := p.md.Parser().Parse(text.NewReader(src))

	c := newConverter(src)
	if s.Inline {
		t := NewToken("inline", "", 0)
		t.Content = strings.TrimSpace(s.Src)
		t.Map = []int{0, 1}
		t.node = firstInlineContainer(doc)
		s.Tokens = append(s.Tokens, t)
		return nil
	}
	c.document(doc)
	s.Tokens = append(s.Tokens, c.out...)
	p.log.Debug("Block structure parsed", zap.Int("tokens", len(c.out)))
	return nil
}

func (p *Parser) inline(s *State) error {
	c := newConverter([]byte(s.Src))
	for _, t := range s.Tokens {
		if t.Type != "inline" {
			continue
		}
		switch {
		case t.node != nil:
			t.Children = c.inlines(t.node)
			t.node = nil
		case t.Children == nil && t.Content != "":
			t.Children = []*Token{textToken(t.Content)}
		}
	}
	return nil
}
