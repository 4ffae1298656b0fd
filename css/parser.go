package css

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// ErrSyntax is returned (wrapped) when stylesheet cannot be parsed.
var ErrSyntax = errors.New("css syntax error")

// Parser parses CSS stylesheets into a node tree. Nested rules are
// supported.
type Parser struct {
	log *zap.Logger
}

// NewParser creates a new CSS parser.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("css-parser")}
}

type token struct {
	tt   css.TokenType
	data string
}

// Parse parses CSS text into a Stylesheet. Unbalanced blocks and stray
// tokens at the top level are reported as errors.
// The optional source parameter identifies what's being parsed (for debug logging).
func (p *Parser) Parse(data []byte, source ...string) (*Stylesheet, error) {
	if len(source) > 0 && source[0] != "" {
		p.log.Debug("Parsing CSS", zap.String("source", source[0]), zap.Int("bytes", len(data)))
	}

	toks, err := tokenize(data)
	if err != nil {
		return nil, err
	}

	st := &stream{toks: toks}
	nodes, err := st.parseList(true)
	if err != nil {
		p.log.Debug("CSS parse error", zap.Error(err))
		return nil, err
	}
	return &Stylesheet{Nodes: nodes}, nil
}

// MustParse is a helper for static stylesheets, it panics on error.
func MustParse(data string) *Stylesheet {
	s, err := NewParser(nil).Parse([]byte(data))
	if err != nil {
		panic(err)
	}
	return s
}

func tokenize(data []byte) ([]token, error) {
	lexer := css.NewLexer(parse.NewInput(bytes.NewReader(data)))
	var toks []token
	for {
		tt, raw := lexer.Next()
		if tt == css.ErrorToken {
			if err := lexer.Err(); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
			}
			return toks, nil
		}
		switch tt {
		case css.BadStringToken, css.BadURLToken:
			return nil, fmt.Errorf("%w: malformed token %q", ErrSyntax, string(raw))
		case css.CDOToken, css.CDCToken:
			continue
		}
		// lexer reuses its buffer, data must be copied
		toks = append(toks, token{tt: tt, data: string(raw)})
	}
}

type stream struct {
	toks []token
	pos  int
}

func (s *stream) eof() bool {
	return s.pos >= len(s.toks)
}

func (s *stream) peek() token {
	return s.toks[s.pos]
}

func (s *stream) skipWhitespace() {
	for !s.eof() && s.toks[s.pos].tt == css.WhitespaceToken {
		s.pos++
	}
}

// parseList parses block content (or the whole sheet when top is set)
// consuming the closing brace.
func (s *stream) parseList(top bool) ([]Node, error) {
	var nodes []Node
	for {
		s.skipWhitespace()
		if s.eof() {
			if !top {
				return nil, fmt.Errorf("%w: unexpected end of input, missing '}'", ErrSyntax)
			}
			return nodes, nil
		}

		t := s.peek()
		switch t.tt {
		case css.CommentToken:
			s.pos++
			nodes = append(nodes, &Comment{Text: strings.TrimSuffix(strings.TrimPrefix(t.data, "/*"), "*/")})
		case css.RightBraceToken:
			s.pos++
			if top {
				return nil, fmt.Errorf("%w: unexpected '}'", ErrSyntax)
			}
			return nodes, nil
		case css.SemicolonToken:
			s.pos++
		case css.AtKeywordToken:
			s.pos++
			n, err := s.parseAtRule(t.data[1:])
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, n)
		default:
			prelude, term := s.collectPrelude()
			switch term {
			case css.LeftBraceToken:
				selectors := SplitSelectors(joinTokens(prelude))
				if len(selectors) == 0 {
					return nil, fmt.Errorf("%w: rule without selector", ErrSyntax)
				}
				children, err := s.parseList(false)
				if err != nil {
					return nil, err
				}
				nodes = append(nodes, &Rule{Selectors: selectors, Nodes: children})
			default:
				if top {
					return nil, fmt.Errorf("%w: unexpected %q at top level", ErrSyntax, joinTokens(prelude))
				}
				// invalid declarations are dropped like browsers do
				if d := makeDeclaration(prelude); d != nil {
					nodes = append(nodes, d)
				}
			}
		}
	}
}

func (s *stream) parseAtRule(name string) (Node, error) {
	prelude, term := s.collectPrelude()
	rule := &AtRule{Name: strings.ToLower(name), Params: joinTokens(prelude)}
	if term == css.LeftBraceToken {
		children, err := s.parseList(false)
		if err != nil {
			return nil, err
		}
		rule.HasBlock = true
		rule.Nodes = children
	}
	return rule, nil
}

// collectPrelude gathers tokens up to ';', '{' or '}' on the same nesting
// level. '{' and ';' are consumed, '}' is left for the caller.
func (s *stream) collectPrelude() ([]token, css.TokenType) {
	var (
		out   []token
		depth int
	)
	for !s.eof() {
		t := s.peek()
		switch t.tt {
		case css.LeftParenthesisToken, css.LeftBracketToken, css.FunctionToken:
			depth++
		case css.RightParenthesisToken, css.RightBracketToken:
			if depth > 0 {
				depth--
			}
		case css.SemicolonToken, css.LeftBraceToken:
			if depth == 0 {
				s.pos++
				return out, t.tt
			}
		case css.RightBraceToken:
			if depth == 0 {
				return out, t.tt
			}
		}
		out = append(out, t)
		s.pos++
	}
	return out, css.ErrorToken
}

func makeDeclaration(toks []token) *Declaration {
	i := 0
	for i < len(toks) && (toks[i].tt == css.WhitespaceToken || toks[i].tt == css.CommentToken) {
		i++
	}
	if i >= len(toks) || (toks[i].tt != css.IdentToken && toks[i].tt != css.CustomPropertyNameToken) {
		return nil
	}
	prop := toks[i].data
	i++
	for i < len(toks) && toks[i].tt == css.WhitespaceToken {
		i++
	}
	if i >= len(toks) || toks[i].tt != css.ColonToken {
		return nil
	}
	rest := toks[i+1:]

	d := &Declaration{Property: prop}
	// look for trailing "! important"
	j := len(rest) - 1
	for j >= 0 && rest[j].tt == css.WhitespaceToken {
		j--
	}
	if j >= 0 && rest[j].tt == css.IdentToken && strings.EqualFold(rest[j].data, "important") {
		k := j - 1
		for k >= 0 && rest[k].tt == css.WhitespaceToken {
			k--
		}
		if k >= 0 && rest[k].tt == css.DelimToken && rest[k].data == "!" {
			d.Important = true
			rest = rest[:k]
		}
	}
	if strings.HasPrefix(prop, "--") {
		// custom properties keep their value verbatim
		var b strings.Builder
		for _, t := range rest {
			b.WriteString(t.data)
		}
		d.Value = strings.TrimSpace(b.String())
	} else {
		d.Value = joinTokens(rest)
	}
	return d
}

// joinTokens builds text from tokens collapsing whitespace and dropping
// comments.
func joinTokens(toks []token) string {
	var b strings.Builder
	space := false
	for _, t := range toks {
		switch t.tt {
		case css.WhitespaceToken:
			space = true
			continue
		case css.CommentToken:
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteString(t.data)
	}
	return b.String()
}

// SplitSelectors splits selector list on top level commas. Commas inside
// strings, brackets and parentheses are preserved.
func SplitSelectors(s string) []string {
	var (
		out   []string
		depth int
		quote rune
		start int
		esc   bool
	)
	push := func(part string) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	for i, r := range s {
		switch {
		case esc:
			esc = false
		case r == '\\':
			esc = true
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(' || r == '[':
			depth++
		case r == ')' || r == ']':
			if depth > 0 {
				depth--
			}
		case r == ',' && depth == 0:
			push(s[start:i])
			start = i + 1
		}
	}
	push(s[start:])
	return out
}
