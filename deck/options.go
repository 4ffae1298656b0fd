package deck

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"mdeck/directive"
	"mdeck/markdown"
	"mdeck/theme"
)

var (
	// ErrInvalidHeadingDivider is returned by New when heading levels are out
	// of 1..6 range.
	ErrInvalidHeadingDivider = errors.New("invalid heading divider")
	// ErrInvalidContainer is returned by New for container elements without
	// tag.
	ErrInvalidContainer = errors.New("invalid container element")
	// ErrInvalidLang is returned by New when lang is not a BCP 47 tag.
	ErrInvalidLang = errors.New("invalid lang")
)

// Element describes wrapper HTML element.
type Element = theme.Element

// AnchorFunc computes slide id from slide index and slide tokens (slide
// open and close tokens excluded).
type AnchorFunc func(index int, tokens []*markdown.Token) string

// InlineSVGOptions controls wrapping slides into svg > foreignObject.
type InlineSVGOptions struct {
	Enabled bool
	// WebKitWorkaround comments out declarations which break foreignObject
	// rendering in WebKit.
	WebKitWorkaround bool
}

// Options for New.
type Options struct {
	// Containers wrap the whole deck, outermost first. Nil means single
	// div.marpit, empty non-nil slice means no containers.
	Containers []Element
	// SlideContainers wrap every slide, outermost first.
	SlideContainers []Element

	// Anchor computes slide ids, slide number is used when nil.
	Anchor        AnchorFunc
	DisableAnchor bool

	// HeadingDivider lists heading levels which start new slide.
	HeadingDivider []int

	// LooseYAML enables loose parsing of directive values.
	LooseYAML bool

	InlineSVG InlineSVGOptions
	// InlineStyle enables <style> blocks in Markdown.
	InlineStyle bool
	// HTML passes raw HTML through, it is escaped otherwise.
	HTML bool

	Printable  bool
	CSSNesting bool

	// ContainerQuery makes slides size query containers, names are optional.
	ContainerQuery      bool
	ContainerQueryNames []string

	// Lang is default value for lang directive.
	Lang string

	Themes     *theme.Set
	Directives *directive.Registry

	// KeyGenerator returns keys of scoped styles, it must produce unique
	// values.
	KeyGenerator func() string

	Logger *zap.Logger
}

// DefaultContainers returns containers used when Options.Containers is nil.
func DefaultContainers() []Element {
	return []Element{{Tag: "div", Class: "marpit"}}
}

// RandomKey generates 8 characters long random key.
func RandomKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func defaultAnchor(index int, _ []*markdown.Token) string {
	return strconv.Itoa(index + 1)
}

func (o *Options) validate() error {
	for _, l := range o.HeadingDivider {
		if l < 1 || l > 6 {
			return fmt.Errorf("%w: level %d", ErrInvalidHeadingDivider, l)
		}
	}
	for _, list := range [][]Element{o.Containers, o.SlideContainers} {
		for _, e := range list {
			if strings.TrimSpace(e.Tag) == "" {
				return fmt.Errorf("%w: %+v", ErrInvalidContainer, e)
			}
		}
	}
	if o.Lang != "" {
		if _, err := language.Parse(o.Lang); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidLang, o.Lang, err)
		}
	}
	return nil
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Containers == nil {
		o.Containers = DefaultContainers()
	}
	if o.Anchor == nil {
		o.Anchor = defaultAnchor
	}
	if o.KeyGenerator == nil {
		o.KeyGenerator = RandomKey
	}
	if o.Themes == nil {
		o.Themes = theme.NewSet(o.Logger)
	}
}
