package config

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"mdeck/common"
	"mdeck/deck"
	"mdeck/directive"
	"mdeck/theme"
)

func elements(in []ElementConfig) []deck.Element {
	if in == nil {
		return nil
	}
	out := make([]deck.Element, 0, len(in))
	for _, e := range in {
		out = append(out, deck.Element{Tag: e.Tag, Class: e.Class, ID: e.ID})
	}
	return out
}

// expand substitutes directive value into configured assignments.
func (cd CustomDirectiveConfig) expand(value any) map[string]any {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []any:
		parts := make([]string, 0, len(v))
		for _, p := range v {
			parts = append(parts, fmt.Sprint(p))
		}
		s = strings.Join(parts, " ")
	case nil:
	default:
		s = fmt.Sprint(v)
	}
	out := make(map[string]any, len(cd.Assign))
	for k, v := range cd.Assign {
		out[k] = strings.ReplaceAll(v, ValuePlaceholder, s)
	}
	return out
}

// Directives builds registry of configured custom directives.
func (conf *DeckConfig) Directives() (*directive.Registry, error) {
	reg := directive.NewRegistry()
	for name, cd := range conf.CustomDirectives {
		define := reg.DefineLocal
		if cd.Global {
			define = reg.DefineGlobal
		}
		if err := define(name, cd.expand); err != nil {
			return nil, fmt.Errorf("unable to define custom directive: %w", err)
		}
	}
	return reg, nil
}

// DeckOptions converts configuration into options of deck compiler. Theme
// set is shared, it is expected to be fully loaded already.
func (conf *DeckConfig) DeckOptions(themes *theme.Set, log *zap.Logger) (deck.Options, error) {
	reg, err := conf.Directives()
	if err != nil {
		return deck.Options{}, err
	}

	opts := deck.Options{
		Containers:      elements(conf.Containers),
		SlideContainers: elements(conf.SlideContainers),
		HeadingDivider:  conf.HeadingDivider,
		LooseYAML:       conf.LooseYAML,
		InlineSVG: deck.InlineSVGOptions{
			Enabled:          conf.InlineSVG.Enable,
			WebKitWorkaround: conf.InlineSVG.WebKitWorkaround,
		},
		InlineStyle:         conf.InlineStyle,
		HTML:                conf.HTML,
		Printable:           conf.Printable,
		CSSNesting:          conf.CSSNesting,
		ContainerQuery:      conf.ContainerQuery.Enable,
		ContainerQueryNames: conf.ContainerQuery.Names,
		Lang:                conf.Lang,
		Themes:              themes,
		Directives:          reg,
		Logger:              log,
	}
	switch conf.Anchor {
	case common.AnchorModeHeading:
		opts.Anchor = deck.HeadingAnchor
	case common.AnchorModeNone:
		opts.DisableAnchor = true
	}
	return opts, nil
}
