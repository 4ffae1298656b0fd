package css

import (
	"strings"
)

// InlineStyle is an ordered set of declarations for HTML style attribute.
// Setting existing property keeps its original position.
type InlineStyle struct {
	props  []string
	values map[string]string
}

// NewInlineStyle parses style attribute content. Invalid declarations are
// dropped.
func NewInlineStyle(style string) *InlineStyle {
	s := &InlineStyle{values: make(map[string]string)}
	if strings.TrimSpace(style) == "" {
		return s
	}
	sheet, err := NewParser(nil).Parse([]byte("_{" + style + "}"))
	if err != nil || len(sheet.Nodes) != 1 {
		return s
	}
	rule, ok := sheet.Nodes[0].(*Rule)
	if !ok {
		return s
	}
	for _, n := range rule.Nodes {
		if d, ok := n.(*Declaration); ok {
			v := d.Value
			if d.Important {
				v += " !important"
			}
			s.Set(d.Property, v)
		}
	}
	return s
}

// Set assigns property value.
func (s *InlineStyle) Set(prop, value string) *InlineStyle {
	if _, exists := s.values[prop]; !exists {
		s.props = append(s.props, prop)
	}
	s.values[prop] = value
	return s
}

// Get returns property value.
func (s *InlineStyle) Get(prop string) (string, bool) {
	v, ok := s.values[prop]
	return v, ok
}

// Delete removes properties.
func (s *InlineStyle) Delete(props ...string) *InlineStyle {
	for _, prop := range props {
		if _, exists := s.values[prop]; !exists {
			continue
		}
		delete(s.values, prop)
		for i, p := range s.props {
			if p == prop {
				s.props = append(s.props[:i], s.props[i+1:]...)
				break
			}
		}
	}
	return s
}

// Len returns number of properties.
func (s *InlineStyle) Len() int {
	return len(s.props)
}

// String serializes declarations as "prop:value;" sequence. Every pair is
// re-parsed and pairs which do not produce exactly one declaration for the
// same property are skipped, so values cannot inject extra declarations.
func (s *InlineStyle) String() string {
	var b strings.Builder
	p := NewParser(nil)
	for _, prop := range s.props {
		sheet, err := p.Parse([]byte("_{" + prop + ":" + s.values[prop] + "}"))
		if err != nil || len(sheet.Nodes) != 1 {
			continue
		}
		rule, ok := sheet.Nodes[0].(*Rule)
		if !ok || len(rule.Nodes) != 1 {
			continue
		}
		d, ok := rule.Nodes[0].(*Declaration)
		if !ok || d.Property != prop {
			continue
		}
		writeNode(&b, d)
	}
	return b.String()
}
