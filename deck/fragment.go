package deck

import (
	"strconv"

	"mdeck/markdown"
)

// fragment marks list items using "*" bullet or ")" ordered marker.
func fragment(s *markdown.State) error {
	for _, t := range s.Tokens {
		if t.Type == "list_item_open" && (t.Markup == "*" || t.Markup == ")") {
			t.SetMeta(metaFragment, 0)
		}
	}
	return nil
}

// applyFragment numbers fragments within every slide.
func applyFragment(s *markdown.State) error {
	var (
		cur   *markdown.Token
		count int
	)
	for _, t := range s.Tokens {
		switch {
		case slideElement(t) == 1:
			cur, count = t, 0
		case slideElement(t) == -1:
			if cur == nil {
				continue
			}
			cur.SetMeta(metaFragments, count)
			if count > 0 {
				cur.AttrSet("data-marpit-fragments", strconv.Itoa(count))
			}
			cur = nil
		case t.HasMeta(metaFragment):
			count++
			t.SetMeta(metaFragment, count)
			t.AttrSet("data-marpit-fragment", strconv.Itoa(count))
		}
	}
	return nil
}
