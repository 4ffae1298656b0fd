package convert

import (
	"encoding/json"
	"io"

	"mdeck/deck"
	"mdeck/directive"
)

type jsonImage struct {
	URL    string `json:"url"`
	Size   string `json:"size,omitempty"`
	Width  string `json:"width,omitempty"`
	Height string `json:"height,omitempty"`
	Filter string `json:"filter,omitempty"`
	Alt    string `json:"alt,omitempty"`
}

type jsonBackground struct {
	Images    []jsonImage `json:"images"`
	Advanced  bool        `json:"advanced"`
	Direction string      `json:"direction,omitempty"`
	Split     string      `json:"split,omitempty"`
	SplitSize string      `json:"split_size,omitempty"`
}

type jsonSlide struct {
	Index      int             `json:"index"`
	ID         string          `json:"id,omitempty"`
	Page       int             `json:"page,omitempty"`
	PageTotal  int             `json:"page_total,omitempty"`
	Fragments  int             `json:"fragments"`
	ScopeKey   string          `json:"scope_key,omitempty"`
	Directives directive.Set   `json:"directives"`
	Comments   []string        `json:"comments"`
	Background *jsonBackground `json:"background,omitempty"`
	HTML       string          `json:"html,omitempty"`
}

type jsonResult struct {
	Title            string        `json:"title,omitempty"`
	GlobalDirectives directive.Set `json:"global_directives"`
	Slides           []jsonSlide   `json:"slides"`
	HTML             string        `json:"html"`
	CSS              string        `json:"css"`
}

func buildJSON(res *deck.Result, values Values) jsonResult {
	out := jsonResult{
		Title:            values.Title,
		GlobalDirectives: res.GlobalDirectives,
		Slides:           make([]jsonSlide, 0, len(res.Slides)),
		HTML:             res.HTML,
		CSS:              res.CSS,
	}
	for i, s := range res.Slides {
		js := jsonSlide{
			Index:      s.Index,
			ID:         s.ID,
			Page:       s.Page,
			PageTotal:  s.PageTotal,
			Fragments:  s.Fragments,
			ScopeKey:   s.ScopeKey,
			Directives: s.Directives,
			Comments:   []string{},
		}
		if i < len(res.Comments) {
			js.Comments = res.Comments[i]
		}
		if i < len(res.HTMLSlides) {
			js.HTML = res.HTMLSlides[i]
		}
		if bg := s.Background; bg != nil {
			js.Background = &jsonBackground{
				Images:    make([]jsonImage, 0, len(bg.Images)),
				Advanced:  bg.Advanced,
				Direction: bg.Direction,
				Split:     bg.Split,
				SplitSize: bg.SplitSize,
			}
			for _, img := range bg.Images {
				js.Background.Images = append(js.Background.Images, jsonImage(img))
			}
		}
		out.Slides = append(out.Slides, js)
	}
	return out
}

func writeJSON(w io.Writer, res *deck.Result, values Values) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(buildJSON(res, values))
}
