package convert

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"

	"mdeck/common"
	"mdeck/config"
	"mdeck/deck"
	"mdeck/directive"
	"mdeck/markdown"
	"mdeck/misc"
)

//go:embed document.html.tmpl
var defaultDocumentTmpl string

// Values is a struct that holds variables we make available for template
// expansion.
type Values struct {
	Context    string
	Title      string
	Theme      string
	Lang       string
	Slides     int
	Format     string
	SourceFile string
}

// DocumentValues is available to HTML document template.
type DocumentValues struct {
	Values
	// DocumentTitle is expanded title template.
	DocumentTitle string
	CSS           string
	HTML          string
	Generator     string
}

// deckTitle returns text of the first heading in the deck.
func deckTitle(tokens []*markdown.Token) string {
	for i, t := range tokens {
		if t.Type != "heading_open" || t.Hidden || i+1 >= len(tokens) {
			continue
		}
		if inline := tokens[i+1]; inline.Type == "inline" {
			return strings.TrimSpace(markdown.TextContent(inline.Children))
		}
	}
	return ""
}

func buildValues(res *deck.Result, src string, format common.OutputFmt) Values {
	return Values{
		Title:      deckTitle(res.Tokens),
		Theme:      res.GlobalDirectives[directive.Theme],
		Lang:       res.GlobalDirectives[directive.Lang],
		Slides:     len(res.Slides),
		Format:     format.String(),
		SourceFile: strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)),
	}
}

func expandTemplate(name config.TemplateFieldName, field string, values Values) (string, error) {
	tmpl, err := template.New(string(name)).Funcs(sprig.FuncMap()).Parse(field)
	if err != nil {
		return "", fmt.Errorf("unable to parse template field %s: %w", name, err)
	}

	values.Context = string(name)

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, values); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// loadDocumentTemplate returns configured HTML document template or the
// embedded one.
func loadDocumentTemplate(path string) (*template.Template, error) {
	text := defaultDocumentTmpl
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("unable to read document template from %q: %w", path, err)
		}
		text = string(data)
	}
	tmpl, err := template.New("document").Funcs(sprig.FuncMap()).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("unable to parse document template: %w", err)
	}
	return tmpl, nil
}

func writeDocument(w io.Writer, tmpl *template.Template, res *deck.Result, values Values, title string) error {
	return tmpl.Execute(w, DocumentValues{
		Values:        values,
		DocumentTitle: title,
		CSS:           res.CSS,
		HTML:          res.HTML,
		Generator:     misc.GetAppName() + " " + misc.GetVersion(),
	})
}
