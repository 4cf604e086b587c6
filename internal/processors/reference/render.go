package reference

import (
	"bytes"
	"embed"
	"html/template"

	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/markdown"
)

//go:embed templates/*.tmpl
var templates embed.FS

var body = template.Must(template.New("body.html.tmpl").Funcs(template.FuncMap{
	"anchor": markdown.Anchor,
	// Summaries and remarks are authored HTML.
	"raw": func(s string) template.HTML { return template.HTML(s) }, //nolint:gosec // trusted source documents
}).ParseFS(templates, "templates/body.html.tmpl"))

// renderBody produces the article fragment of a page. Type references are
// emitted as xref elements and resolved in Postbuild.
func renderBody(p *Page) ([]byte, error) {
	if len(p.Items) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	err := body.Execute(&buf, struct {
		Page    *Item
		Members []*Item
	}{p.Items[0], p.Items[1:]})
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryBuild, "render reference page").
			WithContext("uid", p.Items[0].UID).Build()
	}
	return buf.Bytes(), nil
}
