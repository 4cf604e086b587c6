// Package page holds what the HTML producing processors share: the page
// layout and the Postbuild link rewriting.
package page

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"slices"
	"strings"

	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/model"
)

//go:embed templates/*.tmpl
var templates embed.FS

var layout = template.Must(template.ParseFS(templates, "templates/layout.html.tmpl"))

// MetaTag is one <meta> element.
type MetaTag struct {
	Name    string
	Content string
}

// Data feeds the layout.
type Data struct {
	Title string
	UID   string
	Lang  string
	// TOC is the relative link to the table of contents listing the page.
	TOC  string
	Meta []MetaTag
	Body template.HTML
}

// MetaFrom turns the scalar properties of b into meta tags sorted by name.
// Keys starting with '_' are internal and skipped.
func MetaFrom(b *model.Bag) []MetaTag {
	if b == nil {
		return nil
	}
	var out []MetaTag
	for _, k := range b.Keys() {
		if k == "" || k[0] == '_' {
			continue
		}
		v, _ := b.Get(k)
		switch v.(type) {
		case string, bool, int, int64, float64:
			out = append(out, MetaTag{Name: k, Content: fmt.Sprint(v)})
		}
	}
	slices.SortFunc(out, func(a, b MetaTag) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Render wraps a body fragment in the page layout.
func Render(d Data) ([]byte, error) {
	var buf bytes.Buffer
	if err := layout.Execute(&buf, d); err != nil {
		return nil, errors.WrapError(err, errors.CategoryBuild, "render page layout").
			WithContext("uid", d.UID).Build()
	}
	return buf.Bytes(), nil
}
