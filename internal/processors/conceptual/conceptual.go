// Package conceptual processes Markdown articles with YAML front matter.
package conceptual

import (
	"context"
	"html/template"
	"os"
	"path"
	"strings"

	"git.home.luguber.info/inful/docweave/internal/build"
	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/frontmatter"
	"git.home.luguber.info/inful/docweave/internal/manifest"
	"git.home.luguber.info/inful/docweave/internal/markdown"
	"git.home.luguber.info/inful/docweave/internal/model"
	"git.home.luguber.info/inful/docweave/internal/processors/page"
	"git.home.luguber.info/inful/docweave/internal/xref"
)

// Article is the content of a conceptual document.
type Article struct {
	Metadata *model.Bag
	Body     []byte
	Title    string
	HTML     []byte
	// Fingerprint covers the normalized front matter and the body.
	Fingerprint string
	Dangling    []string
}

// Processor handles .md and .markdown files.
type Processor struct {
	renderer *markdown.Renderer
}

// New returns a conceptual processor.
func New(opts markdown.Options) *Processor {
	return &Processor{renderer: markdown.New(opts)}
}

func (p *Processor) Name() string { return "conceptual" }

func (p *Processor) Supports(f build.File) build.Priority {
	switch strings.ToLower(path.Ext(f.Path)) {
	case ".md", ".markdown":
		return build.Normal
	}
	return build.NotSupported
}

// Load splits front matter from the body and declares the article UID.
func (p *Processor) Load(f build.File) (*model.Document, error) {
	data, err := os.ReadFile(f.FullPath())
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "read article").WithContext("path", f.Key).Build()
	}
	parsed, err := frontmatter.Parse(data)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "invalid front matter").WithContext("path", f.Key).Build()
	}
	meta, body := parsed.Fields, parsed.Body

	doc := model.NewDocument(f.Key, model.KindArticle, f.BaseDir)
	doc.Group = f.Group
	doc.Properties = meta
	if uid := meta.GetString("uid"); uid != "" {
		doc.DefineUID(uid, parsed.KeyLine("uid"), 1, model.Pointer("uid"))
	}

	normalized, err := frontmatter.SerializeYAML(meta, parsed.Style)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "normalize front matter").WithContext("path", f.Key).Build()
	}
	doc.Content = &Article{
		Metadata:    meta,
		Body:        body,
		Title:       meta.GetString("title"),
		Fingerprint: manifest.Fingerprint(string(normalized), string(body)),
	}
	return doc, nil
}

func (p *Processor) Steps() []build.Step {
	return []build.Step{
		renderStep{BaseStep: build.BaseStep{StepName: "render-markdown", Order: 0}, renderer: p.renderer},
		page.UpdateHrefStep(func(d *model.Document) ([]byte, bool) {
			a, ok := d.Content.(*Article)
			if !ok {
				return nil, false
			}
			return a.HTML, true
		}, func(d *model.Document, html []byte, dangling []string) {
			a := d.Content.(*Article)
			a.HTML = html
			a.Dangling = dangling
		}),
	}
}

// OutputPath swaps the Markdown extension for .html.
func (p *Processor) OutputPath(d *model.Document) string {
	return strings.TrimSuffix(d.Key, path.Ext(d.Key)) + ".html"
}

func (p *Processor) Save(bc *build.Context, d *model.Document) (build.SaveResult, error) {
	a, ok := d.Content.(*Article)
	if !ok {
		return build.SaveResult{}, errors.InternalError("conceptual document without article content").
			WithContext("document", d.Key).Build()
	}
	data := page.Data{
		Title: a.Title,
		Lang:  a.Metadata.GetString("lang"),
		Meta:  page.MetaFrom(a.Metadata),
		Body:  template.HTML(a.HTML), //nolint:gosec // rendered by goldmark from trusted sources
	}
	if len(d.UIDs) > 0 {
		data.UID = d.UIDs[0].Name
	}
	data.TOC = page.TOCLink(bc, d.Key)
	content, err := page.Render(data)
	if err != nil {
		return build.SaveResult{}, err
	}
	res := build.SaveResult{
		OutputPath:    p.OutputPath(d),
		Content:       content,
		DanglingLinks: a.Dangling,
		Fingerprint:   a.Fingerprint,
	}
	for _, def := range d.UIDs {
		res.XRefSpecs = append(res.XRefSpecs, spec(def.Name, a.Title))
	}
	return res, nil
}

func spec(uid, title string) xref.Spec {
	name := title
	if name == "" {
		name = uid
	}
	return xref.NewBuilder(uid).Name(name).Build()
}

// renderStep converts Markdown to HTML, derives the title and publishes the
// article descriptor so Postbuild lookups see the real display name.
type renderStep struct {
	build.BaseStep
	renderer *markdown.Renderer
}

func (s renderStep) Build(_ context.Context, bc *build.Context, d *model.Document) error {
	a, ok := d.Content.(*Article)
	if !ok {
		return nil
	}
	analysis := s.renderer.Analyze(a.Body)
	if a.Title == "" {
		a.Title = analysis.Title
	}
	for _, l := range analysis.Links {
		if uid, ok := markdown.XRefUID(l.Destination); ok {
			d.ReferenceUID(uid)
		}
	}
	html, err := s.renderer.Render(a.Body)
	if err != nil {
		return errors.WrapError(err, errors.CategoryBuild, "render markdown").WithContext("document", d.Key).Build()
	}
	a.HTML = html
	for _, def := range d.UIDs {
		bc.PublishXRefSpec(d.Key, spec(def.Name, a.Title))
	}
	return nil
}
