// Package toc processes toc.yml tables of contents.
package toc

import (
	"context"
	"os"
	"path"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/docweave/internal/build"
	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/markdown"
	"git.home.luguber.info/inful/docweave/internal/model"
)

// Entry is one node of a table of contents.
type Entry struct {
	Name  string   `yaml:"name" json:"name"`
	Href  string   `yaml:"href,omitempty" json:"href,omitempty"`
	UID   string   `yaml:"uid,omitempty" json:"uid,omitempty"`
	Items []*Entry `yaml:"items,omitempty" json:"items,omitempty"`
}

// Processor handles toc.yml and toc.yaml.
type Processor struct{}

func New() *Processor { return &Processor{} }

func (p *Processor) Name() string { return "toc" }

func (p *Processor) Supports(f build.File) build.Priority {
	switch strings.ToLower(path.Base(f.Path)) {
	case "toc.yml", "toc.yaml":
		return build.Highest
	}
	return build.NotSupported
}

func (p *Processor) Load(f build.File) (*model.Document, error) {
	data, err := os.ReadFile(f.FullPath())
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "read toc").WithContext("path", f.Key).Build()
	}
	var entries []*Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "invalid toc").WithContext("path", f.Key).Build()
	}
	doc := model.NewDocument(f.Key, model.KindTOC, f.BaseDir)
	doc.Group = f.Group
	doc.Content = entries
	return doc, nil
}

func (p *Processor) Steps() []build.Step {
	return []build.Step{
		registerStep{build.BaseStep{StepName: "register-toc"}},
		resolveStep{build.BaseStep{StepName: "resolve-toc"}},
	}
}

// OutputPath writes the resolved table as JSON next to the source.
func (p *Processor) OutputPath(d *model.Document) string {
	return strings.TrimSuffix(d.Key, path.Ext(d.Key)) + ".json"
}

func (p *Processor) Save(_ *build.Context, d *model.Document) (build.SaveResult, error) {
	entries, _ := d.Content.([]*Entry)
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return build.SaveResult{}, errors.WrapError(err, errors.CategoryInternal, "encode toc").WithContext("document", d.Key).Build()
	}
	return build.SaveResult{OutputPath: p.OutputPath(d), Content: data}, nil
}

func walk(entries []*Entry, fn func(*Entry)) {
	for _, e := range entries {
		fn(e)
		walk(e.Items, fn)
	}
}

// target returns the key of the file a relative href points at.
func target(tocKey, href string) (key, fragment string, ok bool) {
	if !markdown.IsRelative(href) {
		return "", "", false
	}
	p, frag := markdown.SplitFragment(href)
	if p == "" {
		return "", "", false
	}
	return path.Join(path.Dir(tocKey), p), frag, true
}

// registerStep records the members of each table so pages can link back to
// it during Postbuild.
type registerStep struct{ build.BaseStep }

func (registerStep) Build(_ context.Context, bc *build.Context, d *model.Document) error {
	entries, _ := d.Content.([]*Entry)
	var members []string
	walk(entries, func(e *Entry) {
		if key, _, ok := target(d.Key, e.Href); ok {
			members = append(members, key)
			d.ReferenceFile(key)
		}
		if e.UID != "" {
			d.ReferenceUID(e.UID)
			if def, ok := bc.Definition(e.UID); ok {
				members = append(members, def.File)
			}
		}
	})
	bc.RegisterTOC(d.Key, members...)
	return nil
}

// resolveStep rewrites hrefs to output locations relative to the table.
type resolveStep struct{ build.BaseStep }

func (resolveStep) Postbuild(ctx context.Context, bc *build.Context, docs []*model.Document) error {
	for _, d := range docs {
		entries, _ := d.Content.([]*Entry)
		walk(entries, func(e *Entry) {
			if key, frag, ok := target(d.Key, e.Href); ok {
				if out, found := bc.OutputPath(key); found {
					e.Href = bc.RelativeHref(d.Key, out) + frag
				}
				return
			}
			if e.UID == "" || e.Href != "" {
				return
			}
			spec, ok := bc.Find(ctx, e.UID)
			if !ok {
				bc.Resolver().ReportUnresolved(e.UID, d.Key, e.Name)
				return
			}
			if e.Name == "" {
				e.Name = spec.DisplayName()
			}
			e.Href = spec.Href
			if _, local := bc.Definition(e.UID); local && !strings.Contains(e.Href, "://") {
				e.Href = bc.RelativeHref(d.Key, e.Href)
			}
		})
	}
	return nil
}
