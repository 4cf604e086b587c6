// Package reference processes YAML API reference pages and applies the
// overwrite fragments authored for their items.
package reference

import (
	"context"
	"fmt"
	"html/template"
	"os"
	"path"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/docweave/internal/build"
	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/htmllinks"
	"git.home.luguber.info/inful/docweave/internal/markdown"
	"git.home.luguber.info/inful/docweave/internal/merge"
	"git.home.luguber.info/inful/docweave/internal/model"
	"git.home.luguber.info/inful/docweave/internal/processors/page"
	"git.home.luguber.info/inful/docweave/internal/xref"
)

// MimeHeader optionally starts a reference page.
const MimeHeader = "### YamlMime:ManagedReference"

// Processor handles *.yml and *.yaml API pages.
type Processor struct {
	schemas *merge.Registry
}

func New() *Processor {
	return &Processor{schemas: Schemas()}
}

func (p *Processor) Name() string { return "reference" }

func (p *Processor) Supports(f build.File) build.Priority {
	switch strings.ToLower(path.Ext(f.Path)) {
	case ".yml", ".yaml":
		return build.Normal
	}
	return build.NotSupported
}

// Load decodes the page and declares one UID per item.
func (p *Processor) Load(f build.File) (*model.Document, error) {
	data, err := os.ReadFile(f.FullPath())
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "read reference page").WithContext("path", f.Key).Build()
	}
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "invalid reference page").WithContext("path", f.Key).Build()
	}
	if len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return nil, errors.ValidationError("reference page must be a mapping").WithContext("path", f.Key).Build()
	}
	top := root.Content[0]
	decoded, err := model.DecodeYAMLValue(top)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "invalid reference page").WithContext("path", f.Key).Build()
	}
	bag, _ := decoded.(*model.Bag)

	pg := &Page{Extra: model.NewBag()}
	for _, k := range bag.Keys() {
		v, _ := bag.Get(k)
		if k != "items" {
			pg.Extra.Set(k, v)
			continue
		}
		list, ok := v.([]any)
		if !ok {
			return nil, errors.ValidationError("items must be a list").WithContext("path", f.Key).Build()
		}
		for i, e := range list {
			ib, ok := e.(*model.Bag)
			if !ok {
				return nil, errors.ValidationError("item must be a mapping").WithContext("path", f.Key).WithContext("index", i).Build()
			}
			it, err := itemFromBag(ib)
			if err != nil {
				return nil, errors.WrapError(err, errors.CategoryValidation, "invalid item").WithContext("path", f.Key).WithContext("index", i).Build()
			}
			if it.UID == "" {
				return nil, errors.ValidationError("item without uid").WithContext("path", f.Key).WithContext("index", i).Build()
			}
			pg.Items = append(pg.Items, it)
		}
	}
	if len(pg.Items) == 0 {
		return nil, errors.ValidationError("reference page has no items").WithContext("path", f.Key).Build()
	}

	doc := model.NewDocument(f.Key, model.KindArticle, f.BaseDir)
	doc.Group = f.Group
	doc.Content = pg
	positions := uidPositions(top)
	for i, it := range pg.Items {
		pos := positions[i]
		doc.DefineUID(it.UID, pos.Line, pos.Column, model.Pointer("items", strconv.Itoa(i), "uid"))
	}
	return doc, nil
}

// uidPositions returns the source position of every item's uid value.
func uidPositions(top *yaml.Node) []yaml.Node {
	var out []yaml.Node
	for i := 0; i+1 < len(top.Content); i += 2 {
		if top.Content[i].Value != "items" || top.Content[i+1].Kind != yaml.SequenceNode {
			continue
		}
		for _, item := range top.Content[i+1].Content {
			var pos yaml.Node
			for j := 0; j+1 < len(item.Content); j += 2 {
				if item.Content[j].Value == "uid" {
					pos = *item.Content[j+1]
				}
			}
			out = append(out, pos)
		}
	}
	return out
}

func (p *Processor) Steps() []build.Step {
	return []build.Step{
		applyOverwrites{BaseStep: build.BaseStep{StepName: "apply-overwrites", Order: 0}, schemas: p.schemas},
		renderStep{build.BaseStep{StepName: "render-reference", Order: 10}},
		page.UpdateHrefStep(func(d *model.Document) ([]byte, bool) {
			pg, ok := d.Content.(*Page)
			if !ok {
				return nil, false
			}
			return pg.HTML, true
		}, func(d *model.Document, html []byte, dangling []string) {
			pg := d.Content.(*Page)
			pg.HTML = html
			pg.Dangling = dangling
		}),
	}
}

func (p *Processor) OutputPath(d *model.Document) string {
	return strings.TrimSuffix(d.Key, path.Ext(d.Key)) + ".html"
}

func (p *Processor) Save(bc *build.Context, d *model.Document) (build.SaveResult, error) {
	pg, ok := d.Content.(*Page)
	if !ok || len(pg.Items) == 0 {
		return build.SaveResult{}, errors.InternalError("reference document without page content").
			WithContext("document", d.Key).Build()
	}
	head := pg.Items[0]
	content, err := page.Render(page.Data{
		Title: head.Name,
		UID:   head.UID,
		TOC:   page.TOCLink(bc, d.Key),
		Meta:  page.MetaFrom(head.Extra),
		Body:  template.HTML(pg.HTML), //nolint:gosec // produced by renderBody
	})
	if err != nil {
		return build.SaveResult{}, err
	}
	res := build.SaveResult{OutputPath: p.OutputPath(d), Content: content, DanglingLinks: pg.Dangling}
	for _, it := range pg.Items {
		res.XRefSpecs = append(res.XRefSpecs, specOf(it))
	}
	return res, nil
}

func specOf(it *Item) xref.Spec {
	b := xref.NewBuilder(it.UID).
		Name(it.Name).
		FullName(it.FullName).
		NameWithType(it.NameWithType).
		CommentID(it.CommentID)
	if it.Type != "" {
		b.Set("type", it.Type)
	}
	return b.Build()
}

// applyOverwrites merges every fragment authored for an item. A fragment
// that cannot be applied is reported and leaves the item as it was.
type applyOverwrites struct {
	build.BaseStep
	schemas *merge.Registry
}

func (s applyOverwrites) Build(_ context.Context, bc *build.Context, d *model.Document) error {
	pg, ok := d.Content.(*Page)
	if !ok {
		return nil
	}
	for i, it := range pg.Items {
		for _, frag := range bc.Overwrites(it.UID) {
			merged, err := s.apply(it, frag)
			if err != nil {
				bc.Diagnostics().Add(build.Diagnostic{
					Kind:      build.DiagMergeConflict,
					Message:   fmt.Sprintf("cannot apply overwrite for %s: %v", it.UID, err),
					Phase:     build.PhaseBuild,
					Step:      s.Name(),
					Document:  d.Key,
					UID:       it.UID,
					Locations: []string{fmt.Sprintf("%s:%d", frag.File, frag.Line)},
					Err:       err,
				})
				continue
			}
			d.ReferenceFile(frag.File)
			pg.Items[i], it = merged, merged
		}
	}
	return nil
}

func (s applyOverwrites) apply(it *Item, frag model.OverwriteFragment) (*Item, error) {
	over := model.NewBag()
	for _, prop := range frag.Properties {
		if err := s.schemas.ValidateOPath("item", prop.OPath); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", prop.File, prop.Line, err)
		}
		if err := merge.ApplyOPath(over, prop.OPath, prop.Value); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", prop.File, prop.Line, err)
		}
	}
	out, err := it.clone()
	if err != nil {
		return nil, err
	}
	if err := merge.Into(out.MergeNode(), over); err != nil {
		return nil, err
	}
	return out, nil
}

// renderStep publishes item descriptors and bookmarks, records outgoing
// references and renders the body.
type renderStep struct{ build.BaseStep }

func (renderStep) Build(_ context.Context, bc *build.Context, d *model.Document) error {
	pg, ok := d.Content.(*Page)
	if !ok {
		return nil
	}
	for i, it := range pg.Items {
		bc.PublishXRefSpec(d.Key, specOf(it))
		if i > 0 {
			bc.RegisterBookmark(it.UID, markdown.Anchor(it.UID))
		}
	}
	html, err := renderBody(pg)
	if err != nil {
		return err
	}
	links, err := htmllinks.Extract(html)
	if err != nil {
		return err
	}
	for _, l := range links {
		if l.Tag == "xref" {
			d.ReferenceUID(l.URL)
		} else if uid, ok := markdown.XRefUID(l.URL); ok {
			d.ReferenceUID(uid)
		}
	}
	pg.HTML = html
	return nil
}
