// Package overwrite loads overwrite documents: Markdown files holding one or
// more `uid` blocks whose properties are applied to the pages defining
// those UIDs.
package overwrite

import (
	"bytes"
	"context"
	"os"
	"strings"

	"git.home.luguber.info/inful/docweave/internal/build"
	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/frontmatter"
	"git.home.luguber.info/inful/docweave/internal/markdown"
	"git.home.luguber.info/inful/docweave/internal/model"
)

// Suffix marks overwrite documents.
const Suffix = ".overwrite.md"

// ContentPlaceholder is replaced by the rendered body of its block.
const ContentPlaceholder = "*content"

// DefaultContentProperty receives the body of a block that has no
// placeholder.
const DefaultContentProperty = "conceptual"

// Processor handles *.overwrite.md files.
type Processor struct {
	renderer *markdown.Renderer
}

func New(opts markdown.Options) *Processor {
	return &Processor{renderer: markdown.New(opts)}
}

func (p *Processor) Name() string { return "overwrite" }

func (p *Processor) Supports(f build.File) build.Priority {
	if strings.HasSuffix(strings.ToLower(f.Path), Suffix) {
		return build.High
	}
	return build.NotSupported
}

// Load parses every uid block into a fragment.
func (p *Processor) Load(f build.File) (*model.Document, error) {
	data, err := os.ReadFile(f.FullPath())
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "read overwrite document").WithContext("path", f.Key).Build()
	}
	doc := model.NewDocument(f.Key, model.KindOverwrite, f.BaseDir)
	doc.Group = f.Group

	_, blocks := frontmatter.SplitBlocks(data, "uid")
	frags := make([]model.OverwriteFragment, 0, len(blocks))
	for _, b := range blocks {
		frag, err := p.fragment(f.Key, b)
		if err != nil {
			return nil, err
		}
		doc.ReferenceUID(frag.UID)
		frags = append(frags, frag)
	}
	doc.Content = frags
	return doc, nil
}

func (p *Processor) fragment(file string, b frontmatter.Block) (model.OverwriteFragment, error) {
	meta, err := frontmatter.ParseYAML(b.Metadata)
	if err != nil {
		return model.OverwriteFragment{}, errors.WrapError(err, errors.CategoryValidation, "invalid overwrite block").
			WithContext("path", file).WithContext("line", b.Line).Build()
	}
	frag := model.OverwriteFragment{UID: meta.GetString("uid"), File: file, Line: b.Line}
	if frag.UID == "" {
		return frag, errors.ValidationError("overwrite block uid must be a string").
			WithContext("path", file).WithContext("line", b.Line).Build()
	}

	var rendered string
	if len(bytes.TrimSpace(b.Body)) > 0 {
		html, err := p.renderer.Render(b.Body)
		if err != nil {
			return frag, errors.WrapError(err, errors.CategoryBuild, "render overwrite body").
				WithContext("path", file).WithContext("line", b.BodyLine).Build()
		}
		rendered = string(html)
	}

	placed := false
	for _, k := range meta.Keys() {
		if k == "uid" {
			continue
		}
		v, _ := meta.Get(k)
		if s, ok := v.(string); ok && s == ContentPlaceholder {
			v, placed = rendered, true
		}
		frag.Properties = append(frag.Properties, model.OverwriteProperty{
			OPath: k,
			Value: v,
			File:  file,
			Line:  b.Line + keyLine(b.Metadata, k),
		})
	}
	if !placed && rendered != "" {
		frag.Properties = append(frag.Properties, model.OverwriteProperty{
			OPath: DefaultContentProperty,
			Value: rendered,
			File:  file,
			Line:  b.BodyLine,
		})
	}
	return frag, nil
}

func keyLine(meta []byte, key string) int {
	for i, l := range bytes.Split(meta, []byte("\n")) {
		if bytes.HasPrefix(l, []byte(key+":")) {
			return i + 1
		}
	}
	return 0
}

func (p *Processor) Steps() []build.Step {
	return []build.Step{
		collectStep{build.BaseStep{StepName: "collect-overwrites"}},
		checkTargetsStep{build.BaseStep{StepName: "check-overwrite-targets"}},
	}
}

// OutputPath is empty: overwrite documents produce no file.
func (p *Processor) OutputPath(*model.Document) string { return "" }

func (p *Processor) Save(*build.Context, *model.Document) (build.SaveResult, error) {
	return build.SaveResult{}, nil
}

// Fragments returns the fragments carried by an overwrite document.
func Fragments(d *model.Document) []model.OverwriteFragment {
	frags, _ := d.Content.([]model.OverwriteFragment)
	return frags
}

// collectStep publishes fragments before Build so every processor sees
// the complete set.
type collectStep struct{ build.BaseStep }

func (collectStep) Prebuild(_ context.Context, bc *build.Context, docs []*model.Document) ([]*model.Document, error) {
	for _, d := range docs {
		for _, frag := range Fragments(d) {
			bc.RegisterOverwrite(frag)
		}
	}
	return docs, nil
}

// checkTargetsStep reports fragments whose UID no page of the build defines.
type checkTargetsStep struct{ build.BaseStep }

func (checkTargetsStep) Postbuild(_ context.Context, bc *build.Context, docs []*model.Document) error {
	for _, d := range docs {
		for _, frag := range Fragments(d) {
			if _, ok := bc.Definition(frag.UID); !ok {
				bc.Resolver().ReportUnresolved(frag.UID, d.Key, frag.UID)
			}
		}
	}
	return nil
}
