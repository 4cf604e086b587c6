// Package resource copies files no other processor claims.
package resource

import (
	"os"

	"git.home.luguber.info/inful/docweave/internal/build"
	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/manifest"
	"git.home.luguber.info/inful/docweave/internal/model"
)

// Processor copies any file verbatim.
type Processor struct{}

func New() *Processor { return &Processor{} }

func (p *Processor) Name() string { return "resource" }

func (p *Processor) Supports(build.File) build.Priority { return build.Lowest }

// Load only records where the file lives; it is read when saved.
func (p *Processor) Load(f build.File) (*model.Document, error) {
	if _, err := os.Stat(f.FullPath()); err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "stat resource").WithContext("path", f.Key).Build()
	}
	doc := model.NewDocument(f.Key, model.KindResource, f.BaseDir)
	doc.Group = f.Group
	doc.Content = f.FullPath()
	return doc, nil
}

func (p *Processor) Steps() []build.Step { return nil }

func (p *Processor) OutputPath(d *model.Document) string { return d.Key }

func (p *Processor) Save(_ *build.Context, d *model.Document) (build.SaveResult, error) {
	src, _ := d.Content.(string)
	data, err := os.ReadFile(src)
	if err != nil {
		return build.SaveResult{}, errors.WrapError(err, errors.CategoryFileSystem, "read resource").WithContext("path", d.Key).Build()
	}
	return build.SaveResult{
		OutputPath:  p.OutputPath(d),
		Content:     data,
		Fingerprint: manifest.Fingerprint("", string(data)),
	}, nil
}
