package page

import (
	"context"

	"git.home.luguber.info/inful/docweave/internal/build"
	"git.home.luguber.info/inful/docweave/internal/model"
	"git.home.luguber.info/inful/docweave/internal/parallel"
)

// UpdateHrefOrder runs link rewriting after every other Postbuild step.
const UpdateHrefOrder = 1000

// updateHref rewrites links in the HTML each document carries once the
// whole build has registered its UIDs and output paths.
type updateHref struct {
	build.BaseStep
	get func(*model.Document) ([]byte, bool)
	set func(d *model.Document, html []byte, dangling []string)
}

// UpdateHrefStep returns the Postbuild step that rewrites the HTML get
// extracts and hands the result to set.
func UpdateHrefStep(get func(*model.Document) ([]byte, bool), set func(*model.Document, []byte, []string)) build.Step {
	return updateHref{
		BaseStep: build.BaseStep{StepName: "update-href", Order: UpdateHrefOrder},
		get:      get,
		set:      set,
	}
}

func (s updateHref) Postbuild(ctx context.Context, bc *build.Context, docs []*model.Document) error {
	return parallel.RunBounded(ctx, docs, 0, func(ctx context.Context, d *model.Document) error {
		html, ok := s.get(d)
		if !ok || len(html) == 0 {
			return nil
		}
		out, dangling, err := RewriteLinks(ctx, bc, d, html)
		if err != nil {
			return err
		}
		s.set(d, out, dangling)
		return nil
	})
}

// TOCLink returns the relative link from key's page to the first table of
// contents that lists it.
func TOCLink(bc *build.Context, key string) string {
	for _, tocKey := range bc.TOCsFor(key) {
		if out, ok := bc.OutputPath(tocKey); ok {
			return bc.RelativeHref(key, out)
		}
	}
	return ""
}
