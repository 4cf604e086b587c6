// Package processors assembles the processors of a standard build.
package processors

import (
	"git.home.luguber.info/inful/docweave/internal/build"
	"git.home.luguber.info/inful/docweave/internal/markdown"
	"git.home.luguber.info/inful/docweave/internal/processors/conceptual"
	"git.home.luguber.info/inful/docweave/internal/processors/overwrite"
	"git.home.luguber.info/inful/docweave/internal/processors/reference"
	"git.home.luguber.info/inful/docweave/internal/processors/resource"
	"git.home.luguber.info/inful/docweave/internal/processors/toc"
)

// Default returns every processor in registration order. The order breaks
// priority ties and fixes the group order of UID registration.
func Default(opts markdown.Options) []build.Processor {
	return []build.Processor{
		conceptual.New(opts),
		reference.New(),
		overwrite.New(opts),
		toc.New(),
		resource.New(),
	}
}
