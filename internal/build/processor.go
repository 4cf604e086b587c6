package build

import (
	"path/filepath"

	"git.home.luguber.info/inful/docweave/internal/model"
	"git.home.luguber.info/inful/docweave/internal/xref"
)

// Priority ranks how well a processor handles a file.
type Priority int

const (
	NotSupported Priority = iota - 1
	Lowest
	Low
	Normal
	High
	Highest
)

// File is one discovered source file.
type File struct {
	// Key identifies the document for the whole build: Path, prefixed by the
	// group name for grouped files.
	Key string
	// Path is the slash separated location relative to BaseDir.
	Path    string
	BaseDir string
	// Group is the version group the file belongs to, "" for none.
	Group string
}

// FullPath returns the OS path of the file.
func (f File) FullPath() string { return filepath.Join(f.BaseDir, filepath.FromSlash(f.Path)) }

// SaveResult is what a processor produces for one finished document.
type SaveResult struct {
	OutputPath    string
	Content       []byte
	XRefSpecs     []xref.Spec
	DanglingLinks []string
	// Fingerprint identifies the source state; empty means hash Content.
	Fingerprint string
}

// Processor loads, transforms and saves one family of documents.
type Processor interface {
	Name() string
	Supports(f File) Priority
	Load(f File) (*model.Document, error)
	Steps() []Step
	// OutputPath plans where doc will be written, relative to the output root.
	OutputPath(doc *model.Document) string
	Save(bc *Context, doc *model.Document) (SaveResult, error)
}

// Dispatch returns the processor with the highest priority for f. Ties go to
// the earliest registered processor.
func Dispatch(processors []Processor, f File) (Processor, bool) {
	i := dispatchIndex(processors, f)
	if i < 0 {
		return nil, false
	}
	return processors[i], true
}

func dispatchIndex(processors []Processor, f File) int {
	best, bestPrio := -1, NotSupported
	for i, p := range processors {
		if prio := p.Supports(f); prio > bestPrio {
			best, bestPrio = i, prio
		}
	}
	return best
}
