package build

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
)

// DiagnosticKind classifies build problems for the summary report.
type DiagnosticKind string

const (
	DiagDuplicateUID         DiagnosticKind = "duplicate_uid"
	DiagUnresolvedReference  DiagnosticKind = "unresolved_reference"
	DiagMergeConflict        DiagnosticKind = "merge_conflict"
	DiagContainerUnavailable DiagnosticKind = "container_unavailable"
	DiagStructuralFailure    DiagnosticKind = "structural_failure"
	DiagDocumentFailure      DiagnosticKind = "document_failure"
	DiagOutputPathConflict   DiagnosticKind = "output_path_conflict"
	DiagCanceled             DiagnosticKind = "canceled"
)

// Severity returns the default severity of a kind. Group failures and
// cancellation are errors; everything else only degrades the build.
func (k DiagnosticKind) Severity() errors.ErrorSeverity {
	switch k {
	case DiagStructuralFailure, DiagCanceled, DiagDocumentFailure:
		return errors.SeverityError
	default:
		return errors.SeverityWarning
	}
}

// Diagnostic is one recorded problem.
type Diagnostic struct {
	Kind     DiagnosticKind        `json:"kind"`
	Severity errors.ErrorSeverity  `json:"severity"`
	Message  string                `json:"message"`
	Phase    Phase                 `json:"phase,omitempty"`
	Step     string                `json:"step,omitempty"`
	Group    string                `json:"group,omitempty"`
	Document string                `json:"document,omitempty"`
	UID      string                `json:"uid,omitempty"`
	// Locations lists every site involved, e.g. both definitions of a UID.
	Locations []string `json:"locations,omitempty"`
	Err       error    `json:"-"`
}

func (d Diagnostic) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", d.Kind, d.Message)
	if d.Document != "" {
		fmt.Fprintf(&b, " (document %s)", d.Document)
	}
	if len(d.Locations) > 0 {
		fmt.Fprintf(&b, " at %s", strings.Join(d.Locations, ", "))
	}
	return b.String()
}

// Diagnostics is a concurrent-safe collector.
type Diagnostics struct {
	mu       sync.Mutex
	items    []Diagnostic
	onRecord func(Diagnostic)
}

// Add records d, filling the default severity.
func (c *Diagnostics) Add(d Diagnostic) {
	if d.Severity == "" {
		d.Severity = d.Kind.Severity()
	}
	c.mu.Lock()
	c.items = append(c.items, d)
	hook := c.onRecord
	c.mu.Unlock()
	if hook != nil {
		hook(d)
	}
}

// All returns a copy of the recorded diagnostics in record order.
func (c *Diagnostics) All() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.items)
}

// OfKind returns the diagnostics of one kind.
func (c *Diagnostics) OfKind(kind DiagnosticKind) []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Diagnostic
	for _, d := range c.items {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

// Counts returns the number of diagnostics per kind.
func (c *Diagnostics) Counts() map[DiagnosticKind]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[DiagnosticKind]int)
	for _, d := range c.items {
		out[d.Kind]++
	}
	return out
}
