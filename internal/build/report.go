package build

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"git.home.luguber.info/inful/docweave/internal/model"
)

// Outcome is the final result state of a build.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeWarning  Outcome = "warning"
	OutcomeFailed   Outcome = "failed"
	OutcomeCanceled Outcome = "canceled"
)

// Report summarizes one build.
type Report struct {
	SchemaVersion  int
	BuildID        string
	Start          time.Time
	End            time.Time
	Documents      map[model.Kind]int
	Written        int
	PhaseDurations map[Phase]time.Duration
	Diagnostics    []Diagnostic
	Counts         map[DiagnosticKind]int
	// FailedGroups lists pipeline groups that hit a structural failure.
	FailedGroups []string
	Outcome      Outcome
}

// NewReport starts a report for buildID.
func NewReport(buildID string) *Report {
	return &Report{
		SchemaVersion:  1,
		BuildID:        buildID,
		Start:          time.Now(),
		Documents:      make(map[model.Kind]int),
		PhaseDurations: make(map[Phase]time.Duration),
		Counts:         make(map[DiagnosticKind]int),
	}
}

// AddDiagnostics folds diags into the report.
func (r *Report) AddDiagnostics(diags ...Diagnostic) {
	for _, d := range diags {
		r.Diagnostics = append(r.Diagnostics, d)
		r.Counts[d.Kind]++
		if d.Kind == DiagStructuralFailure && d.Group != "" && !slices.Contains(r.FailedGroups, d.Group) {
			r.FailedGroups = append(r.FailedGroups, d.Group)
		}
	}
}

// Finish stamps the end time and derives the outcome.
func (r *Report) Finish() {
	r.End = time.Now()
	r.deriveOutcome()
}

// Count returns the number of diagnostics of kind.
func (r *Report) Count(kind DiagnosticKind) int { return r.Counts[kind] }

func (r *Report) deriveOutcome() {
	switch {
	case r.Counts[DiagCanceled] > 0:
		r.Outcome = OutcomeCanceled
	case r.Counts[DiagStructuralFailure] > 0:
		r.Outcome = OutcomeFailed
	case len(r.Diagnostics) > 0:
		r.Outcome = OutcomeWarning
	default:
		r.Outcome = OutcomeSuccess
	}
}

// Summary returns a human-readable single-line summary.
func (r *Report) Summary() string {
	total := 0
	for _, n := range r.Documents {
		total += n
	}
	return fmt.Sprintf("build=%s documents=%d written=%d duration=%s diagnostics=%d outcome=%s",
		r.BuildID, total, r.Written, r.End.Sub(r.Start).Truncate(time.Millisecond), len(r.Diagnostics), r.Outcome)
}

// Text renders the summary followed by per-kind counts and each diagnostic.
func (r *Report) Text() string {
	var b strings.Builder
	b.WriteString(r.Summary())
	b.WriteByte('\n')
	kinds := make([]string, 0, len(r.Counts))
	for k := range r.Counts {
		kinds = append(kinds, string(k))
	}
	slices.Sort(kinds)
	for _, k := range kinds {
		fmt.Fprintf(&b, "  %s: %d\n", k, r.Counts[DiagnosticKind(k)])
	}
	for _, d := range r.Diagnostics {
		fmt.Fprintf(&b, "%s %s\n", d.Severity, d.String())
	}
	return b.String()
}

// Persist writes build-report.json and build-report.txt atomically into root.
func (r *Report) Persist(root string) error {
	if r.End.IsZero() {
		r.Finish()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("ensure root for report: %w", err)
	}
	jb, err := json.MarshalIndent(r.Serializable(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report json: %w", err)
	}
	if err := writeAtomic(filepath.Join(root, "build-report.json"), jb); err != nil {
		return err
	}
	return writeAtomic(filepath.Join(root, "build-report.txt"), []byte(r.Text()))
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("atomic rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

// ReportSerializable is the JSON form of Report.
type ReportSerializable struct {
	SchemaVersion  int                    `json:"schema_version"`
	BuildID        string                 `json:"build_id"`
	Start          time.Time              `json:"start"`
	End            time.Time              `json:"end"`
	DurationMS     int64                  `json:"duration_ms"`
	Documents      map[string]int         `json:"documents"`
	Written        int                    `json:"written"`
	PhaseDurations map[string]int64       `json:"phase_durations_ms"`
	Counts         map[string]int         `json:"counts"`
	Diagnostics    []SerializedDiagnostic `json:"diagnostics"`
	FailedGroups   []string               `json:"failed_groups,omitempty"`
	Outcome        Outcome                `json:"outcome"`
}

// SerializedDiagnostic is a Diagnostic with its error flattened to text.
type SerializedDiagnostic struct {
	Diagnostic
	Error string `json:"error,omitempty"`
}

// Serializable returns a copy with string keyed maps and string errors.
func (r *Report) Serializable() *ReportSerializable {
	s := &ReportSerializable{
		SchemaVersion:  r.SchemaVersion,
		BuildID:        r.BuildID,
		Start:          r.Start,
		End:            r.End,
		DurationMS:     r.End.Sub(r.Start).Milliseconds(),
		Documents:      make(map[string]int, len(r.Documents)),
		Written:        r.Written,
		PhaseDurations: make(map[string]int64, len(r.PhaseDurations)),
		Counts:         make(map[string]int, len(r.Counts)),
		Diagnostics:    make([]SerializedDiagnostic, 0, len(r.Diagnostics)),
		FailedGroups:   r.FailedGroups,
		Outcome:        r.Outcome,
	}
	for k, v := range r.Documents {
		s.Documents[string(k)] = v
	}
	for k, v := range r.PhaseDurations {
		s.PhaseDurations[string(k)] = v.Milliseconds()
	}
	for k, v := range r.Counts {
		s.Counts[string(k)] = v
	}
	for _, d := range r.Diagnostics {
		sd := SerializedDiagnostic{Diagnostic: d}
		if d.Err != nil {
			sd.Error = d.Err.Error()
		}
		s.Diagnostics = append(s.Diagnostics, sd)
	}
	return s
}
