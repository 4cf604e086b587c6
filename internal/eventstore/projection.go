package eventstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"git.home.luguber.info/inful/docweave/internal/build"
	"git.home.luguber.info/inful/docweave/internal/metrics"
)

// StatusRunning marks a build that has events but no completion yet.
const StatusRunning = "running"

// BuildSummary is a read model of one build, rebuilt from its events.
type BuildSummary struct {
	BuildID     string           `json:"build_id"`
	Status      string           `json:"status"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Duration    time.Duration    `json:"duration,omitempty"`
	Documents   int              `json:"documents"`
	Written     int              `json:"written"`
	Diagnostics map[string]int   `json:"diagnostics,omitempty"`
	Phases      map[string]int64 `json:"phases_ms,omitempty"`
	// FailedSteps counts steps that reported a failure result.
	FailedSteps  int      `json:"failed_steps,omitempty"`
	FailedGroups []string `json:"failed_groups,omitempty"`
}

// BuildHistoryProjection keeps a bounded in-memory history of builds.
type BuildHistoryProjection struct {
	mu       sync.RWMutex
	store    Store
	builds   map[string]*BuildSummary
	history  []*BuildSummary // newest first
	maxSize  int
	lastSync time.Time
}

// NewBuildHistoryProjection creates a projection over store keeping at most
// maxHistorySize completed builds (100 when <= 0).
func NewBuildHistoryProjection(store Store, maxHistorySize int) *BuildHistoryProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &BuildHistoryProjection{
		store:   store,
		builds:  make(map[string]*BuildSummary),
		history: make([]*BuildSummary, 0, maxHistorySize),
		maxSize: maxHistorySize,
	}
}

// Rebuild replays every stored event into a fresh projection.
func (p *BuildHistoryProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.Range(ctx, time.Unix(0, 0), time.Now())
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.builds = make(map[string]*BuildSummary)
	p.history = p.history[:0]
	for _, e := range events {
		p.applyLocked(e)
	}
	p.lastSync = time.Now()
	return nil
}

// Apply folds a single event into the projection.
func (p *BuildHistoryProjection) Apply(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyLocked(e)
}

func (p *BuildHistoryProjection) applyLocked(e Event) {
	if e.BuildID == "" {
		return
	}
	summary, ok := p.builds[e.BuildID]
	if !ok {
		summary = &BuildSummary{BuildID: e.BuildID, Status: StatusRunning, StartedAt: e.Timestamp}
		p.builds[e.BuildID] = summary
	}

	switch e.Type {
	case build.EventPhaseStarted:
		if e.Timestamp.Before(summary.StartedAt) {
			summary.StartedAt = e.Timestamp
		}
	case build.EventStepCompleted:
		var payload struct {
			Result metrics.ResultLabel `json:"result"`
		}
		if e.Decode(&payload) == nil && payload.Result == metrics.ResultFailed {
			summary.FailedSteps++
		}
	case build.EventDiagnostic:
		var payload struct {
			Kind string `json:"kind"`
		}
		if e.Decode(&payload) == nil && payload.Kind != "" {
			if summary.Diagnostics == nil {
				summary.Diagnostics = make(map[string]int)
			}
			summary.Diagnostics[payload.Kind]++
		}
	case build.EventBuildCompleted:
		var report build.ReportSerializable
		if err := e.Decode(&report); err != nil {
			return
		}
		p.completeLocked(summary, e.Timestamp, &report)
	}
}

func (p *BuildHistoryProjection) completeLocked(summary *BuildSummary, at time.Time, report *build.ReportSerializable) {
	if !report.Start.IsZero() {
		summary.StartedAt = report.Start
	}
	end := at
	if !report.End.IsZero() {
		end = report.End
	}
	summary.CompletedAt = &end
	summary.Duration = end.Sub(summary.StartedAt)
	summary.Status = string(report.Outcome)
	summary.Documents = 0
	for _, n := range report.Documents {
		summary.Documents += n
	}
	summary.Written = report.Written
	summary.Phases = report.PhaseDurations
	summary.FailedGroups = report.FailedGroups
	// The report's counts are authoritative over incrementally seen diagnostics.
	if len(report.Counts) > 0 {
		summary.Diagnostics = report.Counts
	}

	if !slices.ContainsFunc(p.history, func(h *BuildSummary) bool { return h.BuildID == summary.BuildID }) {
		p.history = append(p.history, summary)
	}
	slices.SortStableFunc(p.history, func(a, b *BuildSummary) int { return b.StartedAt.Compare(a.StartedAt) })
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	p.pruneLocked()
}

// pruneLocked drops completed builds that fell out of the bounded history.
func (p *BuildHistoryProjection) pruneLocked() {
	keep := make(map[string]bool, len(p.history))
	for _, h := range p.history {
		keep[h.BuildID] = true
	}
	for id, s := range p.builds {
		if s.Status != StatusRunning && !keep[id] {
			delete(p.builds, id)
		}
	}
}

// History returns copies of the completed builds, newest first.
func (p *BuildHistoryProjection) History() []BuildSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]BuildSummary, 0, len(p.history))
	for _, h := range p.history {
		out = append(out, *h)
	}
	return out
}

// Build returns a copy of the summary for buildID.
func (p *BuildHistoryProjection) Build(buildID string) (BuildSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.builds[buildID]
	if !ok {
		return BuildSummary{}, false
	}
	return *s, true
}

// Running returns builds without a completion event.
func (p *BuildHistoryProjection) Running() []BuildSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []BuildSummary
	for _, s := range p.builds {
		if s.Status == StatusRunning {
			out = append(out, *s)
		}
	}
	slices.SortFunc(out, func(a, b BuildSummary) int { return a.StartedAt.Compare(b.StartedAt) })
	return out
}

// LastSyncTime returns when Rebuild last completed.
func (p *BuildHistoryProjection) LastSyncTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSync
}
