package eventstore

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docweave/internal/build"
	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/metrics"
	"git.home.luguber.info/inful/docweave/internal/model"
)

func recordBuild(t *testing.T, store *SQLiteStore, buildID string, start time.Time) {
	t.Helper()
	obs := build.EventObserver(store, buildID, nil)
	store.now = func() time.Time { return start }
	obs.OnPhaseStart(build.PhaseBuild)
	obs.OnStepComplete(build.PhaseBuild, "render-markdown", time.Millisecond, metrics.ResultFailed)
	obs.OnDiagnostic(build.Diagnostic{Kind: build.DiagUnresolvedReference, Severity: errors.SeverityWarning, Message: "missing"})

	report := build.NewReport(buildID)
	report.Start = start
	report.Documents[model.KindArticle] = 3
	report.Written = 2
	report.AddDiagnostics(build.Diagnostic{Kind: build.DiagUnresolvedReference, Severity: errors.SeverityWarning, Message: "missing"})
	report.Finish()
	report.End = start.Add(2 * time.Second)
	store.now = func() time.Time { return start.Add(2 * time.Second) }
	obs.OnBuildComplete(report)
}

func TestProjectionRebuildsFromObserverEvents(t *testing.T) {
	store := newStore(t)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	recordBuild(t, store, "b1", start)

	proj := NewBuildHistoryProjection(store, 10)
	require.NoError(t, proj.Rebuild(t.Context()))

	summary, ok := proj.Build("b1")
	require.True(t, ok)
	assert.Equal(t, string(build.OutcomeWarning), summary.Status)
	assert.Equal(t, 3, summary.Documents)
	assert.Equal(t, 2, summary.Written)
	assert.Equal(t, 1, summary.FailedSteps)
	assert.Equal(t, 1, summary.Diagnostics[string(build.DiagUnresolvedReference)])
	assert.Equal(t, 2*time.Second, summary.Duration)
	require.NotNil(t, summary.CompletedAt)
	assert.Empty(t, proj.Running())
	assert.False(t, proj.LastSyncTime().IsZero())
}

func TestProjectionTracksRunningBuild(t *testing.T) {
	proj := NewBuildHistoryProjection(newStore(t), 10)
	proj.Apply(Event{BuildID: "live", Type: build.EventPhaseStarted, Timestamp: time.Now()})

	running := proj.Running()
	require.Len(t, running, 1)
	assert.Equal(t, StatusRunning, running[0].Status)
	assert.Empty(t, proj.History())
}

func TestProjectionHistoryIsBoundedNewestFirst(t *testing.T) {
	store := newStore(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := range 4 {
		recordBuild(t, store, fmt.Sprintf("b%d", i), base.Add(time.Duration(i)*time.Hour))
	}

	proj := NewBuildHistoryProjection(store, 2)
	require.NoError(t, proj.Rebuild(t.Context()))

	history := proj.History()
	require.Len(t, history, 2)
	assert.Equal(t, "b3", history[0].BuildID)
	assert.Equal(t, "b2", history[1].BuildID)
	_, ok := proj.Build("b0")
	assert.False(t, ok, "pruned builds are forgotten")
}
