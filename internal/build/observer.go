package build

import (
	"context"
	"log/slog"
	"time"

	"github.com/goccy/go-json"

	"git.home.luguber.info/inful/docweave/internal/logfields"
	"git.home.luguber.info/inful/docweave/internal/metrics"
)

// Observer receives callbacks around phase and step execution. Step and
// diagnostic callbacks may arrive concurrently.
type Observer interface {
	OnPhaseStart(phase Phase)
	OnPhaseComplete(phase Phase, d time.Duration)
	OnStepComplete(phase Phase, step string, d time.Duration, result metrics.ResultLabel)
	OnDiagnostic(d Diagnostic)
	OnBuildComplete(report *Report)
}

// NoopObserver is a no-op implementation.
type NoopObserver struct{}

func (NoopObserver) OnPhaseStart(Phase)                                            {}
func (NoopObserver) OnPhaseComplete(Phase, time.Duration)                          {}
func (NoopObserver) OnStepComplete(Phase, string, time.Duration, metrics.ResultLabel) {}
func (NoopObserver) OnDiagnostic(Diagnostic)                                       {}
func (NoopObserver) OnBuildComplete(*Report)                                       {}

// Observers fans callbacks out to every non-nil observer in order.
func Observers(obs ...Observer) Observer {
	var out multiObserver
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

type multiObserver []Observer

func (m multiObserver) OnPhaseStart(p Phase) {
	for _, o := range m {
		o.OnPhaseStart(p)
	}
}

func (m multiObserver) OnPhaseComplete(p Phase, d time.Duration) {
	for _, o := range m {
		o.OnPhaseComplete(p, d)
	}
}

func (m multiObserver) OnStepComplete(p Phase, step string, d time.Duration, r metrics.ResultLabel) {
	for _, o := range m {
		o.OnStepComplete(p, step, d, r)
	}
}

func (m multiObserver) OnDiagnostic(d Diagnostic) {
	for _, o := range m {
		o.OnDiagnostic(d)
	}
}

func (m multiObserver) OnBuildComplete(r *Report) {
	for _, o := range m {
		o.OnBuildComplete(r)
	}
}

// RecorderObserver adapts a metrics.Recorder into an Observer.
func RecorderObserver(rec metrics.Recorder) Observer {
	return recorderObserver{rec: metrics.OrNoop(rec)}
}

type recorderObserver struct{ rec metrics.Recorder }

func (recorderObserver) OnPhaseStart(Phase) {}

func (r recorderObserver) OnPhaseComplete(p Phase, d time.Duration) {
	r.rec.ObservePhaseDuration(string(p), d)
}

func (r recorderObserver) OnStepComplete(_ Phase, step string, d time.Duration, result metrics.ResultLabel) {
	r.rec.ObserveStepDuration(step, d)
	r.rec.IncStepResult(step, result)
}

func (r recorderObserver) OnDiagnostic(d Diagnostic) { r.rec.IncDiagnostic(string(d.Kind)) }

func (r recorderObserver) OnBuildComplete(report *Report) {
	r.rec.ObserveBuildDuration(report.End.Sub(report.Start))
	r.rec.IncBuildOutcome(metrics.BuildOutcomeLabel(report.Outcome))
}

// EventAppender persists build events. eventstore.SQLiteStore satisfies it.
type EventAppender interface {
	Append(ctx context.Context, buildID, eventType string, payload []byte, metadata map[string]string) error
}

// Event types written by EventObserver.
const (
	EventPhaseStarted   = "PhaseStarted"
	EventPhaseCompleted = "PhaseCompleted"
	EventStepCompleted  = "StepCompleted"
	EventDiagnostic     = "DiagnosticRecorded"
	EventBuildCompleted = "BuildCompleted"
)

// EventObserver appends every callback to store under buildID. Append
// failures are logged and otherwise ignored.
func EventObserver(store EventAppender, buildID string, logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &eventObserver{store: store, buildID: buildID, logger: logger}
}

type eventObserver struct {
	store   EventAppender
	buildID string
	logger  *slog.Logger
}

func (e *eventObserver) append(eventType string, payload any, meta map[string]string) {
	data, err := json.Marshal(payload)
	if err != nil {
		e.logger.Warn("Failed to encode build event", slog.String("event", eventType), logfields.Error(err))
		return
	}
	if err := e.store.Append(context.Background(), e.buildID, eventType, data, meta); err != nil {
		e.logger.Warn("Failed to append build event", slog.String("event", eventType), logfields.Error(err))
	}
}

func (e *eventObserver) OnPhaseStart(p Phase) {
	e.append(EventPhaseStarted, map[string]string{"phase": string(p)}, map[string]string{"phase": string(p)})
}

func (e *eventObserver) OnPhaseComplete(p Phase, d time.Duration) {
	e.append(EventPhaseCompleted, map[string]any{"phase": p, "duration_ms": d.Milliseconds()}, map[string]string{"phase": string(p)})
}

func (e *eventObserver) OnStepComplete(p Phase, step string, d time.Duration, result metrics.ResultLabel) {
	e.append(EventStepCompleted, map[string]any{
		"phase":       p,
		"step":        step,
		"duration_ms": d.Milliseconds(),
		"result":      result,
	}, map[string]string{"phase": string(p), "step": step})
}

func (e *eventObserver) OnDiagnostic(d Diagnostic) {
	e.append(EventDiagnostic, d, map[string]string{"kind": string(d.Kind)})
}

func (e *eventObserver) OnBuildComplete(r *Report) {
	e.append(EventBuildCompleted, r.Serializable(), map[string]string{"outcome": string(r.Outcome)})
}
