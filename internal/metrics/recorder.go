package metrics

import "time"

// ResultLabel enumerates per-document step result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFailed   ResultLabel = "failed"
	ResultCanceled ResultLabel = "canceled"
)

// BuildOutcomeLabel is the final outcome of a build.
type BuildOutcomeLabel string

// LookupSource identifies where a UID lookup was answered.
type LookupSource string

const (
	LookupBuild      LookupSource = "build"
	LookupContainer  LookupSource = "container"
	LookupRedirect   LookupSource = "redirect"
	LookupUnresolved LookupSource = "unresolved"
)

// Recorder defines observability hooks for the build pipeline and reference
// resolution. Implementations must be safe for concurrent use.
type Recorder interface {
	ObservePhaseDuration(phase string, d time.Duration)
	ObserveStepDuration(step string, d time.Duration)
	IncStepResult(step string, result ResultLabel)
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome BuildOutcomeLabel)
	IncDiagnostic(kind string)
	IncXRefLookup(source LookupSource)
	ObserveContainerLoad(container string, d time.Duration, success bool)
	SetPermitsInUse(kind string, n int)
	IncCacheEviction(cache string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObservePhaseDuration(string, time.Duration)             {}
func (NoopRecorder) ObserveStepDuration(string, time.Duration)              {}
func (NoopRecorder) IncStepResult(string, ResultLabel)                      {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)                     {}
func (NoopRecorder) IncBuildOutcome(BuildOutcomeLabel)                      {}
func (NoopRecorder) IncDiagnostic(string)                                   {}
func (NoopRecorder) IncXRefLookup(LookupSource)                             {}
func (NoopRecorder) ObserveContainerLoad(string, time.Duration, bool)       {}
func (NoopRecorder) SetPermitsInUse(string, int)                            {}
func (NoopRecorder) IncCacheEviction(string)                                {}

// OrNoop returns r, or NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
