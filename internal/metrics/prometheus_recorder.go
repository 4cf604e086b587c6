package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "docweave"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	phaseDuration  *prom.HistogramVec
	stepDuration   *prom.HistogramVec
	stepResults    *prom.CounterVec
	buildDuration  prom.Histogram
	buildOutcome   *prom.CounterVec
	diagnostics    *prom.CounterVec
	xrefLookups    *prom.CounterVec
	containerLoad  *prom.HistogramVec
	permitsInUse   *prom.GaugeVec
	cacheEvictions *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics on reg
// (a fresh registry when nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		phaseDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Duration of pipeline phases (prebuild, build, postbuild, save)",
			Buckets:   prom.DefBuckets,
		}, []string{"phase"}),
		stepDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of individual build steps",
			Buckets:   prom.DefBuckets,
		}, []string{"step"}),
		stepResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "step_results_total",
			Help:      "Build step results by outcome",
		}, []string{"step", "result"}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"}),
		diagnostics: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_total",
			Help:      "Build diagnostics by kind",
		}, []string{"kind"}),
		xrefLookups: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "xref_lookups_total",
			Help:      "UID lookups by answering source",
		}, []string{"source"}),
		containerLoad: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "xref_container_load_seconds",
			Help:      "Time to open or download external reference containers",
			Buckets:   prom.DefBuckets,
		}, []string{"container", "result"}),
		permitsInUse: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "resource_permits_in_use",
			Help:      "Currently held resource permits by kind",
		}, []string{"kind"}),
		cacheEvictions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "LRU evictions by cache",
		}, []string{"cache"}),
	}
	reg.MustRegister(pr.phaseDuration, pr.stepDuration, pr.stepResults, pr.buildDuration, pr.buildOutcome,
		pr.diagnostics, pr.xrefLookups, pr.containerLoad, pr.permitsInUse, pr.cacheEvictions)
	return pr
}

func (p *PrometheusRecorder) ObservePhaseDuration(phase string, d time.Duration) {
	p.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveStepDuration(step string, d time.Duration) {
	p.stepDuration.WithLabelValues(step).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStepResult(step string, result ResultLabel) {
	p.stepResults.WithLabelValues(step, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome BuildOutcomeLabel) {
	p.buildOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncDiagnostic(kind string) {
	p.diagnostics.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) IncXRefLookup(source LookupSource) {
	p.xrefLookups.WithLabelValues(string(source)).Inc()
}

func (p *PrometheusRecorder) ObserveContainerLoad(container string, d time.Duration, success bool) {
	res := "failed"
	if success {
		res = "success"
	}
	p.containerLoad.WithLabelValues(container, res).Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetPermitsInUse(kind string, n int) {
	p.permitsInUse.WithLabelValues(kind).Set(float64(n))
}

func (p *PrometheusRecorder) IncCacheEviction(cache string) {
	p.cacheEvictions.WithLabelValues(cache).Inc()
}
