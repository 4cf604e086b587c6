package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObservePhaseDuration("build", 150*time.Millisecond)
	pr.ObserveStepDuration("resolve-xref", 10*time.Millisecond)
	pr.IncStepResult("resolve-xref", ResultSuccess)
	pr.IncStepResult("resolve-xref", ResultFailed)
	pr.ObserveBuildDuration(500 * time.Millisecond)
	pr.IncBuildOutcome("warning")
	pr.IncDiagnostic("duplicate_uid")
	pr.IncXRefLookup(LookupContainer)
	pr.IncXRefLookup(LookupContainer)
	pr.ObserveContainerLoad("dotnet", time.Second, false)
	pr.SetPermitsInUse("cpu", 3)
	pr.IncCacheEviction("xref")

	assert.Equal(t, 2.0, testutil.ToFloat64(pr.xrefLookups.WithLabelValues("container")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.stepResults.WithLabelValues("resolve-xref", "failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(pr.permitsInUse.WithLabelValues("cpu")))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}

func TestHTTPHandlerServesMetrics(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncDiagnostic("unresolved_reference")

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "docweave_diagnostics_total"))
}

func TestOrNoop(t *testing.T) {
	if _, ok := OrNoop(nil).(NoopRecorder); !ok {
		t.Fatalf("expected NoopRecorder for nil input")
	}
	pr := NewPrometheusRecorder(nil)
	if OrNoop(pr) != Recorder(pr) {
		t.Fatalf("expected passthrough for non-nil recorder")
	}
}
