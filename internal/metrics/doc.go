// Package metrics provides build observability for docweave.
//
// Components receive a Recorder through their options. NoopRecorder is the
// default so callers never nil-check; PrometheusRecorder is activated by the
// CLI when metrics.enabled is set and served through HTTPHandler.
package metrics
