// Package observability provides structured metrics and tracing for the
// workflow engine, re-derived against its own layer/task/checkpoint/gate
// vocabulary rather than the teacher's LLM-call vocabulary.
//
// Grounded on pkg/observability/recorder.go's Metrics interface +
// Prometheus-backed implementation shape and pkg/observability/noop.go's
// NoopMetrics default.
package observability

import (
	"context"
	"net/http"
	"time"
)

// Recorder is the metrics surface every component in this module accepts
// (optionally; a nil Recorder is replaced with NoopRecorder{}).
type Recorder interface {
	RecordLayer(ctx context.Context, workflowID string, layer int, duration time.Duration, taskCount int, err error)
	RecordTask(ctx context.Context, tool, kind, status string, duration time.Duration, mocked, fromCache bool)
	RecordCheckpoint(ctx context.Context, workflowID string, layer int, coalesced bool, err error)
	RecordSpeculation(ctx context.Context, hit bool)
	RecordExploration(ctx context.Context, pathCount, viableCount int, avgConfidence float64)
	RecordGate(ctx context.Context, kind, outcome string, duration time.Duration)
}

// NoopRecorder discards everything. It is the default when a caller wires
// no Recorder.
type NoopRecorder struct{}

func (NoopRecorder) RecordLayer(context.Context, string, int, time.Duration, int, error)       {}
func (NoopRecorder) RecordTask(context.Context, string, string, string, time.Duration, bool, bool) {}
func (NoopRecorder) RecordCheckpoint(context.Context, string, int, bool, error)                 {}
func (NoopRecorder) RecordSpeculation(context.Context, bool)                                     {}
func (NoopRecorder) RecordExploration(context.Context, int, int, float64)                        {}
func (NoopRecorder) RecordGate(context.Context, string, string, time.Duration)                   {}

// MetricsHandler is satisfied by a Recorder that also exposes an HTTP
// scrape endpoint (PrometheusRecorder). NoopRecorder does not implement
// it; callers should type-assert before wiring an HTTP route.
type MetricsHandler interface {
	Handler() http.Handler
}

var (
	_ Recorder = NoopRecorder{}
	_ Recorder = (*PrometheusRecorder)(nil)
)
