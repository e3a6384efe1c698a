package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder over prometheus/client_golang,
// grounded directly on pkg/observability/metrics.go's CounterVec/
// HistogramVec/GaugeVec shape, re-labeled for layers/tasks/checkpoints/
// gates instead of agents/LLM calls/tools.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	layerDuration *prometheus.HistogramVec
	layersTotal   *prometheus.CounterVec
	layerErrors   *prometheus.CounterVec

	taskDuration *prometheus.HistogramVec
	tasksTotal   *prometheus.CounterVec
	tasksMocked  *prometheus.CounterVec
	tasksCached  *prometheus.CounterVec

	checkpointsTotal     *prometheus.CounterVec
	checkpointsCoalesced prometheus.Counter
	checkpointErrors     prometheus.Counter

	speculationHits   prometheus.Counter
	speculationMisses prometheus.Counter

	explorationPaths      prometheus.Histogram
	explorationViable     prometheus.Histogram
	explorationConfidence prometheus.Histogram

	gateDuration *prometheus.HistogramVec
	gatesTotal   *prometheus.CounterVec
}

// NewPrometheusRecorder builds a PrometheusRecorder registered under
// namespace (e.g. "pml").
func NewPrometheusRecorder(namespace string) *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	r := &PrometheusRecorder{
		registry: reg,
		layerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "layer_duration_seconds", Help: "Layer execution duration.",
		}, []string{"workflow_id"}),
		layersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "layers_total", Help: "Layers executed.",
		}, []string{"workflow_id"}),
		layerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "layer_errors_total", Help: "Layers that ended with a fatal error.",
		}, []string{"workflow_id"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "task_duration_seconds", Help: "Task execution duration.",
		}, []string{"tool", "kind", "status"}),
		tasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "tasks_total", Help: "Tasks executed.",
		}, []string{"tool", "kind", "status"}),
		tasksMocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "tasks_mocked_total", Help: "Tasks served from a mock.",
		}, []string{"tool"}),
		tasksCached: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "tasks_from_cache_total", Help: "Tasks served from the speculation cache.",
		}, []string{"tool"}),
		checkpointsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "checkpoints_total", Help: "Checkpoints saved.",
		}, []string{"workflow_id"}),
		checkpointsCoalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "checkpoints_coalesced_total", Help: "Checkpoint saves skipped due to an unchanged content hash.",
		}),
		checkpointErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "checkpoint_errors_total", Help: "Checkpoint save failures (non-fatal).",
		}),
		speculationHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "speculation_hits_total", Help: "Speculation cache hits.",
		}),
		speculationMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "speculation_misses_total", Help: "Speculation cache misses.",
		}),
		explorationPaths: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "exploration_paths", Help: "Candidate paths walked per exploration.",
		}),
		explorationViable: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "exploration_viable_paths", Help: "Viable paths per exploration.",
		}),
		explorationConfidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "exploration_confidence", Help: "Average path confidence per exploration.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		gateDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "gate_duration_seconds", Help: "Time spent waiting at an AIL/HIL gate.",
		}, []string{"kind", "outcome"}),
		gatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "gates_total", Help: "Gate decisions.",
		}, []string{"kind", "outcome"}),
	}

	reg.MustRegister(
		r.layerDuration, r.layersTotal, r.layerErrors,
		r.taskDuration, r.tasksTotal, r.tasksMocked, r.tasksCached,
		r.checkpointsTotal, r.checkpointsCoalesced, r.checkpointErrors,
		r.speculationHits, r.speculationMisses,
		r.explorationPaths, r.explorationViable, r.explorationConfidence,
		r.gateDuration, r.gatesTotal,
	)
	return r
}

func (r *PrometheusRecorder) RecordLayer(_ context.Context, workflowID string, _ int, duration time.Duration, _ int, err error) {
	r.layerDuration.WithLabelValues(workflowID).Observe(duration.Seconds())
	r.layersTotal.WithLabelValues(workflowID).Inc()
	if err != nil {
		r.layerErrors.WithLabelValues(workflowID).Inc()
	}
}

func (r *PrometheusRecorder) RecordTask(_ context.Context, tool, kind, status string, duration time.Duration, mocked, fromCache bool) {
	r.taskDuration.WithLabelValues(tool, kind, status).Observe(duration.Seconds())
	r.tasksTotal.WithLabelValues(tool, kind, status).Inc()
	if mocked {
		r.tasksMocked.WithLabelValues(tool).Inc()
	}
	if fromCache {
		r.tasksCached.WithLabelValues(tool).Inc()
	}
}

func (r *PrometheusRecorder) RecordCheckpoint(_ context.Context, workflowID string, _ int, coalesced bool, err error) {
	r.checkpointsTotal.WithLabelValues(workflowID).Inc()
	if coalesced {
		r.checkpointsCoalesced.Inc()
	}
	if err != nil {
		r.checkpointErrors.Inc()
	}
}

func (r *PrometheusRecorder) RecordSpeculation(_ context.Context, hit bool) {
	if hit {
		r.speculationHits.Inc()
	} else {
		r.speculationMisses.Inc()
	}
}

func (r *PrometheusRecorder) RecordExploration(_ context.Context, pathCount, viableCount int, avgConfidence float64) {
	r.explorationPaths.Observe(float64(pathCount))
	r.explorationViable.Observe(float64(viableCount))
	r.explorationConfidence.Observe(avgConfidence)
}

func (r *PrometheusRecorder) RecordGate(_ context.Context, kind, outcome string, duration time.Duration) {
	r.gateDuration.WithLabelValues(kind, outcome).Observe(duration.Seconds())
	r.gatesTotal.WithLabelValues(kind, outcome).Inc()
}

// Handler implements MetricsHandler.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
