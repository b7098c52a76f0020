// Package metrics exposes Prometheus collectors for the pipeline. Passing a
// nil registerer builds unregistered collectors, which tests use freely.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	JobsEnqueued  prometheus.Counter
	JobsCompleted prometheus.Counter
	JobsFailed    prometheus.Counter
	JobsCancelled prometheus.Counter
	JobsRejected  prometheus.Counter
	JobsInFlight  prometheus.Gauge
	StageDuration *prometheus.HistogramVec
	StageAttempts *prometheus.HistogramVec

	DriftSamples prometheus.Counter
	DriftMacroF1 prometheus.Gauge
	DriftAlerts  prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		JobsEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_jobs_enqueued_total",
			Help: "Jobs accepted into the queue.",
		}),
		JobsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_jobs_completed_total",
			Help: "Jobs that reached SUCCEEDED.",
		}),
		JobsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_jobs_failed_total",
			Help: "Jobs that reached a failure terminal state.",
		}),
		JobsCancelled: factory.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_jobs_cancelled_total",
			Help: "Jobs that ended CANCELLED.",
		}),
		JobsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_jobs_rejected_total",
			Help: "Submissions rejected at admission (backpressure, validation).",
		}),
		JobsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pipeline_jobs_in_flight",
			Help: "Jobs currently being processed by a worker.",
		}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Per-stage processing duration, retries included.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		StageAttempts: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipeline_stage_attempts",
			Help:    "Provider invocations consumed per stage.",
			Buckets: []float64{1, 2, 3, 4, 5},
		}, []string{"stage"}),

		DriftSamples: factory.NewCounter(prometheus.CounterOpts{
			Name: "extraction_drift_samples_total",
			Help: "Gold-matched observations fed to the drift monitor.",
		}),
		DriftMacroF1: factory.NewGauge(prometheus.GaugeOpts{
			Name: "extraction_drift_macro_f1",
			Help: "Macro-F1 over the current drift window.",
		}),
		DriftAlerts: factory.NewCounter(prometheus.CounterOpts{
			Name: "extraction_drift_alerts_total",
			Help: "Accuracy drift alerts raised.",
		}),
	}
}
