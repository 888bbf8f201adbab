// Package metrics holds the Prometheus collectors of the QA pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "agrimind"

// Outcome labels.
const (
	OutcomeHit  = "hit"
	OutcomeMiss = "miss"
)

// Reload status labels.
const (
	ReloadOK     = "ok"
	ReloadFailed = "failed"
)

// DefaultLatencyBuckets cover a pure in-memory pipeline plus an optional
// remote predictor call.
var DefaultLatencyBuckets = []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5}

// Metrics groups the pipeline collectors.
type Metrics struct {
	registry *prometheus.Registry

	Requests          *prometheus.CounterVec
	Branches          *prometheus.CounterVec
	Confidence        prometheus.Histogram
	PredictorFailures prometheus.Counter
	Reloads           *prometheus.CounterVec
	SnapshotEntries   prometheus.Gauge
	Latency           prometheus.Histogram
}

// New creates the collectors and registers them on a fresh registry that
// also exposes process and Go runtime metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
		collectors.NewGoCollector(),
	)
	return NewWithRegisterer(reg, reg)
}

// NewWithRegisterer registers the collectors on r. registry may be nil when
// the caller serves metrics itself.
func NewWithRegisterer(r prometheus.Registerer, registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Pipeline runs by result cache outcome.",
		}, []string{"outcome"}),
		Branches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hybrid_branch_total",
			Help:      "Hybrid chooser decisions by branch.",
		}, []string{"branch"}),
		Confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "answer_confidence",
			Help:      "Final confidence of computed answers.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		PredictorFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictor_failures_total",
			Help:      "External predictor calls that produced no usable prediction.",
		}),
		Reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_reloads_total",
			Help:      "Dataset reloads by status.",
		}, []string{"status"}),
		SnapshotEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_entries",
			Help:      "Entries in the active KB snapshot.",
		}),
		Latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Time spent computing a pipeline result.",
			Buckets:   DefaultLatencyBuckets,
		}),
	}
	r.MustRegister(
		m.Requests,
		m.Branches,
		m.Confidence,
		m.PredictorFailures,
		m.Reloads,
		m.SnapshotEntries,
		m.Latency,
	)
	return m
}

// ObserveRequest counts a pipeline run. Nil receivers are no-ops so callers
// can run without metrics.
func (m *Metrics) ObserveRequest(cached bool) {
	if m == nil {
		return
	}
	outcome := OutcomeMiss
	if cached {
		outcome = OutcomeHit
	}
	m.Requests.WithLabelValues(outcome).Inc()
}

// ObserveResult records a freshly computed answer.
func (m *Metrics) ObserveResult(branch string, confidence float64, predictorFailed bool, took time.Duration) {
	if m == nil {
		return
	}
	m.Branches.WithLabelValues(branch).Inc()
	m.Confidence.Observe(confidence)
	m.Latency.Observe(took.Seconds())
	if predictorFailed {
		m.PredictorFailures.Inc()
	}
}

// ObserveReload records a reload attempt and, on success, the new size.
func (m *Metrics) ObserveReload(entries int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.Reloads.WithLabelValues(ReloadFailed).Inc()
		return
	}
	m.Reloads.WithLabelValues(ReloadOK).Inc()
	m.SnapshotEntries.Set(float64(entries))
}

// SetSnapshotEntries sets the snapshot size without counting a reload.
func (m *Metrics) SetSnapshotEntries(entries int) {
	if m == nil {
		return
	}
	m.SnapshotEntries.Set(float64(entries))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
