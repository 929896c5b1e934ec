// Package metrics exposes Prometheus instruments for the sync pipeline. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/models"
)

const namespace = "atmos_processor"

// Metrics holds the pipeline instruments and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	runs           *prometheus.CounterVec
	runDuration    prometheus.Histogram
	documents      *prometheus.CounterVec
	insertedValues prometheus.Counter
	ignoredValues  prometheus.Counter
	removedDocs    prometheus.Counter
	messages       *prometheus.CounterVec
	feedReconnects prometheus.Counter
	feedConnected  prometheus.Gauge
}

// New registers every instrument on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Reconciliation passes by result.",
		}, []string{"result"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_run_duration_seconds",
			Help:      "Duration of reconciliation passes.",
			Buckets:   prometheus.DefBuckets,
		}),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_documents_total",
			Help:      "Staging documents seen by outcome.",
		}, []string{"outcome"}),
		insertedValues: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inserted_values_total",
			Help:      "Captured values committed.",
		}),
		ignoredValues: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ignored_values_total",
			Help:      "Document fields that were unbound or not numeric.",
		}),
		removedDocs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "removed_documents_total",
			Help:      "Staging documents deleted after a permanent outcome.",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_messages_total",
			Help:      "Inbound messages by outcome.",
		}, []string{"outcome"}),
		feedReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "change_feed_reconnects_total",
			Help:      "Change feed re-subscriptions after a failure.",
		}),
		feedConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "change_feed_connected",
			Help:      "1 while the change feed is subscribed.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.runs, m.runDuration, m.documents, m.insertedValues, m.ignoredValues,
		m.removedDocs, m.messages, m.feedReconnects, m.feedConnected,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRun records a finished pass from its summary.
func (m *Metrics) RecordRun(s *models.RunSummary, err error) {
	if m == nil || s == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.runs.WithLabelValues(result).Inc()
	m.runDuration.Observe(s.FinishedAt.Sub(s.StartedAt).Seconds())

	m.documents.WithLabelValues("processed").Add(float64(s.ProcessedDocuments))
	m.documents.WithLabelValues("skipped").Add(float64(len(s.Skipped)))
	m.documents.WithLabelValues("failed").Add(float64(len(s.Errors)))
	m.insertedValues.Add(float64(s.InsertedValues))
	m.ignoredValues.Add(float64(s.IgnoredValues))
	m.removedDocs.Add(float64(s.RemovedDocuments))
}

// RecordMessage counts one inbound message by outcome.
func (m *Metrics) RecordMessage(outcome string, inserted int) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(outcome).Inc()
	m.insertedValues.Add(float64(inserted))
}

// SetFeedConnected tracks change feed state.
func (m *Metrics) SetFeedConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.feedConnected.Set(1)
		return
	}
	m.feedConnected.Set(0)
}

// IncFeedReconnect counts a re-subscription attempt.
func (m *Metrics) IncFeedReconnect() {
	if m == nil {
		return
	}
	m.feedReconnects.Inc()
}
