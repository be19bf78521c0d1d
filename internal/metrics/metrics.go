// Package metrics provides Prometheus metrics for the assistant service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all collectors. Every method is safe on a nil receiver so
// components can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	MessagesTotal      *prometheus.CounterVec
	IntentsTotal       *prometheus.CounterVec
	ResponsesTotal     *prometheus.CounterVec
	ResponseDuration   *prometheus.HistogramVec
	ProviderFallbacks  *prometheus.CounterVec
	ArchivedSessions   prometheus.Counter
	BusyRejections     prometheus.Counter
	ActiveVisitors     prometheus.Gauge
	StorageErrorsTotal *prometheus.CounterVec
}

// NewMetrics registers the collectors on a private registry, so several
// instances can coexist in one process.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	m := &Metrics{registry: reg}

	m.MessagesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pyx_messages_total",
			Help: "Total number of chat messages by role",
		},
		[]string{"role"},
	)

	m.IntentsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pyx_intents_total",
			Help: "Classified user intents",
		},
		[]string{"intent"},
	)

	m.ResponsesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pyx_responses_total",
			Help: "Assistant responses by answering source and degradation",
		},
		[]string{"source", "degraded"},
	)

	m.ResponseDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pyx_response_duration_seconds",
			Help:    "Time to produce an assistant response",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	m.ProviderFallbacks = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pyx_provider_fallbacks_total",
			Help: "Remote provider failures answered locally",
		},
		[]string{"provider", "reason"},
	)

	m.ArchivedSessions = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "pyx_archived_sessions_total",
			Help: "Conversation sessions archived",
		},
	)

	m.BusyRejections = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "pyx_busy_rejections_total",
			Help: "Messages rejected because a response was already in flight",
		},
	)

	m.ActiveVisitors = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "pyx_active_visitors",
			Help: "Visitors with a loaded assistant",
		},
	)

	m.StorageErrorsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pyx_storage_errors_total",
			Help: "Persistence failures by operation",
		},
		[]string{"operation"},
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RecordMessage(role string) {
	if m == nil {
		return
	}
	m.MessagesTotal.WithLabelValues(role).Inc()
}

func (m *Metrics) RecordIntent(intent string) {
	if m == nil {
		return
	}
	m.IntentsTotal.WithLabelValues(intent).Inc()
}

func (m *Metrics) RecordResponse(source string, degraded bool, d time.Duration) {
	if m == nil {
		return
	}
	m.ResponsesTotal.WithLabelValues(source, strconv.FormatBool(degraded)).Inc()
	m.ResponseDuration.WithLabelValues(source).Observe(d.Seconds())
}

func (m *Metrics) RecordFallback(provider, reason string) {
	if m == nil {
		return
	}
	m.ProviderFallbacks.WithLabelValues(provider, reason).Inc()
}

func (m *Metrics) RecordArchived() {
	if m == nil {
		return
	}
	m.ArchivedSessions.Inc()
}

func (m *Metrics) RecordBusy() {
	if m == nil {
		return
	}
	m.BusyRejections.Inc()
}

func (m *Metrics) SetActiveVisitors(n int) {
	if m == nil {
		return
	}
	m.ActiveVisitors.Set(float64(n))
}

func (m *Metrics) RecordStorageError(operation string) {
	if m == nil {
		return
	}
	m.StorageErrorsTotal.WithLabelValues(operation).Inc()
}
