// Package observability exposes Prometheus metrics for newsdesk.
package observability

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "newsdesk"

// Metrics tracks operational metrics for fetching, ingestion and AI
// processing. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	FetchesTotal  *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
	FetchErrors   *prometheus.CounterVec

	CyclesTotal         *prometheus.CounterVec
	CycleDuration       *prometheus.HistogramVec
	ArticlesTotal       *prometheus.CounterVec
	EmptyCycles         prometheus.Counter
	ConsecutiveFailures prometheus.Gauge
	SchedulerAlerts     prometheus.Counter

	AIRequests  *prometheus.CounterVec
	AIDuration  prometheus.Histogram
	Processed   *prometheus.CounterVec
	HTTPTotal   *prometheus.CounterVec
	HTTPLatency *prometheus.HistogramVec

	logger *slog.Logger
}

// NewMetrics creates a Metrics instance with its own registry.
func NewMetrics(logger *slog.Logger) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "fetches_total",
			Help: "Page fetches by method and outcome",
		}, []string{"method", "status"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "fetch_duration_seconds",
			Help:    "Page fetch duration in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 45, 90},
		}, []string{"method"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "fetch_errors_total",
			Help: "Failed page fetches by error code",
		}, []string{"code"}),
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "ingest_cycles_total",
			Help: "Ingestion cycles by trigger and outcome",
		}, []string{"trigger", "status"}),
		CycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "ingest_cycle_duration_seconds",
			Help:    "Ingestion cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"trigger"}),
		ArticlesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "articles_total",
			Help: "Teasers seen by ingestion outcome (extracted, dropped, duplicate, saved)",
		}, []string{"outcome"}),
		EmptyCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "ingest_empty_cycles_total",
			Help: "Successful ingestion cycles whose listing page yielded no teasers",
		}),
		ConsecutiveFailures: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "scheduler_consecutive_failures",
			Help: "Current run of failed scheduled cycles",
		}),
		SchedulerAlerts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "scheduler_alerts_total",
			Help: "Alerts raised after too many consecutive failures",
		}),
		AIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "normalize_total",
			Help: "Normalizations by provider and result tier (ai, fallback_parse, extract_only)",
		}, []string{"provider", "tier"}),
		AIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "llm_request_duration_seconds",
			Help:    "LLM completion latency in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 120},
		}),
		Processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "processed_articles_total",
			Help: "process-with-ai requests by outcome (created, existing, failed)",
		}, []string{"outcome"}),
		HTTPTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "API requests by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		logger: logger.With("component", "metrics"),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.FetchesTotal, m.FetchDuration, m.FetchErrors,
		m.CyclesTotal, m.CycleDuration, m.ArticlesTotal, m.EmptyCycles, m.ConsecutiveFailures, m.SchedulerAlerts,
		m.AIRequests, m.AIDuration, m.Processed, m.HTTPTotal, m.HTTPLatency,
	)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RecordFetch records one page fetch. code is empty on success.
func (m *Metrics) RecordFetch(method, code string, d time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if code != "" {
		status = "error"
		m.FetchErrors.WithLabelValues(code).Inc()
	}
	m.FetchesTotal.WithLabelValues(method, status).Inc()
	m.FetchDuration.WithLabelValues(method).Observe(d.Seconds())
}

// RecordCycle records one ingestion cycle and its teaser counts. A
// successful cycle with nothing extracted is also counted as empty.
func (m *Metrics) RecordCycle(trigger string, ok bool, d time.Duration, extracted, dropped, duplicates, saved int) {
	if m == nil {
		return
	}
	status := "success"
	if !ok {
		status = "failed"
	}
	m.CyclesTotal.WithLabelValues(trigger, status).Inc()
	m.CycleDuration.WithLabelValues(trigger).Observe(d.Seconds())
	m.ArticlesTotal.WithLabelValues("extracted").Add(float64(extracted))
	m.ArticlesTotal.WithLabelValues("dropped").Add(float64(dropped))
	m.ArticlesTotal.WithLabelValues("duplicate").Add(float64(duplicates))
	m.ArticlesTotal.WithLabelValues("saved").Add(float64(saved))
	if ok && extracted == 0 {
		m.EmptyCycles.Inc()
	}
}

// SetConsecutiveFailures publishes the current failure streak.
func (m *Metrics) SetConsecutiveFailures(n int) {
	if m == nil {
		return
	}
	m.ConsecutiveFailures.Set(float64(n))
}

// RecordAlert counts a scheduler alert.
func (m *Metrics) RecordAlert() {
	if m == nil {
		return
	}
	m.SchedulerAlerts.Inc()
}

// RecordNormalize counts one normalization by result tier.
func (m *Metrics) RecordNormalize(provider, tier string) {
	if m == nil {
		return
	}
	m.AIRequests.WithLabelValues(provider, tier).Inc()
}

// ObserveLLM records one completion call latency.
func (m *Metrics) ObserveLLM(d time.Duration) {
	if m == nil {
		return
	}
	m.AIDuration.Observe(d.Seconds())
}

// RecordProcessed counts a process-with-ai outcome.
func (m *Metrics) RecordProcessed(outcome string) {
	if m == nil {
		return
	}
	m.Processed.WithLabelValues(outcome).Inc()
}

// RecordHTTP records one API request.
func (m *Metrics) RecordHTTP(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPLatency.WithLabelValues(method, route).Observe(d.Seconds())
}
