// Package metrics provides Prometheus metrics and the rolling request
// window backing the server stats endpoint.
package metrics

import (
	"math"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the API server.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RunsTotal        *prometheus.CounterVec
	DeploymentsTotal *prometheus.CounterVec
	ErrorsTotal      *prometheus.CounterVec
	SessionsActive   prometheus.Gauge

	registry *prometheus.Registry

	mu      sync.Mutex
	samples []sample
}

type sample struct {
	at       time.Time
	duration time.Duration
}

// maxSamples bounds the rolling window buffer.
const maxSamples = 10000

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devplane_requests_total",
				Help: "Total API requests by method, route and status.",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "devplane_request_duration_seconds",
				Help:    "Request processing duration by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devplane_runs_total",
				Help: "Total agent runs by terminal status.",
			},
			[]string{"status"},
		),
		DeploymentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devplane_deployments_total",
				Help: "Total deployments by terminal status.",
			},
			[]string{"status"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devplane_errors_total",
				Help: "Total errors by component and code.",
			},
			[]string{"component", "code"},
		),
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "devplane_sessions_active",
				Help: "Number of sessions currently in active status.",
			},
		),
		registry: reg,
	}

	reg.MustRegister(m.RequestsTotal)
	reg.MustRegister(m.RequestDuration)
	reg.MustRegister(m.RunsTotal)
	reg.MustRegister(m.DeploymentsTotal)
	reg.MustRegister(m.ErrorsTotal)
	reg.MustRegister(m.SessionsActive)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest records one handled request in both the Prometheus
// metrics and the rolling window.
func (m *Metrics) RecordRequest(method, route, status string, d time.Duration) {
	m.RequestsTotal.WithLabelValues(method, route, status).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(d.Seconds())

	m.mu.Lock()
	m.samples = append(m.samples, sample{at: time.Now(), duration: d})
	if len(m.samples) > maxSamples {
		m.samples = m.samples[len(m.samples)-maxSamples:]
	}
	m.mu.Unlock()
}

// RecordRun increments the run counter for a terminal status.
func (m *Metrics) RecordRun(status string) {
	m.RunsTotal.WithLabelValues(status).Inc()
}

// RecordDeployment increments the deployment counter for a terminal status.
func (m *Metrics) RecordDeployment(status string) {
	m.DeploymentsTotal.WithLabelValues(status).Inc()
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, code string) {
	m.ErrorsTotal.WithLabelValues(component, code).Inc()
}

// Window reports requests per second and the p95 latency in
// milliseconds over the trailing window.
func (m *Metrics) Window(window time.Duration) (rps float64, p95ms int) {
	cutoff := time.Now().Add(-window)

	m.mu.Lock()
	durations := make([]float64, 0, len(m.samples))
	for _, s := range m.samples {
		if s.at.After(cutoff) || s.at.Equal(cutoff) {
			durations = append(durations, float64(s.duration.Milliseconds()))
		}
	}
	m.mu.Unlock()

	rps = math.Round(float64(len(durations))/window.Seconds()*10000) / 10000
	if len(durations) == 0 {
		return rps, 0
	}
	sort.Float64s(durations)
	idx := int(math.Ceil(0.95*float64(len(durations)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx > len(durations)-1 {
		idx = len(durations) - 1
	}
	return rps, int(math.Round(durations[idx]))
}
