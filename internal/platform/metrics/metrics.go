package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the broadcast engine.
type Metrics struct {
	registry             *prometheus.Registry
	requestsTotal        prometheus.Counter
	locateRequestsTotal  prometheus.Counter
	sessionsCreatedTotal prometheus.Counter
	regenerationsTotal   prometheus.Counter
	shufflesTotal        prometheus.Counter
	sessionBlocks        prometheus.Gauge
	errorsTotal          prometheus.Counter
}

// New creates and registers Prometheus metrics for the broadcast engine.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "radio_requests_total",
		Help: "Total number of HTTP requests received",
	})
	locateRequestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "radio_locate_requests_total",
		Help: "Total number of live-position queries served",
	})
	sessionsCreatedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "radio_sessions_created_total",
		Help: "Total number of broadcast sessions generated",
	})
	regenerationsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "radio_regenerations_total",
		Help: "Total number of schedule regenerations (policy and forced)",
	})
	shufflesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "radio_shuffles_total",
		Help: "Total number of shuffle-next-track actions applied",
	})
	sessionBlocks := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "radio_session_blocks",
		Help: "Number of blocks in the current broadcast session",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "radio_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})

	registry.MustRegister(
		requestsTotal,
		locateRequestsTotal,
		sessionsCreatedTotal,
		regenerationsTotal,
		shufflesTotal,
		sessionBlocks,
		errorsTotal,
	)

	return &Metrics{
		registry:             registry,
		requestsTotal:        requestsTotal,
		locateRequestsTotal:  locateRequestsTotal,
		sessionsCreatedTotal: sessionsCreatedTotal,
		regenerationsTotal:   regenerationsTotal,
		shufflesTotal:        shufflesTotal,
		sessionBlocks:        sessionBlocks,
		errorsTotal:          errorsTotal,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncLocateRequests increments the live-position query counter.
func (m *Metrics) IncLocateRequests() {
	m.locateRequestsTotal.Inc()
}

// IncSessionsCreated increments the sessions created counter.
func (m *Metrics) IncSessionsCreated() {
	m.sessionsCreatedTotal.Inc()
}

// IncRegenerations increments the regenerations counter.
func (m *Metrics) IncRegenerations() {
	m.regenerationsTotal.Inc()
}

// IncShuffles increments the shuffle actions counter.
func (m *Metrics) IncShuffles() {
	m.shufflesTotal.Inc()
}

// SetSessionBlocks sets the current session block count gauge.
func (m *Metrics) SetSessionBlocks(n int) {
	m.sessionBlocks.Set(float64(n))
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
