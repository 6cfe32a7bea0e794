package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/frenb/accelent/application/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ ports.Metrics = (*Collector)(nil)

// Collector holds all Prometheus metrics for the application
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Pipeline metrics
	Classifications   *prometheus.CounterVec
	Executions        *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
	StaleResults      *prometheus.CounterVec
	DomainEvents      *prometheus.CounterVec

	// Push metrics
	WebSocketClients prometheus.Gauge
}

// NewCollector creates a collector on its own registry
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Classifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "classifications_total",
				Help:      "Tab classifications by answer source",
			},
			[]string{"source", "fallback"},
		),
		Executions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "node_executions_total",
				Help:      "Node runtime completions by kind and final status",
			},
			[]string{"kind", "status"},
		),
		ExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "node_execution_duration_seconds",
				Help:      "Time spent in external calls made by node runtimes",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"kind"},
		),
		StaleResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stale_results_total",
				Help:      "Runtime results discarded because the node changed meanwhile",
			},
			[]string{"kind"},
		),
		DomainEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "domain_events_total",
				Help:      "Domain events delivered on the workspace bus",
			},
			[]string{"type"},
		),
		WebSocketClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "websocket_clients",
				Help:      "Currently connected websocket clients",
			},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Classifications,
		c.Executions,
		c.ExecutionDuration,
		c.StaleResults,
		c.DomainEvents,
		c.WebSocketClients,
	)
	return c
}

// RecordClassification counts a classification answer
func (c *Collector) RecordClassification(source string, fallback bool) {
	c.Classifications.WithLabelValues(source, strconv.FormatBool(fallback)).Inc()
}

// RecordExecution counts a runtime completion. Zero durations are not
// observed since synchronous runtimes do not call out.
func (c *Collector) RecordExecution(kind string, status string, seconds float64) {
	c.Executions.WithLabelValues(kind, status).Inc()
	if seconds > 0 {
		c.ExecutionDuration.WithLabelValues(kind).Observe(seconds)
	}
}

// RecordStaleResult counts a discarded runtime result
func (c *Collector) RecordStaleResult(kind string) {
	c.StaleResults.WithLabelValues(kind).Inc()
}

// RecordEvent counts a delivered domain event
func (c *Collector) RecordEvent(eventType string) {
	c.DomainEvents.WithLabelValues(eventType).Inc()
}

// RecordHTTPRequest records one served request
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// SetWebSocketClients reports the number of connected clients
func (c *Collector) SetWebSocketClients(n int) {
	c.WebSocketClients.Set(float64(n))
}

// GetRegistry returns the Prometheus registry for this collector
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
