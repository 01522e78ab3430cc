package observability

import (
	"net/http"
	"strconv"
	"time"

	pkgerrors "citegraph/pkg/errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
)

// Collector holds all Prometheus metrics for the application. Each
// collector owns its registry so tests can build as many as they like.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Business metrics
	Votes             *prometheus.CounterVec
	ExpansionDuration prometheus.Histogram
	ExpansionNodes    prometheus.Histogram
	PublishFailures   *prometheus.CounterVec

	// Bus metrics
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// Storage metrics
	BreakerState *prometheus.GaugeVec
}

// NewCollector creates a new metrics collector with the given namespace
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
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
		Votes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "votes_total",
				Help:      "Vote commands by outcome",
			},
			[]string{"outcome"},
		),
		ExpansionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "graph_expansion_duration_seconds",
				Help:      "Graph expansion duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		ExpansionNodes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "graph_expansion_nodes",
				Help:      "Number of nodes returned per graph expansion",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		PublishFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "event_publish_failures_total",
				Help:      "Domain events that could not be published",
			},
			[]string{"event_type"},
		),
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Commands and queries by name and error code",
			},
			[]string{"kind", "name", "code"},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Command and query duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind", "name"},
		),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "storage_breaker_state",
				Help:      "Storage circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"name"},
		),
	}

	c.registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Votes,
		c.ExpansionDuration,
		c.ExpansionNodes,
		c.PublishFailures,
		c.Operations,
		c.OperationDuration,
		c.BreakerState,
	)
	return c
}

// Registry returns the collector's registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one served request
func (c *Collector) ObserveHTTP(method, route string, status int, duration time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordVote counts a vote by outcome. Failed votes are labelled with their
// error code.
func (c *Collector) RecordVote(action string, err error) {
	if err != nil {
		action = outcomeOf(err)
	}
	c.Votes.WithLabelValues(action).Inc()
}

// RecordExpansion records the size and latency of one expansion
func (c *Collector) RecordExpansion(nodes, edges int, duration time.Duration) {
	c.ExpansionDuration.Observe(duration.Seconds())
	c.ExpansionNodes.Observe(float64(nodes))
}

// RecordPublishFailure counts an event that could not be published
func (c *Collector) RecordPublishFailure(eventType string) {
	c.PublishFailures.WithLabelValues(eventType).Inc()
}

// ObserveCommand implements the command bus observer
func (c *Collector) ObserveCommand(name string, duration time.Duration, err error) {
	c.observeOperation("command", name, duration, err)
}

// ObserveQuery implements the query bus observer
func (c *Collector) ObserveQuery(name string, duration time.Duration, err error) {
	c.observeOperation("query", name, duration, err)
}

func (c *Collector) observeOperation(kind, name string, duration time.Duration, err error) {
	code := "ok"
	if err != nil {
		code = outcomeOf(err)
	}
	c.Operations.WithLabelValues(kind, name, code).Inc()
	c.OperationDuration.WithLabelValues(kind, name).Observe(duration.Seconds())
}

// ObserveBreaker records a storage breaker transition
func (c *Collector) ObserveBreaker(name string, _, to gobreaker.State) {
	c.BreakerState.WithLabelValues(name).Set(float64(to))
}

func outcomeOf(err error) string {
	if code := pkgerrors.CodeOf(err); code != "" {
		return code
	}
	return "error"
}
