// Package metrics defines the Prometheus collectors for search traffic and
// exposes an HTTP handler for scraping.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/chinchliff/oti/pkg/driver"
	"github.com/chinchliff/oti/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
)

const namespace = "oti"

// Metrics holds all Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchesTotal        *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchResultsCount   *prometheus.HistogramVec
	IndexHitsTotal       *prometheus.CounterVec
	IndexQueriesTotal    *prometheus.CounterVec
	CircuitBreakerState  *prometheus.GaugeVec

	gatherer prometheus.Gatherer
}

// New creates all collectors and registers them with reg. A nil reg gets a
// fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being processed.",
			},
		),
		SearchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "searches_total",
				Help:      "Total searches by entity class and outcome (ok, zero_result, error kind).",
			},
			[]string{"class", "outcome"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_latency_seconds",
				Help:      "Search latency in seconds.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"class"},
		),
		SearchResultsCount: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_results_count",
				Help:      "Number of results returned per search.",
				Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 500},
			},
			[]string{"class"},
		),
		IndexHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "index_hits_total",
				Help:      "Raw index hits folded into searches, before deduplication.",
			},
			[]string{"class"},
		),
		IndexQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "index_queries_total",
				Help:      "Index queries by index name and status.",
			},
			[]string{"index", "status"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
		gatherer: reg,
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.IndexHitsTotal,
		m.IndexQueriesTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns an HTTP handler that serves the registered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// SearchCompleted records the outcome of a search.
func (m *Metrics) SearchCompleted(class types.EntityClass, hits, results int, elapsed time.Duration, err error) {
	c := string(class)
	m.SearchesTotal.WithLabelValues(c, Outcome(results, err)).Inc()
	m.SearchLatency.WithLabelValues(c).Observe(elapsed.Seconds())
	m.IndexHitsTotal.WithLabelValues(c).Add(float64(hits))
	if err == nil {
		m.SearchResultsCount.WithLabelValues(c).Observe(float64(results))
	}
}

// Outcome labels a search result for the searches_total counter.
func Outcome(results int, err error) string {
	switch {
	case err == nil && results == 0:
		return "zero_result"
	case err == nil:
		return "ok"
	case errors.Is(err, types.ErrInvalidPredicate):
		return "invalid_predicate"
	case errors.Is(err, types.ErrIndexUnavailable):
		return "index_unavailable"
	case errors.Is(err, types.ErrMissingProperty):
		return "missing_property"
	case errors.Is(err, types.ErrRootResolution):
		return "root_resolution"
	default:
		return "error"
	}
}

// BreakerStateChanged records a circuit breaker transition. It matches
// resilience.StateListener.
func (m *Metrics) BreakerStateChanged(name string, _, to gobreaker.State) {
	var v float64
	switch to {
	case gobreaker.StateOpen:
		v = 1
	case gobreaker.StateHalfOpen:
		v = 2
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(v)
}

// WrapIndexService counts the queries issued to index. A query is counted
// when its handle is closed, so failures while iterating or closing count as
// errors.
func (m *Metrics) WrapIndexService(index driver.IndexService) driver.IndexService {
	return &countingIndexService{index: index, metrics: m}
}

type countingIndexService struct {
	index   driver.IndexService
	metrics *Metrics
}

func (c *countingIndexService) Query(ctx context.Context, ref types.IndexRef, query driver.FuzzyQuery) (driver.Hits, error) {
	hits, err := c.index.Query(ctx, ref, query)
	if err != nil {
		c.metrics.IndexQueriesTotal.WithLabelValues(ref.Name(), "error").Inc()
		return nil, err
	}
	return &countingHits{Hits: hits, counter: c.metrics.IndexQueriesTotal, index: ref.Name()}, nil
}

// countingHits records the outcome of a query once, on Close.
type countingHits struct {
	driver.Hits
	counter *prometheus.CounterVec
	index   string
	counted bool
}

func (h *countingHits) Close(ctx context.Context) error {
	err := h.Hits.Close(ctx)
	if !h.counted {
		h.counted = true
		status := "ok"
		if h.Hits.Err() != nil || err != nil {
			status = "error"
		}
		h.counter.WithLabelValues(h.index, status).Inc()
	}
	return err
}
