// Package metrics defines the Prometheus collectors for the archive.
//
// Each Metrics value owns its own registry so that several engines (and
// tests) can coexist in one process without duplicate registration. All
// recording methods are safe to call on a nil *Metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "archivist"

// Cache lookup results.
const (
	Hit  = "hit"
	Miss = "miss"
)

// Metrics holds every collector the archive records to.
type Metrics struct {
	registry *prometheus.Registry

	originRequests *prometheus.CounterVec
	originLatency  *prometheus.HistogramVec
	cacheLookups   *prometheus.CounterVec
	integrityGaps  *prometheus.CounterVec
	archivedPosts  prometheus.Counter
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// New creates a Metrics value backed by a fresh registry that also exports
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		originRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "origin_requests_total",
				Help:      "Origin requests by operation and outcome",
			},
			[]string{"op", "outcome"},
		),

		originLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "origin_request_duration_seconds",
				Help:      "Origin request latency in seconds, including retries",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),

		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Engine store lookups by operation and result (hit or miss)",
			},
			[]string{"op", "result"},
		),

		integrityGaps: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "integrity_gaps_total",
				Help:      "Dependencies that could not be archived, by dependency kind",
			},
			[]string{"kind"},
		),

		archivedPosts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archived_posts_total",
			Help:      "Posts newly written to the store",
		}),

		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "status"},
		),

		httpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveOrigin records one origin call that started at start.
func (m *Metrics) ObserveOrigin(op, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.originRequests.WithLabelValues(op, outcome).Inc()
	m.originLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// CacheLookup records whether an engine operation was answered from the store.
func (m *Metrics) CacheLookup(op string, hit bool) {
	if m == nil {
		return
	}
	result := Miss
	if hit {
		result = Hit
	}
	m.cacheLookups.WithLabelValues(op, result).Inc()
}

// IntegrityGap records a dependency that was dropped.
func (m *Metrics) IntegrityGap(kind string) {
	if m == nil {
		return
	}
	m.integrityGaps.WithLabelValues(kind).Inc()
}

// PostArchived records a newly stored post.
func (m *Metrics) PostArchived() {
	if m == nil {
		return
	}
	m.archivedPosts.Inc()
}

// Middleware records HTTP request metrics for gin routers.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		m.httpRequests.WithLabelValues(c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method).Observe(time.Since(start).Seconds())
	}
}
