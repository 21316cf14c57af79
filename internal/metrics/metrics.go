// Package metrics exposes Prometheus collectors for HTTP traffic and
// backend collection calls.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/simp-lee/hrdesk/internal/domain"
)

const namespace = "hrdesk"

// Metrics holds the registered collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	remoteCalls  *prometheus.CounterVec
	remoteTime   *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry that also carries the Go
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers the collectors on reg and serves them from g.
func NewWithRegistry(reg prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	m := &Metrics{
		gatherer: g,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests handled, by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		remoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "remote",
			Name:      "calls_total",
			Help:      "Collection client calls, by entity, operation and outcome.",
		}, []string{"entity", "op", "outcome"}),
		remoteTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "remote",
			Name:      "call_duration_seconds",
			Help:      "Collection client call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"entity", "op"}),
	}
	reg.MustRegister(m.httpRequests, m.httpDuration, m.remoteCalls, m.remoteTime)
	return m
}

// ObserveRemote records one collection client call.
func (m *Metrics) ObserveRemote(entity, op string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.remoteCalls.WithLabelValues(entity, op, outcome(err)).Inc()
	m.remoteTime.WithLabelValues(entity, op).Observe(elapsed.Seconds())
}

// Middleware counts requests by matched route so path parameters do not
// explode label cardinality.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func outcome(err error) string {
	var (
		fe *domain.FetchError
		me *domain.MutationError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &fe) && fe.Status == 0:
		return "transport_error"
	case errors.As(err, &fe):
		return "status_error"
	case errors.As(err, &me):
		return "rejected"
	default:
		return "error"
	}
}
