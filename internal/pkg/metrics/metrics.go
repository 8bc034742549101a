// Package metrics exposes Prometheus collectors for the HTTP surface and the
// paper lifecycle.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "paperchain"

// Metrics owns a private registry so tests can build independent instances.
type Metrics struct {
	Registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	papersSubmitted prometheus.Counter
	reviews         prometheus.Counter
	tokensAwarded   *prometheus.CounterVec
	analyses        *prometheus.CounterVec
	uploads         *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		}, []string{"method", "route"}),
		papersSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "papers",
			Name:      "submitted_total",
			Help:      "Total number of papers submitted.",
		}),
		reviews: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "papers",
			Name:      "reviews_total",
			Help:      "Total number of peer reviews recorded.",
		}),
		tokensAwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tokens",
			Name:      "awarded_total",
			Help:      "Total number of tokens awarded, by reason.",
		}, []string{"reason"}),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "runs_total",
			Help:      "Total number of AI analysis runs by mode and outcome.",
		}, []string{"mode", "outcome"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ipfs",
			Name:      "uploads_total",
			Help:      "Total number of content store uploads by kind and outcome.",
		}, []string{"kind", "outcome"}),
	}
	m.Registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.papersSubmitted,
		m.reviews,
		m.tokensAwarded,
		m.analyses,
		m.uploads,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latencies by route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
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

func (m *Metrics) PaperSubmitted() { m.papersSubmitted.Inc() }

func (m *Metrics) ReviewSubmitted() { m.reviews.Inc() }

func (m *Metrics) TokensAwarded(reason string, amount int) {
	if amount <= 0 {
		return
	}
	m.tokensAwarded.WithLabelValues(reason).Add(float64(amount))
}

func (m *Metrics) Upload(kind string, err error) {
	m.uploads.WithLabelValues(kind, outcome(err)).Inc()
}

// ObserveAnalysis counts a finished analysis run.
func (m *Metrics) ObserveAnalysis(mode string, verified bool, err error) {
	if mode == "" {
		mode = "none"
	}
	result := "unverified"
	switch {
	case err != nil:
		result = "error"
	case verified:
		result = "verified"
	}
	m.analyses.WithLabelValues(mode, result).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
