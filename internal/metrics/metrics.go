// Package metrics exposes pipeline counters for Prometheus.
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

const namespace = "scribe"

// Metrics holds every collector the service reports. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	uploads        *prometheus.CounterVec
	transcriptions *prometheus.CounterVec
	polish         *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	queueDepth     prometheus.Gauge
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		uploads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Accepted uploads by file format.",
		}, []string{"format"}),
		transcriptions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcriptions_total",
			Help:      "Finished transcriptions by terminal status.",
		}, []string{"status"}),
		polish: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polish_total",
			Help:      "Note generation attempts by result.",
		}, []string{"result"}),
		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"stage"}),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Tasks waiting in the background executor.",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveUpload counts one accepted upload.
func (m *Metrics) ObserveUpload(format string) {
	if m == nil {
		return
	}
	if format == "" {
		format = "none"
	}
	m.uploads.WithLabelValues(format).Inc()
}

// ObserveTranscription counts a terminal transcription status.
func (m *Metrics) ObserveTranscription(status string) {
	if m == nil {
		return
	}
	m.transcriptions.WithLabelValues(status).Inc()
}

// ObservePolish counts a note generation result ("success", "error", "empty").
func (m *Metrics) ObservePolish(result string) {
	if m == nil {
		return
	}
	m.polish.WithLabelValues(result).Inc()
}

// ObserveStage records how long a stage took since start.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// SetQueueDepth reports the executor backlog.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// Middleware counts requests per matched gin route.
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
		m.httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
