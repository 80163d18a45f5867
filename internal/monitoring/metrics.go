package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the capture pipeline.
type Metrics struct {
	// Capture metrics
	FramesCaptured prometheus.Counter
	FramesSkipped  *prometheus.CounterVec // reason: excluded, overdue, source_error
	TicksTotal     prometheus.Counter

	// Recognition metrics
	RecognitionDuration prometheus.Histogram
	RecognitionEmpty    prometheus.Counter
	RecognitionErrors   *prometheus.CounterVec // kind: decode, backend, timeout
	Observations        prometheus.Histogram

	// Session metrics
	SessionsOpened prometheus.Counter
	SessionsClosed *prometheus.CounterVec // reason: app_switch, idle, stop
	SessionOpen    prometheus.Gauge

	// Storage metrics
	StorageSaves    prometheus.Counter
	StorageFailures prometheus.Counter
	StorageBuffered prometheus.Gauge

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector backed by its own registry, so
// multiple instances (tests) never collide on registration.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		startTime: time.Now(),
		registry:  registry,

		FramesCaptured: factory.NewCounter(prometheus.CounterOpts{
			Name: "tracker_frames_captured_total",
			Help: "Total number of frames captured and submitted to the pipeline",
		}),
		FramesSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_frames_skipped_total",
			Help: "Total number of capture ticks that produced no frame",
		}, []string{"reason"}),
		TicksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "tracker_capture_ticks_total",
			Help: "Total number of capture ticks fired",
		}),

		RecognitionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_recognition_duration_seconds",
			Help:    "Text recognition duration per frame in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		RecognitionEmpty: factory.NewCounter(prometheus.CounterOpts{
			Name: "tracker_recognition_empty_total",
			Help: "Total number of frames that produced no text",
		}),
		RecognitionErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_recognition_errors_total",
			Help: "Total number of degraded recognition calls",
		}, []string{"kind"}),
		Observations: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_recognition_observations",
			Help:    "Number of text observations surfaced per frame",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),

		SessionsOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "tracker_sessions_opened_total",
			Help: "Total number of activity sessions opened",
		}),
		SessionsClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_sessions_closed_total",
			Help: "Total number of activity sessions closed",
		}, []string{"reason"}),
		SessionOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_session_open",
			Help: "Whether an activity session is currently open (0 or 1)",
		}),

		StorageSaves: factory.NewCounter(prometheus.CounterOpts{
			Name: "tracker_storage_saves_total",
			Help: "Total number of closed sessions persisted",
		}),
		StorageFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "tracker_storage_failures_total",
			Help: "Total number of failed persistence attempts",
		}),
		StorageBuffered: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_storage_buffered_sessions",
			Help: "Closed sessions held in memory awaiting retry",
		}),

		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tracker_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"method", "path"}),

		Uptime: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_uptime_seconds",
			Help: "Tracker uptime in seconds",
		}),
	}

	return m
}

// Handler returns the HTTP handler serving this collector's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRecognition records the outcome of one recognition call.
func (m *Metrics) RecordRecognition(duration time.Duration, observations int, empty bool) {
	m.RecognitionDuration.Observe(duration.Seconds())
	m.Observations.Observe(float64(observations))
	if empty {
		m.RecognitionEmpty.Inc()
	}
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// UpdateUptime refreshes the uptime gauge.
func (m *Metrics) UpdateUptime() {
	m.Uptime.Set(time.Since(m.startTime).Seconds())
}
