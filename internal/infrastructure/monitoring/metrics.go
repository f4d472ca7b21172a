// Package monitoring exposes Prometheus metrics for the generation and
// delivery pipeline.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Generation metrics
	GenerationsTotal   *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	StreamEvents       *prometheus.CounterVec

	// Deploy metrics
	DeploysTotal       *prometheus.CounterVec
	DeployDuration     prometheus.Histogram
	ScreenshotFailures prometheus.Counter

	// Stream consumer metrics
	SSEStreams    prometheus.Gauge
	WSConnections prometheus.Gauge

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
	stop      chan struct{}
}

// NewMetrics creates and registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),
		stop:      make(chan struct{}),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitesmith_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sitesmith_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		GenerationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitesmith_generations_total",
				Help: "Total number of generation turns",
			},
			[]string{"mode", "status"},
		),
		GenerationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sitesmith_generation_duration_seconds",
				Help:    "Generation turn duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"mode"},
		),
		StreamEvents: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitesmith_stream_events_total",
				Help: "Total number of stream events relayed",
			},
			[]string{"kind"},
		),

		DeploysTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitesmith_deploys_total",
				Help: "Total number of deploy attempts",
			},
			[]string{"status"},
		),
		DeployDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sitesmith_deploy_duration_seconds",
				Help:    "Deploy pipeline duration in seconds",
				Buckets: []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300},
			},
		),
		ScreenshotFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sitesmith_screenshot_failures_total",
				Help: "Total number of failed cover screenshot captures",
			},
		),

		SSEStreams: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sitesmith_sse_streams",
				Help: "Number of in-flight SSE generation streams",
			},
		),
		WSConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sitesmith_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),

		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sitesmith_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
	}

	go m.updateUptime()

	return m
}

func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Uptime.Set(time.Since(m.startTime).Seconds())
		case <-m.stop:
			return
		}
	}
}

// Close stops the background uptime updater.
func (m *Metrics) Close() {
	close(m.stop)
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordGeneration records one finished generation turn.
func (m *Metrics) RecordGeneration(mode, status string, duration time.Duration) {
	m.GenerationsTotal.WithLabelValues(mode, status).Inc()
	m.GenerationDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordDeploy records one deploy attempt.
func (m *Metrics) RecordDeploy(status string, duration time.Duration) {
	m.DeploysTotal.WithLabelValues(status).Inc()
	m.DeployDuration.Observe(duration.Seconds())
}
