package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all dashboard metrics
type Metrics struct {
	// Panel refresh outcomes, recorded by the dashboard components
	StatsRefreshes   atomic.Uint64
	StatsFailures    atomic.Uint64
	CameraRefreshes  atomic.Uint64
	CameraFailures   atomic.Uint64
	ClearRequests    atomic.Uint64
	CameraSwitches   atomic.Uint64
	CamerasAdded     atomic.Uint64
	ValidationErrors atomic.Uint64

	// Unix seconds of the last successful fetch per panel
	StatsLastSuccess  atomic.Int64
	CameraLastSuccess atomic.Int64

	// Operator UI live stream subscribers
	StreamClients atomic.Int64

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec

	// Prometheus collectors
	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "affectra_backend_requests_total",
			Help: "Requests issued to the backend by path and outcome",
		}, []string{"path", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "affectra_backend_request_duration_seconds",
			Help:    "Backend request latency by path",
			Buckets: prometheus.DefBuckets,
		}, []string{"path"}),
	}
	m.registry.MustRegister(m.requests, m.latency)
	m.registerGauges()
	return m
}

func (m *Metrics) registerGauges() {
	counters := []struct {
		name, help string
		v          *atomic.Uint64
	}{
		{"affectra_stats_refreshes_total", "Statistics fetches that reached a display state", &m.StatsRefreshes},
		{"affectra_stats_failures_total", "Statistics fetches that ended in the error state", &m.StatsFailures},
		{"affectra_camera_refreshes_total", "Camera list fetches that succeeded", &m.CameraRefreshes},
		{"affectra_camera_failures_total", "Camera list fetches that failed", &m.CameraFailures},
		{"affectra_clear_requests_total", "Confirmed clear-data requests", &m.ClearRequests},
		{"affectra_camera_switches_total", "Successful camera selections", &m.CameraSwitches},
		{"affectra_cameras_added_total", "Successful camera registrations", &m.CamerasAdded},
		{"affectra_validation_errors_total", "Actions rejected before reaching the backend", &m.ValidationErrors},
	}
	for _, c := range counters {
		v := c.v
		m.registry.MustRegister(prometheus.NewCounterFunc(
			prometheus.CounterOpts{Name: c.name, Help: c.help},
			func() float64 { return float64(v.Load()) },
		))
	}

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "affectra_stats_last_success_timestamp_seconds",
			Help: "Unix time of the last successful statistics fetch",
		},
		func() float64 { return float64(m.StatsLastSuccess.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "affectra_camera_last_success_timestamp_seconds",
			Help: "Unix time of the last successful camera list fetch",
		},
		func() float64 { return float64(m.CameraLastSuccess.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "affectra_stream_clients",
			Help: "Operator UI clients subscribed to live state updates",
		},
		func() float64 { return float64(m.StreamClients.Load()) },
	))
}

// ObserveRequest records one finished backend request.
func (m *Metrics) ObserveRequest(path, outcome string, elapsed time.Duration) {
	m.requests.WithLabelValues(path, outcome).Inc()
	m.latency.WithLabelValues(path).Observe(elapsed.Seconds())
}

// MarkStats records a statistics fetch outcome at t.
func (m *Metrics) MarkStats(ok bool, t time.Time) {
	if ok {
		m.StatsRefreshes.Add(1)
		m.StatsLastSuccess.Store(t.Unix())
		return
	}
	m.StatsFailures.Add(1)
}

// MarkCameras records a camera list fetch outcome at t.
func (m *Metrics) MarkCameras(ok bool, t time.Time) {
	if ok {
		m.CameraRefreshes.Add(1)
		m.CameraLastSuccess.Store(t.Unix())
		return
	}
	m.CameraFailures.Add(1)
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
