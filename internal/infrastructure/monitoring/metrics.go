package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// Session metrics
	SessionsActive  prometheus.Gauge
	SessionsPending prometheus.Gauge
	SessionsTotal   prometheus.Counter

	// Frame pipeline metrics
	FramesSent        prometheus.Counter
	FrameBytes        prometheus.Histogram
	ScreencastRestart prometheus.Counter

	// Cache metrics
	CacheEntries prometheus.Gauge
	CacheBytes   prometheus.Gauge
	CacheRejects prometheus.Counter

	// Clone metrics
	ClonesTotal   *prometheus.CounterVec
	CloneDuration prometheus.Histogram

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tabforge_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tabforge_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		WSConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "tabforge_ws_connections",
			Help: "Currently open WebSocket connections",
		}),
		WSMessages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tabforge_ws_messages_total",
				Help: "WebSocket messages by direction and type",
			},
			[]string{"direction", "type"},
		),

		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "tabforge_sessions_active",
			Help: "Live browser sessions",
		}),
		SessionsPending: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "tabforge_sessions_pending",
			Help: "Cloned sessions awaiting client attachment",
		}),
		SessionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tabforge_sessions_created_total",
			Help: "Total browser sessions created",
		}),

		FramesSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tabforge_frames_sent_total",
			Help: "Screencast frames relayed to clients",
		}),
		FrameBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tabforge_frame_bytes",
			Help:    "Size of relayed screencast frames in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}),
		ScreencastRestart: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tabforge_screencast_restarts_total",
			Help: "Screencast watchdog restarts",
		}),

		CacheEntries: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "tabforge_cache_entries",
			Help: "Entries across all network caches",
		}),
		CacheBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "tabforge_cache_bytes",
			Help: "Bytes across all network caches",
		}),
		CacheRejects: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tabforge_cache_rejects_total",
			Help: "Responses rejected by cache admission policy",
		}),

		ClonesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tabforge_clones_total",
				Help: "Clone operations by outcome",
			},
			[]string{"outcome"},
		),
		CloneDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tabforge_clone_duration_seconds",
			Help:    "Wall time of clone operations",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),

		Uptime: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "tabforge_uptime_seconds",
			Help: "Process uptime in seconds",
		}),
	}

	go m.trackUptime()
	return m
}

func (m *Metrics) trackUptime() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}
