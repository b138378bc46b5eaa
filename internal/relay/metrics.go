package relay

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the relay's Prometheus collectors. Each Metrics owns its registry
// so several relays can run in one process.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	ActiveConnections prometheus.Gauge
	FramesReceived    *prometheus.CounterVec
	BroadcastsSent    prometheus.Counter
	RateLimited       prometheus.Counter

	FollowOperations *prometheus.CounterVec
	RosterSize       prometheus.Gauge
}

// NewMetrics creates and registers every collector
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"method", "path"},
		),
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_websocket_connections",
			Help: "Open realtime connections",
		}),
		FramesReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_frames_received_total",
				Help: "Realtime frames received by type",
			},
			[]string{"type"},
		),
		BroadcastsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_broadcasts_delivered_total",
			Help: "Broadcast frames delivered to subscribers",
		}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_rate_limited_total",
			Help: "Frames rejected by the per-connection rate limiter",
		}),
		FollowOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_follow_operations_total",
				Help: "Follow mutations by operation and result",
			},
			[]string{"operation", "result"},
		),
		RosterSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_roster_size",
			Help: "Users in the last served global roster",
		}),
	}
}

// middleware records request count and latency. The registered route pattern is
// used as the path label to keep cardinality bounded.
func (m *Metrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(startTime).Seconds())
	}
}
