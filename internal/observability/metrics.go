package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fricon_http_requests_total",
			Help: "Total number of local API requests.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fricon_http_request_duration_seconds",
			Help:    "Local API request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	invokesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fricon_realtime_invokes_total",
			Help: "Total number of realtime invocations by outcome.",
		},
		[]string{"procedure", "outcome"},
	)
	invokeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fricon_realtime_invoke_duration_seconds",
			Help:    "Realtime invocation round-trip latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"procedure"},
	)
	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fricon_realtime_events_total",
			Help: "Total number of inbound push events.",
		},
		[]string{"event"},
	)
	reconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fricon_realtime_reconnects_total",
			Help: "Total number of successful reconnects.",
		},
	)
	connected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fricon_realtime_connected",
			Help: "1 while the realtime connection is open.",
		},
	)
	seenFlushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fricon_seen_flushes_total",
			Help: "Total number of seen-post batch flushes.",
		},
		[]string{"outcome"},
	)
	seenFlushSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fricon_seen_flush_size",
			Help:    "Number of entries per seen-post flush.",
			Buckets: []float64{1, 2, 4, 8, 16, 32},
		},
	)
	reactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fricon_reactions_total",
			Help: "Total number of reaction toggles by target kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
	unreadGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fricon_unread",
			Help: "Current unread counters.",
		},
		[]string{"kind"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fricon_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		invokesTotal,
		invokeDuration,
		eventsTotal,
		reconnectsTotal,
		connected,
		seenFlushesTotal,
		seenFlushSize,
		reactionsTotal,
		unreadGauge,
		amqpPublishErrorsTotal,
	)
}

// HTTPMetricsMiddleware records request counts and latencies per route.
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func ObserveInvoke(procedure, outcome string, elapsed time.Duration) {
	invokesTotal.WithLabelValues(procedure, outcome).Inc()
	invokeDuration.WithLabelValues(procedure).Observe(elapsed.Seconds())
}

func IncRealtimeEvent(event string) {
	eventsTotal.WithLabelValues(event).Inc()
}

func IncReconnect() {
	reconnectsTotal.Inc()
}

func SetConnected(up bool) {
	if up {
		connected.Set(1)
		return
	}
	connected.Set(0)
}

func ObserveSeenFlush(size int, outcome string) {
	seenFlushesTotal.WithLabelValues(outcome).Inc()
	seenFlushSize.Observe(float64(size))
}

func IncReaction(kind, outcome string) {
	reactionsTotal.WithLabelValues(kind, outcome).Inc()
}

func SetUnreadMessages(n int) {
	unreadGauge.WithLabelValues("messages").Set(float64(n))
}

func SetUnreadNotifications(n int) {
	unreadGauge.WithLabelValues("notifications").Set(float64(n))
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
