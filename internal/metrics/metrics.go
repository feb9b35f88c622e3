package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Users = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "courier_users",
		Help: "Current number of registered users",
	})
	UsersRegistered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "courier_users_registered_total",
		Help: "Total number of user registrations",
	})
	MessagesSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "courier_messages_sent_total",
		Help: "Total number of messages accepted for delivery",
	})
	MessagesDrainedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "courier_messages_drained_total",
		Help: "Total number of messages returned by queue drains",
	})
	WsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "courier_ws_connections",
		Help: "Current number of attached websocket channels",
	})
	PushesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "courier_pushes_total",
		Help: "Total number of notifications handed to a live channel",
	})
	PushFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "courier_push_failures_total",
		Help: "Total number of failed pushes that evicted a channel",
	})
	SnapshotSavesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_snapshot_saves_total",
		Help: "Total number of snapshot saves by result",
	}, []string{"result"})
	HttpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	HttpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

func init() {
	prometheus.MustRegister(
		Users, UsersRegistered,
		MessagesSentTotal, MessagesDrainedTotal,
		WsConnections, PushesTotal, PushFailuresTotal,
		SnapshotSavesTotal,
		HttpRequestsTotal, HttpRequestDuration,
	)
}

// GinMiddleware 统计基础请求指标，供 Prometheus 拉取。未匹配路由统一记为 "unmatched"。
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		labels := prometheus.Labels{"method": c.Request.Method, "path": path, "status": status}
		HttpRequestsTotal.With(labels).Inc()
		HttpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}
