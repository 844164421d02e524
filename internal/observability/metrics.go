package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keystone_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "keystone_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// AuthEvents counts register/login/logout outcomes.
	AuthEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keystone_auth_events_total",
		Help: "Authentication events by type and result",
	}, []string{"event", "result"})

	// CatalogRequests counts popular-games lookups by where the answer came from.
	CatalogRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keystone_catalog_requests_total",
		Help: "Catalog proxy requests by source",
	}, []string{"source"})

	// CatalogUpstreamLatency records RAWG round-trip latency.
	CatalogUpstreamLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "keystone_catalog_upstream_latency_seconds",
		Help:    "Latency of upstream catalog calls in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// WebSocketConnections is the gauge of open notification sockets.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "keystone_websocket_connections",
		Help: "Number of open notification WebSocket connections",
	})

	// NotificationDeliveries counts websocket pushes by outcome.
	NotificationDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keystone_notification_deliveries_total",
		Help: "Notification websocket deliveries by outcome",
	}, []string{"outcome"})
)
