// Package observability provides Prometheus metrics and OpenTelemetry tracing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EngagementToggles counts like/save toggles by kind and resulting state.
	EngagementToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inspiro_engagement_toggles_total",
		Help: "Total number of engagement toggles by kind and resulting state",
	}, []string{"kind", "state"})

	// ImageHostLatency records image host call latency by host and operation.
	ImageHostLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inspiro_image_host_latency_seconds",
		Help:    "Image host call latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"host", "operation"})

	// ImageHostErrors counts failed image host calls.
	ImageHostErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inspiro_image_host_errors_total",
		Help: "Total number of failed image host calls",
	}, []string{"host", "operation"})

	// ReaperOutcomes counts asset reaper work items by kind and outcome.
	ReaperOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inspiro_asset_reaper_items_total",
		Help: "Asset reaper work items by kind and outcome",
	}, []string{"kind", "outcome"})

	// OrphanedAssetsQueued counts assets handed to the reaper.
	OrphanedAssetsQueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inspiro_orphaned_assets_queued_total",
		Help: "Total number of hosted assets queued for removal",
	}, []string{"reason"})

	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inspiro_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// CacheLookups counts cache-aside lookups by result.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inspiro_cache_lookups_total",
		Help: "Cache-aside lookups by result (hit, miss, error)",
	}, []string{"result"})

	// EventsPublished counts domain events by sink and type.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inspiro_events_published_total",
		Help: "Domain events published by sink and event type",
	}, []string{"sink", "event"})

	// WebSocketConnections is the gauge of live notification sockets.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inspiro_websocket_connections",
		Help: "Number of active notification WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped for slow clients.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inspiro_websocket_backpressure_drops_total",
		Help: "Messages dropped because a WebSocket client could not keep up",
	}, []string{"hub", "reason"})
)

// ObserveImageHost records latency and failure of a single image host call.
func ObserveImageHost(host, operation string, start time.Time, err error) {
	ImageHostLatency.WithLabelValues(host, operation).Observe(time.Since(start).Seconds())
	if err != nil {
		ImageHostErrors.WithLabelValues(host, operation).Inc()
	}
}
