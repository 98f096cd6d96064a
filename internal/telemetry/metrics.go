package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/settlers"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// HTTP front end metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPRejectedTotal   metric.Int64Counter

	// Resource cache metrics
	CacheEntries     metric.Int64Gauge
	CacheHitsTotal   metric.Int64Counter
	CacheMissesTotal metric.Int64Counter
	CacheNotModified metric.Int64Counter
	CacheGzipServed  metric.Int64Counter

	// API metrics
	APICallsTotal  metric.Int64Counter
	APIErrorsTotal metric.Int64Counter

	// Relay metrics
	RelayPeersActive      metric.Int64UpDownCounter
	RelayUpgradesTotal    metric.Int64Counter
	RelayMessagesTotal    metric.Int64Counter
	RelayRouteErrorsTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	// HTTP front end metrics
	m.HTTPRequestsTotal, _ = meter.Int64Counter(
		"settlers.http.requests.total",
		metric.WithDescription("Total number of HTTP requests by section and status"),
		metric.WithUnit("{request}"),
	)

	m.HTTPRequestDuration, _ = meter.Float64Histogram(
		"settlers.http.request.duration",
		metric.WithDescription("Duration of HTTP requests"),
		metric.WithUnit("ms"),
	)

	m.HTTPRejectedTotal, _ = meter.Int64Counter(
		"settlers.http.rejected.total",
		metric.WithDescription("Total number of requests rejected before reading the body"),
		metric.WithUnit("{request}"),
	)

	// Resource cache metrics
	m.CacheEntries, _ = meter.Int64Gauge(
		"settlers.cache.entries",
		metric.WithDescription("Number of entries loaded into the resource cache"),
		metric.WithUnit("{entry}"),
	)

	m.CacheHitsTotal, _ = meter.Int64Counter(
		"settlers.cache.hits.total",
		metric.WithDescription("Total number of resource cache hits"),
		metric.WithUnit("{request}"),
	)

	m.CacheMissesTotal, _ = meter.Int64Counter(
		"settlers.cache.misses.total",
		metric.WithDescription("Total number of resource cache misses and rejected paths"),
		metric.WithUnit("{request}"),
	)

	m.CacheNotModified, _ = meter.Int64Counter(
		"settlers.cache.not_modified.total",
		metric.WithDescription("Total number of conditional requests answered with 304"),
		metric.WithUnit("{request}"),
	)

	m.CacheGzipServed, _ = meter.Int64Counter(
		"settlers.cache.gzip_served.total",
		metric.WithDescription("Total number of responses served from the gzip encoded body"),
		metric.WithUnit("{request}"),
	)

	// API metrics
	m.APICallsTotal, _ = meter.Int64Counter(
		"settlers.api.calls.total",
		metric.WithDescription("Total number of API calls by route"),
		metric.WithUnit("{call}"),
	)

	m.APIErrorsTotal, _ = meter.Int64Counter(
		"settlers.api.errors.total",
		metric.WithDescription("Total number of API calls answered with a non 200 status"),
		metric.WithUnit("{error}"),
	)

	// Relay metrics
	m.RelayPeersActive, _ = meter.Int64UpDownCounter(
		"settlers.relay.peers.active",
		metric.WithDescription("Number of registered relay peers"),
		metric.WithUnit("{peer}"),
	)

	m.RelayUpgradesTotal, _ = meter.Int64Counter(
		"settlers.relay.upgrades.total",
		metric.WithDescription("Total number of accepted relay upgrades"),
		metric.WithUnit("{connection}"),
	)

	m.RelayMessagesTotal, _ = meter.Int64Counter(
		"settlers.relay.messages.total",
		metric.WithDescription("Total number of messages consumed by the relay loop"),
		metric.WithUnit("{message}"),
	)

	m.RelayRouteErrorsTotal, _ = meter.Int64Counter(
		"settlers.relay.route_errors.total",
		metric.WithDescription("Total number of messages the routing policy failed to deliver"),
		metric.WithUnit("{error}"),
	)

	return m
}
