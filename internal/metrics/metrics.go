// Fleetglass - Vehicle Fleet Tracking and Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetglass

// Package metrics defines Prometheus instrumentation for Fleetglass.
//
// All collectors are registered with the default registry via promauto at
// package init and exposed on /metrics by the API server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PollCycles counts completed poll cycles by result:
	// success, throttled, skipped, error.
	PollCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetglass_poll_cycles_total",
		Help: "Total poll cycles by result",
	}, []string{"result"})

	// PollDuration observes wall time of poll cycles that reached the upstream.
	PollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fleetglass_poll_duration_seconds",
		Help:    "Duration of poll cycles that performed an upstream fetch",
		Buckets: prometheus.DefBuckets,
	})

	// UpstreamRequests counts upstream API requests by operation and outcome
	// class: ok, endpoint, auth, throttle, connection.
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetglass_upstream_requests_total",
		Help: "Upstream API requests by operation and outcome class",
	}, []string{"operation", "class"})

	// ThrottleNextAllowedIn is the seconds until the next allowed fetch,
	// zero when not throttled.
	ThrottleNextAllowedIn = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fleetglass_throttle_next_allowed_in_seconds",
		Help: "Seconds until the next upstream fetch is allowed (0 when unthrottled)",
	})

	// ConsecutiveThrottles is the current consecutive 429 count.
	ConsecutiveThrottles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fleetglass_consecutive_throttles",
		Help: "Consecutive throttled responses from the upstream",
	})

	// VehiclesTracked is the number of vehicles in the published snapshot.
	VehiclesTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fleetglass_vehicles_tracked",
		Help: "Vehicles in the current snapshot",
	})

	// ReadingsCoalesced counts readings that were pointer-reused because
	// normalization produced no change.
	ReadingsCoalesced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleetglass_readings_coalesced_total",
		Help: "Readings reused from the previous snapshot because nothing changed",
	})

	// RecordsDropped counts upstream records skipped during normalization.
	RecordsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetglass_records_dropped_total",
		Help: "Upstream device records dropped during normalization",
	}, []string{"reason"})

	// ZoneCacheRefreshes counts zone map refresh attempts by result:
	// replaced, kept, error.
	ZoneCacheRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetglass_zone_cache_refreshes_total",
		Help: "Zone name cache refresh attempts by result",
	}, []string{"result"})

	// CircuitBreakerState is the upstream circuit breaker state
	// (0=closed, 1=half-open, 2=open).
	CircuitBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fleetglass_circuit_breaker_state",
		Help: "Upstream circuit breaker state (0=closed, 1=half-open, 2=open)",
	})

	// WebSocketClients is the number of connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fleetglass_websocket_clients",
		Help: "Connected WebSocket clients",
	})

	// APIRequestDuration observes HTTP API request latency.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fleetglass_api_request_duration_seconds",
		Help:    "HTTP API request duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

// RecordAPIRequest records one HTTP API request observation.
func RecordAPIRequest(method, path, status string, duration time.Duration) {
	APIRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordUpstreamRequest records one upstream request observation.
func RecordUpstreamRequest(operation, class string) {
	UpstreamRequests.WithLabelValues(operation, class).Inc()
}
