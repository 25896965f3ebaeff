// Fleetglass - Vehicle Fleet Tracking and Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetglass

package sync

import (
	"context"
	"time"

	"github.com/tomtom215/fleetglass/internal/cache"
	"github.com/tomtom215/fleetglass/internal/logging"
	"github.com/tomtom215/fleetglass/internal/metrics"
)

// ZoneResolver owns the zone id to display name cache.
//
// The cache refreshes lazily: the coordinator calls EnsureFresh only on
// cycles whose device records actually reference zones, so a fleet that
// never uses zones never fetches them. A failed or empty refresh keeps the
// previous mapping and still advances the stamp, so a broken zones endpoint
// is retried once per TTL instead of every cycle.
type ZoneResolver struct {
	client ClientInterface
	names  *cache.Stamped[map[string]string]
}

// NewZoneResolver creates a resolver with the given cache TTL.
func NewZoneResolver(client ClientInterface, ttl time.Duration) *ZoneResolver {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ZoneResolver{
		client: client,
		names:  cache.NewStamped[map[string]string](ttl),
	}
}

// Names returns the current zone mapping as a read-only view. May be nil
// before the first successful refresh; the normalizer treats unknown zones
// as their raw ids either way.
func (z *ZoneResolver) Names() map[string]string {
	return z.names.Value()
}

// EnsureFresh refreshes the zone mapping if the cache is stale as of now.
// Errors are absorbed: zone names are presentation sugar and must never
// fail a poll cycle.
func (z *ZoneResolver) EnsureFresh(ctx context.Context, now time.Time) {
	if z.names.Fresh(now) {
		return
	}

	zones, err := z.client.GetZones(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("Zone refresh failed, keeping cached names")
		metrics.ZoneCacheRefreshes.WithLabelValues("error").Inc()
		z.names.Touch(now)
		return
	}
	if len(zones) == 0 {
		logging.Debug().Msg("Zone refresh returned no zones, keeping cached names")
		metrics.ZoneCacheRefreshes.WithLabelValues("kept").Inc()
		z.names.Touch(now)
		return
	}

	z.names.Replace(zones, now)
	metrics.ZoneCacheRefreshes.WithLabelValues("replaced").Inc()
	logging.Debug().Int("zones", len(zones)).Msg("Zone name cache refreshed")
}
