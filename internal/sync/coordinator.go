// Fleetglass - Vehicle Fleet Tracking and Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetglass

/*
coordinator.go - Poll Coordinator

The coordinator drives the poll loop and owns all throttle state. Each
cycle runs one of three paths:

  - Throttled skip: the upstream's window hasn't opened yet. The previous
    snapshot is republished unchanged and the skip is logged once per
    distinct window, not once per tick.
  - Throttle response: a 429 arrived. The next-allowed time is anchored to
    the response-observed time plus the server hint when present, else
    exponential backoff (initial * 2^(n-1), capped).
  - Fetch: devices are fetched, zone names refreshed lazily if referenced,
    records normalized with per-field carry-forward, unchanged readings
    coalesced to their previous pointers, and the result published
    atomically.

Any cycle failure keeps the previous snapshot; consumers never observe a
partially updated fleet. Timer ticks and manual Refresh calls coalesce
onto a single in-flight fetch via singleflight.
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/fleetglass/internal/config"
	"github.com/tomtom215/fleetglass/internal/logging"
	"github.com/tomtom215/fleetglass/internal/metrics"
	"github.com/tomtom215/fleetglass/internal/models"
	"github.com/tomtom215/fleetglass/internal/store"
)

// cycleTimeout bounds a single poll cycle including the zone refresh.
const cycleTimeout = 60 * time.Second

// Status is the coordinator's observable state for the status endpoint.
type Status struct {
	Throttled            bool       `json:"throttled"`
	ThrottledUntil       *time.Time `json:"throttled_until,omitempty"`
	ConsecutiveThrottles int        `json:"consecutive_throttles"`
	LastHTTPStatus       int        `json:"last_http_status"`
	LastSuccess          *time.Time `json:"last_success,omitempty"`
	LastError            string     `json:"last_error,omitempty"`
	VehicleCount         int        `json:"vehicle_count"`
	SnapshotVersion      string     `json:"snapshot_version"`
}

// Coordinator owns the poll loop, throttle state, and snapshot merging.
type Coordinator struct {
	client ClientInterface
	zones  *ZoneResolver
	store  *store.Store
	cfg    *config.Config
	opts   Options

	sf singleflight.Group

	// now is swappable for tests.
	now func() time.Time

	mu                    stdsync.Mutex
	nextAllowedAt         time.Time
	consecutiveThrottles  int
	lastLoggedNextAllowed time.Time
	lastSuccess           time.Time
	lastError             string

	lifecycleMu stdsync.Mutex
	running     bool
	stopChan    chan struct{}
	wg          stdsync.WaitGroup
}

// NewCoordinator creates a coordinator over the given collaborators.
func NewCoordinator(client ClientInterface, zones *ZoneResolver, st *store.Store, cfg *config.Config) *Coordinator {
	return &Coordinator{
		client: client,
		zones:  zones,
		store:  st,
		cfg:    cfg,
		opts: Options{
			IdentityField: cfg.Upstream.IdentityField,
			AccountID:     cfg.Upstream.AccountID,
		},
		now: time.Now,
	}
}

// Start launches the poll loop. Returns an error if already running.
func (c *Coordinator) Start() error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if c.running {
		return fmt.Errorf("coordinator already running")
	}
	c.running = true
	c.stopChan = make(chan struct{})
	c.wg.Add(1)
	go c.pollLoop()
	logging.Info().Dur("interval", c.cfg.Poll.Interval).Msg("Poll coordinator started")
	return nil
}

// Stop terminates the poll loop and waits for the in-flight cycle.
func (c *Coordinator) Stop() {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if !c.running {
		return
	}
	close(c.stopChan)
	c.wg.Wait()
	c.running = false
	logging.Info().Msg("Poll coordinator stopped")
}

// pollLoop ticks at the configured interval. Real pacing is throttle-driven:
// a fast tick against a closed throttle window is a cheap in-memory skip.
func (c *Coordinator) pollLoop() {
	defer c.wg.Done()

	c.runOnce()

	ticker := time.NewTicker(c.cfg.Poll.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.runOnce()
		}
	}
}

func (c *Coordinator) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
	defer cancel()
	if _, err := c.Refresh(ctx); err != nil {
		// Already logged and classified inside the cycle.
		_ = err
	}
}

// Refresh runs one poll cycle, coalescing concurrent callers onto a single
// in-flight fetch. All callers of a coalesced cycle receive the same
// snapshot and error.
func (c *Coordinator) Refresh(ctx context.Context) (models.Snapshot, error) {
	v, err, _ := c.sf.Do("poll", func() (any, error) {
		return c.runCycle(ctx)
	})
	if err != nil {
		return c.store.Current(), err
	}
	return v.(models.Snapshot), nil
}

// runCycle executes the poll state machine once.
func (c *Coordinator) runCycle(ctx context.Context) (models.Snapshot, error) {
	now := c.now().UTC()

	if c.skipWhileThrottled(now) {
		metrics.PollCycles.WithLabelValues("skipped").Inc()
		c.store.Publish(nil, false)
		return c.store.Current(), nil
	}

	start := time.Now()
	devices, err := c.client.GetDevices(ctx, c.pointLimit(), c.cfg.Upstream.MinutesWindow)
	metrics.PollDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		var throttleErr *ThrottleError
		if errors.As(err, &throttleErr) {
			c.applyThrottle(throttleErr)
			metrics.PollCycles.WithLabelValues("throttled").Inc()
			c.store.Publish(nil, false)
			return c.store.Current(), nil
		}

		c.mu.Lock()
		c.lastError = err.Error()
		c.mu.Unlock()
		metrics.PollCycles.WithLabelValues("error").Inc()
		logging.Error().Err(err).Str("class", errorClass(err)).Msg("Poll cycle failed, keeping previous snapshot")
		return c.store.Current(), err
	}

	c.clearThrottle()

	if recordsReferenceZones(devices) {
		c.zones.EnsureFresh(ctx, c.now().UTC())
	}

	merged := c.merge(devices)
	c.store.Publish(merged, true)

	c.mu.Lock()
	c.lastSuccess = now
	c.lastError = ""
	c.mu.Unlock()

	metrics.PollCycles.WithLabelValues("success").Inc()
	metrics.VehiclesTracked.Set(float64(len(merged)))
	logging.Debug().Int("vehicles", len(merged)).Msg("Poll cycle complete")

	return merged, nil
}

// skipWhileThrottled reports whether the cycle must skip, logging the skip
// once per distinct next-allowed time.
func (c *Coordinator) skipWhileThrottled(now time.Time) bool {
	c.mu.Lock()
	if !now.Before(c.nextAllowedAt) {
		c.mu.Unlock()
		return false
	}
	next := c.nextAllowedAt
	shouldLog := !next.Equal(c.lastLoggedNextAllowed)
	if shouldLog {
		c.lastLoggedNextAllowed = next
	}
	c.mu.Unlock()

	if shouldLog {
		logging.Warn().Time("next_allowed_at", next).Msg("Upstream throttled, skipping poll cycles until window opens")
	}
	return true
}

// applyThrottle records a 429 and computes the next allowed fetch time,
// anchored to the response-observed wall-clock time.
func (c *Coordinator) applyThrottle(te *ThrottleError) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveThrottles++

	var delay time.Duration
	if te.HasHint {
		delay = te.Hint
	} else {
		delay = c.backoffDelay(c.consecutiveThrottles)
	}

	base := te.ObservedAt
	if base.IsZero() {
		base = c.now().UTC()
	}
	c.nextAllowedAt = base.Add(delay)

	metrics.ConsecutiveThrottles.Set(float64(c.consecutiveThrottles))
	metrics.ThrottleNextAllowedIn.Set(delay.Seconds())
	logging.Warn().
		Dur("delay", delay).
		Bool("server_hint", te.HasHint).
		Int("consecutive", c.consecutiveThrottles).
		Time("next_allowed_at", c.nextAllowedAt).
		Msg("Upstream throttled")
}

// backoffDelay is the fallback exponential backoff for hintless 429s:
// initial * 2^(n-1), capped at the configured maximum.
func (c *Coordinator) backoffDelay(consecutive int) time.Duration {
	delay := c.cfg.Poll.InitialBackoff
	maxDelay := c.cfg.Poll.MaxBackoff
	for i := 1; i < consecutive; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

// clearThrottle resets throttle state after a successful fetch.
func (c *Coordinator) clearThrottle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.consecutiveThrottles == 0 && c.nextAllowedAt.IsZero() {
		return
	}
	c.consecutiveThrottles = 0
	c.nextAllowedAt = time.Time{}
	c.lastLoggedNextAllowed = time.Time{}
	metrics.ConsecutiveThrottles.Set(0)
	metrics.ThrottleNextAllowedIn.Set(0)
}

// merge normalizes fetched records against the previous snapshot, coalescing
// unchanged readings onto their previous pointers.
func (c *Coordinator) merge(devices map[string]map[string]any) models.Snapshot {
	prev := c.store.Current()
	zoneNames := c.zones.Names()

	merged := make(models.Snapshot, len(devices))
	coalesced := 0
	for key, raw := range devices {
		id, ok := DeriveVehicleID(raw, c.opts)
		if !ok {
			logging.Warn().Str("record_key", key).Msg("Dropping device record with no identity")
			metrics.RecordsDropped.WithLabelValues("no_identity").Inc()
			continue
		}

		reading := NormalizeDevice(id, raw, prev[id], zoneNames)
		if prevReading := prev[id]; prevReading != nil && reading.Equal(prevReading) {
			merged[id] = prevReading
			coalesced++
			continue
		}
		merged[id] = reading
	}

	if coalesced > 0 {
		metrics.ReadingsCoalesced.Add(float64(coalesced))
	}
	return merged
}

// recordsReferenceZones reports whether any record carries a zone field.
func recordsReferenceZones(devices map[string]map[string]any) bool {
	for _, raw := range devices {
		if firstString(raw, []string{"zone", "zones"}) != "" {
			return true
		}
	}
	return false
}

// pointLimit returns the per-device telemetry point limit.
func (c *Coordinator) pointLimit() int {
	if c.cfg.Upstream.PointLimit > 0 {
		return c.cfg.Upstream.PointLimit
	}
	return 1
}

// Status reports the coordinator's current state.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now().UTC()
	s := Status{
		ConsecutiveThrottles: c.consecutiveThrottles,
		LastHTTPStatus:       c.client.LastHTTPStatus(),
		LastError:            c.lastError,
		VehicleCount:         c.store.Count(),
		SnapshotVersion:      c.store.Version(),
	}
	if now.Before(c.nextAllowedAt) {
		s.Throttled = true
		until := c.nextAllowedAt
		s.ThrottledUntil = &until
	}
	if !c.lastSuccess.IsZero() {
		last := c.lastSuccess
		s.LastSuccess = &last
	}
	return s
}
