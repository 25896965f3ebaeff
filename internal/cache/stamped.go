// Fleetglass - Vehicle Fleet Tracking and Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetglass

// Package cache provides a small thread-safe TTL-stamped value container.
//
// Unlike a keyed cache, Stamped holds one value together with the time it
// was last refreshed. Callers decide what to do on staleness; expiry never
// discards the value, so a stale-but-present value can keep serving while a
// refresh is attempted. Touch lets a failed refresh advance the stamp
// without replacing the value, which prevents hammering a failing source.
package cache

import (
	"sync"
	"time"
)

// Stamped is a thread-safe holder of a single value with a freshness stamp.
type Stamped[T any] struct {
	mu        sync.RWMutex
	value     T
	fetchedAt time.Time
	ttl       time.Duration
}

// NewStamped creates a Stamped container with the given TTL.
// The zero value of T is held until the first Replace.
func NewStamped[T any](ttl time.Duration) *Stamped[T] {
	return &Stamped[T]{ttl: ttl}
}

// Get returns the held value and the time it was last stamped.
// A zero fetchedAt means no Replace or Touch has happened yet.
func (s *Stamped[T]) Get() (T, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value, s.fetchedAt
}

// Value returns just the held value.
func (s *Stamped[T]) Value() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Fresh reports whether the stamp is within TTL as of now.
// An unstamped container is never fresh.
func (s *Stamped[T]) Fresh(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fetchedAt.IsZero() {
		return false
	}
	return now.Sub(s.fetchedAt) < s.ttl
}

// Replace stores a new value and stamps it with now.
func (s *Stamped[T]) Replace(v T, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = v
	s.fetchedAt = now
}

// Touch advances the stamp without replacing the value.
// Used after a failed or empty refresh to back off further attempts while
// keeping the last good value.
func (s *Stamped[T]) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchedAt = now
}

// TTL returns the configured time-to-live.
func (s *Stamped[T]) TTL() time.Duration {
	return s.ttl
}
