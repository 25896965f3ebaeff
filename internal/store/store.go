// Fleetglass - Vehicle Fleet Tracking and Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetglass

// Package store holds the current fleet snapshot and fans publications out
// to subscribers.
//
// The coordinator is the only writer. A publication swaps the snapshot
// pointer under a short write lock, so readers either see the old snapshot
// or the new one, never a half-built map. Snapshots and the readings inside
// them are never mutated after publication.
package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/fleetglass/internal/logging"
	"github.com/tomtom215/fleetglass/internal/models"
)

// subscriberBuffer is the channel depth per subscriber. A slow subscriber
// drops updates rather than blocking publication.
const subscriberBuffer = 8

// Update is delivered to subscribers on every publication.
// Changed is false for no-op republications (e.g. throttled poll cycles).
type Update struct {
	Snapshot    models.Snapshot
	Version     string
	Changed     bool
	PublishedAt time.Time
}

// Store is the thread-safe holder of the current snapshot.
type Store struct {
	mu          sync.RWMutex
	current     models.Snapshot
	version     string
	publishedAt time.Time
	subs        map[chan Update]struct{}
}

// New creates an empty store. The initial snapshot is an empty map with its
// own version, so readers never see nil.
func New() *Store {
	return &Store{
		current: models.Snapshot{},
		version: uuid.NewString(),
		subs:    make(map[chan Update]struct{}),
	}
}

// Current returns the published snapshot. The returned map must be treated
// as read-only.
func (s *Store) Current() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Version returns the version ID of the published snapshot.
func (s *Store) Version() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// PublishedAt returns when the current snapshot was last published.
func (s *Store) PublishedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.publishedAt
}

// Count returns the number of vehicles in the published snapshot.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.current)
}

// Publish replaces the snapshot and notifies subscribers. When changed is
// false the previous snapshot and version are republished as a no-op cycle;
// subscribers still receive an Update so they can observe liveness.
func (s *Store) Publish(snap models.Snapshot, changed bool) {
	s.mu.Lock()
	if changed {
		s.current = snap
		s.version = uuid.NewString()
	}
	s.publishedAt = time.Now().UTC()
	update := Update{
		Snapshot:    s.current,
		Version:     s.version,
		Changed:     changed,
		PublishedAt: s.publishedAt,
	}
	subs := make([]chan Update, 0, len(s.subs))
	for ch := range s.subs {
		subs = append(subs, ch)
	}
	s.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- update:
		default:
			logging.Debug().Msg("Dropping snapshot update for slow subscriber")
		}
	}
}

// Subscribe registers a new subscriber. The returned cancel function
// unregisters it and closes the channel; it is safe to call more than once.
func (s *Store) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, subscriberBuffer)

	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}
