// Fleetglass - Vehicle Fleet Tracking and Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetglass

package cache

import (
	"testing"
	"time"
)

func TestStampedUnsetNeverFresh(t *testing.T) {
	s := NewStamped[map[string]string](10 * time.Minute)
	if s.Fresh(time.Now()) {
		t.Error("unstamped container should not be fresh")
	}
	v, at := s.Get()
	if v != nil {
		t.Errorf("expected zero value, got %v", v)
	}
	if !at.IsZero() {
		t.Errorf("expected zero stamp, got %v", at)
	}
}

func TestStampedReplaceAndExpiry(t *testing.T) {
	s := NewStamped[map[string]string](10 * time.Minute)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	s.Replace(map[string]string{"Z1": "Depot"}, now)

	if !s.Fresh(now) {
		t.Error("just-replaced value should be fresh")
	}
	if !s.Fresh(now.Add(9 * time.Minute)) {
		t.Error("value within TTL should be fresh")
	}
	if s.Fresh(now.Add(10 * time.Minute)) {
		t.Error("value at TTL boundary should be stale")
	}

	// Staleness never discards the value.
	if got := s.Value(); got["Z1"] != "Depot" {
		t.Errorf("stale value should still be readable, got %v", got)
	}
}

func TestStampedTouchKeepsValue(t *testing.T) {
	s := NewStamped[map[string]string](10 * time.Minute)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	s.Replace(map[string]string{"Z1": "Depot"}, now)

	later := now.Add(15 * time.Minute)
	s.Touch(later)

	if !s.Fresh(later.Add(time.Minute)) {
		t.Error("touched container should be fresh again")
	}
	v, at := s.Get()
	if v["Z1"] != "Depot" {
		t.Errorf("touch must not replace the value, got %v", v)
	}
	if !at.Equal(later) {
		t.Errorf("stamp = %v, want %v", at, later)
	}
}
