// Fleetglass - Vehicle Fleet Tracking and Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetglass

package store

import (
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/fleetglass/internal/models"
)

func TestNewStoreNeverNil(t *testing.T) {
	s := New()
	if s.Current() == nil {
		t.Fatal("initial snapshot should be an empty map, not nil")
	}
	if s.Version() == "" {
		t.Fatal("initial version should be set")
	}
	if s.Count() != 0 {
		t.Fatalf("initial count = %d, want 0", s.Count())
	}
}

func TestPublishChangedReplacesSnapshot(t *testing.T) {
	s := New()
	v0 := s.Version()

	snap := models.Snapshot{"veh1": {ID: "veh1", Name: "Hilux"}}
	s.Publish(snap, true)

	if s.Count() != 1 {
		t.Errorf("count = %d, want 1", s.Count())
	}
	if s.Version() == v0 {
		t.Error("changed publish should mint a new version")
	}
	if got := s.Current()["veh1"]; got == nil || got.Name != "Hilux" {
		t.Errorf("unexpected snapshot content: %+v", got)
	}
}

func TestPublishUnchangedKeepsVersion(t *testing.T) {
	s := New()
	snap := models.Snapshot{"veh1": {ID: "veh1"}}
	s.Publish(snap, true)
	v1 := s.Version()

	s.Publish(nil, false)

	if s.Version() != v1 {
		t.Error("no-op publish must not mint a new version")
	}
	if s.Count() != 1 {
		t.Error("no-op publish must not replace the snapshot")
	}
}

func TestSubscribeReceivesUpdates(t *testing.T) {
	s := New()
	ch, cancel := s.Subscribe()
	defer cancel()

	s.Publish(models.Snapshot{"veh1": {ID: "veh1"}}, true)

	select {
	case u := <-ch:
		if !u.Changed {
			t.Error("expected changed update")
		}
		if len(u.Snapshot) != 1 {
			t.Errorf("snapshot size = %d, want 1", len(u.Snapshot))
		}
		if u.Version != s.Version() {
			t.Error("update version should match store version")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for update")
	}

	s.Publish(nil, false)
	select {
	case u := <-ch:
		if u.Changed {
			t.Error("no-op publish should deliver Changed=false")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for no-op update")
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	s := New()
	_, cancel := s.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		// More publishes than the subscriber buffer holds.
		for i := 0; i < subscriberBuffer*4; i++ {
			s.Publish(models.Snapshot{}, true)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on slow subscriber")
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	s := New()
	ch, cancel := s.Subscribe()
	cancel()
	cancel()

	if _, open := <-ch; open {
		t.Error("channel should be closed after cancel")
	}
	// Publishing after cancel must not panic.
	s.Publish(models.Snapshot{}, true)
}

func TestConcurrentReadersAndPublisher(t *testing.T) {
	s := New()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			s.Publish(models.Snapshot{"veh1": {ID: "veh1"}}, true)
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				snap := s.Current()
				_ = len(snap)
				_ = s.Version()
			}
		}()
	}

	wg.Wait()
}
