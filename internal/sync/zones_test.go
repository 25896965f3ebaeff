// Fleetglass - Vehicle Fleet Tracking and Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetglass

package sync

import (
	"context"
	"errors"
	stdsync "sync"
	"testing"
	"time"
)

// mockClient implements ClientInterface for coordinator and resolver tests.
// Call counters are locked so concurrency tests stay race-clean.
type mockClient struct {
	devicesFn  func(ctx context.Context, limit, minutes int) (map[string]map[string]any, error)
	zonesFn    func(ctx context.Context) (map[string]string, error)
	lastStatus int

	mu          stdsync.Mutex
	deviceCalls int
	zoneCalls   int
}

func (m *mockClient) GetDevices(ctx context.Context, limit, minutes int) (map[string]map[string]any, error) {
	m.mu.Lock()
	m.deviceCalls++
	m.mu.Unlock()
	if m.devicesFn == nil {
		return map[string]map[string]any{}, nil
	}
	return m.devicesFn(ctx, limit, minutes)
}

func (m *mockClient) GetZones(ctx context.Context) (map[string]string, error) {
	m.mu.Lock()
	m.zoneCalls++
	m.mu.Unlock()
	if m.zonesFn == nil {
		return map[string]string{}, nil
	}
	return m.zonesFn(ctx)
}

func (m *mockClient) TestConnection(ctx context.Context) error {
	_, err := m.GetDevices(ctx, 1, 1)
	return err
}

func (m *mockClient) LastHTTPStatus() int { return m.lastStatus }

func TestZoneResolverLazyRefresh(t *testing.T) {
	client := &mockClient{
		zonesFn: func(context.Context) (map[string]string, error) {
			return map[string]string{"Z1": "Depot", "Z2": "Mine"}, nil
		},
	}
	z := NewZoneResolver(client, 10*time.Minute)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	z.EnsureFresh(context.Background(), now)
	if client.zoneCalls != 1 {
		t.Fatalf("zone calls = %d, want 1", client.zoneCalls)
	}
	if got := z.Names()["Z1"]; got != "Depot" {
		t.Errorf("Z1 = %q, want Depot", got)
	}

	// Within TTL: no second fetch.
	z.EnsureFresh(context.Background(), now.Add(5*time.Minute))
	if client.zoneCalls != 1 {
		t.Errorf("zone calls = %d, want 1 (cache fresh)", client.zoneCalls)
	}

	// Past TTL: refetch.
	z.EnsureFresh(context.Background(), now.Add(11*time.Minute))
	if client.zoneCalls != 2 {
		t.Errorf("zone calls = %d, want 2 (cache expired)", client.zoneCalls)
	}
}

func TestZoneResolverFailurePreservesCache(t *testing.T) {
	good := true
	client := &mockClient{
		zonesFn: func(context.Context) (map[string]string, error) {
			if good {
				return map[string]string{"Z1": "Depot"}, nil
			}
			return nil, &ConnectionError{Err: errors.New("boom")}
		},
	}
	z := NewZoneResolver(client, 10*time.Minute)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	z.EnsureFresh(context.Background(), now)
	good = false

	later := now.Add(11 * time.Minute)
	z.EnsureFresh(context.Background(), later)

	if got := z.Names()["Z1"]; got != "Depot" {
		t.Errorf("failed refresh should keep cached names, got %q", got)
	}

	// Stamp advanced: no immediate retry storm.
	z.EnsureFresh(context.Background(), later.Add(time.Minute))
	if client.zoneCalls != 2 {
		t.Errorf("zone calls = %d, want 2 (failure should back off)", client.zoneCalls)
	}
}

func TestZoneResolverEmptyResponsePreservesCache(t *testing.T) {
	empty := false
	client := &mockClient{
		zonesFn: func(context.Context) (map[string]string, error) {
			if empty {
				return map[string]string{}, nil
			}
			return map[string]string{"Z1": "Depot"}, nil
		},
	}
	z := NewZoneResolver(client, 10*time.Minute)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	z.EnsureFresh(context.Background(), now)
	empty = true
	z.EnsureFresh(context.Background(), now.Add(11*time.Minute))

	if got := z.Names()["Z1"]; got != "Depot" {
		t.Errorf("empty refresh should keep cached names, got %q", got)
	}
}

func TestZoneResolverNilBeforeFirstFetch(t *testing.T) {
	z := NewZoneResolver(&mockClient{}, 10*time.Minute)
	if z.Names() != nil {
		t.Errorf("expected nil mapping before first refresh, got %v", z.Names())
	}
}
