// Fleetglass - Vehicle Fleet Tracking and Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetglass

package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

func TestCircuitBreakerOpensOnConnectionErrors(t *testing.T) {
	client := &mockClient{
		devicesFn: func(context.Context, int, int) (map[string]map[string]any, error) {
			return nil, &ConnectionError{Err: errors.New("refused")}
		},
	}
	cbc := NewCircuitBreakerClient(client)

	// Trips at the 10-request minimum with a 100% failure rate.
	for i := 0; i < 10; i++ {
		if _, err := cbc.GetDevices(context.Background(), 1, 60); err == nil {
			t.Fatal("GetDevices() should fail")
		}
	}
	if client.deviceCalls != 10 {
		t.Fatalf("device calls = %d, want 10 before the circuit opens", client.deviceCalls)
	}

	// Open circuit: rejected without reaching the upstream, surfaced as a
	// ConnectionError.
	_, err := cbc.GetDevices(context.Background(), 1, 60)
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("error %v, want ConnectionError", err)
	}
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("error %v should wrap ErrOpenState", err)
	}
	if client.deviceCalls != 10 {
		t.Errorf("device calls = %d, open circuit must not reach the upstream", client.deviceCalls)
	}
}

func TestCircuitBreakerIgnoresThrottleAndAuthErrors(t *testing.T) {
	calls := 0
	client := &mockClient{
		devicesFn: func(context.Context, int, int) (map[string]map[string]any, error) {
			calls++
			if calls%2 == 0 {
				return nil, &AuthError{StatusCode: 401, Reason: "credentials rejected"}
			}
			return nil, &ThrottleError{ObservedAt: time.Now().UTC()}
		},
	}
	cbc := NewCircuitBreakerClient(client)

	// Well past the trip threshold; deterministic upstream responses must
	// never open the circuit.
	for i := 0; i < 30; i++ {
		_, _ = cbc.GetDevices(context.Background(), 1, 60)
	}
	if client.deviceCalls != 30 {
		t.Errorf("device calls = %d, want 30 (circuit must stay closed)", client.deviceCalls)
	}

	// Error classification passes through untouched.
	_, err := cbc.GetDevices(context.Background(), 1, 60)
	var te *ThrottleError
	if !errors.As(err, &te) {
		t.Errorf("error %v, want ThrottleError passthrough", err)
	}
}

func TestCircuitBreakerPassesResultsThrough(t *testing.T) {
	client := &mockClient{
		devicesFn: func(context.Context, int, int) (map[string]map[string]any, error) {
			return map[string]map[string]any{"1": {"id": "v1"}}, nil
		},
		zonesFn: func(context.Context) (map[string]string, error) {
			return map[string]string{"Z1": "Depot"}, nil
		},
		lastStatus: 200,
	}
	cbc := NewCircuitBreakerClient(client)

	devices, err := cbc.GetDevices(context.Background(), 1, 60)
	if err != nil || len(devices) != 1 {
		t.Errorf("GetDevices() = %v, %v", devices, err)
	}
	zones, err := cbc.GetZones(context.Background())
	if err != nil || zones["Z1"] != "Depot" {
		t.Errorf("GetZones() = %v, %v", zones, err)
	}
	if err := cbc.TestConnection(context.Background()); err != nil {
		t.Errorf("TestConnection() error: %v", err)
	}
	if got := cbc.LastHTTPStatus(); got != 200 {
		t.Errorf("LastHTTPStatus() = %d, want 200", got)
	}
}

func TestCastResult(t *testing.T) {
	if _, err := castResult[string](42, nil); err == nil {
		t.Error("castResult should reject a mismatched type")
	}
	if v, err := castResult[int](42, nil); err != nil || v != 42 {
		t.Errorf("castResult = %v, %v", v, err)
	}
	wantErr := errors.New("boom")
	if _, err := castResult[int](nil, wantErr); !errors.Is(err, wantErr) {
		t.Errorf("castResult error = %v, want passthrough", err)
	}
}

func TestStateConversions(t *testing.T) {
	tests := []struct {
		state gobreaker.State
		str   string
		f     float64
	}{
		{gobreaker.StateClosed, "closed", 0},
		{gobreaker.StateHalfOpen, "half-open", 1},
		{gobreaker.StateOpen, "open", 2},
	}
	for _, tt := range tests {
		if got := stateToString(tt.state); got != tt.str {
			t.Errorf("stateToString(%v) = %q, want %q", tt.state, got, tt.str)
		}
		if got := stateToFloat(tt.state); got != tt.f {
			t.Errorf("stateToFloat(%v) = %v, want %v", tt.state, got, tt.f)
		}
	}
}
