// Fleetglass - Vehicle Fleet Tracking and Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetglass

package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/fleetglass/internal/logging"
	"github.com/tomtom215/fleetglass/internal/metrics"
)

// CircuitBreakerClient wraps a ClientInterface with the circuit breaker
// pattern to stop hammering an upstream that is down or degraded.
//
// Only ConnectionErrors count as breaker failures. Endpoint, auth, and
// throttle outcomes are deterministic responses from a healthy upstream;
// counting them would open the circuit and mask their real classification.
// In particular, throttle handling must keep flowing to the coordinator so
// backoff windows stay anchored to response-observed time.
//
// DETERMINISM NOTE: The breaker uses real time (via sony/gobreaker) for its
// interval and timeout calculations. Tests should mock the wrapped client,
// not the breaker.
type CircuitBreakerClient struct {
	client ClientInterface
	cb     *gobreaker.CircuitBreaker[any]
	name   string
}

// NewCircuitBreakerClient wraps client with circuit breaker protection.
// Configuration:
//   - Max 3 concurrent requests in half-open state
//   - 1 minute measurement window
//   - 2 minute timeout before attempting recovery
//   - Opens after 60% failure rate with minimum 10 requests
func NewCircuitBreakerClient(client ClientInterface) *CircuitBreakerClient {
	cbName := "trackmyride-api"
	metrics.CircuitBreakerState.Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6
			if shouldTrip {
				logging.Warn().Uint32("failures", counts.TotalFailures).Float64("failure_rate", failureRatio*100).Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},

		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var connErr *ConnectionError
			return !errors.As(err, &connErr)
		},

		OnStateChange: func(_ string, from, to gobreaker.State) {
			logging.Info().Str("from", stateToString(from)).Str("to", stateToString(to)).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.Set(stateToFloat(to))
		},
	})

	return &CircuitBreakerClient{client: client, cb: cb, name: cbName}
}

// execute wraps an upstream call with circuit breaker protection.
// An open circuit surfaces as a ConnectionError so the coordinator's
// failure handling stays uniform.
func (cbc *CircuitBreakerClient) execute(fn func() (any, error)) (any, error) {
	result, err := cbc.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			logging.Warn().Err(err).Msg("[CIRCUIT BREAKER] Request rejected")
			return nil, &ConnectionError{Err: fmt.Errorf("circuit breaker: %w", err)}
		}
		return nil, err
	}
	return result, nil
}

// castResult safely type-casts the circuit breaker result.
func castResult[T any](result any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// GetDevices fetches device records with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetDevices(ctx context.Context, limit, minutes int) (map[string]map[string]any, error) {
	return castResult[map[string]map[string]any](cbc.execute(func() (any, error) {
		return cbc.client.GetDevices(ctx, limit, minutes)
	}))
}

// GetZones fetches the zone mapping with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetZones(ctx context.Context) (map[string]string, error) {
	return castResult[map[string]string](cbc.execute(func() (any, error) {
		return cbc.client.GetZones(ctx)
	}))
}

// TestConnection verifies connectivity with circuit breaker protection.
func (cbc *CircuitBreakerClient) TestConnection(ctx context.Context) error {
	_, err := cbc.execute(func() (any, error) {
		return nil, cbc.client.TestConnection(ctx)
	})
	return err
}

// LastHTTPStatus delegates to the wrapped client.
func (cbc *CircuitBreakerClient) LastHTTPStatus() int {
	return cbc.client.LastHTTPStatus()
}
