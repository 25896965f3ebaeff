// Fleetglass - Vehicle Fleet Tracking and Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetglass

package sync

import (
	"errors"
	"fmt"
	"time"
)

// The upstream client reports failures through a closed taxonomy so callers
// can branch with errors.As instead of matching message strings:
//
//   - EndpointError: the configured base URL does not serve the API (404)
//   - AuthError: credentials rejected (401/403, or an in-body rejection)
//   - ThrottleError: rate limited (429), carries the parsed retry hint
//   - ConnectionError: network failure, 5xx, or an unparseable body
//
// Context cancellation is passed through untouched.

// EndpointError indicates the configured endpoint does not serve the API.
type EndpointError struct {
	StatusCode int
	URL        string
}

func (e *EndpointError) Error() string {
	return fmt.Sprintf("endpoint not found (HTTP %d): %s", e.StatusCode, e.URL)
}

// AuthError indicates the upstream rejected the credentials.
type AuthError struct {
	StatusCode int
	Reason     string
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("authentication rejected (HTTP %d): %s", e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("authentication rejected: %s", e.Reason)
}

// ThrottleError indicates the upstream rate limited the request.
//
// ObservedAt is the wall-clock time the 429 response was observed; backoff
// windows are anchored to it, not to when the request was sent. Hint is the
// server-provided wait extracted from response headers; HasHint is false
// when no usable header was present.
type ThrottleError struct {
	ObservedAt time.Time
	Hint       time.Duration
	HasHint    bool
}

func (e *ThrottleError) Error() string {
	if e.HasHint {
		return fmt.Sprintf("throttled by upstream (retry after %s)", e.Hint)
	}
	return "throttled by upstream (no retry hint)"
}

// ConnectionError indicates a transport-level failure: network error,
// server-side 5xx, or a response body that could not be parsed.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("upstream connection failed: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// errorClass maps an error to its metrics label.
func errorClass(err error) string {
	var (
		endpointErr   *EndpointError
		authErr       *AuthError
		throttleErr   *ThrottleError
		connectionErr *ConnectionError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &endpointErr):
		return "endpoint"
	case errors.As(err, &authErr):
		return "auth"
	case errors.As(err, &throttleErr):
		return "throttle"
	case errors.As(err, &connectionErr):
		return "connection"
	default:
		return "connection"
	}
}
