// Fleetglass - Vehicle Fleet Tracking and Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetglass

/*
trackmyride_client.go - TrackMyRide API Client

This file provides the HTTP communication layer for the TrackMyRide
vehicle-tracking API. The upstream is a single api.php-style endpoint that
authenticates via `key` and `userkey` query parameters and multiplexes
operations through an `operation` parameter.

Client Features:
  - HTTP client with configurable timeout
  - Client-side politeness rate limiter (golang.org/x/time/rate)
  - Closed error taxonomy for all failure modes (see errors.go)
  - Retry-After hint extraction on HTTP 429 (see retry_after.go)
  - Tolerant payload decoding: device payloads arrive either as a direct
    map of records or wrapped under a "data" key
  - Credentials are never logged raw; URLs pass through logging.RedactURL

The client performs no retries itself. Throttle pacing and backoff belong
to the coordinator, which anchors backoff windows to the response-observed
time carried by ThrottleError.
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/fleetglass/internal/config"
	"github.com/tomtom215/fleetglass/internal/logging"
	"github.com/tomtom215/fleetglass/internal/metrics"
)

// maxErrorBodySize limits the response body read for error reporting.
// Prevents unbounded memory allocation on large error responses.
const maxErrorBodySize = 64 * 1024 // 64KB

// readBodyForError reads the response body for error reporting (max 64KB).
// Returns the body content or a placeholder message if reading fails.
func readBodyForError(r io.Reader) []byte {
	limitedReader := io.LimitReader(r, maxErrorBodySize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// ClientInterface defines the upstream API operations used by the
// coordinator and zone resolver. Implemented by Client for production and
// by mocks in tests.
//
// Thread Safety: all methods are safe for concurrent use.
type ClientInterface interface {
	// GetDevices fetches device records. limit caps telemetry points per
	// device; minutes is the lookback window.
	GetDevices(ctx context.Context, limit, minutes int) (map[string]map[string]any, error)

	// GetZones fetches the zone id to display name mapping.
	GetZones(ctx context.Context) (map[string]string, error)

	// TestConnection verifies endpoint reachability and credentials.
	TestConnection(ctx context.Context) error

	// LastHTTPStatus returns the status code of the most recent upstream
	// response, 0 before the first request completes.
	LastHTTPStatus() int
}

// Client handles communication with the TrackMyRide HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	userKey    string
	httpClient *http.Client
	limiter    *rate.Limiter
	lastStatus atomic.Int64

	// now is swappable for tests; ThrottleError anchors to it.
	now func() time.Time
}

// NewClient creates a TrackMyRide API client from the upstream config.
func NewClient(cfg *config.UpstreamConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		userKey:    cfg.UserKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		now:        time.Now,
	}
}

// LastHTTPStatus returns the status code of the most recent response.
func (c *Client) LastHTTPStatus() int {
	return int(c.lastStatus.Load())
}

// GetDevices fetches device records within the lookback window.
// The payload is accepted either as a direct map of records or wrapped
// under a "data" key; non-object values are skipped.
func (c *Client) GetDevices(ctx context.Context, limit, minutes int) (map[string]map[string]any, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("mins", strconv.Itoa(minutes))

	payload, err := c.getJSON(ctx, "get_devices", params)
	metrics.RecordUpstreamRequest("devices", errorClass(err))
	if err != nil {
		return nil, err
	}

	// Unwrap the optional "data" envelope.
	if inner, ok := payload["data"].(map[string]any); ok {
		payload = inner
	}

	records := make(map[string]map[string]any, len(payload))
	for key, v := range payload {
		record, ok := v.(map[string]any)
		if !ok {
			logging.Debug().Str("key", key).Msg("Skipping non-object device entry")
			continue
		}
		records[key] = record
	}
	return records, nil
}

// GetZones fetches the zone id to name mapping. The upstream returns a
// GeoJSON-like feature collection; features without an id are skipped and
// a feature without a name maps to its raw id. A payload with no usable
// features yields an empty map, never an error, so a bad response cannot
// erase a previously cached mapping downstream.
func (c *Client) GetZones(ctx context.Context) (map[string]string, error) {
	payload, err := c.getJSON(ctx, "get_zones", url.Values{})
	metrics.RecordUpstreamRequest("zones", errorClass(err))
	if err != nil {
		return nil, err
	}
	return parseZoneFeatures(payload), nil
}

// TestConnection verifies endpoint reachability and credentials with a
// minimal device fetch.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.GetDevices(ctx, 1, 1)
	return err
}

// getJSON performs one authenticated GET and classifies the outcome into
// the error taxonomy. Context cancellation is returned untouched.
func (c *Client) getJSON(ctx context.Context, operation string, params url.Values) (map[string]any, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params.Set("operation", operation)
	params.Set("key", c.apiKey)
	params.Set("userkey", c.userKey)
	reqURL := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	logging.Debug().Str("operation", operation).Str("url", logging.RedactURL(reqURL)).Msg("Upstream request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ConnectionError{Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close on read path

	observed := c.now().UTC()
	c.lastStatus.Store(int64(resp.StatusCode))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &EndpointError{StatusCode: resp.StatusCode, URL: logging.RedactURL(reqURL)}

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &AuthError{StatusCode: resp.StatusCode, Reason: "credentials rejected"}

	case resp.StatusCode == http.StatusTooManyRequests:
		hint, hasHint := retryHintFromHeaders(resp.Header, observed)
		return nil, &ThrottleError{ObservedAt: observed, Hint: hint, HasHint: hasHint}

	case resp.StatusCode >= http.StatusInternalServerError:
		body := readBodyForError(resp.Body)
		return nil, &ConnectionError{Err: fmt.Errorf("upstream status %d: %s", resp.StatusCode, body)}

	case resp.StatusCode >= http.StatusBadRequest:
		body := readBodyForError(resp.Body)
		return nil, &ConnectionError{Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)}
	}

	var payload map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, 16<<20)).Decode(&payload); err != nil {
		return nil, &ConnectionError{Err: fmt.Errorf("decoding response: %w", err)}
	}

	// The upstream reports bad credentials in-body with HTTP 200.
	if reason, bad := bodyAuthRejection(payload); bad {
		return nil, &AuthError{Reason: reason}
	}

	return payload, nil
}

// bodyAuthRejection detects the upstream's in-body credential rejection,
// which arrives with HTTP 200. Any top-level string value containing
// "invalid key" counts.
func bodyAuthRejection(payload map[string]any) (string, bool) {
	for _, v := range payload {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(s), "invalid key") {
			return s, true
		}
	}
	return "", false
}

// parseZoneFeatures extracts the id to name mapping from a GeoJSON-like
// feature collection. Tolerant of partial data: features without an id are
// skipped, features without a name fall back to the raw id.
func parseZoneFeatures(payload map[string]any) map[string]string {
	zones := make(map[string]string)

	features, ok := payload["features"].([]any)
	if !ok {
		return zones
	}
	for _, f := range features {
		feature, ok := f.(map[string]any)
		if !ok {
			continue
		}
		id := stringValue(feature["id"])
		if id == "" {
			continue
		}
		name := id
		if props, ok := feature["properties"].(map[string]any); ok {
			if n := stringValue(props["name"]); n != "" {
				name = n
			}
		}
		zones[id] = name
	}
	return zones
}

// stringValue renders a JSON scalar as a string, tolerating the upstream's
// habit of switching between strings and numbers for the same field.
func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}
