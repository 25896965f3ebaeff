// Fleetglass - Vehicle Fleet Tracking and Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetglass

package sync

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// retryHintFromHeaders extracts a server retry hint from a 429 response.
//
// Precedence: Retry-After integer seconds, then Retry-After HTTP-date
// (relative to now, floored at zero for dates in the past), then the
// Azure-style x-ms-retry-after-ms header. Header lookup is case-insensitive
// via http.Header canonicalization. Returns false when no usable hint is
// present, in which case the coordinator applies its own backoff.
func retryHintFromHeaders(h http.Header, now time.Time) (time.Duration, bool) {
	if v := strings.TrimSpace(h.Get("Retry-After")); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			if secs < 0 {
				secs = 0
			}
			return time.Duration(secs) * time.Second, true
		}
		if t, err := http.ParseTime(v); err == nil {
			d := t.Sub(now)
			if d < 0 {
				d = 0
			}
			return d, true
		}
	}

	if v := strings.TrimSpace(h.Get("x-ms-retry-after-ms")); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			if ms < 0 {
				ms = 0
			}
			return time.Duration(ms) * time.Millisecond, true
		}
	}

	return 0, false
}
