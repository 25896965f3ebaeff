// Fleetglass - Vehicle Fleet Tracking and Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetglass

package sync

import (
	"fmt"
	"strings"
)

// commsUnits in descending order. Calendar approximations are fixed:
// a year is 365 days, a month 30 days.
var commsUnits = []struct {
	name string
	secs int64
}{
	{"year", 365 * 24 * 3600},
	{"month", 30 * 24 * 3600},
	{"day", 24 * 3600},
	{"hour", 3600},
	{"minute", 60},
	{"second", 1},
}

// AdjustCommsDelta converts the raw upstream seconds-since-last-comms value
// to the adjusted delta: one second is subtracted to account for upstream
// rounding, floored at zero.
func AdjustCommsDelta(raw int64) int64 {
	adjusted := raw - 1
	if adjusted < 0 {
		adjusted = 0
	}
	return adjusted
}

// FormatCommsDelta renders an adjusted delta as the two largest non-zero
// units, e.g. "1 hour 1 minute". Values under a minute render seconds only.
func FormatCommsDelta(adjusted int64) string {
	if adjusted < 0 {
		adjusted = 0
	}

	var parts []string
	remaining := adjusted
	for _, u := range commsUnits {
		if len(parts) == 2 {
			break
		}
		v := remaining / u.secs
		if v == 0 {
			// Seconds always render when nothing larger did.
			if u.secs == 1 && len(parts) == 0 {
				parts = append(parts, pluralize(0, u.name))
			}
			continue
		}
		parts = append(parts, pluralize(v, u.name))
		remaining -= v * u.secs
	}
	return strings.Join(parts, " ")
}

func pluralize(v int64, unit string) string {
	if v == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", v, unit)
}
