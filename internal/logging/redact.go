// Fleetglass - Vehicle Fleet Tracking and Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetglass

package logging

import "strings"

// RedactSecret masks a credential for log output, keeping just enough of the
// value to recognize which key is in play. Short secrets are fully masked so
// the prefix/suffix cannot reconstruct them.
//
//	RedactSecret("secretkey") -> "se***ey"
//	RedactSecret("abcd")      -> "***"
//	RedactSecret("")          -> ""
func RedactSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "***"
	}
	return s[:2] + "***" + s[len(s)-2:]
}

// RedactURL masks credential-bearing query parameters in a URL string.
// Values of key/userkey/apikey parameters are passed through RedactSecret.
// Best effort: the input is treated as text, not parsed as a URL, so a
// malformed URL is returned redacted rather than erroring.
func RedactURL(rawURL string) string {
	qIdx := strings.IndexByte(rawURL, '?')
	if qIdx < 0 {
		return rawURL
	}
	base := rawURL[:qIdx]
	params := strings.Split(rawURL[qIdx+1:], "&")
	for i, p := range params {
		eq := strings.IndexByte(p, '=')
		if eq < 0 {
			continue
		}
		name := strings.ToLower(p[:eq])
		switch name {
		case "key", "userkey", "apikey", "api_key", "user_key", "token":
			params[i] = p[:eq+1] + RedactSecret(p[eq+1:])
		}
	}
	return base + "?" + strings.Join(params, "&")
}
