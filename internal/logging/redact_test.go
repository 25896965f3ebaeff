// Fleetglass - Vehicle Fleet Tracking and Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetglass

package logging

import "testing"

func TestRedactSecret(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"single char", "a", "***"},
		{"exactly four", "abcd", "***"},
		{"five chars", "abcde", "ab***de"},
		{"typical key", "secretkey", "se***ey"},
		{"long token", "0123456789abcdef0123456789abcdef", "01***ef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RedactSecret(tt.input); got != tt.want {
				t.Errorf("RedactSecret(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRedactURL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "no query",
			input: "https://example.com/api.php",
			want:  "https://example.com/api.php",
		},
		{
			name:  "credential params masked",
			input: "https://example.com/api.php?key=secretkey&userkey=otherkey99&limit=1",
			want:  "https://example.com/api.php?key=se***ey&userkey=ot***99&limit=1",
		},
		{
			name:  "short secret fully masked",
			input: "https://example.com/api.php?key=abcd",
			want:  "https://example.com/api.php?key=***",
		},
		{
			name:  "non-credential params untouched",
			input: "https://example.com/api.php?minutes=60&limit=1",
			want:  "https://example.com/api.php?minutes=60&limit=1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RedactURL(tt.input); got != tt.want {
				t.Errorf("RedactURL(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
