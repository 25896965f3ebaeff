// Fleetglass - Vehicle Fleet Tracking and Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetglass

package models

import "time"

// APIResponse is the uniform envelope for all HTTP API responses.
//
// Success:
//
//	{"status": "success", "data": {...}, "metadata": {"timestamp": "..."}}
//
// Error:
//
//	{"status": "error", "data": null, "error": {"code": "NOT_FOUND", "message": "..."}}
type APIResponse struct {
	Status   string    `json:"status"`
	Data     any       `json:"data"`
	Metadata Metadata  `json:"metadata"`
	Error    *APIError `json:"error,omitempty"`
}

// Metadata contains response metadata.
type Metadata struct {
	Timestamp       time.Time `json:"timestamp"`
	SnapshotVersion string    `json:"snapshot_version,omitempty"`
}

// APIError carries a machine-readable code and a human-readable message.
//
// Codes in use: NOT_FOUND, METHOD_NOT_ALLOWED, UPSTREAM_THROTTLED,
// UPSTREAM_AUTH, UPSTREAM_ENDPOINT, UPSTREAM_UNAVAILABLE, SERVICE_UNAVAILABLE.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}
