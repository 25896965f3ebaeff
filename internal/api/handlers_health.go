// Fleetglass - Vehicle Fleet Tracking and Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetglass

package api

import (
	"net/http"
	"time"
)

// HealthStatus is the payload of the health endpoint.
type HealthStatus struct {
	Status         string     `json:"status"`
	Version        string     `json:"version"`
	UptimeSeconds  float64    `json:"uptime_seconds"`
	LastSuccess    *time.Time `json:"last_success,omitempty"`
	Throttled      bool       `json:"throttled"`
	VehicleCount   int        `json:"vehicle_count"`
	LastHTTPStatus int        `json:"last_http_status"`
}

// Health reports overall service health. Degraded means the service is up
// but has not completed a successful upstream fetch recently.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	cs := h.coordinator.Status()

	status := "healthy"
	if cs.LastSuccess == nil {
		status = "degraded"
	}

	respondSuccess(w, http.StatusOK, HealthStatus{
		Status:         status,
		Version:        "1.0.0",
		UptimeSeconds:  time.Since(h.startTime).Seconds(),
		LastSuccess:    cs.LastSuccess,
		Throttled:      cs.Throttled,
		VehicleCount:   cs.VehicleCount,
		LastHTTPStatus: cs.LastHTTPStatus,
	}, cs.SnapshotVersion)
}

// HealthLive is the Kubernetes-style liveness probe. Returns 200 if the
// process is alive, regardless of upstream state.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]any{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	}, "")
}

// HealthReady is the Kubernetes-style readiness probe. The service is
// ready once it has published at least one successful snapshot; before
// that, clients would only ever see an empty fleet.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	cs := h.coordinator.Status()
	if cs.LastSuccess == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE",
			"No successful upstream fetch yet", nil)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{
		"ready":        true,
		"last_success": cs.LastSuccess,
	}, cs.SnapshotVersion)
}
