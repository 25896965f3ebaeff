// Fleetglass - Vehicle Fleet Tracking and Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetglass

package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/fleetglass/internal/models"
	syncpkg "github.com/tomtom215/fleetglass/internal/sync"
)

// VehiclesResponse is the payload of the vehicle list endpoint.
type VehiclesResponse struct {
	Count    int                      `json:"count"`
	Vehicles []*models.VehicleReading `json:"vehicles"`
}

// Vehicles returns the current fleet snapshot, sorted by vehicle ID.
func (h *Handler) Vehicles(w http.ResponseWriter, r *http.Request) {
	snapshot := h.store.Current()

	vehicles := make([]*models.VehicleReading, 0, len(snapshot))
	for _, reading := range snapshot {
		vehicles = append(vehicles, reading)
	}
	sort.Slice(vehicles, func(i, j int) bool {
		return vehicles[i].ID < vehicles[j].ID
	})

	respondSuccess(w, http.StatusOK, VehiclesResponse{
		Count:    len(vehicles),
		Vehicles: vehicles,
	}, h.store.Version())
}

// Vehicle returns a single vehicle reading by ID.
func (h *Handler) Vehicle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	reading, ok := h.store.Current()[id]
	if !ok {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "No such vehicle: "+sanitizeLogValue(id), nil)
		return
	}
	respondSuccess(w, http.StatusOK, reading, h.store.Version())
}

// Status returns the coordinator's poll and throttle state.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	status := h.coordinator.Status()
	respondSuccess(w, http.StatusOK, status, status.SnapshotVersion)
}

// Refresh triggers an immediate poll cycle. Concurrent requests coalesce
// onto a single upstream fetch.
//
// Throttle windows do not surface as Go errors from the coordinator; they
// are reported here as 429 with a Retry-After header so API clients see
// the upstream's pacing.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	snapshot, err := h.coordinator.Refresh(ctx)
	if err != nil {
		h.respondRefreshError(w, err)
		return
	}

	if status := h.coordinator.Status(); status.Throttled {
		if status.ThrottledUntil != nil {
			retryAfter := int(time.Until(*status.ThrottledUntil).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		}
		respondError(w, http.StatusTooManyRequests, "UPSTREAM_THROTTLED",
			"Upstream is throttling requests, snapshot unchanged", nil)
		return
	}

	respondSuccess(w, http.StatusOK, VehiclesResponse{
		Count: len(snapshot),
	}, h.store.Version())
}

// respondRefreshError maps the upstream error taxonomy onto HTTP codes.
// All of these are upstream problems, not client problems, so they land in
// the 5xx range.
func (h *Handler) respondRefreshError(w http.ResponseWriter, err error) {
	var (
		authErr     *syncpkg.AuthError
		endpointErr *syncpkg.EndpointError
	)
	switch {
	case errors.As(err, &authErr):
		respondError(w, http.StatusBadGateway, "UPSTREAM_AUTH",
			"Upstream rejected the configured credentials", err)
	case errors.As(err, &endpointErr):
		respondError(w, http.StatusBadGateway, "UPSTREAM_ENDPOINT",
			"Upstream endpoint not found, check the configured URL", err)
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT",
			"Upstream fetch timed out", err)
	default:
		respondError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE",
			"Upstream fetch failed, previous snapshot retained", err)
	}
}
