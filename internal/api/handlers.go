// Fleetglass - Vehicle Fleet Tracking and Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetglass

// Package api provides the HTTP surface of Fleetglass: fleet snapshot
// reads, poll status, manual refresh, health probes, and the WebSocket
// upgrade endpoint.
package api

import (
	"net/http"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"github.com/tomtom215/fleetglass/internal/config"
	"github.com/tomtom215/fleetglass/internal/logging"
	"github.com/tomtom215/fleetglass/internal/store"
	syncpkg "github.com/tomtom215/fleetglass/internal/sync"
	ws "github.com/tomtom215/fleetglass/internal/websocket"
)

// Handler holds the dependencies for all HTTP handlers.
type Handler struct {
	coordinator *syncpkg.Coordinator
	store       *store.Store
	wsHub       *ws.Hub
	config      *config.Config
	startTime   time.Time
}

// NewHandler creates a handler over the given collaborators.
func NewHandler(coordinator *syncpkg.Coordinator, st *store.Store, hub *ws.Hub, cfg *config.Config) *Handler {
	return &Handler{
		coordinator: coordinator,
		store:       st,
		wsHub:       hub,
		config:      cfg,
		startTime:   time.Now(),
	}
}

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout against slow-client attacks.
func (h *Handler) getUpgrader() gorillaws.Upgrader {
	return gorillaws.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins against the
// configured CORS origins. Browser WebSockets always send Origin; an empty
// Origin means a non-browser client and is allowed.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if h.config == nil {
		return true
	}
	for _, allowed := range h.config.Server.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// WebSocket upgrades the connection and registers the client with the hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.wsHub == nil {
		logging.Warn().Msg("WebSocket connection rejected: hub not initialized")
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "WebSocket service unavailable", nil)
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	h.wsHub.Register <- client
	client.Start()
}
