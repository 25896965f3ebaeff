// Fleetglass - Vehicle Fleet Tracking and Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetglass

/*
main.go - Fleetglass Entrypoint

Startup sequence:

 1. Load and validate configuration (defaults, YAML file, environment)
 2. Initialize structured logging
 3. Wire the upstream client, circuit breaker, zone resolver, snapshot
    store, poll coordinator, and WebSocket hub
 4. Build the supervisor tree: polling layer (coordinator, hub, store
    bridge) and API layer (HTTP server)
 5. Serve until SIGINT/SIGTERM, then shut down gracefully

The supervisor restarts crashed components with exponential backoff; a
polling-layer failure never takes down the API layer, which keeps serving
the last published snapshot.
*/

//nolint:staticcheck // File documentation, not package doc
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/fleetglass/internal/api"
	"github.com/tomtom215/fleetglass/internal/config"
	"github.com/tomtom215/fleetglass/internal/logging"
	"github.com/tomtom215/fleetglass/internal/store"
	"github.com/tomtom215/fleetglass/internal/supervisor"
	"github.com/tomtom215/fleetglass/internal/supervisor/services"
	syncpkg "github.com/tomtom215/fleetglass/internal/sync"
	"github.com/tomtom215/fleetglass/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("base_url", cfg.Upstream.BaseURL).
		Str("api_key", cfg.Redacted().Upstream.APIKey).
		Dur("poll_interval", cfg.Poll.Interval).
		Msg("Starting Fleetglass")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Upstream client behind a circuit breaker.
	client := syncpkg.NewCircuitBreakerClient(syncpkg.NewClient(&cfg.Upstream))

	if err := client.TestConnection(ctx); err != nil {
		// Not fatal: the coordinator retries and the API serves an empty
		// snapshot until the upstream recovers.
		logging.Warn().Err(err).Msg("Initial upstream connection test failed")
	}

	st := store.New()
	zones := syncpkg.NewZoneResolver(client, cfg.Poll.ZoneCacheTTL)
	coordinator := syncpkg.NewCoordinator(client, zones, st, cfg)

	hub := websocket.NewHub()
	bridge := websocket.NewStoreBridge(hub, st)

	handler := api.NewHandler(coordinator, st, hub, cfg)
	router := api.NewRouter(handler, api.NewChiMiddlewareFromConfig(cfg.Server))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddPollingService(services.NewPollerService(coordinator))
	tree.AddPollingService(services.NewContextService("websocket-hub", hub))
	tree.AddPollingService(services.NewContextService("websocket-bridge", bridge))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Fleetglass stopped gracefully")
}
