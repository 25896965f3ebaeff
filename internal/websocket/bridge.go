// Fleetglass - Vehicle Fleet Tracking and Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetglass

package websocket

import (
	"context"

	"github.com/tomtom215/fleetglass/internal/logging"
	"github.com/tomtom215/fleetglass/internal/store"
)

// StoreBridge forwards snapshot publications from the store to the hub.
// Every publication is forwarded, including unchanged republishes during
// throttle windows, so clients can distinguish "no change" from "no data".
type StoreBridge struct {
	hub   *Hub
	store *store.Store
}

// NewStoreBridge creates a bridge from the store to the hub.
func NewStoreBridge(hub *Hub, st *store.Store) *StoreBridge {
	return &StoreBridge{hub: hub, store: st}
}

// RunWithContext forwards store updates until the context is canceled.
// Designed for suture supervision alongside the hub.
func (b *StoreBridge) RunWithContext(ctx context.Context) error {
	updates, cancel := b.store.Subscribe()
	defer cancel()

	logging.Debug().Msg("websocket store bridge started")
	for {
		select {
		case <-ctx.Done():
			logging.Info().Str("component", "websocket-bridge").Msg("websocket store bridge stopped")
			return ctx.Err()
		case u := <-updates:
			b.hub.BroadcastSnapshot(SnapshotData{
				Version:      u.Version,
				Changed:      u.Changed,
				PublishedAt:  u.PublishedAt,
				VehicleCount: len(u.Snapshot),
				Vehicles:     u.Snapshot,
			})
		}
	}
}
