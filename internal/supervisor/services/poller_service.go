// Fleetglass - Vehicle Fleet Tracking and Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetglass

package services

import (
	"context"
)

// StartStopManager matches components with Start/Stop lifecycle methods.
// Satisfied by the poll coordinator.
type StartStopManager interface {
	Start() error
	Stop()
}

// PollerService wraps the poll coordinator as a supervised service,
// translating its Start/Stop lifecycle into suture's blocking Serve.
type PollerService struct {
	manager StartStopManager
	name    string
}

// NewPollerService creates a poller service wrapper.
func NewPollerService(manager StartStopManager) *PollerService {
	return &PollerService{
		manager: manager,
		name:    "poll-coordinator",
	}
}

// Serve implements suture.Service. Starts the coordinator, blocks until
// the context is canceled, then stops it and waits for the in-flight
// cycle to finish.
func (p *PollerService) Serve(ctx context.Context) error {
	if err := p.manager.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	p.manager.Stop()
	return ctx.Err()
}

// String implements fmt.Stringer; suture uses it in log messages.
func (p *PollerService) String() string {
	return p.name
}
