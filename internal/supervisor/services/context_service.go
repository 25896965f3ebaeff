// Fleetglass - Vehicle Fleet Tracking and Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetglass

package services

import "context"

// ContextRunner matches components that already follow the suture pattern
// of running until their context is canceled. Satisfied by the WebSocket
// hub and the store bridge.
type ContextRunner interface {
	RunWithContext(ctx context.Context) error
}

// ContextService wraps a ContextRunner as a named supervised service.
type ContextService struct {
	runner ContextRunner
	name   string
}

// NewContextService creates a service wrapper with the given name.
func NewContextService(name string, runner ContextRunner) *ContextService {
	return &ContextService{runner: runner, name: name}
}

// Serve implements suture.Service.
func (s *ContextService) Serve(ctx context.Context) error {
	return s.runner.RunWithContext(ctx)
}

// String implements fmt.Stringer; suture uses it in log messages.
func (s *ContextService) String() string {
	return s.name
}
