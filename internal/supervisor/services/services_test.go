// Fleetglass - Vehicle Fleet Tracking and Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetglass

package services

import (
	"context"
	"errors"
	"testing"
	"time"
)

type mockServer struct {
	listenErr   error
	listenBlock chan struct{}
	shutdownErr error
	shutdowns   int
}

func (m *mockServer) ListenAndServe() error {
	if m.listenBlock != nil {
		<-m.listenBlock
	}
	return m.listenErr
}

func (m *mockServer) Shutdown(context.Context) error {
	m.shutdowns++
	if m.listenBlock != nil {
		close(m.listenBlock)
	}
	return m.shutdownErr
}

func TestHTTPServerServiceStartFailure(t *testing.T) {
	srv := &mockServer{listenErr: errors.New("address in use")}
	svc := NewHTTPServerService(srv, time.Second)

	err := svc.Serve(context.Background())
	if err == nil || !errors.Is(err, srv.listenErr) {
		t.Errorf("Serve() = %v, want wrapped listen error", err)
	}
}

func TestHTTPServerServiceGracefulShutdown(t *testing.T) {
	srv := &mockServer{listenBlock: make(chan struct{})}
	svc := NewHTTPServerService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop")
	}
	if srv.shutdowns != 1 {
		t.Errorf("shutdowns = %d, want 1", srv.shutdowns)
	}
}

type mockRunner struct {
	err error
}

func (m *mockRunner) RunWithContext(ctx context.Context) error {
	if m.err != nil {
		return m.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestContextServiceDelegates(t *testing.T) {
	wantErr := errors.New("hub crashed")
	svc := NewContextService("websocket-hub", &mockRunner{err: wantErr})

	if got := svc.String(); got != "websocket-hub" {
		t.Errorf("String() = %q", got)
	}
	if err := svc.Serve(context.Background()); !errors.Is(err, wantErr) {
		t.Errorf("Serve() = %v, want runner error", err)
	}
}

type mockManager struct {
	startErr error
	started  int
	stopped  int
}

func (m *mockManager) Start() error {
	m.started++
	return m.startErr
}

func (m *mockManager) Stop() { m.stopped++ }

func TestPollerServiceLifecycle(t *testing.T) {
	mgr := &mockManager{}
	svc := NewPollerService(mgr)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop")
	}
	if mgr.started != 1 || mgr.stopped != 1 {
		t.Errorf("started/stopped = %d/%d, want 1/1", mgr.started, mgr.stopped)
	}
}

func TestPollerServiceStartFailure(t *testing.T) {
	mgr := &mockManager{startErr: errors.New("already running")}
	svc := NewPollerService(mgr)

	if err := svc.Serve(context.Background()); !errors.Is(err, mgr.startErr) {
		t.Errorf("Serve() = %v, want start error", err)
	}
	if mgr.stopped != 0 {
		t.Error("Stop() must not run when Start() fails")
	}
}
