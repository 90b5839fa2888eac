// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/towgame/tow/internal/observability"
)

type fakeServer struct {
	mu       sync.Mutex
	ready    observability.ReadinessChecker
	metrics  *observability.Metrics
	startErr error
	errCh    chan error
	started  bool
	stopped  bool
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		metrics: observability.NewMetrics(prometheus.NewRegistry()),
		errCh:   make(chan error, 1),
	}
}

func (f *fakeServer) Start() (<-chan error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.started = true
	return f.errCh, nil
}

func (f *fakeServer) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeServer) Addr() string                    { return "127.0.0.1:0" }
func (f *fakeServer) Metrics() *observability.Metrics { return f.metrics }

func (f *fakeServer) isReady() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready != nil && f.ready()
}

func serverDeps(f *fakeServer) *RunDeps {
	deps := quietDeps()
	deps.ObservabilityServerFactory = func(_ string, ready observability.ReadinessChecker) ObservabilityServer {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.ready = ready
		return f
	}
	return deps
}

func TestRun_BootsAndStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	writeMod(t, dir, "fence.lua", fenceMod)
	cfg := testConfig(dir)
	cfg.Metrics.Addr = "127.0.0.1:0"
	server := newFakeServer()
	cmd, buf := testCmd()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- runWithDeps(ctx, cfg, cmd, serverDeps(server)) }()

	require.Eventually(t, server.isReady, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
	assert.Contains(t, buf.String(), "tow started")
	assert.True(t, server.started)
	assert.True(t, server.stopped)
	assert.False(t, server.isReady(), "closing the host clears readiness")
}

func TestRun_ServerErrorTriggersShutdown(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Metrics.Addr = "127.0.0.1:0"
	server := newFakeServer()
	cmd, _ := testCmd()

	done := make(chan error, 1)
	go func() { done <- runWithDeps(context.Background(), cfg, cmd, serverDeps(server)) }()

	require.Eventually(t, server.isReady, 5*time.Second, 10*time.Millisecond)
	server.errCh <- errors.New("listener died")

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after a server error")
	}
}

func TestRun_ServerStartFailure(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Metrics.Addr = "127.0.0.1:0"
	server := newFakeServer()
	server.startErr = errors.New("address in use")
	cmd, _ := testCmd()

	err := runWithDeps(context.Background(), cfg, cmd, serverDeps(server))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start observability server")
}

func TestRun_WithoutMetricsAddress(t *testing.T) {
	cfg := testConfig(t.TempDir())
	called := false
	deps := quietDeps()
	deps.ObservabilityServerFactory = func(string, observability.ReadinessChecker) ObservabilityServer {
		called = true
		return newFakeServer()
	}
	cmd, _ := testCmd()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runWithDeps(ctx, cfg, cmd, deps)

	require.NoError(t, err)
	assert.False(t, called)
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Clock.TPS = 0
	cmd, _ := testCmd()

	err := runWithDeps(context.Background(), cfg, cmd, quietDeps())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
