// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

package game_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/towgame/tow/internal/game"
	"github.com/towgame/tow/internal/modloader"
	modlua "github.com/towgame/tow/internal/modloader/lua"
	"github.com/towgame/tow/pkg/errutil"
	"github.com/towgame/tow/pkg/event"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHost(t *testing.T, opts ...game.HostOption) (*game.Host, string) {
	t.Helper()
	dir := t.TempDir()
	opts = append([]game.HostOption{
		game.WithLogger(discard()),
		game.WithLoaderOptions(modloader.WithOpeners(modlua.NewOpener())),
	}, opts...)
	h, err := game.NewHost(dir, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h, dir
}

func writeMod(t *testing.T, dir, name, code string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(code), 0o600))
}

func TestHost_BootPublishesReady(t *testing.T) {
	h, _ := newHost(t, game.WithWorld("arena"))
	var ready *game.GameReadyEvent
	event.Subscribe(h.Bus(), func(e *game.GameReadyEvent) { ready = e })

	report, err := h.Boot(context.Background())

	require.NoError(t, err)
	assert.Zero(t, report.Discovered)
	assert.True(t, h.Ready())
	require.NotNil(t, ready)
	assert.Equal(t, "arena", ready.World)
	assert.Zero(t, ready.Mods)
}

func TestHost_BootTwice(t *testing.T) {
	h, _ := newHost(t)
	_, err := h.Boot(context.Background())
	require.NoError(t, err)

	_, err = h.Boot(context.Background())

	errutil.AssertErrorCode(t, err, "GAME_ALREADY_BOOTED")
}

func TestHost_BootWithLuaMods(t *testing.T) {
	h, dir := newHost(t)
	writeMod(t, dir, "fence.lua", `
		mod.name("fence")
		mod.entry(function()
			return { attach = function(self) mod.log("info", "fence up") end }
		end)
		mod.listen("tank", "high", function(ev)
			if ev.tank.x + (ev.dx or 0) > 100 then ev:cancel() end
		end)
	`)
	writeMod(t, dir, "greedy.lua", `
		mod.entry(function() return {} end)
		mod.entry(function() return {} end)
	`)

	report, err := h.Boot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Attached)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "greedy.lua", report.Failures[0].Artifact)

	h.SpawnTank(game.Tank{ID: "t1", X: 90})

	moved, err := h.MoveTank("t1", 5, 0)
	require.NoError(t, err)
	assert.True(t, moved)

	moved, err = h.MoveTank("t1", 10, 0)
	require.NoError(t, err)
	assert.False(t, moved, "the fence mod cancels moves past x=100")

	tank, ok := h.Tank("t1")
	require.True(t, ok)
	assert.InDelta(t, 95.0, tank.X, 1e-9)

	units := h.Loader().Units()
	require.Len(t, units, 1)
	assert.Equal(t, modloader.StateRunning, units[0].State)
}

func TestHost_TankActions(t *testing.T) {
	h, _ := newHost(t)
	_, err := h.Boot(context.Background())
	require.NoError(t, err)
	h.SpawnTank(game.Tank{ID: "t1"})
	event.Subscribe(h.Bus(), func(e *game.TankRotatedEvent) {
		if e.Degrees > 90 {
			e.Cancel()
		}
	})

	ok, err := h.RotateTank("t1", 45)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = h.RotateTank("t1", 180)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = h.RotateTower("t1", 30)
	require.NoError(t, err)
	assert.True(t, ok)

	tank, _ := h.Tank("t1")
	assert.InDelta(t, 45.0, tank.Rotation, 1e-9)
	assert.InDelta(t, 30.0, tank.TowerRotation, 1e-9)

	_, err = h.MoveTank("ghost", 1, 1)
	errutil.AssertErrorCode(t, err, "GAME_UNKNOWN_TANK")
	_, ok = h.Tank("ghost")
	assert.False(t, ok)
}

func TestHost_WorldChanges(t *testing.T) {
	h, _ := newHost(t)
	event.Subscribe(h.Bus(), func(e *game.WorldRemovedEvent) { e.Cancel() })

	assert.True(t, h.ChangeWorld("arena"))
	assert.Equal(t, "arena", h.World())
	assert.False(t, h.RemoveWorld())
	assert.Equal(t, "arena", h.World())

	event.ResetEvent[*game.WorldRemovedEvent](h.Bus())
	assert.True(t, h.RemoveWorld())
	assert.Empty(t, h.World())
	assert.False(t, h.RemoveWorld(), "nothing left to remove")
}

func TestHost_RunRequiresBoot(t *testing.T) {
	h, _ := newHost(t)

	err := h.Run(context.Background())

	errutil.AssertErrorCode(t, err, "GAME_NOT_BOOTED")
}

func TestHost_RunPublishesTicks(t *testing.T) {
	defer goleak.VerifyNone(t)

	mock := clock.NewMock()
	h, _ := newHost(t, game.WithClock(game.NewClock(game.WithTimeSource(mock), game.WithTPS(10))))
	_, err := h.Boot(context.Background())
	require.NoError(t, err)

	stages := make(chan game.TickStage, 8)
	event.Subscribe(h.Bus(), func(e *game.TickEvent) { stages <- e.Stage })

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- h.Run(ctx) }()

	started := make(chan struct{})
	require.NoError(t, h.Post(ctx, func() { close(started) }))
	<-started

	mock.Add(100 * time.Millisecond)
	for _, want := range []game.TickStage{game.TickStart, game.TickEnd} {
		select {
		case got := <-stages:
			assert.Equal(t, want, got)
		case <-time.After(time.Second):
			t.Fatalf("no %s tick published", want)
		}
	}

	cancel()
	require.NoError(t, <-errc)
	assert.Equal(t, int64(1), h.Clock().CurrentTick())
}

func TestHost_PostAfterCancel(t *testing.T) {
	h, _ := newHost(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Fill the queue so the only ready case is ctx.Done.
	var err error
	for range 100 {
		if err = h.Post(ctx, func() {}); err != nil {
			break
		}
	}

	assert.ErrorIs(t, err, context.Canceled)
}

func TestHost_ScopedModLogger(t *testing.T) {
	var logs bytes.Buffer
	dir := t.TempDir()
	h, err := game.NewHost(dir,
		game.WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))),
		game.WithLoaderOptions(modloader.WithOpeners(modlua.NewOpener())),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	writeMod(t, dir, "chatty.lua", `
		mod.name("chatty")
		mod.init(function() mod.log("info", "hello from chatty") end)
	`)

	_, err = h.Boot(context.Background())

	require.NoError(t, err)
	assert.Contains(t, logs.String(), `"mod":"chatty"`)
	assert.Contains(t, logs.String(), "hello from chatty")
}
