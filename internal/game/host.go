// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

// Package game is the host side of the mod system: the game events, the
// host's own listeners, the tick clock and the Host that owns the bus and
// the mod loader.
package game

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/samber/oops"

	"github.com/towgame/tow/internal/modloader"
	"github.com/towgame/tow/pkg/event"
	"github.com/towgame/tow/pkg/mod"
)

// DefaultWorld is the world loaded at boot.
const DefaultWorld = "main"

var _ mod.Host = (*Host)(nil)

// Host owns the event bus and the mod loader and runs the single loop that
// every bus publication happens on. Methods other than Post, Ready and
// Clock must be called from the goroutine running Boot and Run.
type Host struct {
	bus      *event.Bus
	registry *event.Registry
	loader   *modloader.Loader
	clock    *Clock
	logger   *slog.Logger
	posts    chan func()
	ready    atomic.Bool

	world string
	tanks map[string]*Tank
}

type hostConfig struct {
	logger     *slog.Logger
	clock      *Clock
	world      string
	busOpts    []event.Option
	loaderOpts []modloader.Option
}

// HostOption configures a Host.
type HostOption func(*hostConfig)

// WithLogger sets the host logger.
func WithLogger(l *slog.Logger) HostOption {
	return func(c *hostConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock replaces the tick clock.
func WithClock(k *Clock) HostOption {
	return func(c *hostConfig) {
		if k != nil {
			c.clock = k
		}
	}
}

// WithWorld sets the world loaded at boot.
func WithWorld(name string) HostOption {
	return func(c *hostConfig) {
		if name != "" {
			c.world = name
		}
	}
}

// WithBusOptions passes options to the event bus.
func WithBusOptions(opts ...event.Option) HostOption {
	return func(c *hostConfig) {
		c.busOpts = append(c.busOpts, opts...)
	}
}

// WithLoaderOptions passes options to the mod loader.
func WithLoaderOptions(opts ...modloader.Option) HostOption {
	return func(c *hostConfig) {
		c.loaderOpts = append(c.loaderOpts, opts...)
	}
}

// NewHost creates a host loading mods from modsDir.
func NewHost(modsDir string, opts ...HostOption) (*Host, error) {
	cfg := &hostConfig{logger: slog.Default(), world: DefaultWorld}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.clock == nil {
		cfg.clock = NewClock()
	}

	reg := event.NewRegistry()
	if err := RegisterEvents(reg); err != nil {
		return nil, err
	}

	h := &Host{
		registry: reg,
		clock:    cfg.clock,
		logger:   cfg.logger,
		posts:    make(chan func(), 64),
		world:    cfg.world,
		tanks:    make(map[string]*Tank),
	}
	busOpts := append([]event.Option{
		event.WithRegistry(reg),
		event.WithLogger(cfg.logger),
	}, cfg.busOpts...)
	h.bus = event.New(busOpts...)

	loaderOpts := append([]modloader.Option{
		modloader.WithLogger(cfg.logger),
		modloader.WithRegistry(reg),
	}, cfg.loaderOpts...)
	h.loader = modloader.New(modsDir, h, loaderOpts...)
	return h, nil
}

// Bus implements mod.Host.
func (h *Host) Bus() *event.Bus { return h.bus }

// Events implements mod.Host.
func (h *Host) Events() *event.Registry { return h.registry }

// Logger implements mod.Host.
func (h *Host) Logger() *slog.Logger { return h.logger }

// Loader returns the mod loader.
func (h *Host) Loader() *modloader.Loader { return h.loader }

// Clock returns the tick clock.
func (h *Host) Clock() *Clock { return h.clock }

// Ready reports whether Boot has completed. Safe for concurrent use.
func (h *Host) Ready() bool { return h.ready.Load() }

// Boot runs the load pass, subscribes the discovered listeners of the host
// and of every loaded mod, starts the mods and publishes GameReadyEvent.
func (h *Host) Boot(ctx context.Context) (*modloader.Report, error) {
	if h.ready.Load() {
		return nil, oops.Code("GAME_ALREADY_BOOTED").Errorf("host already booted")
	}

	report, err := h.loader.LoadAll(ctx)
	if err != nil {
		return report, oops.In("game").Wrapf(err, "load mods")
	}

	sources := append([]event.Source{HostListeners(h.logger).Source()}, h.loader.Listeners()...)
	accepted, rejected := event.Scan(sources...)
	for _, r := range rejected {
		h.logger.Warn("listener rejected",
			"source", r.Source,
			"listener", r.Listener,
			"error", r.Err)
	}
	h.bus.SubscribeDiscovered(accepted)

	running := h.loader.Start()
	h.ready.Store(true)
	h.logger.Info("game ready",
		"mods", running,
		"listeners", len(accepted),
		"world", h.world)
	h.bus.Publish(&GameReadyEvent{Mods: running, World: h.world})
	return report, nil
}

// Run drives the loop until ctx is done: clock ticks are published as a
// start and an end TickEvent, and posted functions run between ticks.
func (h *Host) Run(ctx context.Context) error {
	if !h.ready.Load() {
		return oops.Code("GAME_NOT_BOOTED").Errorf("host must boot before running")
	}
	done := h.clock.Start(ctx)
	defer func() { <-done }()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("game loop stopped", "ticks", h.clock.CurrentTick())
			return nil
		case t := <-h.clock.Ticks():
			h.tick(t)
		case fn := <-h.posts:
			fn()
		}
	}
}

func (h *Host) tick(t Tick) {
	ev := TickEvent{Clock: h.clock.Name(), Tick: t.N, Delta: t.Delta.Seconds()}
	start, end := ev, ev
	start.Stage, end.Stage = TickStart, TickEnd
	h.bus.Publish(&start)
	h.bus.Publish(&end)
}

// Post queues fn to run on the loop goroutine. It blocks while the queue is
// full and fails once ctx is done.
func (h *Host) Post(ctx context.Context, fn func()) error {
	select {
	case h.posts <- fn:
		return nil
	case <-ctx.Done():
		return oops.In("game").Wrapf(ctx.Err(), "post to game loop")
	}
}

// Close detaches every mod and tears down their contexts.
func (h *Host) Close() error {
	h.ready.Store(false)
	err := h.loader.Close()
	h.bus.Reset()
	return err
}

// World returns the current world.
func (h *Host) World() string { return h.world }

// ChangeWorld replaces the current world unless a listener cancels it.
func (h *Host) ChangeWorld(next string) bool {
	if h.bus.PublishAndCheck(NewWorldChangedEvent(h.world, next)) {
		return false
	}
	h.world = next
	return true
}

// RemoveWorld unloads the current world unless a listener cancels it.
func (h *Host) RemoveWorld() bool {
	if h.world == "" || h.bus.PublishAndCheck(NewWorldRemovedEvent(h.world)) {
		return false
	}
	h.world = ""
	return true
}

// SpawnTank places a tank in the world.
func (h *Host) SpawnTank(t Tank) {
	tank := t
	h.tanks[t.ID] = &tank
}

// Tank returns the state of the tank with id.
func (h *Host) Tank(id string) (Tank, bool) {
	t, ok := h.tanks[id]
	if !ok {
		return Tank{}, false
	}
	return *t, true
}

// MoveTank moves a tank by (dx, dy) unless a listener cancels the move.
func (h *Host) MoveTank(id string, dx, dy float64) (bool, error) {
	t, err := h.tank(id)
	if err != nil {
		return false, err
	}
	if h.bus.PublishAndCheck(NewTankMovedEvent(*t, dx, dy)) {
		return false, nil
	}
	t.X += dx
	t.Y += dy
	return true, nil
}

// RotateTank turns a tank hull unless a listener cancels the rotation.
func (h *Host) RotateTank(id string, degrees float64) (bool, error) {
	t, err := h.tank(id)
	if err != nil {
		return false, err
	}
	if h.bus.PublishAndCheck(NewTankRotatedEvent(*t, degrees)) {
		return false, nil
	}
	t.Rotation += degrees
	return true, nil
}

// RotateTower turns a tank tower unless a listener cancels the rotation.
func (h *Host) RotateTower(id string, degrees float64) (bool, error) {
	t, err := h.tank(id)
	if err != nil {
		return false, err
	}
	if h.bus.PublishAndCheck(NewTankTowerRotatedEvent(*t, degrees)) {
		return false, nil
	}
	t.TowerRotation += degrees
	return true, nil
}

func (h *Host) tank(id string) (*Tank, error) {
	t, ok := h.tanks[id]
	if !ok {
		return nil, oops.Code("GAME_UNKNOWN_TANK").With("tank", id).Errorf("no tank %q", id)
	}
	return t, nil
}
