// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/towgame/tow/internal/config"
	"github.com/towgame/tow/internal/game"
	"github.com/towgame/tow/internal/logging"
	"github.com/towgame/tow/internal/modloader"
	modlua "github.com/towgame/tow/internal/modloader/lua"
	"github.com/towgame/tow/internal/modloader/native"
	"github.com/towgame/tow/internal/modloader/remote"
	"github.com/towgame/tow/internal/observability"
	"github.com/towgame/tow/pkg/event"
)

// RunDeps contains injectable dependencies for the run command.
// All fields with nil values will use their default implementations.
type RunDeps struct {
	// ObservabilityServerFactory creates the metrics and health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker) ObservabilityServer

	// OpenersFactory builds the mod backends enabled by the configuration.
	// Default: defaultOpeners
	OpenersFactory func(cfg *config.Config) []modloader.Opener

	// LogOutput is where logs are written.
	// Default: os.Stderr
	LogOutput io.Writer
}

// ObservabilityServer wraps the methods used by run from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

func (d *RunDeps) withDefaults() *RunDeps {
	out := RunDeps{}
	if d != nil {
		out = *d
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, ready)
		}
	}
	if out.OpenersFactory == nil {
		out.OpenersFactory = defaultOpeners
	}
	if out.LogOutput == nil {
		out.LogOutput = os.Stderr
	}
	return &out
}

// defaultOpeners returns one opener per enabled extension.
func defaultOpeners(cfg *config.Config) []modloader.Opener {
	var openers []modloader.Opener
	if cfg.Enabled(".lua") {
		openers = append(openers, modlua.NewOpener(modlua.WithLoadTimeout(cfg.Mods.LoadTimeout)))
	}
	if cfg.Enabled(".so") {
		openers = append(openers, native.NewOpener())
	}
	if cfg.Enabled(".mod") {
		openers = append(openers, remote.NewOpener(
			remote.WithHandshakeRetry(uint64(cfg.Mods.HandshakeAttempts), 0),
			remote.WithPluginLog(cfg.Log.Format, os.Stderr),
		))
	}
	return openers
}

// newHost wires a game host from the configuration. metrics may be nil.
func newHost(cfg *config.Config, logger *slog.Logger, openers []modloader.Opener, metrics *observability.Metrics) (*game.Host, error) {
	ignore, err := modloader.CompileIgnore(cfg.Mods.Ignore)
	if err != nil {
		return nil, err
	}

	busOpts := []event.Option{
		event.WithBaseEvents(cfg.Bus.IncludeBaseEvents),
		event.WithRouteCacheSize(cfg.Bus.RouteCacheSize),
	}
	loaderOpts := []modloader.Option{
		modloader.WithOpeners(openers...),
		modloader.WithIgnore(ignore...),
	}
	if metrics != nil {
		busOpts = append(busOpts, event.WithObserver(metrics))
		loaderOpts = append(loaderOpts, modloader.WithMetrics(metrics))
	}

	return game.NewHost(cfg.Mods.Dir,
		game.WithLogger(logger),
		game.WithClock(game.NewClock(game.WithTPS(cfg.Clock.TPS))),
		game.WithBusOptions(busOpts...),
		game.WithLoaderOptions(loaderOpts...),
	)
}

// setupLogging builds the process logger from the configuration and
// installs it as the slog default.
func setupLogging(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.SetDefault("tow", version, cfg.Log.Format, level, w), nil
}
