// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/towgame/tow/internal/config"
	"github.com/towgame/tow/internal/game"
	"github.com/towgame/tow/internal/observability"
	"github.com/towgame/tow/internal/xdg"
)

// NewRunCmd creates the run subcommand.
func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Load mods and run the game loop",
		Long: `Load every mod in the mods directory, attach their entries, subscribe
their listeners and drive the tick clock until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWithDeps(ctx, cfg, cmd, nil)
		},
	}
}

// runWithDeps boots the host and runs it until ctx is done or the
// observability server fails. If deps is nil, default implementations are
// used.
func runWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *RunDeps) error {
	deps = deps.withDefaults()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := setupLogging(cfg, deps.LogOutput)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	logger.Info("starting tow",
		"version", version,
		"mods_dir", cfg.Mods.Dir,
		"extensions", cfg.Mods.Extensions,
		"tps", cfg.Clock.TPS,
	)

	if err := xdg.EnsureDir(cfg.Mods.Dir); err != nil {
		return fmt.Errorf("failed to create mods directory: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The server is built before the host so the host can report into its
	// metrics; readiness follows the host once it exists.
	var booted atomic.Pointer[game.Host]
	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, func() bool {
			h := booted.Load()
			return h != nil && h.Ready()
		})
		metrics = obsServer.Metrics()
	}

	host, err := newHost(cfg, logger, deps.OpenersFactory(cfg), metrics)
	if err != nil {
		return fmt.Errorf("failed to create game host: %w", err)
	}
	booted.Store(host)
	defer func() {
		if closeErr := host.Close(); closeErr != nil {
			logger.Warn("error closing mods", "error", closeErr)
		}
	}()

	if obsServer != nil {
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return fmt.Errorf("failed to start observability server: %w", err)
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := obsServer.Stop(shutdownCtx); err != nil {
				logger.Warn("error stopping observability server", "error", err)
			}
		}()
		go monitorServerErrors(ctx, cancel, obsErrChan, logger)
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	report, err := host.Boot(ctx)
	if err != nil {
		return fmt.Errorf("failed to boot: %w", err)
	}
	logReport(logger, report)

	cmd.Println("tow started")
	if err := host.Run(ctx); err != nil {
		return fmt.Errorf("game loop: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// monitorServerErrors cancels the run when the server reports a serve error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("observability server error, triggering shutdown", "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
