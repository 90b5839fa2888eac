// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/towgame/tow/internal/config"
	"github.com/towgame/tow/internal/modloader"
)

type modsConfig struct {
	strict bool
}

// NewModsCmd creates the mods subcommand.
func NewModsCmd() *cobra.Command {
	cfg := &modsConfig{}

	cmd := &cobra.Command{
		Use:   "mods",
		Short: "Run a load pass and report each mod",
		Long: `Discover and load every mod in the mods directory without starting the
game loop, then print each unit's state and every load failure.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appCfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runModsWithDeps(cmd.Context(), appCfg, cfg, cmd, nil)
		},
	}

	cmd.Flags().BoolVar(&cfg.strict, "strict", false, "exit non-zero when any mod fails to load")

	return cmd
}

// runModsWithDeps performs one load pass and prints the outcome. If deps is
// nil, default implementations are used.
func runModsWithDeps(ctx context.Context, cfg *config.Config, mc *modsConfig, cmd *cobra.Command, deps *RunDeps) error {
	deps = deps.withDefaults()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := setupLogging(cfg, deps.LogOutput)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	host, err := newHost(cfg, logger, deps.OpenersFactory(cfg), nil)
	if err != nil {
		return fmt.Errorf("failed to create game host: %w", err)
	}
	defer func() {
		if closeErr := host.Close(); closeErr != nil {
			logger.Warn("error closing mods", "error", closeErr)
		}
	}()

	report, err := host.Loader().LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load mods: %w", err)
	}
	logReport(logger, report)
	printReport(cmd.OutOrStdout(), host.Loader().Units(), report)

	if mc.strict && len(report.Failures) > 0 {
		return fmt.Errorf("%d mod(s) failed to load", len(report.Failures))
	}
	return nil
}

func logReport(logger *slog.Logger, report *modloader.Report) {
	logger.Info("load pass complete",
		"pass", report.PassID.String(),
		"discovered", report.Discovered,
		"loaded", report.Loaded,
		"attached", report.Attached,
		"failures", len(report.Failures),
	)
}

func printReport(w io.Writer, units []modloader.UnitInfo, report *modloader.Report) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tBACKEND\tSTATE\tENTRY\tARTIFACT")
	for _, u := range units {
		entry := "-"
		if u.HasEntry {
			entry = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u.Name, u.Backend, u.State, entry, u.Artifact)
	}
	_ = tw.Flush()

	if len(report.Failures) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%d failure(s):\n", len(report.Failures))
	for _, f := range report.Failures {
		fmt.Fprintf(w, "  %s [%s]: %v\n", f.Artifact, f.Stage, f.Err)
	}
}
