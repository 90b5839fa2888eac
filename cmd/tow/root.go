// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/towgame/tow/internal/config"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the tow CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tow",
		Short: "tow - a moddable tank game host",
		Long: `tow runs the game loop and the event bus, and loads mods from a
directory as native plugins, sandboxed Lua scripts or plugin processes.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/tow/config.yaml)")
	config.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewModsCmd())

	return cmd
}

// loadConfig reads the configuration for cmd, with its flags layered on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(configFile, cmd.Flags())
}
