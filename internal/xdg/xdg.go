// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

// Package xdg resolves XDG Base Directory paths for tow.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "tow"

// base returns $env, or $HOME joined with fallback.
func base(env string, fallback ...string) (string, error) {
	if dir := os.Getenv(env); dir != "" {
		return dir, nil
	}
	home := os.Getenv("HOME")
	if home == "" {
		return "", oops.Code("CONFIG_INVALID").
			With("env", env).
			Errorf("neither %s nor HOME is set", env)
	}
	return filepath.Join(append([]string{home}, fallback...)...), nil
}

// ConfigDir returns $XDG_CONFIG_HOME/tow, falling back to ~/.config/tow.
func ConfigDir() (string, error) {
	dir, err := base("XDG_CONFIG_HOME", ".config")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName), nil
}

// DataDir returns $XDG_DATA_HOME/tow, falling back to ~/.local/share/tow.
func DataDir() (string, error) {
	dir, err := base("XDG_DATA_HOME", ".local", "share")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName), nil
}

// ModsDir is the default user-writable mods directory.
func ModsDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "mods"), nil
}

// ConfigFile is the default configuration file path.
func ConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// EnsureDir creates path and its parents with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return oops.With("path", path).Wrapf(err, "create directory")
	}
	return nil
}
