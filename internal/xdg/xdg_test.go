// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

package xdg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDir(t *testing.T) {
	t.Run("env var", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		got, err := ConfigDir()
		require.NoError(t, err)
		assert.Equal(t, "/custom/config/tow", got)
	})

	t.Run("home fallback", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		t.Setenv("HOME", "/home/testuser")
		got, err := ConfigDir()
		require.NoError(t, err)
		assert.Equal(t, "/home/testuser/.config/tow", got)
	})
}

func TestModsDir(t *testing.T) {
	t.Run("env var", func(t *testing.T) {
		t.Setenv("XDG_DATA_HOME", "/custom/data")
		got, err := ModsDir()
		require.NoError(t, err)
		assert.Equal(t, "/custom/data/tow/mods", got)
	})

	t.Run("home fallback", func(t *testing.T) {
		t.Setenv("XDG_DATA_HOME", "")
		t.Setenv("HOME", "/home/testuser")
		got, err := ModsDir()
		require.NoError(t, err)
		assert.Equal(t, "/home/testuser/.local/share/tow/mods", got)
	})

	t.Run("no home", func(t *testing.T) {
		t.Setenv("XDG_DATA_HOME", "")
		t.Setenv("HOME", "")
		_, err := ModsDir()
		assert.Error(t, err)
	})
}

func TestConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/etc/xdg")
	got, err := ConfigFile()
	require.NoError(t, err)
	assert.Equal(t, "/etc/xdg/tow/config.yaml", got)
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")

	require.NoError(t, EnsureDir(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
}
