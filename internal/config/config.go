// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

// Package config loads the tow configuration. Values are layered: built-in
// defaults, then a YAML file, then command line flags.
package config

import (
	"errors"
	"os"
	"slices"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/towgame/tow/internal/logging"
	"github.com/towgame/tow/internal/xdg"
)

// Extensions of the mod backends that may be enabled.
var knownExtensions = []string{".so", ".lua", ".mod"}

// Config is the complete configuration.
type Config struct {
	Mods    ModsConfig    `koanf:"mods"`
	Bus     BusConfig     `koanf:"bus"`
	Clock   ClockConfig   `koanf:"clock"`
	Log     LogConfig     `koanf:"log"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// ModsConfig configures mod discovery and the backends.
type ModsConfig struct {
	Dir               string        `koanf:"dir"`
	Ignore            []string      `koanf:"ignore"`
	Extensions        []string      `koanf:"extensions"`
	LoadTimeout       time.Duration `koanf:"load_timeout"`
	HandshakeAttempts int           `koanf:"handshake_attempts"`
}

// BusConfig configures the event bus.
type BusConfig struct {
	IncludeBaseEvents bool `koanf:"include_base_events"`
	RouteCacheSize    int  `koanf:"route_cache_size"`
}

// ClockConfig configures the tick clock.
type ClockConfig struct {
	TPS int `koanf:"tps"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// MetricsConfig configures the metrics and health endpoint. An empty
// address disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// Defaults returns the built-in configuration.
func Defaults() map[string]any {
	modsDir, err := xdg.ModsDir()
	if err != nil {
		modsDir = "mods"
	}
	return map[string]any{
		"mods.dir":                modsDir,
		"mods.ignore":             []string{},
		"mods.extensions":         slices.Clone(knownExtensions),
		"mods.load_timeout":       "5s",
		"mods.handshake_attempts": 3,
		"bus.include_base_events": true,
		"bus.route_cache_size":    256,
		"clock.tps":               60,
		"log.format":              "json",
		"log.level":               "info",
		"metrics.addr":            "",
	}
}

// flagKeys maps command line flag names to configuration keys.
var flagKeys = map[string]string{
	"mods-dir":            "mods.dir",
	"mods-ignore":         "mods.ignore",
	"mods-extensions":     "mods.extensions",
	"include-base-events": "bus.include_base_events",
	"tps":                 "clock.tps",
	"log-format":          "log.format",
	"log-level":           "log.level",
	"metrics-addr":        "metrics.addr",
}

// BindFlags registers the flags Load reads. Flag defaults are only
// descriptive: a flag overrides the file only when it is set.
func BindFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.String("mods-dir", d["mods.dir"].(string), "directory scanned for mods")
	fs.StringSlice("mods-ignore", nil, "glob patterns of mod artifacts to skip")
	fs.StringSlice("mods-extensions", knownExtensions, "enabled mod backends by file extension")
	fs.Bool("include-base-events", true, "deliver events to listeners of their capability interfaces")
	fs.Int("tps", d["clock.tps"].(int), "game ticks per second")
	fs.String("log-format", d["log.format"].(string), "log format (json or text)")
	fs.String("log-level", d["log.level"].(string), "log level (debug, info, warn, error)")
	fs.String("metrics-addr", "", "metrics/health HTTP address (empty = disabled)")
}

// Load reads the configuration. An empty path uses the default config file
// when it exists. fs may be nil.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	for key, val := range Defaults() {
		if err := k.Set(key, val); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("key", key).Wrapf(err, "set default")
		}
	}

	explicit := path != ""
	if !explicit {
		if p, err := xdg.ConfigFile(); err == nil {
			path = p
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, oops.Code("CONFIG_INVALID").With("path", path).Wrapf(err, "load config file")
			}
		}
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				key = f.Name
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_INVALID").Wrapf(err, "load flags")
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrapf(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	errb := oops.Code("CONFIG_INVALID")
	if c.Mods.Dir == "" {
		return errb.With("key", "mods.dir").Errorf("mods directory is required")
	}
	for _, ext := range c.Mods.Extensions {
		if !slices.Contains(knownExtensions, ext) {
			return errb.With("key", "mods.extensions").Errorf("unknown mod extension %q", ext)
		}
	}
	if c.Mods.LoadTimeout <= 0 {
		return errb.With("key", "mods.load_timeout").Errorf("load timeout must be positive, got %s", c.Mods.LoadTimeout)
	}
	if c.Mods.HandshakeAttempts < 0 {
		return errb.With("key", "mods.handshake_attempts").Errorf("handshake attempts cannot be negative")
	}
	if c.Bus.RouteCacheSize <= 0 {
		return errb.With("key", "bus.route_cache_size").Errorf("route cache size must be positive")
	}
	if c.Clock.TPS <= 0 || c.Clock.TPS > 1000 {
		return errb.With("key", "clock.tps").Errorf("tps must be between 1 and 1000, got %d", c.Clock.TPS)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return errb.With("key", "log.format").Errorf("log format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// Enabled reports whether the backend for ext is enabled.
func (c *Config) Enabled(ext string) bool {
	return slices.Contains(c.Mods.Extensions, ext)
}
