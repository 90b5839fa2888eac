// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/hashicorp/go-hclog"
)

// ForMod returns a child logger tagging every record with the mod name.
func ForMod(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("mod", name)
}

// ForPlugin returns the hclog logger go-plugin uses for a remote mod's
// process plumbing and forwarded stderr.
func ForPlugin(name, format string, w io.Writer) hclog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       "mod." + name,
		Output:     w,
		Level:      hclog.Info,
		JSONFormat: format != "text",
	})
}
