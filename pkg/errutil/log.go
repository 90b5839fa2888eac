// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

// Package errutil logs and asserts on oops errors.
package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// Attrs flattens err into slog key/value pairs. oops errors contribute their
// code, hint and context; any other error contributes only its message.
func Attrs(err error) []any {
	if err == nil {
		return nil
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return []any{"error", err.Error()}
	}
	attrs := []any{"error", oopsErr.Error()}
	if code := oopsErr.Code(); code != nil && code != "" {
		attrs = append(attrs, "code", code)
	}
	if hint := oopsErr.Hint(); hint != "" {
		attrs = append(attrs, "hint", hint)
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		attrs = append(attrs, "context", ctx)
	}
	return attrs
}

// Log writes err at level with msg and any extra attributes.
func Log(logger *slog.Logger, level slog.Level, msg string, err error, attrs ...any) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Log(context.Background(), level, msg, append(attrs, Attrs(err)...)...)
}

// LogError logs err at error level.
func LogError(logger *slog.Logger, msg string, err error, attrs ...any) {
	Log(logger, slog.LevelError, msg, err, attrs...)
}

// LogWarn logs err at warn level.
func LogWarn(logger *slog.Logger, msg string, err error, attrs ...any) {
	Log(logger, slog.LevelWarn, msg, err, attrs...)
}
