// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

// Package main is a native mod that caps how far a tank may move in one
// step.
//
// Build with:
//
//	go build -buildmode=plugin -o speedlimit.so ./plugins/speedlimit
//
// The host must be built from the same module version and toolchain.
package main

import (
	"log/slog"
	"math"

	"github.com/towgame/tow/internal/game"
	"github.com/towgame/tow/pkg/event"
	"github.com/towgame/tow/pkg/mod"
)

// MaxStep is the longest move allowed per event.
const MaxStep = 10.0

// Unit is looked up by the native loader.
var Unit = &mod.Unit{
	Name: "speedlimit",
	API:  "^1.0",
	Entries: []mod.Constructor{
		func() (mod.Entry, error) { return &limiter{}, nil },
	},
	Listeners: []event.Listener{
		event.On(limit, event.WithPriority(event.PriorityHigh), event.WithName("limit")),
	},
}

type limiter struct {
	logger *slog.Logger
}

func (l *limiter) Attach(host mod.Host) error {
	l.logger = host.Logger()
	l.logger.Info("speed limit active", "max_step", MaxStep)
	return nil
}

func (l *limiter) Detach() {
	if l.logger != nil {
		l.logger.Info("speed limit lifted")
	}
}

func limit(e *game.TankMovedEvent) {
	if math.Hypot(e.DX, e.DY) > MaxStep {
		e.Cancel()
	}
}

func main() {}
