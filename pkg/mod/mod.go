// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

// Package mod is the SDK for mod authors.
//
// A mod is a unit of code loaded by the host at runtime. It may contribute
// at most one Entry, any number of eager-init hooks and any number of event
// listener records. Native mods (Go plugins) declare a package variable
// `var Unit = &mod.Unit{...}` or a func Unit() *mod.Unit; out-of-process
// mods implement Remote and call Serve from main.
package mod

import (
	"log/slog"

	"github.com/towgame/tow/pkg/event"
)

// APIVersion is the mod API implemented by this host. Units may declare a
// semver constraint against it.
const APIVersion = "1.0.0"

// Host is the narrow context handed to entries when they are attached.
type Host interface {
	// Bus is the host event bus.
	Bus() *event.Bus
	// Events resolves event names for code that cannot name Go types.
	Events() *event.Registry
	// Logger is a logger scoped to the mod being attached.
	Logger() *slog.Logger
}

// Entry is the designated entry object of a unit. The loader constructs it
// once and attaches it to the running host.
type Entry interface {
	Attach(host Host) error
}

// Detacher is implemented by entries that need to release resources when
// the host shuts down.
type Detacher interface {
	Detach()
}

// Constructor builds an entry. It takes no arguments.
type Constructor func() (Entry, error)

// InitHook runs exactly once when the unit is loaded, whether or not
// anything else in the unit is referenced.
type InitHook func() error

// Unit declares everything a native mod contributes.
type Unit struct {
	// Name identifies the mod in logs and listener sources.
	Name string
	// API is an optional semver constraint on APIVersion, e.g. "^1.0".
	API string
	// Entries lists entry candidates. More than one is a load error.
	Entries []Constructor
	// Init lists eager-init hooks, run in declaration order.
	Init []InitHook
	// Listeners are registration records built with event.On.
	Listeners []event.Listener
}
