// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

package modloader

import (
	"context"
	"log/slog"

	"github.com/towgame/tow/pkg/event"
	"github.com/towgame/tow/pkg/mod"
)

// Env is what an Opener may use while loading one artifact.
type Env struct {
	// Registry resolves event names for backends that cannot name Go types.
	Registry *event.Registry
	// Logger is scoped to the artifact being opened.
	Logger *slog.Logger
}

// Opener loads artifacts of one file extension into isolated units.
//
// Errors returned by Open should not carry an oops code: the loader assigns
// the code for the stage that failed.
type Opener interface {
	// Backend names the opener in logs and metrics.
	Backend() string
	// Extension is the artifact extension handled, including the dot.
	Extension() string
	// Open loads path into a fresh isolation context.
	Open(ctx context.Context, path string, env Env) (OpenedUnit, error)
}

// OpenedUnit is one loaded isolation context. Nothing in it has run yet
// except what the backend's own loading mechanism runs implicitly.
type OpenedUnit interface {
	// Name is the declared unit name. Empty means the artifact stem.
	Name() string
	// API is the declared semver constraint on mod.APIVersion, or empty.
	API() string
	// Entries lists entry candidates.
	Entries() []mod.Constructor
	// InitHooks lists eager-init hooks in declaration order.
	InitHooks() []mod.InitHook
	// Listeners returns the unit's listener records. It is read after the
	// unit has been attached.
	Listeners() []event.Listener
	// Close tears down the isolation context.
	Close() error
}

// Metrics receives load pass outcomes.
type Metrics interface {
	UnitLoaded(backend string)
	UnitFailed(backend string, stage Stage)
}

type nopMetrics struct{}

func (nopMetrics) UnitLoaded(string)        {}
func (nopMetrics) UnitFailed(string, Stage) {}
