// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

// Package native loads .so mods built with -buildmode=plugin.
//
// Each plugin is linked under its own package paths, so identically named
// types in two mods never collide. Opening a plugin runs its package init
// functions. Go cannot unload a plugin; Close only drops the handle.
package native

import (
	"context"
	"plugin"

	"github.com/samber/oops"

	"github.com/towgame/tow/internal/modloader"
	"github.com/towgame/tow/pkg/event"
	"github.com/towgame/tow/pkg/mod"
)

// Symbol is the exported name every native mod must define, either as a
// *mod.Unit or mod.Unit variable or as a func() *mod.Unit. Lookup of a
// variable yields a pointer to it.
const Symbol = "Unit"

// Library is the part of *plugin.Plugin the opener needs.
type Library interface {
	Lookup(name string) (plugin.Symbol, error)
}

// OpenFunc opens a shared object.
type OpenFunc func(path string) (Library, error)

func openPlugin(path string) (Library, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}
	return p, nil
}

var _ modloader.Opener = (*Opener)(nil)

// Opener loads .so artifacts.
type Opener struct {
	open OpenFunc
}

// OpenerOption configures the Opener.
type OpenerOption func(*Opener)

// WithOpenFunc replaces plugin.Open.
func WithOpenFunc(fn OpenFunc) OpenerOption {
	return func(o *Opener) {
		if fn != nil {
			o.open = fn
		}
	}
}

// NewOpener creates a native opener.
func NewOpener(opts ...OpenerOption) *Opener {
	o := &Opener{open: openPlugin}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Backend implements modloader.Opener.
func (o *Opener) Backend() string { return "native" }

// Extension implements modloader.Opener.
func (o *Opener) Extension() string { return ".so" }

// Open implements modloader.Opener.
func (o *Opener) Open(_ context.Context, path string, env modloader.Env) (modloader.OpenedUnit, error) {
	lib, err := o.open(path)
	if err != nil {
		return nil, oops.In("native").With("path", path).Hint("built with a different toolchain or dependency set?").Wrap(err)
	}
	sym, err := lib.Lookup(Symbol)
	if err != nil {
		return nil, oops.In("native").With("path", path).With("symbol", Symbol).Wrap(err)
	}

	var decl *mod.Unit
	switch s := sym.(type) {
	case **mod.Unit:
		if s != nil {
			decl = *s
		}
	case *mod.Unit:
		decl = s
	case func() *mod.Unit:
		decl = s()
	case *func() *mod.Unit:
		decl = (*s)()
	default:
		return nil, oops.In("native").
			With("path", path).
			With("symbol", Symbol).
			Errorf("symbol %s has type %T, want *mod.Unit or func() *mod.Unit", Symbol, sym)
	}
	if decl == nil {
		return nil, oops.In("native").With("path", path).Errorf("symbol %s is nil", Symbol)
	}
	if env.Logger != nil {
		env.Logger.Debug("native mod opened", "path", path, "name", decl.Name)
	}
	return &unit{decl: decl}, nil
}

// unit adapts a mod.Unit declaration.
type unit struct {
	decl *mod.Unit
}

func (u *unit) Name() string                { return u.decl.Name }
func (u *unit) API() string                 { return u.decl.API }
func (u *unit) Entries() []mod.Constructor  { return u.decl.Entries }
func (u *unit) InitHooks() []mod.InitHook   { return u.decl.Init }
func (u *unit) Listeners() []event.Listener { return u.decl.Listeners }
func (u *unit) Close() error                { return nil }
