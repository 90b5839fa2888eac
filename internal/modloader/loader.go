// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

// Package modloader discovers mod artifacts, loads each into its own
// isolation context and boots its entry and eager-init hooks.
//
// A failure in one artifact is logged and recorded; it never aborts the load
// pass.
package modloader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/gobwas/glob"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.uber.org/multierr"

	"github.com/towgame/tow/internal/logging"
	"github.com/towgame/tow/pkg/errutil"
	"github.com/towgame/tow/pkg/event"
	"github.com/towgame/tow/pkg/mod"
)

// UnitID is a handle into the loader's arena of units. It stays valid for
// the lifetime of the Loader.
type UnitID int

// UnitInfo describes one unit for diagnostics.
type UnitInfo struct {
	ID       UnitID
	Artifact string
	Name     string
	Backend  string
	State    State
	HasEntry bool
}

// Failure records why an artifact was skipped or lost its entry.
type Failure struct {
	Artifact string
	Stage    Stage
	Err      error
}

// Report summarises one load pass.
type Report struct {
	PassID     ulid.ULID
	Discovered int
	Loaded     int
	Attached   int
	Failures   []Failure
}

type unit struct {
	id       UnitID
	artifact string
	backend  string
	name     string
	state    State
	opened   OpenedUnit
	entry    mod.Entry
}

func (u *unit) info() UnitInfo {
	return UnitInfo{
		ID:       u.id,
		Artifact: u.artifact,
		Name:     u.name,
		Backend:  u.backend,
		State:    u.state,
		HasEntry: u.entry != nil,
	}
}

// Loader owns every loaded unit and its isolation context. It is used from
// a single goroutine.
type Loader struct {
	dir      string
	host     mod.Host
	openers  map[string]Opener
	ignore   []glob.Glob
	registry *event.Registry
	logger   *slog.Logger
	metrics  Metrics
	api      *semver.Version

	units    []*unit
	byPath   map[string]UnitID
	byName   map[string]UnitID
	failures []Failure
}

// Option configures the Loader.
type Option func(*Loader)

// WithLogger sets the loader logger.
func WithLogger(l *slog.Logger) Option {
	return func(ld *Loader) {
		if l != nil {
			ld.logger = l
		}
	}
}

// WithOpeners registers backends. A later opener for the same extension
// replaces an earlier one.
func WithOpeners(openers ...Opener) Option {
	return func(ld *Loader) {
		for _, o := range openers {
			ld.openers[o.Extension()] = o
		}
	}
}

// WithIgnore skips artifacts whose file name matches any pattern.
func WithIgnore(patterns ...glob.Glob) Option {
	return func(ld *Loader) {
		ld.ignore = append(ld.ignore, patterns...)
	}
}

// WithRegistry sets the event name registry handed to backends.
func WithRegistry(r *event.Registry) Option {
	return func(ld *Loader) {
		ld.registry = r
	}
}

// WithMetrics installs load pass metrics.
func WithMetrics(m Metrics) Option {
	return func(ld *Loader) {
		if m != nil {
			ld.metrics = m
		}
	}
}

// CompileIgnore compiles file name glob patterns for WithIgnore.
func CompileIgnore(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, oops.Code("CONFIG_INVALID").
				With("pattern", p).
				Wrapf(err, "invalid ignore pattern")
		}
		globs = append(globs, g)
	}
	return globs, nil
}

// New creates a loader for dir. Entries are attached to host.
func New(dir string, host mod.Host, opts ...Option) *Loader {
	ld := &Loader{
		dir:     dir,
		host:    host,
		openers: make(map[string]Opener),
		logger:  slog.Default(),
		metrics: nopMetrics{},
		api:     semver.MustParse(mod.APIVersion),
		byPath:  make(map[string]UnitID),
		byName:  make(map[string]UnitID),
	}
	for _, opt := range opts {
		opt(ld)
	}
	if ld.registry == nil && host != nil {
		ld.registry = host.Events()
	}
	return ld
}

// Dir returns the directory scanned for artifacts.
func (l *Loader) Dir() string {
	return l.dir
}

// Discover lists loadable artifacts in the mods directory, sorted by name.
// The scan is not recursive. A missing directory yields no artifacts.
func (l *Loader) Discover(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, oops.Code("MOD_DIR_UNREADABLE").
			With("dir", l.dir).
			Wrapf(err, "read mods directory")
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if _, ok := l.openers[filepath.Ext(name)]; !ok {
			continue
		}
		if l.ignored(name) {
			l.logger.Debug("ignoring mod artifact", "artifact", name)
			continue
		}
		paths = append(paths, filepath.Join(l.dir, name))
	}
	slices.Sort(paths)
	return paths, nil
}

func (l *Loader) ignored(name string) bool {
	for _, g := range l.ignore {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// LoadAll runs one load pass over the mods directory. Per-artifact failures
// are logged, recorded in the report and skipped; the error is non-nil only
// when the directory cannot be read or ctx is done.
func (l *Loader) LoadAll(ctx context.Context) (*Report, error) {
	paths, err := l.Discover(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{PassID: ulid.Make(), Discovered: len(paths)}
	logger := l.logger.With("pass", report.PassID.String())
	logger.Info("loading mods", "dir", l.dir, "artifacts", len(paths))

	firstFailure := len(l.failures)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return report, oops.With("pass", report.PassID.String()).Wrapf(err, "load pass interrupted")
		}
		if _, seen := l.byPath[path]; seen {
			logger.Debug("mod already loaded", "artifact", filepath.Base(path))
			continue
		}
		u := l.load(ctx, path)
		if !u.state.Failed() {
			report.Loaded++
		}
		if u.state == StateAttached {
			report.Attached++
		}
	}
	report.Failures = slices.Clone(l.failures[firstFailure:])

	logger.Info("mods loaded",
		"loaded", report.Loaded,
		"attached", report.Attached,
		"failed", len(report.Failures))
	return report, nil
}

// load drives one artifact through the state machine.
func (l *Loader) load(ctx context.Context, path string) *unit {
	artifact := filepath.Base(path)
	opener := l.openers[filepath.Ext(path)]
	u := &unit{
		id:       UnitID(len(l.units)),
		artifact: artifact,
		backend:  opener.Backend(),
		name:     strings.TrimSuffix(artifact, filepath.Ext(artifact)),
		state:    StateDiscovered,
	}
	l.units = append(l.units, u)
	l.byPath[path] = u.id

	env := Env{Registry: l.registry, Logger: logging.ForMod(l.logger, u.name)}
	var opened OpenedUnit
	err := guard(func() error {
		var err error
		opened, err = opener.Open(ctx, path, env)
		return err
	})
	if err == nil && opened == nil {
		err = oops.Errorf("opener returned no unit")
	}
	if err != nil {
		l.fail(u, StageOpen, StateLoadFailed, l.loadErr(u, StageOpen, err))
		return u
	}
	u.opened = opened
	u.state = StateLoaded
	if name := opened.Name(); name != "" {
		u.name = name
	}

	if err := l.checkAPI(opened.API()); err != nil {
		l.fail(u, StageAPI, StateLoadFailed, oops.Code("MOD_INCOMPATIBLE_API").
			With("artifact", artifact).
			With("stage", StageAPI).
			With("api", opened.API()).
			Wrapf(fmt.Errorf("%w: %w", ErrLoadFailed, err), "incompatible mod API"))
		return u
	}
	if prev, dup := l.byName[u.name]; dup {
		l.fail(u, StageOpen, StateLoadFailed, l.loadErr(u, StageOpen,
			fmt.Errorf("unit name %q already used by %s", u.name, l.units[prev].artifact)))
		return u
	}
	l.byName[u.name] = u.id

	ctors := opened.Entries()
	if len(ctors) > 1 {
		l.fail(u, StageResolve, StateTooManyEntries, oops.Code("MOD_TOO_MANY_ENTRIES").
			With("artifact", artifact).
			With("stage", StageResolve).
			With("entries", len(ctors)).
			Wrapf(ErrTooManyEntryPoints, "unit %s declares %d entries", u.name, len(ctors)))
		return u
	}

	var entry mod.Entry
	if len(ctors) == 1 {
		u.state = StateEntryResolved
		entry = l.instantiate(u, ctors[0])
	}

	if !l.runInit(u, opened.InitHooks()) {
		return u
	}

	if entry != nil {
		l.attach(u, entry)
	}
	l.metrics.UnitLoaded(u.backend)
	l.logger.Info("mod loaded",
		"artifact", artifact,
		"mod", u.name,
		"backend", u.backend,
		"state", u.state.String())
	return u
}

func (l *Loader) instantiate(u *unit, ctor mod.Constructor) mod.Entry {
	var entry mod.Entry
	err := guard(func() error {
		if ctor == nil {
			return oops.Errorf("nil constructor")
		}
		var err error
		entry, err = ctor()
		if err == nil && entry == nil {
			err = oops.Errorf("constructor returned no entry")
		}
		return err
	})
	if err != nil {
		l.record(u, StageInstantiate, oops.Code("MOD_INSTANTIATION_FAILED").
			With("artifact", u.artifact).
			With("stage", StageInstantiate).
			Wrapf(fmt.Errorf("%w: %w", ErrInstantiationFailed, err), "construct entry of %s", u.name))
		return nil
	}
	return entry
}

// runInit runs every eager-init hook once, in order. The first failing hook
// stops the unit's boot: later hooks and the attach are skipped, but the
// context stays loaded.
func (l *Loader) runInit(u *unit, hooks []mod.InitHook) bool {
	for i, hook := range hooks {
		if hook == nil {
			continue
		}
		if err := guard(hook); err != nil {
			l.record(u, StageInit, oops.Code("MOD_INIT_FAILED").
				With("artifact", u.artifact).
				With("stage", StageInit).
				With("hook", i).
				Wrapf(err, "init hook %d of %s", i, u.name))
			return false
		}
	}
	return true
}

func (l *Loader) attach(u *unit, entry mod.Entry) {
	host := &scopedHost{Host: l.host, logger: logging.ForMod(l.logger, u.name)}
	if err := guard(func() error { return entry.Attach(host) }); err != nil {
		l.record(u, StageAttach, oops.Code("MOD_ATTACH_FAILED").
			With("artifact", u.artifact).
			With("stage", StageAttach).
			Wrapf(err, "attach entry of %s", u.name))
		return
	}
	u.entry = entry
	u.state = StateAttached
}

func (l *Loader) checkAPI(constraint string) error {
	if strings.TrimSpace(constraint) == "" {
		return nil
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return oops.Wrapf(err, "parse constraint %q", constraint)
	}
	if ok, errs := c.Validate(l.api); !ok {
		return multierr.Combine(errs...)
	}
	return nil
}

func (l *Loader) loadErr(u *unit, stage Stage, err error) error {
	return oops.Code("MOD_LOAD_FAILED").
		With("artifact", u.artifact).
		With("stage", stage).
		Wrapf(fmt.Errorf("%w: %w", ErrLoadFailed, err), "load %s", u.artifact)
}

// fail skips the unit and tears down whatever context it had.
func (l *Loader) fail(u *unit, stage Stage, state State, err error) {
	u.state = state
	if u.opened != nil {
		if cerr := guard(u.opened.Close); cerr != nil {
			errutil.LogWarn(l.logger, "failed to close mod context", cerr, "artifact", u.artifact)
		}
		u.opened = nil
	}
	l.record(u, stage, err)
}

func (l *Loader) record(u *unit, stage Stage, err error) {
	l.failures = append(l.failures, Failure{Artifact: u.artifact, Stage: stage, Err: err})
	l.metrics.UnitFailed(u.backend, stage)
	errutil.LogError(l.logger, "mod failed", err,
		"artifact", u.artifact,
		"stage", string(stage))
}

// Start moves every attached unit to Running and returns how many there are.
func (l *Loader) Start() int {
	n := 0
	for _, u := range l.units {
		if u.state == StateAttached {
			u.state = StateRunning
			n++
		}
	}
	return n
}

// Unit returns the unit behind id.
func (l *Loader) Unit(id UnitID) (UnitInfo, bool) {
	if id < 0 || int(id) >= len(l.units) {
		return UnitInfo{}, false
	}
	return l.units[id].info(), true
}

// Units lists every unit with a live isolation context, in load order.
func (l *Loader) Units() []UnitInfo {
	var out []UnitInfo
	for _, u := range l.units {
		if u.opened != nil {
			out = append(out, u.info())
		}
	}
	return out
}

// Entries lists attached entries in load order.
func (l *Loader) Entries() []mod.Entry {
	var out []mod.Entry
	for _, u := range l.units {
		if u.entry != nil {
			out = append(out, u.entry)
		}
	}
	return out
}

// Failures lists every failure recorded by every load pass.
func (l *Loader) Failures() []Failure {
	return slices.Clone(l.failures)
}

// Listeners returns one listener source per live unit, in load order, for
// event.Scan.
func (l *Loader) Listeners() []event.Source {
	var out []event.Source
	for _, u := range l.units {
		if u.opened == nil {
			continue
		}
		var listeners []event.Listener
		if err := guard(func() error {
			listeners = u.opened.Listeners()
			return nil
		}); err != nil {
			errutil.LogError(l.logger, "failed to collect mod listeners", err, "artifact", u.artifact)
			continue
		}
		out = append(out, event.Source{Name: u.name, Listeners: listeners})
	}
	return out
}

// Close detaches every entry and tears down every isolation context in
// reverse load order.
func (l *Loader) Close() error {
	var errs error
	for i := len(l.units) - 1; i >= 0; i-- {
		u := l.units[i]
		if d, ok := u.entry.(mod.Detacher); ok {
			errs = multierr.Append(errs, guard(func() error {
				d.Detach()
				return nil
			}))
		}
		u.entry = nil
		if u.opened != nil {
			if err := guard(u.opened.Close); err != nil {
				errs = multierr.Append(errs, oops.With("artifact", u.artifact).Wrapf(err, "close mod"))
			}
			u.opened = nil
		}
	}
	return errs
}

// guard runs fn, converting a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = oops.With("stack", string(debug.Stack())).Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// scopedHost hands an entry a logger tagged with its mod name.
type scopedHost struct {
	mod.Host
	logger *slog.Logger
}

func (h *scopedHost) Logger() *slog.Logger {
	return h.logger
}
