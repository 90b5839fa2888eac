// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

// Package lua loads .lua mods, each into its own sandboxed gopher-lua state.
//
// A script declares itself through the global mod table:
//
//	mod.name("tank-tweaks")
//	mod.api("^1.0")
//	mod.init(function() mod.log("info", "booting") end)
//	mod.entry(function()
//		return { attach = function(self) mod.log("info", "attached") end }
//	end)
//	mod.listen("tank.moved", "high", function(ev)
//		if ev.X > 100 then ev:cancel() end
//	end)
package lua

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"time"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/towgame/tow/internal/modloader"
	"github.com/towgame/tow/pkg/errutil"
	"github.com/towgame/tow/pkg/event"
	"github.com/towgame/tow/pkg/mod"
)

// DefaultLoadTimeout bounds each load-time run of script code: the top
// level, every init hook, entry constructor and attach or detach method.
const DefaultLoadTimeout = 5 * time.Second

var _ modloader.Opener = (*Opener)(nil)

// Opener loads .lua artifacts.
type Opener struct {
	factory     *StateFactory
	loadTimeout time.Duration
}

// OpenerOption configures the Opener.
type OpenerOption func(*Opener)

// WithLoadTimeout sets the per-call bound on load-time script code.
func WithLoadTimeout(d time.Duration) OpenerOption {
	return func(o *Opener) {
		if d > 0 {
			o.loadTimeout = d
		}
	}
}

// NewOpener creates a Lua opener.
func NewOpener(opts ...OpenerOption) *Opener {
	o := &Opener{
		factory:     NewStateFactory(),
		loadTimeout: DefaultLoadTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Backend implements modloader.Opener.
func (o *Opener) Backend() string { return "lua" }

// Extension implements modloader.Opener.
func (o *Opener) Extension() string { return ".lua" }

// Open runs the script's top level in a fresh state. The state is kept as
// the unit's isolation context until Close.
func (o *Opener) Open(ctx context.Context, path string, env modloader.Env) (modloader.OpenedUnit, error) {
	code, err := os.ReadFile(path) //nolint:gosec // path comes from the mods directory listing
	if err != nil {
		return nil, oops.In("lua").With("path", path).Hint("failed to read script").Wrap(err)
	}

	loadCtx, cancel := context.WithTimeout(ctx, o.loadTimeout)
	defer cancel()

	L, err := o.factory.NewState(loadCtx)
	if err != nil {
		return nil, err
	}

	u := &unit{L: L, registry: env.Registry, logger: env.Logger, timeout: o.loadTimeout}
	if u.logger == nil {
		u.logger = slog.Default()
	}
	u.install()

	if err := L.DoString(string(code)); err != nil {
		L.Close()
		return nil, oops.In("lua").With("path", path).Hint("script failed to load").Wrap(err)
	}
	L.RemoveContext()
	return u, nil
}

// unit is one loaded script.
type unit struct {
	L        *lua.LState
	registry *event.Registry
	logger   *slog.Logger
	timeout  time.Duration

	name      string
	api       string
	ctors     []mod.Constructor
	hooks     []mod.InitHook
	listeners []event.Listener
}

func (u *unit) Name() string                { return u.name }
func (u *unit) API() string                 { return u.api }
func (u *unit) Entries() []mod.Constructor  { return u.ctors }
func (u *unit) InitHooks() []mod.InitHook   { return u.hooks }
func (u *unit) Listeners() []event.Listener { return u.listeners }

func (u *unit) Close() error {
	if u.L != nil && !u.L.IsClosed() {
		u.L.Close()
	}
	return nil
}

// install publishes the mod table into the state.
func (u *unit) install() {
	t := u.L.SetFuncs(u.L.NewTable(), map[string]lua.LGFunction{
		"name":   u.luaName,
		"api":    u.luaAPI,
		"entry":  u.luaEntry,
		"init":   u.luaInit,
		"listen": u.luaListen,
		"log":    u.luaLog,
	})
	u.L.SetGlobal("mod", t)
}

func (u *unit) luaName(L *lua.LState) int {
	u.name = L.CheckString(1)
	return 0
}

func (u *unit) luaAPI(L *lua.LState) int {
	u.api = L.CheckString(1)
	return 0
}

func (u *unit) luaEntry(L *lua.LState) int {
	fn := L.CheckFunction(1)
	u.ctors = append(u.ctors, func() (mod.Entry, error) {
		if err := u.boundedCall(fn, 1); err != nil {
			return nil, err
		}
		ret := u.L.Get(-1)
		u.L.Pop(1)
		t, ok := ret.(*lua.LTable)
		if !ok {
			return nil, oops.In("lua").With("mod", u.name).Errorf("entry constructor returned %s, want table", ret.Type())
		}
		return &entry{unit: u, self: t}, nil
	})
	return 0
}

func (u *unit) luaInit(L *lua.LState) int {
	fn := L.CheckFunction(1)
	u.hooks = append(u.hooks, func() error {
		return u.boundedCall(fn, 0)
	})
	return 0
}

// luaListen handles mod.listen(event, [priority], fn).
func (u *unit) luaListen(L *lua.LState) int {
	name := L.CheckString(1)
	priority := event.PriorityNormal
	fnIdx := 2
	if L.GetTop() >= 3 {
		p, err := event.ParsePriority(L.CheckString(2))
		if err != nil {
			L.ArgError(2, err.Error())
			return 0
		}
		priority = p
		fnIdx = 3
	}
	fn := L.CheckFunction(fnIdx)

	if u.registry == nil {
		L.RaiseError("no event registry available")
		return 0
	}
	key, err := u.registry.Lookup(name)
	if err != nil {
		L.ArgError(1, err.Error())
		return 0
	}

	id := fmt.Sprintf("%s#%d", name, len(u.listeners)+1)
	u.listeners = append(u.listeners, event.Adapt(key, func(e event.Event) {
		u.deliver(id, fn, e)
	}, event.WithPriority(priority), event.WithName(id)))
	return 0
}

func (u *unit) luaLog(L *lua.LState) int {
	level := L.CheckString(1)
	msg := L.CheckString(2)
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	u.logger.Log(context.Background(), lvl, msg)
	return 0
}

// deliver calls a script listener. Script errors are logged and contained.
func (u *unit) deliver(id string, fn *lua.LFunction, e event.Event) {
	name := reflect.TypeOf(e).String()
	if n, ok := u.registry.NameOf(reflect.TypeOf(e)); ok {
		name = n
	}
	t, err := eventTable(u.L, name, e)
	if err != nil {
		errutil.LogWarn(u.logger, "event cannot be passed to script", err, "listener", id)
		return
	}
	if err := u.call(fn, 0, t); err != nil {
		errutil.LogWarn(u.logger, "script listener failed", err, "listener", id)
		return
	}
	applyLatches(t, e)
}

// call invokes fn in protected mode, leaving nret results on the stack.
// boundedCall is call under the load timeout. The state has no context
// outside it, so listener delivery stays unbounded.
func (u *unit) boundedCall(fn *lua.LFunction, nret int, args ...lua.LValue) error {
	if u.L.IsClosed() {
		return u.call(fn, nret, args...)
	}
	ctx, cancel := context.WithTimeout(context.Background(), u.timeout)
	u.L.SetContext(ctx)
	defer func() {
		u.L.RemoveContext()
		cancel()
	}()
	return u.call(fn, nret, args...)
}

func (u *unit) call(fn *lua.LFunction, nret int, args ...lua.LValue) error {
	if u.L.IsClosed() {
		return oops.In("lua").With("mod", u.name).Errorf("state is closed")
	}
	if err := u.L.CallByParam(lua.P{Fn: fn, NRet: nret, Protect: true}, args...); err != nil {
		return oops.In("lua").With("mod", u.name).Wrap(err)
	}
	return nil
}

// entry is a script entry object.
type entry struct {
	unit *unit
	self *lua.LTable
}

// Attach calls self:attach() when defined.
func (e *entry) Attach(mod.Host) error {
	return e.method("attach")
}

// Detach calls self:detach() when defined. Errors are logged.
func (e *entry) Detach() {
	if err := e.method("detach"); err != nil {
		errutil.LogWarn(e.unit.logger, "script detach failed", err)
	}
}

func (e *entry) method(name string) error {
	fn, ok := e.self.RawGetString(name).(*lua.LFunction)
	if !ok {
		return nil
	}
	return e.unit.boundedCall(fn, 0, e.self)
}
