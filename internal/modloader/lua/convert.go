// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

package lua

import (
	"encoding/json"
	"sort"

	lua "github.com/yuin/gopher-lua"

	"github.com/towgame/tow/pkg/event"
)

// eventTable builds the table a script listener sees: the event's exported
// fields (via their JSON form) plus name, cancelled, handled and the
// cancel/handle methods, which write through to the Go event.
func eventTable(L *lua.LState, name string, e event.Event) (*lua.LTable, error) {
	t := L.NewTable()

	raw, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err == nil {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			L.SetField(t, k, toLValue(L, fields[k]))
		}
	}

	L.SetField(t, "name", lua.LString(name))
	if c, ok := e.(event.CancellableEvent); ok {
		L.SetField(t, "cancelled", lua.LBool(c.IsCancelled()))
		L.SetField(t, "cancel", L.NewFunction(func(L *lua.LState) int {
			c.Cancel()
			L.SetField(t, "cancelled", lua.LTrue)
			return 0
		}))
	}
	if h, ok := e.(event.HandleableEvent); ok {
		L.SetField(t, "handled", lua.LBool(h.IsHandled()))
		L.SetField(t, "handle", L.NewFunction(func(L *lua.LState) int {
			h.Handle()
			L.SetField(t, "handled", lua.LTrue)
			return 0
		}))
	}
	return t, nil
}

// applyLatches honours scripts that set ev.cancelled or ev.handled directly
// instead of calling the methods.
func applyLatches(t *lua.LTable, e event.Event) {
	if c, ok := e.(event.CancellableEvent); ok && lua.LVAsBool(t.RawGetString("cancelled")) {
		c.Cancel()
	}
	if h, ok := e.(event.HandleableEvent); ok && lua.LVAsBool(t.RawGetString("handled")) {
		h.Handle()
	}
}

// toLValue converts a decoded JSON value.
func toLValue(L *lua.LState, v any) lua.LValue {
	switch v := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(v)
	case float64:
		return lua.LNumber(v)
	case string:
		return lua.LString(v)
	case []any:
		t := L.CreateTable(len(v), 0)
		for _, item := range v {
			t.Append(toLValue(L, item))
		}
		return t
	case map[string]any:
		t := L.CreateTable(0, len(v))
		for k, item := range v {
			t.RawSetString(k, toLValue(L, item))
		}
		return t
	default:
		return lua.LNil
	}
}
