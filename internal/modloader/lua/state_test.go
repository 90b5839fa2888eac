// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

package lua_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	modlua "github.com/towgame/tow/internal/modloader/lua"
)

func newState(t *testing.T) *lua.LState {
	t.Helper()
	L, err := modlua.NewStateFactory().NewState(context.Background())
	require.NoError(t, err)
	t.Cleanup(L.Close)
	return L
}

func TestStateFactory_SafeLibrariesOnly(t *testing.T) {
	L := newState(t)

	for _, lib := range []string{"table", "string", "math"} {
		assert.NotEqual(t, lua.LTNil, L.GetGlobal(lib).Type(), "library %q not loaded", lib)
	}
	for _, lib := range []string{"os", "io", "debug", "package"} {
		assert.Equal(t, lua.LTNil, L.GetGlobal(lib).Type(), "unsafe library %q loaded", lib)
	}
	for _, fn := range []string{"dofile", "loadfile", "loadstring", "load", "require"} {
		assert.Equal(t, lua.LTNil, L.GetGlobal(fn).Type(), "unsafe function %q reachable", fn)
	}
}

func TestStateFactory_RunsScripts(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{"arithmetic", `result = 1 + 1`, "2"},
		{"string", `result = string.upper("tank")`, "TANK"},
		{"table", `local t = {3, 1, 2}; table.sort(t); result = t[1]`, "1"},
		{"math", `result = math.abs(-42)`, "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			L := newState(t)
			require.NoError(t, L.DoString(tt.code))
			assert.Equal(t, tt.want, L.GetGlobal("result").String())
		})
	}
}

func TestStateFactory_StatesAreIndependent(t *testing.T) {
	L1 := newState(t)
	L2 := newState(t)

	require.NoError(t, L1.DoString(`foo = "bar"`))

	assert.Equal(t, lua.LTNil, L2.GetGlobal("foo").Type())
}

func TestStateFactory_ContextStopsRunawayScript(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	L, err := modlua.NewStateFactory().NewState(ctx)
	require.NoError(t, err)
	defer L.Close()
	cancel()

	assert.Error(t, L.DoString(`while true do end`))
}
