// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

package event_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/towgame/tow/pkg/errutil"
	"github.com/towgame/tow/pkg/event"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	reg := event.NewRegistry()
	require.NoError(t, event.Register[*movedEvent](reg, "tank.moved"))
	require.NoError(t, event.Register[tankEvent](reg, "tank"))

	got, err := reg.Lookup("tank.moved")
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeFor[*movedEvent](), got)

	name, ok := reg.NameOf(reflect.TypeFor[tankEvent]())
	assert.True(t, ok)
	assert.Equal(t, "tank", name)

	assert.Equal(t, []string{"tank", "tank.moved"}, reg.Names())
}

func TestRegistry_ReRegisterSamePairIsAllowed(t *testing.T) {
	reg := event.NewRegistry()
	require.NoError(t, event.Register[*movedEvent](reg, "tank.moved"))
	assert.NoError(t, event.Register[*movedEvent](reg, "tank.moved"))
}

func TestRegistry_Conflicts(t *testing.T) {
	tests := []struct {
		name     string
		register func(*event.Registry) error
	}{
		{"empty name", func(r *event.Registry) error { return event.Register[*plainEvent](r, "") }},
		{"name reused", func(r *event.Registry) error { return event.Register[*rotatedEvent](r, "tank.moved") }},
		{"type renamed", func(r *event.Registry) error { return event.Register[*movedEvent](r, "tank.other") }},
		{"not an event", func(r *event.Registry) error { return r.Register("int", reflect.TypeFor[int]()) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := event.NewRegistry()
			require.NoError(t, event.Register[*movedEvent](reg, "tank.moved"))

			err := tt.register(reg)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "EVENT_REGISTRY_CONFLICT")
		})
	}
}

func TestRegistry_LookupUnknown(t *testing.T) {
	reg := event.NewRegistry()

	_, err := reg.Lookup("nope")

	require.Error(t, err)
	assert.True(t, errors.Is(err, event.ErrUnknownEvent))
	errutil.AssertErrorContext(t, err, "name", "nope")
}

func TestMustRegister_PanicsOnConflict(t *testing.T) {
	reg := event.NewRegistry()
	event.MustRegister[*movedEvent](reg, "tank.moved")

	assert.Panics(t, func() { event.MustRegister[*rotatedEvent](reg, "tank.moved") })
}
