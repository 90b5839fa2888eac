// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

package event_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/towgame/tow/pkg/errutil"
	"github.com/towgame/tow/pkg/event"
)

func onMovedLowest(*movedEvent)  {}
func onMovedDefault(*movedEvent) {}

func TestScan_OrderAndQualifiedNames(t *testing.T) {
	host := event.NewCatalog("host").
		Add(event.On(onMovedLowest, event.WithPriority(event.PriorityLowest))).
		Add(event.On(onMovedDefault))
	mod := event.Source{
		Name: "example",
		Listeners: []event.Listener{
			event.On(func(*plainEvent) {}, event.WithName("plain")),
		},
	}

	accepted, rejected := event.Scan(host.Source(), mod)

	require.Empty(t, rejected)
	require.Len(t, accepted, 3)
	assert.Equal(t, "host:github.com/towgame/tow/pkg/event_test.onMovedLowest", accepted[0].Name)
	assert.Equal(t, event.PriorityLowest, accepted[0].Priority)
	assert.Equal(t, event.PriorityNormal, accepted[1].Priority)
	assert.Equal(t, "example:plain", accepted[2].Name)
	assert.Equal(t, reflect.TypeFor[*plainEvent](), accepted[2].Key)
}

func TestScan_RejectsIneligibleRecords(t *testing.T) {
	src := event.Source{
		Name: "bad",
		Listeners: []event.Listener{
			{Name: "no-callback", Key: reflect.TypeFor[*plainEvent]()},
			{Name: "no-key", Call: func(event.Event) {}},
			{Name: "not-event", Key: reflect.TypeFor[string](), Call: func(event.Event) {}},
			event.On(func(*plainEvent) {}, event.WithName("bad-priority"), event.WithPriority(event.Priority(-1))),
			event.On(func(*plainEvent) {}, event.WithName("good")),
		},
	}

	accepted, rejected := event.Scan(src)

	require.Len(t, accepted, 1)
	assert.Equal(t, "bad:good", accepted[0].Name)
	require.Len(t, rejected, 4)
	for _, r := range rejected {
		assert.Equal(t, "bad", r.Source)
		errutil.AssertErrorCode(t, r.Err, "EVENT_LISTENER_INVALID")
	}
}

func TestScan_IsDeterministic(t *testing.T) {
	build := func() []event.Source {
		return []event.Source{
			event.NewCatalog("a").Add(event.On(onMovedDefault), event.On(onMovedLowest)).Source(),
			event.NewCatalog("b").Add(event.On(onMovedDefault)).Source(),
		}
	}

	first, _ := event.Scan(build()...)
	second, _ := event.Scan(build()...)

	names := func(ls []event.Listener) []string {
		out := make([]string, len(ls))
		for i, l := range ls {
			out[i] = l.Name
		}
		return out
	}
	assert.Equal(t, names(first), names(second))
}

func TestCatalog_SourceIsSnapshot(t *testing.T) {
	c := event.NewCatalog("host").Add(event.On(onMovedDefault))
	src := c.Source()
	c.Add(event.On(onMovedLowest))

	assert.Len(t, src.Listeners, 1)
	assert.Len(t, c.Source().Listeners, 2)
}

func TestAdapt(t *testing.T) {
	var got event.Event
	l := event.Adapt(reflect.TypeFor[*plainEvent](), func(e event.Event) { got = e },
		event.WithPriority(event.PriorityHigh), event.WithName("script"))

	require.NoError(t, l.Validate())
	e := &plainEvent{N: 3}
	l.Call(e)

	assert.Same(t, e, got)
	assert.Equal(t, event.PriorityHigh, l.Priority)
}
