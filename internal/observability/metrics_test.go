// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

package observability

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/towgame/tow/internal/modloader"
	"github.com/towgame/tow/pkg/event"
)

type shotEvent struct {
	event.Cancellable
}

func TestMetrics_ObservesBus(t *testing.T) {
	server := NewServer("", nil)
	reg := event.NewRegistry()
	event.MustRegister[*shotEvent](reg, "tank.shot")
	bus := event.New(event.WithRegistry(reg), event.WithObserver(server.Metrics()))
	event.Subscribe(bus, func(*shotEvent) {}, event.WithPriority(event.PriorityHigh))
	event.Subscribe(bus, func(*shotEvent) { panic("jammed") }, event.WithName("jammer"))

	bus.Publish(&shotEvent{})
	bus.Publish(&shotEvent{})

	code, body := get(t, server.Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `tow_events_published_total{event="tank.shot"} 2`)
	assert.Contains(t, body, `tow_listener_deliveries_total{event="tank.shot",priority="high"} 2`)
	assert.Contains(t, body, `tow_listener_failures_total{event="tank.shot"} 2`)
}

func TestMetrics_ObservesLoader(t *testing.T) {
	server := NewServer("", nil)
	m := server.Metrics()

	m.UnitLoaded("lua")
	m.UnitLoaded("lua")
	m.UnitFailed("native", modloader.StageResolve)

	_, body := get(t, server.Handler(), "/metrics")
	assert.Contains(t, body, `tow_mods_loaded_total{backend="lua"} 2`)
	assert.Contains(t, body, `tow_mods_failed_total{backend="native",stage="resolve"} 1`)
}
