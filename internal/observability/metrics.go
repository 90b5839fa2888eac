// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/towgame/tow/internal/modloader"
	"github.com/towgame/tow/pkg/event"
)

var (
	_ event.Observer    = (*Metrics)(nil)
	_ modloader.Metrics = (*Metrics)(nil)
)

// Metrics holds the bus and mod loader counters.
type Metrics struct {
	EventsPublished  *prometheus.CounterVec
	Deliveries       *prometheus.CounterVec
	ListenerFailures *prometheus.CounterVec
	ModsLoaded       *prometheus.CounterVec
	ModsFailed       *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tow_events_published_total",
				Help: "Total number of published events by event name",
			},
			[]string{"event"},
		),
		Deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tow_listener_deliveries_total",
				Help: "Total number of listener invocations that returned normally",
			},
			[]string{"event", "priority"},
		),
		ListenerFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tow_listener_failures_total",
				Help: "Total number of listener invocations that panicked",
			},
			[]string{"event"},
		),
		ModsLoaded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tow_mods_loaded_total",
				Help: "Total number of mods loaded by backend",
			},
			[]string{"backend"},
		),
		ModsFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tow_mods_failed_total",
				Help: "Total number of mod failures by backend and load stage",
			},
			[]string{"backend", "stage"},
		),
	}

	reg.MustRegister(m.EventsPublished)
	reg.MustRegister(m.Deliveries)
	reg.MustRegister(m.ListenerFailures)
	reg.MustRegister(m.ModsLoaded)
	reg.MustRegister(m.ModsFailed)

	return m
}

// Published implements event.Observer.
func (m *Metrics) Published(name string) {
	m.EventsPublished.WithLabelValues(name).Inc()
}

// Delivered implements event.Observer.
func (m *Metrics) Delivered(name string, p event.Priority) {
	m.Deliveries.WithLabelValues(name, p.String()).Inc()
}

// ListenerFailed implements event.Observer. The listener name is left out
// of the labels to bound cardinality; it is in the log record.
func (m *Metrics) ListenerFailed(name, _ string) {
	m.ListenerFailures.WithLabelValues(name).Inc()
}

// UnitLoaded implements modloader.Metrics.
func (m *Metrics) UnitLoaded(backend string) {
	m.ModsLoaded.WithLabelValues(backend).Inc()
}

// UnitFailed implements modloader.Metrics.
func (m *Metrics) UnitFailed(backend string, stage modloader.Stage) {
	m.ModsFailed.WithLabelValues(backend, string(stage)).Inc()
}
