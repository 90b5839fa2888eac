// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

// Package event provides a typed, priority-ordered publish/subscribe bus.
//
// Every concrete type implementing Event is a routing key. Listeners are
// grouped per key into a Hub and fire in ascending Priority order, then in
// subscription order. Capability interfaces that embed Event (for example a
// "tank event" interface satisfied by several concrete events) are valid keys
// too: with base-event routing enabled, publishing a concrete event reaches
// every hub whose key the event's runtime type is assignable to.
//
// The bus is single-threaded by contract. Subscribe, Unsubscribe, Reset and
// Publish must all be called from the host's cooperative loop.
package event

// Event is the marker implemented by everything published on a Bus.
type Event interface {
	isEvent()
}

// Base is embedded by event types to implement Event.
type Base struct{}

func (Base) isEvent() {}

// CancellableEvent carries a one-way cancelled flag that downstream code may
// consult to suppress a default action.
type CancellableEvent interface {
	Event
	Cancel()
	IsCancelled() bool
}

// Cancellable is embedded by event types to implement CancellableEvent.
// Events embedding it must be published by pointer so the latch is shared.
// A type embedding both Cancellable and Handleable must also embed Base.
type Cancellable struct {
	Base
	cancelled bool
}

// Cancel latches the event as cancelled. It cannot be undone.
func (c *Cancellable) Cancel() { c.cancelled = true }

// IsCancelled reports whether any listener cancelled the event.
func (c *Cancellable) IsCancelled() bool { return c.cancelled }

// HandleableEvent carries a one-way handled flag, used when a listener takes
// over an action the host would otherwise perform.
type HandleableEvent interface {
	Event
	Handle()
	IsHandled() bool
}

// Handleable is embedded by event types to implement HandleableEvent.
type Handleable struct {
	Base
	handled bool
}

// Handle latches the event as handled.
func (h *Handleable) Handle() { h.handled = true }

// IsHandled reports whether any listener handled the event.
func (h *Handleable) IsHandled() bool { return h.handled }
