// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

package event

import (
	"log/slog"
	"reflect"
	"runtime/debug"
)

// dispatchEnv is shared by a bus and all of its hubs.
type dispatchEnv struct {
	logger   *slog.Logger
	observer Observer
	registry *Registry
}

func defaultEnv() *dispatchEnv {
	return &dispatchEnv{
		logger:   slog.Default(),
		observer: nopObserver{},
	}
}

func (d *dispatchEnv) nameOf(t reflect.Type) string {
	if d.registry != nil {
		if name, ok := d.registry.NameOf(t); ok {
			return name
		}
	}
	return t.String()
}

type entry struct {
	listener Listener
	removed  bool
}

// Token is returned by Subscribe and removes exactly one listener.
type Token struct {
	hub   *Hub
	entry *entry
}

// Unsubscribe removes the listener. Calling it more than once is a no-op.
func (t *Token) Unsubscribe() {
	if t == nil || t.hub == nil {
		return
	}
	t.hub.Unsubscribe(t)
}

// Active reports whether the listener is still registered.
func (t *Token) Active() bool {
	return t != nil && t.entry != nil && !t.entry.removed
}

// Hub delivers events of one key to its listeners in priority order.
type Hub struct {
	key     reflect.Type
	buckets [priorityCount][]*entry
	env     *dispatchEnv
}

// NewHub creates a standalone hub for key. Hubs created by a Bus share the
// bus logger and observer instead.
func NewHub(key reflect.Type) *Hub {
	return newHub(key, defaultEnv())
}

func newHub(key reflect.Type, env *dispatchEnv) *Hub {
	return &Hub{key: key, env: env}
}

// Key returns the event type this hub is registered under.
func (h *Hub) Key() reflect.Type {
	return h.key
}

// Subscribe appends the listener to its priority bucket. An invalid priority
// falls back to PriorityNormal. Subscribing during a publish takes effect
// from the next publish.
func (h *Hub) Subscribe(l Listener) *Token {
	if !l.Priority.Valid() {
		l.Priority = PriorityNormal
	}
	e := &entry{listener: l}
	h.buckets[l.Priority] = append(h.buckets[l.Priority], e)
	return &Token{hub: h, entry: e}
}

// Unsubscribe removes the token's listener. Tokens from another hub, tokens
// already removed and tokens invalidated by Reset are ignored.
func (h *Hub) Unsubscribe(t *Token) {
	if t == nil || t.hub != h || t.entry == nil || t.entry.removed {
		return
	}
	t.entry.removed = true

	p := t.entry.listener.Priority
	bucket := h.buckets[p]
	for i, e := range bucket {
		if e != t.entry {
			continue
		}
		// Copy so a publish iterating the old slice is not disturbed.
		next := make([]*entry, 0, len(bucket)-1)
		next = append(next, bucket[:i]...)
		next = append(next, bucket[i+1:]...)
		h.buckets[p] = next
		return
	}
}

// Reset discards every listener. Outstanding tokens become no-ops.
func (h *Hub) Reset() {
	for p := range h.buckets {
		for _, e := range h.buckets[p] {
			e.removed = true
		}
		h.buckets[p] = nil
	}
}

// Len returns the number of live listeners.
func (h *Hub) Len() int {
	n := 0
	for _, bucket := range h.buckets {
		n += len(bucket)
	}
	return n
}

// Publish delivers e to every live listener, lowest priority first and in
// subscription order within a priority. Cancelling does not stop delivery.
func (h *Hub) Publish(e Event) {
	if isNilEvent(e) {
		return
	}
	dispatch([]*Hub{h}, e, h.env.nameOf(reflect.TypeOf(e)))
}

// dispatch delivers e across hubs one priority at a time, visiting hubs in
// the given order within each priority. Buckets are captured up front, so
// listeners added during the call are not invoked by it.
func dispatch(hubs []*Hub, e Event, name string) {
	snaps := make([][priorityCount][]*entry, len(hubs))
	for i, h := range hubs {
		snaps[i] = h.buckets
	}
	cancellable, _ := e.(CancellableEvent)
	for p := range priorityCount {
		for i, h := range hubs {
			h.deliver(Priority(p), snaps[i][p], e, name, cancellable)
		}
	}
}

func (h *Hub) deliver(p Priority, bucket []*entry, e Event, name string, cancellable CancellableEvent) {
	for _, en := range bucket {
		if en.removed || en.listener.Call == nil {
			continue
		}
		if p == PriorityMonitor && cancellable != nil && !cancellable.IsCancelled() {
			h.invoke(en, e, name)
			if cancellable.IsCancelled() {
				h.env.logger.Warn("monitor listener cancelled event",
					"event", name,
					"listener", en.listener.Name)
			}
			continue
		}
		h.invoke(en, e, name)
	}
}

// invoke runs one listener. A panicking listener is logged and skipped; the
// rest of the publish continues.
func (h *Hub) invoke(en *entry, e Event, name string) {
	defer func() {
		if r := recover(); r != nil {
			h.env.observer.ListenerFailed(name, en.listener.Name)
			h.env.logger.Error("event listener panicked",
				"event", name,
				"listener", en.listener.Name,
				"priority", en.listener.Priority.String(),
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	en.listener.Call(e)
	h.env.observer.Delivered(name, en.listener.Priority)
}

func isNilEvent(e Event) bool {
	if e == nil {
		return true
	}
	v := reflect.ValueOf(e)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
