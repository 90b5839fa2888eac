// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

package event

import (
	"log/slog"
	"reflect"

	lru "github.com/hashicorp/golang-lru/v2"
)

// defaultRouteCacheSize bounds the number of concrete event types whose
// base-event routes are remembered.
const defaultRouteCacheSize = 256

// Bus routes subscriptions and publications to one Hub per event key.
type Bus struct {
	includeBase bool
	hubs        map[reflect.Type]*Hub
	order       []*Hub
	routes      *lru.Cache[reflect.Type, []*Hub]
	routeSize   int
	env         *dispatchEnv
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used for listener faults.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.env.logger = l
		}
	}
}

// WithObserver installs metrics hooks.
func WithObserver(o Observer) Option {
	return func(b *Bus) {
		if o != nil {
			b.env.observer = o
		}
	}
}

// WithRegistry sets the registry used to name events in logs and metrics.
func WithRegistry(r *Registry) Option {
	return func(b *Bus) {
		b.env.registry = r
	}
}

// WithBaseEvents enables or disables base-event routing. It is enabled by
// default.
func WithBaseEvents(enabled bool) Option {
	return func(b *Bus) {
		b.includeBase = enabled
	}
}

// WithRouteCacheSize bounds the base-event route cache.
func WithRouteCacheSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.routeSize = n
		}
	}
}

// New creates a bus with base-event routing enabled.
func New(opts ...Option) *Bus {
	b := &Bus{
		includeBase: true,
		hubs:        make(map[reflect.Type]*Hub),
		routeSize:   defaultRouteCacheSize,
		env:         defaultEnv(),
	}
	for _, opt := range opts {
		opt(b)
	}
	// lru.New only fails for a non-positive size, which WithRouteCacheSize
	// rules out.
	b.routes, _ = lru.New[reflect.Type, []*Hub](b.routeSize)
	return b
}

// IncludeBaseEvents reports whether base-event routing is enabled.
func (b *Bus) IncludeBaseEvents() bool {
	return b.includeBase
}

// SetIncludeBaseEvents toggles base-event routing. When disabled, an event
// reaches only the hub keyed by its exact runtime type, which avoids the
// route lookup.
func (b *Bus) SetIncludeBaseEvents(enabled bool) {
	b.includeBase = enabled
}

// Registry returns the name registry, which may be nil.
func (b *Bus) Registry() *Registry {
	return b.env.registry
}

// Subscribe registers fn for events of type T. T may be a concrete event
// type or a capability interface embedding Event.
func Subscribe[T Event](b *Bus, fn func(T), opts ...ListenerOption) *Token {
	return b.SubscribeListener(On(fn, opts...))
}

// SubscribeListener registers a prepared Listener record. A record without
// a key yields an inert token.
func (b *Bus) SubscribeListener(l Listener) *Token {
	if l.Key == nil {
		b.env.logger.Warn("listener has no event type", "listener", l.Name)
		return &Token{}
	}
	return b.hub(l.Key).Subscribe(l)
}

// SubscribeDiscovered registers records produced by Scan, in order. Records
// that fail validation are logged and skipped.
func (b *Bus) SubscribeDiscovered(listeners []Listener) []*Token {
	tokens := make([]*Token, 0, len(listeners))
	for _, l := range listeners {
		if err := l.Validate(); err != nil {
			b.env.logger.Warn("skipping invalid listener",
				"listener", l.Name,
				"error", err)
			continue
		}
		tokens = append(tokens, b.SubscribeListener(l))
	}
	return tokens
}

// Publish delivers e synchronously. With base-event routing, every existing
// hub whose key e's runtime type is assignable to receives it; if there is
// none, an empty hub for the exact type is created and nothing is delivered.
// Priority order holds across hubs: all Lowest listeners of every matching
// hub run before any Low listener, and so on up to Monitor. Within one
// priority, hubs are visited in creation order.
func (b *Bus) Publish(e Event) {
	if isNilEvent(e) {
		return
	}
	t := reflect.TypeOf(e)
	name := b.env.nameOf(t)
	b.env.observer.Published(name)

	if !b.includeBase {
		dispatch([]*Hub{b.hub(t)}, e, name)
		return
	}
	dispatch(b.route(t), e, name)
}

// PublishAndCheck publishes e and reports its cancelled flag afterwards. An
// event cancelled before the call therefore also reports true.
func (b *Bus) PublishAndCheck(e CancellableEvent) bool {
	if isNilEvent(e) {
		return false
	}
	b.Publish(e)
	return e.IsCancelled()
}

// PublishAndCheckHandled publishes e and reports its handled flag
// afterwards, which includes a handled flag set before the call.
func (b *Bus) PublishAndCheckHandled(e HandleableEvent) bool {
	if isNilEvent(e) {
		return false
	}
	b.Publish(e)
	return e.IsHandled()
}

// Reset drops every hub. Existing tokens become no-ops.
func (b *Bus) Reset() {
	for _, h := range b.order {
		h.Reset()
	}
	b.hubs = make(map[reflect.Type]*Hub)
	b.order = nil
	b.routes.Purge()
}

// ResetEvent clears the listeners of T's hub, leaving other hubs intact.
func ResetEvent[T Event](b *Bus) {
	b.hub(reflect.TypeFor[T]()).Reset()
}

// HubInfo describes one hub for diagnostics.
type HubInfo struct {
	Key       string
	Listeners int
}

// Hubs lists hubs in creation order.
func (b *Bus) Hubs() []HubInfo {
	out := make([]HubInfo, len(b.order))
	for i, h := range b.order {
		out[i] = HubInfo{Key: b.env.nameOf(h.key), Listeners: h.Len()}
	}
	return out
}

func (b *Bus) hub(key reflect.Type) *Hub {
	if h, ok := b.hubs[key]; ok {
		return h
	}
	h := newHub(key, b.env)
	b.hubs[key] = h
	b.order = append(b.order, h)
	b.routes.Purge()
	return h
}

// route returns the hubs a value of type t is delivered to, in hub creation
// order. Results are cached until the hub set changes.
func (b *Bus) route(t reflect.Type) []*Hub {
	if hubs, ok := b.routes.Get(t); ok {
		return hubs
	}
	var hubs []*Hub
	for _, h := range b.order {
		if t.AssignableTo(h.key) {
			hubs = append(hubs, h)
		}
	}
	if len(hubs) == 0 {
		b.hub(t)
		return nil
	}
	b.routes.Add(t, hubs)
	return hubs
}
