// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

package event

import (
	"errors"
	"reflect"
	"sort"
	"sync"

	"github.com/samber/oops"
)

// ErrUnknownEvent is returned when an event name has no registered type.
var ErrUnknownEvent = errors.New("unknown event name")

// Registry maps stable event names to Go types. Scripted and out-of-process
// mods refer to events by name; the bus also uses names in logs and metrics.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]reflect.Type
	byType map[reflect.Type]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]reflect.Type),
		byType: make(map[reflect.Type]string),
	}
}

// Register binds name to t. Re-registering the same pair is allowed; binding
// a name or a type twice to different partners is an error.
func (r *Registry) Register(name string, t reflect.Type) error {
	errb := oops.Code("EVENT_REGISTRY_CONFLICT").With("name", name)
	if name == "" {
		return errb.Errorf("event name cannot be empty")
	}
	if t == nil || !t.Implements(eventType) {
		return errb.Errorf("type %v does not implement event.Event", t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byName[name]; ok && existing != t {
		return errb.With("existing", existing.String()).Errorf("event name %q already bound to %s", name, existing)
	}
	if existing, ok := r.byType[t]; ok && existing != name {
		return errb.With("existing", existing).Errorf("type %s already registered as %q", t, existing)
	}
	r.byName[name] = t
	r.byType[t] = name
	return nil
}

// Register binds name to the event type T.
func Register[T Event](r *Registry, name string) error {
	return r.Register(name, reflect.TypeFor[T]())
}

// MustRegister is like Register but panics on error. Intended for package
// level registration tables.
func MustRegister[T Event](r *Registry, name string) {
	if err := Register[T](r, name); err != nil {
		panic(err)
	}
}

// Lookup returns the type registered under name.
func (r *Registry) Lookup(name string) (reflect.Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.byName[name]
	if !ok {
		return nil, oops.Code("EVENT_UNKNOWN_NAME").With("name", name).Wrapf(ErrUnknownEvent, "%s", name)
	}
	return t, nil
}

// NameOf returns the name registered for t.
func (r *Registry) NameOf(t reflect.Type) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name, ok := r.byType[t]
	return name, ok
}

// Names returns all registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
