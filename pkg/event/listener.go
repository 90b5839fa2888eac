// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

package event

import (
	"reflect"
	"runtime"

	"github.com/samber/oops"
)

var eventType = reflect.TypeFor[Event]()

// Listener is a registration record: one callback, at one priority, for one
// event key. Records are built once, either by On or by a plugin backend via
// Adapt, so delivery never needs reflection.
type Listener struct {
	// Key is the hub this listener belongs to. It is a concrete event type or
	// a capability interface embedding Event.
	Key reflect.Type
	// Priority controls firing order within one publish.
	Priority Priority
	// Name identifies the listener in logs and diagnostics.
	Name string
	// Call receives events already known to be assignable to Key.
	Call func(Event)
}

// ListenerOption configures a Listener record.
type ListenerOption func(*Listener)

// WithPriority sets the listener priority. The default is PriorityNormal.
func WithPriority(p Priority) ListenerOption {
	return func(l *Listener) {
		l.Priority = p
	}
}

// WithName overrides the listener name used in logs.
func WithName(name string) ListenerOption {
	return func(l *Listener) {
		l.Name = name
	}
}

// On adapts a typed function into a Listener record keyed by T.
func On[T Event](fn func(T), opts ...ListenerOption) Listener {
	l := Listener{
		Key:      reflect.TypeFor[T](),
		Priority: PriorityNormal,
	}
	if fn != nil {
		l.Name = funcName(fn)
		l.Call = func(e Event) {
			if te, ok := e.(T); ok {
				fn(te)
			}
		}
	}
	for _, opt := range opts {
		opt(&l)
	}
	return l
}

// Adapt builds a Listener for a key known only at runtime, such as an event
// named by a script. fn receives events assignable to key.
func Adapt(key reflect.Type, fn func(Event), opts ...ListenerOption) Listener {
	l := Listener{
		Key:      key,
		Priority: PriorityNormal,
		Call:     fn,
	}
	for _, opt := range opts {
		opt(&l)
	}
	return l
}

// Validate checks the eligibility of the record: it needs a callback, a key
// implementing Event and a declared priority.
func (l Listener) Validate() error {
	errb := oops.Code("EVENT_LISTENER_INVALID").With("listener", l.Name)
	if l.Call == nil {
		return errb.Errorf("listener has no callback")
	}
	if l.Key == nil {
		return errb.Errorf("listener has no event type")
	}
	if !l.Key.Implements(eventType) {
		return errb.With("type", l.Key.String()).Errorf("%s does not implement event.Event", l.Key)
	}
	if !l.Priority.Valid() {
		return errb.With("priority", int(l.Priority)).Errorf("invalid priority %d", l.Priority)
	}
	return nil
}

func funcName(fn any) string {
	f := runtime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if f == nil {
		return "anonymous"
	}
	return f.Name()
}
