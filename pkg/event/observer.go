// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

package event

// Observer receives bus activity for metrics. Implementations must be cheap;
// they run inline on the publishing loop.
type Observer interface {
	// Published is called once per Publish with the event's routing name.
	Published(name string)
	// Delivered is called after each listener returns normally.
	Delivered(name string, priority Priority)
	// ListenerFailed is called when a listener panics.
	ListenerFailed(name string, listener string)
}

type nopObserver struct{}

func (nopObserver) Published(string)              {}
func (nopObserver) Delivered(string, Priority)    {}
func (nopObserver) ListenerFailed(string, string) {}
