// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

package event

import (
	"strings"

	"github.com/samber/oops"
)

// Priority determines listener execution order within one publish.
// Lower values fire first.
type Priority int

const (
	// PriorityLowest fires first.
	PriorityLowest Priority = iota
	PriorityLow
	// PriorityNormal is the default when no priority is given.
	PriorityNormal
	PriorityHigh
	PriorityHighest
	// PriorityMonitor fires last. By convention Monitor listeners only
	// observe the outcome and never cancel; the bus logs but does not
	// prevent a violation.
	PriorityMonitor

	priorityCount = int(PriorityMonitor) + 1
)

var priorityNames = [priorityCount]string{
	"lowest", "low", "normal", "high", "highest", "monitor",
}

// String returns the lowercase priority name.
func (p Priority) String() string {
	if !p.Valid() {
		return "unknown"
	}
	return priorityNames[p]
}

// Valid reports whether p is one of the declared priorities.
func (p Priority) Valid() bool {
	return p >= PriorityLowest && int(p) < priorityCount
}

// Priorities returns every priority in firing order.
func Priorities() []Priority {
	out := make([]Priority, priorityCount)
	for i := range out {
		out[i] = Priority(i)
	}
	return out
}

// ParsePriority converts a case-insensitive priority name. An empty string
// yields PriorityNormal.
func ParsePriority(s string) (Priority, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PriorityNormal, nil
	}
	for i, name := range priorityNames {
		if name == s {
			return Priority(i), nil
		}
	}
	return PriorityNormal, oops.Code("EVENT_LISTENER_INVALID").
		With("priority", s).
		Errorf("unknown listener priority %q", s)
}
