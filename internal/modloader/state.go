// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

package modloader

// State is where a unit is in the load state machine:
//
//	Discovered -> Loaded -> EntryResolved -> Attached -> Running
//	           \-> LoadFailed      \-> TooManyEntries
//
// A library unit with no entry stays Loaded. A unit whose entry failed to
// construct or attach stays EntryResolved.
type State int

// Unit states.
const (
	StateDiscovered State = iota
	StateLoaded
	StateEntryResolved
	StateAttached
	StateRunning
	StateLoadFailed
	StateTooManyEntries
)

var stateNames = [...]string{
	StateDiscovered:     "discovered",
	StateLoaded:         "loaded",
	StateEntryResolved:  "entry_resolved",
	StateAttached:       "attached",
	StateRunning:        "running",
	StateLoadFailed:     "load_failed",
	StateTooManyEntries: "too_many_entries",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Failed reports whether the unit was skipped and its context torn down.
func (s State) Failed() bool {
	return s == StateLoadFailed || s == StateTooManyEntries
}

// Stage names the load step a Failure happened in.
type Stage string

// Load stages, in order.
const (
	StageOpen        Stage = "open"
	StageAPI         Stage = "api"
	StageResolve     Stage = "resolve"
	StageInstantiate Stage = "instantiate"
	StageInit        Stage = "init"
	StageAttach      Stage = "attach"
)
