// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

package modloader

import "errors"

// Sentinel errors for errors.Is checks against Failure.Err.
var (
	// ErrLoadFailed marks an artifact that could not be loaded: unreadable,
	// malformed, missing a dependency or declaring an incompatible API.
	ErrLoadFailed = errors.New("mod load failed")
	// ErrTooManyEntryPoints marks a unit declaring more than one entry.
	ErrTooManyEntryPoints = errors.New("too many entry points")
	// ErrInstantiationFailed marks an entry whose constructor failed.
	ErrInstantiationFailed = errors.New("entry instantiation failed")
)
