// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RequireOops fails the test unless some error in err's chain is an oops
// error, and returns it.
func RequireOops(t *testing.T, err error) oops.OopsError {
	t.Helper()
	require.Error(t, err)
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "want an oops error in the chain, got %T: %v", err, err)
	return oopsErr
}

// AssertErrorCode checks the deepest oops code in err's chain.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	assert.Equal(t, code, RequireOops(t, err).Code())
}

// AssertErrorContext checks one key of the merged oops context.
func AssertErrorContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	ctx := RequireOops(t, err).Context()
	if assert.Contains(t, ctx, key) {
		assert.Equal(t, value, ctx[key])
	}
}

// AssertLoadFailure checks a mod load failure: its code and the artifact and
// stage it was recorded against.
func AssertLoadFailure(t *testing.T, err error, code, artifact string, stage any) {
	t.Helper()
	oopsErr := RequireOops(t, err)
	assert.Equal(t, code, oopsErr.Code())
	ctx := oopsErr.Context()
	assert.Equal(t, artifact, ctx["artifact"], "artifact")
	assert.Equal(t, stage, ctx["stage"], "stage")
}

// AssertConfigError checks a CONFIG_INVALID error naming key.
func AssertConfigError(t *testing.T, err error, key string) {
	t.Helper()
	AssertErrorCode(t, err, "CONFIG_INVALID")
	AssertErrorContext(t, err, "key", key)
}
