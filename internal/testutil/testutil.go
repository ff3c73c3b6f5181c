// Package testutil holds assertions and filesystem helpers shared by the
// Whisper test suites. It is imported only from _test.go files.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sserr "github.com/StricklySoft/whisper-grc/pkg/errors"
)

// RequireErrorCode fails the test immediately unless err carries code
// somewhere in its chain.
func RequireErrorCode(t testing.TB, err error, code sserr.Code, msgAndArgs ...any) {
	t.Helper()
	require.Error(t, err, msgAndArgs...)
	if !sserr.HasCodeInChain(err, code) {
		require.Failf(t, "unexpected error code",
			"want %s, got %v", code, err)
	}
}

// AssertErrorCode is the non-fatal form of RequireErrorCode.
func AssertErrorCode(t testing.TB, err error, code sserr.Code, msgAndArgs ...any) bool {
	t.Helper()
	if !assert.Error(t, err, msgAndArgs...) {
		return false
	}
	return assert.Truef(t, sserr.HasCodeInChain(err, code),
		"want %s, got %v", code, err)
}

// TempConfigFile writes content to a file called name in a per-test
// directory and returns its path. The extension of name selects the
// decoder in the config loader.
func TempConfigFile(t testing.TB, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// EnvLookup returns a lookup function backed by vars, for code that takes
// a config.LookupFunc instead of reading the process environment.
func EnvLookup(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}
