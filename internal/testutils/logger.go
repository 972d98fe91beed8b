// Package testutils provides testing utilities shared by the package tests:
// loggers, ports, temporary directories, fixtures and FakeNode, an in-memory
// JSON-RPC node. It is intended for tests only.
package testutils

import (
	"testing"

	"github.com/rs/zerolog"
)

// Logger returns a zerolog.Logger that writes through t.Log.
func Logger(t *testing.T) zerolog.Logger {
	t.Helper()
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel).With().Timestamp().Logger()
}
