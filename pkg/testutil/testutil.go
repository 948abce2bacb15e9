// Package testutil provides testing utilities for scenepool
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// Idler reports how many instances sit idle. *pool.Pool satisfies it.
type Idler interface {
	AvailableCount() int
}

// TestLogger creates a test logger that writes to the test output.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a context with a 30-second timeout that is cancelled
// when the test completes.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestRegistry returns an isolated Prometheus registry.
func TestRegistry(_ *testing.T) *prometheus.Registry {
	return prometheus.NewRegistry()
}

// WaitForIdle blocks until p holds exactly n idle instances. Releases happen
// on watcher goroutines, so tests must poll.
func WaitForIdle(t *testing.T, p Idler, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return p.AvailableCount() == n },
		time.Second, time.Millisecond, "expected %d idle instances", n)
}
