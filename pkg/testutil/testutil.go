// Package testutil provides testing utilities for spawnpool
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// TestLogger creates a test logger that writes to the test output.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// CallLog records lifecycle hook invocations in call order, formatted as
// "<phase>:<item>". It is safe for concurrent use.
type CallLog struct {
	mu    sync.Mutex
	calls []string
}

// Record appends one call.
func (l *CallLog) Record(phase string, item interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, fmt.Sprintf("%s:%v", phase, item))
}

// Calls returns a copy of every recorded call.
func (l *CallLog) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.calls))
	copy(out, l.calls)
	return out
}

// Count returns how many calls were recorded for phase.
func (l *CallLog) Count(phase string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	prefix := phase + ":"
	for _, c := range l.calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

// Reset forgets every recorded call.
func (l *CallLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = nil
}

// Hook returns a hook func for phase that records its item and returns err.
func Hook[T any](l *CallLog, phase string, err error) func(T) error {
	return func(item T) error {
		l.Record(phase, item)
		return err
	}
}
