// Package testutil provides small helpers shared by the package
// tests: polling assertions for timer-driven behavior and a connected
// in-process store fixture.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/kbukum/sessionkit/kvstore"
	"github.com/kbukum/sessionkit/logger"
)

// Eventually polls cond until it returns true or the timeout elapses,
// then fails the test with msg.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

// Consistently asserts cond stays true for the whole duration.
func Consistently(t *testing.T, duration time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if !cond() {
			t.Fatal(msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// NewMemoryStore returns a connected in-process store that disconnects
// on test cleanup.
func NewMemoryStore(t *testing.T) *kvstore.Memory {
	t.Helper()
	mem := kvstore.NewMemory(logger.Nop())
	if err := mem.Connect(context.Background()); err != nil {
		t.Fatalf("connect memory store: %v", err)
	}
	t.Cleanup(func() { _ = mem.Disconnect(context.Background()) })
	return mem
}
