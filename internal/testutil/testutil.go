// Package testutil provides deterministic substitutes for the
// scheduler's time and identity sources, shared across package tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// FixedRunIDs returns predetermined run IDs in order.
//
// This enables deterministic ledger and run log contents in tests.
// Generate panics once all IDs are consumed - a test asking for more
// runs than it scripted is a bug worth failing loudly on.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedRunIDs struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedRunIDs creates a generator that returns ids in order.
func NewFixedRunIDs(ids ...string) *FixedRunIDs {
	return &FixedRunIDs{ids: ids}
}

// Generate returns the next predetermined run ID.
func (g *FixedRunIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.ids) {
		panic(fmt.Sprintf("FixedRunIDs exhausted after %d IDs", len(g.ids)))
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

// FrozenClock returns a now func pinned to t.
func FrozenClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// SleepRecorder captures requested pacing delays instead of serving
// them, so tests over jittered dispatch run instantly.
//
// Thread-safety: safe for concurrent use via internal mutex, though the
// scheduler calls it from a single goroutine.
type SleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

// Sleep records d and returns immediately, honoring ctx cancellation.
func (r *SleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

// Delays returns a copy of the recorded delays in request order.
func (r *SleepRecorder) Delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Duration, len(r.delays))
	copy(out, r.delays)
	return out
}
