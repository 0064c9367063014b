// Copyright © 2025 Admin Road Engineering.

package breaker

import (
	"context"
	"testing"
	"time"
)

// testStoreSemantics drives one circuit through the full closed ->
// open -> half-open lifecycle with explicit clock values. Both store
// implementations must satisfy it identically.
func testStoreSemantics(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	const (
		id        = "test_source"
		threshold = 3
		recovery  = 30 * time.Second
	)
	t0 := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)

	mustAllow := func(now time.Time, want bool) {
		t.Helper()
		got, err := store.Allow(ctx, id, now)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Fatalf("Allow(%v) = %v, want %v", now, got, want)
		}
	}
	fail := func(now time.Time) {
		t.Helper()
		if err := store.MarkFailure(ctx, id, now, threshold, recovery); err != nil {
			t.Fatal(err)
		}
	}
	state := func() Snapshot {
		t.Helper()
		snap, err := store.Snapshot(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		return snap
	}

	// Fresh circuit starts closed.
	mustAllow(t0, true)
	if s := state(); s.State != Closed {
		t.Fatalf("fresh state %v != closed", s.State)
	}

	// Failures below the threshold leave the circuit closed, and the
	// count climbs monotonically.
	fail(t0)
	fail(t0.Add(time.Second))
	if s := state(); s.State != Closed || s.FailureCount != 2 {
		t.Fatalf("after 2 failures: %+v", s)
	}
	mustAllow(t0.Add(time.Second), true)

	// The threshold failure opens the circuit for the recovery window.
	fail(t0.Add(2 * time.Second))
	if s := state(); s.State != Open || s.FailureCount != 3 {
		t.Fatalf("after threshold: %+v", s)
	}
	mustAllow(t0.Add(3*time.Second), false)
	mustAllow(t0.Add(2*time.Second+recovery-time.Millisecond), false)

	// Cool-down elapsed: the next Allow admits a half-open probe.
	probeAt := t0.Add(2 * time.Second).Add(recovery)
	mustAllow(probeAt, true)
	if s := state(); s.State != HalfOpen {
		t.Fatalf("state %v != half_open after cool-down", s.State)
	}

	// A half-open failure reopens immediately, without needing the
	// threshold again.
	fail(probeAt.Add(time.Second))
	if s := state(); s.State != Open {
		t.Fatalf("state %v != open after half-open failure", s.State)
	}
	mustAllow(probeAt.Add(2*time.Second), false)

	// A successful probe closes the circuit and zeroes the count.
	mustAllow(probeAt.Add(time.Second).Add(recovery), true)
	if err := store.MarkSuccess(ctx, id); err != nil {
		t.Fatal(err)
	}
	if s := state(); s.State != Closed || s.FailureCount != 0 {
		t.Fatalf("after success: %+v", s)
	}
	mustAllow(probeAt.Add(2*time.Second).Add(recovery), true)

	// Reset returns the circuit to its initial state.
	fail(t0.Add(time.Hour))
	if err := store.Reset(ctx, id); err != nil {
		t.Fatal(err)
	}
	if s := state(); s.State != Closed || s.FailureCount != 0 {
		t.Fatalf("after reset: %+v", s)
	}
}

func TestMemoryStoreSemantics(t *testing.T) {
	testStoreSemantics(t, NewMemoryStore())
}

func TestMemoryStoreIsolatesCircuits(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()
	for i := 0; i < 3; i++ {
		if err := store.MarkFailure(ctx, "bad", now, 3, time.Minute); err != nil {
			t.Fatal(err)
		}
	}
	allowed, err := store.Allow(ctx, "bad", now)
	if err != nil {
		t.Fatal(err)
	}
	if allowed {
		t.Error("tripped circuit should refuse")
	}
	allowed, err = store.Allow(ctx, "good", now)
	if err != nil {
		t.Fatal(err)
	}
	if !allowed {
		t.Error("unrelated circuit must stay closed")
	}
}

func TestBreakerRecordFailureAfter(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		retryAfter time.Duration
		wantOpen   time.Duration
	}{
		{"retry-after longer than recovery", 2 * time.Minute, 2 * time.Minute},
		{"retry-after shorter than recovery", 5 * time.Second, 30 * time.Second},
		{"no retry-after", 0, 30 * time.Second},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			store := NewMemoryStore()
			b := New("api", 1, 30*time.Second, store)
			b.now = func() time.Time { return now }

			if err := b.RecordFailureAfter(ctx, test.retryAfter); err != nil {
				t.Fatal(err)
			}
			snap, err := b.Snapshot(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if snap.State != Open {
				t.Fatalf("state %v != open", snap.State)
			}
			if want := now.Add(test.wantOpen); !snap.OpenUntil.Equal(want) {
				t.Errorf("open until %v != %v", snap.OpenUntil, want)
			}
		})
	}
}

func TestBreakerForceReset(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	b := New("api", 1, time.Hour, store)

	if err := b.RecordFailure(ctx); err != nil {
		t.Fatal(err)
	}
	allowed, err := b.Allow(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if allowed {
		t.Fatal("circuit should be open")
	}
	if err := b.ForceReset(ctx); err != nil {
		t.Fatal(err)
	}
	allowed, err = b.Allow(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !allowed {
		t.Error("reset circuit should allow immediately")
	}
}
