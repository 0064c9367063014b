// Copyright © 2025 Admin Road Engineering.

// Package breaker implements per-source circuit breakers with
// pluggable state storage: a shared redis store for multi-worker
// deployments and an in-memory store for development.
package breaker

import (
	"context"
	"time"
)

// State is the circuit state.
type State string

// Circuit states.
const (
	Closed   State = "closed"
	Open     State = "open"
	HalfOpen State = "half_open"
)

// Snapshot is a point-in-time copy of one circuit's state.
type Snapshot struct {
	State        State     `json:"state"`
	FailureCount int       `json:"failure_count"`
	LastFailure  time.Time `json:"last_failure,omitempty"`
	OpenUntil    time.Time `json:"open_until,omitempty"`
}

// A Store persists circuit state keyed by source id. Every method is a
// single atomic transition; concurrent workers observing the same store
// must never see a torn update.
type Store interface {
	// Kind names the store implementation for health reporting.
	Kind() string
	// Allow reports whether a request may pass. It performs the
	// open -> half-open transition when the cool-down has elapsed.
	Allow(ctx context.Context, id string, now time.Time) (bool, error)
	// MarkSuccess closes the circuit and zeroes the failure count.
	MarkSuccess(ctx context.Context, id string) error
	// MarkFailure increments the failure count and opens the circuit
	// for openFor when the count reaches threshold or the circuit was
	// half-open.
	MarkFailure(ctx context.Context, id string, now time.Time, threshold int, openFor time.Duration) error
	// Reset forces the circuit back to its initial closed state.
	Reset(ctx context.Context, id string) error
	// Snapshot reads the current state without modifying it.
	Snapshot(ctx context.Context, id string) (Snapshot, error)
}

// Breaker guards one data source. The three-state contract: closed
// passes requests through and counts failures; open fails fast until
// the cool-down elapses; half-open admits a probe whose success closes
// the circuit and whose failure reopens it.
type Breaker struct {
	id        string
	threshold int
	recovery  time.Duration
	store     Store
	now       func() time.Time
}

// New wraps the source id with a breaker over the given store.
func New(id string, threshold int, recovery time.Duration, store Store) *Breaker {
	return &Breaker{
		id:        id,
		threshold: threshold,
		recovery:  recovery,
		store:     store,
		now:       time.Now,
	}
}

// ID returns the guarded source id.
func (b *Breaker) ID() string { return b.id }

// Allow reports whether the next request may be sent to the source.
func (b *Breaker) Allow(ctx context.Context) (bool, error) {
	return b.store.Allow(ctx, b.id, b.now())
}

// RecordSuccess closes the circuit.
func (b *Breaker) RecordSuccess(ctx context.Context) error {
	return b.store.MarkSuccess(ctx, b.id)
}

// RecordFailure counts one failure against the source.
func (b *Breaker) RecordFailure(ctx context.Context) error {
	return b.store.MarkFailure(ctx, b.id, b.now(), b.threshold, b.recovery)
}

// RecordFailureAfter counts one failure and, if the upstream supplied a
// Retry-After larger than the configured recovery timeout, keeps the
// circuit open for that longer period instead.
func (b *Breaker) RecordFailureAfter(ctx context.Context, retryAfter time.Duration) error {
	openFor := b.recovery
	if retryAfter > openFor {
		openFor = retryAfter
	}
	return b.store.MarkFailure(ctx, b.id, b.now(), b.threshold, openFor)
}

// ForceReset is the admin escape hatch: closed state, zero failures.
func (b *Breaker) ForceReset(ctx context.Context) error {
	return b.store.Reset(ctx, b.id)
}

// Snapshot reads the circuit state.
func (b *Breaker) Snapshot(ctx context.Context) (Snapshot, error) {
	return b.store.Snapshot(ctx, b.id)
}
