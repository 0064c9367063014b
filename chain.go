// Copyright © 2025 Admin Road Engineering.

package elevation

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/admin-road-engineering/elevation/breaker"
)

// ChainEntry pairs a data source with its breaker and static
// configuration.
type ChainEntry struct {
	Descriptor SourceDescriptor
	Source     DataSource
	Breaker    *breaker.Breaker
}

// Chain is the fallback orchestrator: sources are consulted in strict
// priority order, the first success wins, coverage gaps fall through
// without penalty, and failures are charged to the failing source's
// breaker. The chain never returns a Go error to the driver; every
// outcome is an Outcome.
type Chain struct {
	entries []ChainEntry
	stats   *UsageStats
	log     *logrus.Logger
}

// NewChain sorts the entries by ascending priority and wires the
// usage counters.
func NewChain(entries []ChainEntry, stats *UsageStats, log *logrus.Logger) *Chain {
	sorted := make([]ChainEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Descriptor.Priority < sorted[j].Descriptor.Priority
	})
	return &Chain{entries: sorted, stats: stats, log: log}
}

// Entries returns the chain in consultation order.
func (ch *Chain) Entries() []ChainEntry { return ch.entries }

// GetElevation walks the chain for one point.
func (ch *Chain) GetElevation(ctx context.Context, qp *QueryPoint) Outcome {
	tried := make([]string, 0, len(ch.entries))
	for _, e := range ch.entries {
		id := e.Descriptor.ID
		stats := ch.stats.Source(id)
		tried = append(tried, id)

		allowed, err := e.Breaker.Allow(ctx)
		if err != nil {
			// A broken breaker store must not take the whole chain
			// down; treat the circuit as closed and log.
			ch.log.WithError(err).WithField("source", id).Warn("breaker store unavailable, allowing request")
			allowed = true
		}
		if !allowed {
			stats.CircuitTrips.Add(1)
			ch.log.WithField("source", id).Debug("circuit open, skipping source")
			continue
		}

		stats.Attempts.Add(1)
		out := ch.invoke(ctx, e, qp)

		switch out.Status {
		case StatusFound:
			stats.Successes.Add(1)
			if err := e.Breaker.RecordSuccess(ctx); err != nil {
				ch.log.WithError(err).WithField("source", id).Warn("recording breaker success")
			}
			return out
		case StatusNotCovered, StatusNoData:
			// Coverage gaps are an expected state of the world, not a
			// source failure: the breaker must not trip.
			continue
		case StatusError:
			stats.Failures.Add(1)
			ch.recordFailure(ctx, e, out)
			ch.log.WithFields(logrus.Fields{
				"source": id,
				"kind":   out.Kind,
				"detail": out.Detail,
			}).Warn("source failed, falling through")
		}
	}
	return Exhausted(tried)
}

// invoke runs one source under its configured timeout.
func (ch *Chain) invoke(ctx context.Context, e ChainEntry, qp *QueryPoint) Outcome {
	if t := e.Descriptor.Timeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	out := e.Source.GetElevation(ctx, qp)
	// Cancellation surfaces as a timeout regardless of how the source
	// reported it.
	if ctx.Err() != nil && out.Status != StatusFound {
		return Failure(KindTimeout, e.Descriptor.ID, ctx.Err().Error())
	}
	return out
}

func (ch *Chain) recordFailure(ctx context.Context, e ChainEntry, out Outcome) {
	var err error
	if out.Kind == KindRateLimited && out.RetryAfter > 0 {
		err = e.Breaker.RecordFailureAfter(ctx, out.RetryAfter)
	} else {
		err = e.Breaker.RecordFailure(ctx)
	}
	if err != nil {
		ch.log.WithError(err).WithField("source", e.Descriptor.ID).Warn("recording breaker failure")
	}
}

// Health reports each source's breaker state in chain order.
func (ch *Chain) Health(ctx context.Context) []SourceState {
	out := make([]SourceState, 0, len(ch.entries))
	for _, e := range ch.entries {
		snap, err := e.Breaker.Snapshot(ctx)
		if err != nil {
			out = append(out, SourceState{ID: e.Descriptor.ID, State: "unknown"})
			continue
		}
		out = append(out, SourceState{ID: e.Descriptor.ID, State: string(snap.State)})
	}
	return out
}

// ResetBreakers force-closes every circuit in the chain.
func (ch *Chain) ResetBreakers(ctx context.Context) error {
	for _, e := range ch.entries {
		if err := e.Breaker.ForceReset(ctx); err != nil {
			return err
		}
	}
	return nil
}

// SourceState is one entry of the health report.
type SourceState struct {
	ID    string `json:"id"`
	State string `json:"state"`
}
