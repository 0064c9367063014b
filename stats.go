// Copyright © 2025 Admin Road Engineering.

package elevation

import "sync/atomic"

// SourceStats holds the monotonic per-source counters. Process-wide
// state with process lifetime; all increments are atomic.
type SourceStats struct {
	Attempts     atomic.Int64
	Successes    atomic.Int64
	Failures     atomic.Int64
	CircuitTrips atomic.Int64
}

// SourceStatsSnapshot is a point-in-time copy of the counters.
type SourceStatsSnapshot struct {
	Attempts     int64 `json:"attempts"`
	Successes    int64 `json:"successes"`
	Failures     int64 `json:"failures"`
	CircuitTrips int64 `json:"circuit_trips"`
}

// UsageStats centralises the mutable per-source counters. The source
// set is fixed at construction; only the counter values change.
type UsageStats struct {
	sources map[string]*SourceStats
}

// NewUsageStats creates counters for the given source ids.
func NewUsageStats(sourceIDs []string) *UsageStats {
	m := make(map[string]*SourceStats, len(sourceIDs))
	for _, id := range sourceIDs {
		m[id] = &SourceStats{}
	}
	return &UsageStats{sources: m}
}

// Source returns the counters for a source id, or nil if unknown.
func (u *UsageStats) Source(id string) *SourceStats {
	return u.sources[id]
}

// Snapshot copies all counters.
func (u *UsageStats) Snapshot() map[string]SourceStatsSnapshot {
	out := make(map[string]SourceStatsSnapshot, len(u.sources))
	for id, s := range u.sources {
		out[id] = SourceStatsSnapshot{
			Attempts:     s.Attempts.Load(),
			Successes:    s.Successes.Load(),
			Failures:     s.Failures.Load(),
			CircuitTrips: s.CircuitTrips.Load(),
		}
	}
	return out
}
