// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package search

import (
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// Budget tracks the resources one beam search consumes.
//
// Thread Safety: Counters are safe for concurrent use.
type Budget struct {
	clock     clockwork.Clock
	timeout   time.Duration
	startTime time.Time

	rounds    int64
	expanded  int64
	generated int64
	pruned    int64
}

// NewBudget starts a budget now. A non-positive timeout never expires.
func NewBudget(timeout time.Duration, clock clockwork.Clock) *Budget {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Budget{clock: clock, timeout: timeout, startTime: clock.Now()}
}

// RecordRound counts one completed round.
func (b *Budget) RecordRound() int64 { return atomic.AddInt64(&b.rounds, 1) }

// RecordExpanded counts one expanded branch.
func (b *Budget) RecordExpanded() int64 { return atomic.AddInt64(&b.expanded, 1) }

// RecordGenerated counts n generated children.
func (b *Budget) RecordGenerated(n int) int64 { return atomic.AddInt64(&b.generated, int64(n)) }

// RecordPruned counts n children cut by the incumbent.
func (b *Budget) RecordPruned(n int) int64 { return atomic.AddInt64(&b.pruned, int64(n)) }

// Elapsed returns the time since the budget started.
func (b *Budget) Elapsed() time.Duration {
	return b.clock.Since(b.startTime)
}

// CheckDeadline returns ErrDeadlineExceeded once the timeout has elapsed.
func (b *Budget) CheckDeadline() error {
	if b.timeout > 0 && b.Elapsed() >= b.timeout {
		return ErrDeadlineExceeded
	}
	return nil
}

// Stats is a point-in-time copy of the counters.
type Stats struct {
	Rounds    int64         `json:"rounds"`
	Expanded  int64         `json:"expanded"`
	Generated int64         `json:"generated"`
	Pruned    int64         `json:"pruned"`
	Elapsed   time.Duration `json:"elapsed"`
	TimedOut  bool          `json:"timed_out"`
}

// Stats snapshots the counters.
func (b *Budget) Stats() Stats {
	return Stats{
		Rounds:    atomic.LoadInt64(&b.rounds),
		Expanded:  atomic.LoadInt64(&b.expanded),
		Generated: atomic.LoadInt64(&b.generated),
		Pruned:    atomic.LoadInt64(&b.pruned),
		Elapsed:   b.Elapsed(),
		TimedOut:  b.CheckDeadline() != nil,
	}
}
