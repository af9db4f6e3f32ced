// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dynamic

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/AleutianYard/services/planner/search"
	"github.com/AleutianAI/AleutianYard/services/yard/model"
)

// RestartEntry compares one step of the stale plan executed on the
// pre-disruption state and on the live state.
type RestartEntry struct {
	Move      model.Move `json:"move"`
	BoundDiff float64    `json:"bound_diff"`
	CostDiff  int        `json:"cost_diff"`
}

// RestartPoint is the live state advanced by the reusable plan prefix.
type RestartPoint struct {
	// State is a clone of the live state with Index moves applied.
	State *search.State

	// Index is the number of planned moves reused.
	Index int

	Entries []RestartEntry
}

// RestartFinder locates the longest prefix of a stale plan that still
// behaves on the live state the way it would have without the disruption.
type RestartFinder struct {
	cfg     RestartConfig
	penalty float64
}

// NewRestartFinder creates a finder. penalty weighs blocked blocks in the
// bound comparison.
func NewRestartFinder(cfg RestartConfig, penalty float64) *RestartFinder {
	return &RestartFinder{cfg: cfg, penalty: penalty}
}

// Find replays planned on a reset clone of previous and the restamped
// moves on a clone of current, and cuts the prefix before the first step
// whose bound or cost diverges past the thresholds.
//
// Inputs:
//
//	previous - The state before the disruption. Not mutated.
//	current  - The live state. Not mutated.
//	planned  - The stale plan.
//
// Outputs:
//
//	*RestartPoint - Never nil. Index 0 with a clone of current when no
//	                planned move applies.
func (f *RestartFinder) Find(previous, current *search.State, planned []model.Move) *RestartPoint {
	entries := f.analyze(previous, current, planned)
	rp := &RestartPoint{State: current.Clone(), Entries: entries}
	if len(entries) == 0 {
		return rp
	}

	rp.Index = f.cut(entries)
	for _, e := range entries[:rp.Index] {
		// analyze already applied these on an identical clone.
		if err := rp.State.Apply(e.Move); err != nil {
			rp.State = current.Clone()
			rp.Index = 0
			break
		}
	}
	return rp
}

func (f *RestartFinder) analyze(previous, current *search.State, planned []model.Move) []RestartEntry {
	stamped := restamp(current, planned)

	prev := previous.Clone()
	prev.Reset()
	cur := current.Clone()

	entries := make([]RestartEntry, 0, len(stamped))
	for i, m := range stamped {
		if err := prev.Apply(planned[i]); err != nil {
			break
		}
		if err := cur.Apply(m); err != nil {
			break
		}
		entries = append(entries, RestartEntry{
			Move:      m,
			BoundDiff: f.score(cur) - f.score(prev),
			CostDiff:  cur.AccumulatedCost() - prev.AccumulatedCost(),
		})
	}
	return entries
}

func (f *RestartFinder) score(s *search.State) float64 {
	return float64(s.Bound()) + f.penalty*float64(s.BlockedBlocks())
}

// cut returns the first i whose successor diverges, or len(entries).
func (f *RestartFinder) cut(entries []RestartEntry) int {
	for i := 0; i+1 < len(entries); i++ {
		next := entries[i+1]
		if next.BoundDiff >= f.cfg.Beta+f.cfg.BoundOffset || float64(next.CostDiff) >= f.cfg.Beta {
			return i
		}
	}
	return len(entries)
}

// AdaptiveRestart keeps the reusable prefix of the stale plan and searches
// onward from where it ends.
type AdaptiveRestart struct {
	base
	finder *RestartFinder
}

// Variant implements Strategy.
func (a *AdaptiveRestart) Variant() Variant { return VariantAdaptiveRestartPoint }

// Recalculate implements Strategy. previous is required.
func (a *AdaptiveRestart) Recalculate(ctx context.Context, current, previous *search.State, planned []model.Move, _ EventKind) (*search.State, error) {
	if previous == nil {
		return nil, ErrNoPreviousState
	}
	rp := a.finder.Find(previous, current, planned)
	a.logger.Debug("restart point", slog.Int("index", rp.Index), slog.Int("entries", len(rp.Entries)))

	best, err := a.run(ctx, rp.State, a.standardRank(), VariantAdaptiveRestartPoint.String())
	if err != nil {
		return nil, err
	}
	if err := checkPrefix(best, rp); err != nil {
		return nil, err
	}
	return best, nil
}

// AdaptivePrioCombined reuses the prefix like AdaptiveRestart, then
// searches onward with MovePrioritization against the rest of the plan.
type AdaptivePrioCombined struct {
	base
	finder *RestartFinder
	prio   *MovePrioritization
}

// Variant implements Strategy.
func (a *AdaptivePrioCombined) Variant() Variant { return VariantAdaptivePrioCombined }

// Recalculate implements Strategy. previous is required.
func (a *AdaptivePrioCombined) Recalculate(ctx context.Context, current, previous *search.State, planned []model.Move, _ EventKind) (*search.State, error) {
	if previous == nil {
		return nil, ErrNoPreviousState
	}
	rp := a.finder.Find(previous, current, planned)
	a.logger.Debug("restart point", slog.Int("index", rp.Index), slog.Int("entries", len(rp.Entries)))

	best, err := a.prio.searchWithPlan(ctx, rp.State, planned[rp.Index:])
	if err != nil {
		return nil, err
	}
	if err := checkPrefix(best, rp); err != nil {
		return nil, err
	}
	return best, nil
}

func checkPrefix(best *search.State, rp *RestartPoint) error {
	prefix := make([]model.Move, rp.Index)
	for i, e := range rp.Entries[:rp.Index] {
		prefix[i] = e.Move
	}
	if m, ok := containsPrefix(best.Plan(), prefix); !ok {
		return fmt.Errorf("%w: restart prefix move %s missing from result", search.ErrInconsistentPlan, m)
	}
	return nil
}
