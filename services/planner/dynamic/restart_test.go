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
	"testing"

	"github.com/AleutianAI/AleutianYard/services/yard/model"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRestartFinder_Cut(t *testing.T) {
	f := NewRestartFinder(DefaultConfig().Restart, 10)
	tests := []struct {
		name    string
		entries []RestartEntry
		want    int
	}{
		{"no divergence", []RestartEntry{{}, {BoundDiff: 5}, {CostDiff: 29}}, 3},
		{"bound diverges at second", []RestartEntry{{}, {BoundDiff: 40}, {}}, 0},
		{"cost diverges at third", []RestartEntry{{}, {}, {CostDiff: 30}}, 1},
		{"first entry never cuts", []RestartEntry{{BoundDiff: 1000}, {}}, 2},
		{"single entry", []RestartEntry{{CostDiff: 500}}, 1},
		{"bound just below", []RestartEntry{{}, {BoundDiff: 39.5}}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.cut(tt.entries))
		})
	}
}

func TestRestartFinder_IdenticalStatesReuseWholePlan(t *testing.T) {
	current := mixedState(t)
	plan := initialPlan(t, current)
	previous := current.Clone()

	rp := NewRestartFinder(DefaultConfig().Restart, 10).Find(previous, current, plan)
	require.Len(t, rp.Entries, len(plan))
	for _, e := range rp.Entries {
		assert.Zero(t, e.BoundDiff)
		assert.Zero(t, e.CostDiff)
	}
	assert.Equal(t, len(plan), rp.Index)
	assert.True(t, rp.State.IsTerminal())
	assert.Zero(t, current.HistoryLen(), "current must not be mutated")
}

func TestRestartFinder_NothingApplies(t *testing.T) {
	current := mixedState(t)
	stale := []model.Move{{BlockID: 4, BlockSource: pos(2, 2, 1), BlockTarget: pos(0, 0, 1)}}

	rp := NewRestartFinder(DefaultConfig().Restart, 10).Find(current.Clone(), current, stale)
	assert.Empty(t, rp.Entries)
	assert.Zero(t, rp.Index)
	assert.Equal(t, current.Yard().Digest(), rp.State.Yard().Digest())
	assert.Zero(t, rp.State.HistoryLen())
}

func TestRestartFinder_StopsAtFirstFailure(t *testing.T) {
	sc := missmove(t)
	rp := NewRestartFinder(DefaultConfig().Restart, 10).Find(sc.previous, sc.current, sc.planned)

	assert.LessOrEqual(t, rp.Index, len(rp.Entries))
	assert.LessOrEqual(t, len(rp.Entries), len(sc.planned))
	assert.Equal(t, rp.Index, rp.State.HistoryLen())
	for i, e := range rp.Entries {
		assert.True(t, e.Move.SameAction(sc.planned[i]))
	}
}

func TestAdaptive_RequirePreviousState(t *testing.T) {
	sc := expectedExecution(t)
	for _, v := range []Variant{VariantAdaptiveRestartPoint, VariantAdaptivePrioCombined} {
		_, err := mustCreate(t, v).Recalculate(context.Background(), sc.current, nil, sc.planned, sc.kind)
		assert.ErrorIs(t, err, ErrNoPreviousState, v.String())
	}
}

func TestAdaptive_UnchangedPlanIsKept(t *testing.T) {
	for _, v := range []Variant{VariantAdaptiveRestartPoint, VariantAdaptivePrioCombined} {
		t.Run(v.String(), func(t *testing.T) {
			sc := expectedExecution(t)
			best, err := mustCreate(t, v).Recalculate(context.Background(), sc.current, sc.previous, sc.planned, sc.kind)
			require.NoError(t, err)
			if diff := cmp.Diff(sc.planned, best.Plan()); diff != "" {
				t.Errorf("plan changed (-stale +new):\n%s", diff)
			}
		})
	}
}

func TestAdaptive_ResultContainsRestartPrefix(t *testing.T) {
	sc := missmove(t)
	rp := NewRestartFinder(DefaultConfig().Restart, 10).Find(sc.previous, sc.current, sc.planned)

	best, err := mustCreate(t, VariantAdaptiveRestartPoint).Recalculate(context.Background(), sc.current, sc.previous, sc.planned, sc.kind)
	require.NoError(t, err)
	plan := best.Plan()
	require.GreaterOrEqual(t, len(plan), rp.Index)
	for i, e := range rp.Entries[:rp.Index] {
		assert.Equal(t, e.Move, plan[i])
	}
}
