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
	"testing"

	"github.com/AleutianAI/AleutianYard/services/yard/cost"
	"github.com/AleutianAI/AleutianYard/services/yard/manager"
	"github.com/AleutianAI/AleutianYard/services/yard/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pos(x, y, z int) model.Position { return model.Position{X: x, Y: y, Z: z} }

// newManager builds a manager with the default crane over an l×w×h yard
// and loads records.
func newManager(t testing.TB, l, w, h int, records ...manager.LayoutRecord) *manager.Manager {
	t.Helper()
	y, err := model.NewYard(l, w, h)
	require.NoError(t, err)
	m, err := manager.NewWithDefaultCrane(y, cost.NewCalculator(cost.DefaultConfig()))
	require.NoError(t, err)
	require.NoError(t, m.LoadInitialLayout(records))
	return m
}

func rec(id int, p model.Position, voidBound bool) manager.LayoutRecord {
	r := manager.LayoutRecord{ID: id, Position: p}
	if voidBound {
		v := model.Void
		r.Target = &v
	}
	return r
}

// abcState is a 2x1x3 yard whose first column holds A(1), B(2, VOID-bound)
// and C(3), bottom to top.
func abcState(t testing.TB) *State {
	return NewState(newManager(t, 2, 1, 3,
		rec(1, pos(0, 0, 0), false),
		rec(2, pos(0, 1, 0), true),
		rec(3, pos(0, 2, 0), false),
	))
}

// mixedState is a 3x2x3 yard with buried VOID-bound blocks and a queue.
func mixedState(t testing.TB) *State {
	m := newManager(t, 3, 2, 3,
		rec(1, pos(0, 0, 0), true),
		rec(2, pos(0, 1, 0), false),
		rec(3, pos(0, 2, 0), true),
		rec(4, pos(1, 0, 1), false),
		rec(5, pos(1, 1, 1), true),
		rec(6, pos(2, 0, 0), false),
	)
	require.NoError(t, m.AddArrival(model.NewBlock(7)))
	require.NoError(t, m.AddArrival(model.NewBlock(8, model.TargetPosition{Target: model.Void})))
	return NewState(m)
}

func TestState_ApplyUndoRoundTrip(t *testing.T) {
	s := mixedState(t)
	for _, m := range s.Choices() {
		before := s.Yard().Digest()
		crane, _ := s.Manager().PrimaryCrane()
		craneBefore := crane.Current()
		boundBefore := s.Bound()

		require.NoError(t, s.Apply(m), "apply %s", m)
		undone, err := s.UndoLast()
		require.NoError(t, err)

		assert.Equal(t, m, undone)
		assert.Equal(t, before, s.Yard().Digest(), "digest after undoing %s", m)
		assert.Equal(t, craneBefore, crane.Current())
		assert.Equal(t, boundBefore, s.Bound())
		assert.Zero(t, s.HistoryLen())
		assert.Zero(t, s.AccumulatedCost())
	}
}

func TestState_ArrivalUndoRestoresOrder(t *testing.T) {
	m := newManager(t, 2, 1, 2)
	require.NoError(t, m.AddArrival(model.NewBlock(1)))
	require.NoError(t, m.AddArrival(model.NewBlock(2)))
	s := NewState(m)

	var first model.Move
	for _, c := range s.Choices() {
		if c.BlockID == 1 {
			first = c
			break
		}
	}
	require.Equal(t, 1, first.BlockID)
	require.NoError(t, s.Apply(first))
	assert.Equal(t, []int{2}, s.Yard().ArrivalQueue())

	_, err := s.UndoLast()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, s.Yard().ArrivalQueue())
}

func TestState_ApplyFailureLeavesStateUnchanged(t *testing.T) {
	s := abcState(t)
	before := s.Yard().Digest()
	bad := model.Move{BlockID: 2, BlockSource: pos(0, 1, 0), BlockTarget: model.Void, CraneTarget: model.Void}

	err := s.Apply(bad)
	assert.ErrorIs(t, err, model.ErrIllegalMove)
	assert.Zero(t, s.HistoryLen())
	assert.Equal(t, before, s.Yard().Digest())

	_, err = s.UndoLast()
	assert.ErrorIs(t, err, ErrEmptyHistory)
}

func TestState_CloneIsolation(t *testing.T) {
	s := mixedState(t)
	before := s.Yard().Digest()
	c := s.Clone()

	for i := 0; i < 3; i++ {
		choices := c.Choices()
		require.NotEmpty(t, choices)
		require.NoError(t, c.Apply(choices[0]))
	}
	require.NoError(t, c.Manager().SetBlockGoal(2, model.Void))

	assert.Equal(t, before, s.Yard().Digest())
	assert.Zero(t, s.HistoryLen())
	assert.False(t, s.Yard().HasVoidGoal(2))
	assert.False(t, s.Visited(c.Yard().Digest()))
}

func TestState_ChoicesSkipVisited(t *testing.T) {
	s := abcState(t)
	choices := s.Choices()
	require.NotEmpty(t, choices)
	require.NoError(t, s.Apply(choices[0]))

	// Moving C back would recreate the root digest.
	for _, c := range s.Choices() {
		if c.BlockID == choices[0].BlockID {
			assert.NotEqual(t, pos(0, 2, 0), c.BlockTarget, "choice returns to the root layout")
		}
	}
}

func TestState_ResetKeepsLayout(t *testing.T) {
	s := abcState(t)
	require.NoError(t, s.Apply(s.Choices()[0]))
	digest := s.Yard().Digest()

	s.Reset()
	assert.Zero(t, s.HistoryLen())
	assert.Empty(t, s.Plan())
	assert.Equal(t, digest, s.Yard().Digest())
	assert.True(t, s.Visited(digest))
}
