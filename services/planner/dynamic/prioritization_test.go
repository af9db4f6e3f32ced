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
	"testing"

	"github.com/AleutianAI/AleutianYard/services/yard/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mv(block int, src, dst, crane model.Position) model.Move {
	return model.Move{BlockID: block, BlockSource: src, BlockTarget: dst, CraneSource: crane, CraneTarget: dst}
}

func TestSimilarity_Score(t *testing.T) {
	sim, err := newSimilarity(DefaultConfig().Similarity, nil)
	require.NoError(t, err)
	ref := mv(1, pos(0, 0, 0), pos(1, 0, 0), pos(2, 0, 0))

	tests := []struct {
		name string
		m    model.Move
		want float64
	}{
		{"identical", ref, 1.0},
		{"other target", mv(1, pos(0, 0, 0), pos(1, 0, 1), pos(2, 0, 0)), 0.75},
		{"block only", mv(1, pos(0, 1, 0), pos(2, 0, 1), pos(1, 0, 1)), 0.5},
		{"same slots other block", mv(2, pos(0, 0, 0), pos(1, 0, 0), pos(2, 0, 0)), 0.5},
		{"crane only", mv(9, pos(1, 1, 1), pos(0, 1, 1), pos(2, 0, 0)), 0.05},
		{"nothing", mv(9, pos(1, 1, 1), pos(0, 1, 1), pos(0, 0, 0)), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, sim.score(tt.m, ref), 1e-9)
		})
	}
}

func TestSimilarity_WindowAndPlannedKeys(t *testing.T) {
	var planned []model.Move
	for i := 0; i < 8; i++ {
		planned = append(planned, mv(10+i, pos(i%3, 0, 0), pos(i%3, 1, 1), pos(0, 0, 0)))
	}
	sim, err := newSimilarity(DefaultConfig().Similarity, planned)
	require.NoError(t, err)

	// Any planned move scores 1 wherever it sits.
	assert.Equal(t, 1.0, sim.maxSim(planned[7], 0))

	// Shares only the block id with planned[6].
	probe := mv(16, pos(2, 2, 1), pos(2, 2, 0), pos(1, 1, 1))
	assert.Zero(t, sim.maxSim(probe, 0), "planned[6] is outside the first window")
	assert.InDelta(t, 0.5, sim.maxSim(probe, 3), 1e-9)
	assert.Zero(t, sim.maxSim(probe, 8), "window past the plan")

	// Memo entries are per window start.
	assert.Equal(t, 3, sim.memo.Len())
}

func TestSimilarity_Rank(t *testing.T) {
	root := mixedState(t)
	plan := initialPlan(t, root)
	sim, err := newSimilarity(DefaultConfig().Similarity, plan)
	require.NoError(t, err)
	rank := sim.rank(root.HistoryLen(), 10)

	assert.Equal(t, float64(root.Bound()), rank(root), "no moves yet: bound only")

	onPlan := root.Clone()
	require.NoError(t, onPlan.Apply(plan[0]))
	want := float64(onPlan.Bound()) + 10*float64(onPlan.BlockedBlocks()) - 20
	assert.InDelta(t, want, rank(onPlan), 1e-9)

	var offPlan model.Move
	for _, c := range root.Choices() {
		if !model.ContainsAction(plan, c) && c.BlockID != plan[0].BlockID {
			offPlan = c
			break
		}
	}
	require.NotZero(t, offPlan.BlockID)
	child := root.Clone()
	require.NoError(t, child.Apply(offPlan))
	base := float64(child.Bound()) + 10*float64(child.BlockedBlocks())
	assert.LessOrEqual(t, rank(child), base)
	assert.Greater(t, rank(child), base-20)
}
