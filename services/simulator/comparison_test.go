// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package simulator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianYard/services/planner/dynamic"
	"github.com/AleutianAI/AleutianYard/services/yard/model"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_SameSeedSameKinds(t *testing.T) {
	a := NewGenerator(NewRand(7), DefaultProbabilities())
	b := NewGenerator(NewRand(7), DefaultProbabilities())
	for i := 0; i < 200; i++ {
		require.Equal(t, a.drawKind(), b.drawKind(), "draw %d", i)
	}
}

func TestGenerator_DegradesToExpectedExecution(t *testing.T) {
	state := solvedState(t)

	miss := NewGenerator(NewRand(1), Probabilities{Missmove: 1})
	assert.Equal(t, dynamic.EventExpectedExecution, miss.Next(state, nil).Kind)

	require.NoError(t, state.Manager().SetBlockGoal(1, model.Void))
	update := NewGenerator(NewRand(1), Probabilities{BlockTargetUpdate: 1})
	assert.Equal(t, dynamic.EventExpectedExecution, update.Next(state, nil).Kind)
}

func TestGenerator_NewBlockUsesNextID(t *testing.T) {
	state := roomyState(t)
	g := NewGenerator(NewRand(3), Probabilities{NewBlock: 1})
	ev := g.Next(state, nil)
	require.Equal(t, dynamic.EventNewBlock, ev.Kind)
	assert.Equal(t, 7, ev.Block.ID)
}

func TestGenerator_TargetUpdatePicksUntargetedBlock(t *testing.T) {
	state := roomyState(t)
	g := NewGenerator(NewRand(11), Probabilities{BlockTargetUpdate: 1})
	for i := 0; i < 20; i++ {
		ev := g.Next(state, nil)
		require.Equal(t, dynamic.EventBlockTargetUpdate, ev.Kind)
		assert.NotContains(t, []int{1, 3}, ev.Block.ID)
		assert.True(t, ev.Block.HasVoidGoal())
	}
}

func TestGenerator_Misplace(t *testing.T) {
	state := roomyState(t)
	crane, ok := state.Manager().PrimaryCrane()
	require.True(t, ok)
	intended := model.Move{
		CraneID:     crane.ID,
		BlockID:     2,
		CraneSource: crane.Current(),
		CraneTarget: pos(3, 0, 0),
		BlockSource: pos(0, 1, 0),
		BlockTarget: pos(3, 0, 0),
	}
	g := NewGenerator(NewRand(5), DefaultProbabilities())
	for i := 0; i < 30; i++ {
		miss := g.Misplace(state, intended)
		assert.NotEqual(t, intended.BlockTarget, miss.BlockTarget)
		assert.False(t, miss.BlockTarget.SameColumn(intended.BlockSource))
		assert.False(t, state.Yard().IsSentinel(miss.BlockTarget))
		assert.Equal(t, miss.BlockTarget, miss.CraneTarget)
		assert.Equal(t, intended.BlockID, miss.BlockID)
	}
}

func TestGenerator_MisplaceWithoutFreeSlot(t *testing.T) {
	// Fill the 2x2x2 yard so the only free column slot is the intended
	// target.
	state := solvedState(t)
	y := state.Yard()
	for i, p := range []model.Position{pos(0, 0, 1), pos(0, 1, 1), pos(1, 0, 0), pos(1, 1, 0), pos(1, 0, 1)} {
		require.NoError(t, y.AddBlock(model.NewBlock(10+i), p))
	}
	intended := model.Move{BlockID: 1, BlockSource: pos(0, 0, 0), BlockTarget: pos(1, 1, 1)}

	g := NewGenerator(NewRand(9), DefaultProbabilities())
	assert.Equal(t, intended, g.Misplace(state, intended))
}

func TestExport_RoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	res := &Result{
		RunID:         "run-1",
		Variant:       dynamic.VariantRepairHeuristic,
		Seed:          1337,
		Status:        StatusCompleted,
		TotalMoveCost: 420,
		FinalBound:    12,
		Stats:         &Stats{TotalEvents: 1, Snapshots: []Snapshot{{EventNumber: 1, Kind: dynamic.EventMissmove, Bound: 12}}},
	}

	for _, path := range []string{"out/result.json", "out/result.json.zst"} {
		t.Run(path, func(t *testing.T) {
			require.NoError(t, WriteJSON(fs, path, res))

			raw, err := afero.ReadFile(fs, path)
			require.NoError(t, err)
			if strings.HasSuffix(path, ".zst") {
				assert.Equal(t, []byte{0x28, 0xb5, 0x2f, 0xfd}, raw[:4])
			} else {
				assert.Contains(t, string(raw), `"variant": "repair_heuristic"`)
			}

			var back Result
			require.NoError(t, ReadJSON(fs, path, &back))
			assert.Equal(t, res.Status, back.Status)
			assert.Equal(t, res.Variant, back.Variant)
			assert.Equal(t, res.TotalMoveCost, back.TotalMoveCost)
			require.Len(t, back.Stats.Snapshots, 1)
			assert.Equal(t, dynamic.EventMissmove, back.Stats.Snapshots[0].Kind)
		})
	}
}

func TestComparison_Run(t *testing.T) {
	runner := NewComparison(roomyState(t),
		WithSimulatorOptions(testOptions()...),
		WithParallelism(2),
		WithComparisonLogger(discard()))
	runner.AddConfigurations([]dynamic.Variant{dynamic.VariantStandard, dynamic.VariantRepairHeuristic}, testConfig(8))

	report, err := runner.Run(context.Background(), 2, true, 100)
	require.NoError(t, err)

	assert.Equal(t, "4x3x3", report.Warehouse.Dimensions)
	assert.Equal(t, 36, report.Warehouse.TotalPositions)
	require.Len(t, report.Configs, 2)
	require.Len(t, report.Runs, 2)
	assert.Equal(t, uint64(100), report.Runs[0].Seed)
	assert.Equal(t, uint64(101), report.Runs[1].Seed)

	for _, run := range report.Runs {
		require.Len(t, run.Results, 2)
		for _, c := range report.Configs {
			summary, ok := run.Results[c.ID]
			require.True(t, ok, c.ID)
			assert.NotEqual(t, StatusFailed, summary.Status, summary.Error)
			assert.Len(t, summary.Snapshots, 8)
			assert.Len(t, summary.BoundChanges, 8)
		}
	}

	// Every configuration starts from the shared initial plan.
	std := report.Runs[0].Results[report.Configs[0].ID]
	rep := report.Runs[0].Results[report.Configs[1].ID]
	assert.Equal(t, std.InitialBound, rep.InitialBound)
}

func TestComparison_NoConfigurations(t *testing.T) {
	_, err := NewComparison(roomyState(t)).Run(context.Background(), 1, false, 1)
	assert.ErrorIs(t, err, ErrNoConfigurations)
}

func TestResolveOutputPath(t *testing.T) {
	got := ResolveOutputPath("results/bw{beam_width}_{dimensions}_s{seed}.json.zst", 2, "4x3x3", 1337)
	assert.Equal(t, "results/bw2_4x3x3_s1337.json.zst", got)
	assert.Equal(t, "plain.json", ResolveOutputPath("plain.json", 2, "1x1x1", 1))
}

func TestSummarize(t *testing.T) {
	stats := NewStats(3)
	stats.Snapshots = []Snapshot{
		{Kind: dynamic.EventNewBlock, Bound: 50, PlannedMoves: 9, Recalculation: &RecalculationInfo{Duration: 4 * time.Millisecond}},
		{Kind: dynamic.EventExpectedExecution, Bound: 40, BoundChange: -10, PlannedMoves: 8},
		{Kind: dynamic.EventNewBlock, Bound: 60, BoundChange: 20, PlannedMoves: 10, Recalculation: &RecalculationInfo{Duration: 2 * time.Millisecond}},
	}
	s := Summarize(&Result{Status: StatusCompleted, FinalBound: 60, Stats: stats})

	assert.Equal(t, map[string]int{"new_block": 2, "expected_execution": 1}, s.EventCounts)
	assert.Equal(t, 2, s.RecalculationCount)
	assert.InDelta(t, 6.0, s.TotalRecalculationMs, 1e-9)
	assert.InDelta(t, 3.0, s.AverageRecalculationMs, 1e-9)
	assert.Equal(t, 50, s.InitialBound)
	assert.Equal(t, 9, s.TotalPlannedMoves)
	assert.Equal(t, 10, s.RemainingPlannedMoves)
	assert.Equal(t, []int{0, -10, 20}, s.BoundChanges)
}
