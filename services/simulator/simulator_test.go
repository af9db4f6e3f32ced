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
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianYard/services/planner/dynamic"
	"github.com/AleutianAI/AleutianYard/services/planner/search"
	"github.com/AleutianAI/AleutianYard/services/yard/cost"
	"github.com/AleutianAI/AleutianYard/services/yard/manager"
	"github.com/AleutianAI/AleutianYard/services/yard/model"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pos(x, y, z int) model.Position { return model.Position{X: x, Y: y, Z: z} }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func voidGoal() *model.Position {
	v := model.Void
	return &v
}

// roomyState is a 4x3x3 yard with two buried VOID-bound blocks and one
// arrival.
func roomyState(t testing.TB) *search.State {
	t.Helper()
	y, err := model.NewYard(4, 3, 3)
	require.NoError(t, err)
	m, err := manager.NewWithDefaultCrane(y, cost.NewCalculator(cost.DefaultConfig()))
	require.NoError(t, err)
	require.NoError(t, m.LoadInitialLayout([]manager.LayoutRecord{
		{ID: 1, Position: pos(0, 0, 0), Target: voidGoal()},
		{ID: 2, Position: pos(0, 1, 0)},
		{ID: 3, Position: pos(1, 0, 1), Target: voidGoal()},
		{ID: 4, Position: pos(1, 1, 1)},
		{ID: 5, Position: pos(2, 0, 2)},
	}))
	require.NoError(t, m.AddArrival(model.NewBlock(6)))
	return search.NewState(m)
}

func solvedState(t testing.TB) *search.State {
	t.Helper()
	y, err := model.NewYard(2, 2, 2)
	require.NoError(t, err)
	m, err := manager.NewWithDefaultCrane(y, cost.NewCalculator(cost.DefaultConfig()))
	require.NoError(t, err)
	require.NoError(t, m.LoadInitialLayout([]manager.LayoutRecord{{ID: 1, Position: pos(0, 0, 0)}}))
	return search.NewState(m)
}

func testSearchConfig() search.Config {
	cfg := search.DefaultConfig()
	cfg.Parallel.Enabled = false
	cfg.Observability.TracingEnabled = false
	cfg.Observability.MetricsEnabled = false
	return cfg
}

func testConfig(events int) Config {
	cfg := DefaultConfig()
	cfg.TotalEvents = events
	cfg.InitialBeamWidth = 3
	cfg.DynamicTimeout = 30 * time.Second
	cfg.InitialTimeout = 30 * time.Second
	return cfg
}

func testOptions(extra ...Option) []Option {
	return append([]Option{WithLogger(discard()), WithSearchConfig(testSearchConfig())}, extra...)
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no events", func(c *Config) { c.TotalEvents = 0 }},
		{"zero probabilities", func(c *Config) { c.Probabilities = Probabilities{} }},
		{"negative weight", func(c *Config) { c.Probabilities.Missmove = -1 }},
		{"zero width", func(c *Config) { c.BeamWidth = 0 }},
		{"unknown variant", func(c *Config) { c.Variant = dynamic.Variant(99) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestProbabilities_String(t *testing.T) {
	assert.Equal(t,
		"expected_execution-0.4_new_block-0.2_missmove-0.2_block_target_update-0.2",
		DefaultProbabilities().String())
}

func TestSimulator_RunCompletes(t *testing.T) {
	var observed []Snapshot
	sim, err := New(roomyState(t), testConfig(25), testOptions(
		WithObserver(ObserverFunc(func(_ context.Context, runID string, snap Snapshot) {
			assert.NotEmpty(t, runID)
			observed = append(observed, snap)
		})),
	)...)
	require.NoError(t, err)

	res, err := sim.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, sim.RunID(), res.RunID)
	require.Len(t, res.Stats.Snapshots, 25)
	assert.Len(t, observed, 25)

	for i, snap := range res.Stats.Snapshots {
		assert.Equal(t, i+1, snap.EventNumber)
		if snap.Recalculation != nil {
			assert.Equal(t, snap.PlannedMoves, snap.Recalculation.PlanLength)
		}
	}
	last, _ := res.Stats.Last()
	assert.Equal(t, res.FinalBound, last.Bound)
	assert.Equal(t, len(res.ExecutedMoves), last.TotalMoves)
	assert.Equal(t, sim.Current().Manager().TotalCost(res.ExecutedMoves), res.TotalMoveCost)
}

func TestSimulator_Deterministic(t *testing.T) {
	run := func() *Result {
		sim, err := New(roomyState(t), testConfig(20), testOptions(WithRunID("fixed"))...)
		require.NoError(t, err)
		res, err := sim.Run(context.Background())
		require.NoError(t, err)
		return res
	}
	a, b := run(), run()
	if diff := cmp.Diff(a.ExecutedMoves, b.ExecutedMoves); diff != "" {
		t.Errorf("executed moves differ between identical runs (-a +b):\n%s", diff)
	}
	assert.Equal(t, a.Stats.EventCounts(), b.Stats.EventCounts())
	assert.Equal(t, a.TotalMoveCost, b.TotalMoveCost)
}

func TestSimulator_SkipsWhenSolved(t *testing.T) {
	cfg := testConfig(5)
	cfg.Probabilities = Probabilities{ExpectedExecution: 1}
	sim, err := New(solvedState(t), cfg, testOptions()...)
	require.NoError(t, err)

	res, err := sim.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	require.Len(t, res.Stats.Snapshots, 5)
	for _, snap := range res.Stats.Snapshots {
		assert.True(t, snap.Skipped)
		assert.Nil(t, snap.Move)
	}
	assert.Empty(t, res.ExecutedMoves)
}

func TestSimulator_TargetUpdateReplans(t *testing.T) {
	cfg := testConfig(1)
	cfg.Probabilities = Probabilities{BlockTargetUpdate: 1}
	sim, err := New(solvedState(t), cfg, testOptions()...)
	require.NoError(t, err)

	res, err := sim.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Stats.Snapshots, 1)
	snap := res.Stats.Snapshots[0]
	assert.Equal(t, dynamic.EventBlockTargetUpdate, snap.Kind)
	require.NotNil(t, snap.Recalculation)
	assert.Positive(t, snap.Recalculation.PlanLength)
	assert.True(t, sim.Current().Yard().HasVoidGoal(1))
}

func TestSimulator_OverflowTerminates(t *testing.T) {
	y, err := model.NewYard(1, 1, 1)
	require.NoError(t, err)
	m, err := manager.NewWithDefaultCrane(y, cost.NewCalculator(cost.DefaultConfig()))
	require.NoError(t, err)
	for id := 1; id <= 5; id++ {
		require.NoError(t, m.AddArrival(model.NewBlock(id)))
	}

	sim, err := New(search.NewState(m), testConfig(10), testOptions(WithInitialPlan(nil))...)
	require.NoError(t, err)
	res, err := sim.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusTerminated, res.Status)
	assert.Empty(t, res.Stats.Snapshots)
}

func TestSimulator_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sim, err := New(roomyState(t), testConfig(10), testOptions(WithInitialPlan(nil))...)
	require.NoError(t, err)
	res, err := sim.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusTerminated, res.Status)
}

func TestSimulator_FailsOnIllegalPlan(t *testing.T) {
	bogus := model.Move{BlockID: 42, BlockSource: pos(3, 0, 2), BlockTarget: model.Void}
	cfg := testConfig(3)
	cfg.Probabilities = Probabilities{ExpectedExecution: 1}

	sim, err := New(roomyState(t), cfg, testOptions(WithInitialPlan([]model.Move{bogus}))...)
	require.NoError(t, err)
	res, err := sim.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrIllegalMove) || errors.Is(err, model.ErrNotFound), err.Error())
	assert.Equal(t, StatusFailed, res.Status)
	assert.NotEmpty(t, res.Error)
}

func TestSimulator_FakeClockTimestamps(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC))
	cfg := testConfig(3)
	cfg.Probabilities = Probabilities{ExpectedExecution: 1}
	sim, err := New(solvedState(t), cfg, testOptions(WithClock(clock))...)
	require.NoError(t, err)

	res, err := sim.Run(context.Background())
	require.NoError(t, err)
	for _, snap := range res.Stats.Snapshots {
		assert.True(t, snap.Timestamp.Equal(clock.Now()))
	}
	assert.Zero(t, res.Runtime)
}

func TestStatus_Text(t *testing.T) {
	for _, s := range []Status{StatusFailed, StatusCompleted, StatusTerminated} {
		text, err := s.MarshalText()
		require.NoError(t, err)
		var back Status
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, s, back)
	}
	var s Status
	assert.Error(t, s.UnmarshalText([]byte("paused")))
}
