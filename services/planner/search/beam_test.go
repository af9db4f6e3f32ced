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
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianYard/services/yard/model"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBeam(parallel bool, opts ...BeamOption) *Beam {
	cfg := DefaultConfig()
	cfg.Parallel.Enabled = parallel
	cfg.Observability.TracingEnabled = false
	cfg.Observability.MetricsEnabled = false
	opts = append([]BeamOption{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return NewBeam(cfg, opts...)
}

func standardRequest(width int) Request {
	return Request{Width: width, Timeout: 30 * time.Second, Rank: StandardRank(10), Label: "test"}
}

func TestBeam_SolvesABCScenario(t *testing.T) {
	root := abcState(t)
	res, err := testBeam(false).Search(context.Background(), root, standardRequest(3))
	require.NoError(t, err)

	best := res.Best
	assert.True(t, best.IsTerminal())
	plan := best.Plan()
	require.GreaterOrEqual(t, len(plan), 2, "B is buried under C")
	assert.NotEqual(t, 2, plan[0].BlockID)
	assert.Equal(t, 2, plan[len(plan)-1].BlockID)
	assert.Equal(t, model.Void, plan[len(plan)-1].BlockTarget)
	assert.Equal(t, best.AccumulatedCost(), best.Bound(), "bound is exact on terminal states")
	assert.Zero(t, root.HistoryLen(), "root must not be mutated")
}

func TestBeam_TerminalRoot(t *testing.T) {
	root := NewState(newManager(t, 2, 1, 2, rec(1, pos(0, 0, 0), false)))
	res, err := testBeam(false).Search(context.Background(), root, standardRequest(2))
	require.NoError(t, err)
	assert.Empty(t, res.Best.Plan())
}

func TestBeam_DeterministicAcrossRunsAndParallelism(t *testing.T) {
	req := standardRequest(2)

	serial, err := testBeam(false).Search(context.Background(), mixedState(t), req)
	require.NoError(t, err)
	again, err := testBeam(false).Search(context.Background(), mixedState(t), req)
	require.NoError(t, err)
	parallel, err := testBeam(true).Search(context.Background(), mixedState(t), req)
	require.NoError(t, err)

	assert.Equal(t, serial.Best.AccumulatedCost(), again.Best.AccumulatedCost())
	if diff := cmp.Diff(serial.Best.Plan(), parallel.Best.Plan()); diff != "" {
		t.Errorf("parallel plan differs (-serial +parallel):\n%s", diff)
	}
	assert.True(t, parallel.Best.IsTerminal())
}

func TestBeam_DeadlineWithoutSolution(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rank := func(s *State) float64 {
		clock.Advance(time.Minute)
		return float64(s.Bound())
	}
	req := Request{Width: 1, Timeout: time.Second, Rank: rank, Label: "deadline"}

	res, err := testBeam(false, WithClock(clock)).Search(context.Background(), abcState(t), req)
	assert.ErrorIs(t, err, ErrNoSolutionInBudget)
	assert.Nil(t, res)
}

func TestBeam_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testBeam(false).Search(ctx, abcState(t), standardRequest(2))
	assert.ErrorIs(t, err, ErrNoSolutionInBudget)
}

func TestBeam_InvalidRequest(t *testing.T) {
	_, err := testBeam(false).Search(context.Background(), abcState(t), Request{Width: 0, Rank: BoundRank})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = testBeam(false).Search(context.Background(), abcState(t), Request{Width: 1})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestBeam_Stats(t *testing.T) {
	res, err := testBeam(true).Search(context.Background(), mixedState(t), standardRequest(3))
	require.NoError(t, err)
	assert.Positive(t, res.Stats.Rounds)
	assert.Positive(t, res.Stats.Expanded)
	assert.False(t, res.Stats.TimedOut)
}

func TestStandardRank_IgnoresBlockedAtRoot(t *testing.T) {
	s := abcState(t)
	rank := StandardRank(10)
	assert.Equal(t, float64(s.Bound()), rank(s))

	require.NoError(t, s.Apply(s.Choices()[0]))
	assert.Equal(t, float64(s.Bound()+10*s.BlockedBlocks()), rank(s))
}
