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

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestBacktracking_ReusesValidPlan(t *testing.T) {
	sc := expectedExecution(t)
	best, err := mustCreate(t, VariantBacktrackingPoint).Recalculate(context.Background(), sc.current, sc.previous, sc.planned, sc.kind)
	require.NoError(t, err)
	if diff := cmp.Diff(sc.planned, best.Plan()); diff != "" {
		t.Errorf("plan changed (-stale +new):\n%s", diff)
	}
}

func TestBacktracking_OverfullQueueUsesStandard(t *testing.T) {
	a := newBlock(t, 3)
	b := newBlock(t, 3)
	require.Greater(t, a.current.Yard().ArrivalCount(), a.current.Manager().Calculator().IdealQueueSize())

	got, err := mustCreate(t, VariantBacktrackingPoint).Recalculate(context.Background(), a.current, a.previous, a.planned, a.kind)
	require.NoError(t, err)
	want, err := mustCreate(t, VariantStandard).Recalculate(context.Background(), b.current, b.previous, b.planned, b.kind)
	require.NoError(t, err)

	if diff := cmp.Diff(want.Plan(), got.Plan()); diff != "" {
		t.Errorf("backtracking should delegate to standard (-standard +backtracking):\n%s", diff)
	}
}

func TestBacktracking_WithinIdealKeepsPrefix(t *testing.T) {
	sc := newBlock(t, 1)
	require.LessOrEqual(t, sc.current.Yard().ArrivalCount(), sc.current.Manager().Calculator().IdealQueueSize())

	best, err := mustCreate(t, VariantBacktrackingPoint).Recalculate(context.Background(), sc.current, sc.previous, sc.planned, sc.kind)
	require.NoError(t, err)
	require.True(t, best.IsTerminal())

	stamped := restamp(sc.current, sc.planned)
	plan := best.Plan()
	require.GreaterOrEqual(t, len(plan), len(stamped))
	if diff := cmp.Diff(stamped, plan[:len(stamped)]); diff != "" {
		t.Errorf("replayed prefix lost (-stamped +plan):\n%s", diff)
	}
}
