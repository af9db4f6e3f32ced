// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package layout

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianYard/services/yard/cost"
	"github.com/AleutianAI/AleutianYard/services/yard/manager"
	"github.com/AleutianAI/AleutianYard/services/yard/model"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, l, w, h int) *manager.Manager {
	t.Helper()
	y, err := model.NewYard(l, w, h)
	require.NoError(t, err)
	m, err := manager.NewWithDefaultCrane(y, cost.NewCalculator(cost.DefaultConfig()))
	require.NoError(t, err)
	return m
}

const sample = `# 2x2x3 yard
1,0,0,0,None
2,0,1,0,-1,0,-1
3,1,0,1,None
4,-1,0,-1,-1,0,-1

5,2,0,2,None
6,2,0,2,-1,0,-1
`

func TestParse(t *testing.T) {
	records, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, records, 6)

	assert.Equal(t, 2, records[1].ID)
	require.NotNil(t, records[1].Target)
	assert.True(t, records[1].Target.IsVoid())
	assert.Nil(t, records[0].Target)
	assert.Equal(t, model.Position{X: 2, Y: 0, Z: 2}, records[4].Position)
}

func TestParse_Malformed(t *testing.T) {
	tests := map[string]string{
		"too few fields": "1,0,0\n",
		"bad number":     "1,a,0,0,None\n",
		"bad none":       "1,0,0,0,Nothing\n",
		"six fields":     "1,0,0,0,1,1\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(in))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestLoad_IntoManager(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "input/layout.txt", []byte(sample), 0o644))

	records, err := Load(fs, "input/layout.txt")
	require.NoError(t, err)

	m := newManager(t, 2, 2, 3)
	require.NoError(t, m.LoadInitialLayout(records))
	y := m.Yard()
	assert.Equal(t, []int{1, 2}, y.Stack(0, 0))
	assert.Equal(t, []int{4}, y.VoidBlocks())
	assert.Equal(t, []int{5, 6}, y.ArrivalQueue())
	assert.True(t, y.HasVoidGoal(6))
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(afero.NewMemMapFs(), "nope.txt")
	assert.Error(t, err)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	m := newManager(t, 3, 2, 3)
	require.NoError(t, Generate(rand.New(rand.NewPCG(7, 7)), m, DefaultGenerateOptions()))

	fs := afero.NewMemMapFs()
	require.NoError(t, Save(fs, "out/layout.txt", m))

	records, err := Load(fs, "out/layout.txt")
	require.NoError(t, err)
	if diff := cmp.Diff(Export(m), records); diff != "" {
		t.Errorf("round trip mismatch (-saved +loaded):\n%s", diff)
	}

	reloaded := newManager(t, 3, 2, 3)
	require.NoError(t, reloaded.LoadInitialLayout(records))
	assert.Equal(t, m.Yard().Digest(), reloaded.Yard().Digest())
}

func TestGenerate(t *testing.T) {
	m := newManager(t, 3, 3, 4)
	opts := GenerateOptions{Fill: 0.5, TargetProbability: 1, Arrivals: 3}
	require.NoError(t, Generate(rand.New(rand.NewPCG(1, 2)), m, opts))

	y := m.Yard()
	assert.Equal(t, 18, y.OccupiedPositions())
	assert.Equal(t, 3, y.ArrivalCount())
	for x := 0; x < 3; x++ {
		for z := 0; z < 3; z++ {
			for _, id := range y.Stack(x, z) {
				assert.True(t, y.HasVoidGoal(id), "block %d", id)
			}
		}
	}
	assert.Equal(t, 21, y.MaxBlockID())
}

func TestGenerate_Deterministic(t *testing.T) {
	a := newManager(t, 4, 3, 3)
	b := newManager(t, 4, 3, 3)
	opts := DefaultGenerateOptions()
	require.NoError(t, Generate(rand.New(rand.NewPCG(42, 0)), a, opts))
	require.NoError(t, Generate(rand.New(rand.NewPCG(42, 0)), b, opts))
	assert.Equal(t, a.Yard().Digest(), b.Yard().Digest())
}

func TestGenerate_Errors(t *testing.T) {
	m := newManager(t, 1, 1, 2)
	require.NoError(t, m.LoadInitialLayout([]manager.LayoutRecord{{ID: 1, Position: model.Position{}}}))
	err := Generate(rand.New(rand.NewPCG(1, 1)), m, GenerateOptions{Fill: 1})
	assert.ErrorIs(t, err, ErrYardFull)

	err = Generate(rand.New(rand.NewPCG(1, 1)), newManager(t, 2, 2, 2), GenerateOptions{Fill: 1.5})
	assert.Error(t, err)
}
