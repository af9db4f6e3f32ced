// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianYard/services/planner"
	"github.com/AleutianAI/AleutianYard/services/simulator"
	"github.com/AleutianAI/AleutianYard/services/yard/cost"
	"github.com/AleutianAI/AleutianYard/services/yard/layout"
	"github.com/AleutianAI/AleutianYard/services/yard/manager"
	"github.com/AleutianAI/AleutianYard/services/yard/model"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
yard:
  length: 3
  width: 2
  height: 3
generate:
  fill: 0.4
  target_probability: 0.5
  arrivals: 1
search:
  beam_width: 1
  initial_beam_width: 2
  timeout: 30s
  initial_timeout: 30s
  parallel:
    enabled: false
  observability:
    tracing_enabled: false
    metrics_enabled: false
storage:
  in_memory: true
  cache_size: 8
logging:
  level: error
  dir: ""
`

func useMemFs(t *testing.T) afero.Fs {
	t.Helper()
	prev := appFs
	appFs = afero.NewMemMapFs()
	t.Cleanup(func() { appFs = prev })
	require.NoError(t, afero.WriteFile(appFs, "/yard.yaml", []byte(testConfig), 0o644))
	return appFs
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", "/yard.yaml", "-o", "machine"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestYardView(t *testing.T) {
	y, err := model.NewYard(2, 1, 3)
	require.NoError(t, err)
	mgr, err := manager.NewWithDefaultCrane(y, cost.NewCalculator(cost.DefaultConfig()))
	require.NoError(t, err)
	void := model.Void
	require.NoError(t, mgr.LoadInitialLayout([]manager.LayoutRecord{
		{ID: 1, Position: model.Position{X: 0, Y: 0, Z: 0}, Target: &void},
		{ID: 2, Position: model.Position{X: 0, Y: 1, Z: 0}},
		{ID: 3, Position: model.Position{X: 1, Y: 0, Z: 0}},
		{ID: 4, Position: model.ArrivalFor(2, 1)},
	}))

	v := yardView(y)
	require.Len(t, v.Stacks, 2)
	assert.Equal(t, 3, v.Height)
	require.Len(t, v.Stacks[0], 2)
	assert.True(t, v.Stacks[0][0].VoidBound)
	assert.False(t, v.Stacks[0][0].Blocking)
	assert.True(t, v.Stacks[0][1].Blocking, "block 2 sits on a VOID-bound block")
	assert.False(t, v.Stacks[1][0].Blocking)
	require.Len(t, v.Arrival, 1)
	assert.Equal(t, 4, v.Arrival[0].ID)
}

func TestPlanSteps(t *testing.T) {
	calc := cost.NewCalculator(cost.DefaultConfig())
	mv := model.Move{
		BlockID:     7,
		BlockSource: model.Position{X: 0, Y: 1, Z: 0},
		BlockTarget: model.Position{X: 2, Y: 0, Z: 1},
	}
	steps := planSteps(calc, []model.Move{mv})
	require.Len(t, steps, 1)
	assert.Equal(t, 7, steps[0].BlockID)
	assert.Equal(t, mv.BlockSource.String(), steps[0].From)
	assert.Equal(t, calc.MovementCost(mv), steps[0].Cost)
}

func TestCLI_GenerateShowSolve(t *testing.T) {
	fs := useMemFs(t)

	out, err := runCLI(t, "generate", "--out", "/layout.txt", "--seed", "11")
	require.NoError(t, err, out)
	assert.Contains(t, out, "OK: Wrote")
	exists, err := afero.Exists(fs, "/layout.txt")
	require.NoError(t, err)
	require.True(t, exists)

	out, err = runCLI(t, "show", "/layout.txt")
	require.NoError(t, err, out)
	assert.Contains(t, out, "arrival\t")
	assert.Contains(t, out, "lower bound\t")

	out, err = runCLI(t, "solve", "/layout.txt", "--out", "/plan.json")
	require.NoError(t, err, out)
	assert.Contains(t, out, "cost\t")

	var plan planner.Plan
	require.NoError(t, simulator.ReadJSON(fs, "/plan.json", &plan))
	assert.LessOrEqual(t, plan.Bound, plan.Cost)
}

func TestCLI_Simulate(t *testing.T) {
	fs := useMemFs(t)
	_, err := runCLI(t, "generate", "--out", "/layout.txt", "--seed", "5")
	require.NoError(t, err)

	out, err := runCLI(t, "simulate", "/layout.txt", "--events", "6", "--seed", "3",
		"-v", "move_prioritization", "--out", "/runs/sim_{seed}.json")
	require.NoError(t, err, out)

	var summary simulator.Summary
	require.NoError(t, simulator.ReadJSON(fs, "/runs/sim_3.json", &summary))
	assert.Equal(t, simulator.StatusCompleted, summary.Status)
	assert.Len(t, summary.Snapshots, 6)
}

func TestCLI_Compare(t *testing.T) {
	fs := useMemFs(t)
	_, err := runCLI(t, "generate", "--out", "/layout.txt", "--seed", "9")
	require.NoError(t, err)

	out, err := runCLI(t, "compare", "/layout.txt", "--events", "4", "--seed", "1", "--runs", "2",
		"--variants", "standard,repair_heuristic", "--out", "/cmp_bw{beam_width}.json.zst")
	require.NoError(t, err, out)
	assert.True(t, strings.Contains(out, "standard\t") && strings.Contains(out, "repair_heuristic\t"), out)

	var report simulator.Report
	require.NoError(t, simulator.ReadJSON(fs, "/cmp_bw1.json.zst", &report))
	assert.Len(t, report.Configs, 2)
	require.Len(t, report.Runs, 2)
	assert.Equal(t, uint64(2), report.Runs[1].Seed)
}

func TestCLI_UnknownVariant(t *testing.T) {
	useMemFs(t)
	_, err := runCLI(t, "generate", "--out", "/layout.txt")
	require.NoError(t, err)
	_, err = runCLI(t, "simulate", "/layout.txt", "-v", "greedy")
	require.Error(t, err)
	simVariant = ""
}

func TestCLI_GenerateFlagsOverrideConfig(t *testing.T) {
	fs := useMemFs(t)
	t.Cleanup(func() {
		for _, name := range []string{"fill", "target-prob", "arrivals"} {
			generateCmd.Flags().Lookup(name).Changed = false
		}
		generateFill, generateTargetProb, generateArrivals = 0, 0, 0
	})

	out, err := runCLI(t, "generate", "--out", "/empty.txt", "--fill", "0", "--target-prob", "0", "--arrivals", "2")
	require.NoError(t, err, out)

	records, err := layout.Load(fs, "/empty.txt")
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, model.ArrivalFor(3, 2), r.Position)
		assert.Nil(t, r.Target)
	}

	_, err = runCLI(t, "generate", "--out", "/bad.txt", "--fill", "1.5")
	assert.Error(t, err)
}
