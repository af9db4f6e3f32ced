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
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/AleutianAI/AleutianYard/pkg/ux"
	"github.com/AleutianAI/AleutianYard/services/yard/cost"
	"github.com/AleutianAI/AleutianYard/services/yard/layout"
	"github.com/AleutianAI/AleutianYard/services/yard/manager"
	"github.com/AleutianAI/AleutianYard/services/yard/model"
	"github.com/spf13/cobra"
)

func runGenerate(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd, "generate")
	if err != nil {
		return err
	}
	defer a.close()

	dims := a.cfg.Yard
	y, err := model.NewYard(dims.Length, dims.Width, dims.Height)
	if err != nil {
		return err
	}
	mgr, err := manager.NewWithDefaultCrane(y, cost.NewCalculator(a.cfg.Cost))
	if err != nil {
		return err
	}
	opts := a.cfg.Generate
	flags := cmd.Flags()
	if flags.Changed("fill") {
		opts.Fill = generateFill
	}
	if flags.Changed("target-prob") {
		opts.TargetProbability = generateTargetProb
	}
	if flags.Changed("arrivals") {
		opts.Arrivals = generateArrivals
	}
	rng := rand.New(rand.NewPCG(generateSeed, generateSeed))
	if err := layout.Generate(rng, mgr, opts); err != nil {
		return fmt.Errorf("generating layout: %w", err)
	}
	if err := layout.Save(a.fs, generateOut, mgr); err != nil {
		return err
	}

	a.logger.Info("layout generated",
		"path", generateOut,
		"dimensions", y.Dimensions(),
		"blocks", len(y.BlockIDs()),
		"seed", generateSeed)
	a.printer.Success(fmt.Sprintf("Wrote %d blocks (%s) to %s", len(y.BlockIDs()), y.Dimensions(), generateOut))
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd, "show")
	if err != nil {
		return err
	}
	defer a.close()

	state, err := a.loadState(args[0])
	if err != nil {
		return err
	}
	y := state.Yard()
	a.printer.Title(fmt.Sprintf("Yard %s", y.Dimensions()))
	fmt.Fprintln(cmd.OutOrStdout(), a.printer.RenderYard(yardView(y)))

	t := state.Manager().Telemetry()
	voidBound := 0
	for _, id := range y.RemainingBlocks() {
		if y.HasVoidGoal(id) {
			voidBound++
		}
	}
	a.printer.KeyValues([]ux.Field{
		{Key: "blocks", Value: strconv.Itoa(len(y.RemainingBlocks()))},
		{Key: "void-bound", Value: strconv.Itoa(voidBound)},
		{Key: "blocked", Value: strconv.Itoa(t.BlockedBlocks)},
		{Key: "utilization", Value: fmt.Sprintf("%.1f%%", t.WarehouseUtilization*100)},
		{Key: "lower bound", Value: strconv.Itoa(state.Bound())},
	})
	return nil
}
