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
	"strconv"

	"github.com/AleutianAI/AleutianYard/pkg/ux"
	"github.com/AleutianAI/AleutianYard/services/planner"
	"github.com/AleutianAI/AleutianYard/services/simulator"
	"github.com/spf13/cobra"
)

func runSolve(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd, "solve")
	if err != nil {
		return err
	}
	defer a.close()

	l, err := a.loadLayout(args[0])
	if err != nil {
		return err
	}
	svc, err := a.newService(!solveNoCache)
	if err != nil {
		return err
	}

	plan, err := svc.Solve(cmd.Context(), planner.SolveRequest{
		Layout:  l,
		Width:   solveWidth,
		Timeout: solveTimeout,
		NoCache: solveNoCache,
	})
	if err != nil {
		a.printer.Error(err.Error())
		return &exitError{code: 2, err: err}
	}

	a.printer.Title(fmt.Sprintf("Plan for %s (%d moves)", args[0], len(plan.Moves)))
	fmt.Fprint(cmd.OutOrStdout(), a.printer.RenderPlan(planSteps(svc.Calculator(), plan.Moves)))
	fields := []ux.Field{
		{Key: "moves", Value: strconv.Itoa(len(plan.Moves))},
		{Key: "cost", Value: strconv.Itoa(plan.Cost)},
		{Key: "lower bound", Value: strconv.Itoa(plan.Bound)},
		{Key: "cached", Value: strconv.FormatBool(plan.Cached)},
		{Key: "duration", Value: plan.Duration.String()},
	}
	if plan.Stats != nil {
		fields = append(fields, ux.Field{Key: "expanded", Value: strconv.FormatInt(plan.Stats.Expanded, 10)})
	}
	a.printer.KeyValues(fields)

	if solveOut != "" {
		if err := simulator.WriteJSON(a.fs, solveOut, plan); err != nil {
			return err
		}
		a.printer.Success("Plan written to " + solveOut)
	}
	return nil
}
