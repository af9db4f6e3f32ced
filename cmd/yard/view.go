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
	"github.com/AleutianAI/AleutianYard/pkg/ux"
	"github.com/AleutianAI/AleutianYard/services/yard/cost"
	"github.com/AleutianAI/AleutianYard/services/yard/model"
)

// yardView converts y for rendering.
func yardView(y *model.Yard) ux.YardView {
	v := ux.YardView{
		Length: y.Length(),
		Width:  y.Width(),
		Height: y.Height(),
		Stacks: make([][]ux.Cell, y.Length()*y.Width()),
	}
	for x := 0; x < y.Length(); x++ {
		for z := 0; z < y.Width(); z++ {
			ids := y.Stack(x, z)
			cells := make([]ux.Cell, len(ids))
			blocking := false
			for i, id := range ids {
				cells[i] = ux.Cell{ID: id, VoidBound: y.HasVoidGoal(id), Blocking: blocking}
				if cells[i].VoidBound {
					blocking = true
				}
			}
			v.Stacks[x*y.Width()+z] = cells
		}
	}
	for _, id := range y.ArrivalQueue() {
		v.Arrival = append(v.Arrival, ux.Cell{ID: id, VoidBound: y.HasVoidGoal(id)})
	}
	return v
}

// planSteps prices each move of plan.
func planSteps(calc *cost.Calculator, plan []model.Move) []ux.PlanStep {
	steps := make([]ux.PlanStep, len(plan))
	for i, m := range plan {
		steps[i] = ux.PlanStep{
			BlockID: m.BlockID,
			From:    m.BlockSource.String(),
			To:      m.BlockTarget.String(),
			Cost:    calc.MovementCost(m),
		}
	}
	return steps
}
