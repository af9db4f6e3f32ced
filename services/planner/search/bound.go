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
	"github.com/AleutianAI/AleutianYard/services/yard/model"
)

// Bound returns the accumulated cost plus an admissible estimate of the
// remaining cost. The value is cached until the next Apply or UndoLast.
//
// The estimate counts every block at most once:
//   - an ARRIVAL block needs one relocation out of the queue, and a second
//     one if it is VOID-bound, since ARRIVAL never feeds VOID directly;
//   - a VOID-bound block in a column needs handling plus its distance to
//     VOID, and every not yet counted block above it needs one more
//     relocation (a VOID trip when the blocker is itself VOID-bound);
//   - the next move pays the arrival excess penalty for the current queue.
func (s *State) Bound() int {
	if s.boundValid {
		return s.bound
	}
	s.bound = s.computeBound()
	s.boundValid = true
	return s.bound
}

func (s *State) computeBound() int {
	y := s.mgr.Yard()
	calc := s.mgr.Calculator()
	handling := calc.HandlingCost()
	rate := calc.Rate()
	relocation := handling + rate

	voidCost := func(id int) int {
		p, err := y.Position(id)
		if err != nil {
			return handling
		}
		return handling + model.Manhattan(p, model.Void)*rate
	}

	bound := s.cost + calc.ExcessPenalty(y.ArrivalCount())
	accounted := make(map[int]struct{})

	for _, id := range y.ArrivalQueue() {
		bound += relocation
		if y.HasVoidGoal(id) {
			bound += relocation
		}
		accounted[id] = struct{}{}
	}

	for _, id := range y.RemainingBlocks() {
		if _, done := accounted[id]; done || !y.HasVoidGoal(id) {
			continue
		}
		bound += voidCost(id)
		accounted[id] = struct{}{}
		for _, above := range y.BlocksAbove(id) {
			if _, done := accounted[above]; done {
				continue
			}
			accounted[above] = struct{}{}
			if y.HasVoidGoal(above) {
				bound += voidCost(above)
			} else {
				bound += relocation
			}
		}
	}
	return bound
}
