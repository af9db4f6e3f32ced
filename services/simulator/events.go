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
	"math/rand/v2"

	"github.com/AleutianAI/AleutianYard/services/planner/dynamic"
	"github.com/AleutianAI/AleutianYard/services/planner/search"
	"github.com/AleutianAI/AleutianYard/services/yard/model"
)

// Event is one generated operational occurrence.
type Event struct {
	Kind dynamic.EventKind

	// Block is the arriving block (NewBlock) or the block whose goal
	// changes (BlockTargetUpdate).
	Block *model.Block

	// Move is the executed off-plan move (Missmove).
	Move model.Move
}

// Generator draws events from weighted kinds with its own source.
//
// Thread Safety: Not safe for concurrent use.
type Generator struct {
	rng     *rand.Rand
	weights []weightedKind
	total   float64
}

// NewGenerator creates a Generator drawing from rng.
func NewGenerator(rng *rand.Rand, p Probabilities) *Generator {
	return &Generator{rng: rng, weights: p.weights(), total: p.Total()}
}

// NewRand returns the PCG source used for a run with seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

// drawKind maps a uniform draw over the total weight to a kind.
func (g *Generator) drawKind() dynamic.EventKind {
	r := g.rng.Float64() * g.total
	cumulative := 0.0
	for _, w := range g.weights {
		cumulative += w.weight
		if r <= cumulative && w.weight > 0 {
			return w.kind
		}
	}
	return dynamic.EventExpectedExecution
}

// Next draws the next event for current and its plan. Kinds that cannot
// be realised degrade to an expected execution.
func (g *Generator) Next(current *search.State, planned []model.Move) Event {
	switch g.drawKind() {
	case dynamic.EventNewBlock:
		return g.newBlock(current)
	case dynamic.EventMissmove:
		if len(planned) == 0 {
			break
		}
		return Event{Kind: dynamic.EventMissmove, Move: g.Misplace(current, planned[0])}
	case dynamic.EventBlockTargetUpdate:
		if ev, ok := g.targetUpdate(current); ok {
			return ev
		}
	}
	return Event{Kind: dynamic.EventExpectedExecution}
}

func (g *Generator) newBlock(current *search.State) Event {
	return Event{
		Kind:  dynamic.EventNewBlock,
		Block: model.NewBlock(current.Manager().NextBlockID()),
	}
}

// targetUpdate picks a random remaining block without a goal and gives it
// a VOID goal.
func (g *Generator) targetUpdate(current *search.State) (Event, bool) {
	y := current.Yard()
	var candidates []int
	for _, id := range y.RemainingBlocks() {
		if _, ok := y.Target(id); !ok {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return Event{}, false
	}
	id := candidates[g.rng.IntN(len(candidates))]
	return Event{
		Kind:  dynamic.EventBlockTargetUpdate,
		Block: model.NewBlock(id, model.TargetPosition{Target: model.Void}),
	}, true
}

// Misplace returns intended executed to a random free column slot that is
// neither its target nor on its source column. When no such slot exists
// the intended move itself is returned.
func (g *Generator) Misplace(current *search.State, intended model.Move) model.Move {
	y := current.Yard()
	crane, hasCrane := current.Manager().Crane(intended.CraneID)
	var free []model.Position
	for _, p := range y.FreePositions() {
		if y.IsSentinel(p) || p == intended.BlockTarget || p.SameColumn(intended.BlockSource) {
			continue
		}
		if hasCrane && !crane.IsReachable(p) {
			continue
		}
		free = append(free, p)
	}
	if len(free) == 0 {
		return intended
	}
	p := free[g.rng.IntN(len(free))]
	miss := intended
	miss.CraneTarget = p
	miss.BlockTarget = p
	return miss
}
