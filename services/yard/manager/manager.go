// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package manager composes a yard, its cranes and a cost calculator into
// the unit the planner searches over. It enumerates and ranks legal moves,
// executes them end to end, and exposes the calls a simulation harness
// uses to load layouts and inject disruptions.
package manager

import (
	"fmt"
	"sort"

	"github.com/AleutianAI/AleutianYard/services/yard/cost"
	"github.com/AleutianAI/AleutianYard/services/yard/model"
)

// Manager owns one yard snapshot plus its cranes. The calculator is shared
// read-only configuration.
//
// Thread Safety: Not safe for concurrent use. Clone per goroutine.
type Manager struct {
	yard   *model.Yard
	cranes []*model.Crane
	calc   *cost.Calculator
}

// New wraps yard with no cranes assigned.
func New(yard *model.Yard, calc *cost.Calculator) *Manager {
	return &Manager{yard: yard, calc: calc}
}

// NewWithDefaultCrane wraps yard and assigns crane 0 to the whole grid,
// parked at (0,0,0).
func NewWithDefaultCrane(yard *model.Yard, calc *cost.Calculator) (*Manager, error) {
	m := New(yard, calc)
	c := model.NewCrane(0, model.Position{}, yard.Arrival())
	lo, hi := DefaultArea(yard)
	if err := m.AssignCrane(c, lo, hi); err != nil {
		return nil, err
	}
	return m, nil
}

// DefaultArea spans every column of yard.
func DefaultArea(yard *model.Yard) (model.Position, model.Position) {
	return model.Position{}, model.Position{X: yard.Length() - 1, Z: yard.Width() - 1}
}

// AssignCrane gives c the rectangle spanned by p1 and p2 and adds it to
// the managed cranes.
//
// Outputs:
//
//	error - ErrAreaOutOfBounds when the rectangle leaves the grid,
//	        ErrDuplicateCrane when the id is taken.
func (m *Manager) AssignCrane(c *model.Crane, p1, p2 model.Position) error {
	if !m.yard.AreaWithinBounds(p1, p2) {
		return fmt.Errorf("%w: crane %d area %s-%s", ErrAreaOutOfBounds, c.ID, p1, p2)
	}
	for _, existing := range m.cranes {
		if existing.ID == c.ID {
			return fmt.Errorf("%w: %d", ErrDuplicateCrane, c.ID)
		}
	}
	c.SetOperationalArea(p1, p2)
	m.cranes = append(m.cranes, c)
	return nil
}

// Yard returns the managed yard. Callers must not mutate it behind the
// manager's back while a search holds the manager.
func (m *Manager) Yard() *model.Yard { return m.yard }

// Calculator returns the shared cost calculator.
func (m *Manager) Calculator() *cost.Calculator { return m.calc }

// Cranes returns the managed cranes.
func (m *Manager) Cranes() []*model.Crane {
	return append([]*model.Crane(nil), m.cranes...)
}

// Crane returns the crane with id.
func (m *Manager) Crane(id int) (*model.Crane, bool) {
	for _, c := range m.cranes {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

// PrimaryCrane returns the first assigned crane. Strategies operate a
// single crane.
func (m *Manager) PrimaryCrane() (*model.Crane, bool) {
	if len(m.cranes) == 0 {
		return nil, false
	}
	return m.cranes[0], true
}

type rankedMove struct {
	move     model.Move
	priority int
}

// AllPossibleMoves enumerates every legal move ordered by ascending
// priority. Ties keep generation order: crane, then accessible block in
// TopBlocks order, then free slot in FreePositions order.
//
// A block only goes to VOID when VOID is its goal, never directly from
// ARRIVAL, and never back onto its own column.
func (m *Manager) AllPossibleMoves() []model.Move {
	y := m.yard
	tops := y.TopBlocks()
	free := y.FreePositions()
	depth := y.ArrivalCount()

	var ranked []rankedMove
	for _, c := range m.cranes {
		for _, id := range tops {
			src, err := y.Position(id)
			if err != nil || !c.IsReachable(src) {
				continue
			}
			fromArrival := y.IsArrival(src)
			var goal *model.Position
			if t, ok := y.Target(id); ok {
				goal = &t
			}
			voidBound := goal != nil && goal.IsVoid()
			belowVoid := m.anyVoidBound(y.BlocksBelow(id))

			for _, tgt := range free {
				if !c.IsReachable(tgt) || tgt.SameColumn(src) {
					continue
				}
				if tgt.IsVoid() && (!voidBound || fromArrival) {
					continue
				}
				mv := model.Move{
					CraneID:      c.ID,
					BlockID:      id,
					CraneSource:  c.Current(),
					CraneTarget:  tgt,
					BlockSource:  src,
					BlockTarget:  tgt,
					ArrivalDepth: depth,
				}
				ranked = append(ranked, rankedMove{
					move:     mv,
					priority: m.calc.Priority(mv, goal, belowVoid, fromArrival),
				})
			}
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].priority < ranked[j].priority })
	out := make([]model.Move, len(ranked))
	for i, r := range ranked {
		out[i] = r.move
	}
	return out
}

func (m *Manager) anyVoidBound(ids []int) bool {
	for _, id := range ids {
		if m.yard.HasVoidGoal(id) {
			return true
		}
	}
	return false
}

// ApplyMove drives the move's crane to the block source, relocates the
// block and parks the crane at the move's crane target.
//
// Outputs:
//
//	error - model.ErrIllegalMove (possibly wrapping ErrUnreachable) when
//	        the crane cannot serve both ends or the yard rejects the
//	        relocation. The yard and crane are unchanged on error.
func (m *Manager) ApplyMove(mv model.Move) error {
	c, ok := m.Crane(mv.CraneID)
	if !ok {
		return fmt.Errorf("%w: unknown crane %d", model.ErrIllegalMove, mv.CraneID)
	}
	if !c.IsReachable(mv.BlockSource) || !c.IsReachable(mv.BlockTarget) {
		return fmt.Errorf("%w: crane %d cannot serve %s", model.ErrUnreachable, c.ID, mv)
	}

	craneSource := c.Current()
	if err := c.TryMoveTo(mv.BlockSource); err != nil {
		return err
	}
	if err := m.yard.ApplyMove(mv); err != nil {
		_ = c.TryMoveTo(craneSource)
		return err
	}
	// A crane target outside the area (replayed foreign move) leaves the
	// crane parked at the block source.
	_ = c.TryMoveTo(mv.CraneTarget)
	return nil
}

// Clone deep-copies the yard and cranes. The calculator is shared.
func (m *Manager) Clone() *Manager {
	c := &Manager{
		yard:   m.yard.Clone(),
		cranes: make([]*model.Crane, len(m.cranes)),
		calc:   m.calc,
	}
	for i, cr := range m.cranes {
		c.cranes[i] = cr.Clone()
	}
	return c
}

// TotalCost prices plan with the shared calculator.
func (m *Manager) TotalCost(plan []model.Move) int {
	return m.calc.TotalCost(plan)
}
