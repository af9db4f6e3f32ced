// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package manager

import (
	"fmt"
	"sort"

	"github.com/AleutianAI/AleutianYard/services/yard/model"
)

// LayoutRecord places one block at load time. A nil Target means the block
// has no finishing goal.
type LayoutRecord struct {
	ID       int             `json:"id" validate:"gte=0"`
	Position model.Position  `json:"position"`
	Target   *model.Position `json:"target,omitempty"`
}

// LoadInitialLayout adds every record to the yard. Records are applied in
// ascending height so each column fills bottom up; ARRIVAL records keep
// their relative order and enqueue.
func (m *Manager) LoadInitialLayout(records []LayoutRecord) error {
	ordered := append([]LayoutRecord(nil), records...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Position.Y < ordered[j].Position.Y
	})
	for _, r := range ordered {
		b := model.NewBlock(r.ID)
		if r.Target != nil {
			b.AddCriterion(model.TargetPosition{Target: *r.Target})
		}
		if err := m.yard.AddBlock(b, r.Position); err != nil {
			return fmt.Errorf("load block %d at %s: %w", r.ID, r.Position, err)
		}
	}
	return nil
}

// AddArrival enqueues a new block.
func (m *Manager) AddArrival(b *model.Block) error {
	return m.yard.Enqueue(b)
}

// NextBlockID returns one past the largest id in the yard.
func (m *Manager) NextBlockID() int {
	return m.yard.MaxBlockID() + 1
}

// InjectDisruption executes an off-plan move through the normal path.
func (m *Manager) InjectDisruption(mv model.Move) error {
	return m.ApplyMove(mv)
}

// SetBlockGoal attaches a target criterion to block id.
func (m *Manager) SetBlockGoal(id int, target model.Position) error {
	return m.yard.AddCriterion(id, model.TargetPosition{Target: target})
}

// Telemetry is a read-only snapshot of yard health metrics.
type Telemetry struct {
	WarehouseUtilization    float64     `json:"warehouse_utilization"`
	ArrivalDepth            int         `json:"arrival_depth"`
	IdealArrivalDepth       int         `json:"ideal_arrival_depth"`
	BlockedBlocks           int         `json:"blocked_blocks"`
	EmptyStacks             int         `json:"empty_stacks"`
	AverageStackHeight      float64     `json:"average_stack_height"`
	StackHeightDistribution map[int]int `json:"stack_height_distribution"`
	RemainingBlocks         int         `json:"remaining_blocks"`
	TotalPositions          int         `json:"total_positions"`
	Dimensions              string      `json:"dimensions"`
}

// Telemetry reports current metrics. Utilization counts blocks not yet in
// VOID against column capacity plus the ideal queue depth, so it exceeds 1
// only when the yard is overfull.
func (m *Manager) Telemetry() Telemetry {
	y := m.yard
	remaining := len(y.RemainingBlocks())
	ideal := m.calc.IdealQueueSize()
	return Telemetry{
		WarehouseUtilization:    float64(remaining) / float64(y.TotalPositions()+ideal),
		ArrivalDepth:            y.ArrivalCount(),
		IdealArrivalDepth:       ideal,
		BlockedBlocks:           y.BlockedBlocksCount(),
		EmptyStacks:             y.EmptyStacks(),
		AverageStackHeight:      y.AverageStackHeight(),
		StackHeightDistribution: y.StackHeightDistribution(),
		RemainingBlocks:         remaining,
		TotalPositions:          y.TotalPositions(),
		Dimensions:              y.Dimensions(),
	}
}

// ExportLayout renders the yard as layout records: columns bottom up, then
// VOID, then the queue in order.
func (m *Manager) ExportLayout() []LayoutRecord {
	y := m.yard
	var out []LayoutRecord
	record := func(id int, p model.Position) {
		r := LayoutRecord{ID: id, Position: p}
		if t, ok := y.Target(id); ok {
			r.Target = &t
		}
		out = append(out, r)
	}
	for x := 0; x < y.Length(); x++ {
		for z := 0; z < y.Width(); z++ {
			for h, id := range y.Stack(x, z) {
				record(id, model.Position{X: x, Y: h, Z: z})
			}
		}
	}
	for _, id := range y.VoidBlocks() {
		record(id, model.Void)
	}
	for _, id := range y.ArrivalQueue() {
		record(id, y.Arrival())
	}
	return out
}
