// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cost prices relocation moves.
//
// A Calculator is immutable once built and is shared by every clone of a
// search state, including clones owned by parallel beam workers.
package cost

import (
	"github.com/AleutianAI/AleutianYard/services/yard/model"
)

// Config holds every cost and priority constant.
type Config struct {
	// MoveCostPerUnit scales Manhattan travel distance.
	MoveCostPerUnit int `json:"move_cost_per_unit" yaml:"move_cost_per_unit" validate:"gte=1"`

	// PickupCost and PlacementCost are charged once per move.
	PickupCost    int `json:"pickup_cost" yaml:"pickup_cost" validate:"gte=0"`
	PlacementCost int `json:"placement_cost" yaml:"placement_cost" validate:"gte=0"`

	// IdealArrivalQueueSize is the queue depth above which each move pays
	// ArrivalExcessPenalty per surplus block.
	IdealArrivalQueueSize int `json:"ideal_arrival_queue_size" yaml:"ideal_arrival_queue_size" validate:"gte=0"`
	ArrivalExcessPenalty  int `json:"arrival_excess_penalty" yaml:"arrival_excess_penalty" validate:"gte=0"`

	// VoidGoalBonus is subtracted from the priority of a move that takes a
	// VOID-bound block straight to VOID.
	VoidGoalBonus int `json:"void_goal_bonus" yaml:"void_goal_bonus" validate:"gte=0"`

	// UnblockBonus is subtracted when the moved block sits above a
	// VOID-bound block.
	UnblockBonus int `json:"unblock_bonus" yaml:"unblock_bonus" validate:"gte=0"`

	// ArrivalDepthBonus is subtracted per queued block for moves out of
	// ARRIVAL.
	ArrivalDepthBonus int `json:"arrival_depth_bonus" yaml:"arrival_depth_bonus" validate:"gte=0"`
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		MoveCostPerUnit:       1,
		PickupCost:            10,
		PlacementCost:         10,
		IdealArrivalQueueSize: 3,
		ArrivalExcessPenalty:  30,
		VoidGoalBonus:         1000,
		UnblockBonus:          500,
		ArrivalDepthBonus:     30,
	}
}

// Calculator prices moves. It is a pure function of its configuration.
type Calculator struct {
	cfg Config
}

// NewCalculator creates a Calculator from cfg.
func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// Config returns a copy of the configuration.
func (c *Calculator) Config() Config { return c.cfg }

// HandlingCost is the fixed pickup plus placement charge.
func (c *Calculator) HandlingCost() int {
	return c.cfg.PickupCost + c.cfg.PlacementCost
}

// Rate returns the per-unit travel cost.
func (c *Calculator) Rate() int { return c.cfg.MoveCostPerUnit }

// IdealQueueSize returns the ARRIVAL depth that is free of penalty.
func (c *Calculator) IdealQueueSize() int { return c.cfg.IdealArrivalQueueSize }

// ExcessPenalty returns the surcharge for depth beyond queue size q.
func (c *Calculator) ExcessPenalty(q int) int {
	return c.cfg.ArrivalExcessPenalty * max(0, q-c.cfg.IdealArrivalQueueSize)
}

// MovementCost is crane travel to the source plus block travel, scaled by
// the rate, plus handling and the arrival excess penalty.
func (c *Calculator) MovementCost(m model.Move) int {
	travel := model.Manhattan(m.CraneSource, m.BlockSource) + model.Manhattan(m.BlockSource, m.BlockTarget)
	return travel*c.cfg.MoveCostPerUnit + c.HandlingCost() + c.ExcessPenalty(m.ArrivalDepth)
}

// Priority orders candidate moves, lower first.
//
// Inputs:
//
//	m            - The candidate move.
//	goal         - The moved block's target, nil when it has none.
//	belowVoid    - Whether any block beneath the moved one is VOID-bound.
//	fromArrival  - Whether m leaves the ARRIVAL queue.
func (c *Calculator) Priority(m model.Move, goal *model.Position, belowVoid, fromArrival bool) int {
	p := c.MovementCost(m)
	if goal != nil && goal.IsVoid() && m.BlockTarget.IsVoid() {
		p -= c.cfg.VoidGoalBonus
	}
	if belowVoid && !fromArrival && !m.BlockSource.IsVoid() {
		p -= c.cfg.UnblockBonus
	}
	if fromArrival {
		p -= c.cfg.ArrivalDepthBonus * m.ArrivalDepth
	}
	return p
}

// TotalCost sums MovementCost over plan.
func (c *Calculator) TotalCost(plan []model.Move) int {
	total := 0
	for _, m := range plan {
		total += c.MovementCost(m)
	}
	return total
}
