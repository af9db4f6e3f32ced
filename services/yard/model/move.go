// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

import (
	"fmt"
	"strconv"
)

// Move is one crane relocation of one block.
//
// ArrivalDepth is the ARRIVAL queue length observed when the move was
// generated. It shapes cost only and plays no part in legality.
type Move struct {
	CraneID      int      `json:"crane_id"`
	BlockID      int      `json:"block_id"`
	CraneSource  Position `json:"crane_source"`
	CraneTarget  Position `json:"crane_target"`
	BlockSource  Position `json:"block_source"`
	BlockTarget  Position `json:"block_target"`
	ArrivalDepth int      `json:"arrival_depth"`
}

// Key identifies the move's action as "block:source:target".
func (m Move) Key() string {
	return strconv.Itoa(m.BlockID) + ":" + m.BlockSource.String() + ":" + m.BlockTarget.String()
}

// SameAction compares block id, source and target only. Plan membership
// checks use this instead of ==.
func (m Move) SameAction(o Move) bool {
	return m.BlockID == o.BlockID && m.BlockSource == o.BlockSource && m.BlockTarget == o.BlockTarget
}

// Reverse returns the structural inverse: block and crane source/target
// swapped, depth kept.
func (m Move) Reverse() Move {
	return Move{
		CraneID:      m.CraneID,
		BlockID:      m.BlockID,
		CraneSource:  m.CraneTarget,
		CraneTarget:  m.CraneSource,
		BlockSource:  m.BlockTarget,
		BlockTarget:  m.BlockSource,
		ArrivalDepth: m.ArrivalDepth,
	}
}

// WithArrivalDepth returns a copy re-stamped with depth.
func (m Move) WithArrivalDepth(depth int) Move {
	m.ArrivalDepth = depth
	return m
}

func (m Move) String() string {
	return fmt.Sprintf("block %d %s -> %s (crane %d, depth %d)",
		m.BlockID, m.BlockSource, m.BlockTarget, m.CraneID, m.ArrivalDepth)
}

// ContainsAction reports whether plan holds a move with the same action as m.
func ContainsAction(plan []Move, m Move) bool {
	for _, p := range plan {
		if p.SameAction(m) {
			return true
		}
	}
	return false
}
