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

import "fmt"

// Crane relocates blocks inside a rectangular operational area. VOID and
// ARRIVAL are reachable from every area.
type Crane struct {
	ID      int
	current Position
	arrival Position
	hasArea bool
	areaMin Position
	areaMax Position
}

// NewCrane creates a crane parked at start with no operational area.
// arrival is the ARRIVAL sentinel of the yard the crane serves.
func NewCrane(id int, start, arrival Position) *Crane {
	return &Crane{ID: id, current: start, arrival: arrival}
}

// Current returns the crane's position.
func (c *Crane) Current() Position { return c.current }

// SetOperationalArea assigns the rectangle spanned by p1 and p2. Corners
// are normalized per axis; height is ignored.
func (c *Crane) SetOperationalArea(p1, p2 Position) {
	c.areaMin = Position{X: min(p1.X, p2.X), Z: min(p1.Z, p2.Z)}
	c.areaMax = Position{X: max(p1.X, p2.X), Z: max(p1.Z, p2.Z)}
	c.hasArea = true
}

// Area returns the normalized corners and whether an area is set.
func (c *Crane) Area() (Position, Position, bool) {
	return c.areaMin, c.areaMax, c.hasArea
}

// IsReachable reports whether the crane may serve pos.
func (c *Crane) IsReachable(pos Position) bool {
	if pos.IsVoid() || pos == c.arrival {
		return true
	}
	if !c.hasArea {
		return false
	}
	return pos.X >= c.areaMin.X && pos.X <= c.areaMax.X &&
		pos.Z >= c.areaMin.Z && pos.Z <= c.areaMax.Z
}

// TryMoveTo moves the crane to pos when it is reachable. An unreachable
// target leaves the crane where it is.
func (c *Crane) TryMoveTo(pos Position) error {
	if !c.IsReachable(pos) {
		return fmt.Errorf("%w: crane %d cannot reach %s", ErrUnreachable, c.ID, pos)
	}
	c.current = pos
	return nil
}

// Clone copies the crane.
func (c *Crane) Clone() *Crane {
	cp := *c
	return &cp
}
