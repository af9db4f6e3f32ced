// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package model holds the physical state of a block yard: positions, blocks
// and their finishing criteria, relocation moves, cranes and the YardModel
// that stores column stacks, the VOID sink and the ARRIVAL queue.
//
// Nothing in this package is safe for concurrent mutation. Search code
// clones a Yard per branch instead of sharing one.
package model

import "strconv"

// Position is a yard coordinate. Y is the height inside a column.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// Void is the sink position for finished blocks. It has unlimited capacity
// and its contents are unordered.
var Void = Position{X: -1, Y: 0, Z: -1}

// ArrivalFor returns the ARRIVAL sentinel of a yard with the given length
// and width. ARRIVAL sits just past the far corner of the grid.
func ArrivalFor(length, width int) Position {
	return Position{X: length, Y: 0, Z: width}
}

// IsVoid reports whether p is the VOID sentinel.
func (p Position) IsVoid() bool {
	return p == Void
}

// SameColumn reports whether p and o share x and z.
func (p Position) SameColumn(o Position) bool {
	return p.X == o.X && p.Z == o.Z
}

// String renders "(x,y,z)". Move keys depend on this format.
func (p Position) String() string {
	return "(" + strconv.Itoa(p.X) + "," + strconv.Itoa(p.Y) + "," + strconv.Itoa(p.Z) + ")"
}

// Manhattan returns |dx|+|dy|+|dz|.
func Manhattan(a, b Position) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y) + abs(a.Z-b.Z)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
