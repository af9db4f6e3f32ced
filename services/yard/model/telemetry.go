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

// StackHeights returns every column height in x then z order.
func (y *Yard) StackHeights() []int {
	out := make([]int, len(y.stacks))
	for i, s := range y.stacks {
		out[i] = len(s)
	}
	return out
}

// EmptyStacks counts columns holding no block.
func (y *Yard) EmptyStacks() int {
	n := 0
	for _, s := range y.stacks {
		if len(s) == 0 {
			n++
		}
	}
	return n
}

// StackHeightDistribution maps a column height to the number of columns
// of that height. Heights with no column are omitted.
func (y *Yard) StackHeightDistribution() map[int]int {
	dist := make(map[int]int)
	for _, s := range y.stacks {
		dist[len(s)]++
	}
	return dist
}

// AverageStackHeight returns the mean column height.
func (y *Yard) AverageStackHeight() float64 {
	if len(y.stacks) == 0 {
		return 0
	}
	return float64(y.OccupiedPositions()) / float64(len(y.stacks))
}

// OccupiedPositions counts blocks stored in columns.
func (y *Yard) OccupiedPositions() int {
	n := 0
	for _, s := range y.stacks {
		n += len(s)
	}
	return n
}

// TotalPositions returns the column capacity L·W·H.
func (y *Yard) TotalPositions() int {
	return y.length * y.width * y.height
}
