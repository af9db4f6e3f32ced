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

// Criterion is a finishing predicate on a block's current position.
type Criterion interface {
	Satisfied(current Position) bool
}

// TargetPosition requires the block to occupy Target.
type TargetPosition struct {
	Target Position `json:"target"`
}

// Satisfied reports whether current equals the target.
func (c TargetPosition) Satisfied(current Position) bool {
	return current == c.Target
}

// Block is a unit load. Identity is the integer id; the yard keeps blocks
// in an arena keyed by it.
type Block struct {
	ID       int
	criteria []Criterion
}

// NewBlock creates a block with optional criteria.
func NewBlock(id int, criteria ...Criterion) *Block {
	b := &Block{ID: id}
	b.criteria = append(b.criteria, criteria...)
	return b
}

// Criteria returns a copy of the block's criteria.
func (b *Block) Criteria() []Criterion {
	out := make([]Criterion, len(b.criteria))
	copy(out, b.criteria)
	return out
}

// AddCriterion appends c.
func (b *Block) AddCriterion(c Criterion) {
	b.criteria = append(b.criteria, c)
}

// SatisfiedAt reports whether every criterion holds for a block at current.
// A block without criteria is always satisfied.
func (b *Block) SatisfiedAt(current Position) bool {
	for _, c := range b.criteria {
		if !c.Satisfied(current) {
			return false
		}
	}
	return true
}

// Target returns the first TargetPosition criterion's target.
func (b *Block) Target() (Position, bool) {
	for _, c := range b.criteria {
		if tp, ok := c.(TargetPosition); ok {
			return tp.Target, true
		}
	}
	return Position{}, false
}

// HasVoidGoal reports whether the block must end in VOID.
func (b *Block) HasVoidGoal() bool {
	t, ok := b.Target()
	return ok && t.IsVoid()
}

// Clone copies the block. Criteria are immutable values, so the slice
// copy is enough.
func (b *Block) Clone() *Block {
	return &Block{ID: b.ID, criteria: b.Criteria()}
}
