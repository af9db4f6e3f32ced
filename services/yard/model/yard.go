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
	"sort"
	"strconv"
	"strings"
)

// Yard stores blocks in L×W height-limited column stacks, the VOID sink and
// the ARRIVAL FIFO queue.
//
// The positions map is authoritative: every block in the arena has exactly
// one entry and it always agrees with the physical storage.
type Yard struct {
	length int
	width  int
	height int

	// stacks is indexed by x*width+z; each stack lists ids bottom to top.
	stacks   [][]int
	void     map[int]struct{}
	arrival  []int
	blocks   map[int]*Block
	position map[int]Position
}

// NewYard creates an empty yard of length×width columns, each at most
// height blocks tall.
//
// Outputs:
//
//	*Yard - The empty yard.
//	error - ErrInvalidDimensions when any dimension is not positive.
func NewYard(length, width, height int) (*Yard, error) {
	if length <= 0 || width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%dx%d", ErrInvalidDimensions, length, width, height)
	}
	return &Yard{
		length:   length,
		width:    width,
		height:   height,
		stacks:   make([][]int, length*width),
		void:     make(map[int]struct{}),
		blocks:   make(map[int]*Block),
		position: make(map[int]Position),
	}, nil
}

// Length returns the number of columns along x.
func (y *Yard) Length() int { return y.length }

// Width returns the number of columns along z.
func (y *Yard) Width() int { return y.width }

// Height returns the maximum stack height.
func (y *Yard) Height() int { return y.height }

// Arrival returns this yard's ARRIVAL sentinel.
func (y *Yard) Arrival() Position { return ArrivalFor(y.length, y.width) }

// IsArrival reports whether p is this yard's ARRIVAL sentinel.
func (y *Yard) IsArrival(p Position) bool { return p == y.Arrival() }

// Dimensions renders "LxWxH".
func (y *Yard) Dimensions() string {
	return fmt.Sprintf("%dx%dx%d", y.length, y.width, y.height)
}

// IsSentinel reports whether p is VOID or ARRIVAL.
func (y *Yard) IsSentinel(p Position) bool {
	return p.IsVoid() || y.IsArrival(p)
}

func (y *Yard) columnInBounds(p Position) bool {
	return p.X >= 0 && p.X < y.length && p.Z >= 0 && p.Z < y.width
}

func (y *Yard) inBounds(p Position) bool {
	return y.columnInBounds(p) && p.Y >= 0 && p.Y < y.height
}

func (y *Yard) stackAt(p Position) []int {
	return y.stacks[p.X*y.width+p.Z]
}

func (y *Yard) setStack(p Position, s []int) {
	y.stacks[p.X*y.width+p.Z] = s
}

// AreaWithinBounds reports whether the x/z rectangle spanned by p1 and p2
// lies inside the grid.
func (y *Yard) AreaWithinBounds(p1, p2 Position) bool {
	minX, maxX := min(p1.X, p2.X), max(p1.X, p2.X)
	minZ, maxZ := min(p1.Z, p2.Z), max(p1.Z, p2.Z)
	return minX >= 0 && maxX < y.length && minZ >= 0 && maxZ < y.width
}

// Pickup removes and returns the accessible block at pos: the column top or
// the ARRIVAL head.
//
// Outputs:
//
//	int   - The removed block id.
//	error - ErrNotFound for an empty column or queue, ErrIllegalMove when
//	        pos is out of bounds, not the top of its column, or VOID
//	        (VOID pickups need a block id, see ApplyMove).
func (y *Yard) Pickup(pos Position) (int, error) {
	if y.IsArrival(pos) {
		if len(y.arrival) == 0 {
			return 0, fmt.Errorf("%w: arrival queue empty", ErrNotFound)
		}
		return y.take(y.arrival[0], pos)
	}
	if pos.IsVoid() {
		return 0, fmt.Errorf("%w: void pickup needs a block id", ErrIllegalMove)
	}
	if !y.inBounds(pos) {
		return 0, fmt.Errorf("%w: %s out of bounds", ErrIllegalMove, pos)
	}
	s := y.stackAt(pos)
	if len(s) == 0 {
		return 0, fmt.Errorf("%w: column %s empty", ErrNotFound, pos)
	}
	if pos.Y != len(s)-1 {
		return 0, fmt.Errorf("%w: %s is not the top of its column", ErrIllegalMove, pos)
	}
	return y.take(s[len(s)-1], pos)
}

// take detaches block id from pos. The block stays in the arena without a
// position until it is placed again.
func (y *Yard) take(id int, pos Position) (int, error) {
	cur, ok := y.position[id]
	if !ok {
		return 0, fmt.Errorf("%w: block %d", ErrNotFound, id)
	}
	if cur != pos {
		return 0, fmt.Errorf("%w: block %d is at %s, not %s", ErrIllegalMove, id, cur, pos)
	}
	switch {
	case pos.IsVoid():
		delete(y.void, id)
	case y.IsArrival(pos):
		if len(y.arrival) == 0 || y.arrival[0] != id {
			return 0, fmt.Errorf("%w: block %d is not the arrival head", ErrIllegalMove, id)
		}
		y.arrival = y.arrival[1:]
	default:
		s := y.stackAt(pos)
		if len(s) == 0 || s[len(s)-1] != id {
			return 0, fmt.Errorf("%w: block %d is not accessible", ErrIllegalMove, id)
		}
		y.setStack(pos, s[:len(s)-1])
	}
	delete(y.position, id)
	return id, nil
}

// Place puts block id at pos. Placing at ARRIVAL re-inserts at the queue
// front, restoring the order an earlier pickup disturbed.
//
// Outputs:
//
//	error - ErrNotFound for an unknown block, ErrIllegalMove when the block
//	        is already placed or the column slot is not the next free one.
func (y *Yard) Place(pos Position, id int) error {
	if _, ok := y.blocks[id]; !ok {
		return fmt.Errorf("%w: block %d", ErrNotFound, id)
	}
	if cur, placed := y.position[id]; placed {
		return fmt.Errorf("%w: block %d already at %s", ErrIllegalMove, id, cur)
	}
	switch {
	case pos.IsVoid():
		y.void[id] = struct{}{}
	case y.IsArrival(pos):
		y.arrival = append([]int{id}, y.arrival...)
	default:
		if !y.inBounds(pos) {
			return fmt.Errorf("%w: %s out of bounds", ErrIllegalMove, pos)
		}
		s := y.stackAt(pos)
		if len(s) >= y.height || pos.Y != len(s) {
			return fmt.Errorf("%w: %s is not the next free slot (height %d)", ErrIllegalMove, pos, len(s))
		}
		y.setStack(pos, append(s, id))
	}
	y.position[id] = pos
	return nil
}

// ApplyMove picks the move's block up at its source and places it at its
// target. When placement fails the block is put back at the source, so no
// block is ever left without a position.
func (y *Yard) ApplyMove(m Move) error {
	cur, ok := y.position[m.BlockID]
	if !ok {
		return fmt.Errorf("%w: block %d", ErrNotFound, m.BlockID)
	}
	if cur != m.BlockSource {
		return fmt.Errorf("%w: block %d is at %s, move expects %s", ErrIllegalMove, m.BlockID, cur, m.BlockSource)
	}
	if _, err := y.take(m.BlockID, m.BlockSource); err != nil {
		return err
	}
	if err := y.Place(m.BlockTarget, m.BlockID); err != nil {
		if rerr := y.Place(m.BlockSource, m.BlockID); rerr != nil {
			return fmt.Errorf("restoring block %d after %v: %w", m.BlockID, err, rerr)
		}
		return err
	}
	return nil
}

// AddBlock registers b and places it at pos. An ARRIVAL position enqueues.
// Used when loading a layout.
func (y *Yard) AddBlock(b *Block, pos Position) error {
	if _, exists := y.blocks[b.ID]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateBlock, b.ID)
	}
	if y.IsArrival(pos) {
		return y.Enqueue(b)
	}
	y.blocks[b.ID] = b
	if err := y.Place(pos, b.ID); err != nil {
		delete(y.blocks, b.ID)
		return err
	}
	return nil
}

// Enqueue appends a new block to the back of the ARRIVAL queue.
func (y *Yard) Enqueue(b *Block) error {
	if _, exists := y.blocks[b.ID]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateBlock, b.ID)
	}
	y.blocks[b.ID] = b
	y.arrival = append(y.arrival, b.ID)
	y.position[b.ID] = y.Arrival()
	return nil
}

// AddCriterion attaches c to block id.
func (y *Yard) AddCriterion(id int, c Criterion) error {
	b, ok := y.blocks[id]
	if !ok {
		return fmt.Errorf("%w: block %d", ErrNotFound, id)
	}
	b.AddCriterion(c)
	return nil
}

// Block returns a copy of block id.
func (y *Yard) Block(id int) (*Block, error) {
	b, ok := y.blocks[id]
	if !ok {
		return nil, fmt.Errorf("%w: block %d", ErrNotFound, id)
	}
	return b.Clone(), nil
}

// Target returns block id's target position, if it has one.
func (y *Yard) Target(id int) (Position, bool) {
	b, ok := y.blocks[id]
	if !ok {
		return Position{}, false
	}
	return b.Target()
}

// HasVoidGoal reports whether block id must end in VOID.
func (y *Yard) HasVoidGoal(id int) bool {
	b, ok := y.blocks[id]
	return ok && b.HasVoidGoal()
}

// Position returns where block id currently is.
func (y *Yard) Position(id int) (Position, error) {
	p, ok := y.position[id]
	if !ok {
		return Position{}, fmt.Errorf("%w: block %d", ErrNotFound, id)
	}
	return p, nil
}

// BlocksAbove returns the blocks that must move before id can: the blocks
// stacked on top of it (bottom to top), or the blocks ahead of it in the
// ARRIVAL queue. Blocks in VOID have nothing above them.
func (y *Yard) BlocksAbove(id int) []int {
	p, ok := y.position[id]
	if !ok || p.IsVoid() {
		return nil
	}
	if y.IsArrival(p) {
		for i, qid := range y.arrival {
			if qid == id {
				return append([]int(nil), y.arrival[:i]...)
			}
		}
		return nil
	}
	s := y.stackAt(p)
	return append([]int(nil), s[p.Y+1:]...)
}

// BlocksBelow returns the blocks beneath id in its column, bottom first.
// VOID and ARRIVAL blocks have nothing below them.
func (y *Yard) BlocksBelow(id int) []int {
	p, ok := y.position[id]
	if !ok || y.IsSentinel(p) {
		return nil
	}
	return append([]int(nil), y.stackAt(p)[:p.Y]...)
}

// TopBlocks returns every accessible block: column tops in x then z order,
// then the ARRIVAL head.
func (y *Yard) TopBlocks() []int {
	var out []int
	for _, s := range y.stacks {
		if len(s) > 0 {
			out = append(out, s[len(s)-1])
		}
	}
	if len(y.arrival) > 0 {
		out = append(out, y.arrival[0])
	}
	return out
}

// FreePositions returns the next free slot of every column below maximum
// height, then VOID. ARRIVAL is never an insertion target.
func (y *Yard) FreePositions() []Position {
	var out []Position
	for x := 0; x < y.length; x++ {
		for z := 0; z < y.width; z++ {
			size := len(y.stacks[x*y.width+z])
			if size < y.height {
				out = append(out, Position{X: x, Y: size, Z: z})
			}
		}
	}
	return append(out, Void)
}

// FreeSlot returns the next free slot on the column of p, if any.
func (y *Yard) FreeSlot(p Position) (Position, bool) {
	if !y.columnInBounds(p) {
		return Position{}, false
	}
	size := len(y.stackAt(p))
	if size >= y.height {
		return Position{}, false
	}
	return Position{X: p.X, Y: size, Z: p.Z}, true
}

// BlockedBlocksCount counts distinct blocks stacked above any VOID-bound
// block, plus every block still in ARRIVAL.
func (y *Yard) BlockedBlocksCount() int {
	blocked := make(map[int]struct{}, len(y.arrival))
	for _, id := range y.arrival {
		blocked[id] = struct{}{}
	}
	for _, s := range y.stacks {
		for i, id := range s {
			if y.blocks[id].HasVoidGoal() {
				for _, above := range s[i+1:] {
					blocked[above] = struct{}{}
				}
			}
		}
	}
	return len(blocked)
}

// Satisfied reports whether block id meets all of its criteria.
func (y *Yard) Satisfied(id int) bool {
	b, ok := y.blocks[id]
	if !ok {
		return false
	}
	return b.SatisfiedAt(y.position[id])
}

// AllCriteriaSatisfied reports whether every block is satisfied and the
// ARRIVAL queue is empty.
func (y *Yard) AllCriteriaSatisfied() bool {
	if len(y.arrival) > 0 {
		return false
	}
	for id, b := range y.blocks {
		if !b.SatisfiedAt(y.position[id]) {
			return false
		}
	}
	return true
}

// BlockIDs returns every block id in ascending order.
func (y *Yard) BlockIDs() []int {
	ids := make([]int, 0, len(y.blocks))
	for id := range y.blocks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// RemainingBlocks returns the ids of blocks not in VOID, ascending.
func (y *Yard) RemainingBlocks() []int {
	ids := make([]int, 0, len(y.blocks))
	for id := range y.blocks {
		if !y.position[id].IsVoid() {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

// VoidBlocks returns the ids in VOID, ascending.
func (y *Yard) VoidBlocks() []int {
	ids := make([]int, 0, len(y.void))
	for id := range y.void {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// ArrivalQueue returns the queue, head first.
func (y *Yard) ArrivalQueue() []int {
	return append([]int(nil), y.arrival...)
}

// ArrivalCount returns the queue length.
func (y *Yard) ArrivalCount() int { return len(y.arrival) }

// Stack returns the ids in column (x,z), bottom first.
func (y *Yard) Stack(x, z int) []int {
	if x < 0 || x >= y.length || z < 0 || z >= y.width {
		return nil
	}
	return append([]int(nil), y.stacks[x*y.width+z]...)
}

// MaxBlockID returns the largest id in the arena, or 0 for an empty yard.
func (y *Yard) MaxBlockID() int {
	maxID := 0
	for id := range y.blocks {
		maxID = max(maxID, id)
	}
	return maxID
}

// Digest encodes the physical state: "S{x},{z}:" plus ids bottom to top
// for each column, then "V:" plus sorted VOID ids, then "A:" plus the queue
// in order. Two yards with equal digests hold the same blocks in the same
// places.
func (y *Yard) Digest() string {
	var sb strings.Builder
	sb.Grow(len(y.stacks)*8 + len(y.blocks)*4)
	for x := 0; x < y.length; x++ {
		for z := 0; z < y.width; z++ {
			sb.WriteByte('S')
			sb.WriteString(strconv.Itoa(x))
			sb.WriteByte(',')
			sb.WriteString(strconv.Itoa(z))
			sb.WriteByte(':')
			for _, id := range y.stacks[x*y.width+z] {
				sb.WriteString(strconv.Itoa(id))
				sb.WriteByte(',')
			}
			sb.WriteByte('|')
		}
	}
	sb.WriteString("V:")
	for _, id := range y.VoidBlocks() {
		sb.WriteString(strconv.Itoa(id))
		sb.WriteByte(',')
	}
	sb.WriteString("|A:")
	for _, id := range y.arrival {
		sb.WriteString(strconv.Itoa(id))
		sb.WriteByte(',')
	}
	return sb.String()
}

// Clone returns a deep copy sharing no mutable state with y.
func (y *Yard) Clone() *Yard {
	c := &Yard{
		length:   y.length,
		width:    y.width,
		height:   y.height,
		stacks:   make([][]int, len(y.stacks)),
		void:     make(map[int]struct{}, len(y.void)),
		arrival:  append([]int(nil), y.arrival...),
		blocks:   make(map[int]*Block, len(y.blocks)),
		position: make(map[int]Position, len(y.position)),
	}
	for i, s := range y.stacks {
		if len(s) > 0 {
			c.stacks[i] = append(make([]int, 0, y.height), s...)
		}
	}
	for id := range y.void {
		c.void[id] = struct{}{}
	}
	for id, b := range y.blocks {
		c.blocks[id] = b.Clone()
	}
	for id, p := range y.position {
		c.position[id] = p
	}
	return c
}
