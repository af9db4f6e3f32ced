// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package search implements the planner's search tree: SearchState nodes
// with an admissible lower bound, and a width-limited anytime beam engine
// that expands branches in parallel.
package search

import (
	"fmt"

	"github.com/AleutianAI/AleutianYard/services/yard/manager"
	"github.com/AleutianAI/AleutianYard/services/yard/model"
)

// State is one node of the search tree. It owns a manager snapshot, the
// moves applied since the last Reset, and the digests visited on this
// branch.
//
// Thread Safety: Not safe for concurrent use. Each beam worker owns the
// clones it creates.
type State struct {
	mgr     *manager.Manager
	history []model.Move
	visited map[string]struct{}
	cost    int

	bound      int
	boundValid bool
}

// NewState wraps mgr. The current digest counts as visited so no branch
// cycles back to the root.
func NewState(mgr *manager.Manager) *State {
	s := &State{mgr: mgr}
	s.Reset()
	return s
}

// Manager returns the owned manager.
func (s *State) Manager() *manager.Manager { return s.mgr }

// Yard is shorthand for Manager().Yard().
func (s *State) Yard() *model.Yard { return s.mgr.Yard() }

// IsTerminal reports whether every criterion holds and ARRIVAL is empty.
func (s *State) IsTerminal() bool {
	return s.mgr.Yard().AllCriteriaSatisfied()
}

// Apply executes m and records it. On failure the state is unchanged.
func (s *State) Apply(m model.Move) error {
	s.history = append(s.history, m)
	if err := s.mgr.ApplyMove(m); err != nil {
		s.history = s.history[:len(s.history)-1]
		return fmt.Errorf("apply %s: %w", m, err)
	}
	s.cost += s.mgr.Calculator().MovementCost(m)
	s.visited[s.mgr.Yard().Digest()] = struct{}{}
	s.boundValid = false
	return nil
}

// UndoLast reverts the newest move through the same ApplyMove path.
//
// Outputs:
//
//	model.Move - The move that was undone.
//	error      - ErrEmptyHistory, or ErrInconsistentPlan when the inverse
//	             cannot be applied.
func (s *State) UndoLast() (model.Move, error) {
	if len(s.history) == 0 {
		return model.Move{}, ErrEmptyHistory
	}
	last := s.history[len(s.history)-1]
	digest := s.mgr.Yard().Digest()
	if err := s.mgr.ApplyMove(last.Reverse()); err != nil {
		return model.Move{}, fmt.Errorf("%w: undo %s: %v", ErrInconsistentPlan, last, err)
	}
	s.history = s.history[:len(s.history)-1]
	delete(s.visited, digest)
	s.cost -= s.mgr.Calculator().MovementCost(last)
	s.boundValid = false
	return last, nil
}

// Reset forgets history and visited digests while keeping the physical
// layout. Replanning starts from "now".
func (s *State) Reset() {
	s.history = nil
	s.cost = 0
	s.visited = map[string]struct{}{s.mgr.Yard().Digest(): {}}
	s.boundValid = false
}

// Choices returns the manager's candidate moves minus those leading to a
// digest already visited on this branch. Priority order is kept.
func (s *State) Choices() []model.Move {
	moves := s.mgr.AllPossibleMoves()
	scratch := s.mgr.Yard().Clone()
	out := moves[:0]
	for _, m := range moves {
		if err := scratch.ApplyMove(m); err != nil {
			continue
		}
		_, seen := s.visited[scratch.Digest()]
		if err := scratch.ApplyMove(m.Reverse()); err != nil {
			scratch = s.mgr.Yard().Clone()
		}
		if !seen {
			out = append(out, m)
		}
	}
	return out
}

// Clone deep-copies the manager, history and visited set. The cost
// calculator is shared.
func (s *State) Clone() *State {
	c := &State{
		mgr:        s.mgr.Clone(),
		history:    append([]model.Move(nil), s.history...),
		visited:    make(map[string]struct{}, len(s.visited)),
		cost:       s.cost,
		bound:      s.bound,
		boundValid: s.boundValid,
	}
	for d := range s.visited {
		c.visited[d] = struct{}{}
	}
	return c
}

// Plan returns the applied moves, oldest first.
func (s *State) Plan() []model.Move {
	return append([]model.Move(nil), s.history...)
}

// HistoryLen returns the number of applied moves.
func (s *State) HistoryLen() int { return len(s.history) }

// LastMove returns the newest applied move.
func (s *State) LastMove() (model.Move, bool) {
	if len(s.history) == 0 {
		return model.Move{}, false
	}
	return s.history[len(s.history)-1], true
}

// AccumulatedCost returns the movement cost of the history.
func (s *State) AccumulatedCost() int { return s.cost }

// BlockedBlocks returns the yard's blocked block count.
func (s *State) BlockedBlocks() int {
	return s.mgr.Yard().BlockedBlocksCount()
}

// Visited reports whether digest was reached on this branch.
func (s *State) Visited(digest string) bool {
	_, ok := s.visited[digest]
	return ok
}
