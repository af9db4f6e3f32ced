// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package search

import (
	"container/heap"
	"math/rand/v2"
	"testing"

	"github.com/AleutianAI/AleutianYard/services/yard/manager"
	"github.com/AleutianAI/AleutianYard/services/yard/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBound_ABCScenario(t *testing.T) {
	s := abcState(t)
	calc := s.Manager().Calculator()
	handling := calc.HandlingCost()

	// B: handling + 3 travel to VOID; C: one relocation.
	assert.Equal(t, (handling+3)+(handling+1), s.Bound())
	assert.GreaterOrEqual(t, s.Bound(), 2*handling+calc.Rate())
}

func TestBound_ArrivalAccounting(t *testing.T) {
	m := newManager(t, 2, 2, 2)
	for id := 1; id <= 5; id++ {
		var criteria []model.Criterion
		if id == 2 {
			criteria = append(criteria, model.TargetPosition{Target: model.Void})
		}
		require.NoError(t, m.AddArrival(model.NewBlock(id, criteria...)))
	}
	s := NewState(m)
	calc := m.Calculator()
	relocation := calc.HandlingCost() + calc.Rate()

	// Five queued relocations, one extra for the VOID-bound block, and the
	// excess penalty for two blocks beyond the ideal depth of three.
	assert.Equal(t, 6*relocation+2*30, s.Bound())
}

func TestBound_CachedUntilMutation(t *testing.T) {
	s := abcState(t)
	b0 := s.Bound()
	require.NoError(t, s.Apply(s.Choices()[0]))
	b1 := s.Bound()
	assert.Greater(t, s.AccumulatedCost(), 0)
	assert.Equal(t, b1, s.Bound())
	_, err := s.UndoLast()
	require.NoError(t, err)
	assert.Equal(t, b0, s.Bound())
}

// optimalRemaining runs uniform-cost search over full move sets and
// returns the cheapest cost to a terminal layout.
func optimalRemaining(t *testing.T, root *manager.Manager) (int, bool) {
	t.Helper()
	calc := root.Calculator()
	key := func(m *manager.Manager) string {
		c, _ := m.PrimaryCrane()
		return m.Yard().Digest() + "@" + c.Current().String()
	}

	best := map[string]int{key(root): 0}
	pq := &nodeHeap{{mgr: root.Clone(), cost: 0, key: key(root)}}
	for pq.Len() > 0 {
		n := heap.Pop(pq).(searchNode)
		if n.cost > best[n.key] {
			continue
		}
		if n.mgr.Yard().AllCriteriaSatisfied() {
			return n.cost, true
		}
		for _, mv := range n.mgr.AllPossibleMoves() {
			next := n.mgr.Clone()
			if err := next.ApplyMove(mv); err != nil {
				continue
			}
			c := n.cost + calc.MovementCost(mv)
			k := key(next)
			if old, ok := best[k]; ok && old <= c {
				continue
			}
			best[k] = c
			heap.Push(pq, searchNode{mgr: next, cost: c, key: k})
		}
	}
	return 0, false
}

type searchNode struct {
	mgr  *manager.Manager
	cost int
	key  string
}

type nodeHeap []searchNode

func (h nodeHeap) Len() int           { return len(h) }
func (h nodeHeap) Less(i, j int) bool { return h[i].cost < h[j].cost }
func (h nodeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x any)        { *h = append(*h, x.(searchNode)) }
func (h *nodeHeap) Pop() any {
	old := *h
	n := old[len(old)-1]
	*h = old[:len(old)-1]
	return n
}

func TestBound_AdmissibleOnSmallGrids(t *testing.T) {
	layouts := map[string]func(t *testing.T) *manager.Manager{
		"buried void blocks": func(t *testing.T) *manager.Manager {
			return newManager(t, 2, 2, 2,
				rec(1, pos(0, 0, 0), true),
				rec(2, pos(0, 1, 0), false),
				rec(3, pos(1, 0, 1), true),
				rec(4, pos(1, 1, 1), true),
			)
		},
		"queue with void goal": func(t *testing.T) *manager.Manager {
			m := newManager(t, 2, 2, 2,
				rec(1, pos(0, 0, 0), true),
				rec(2, pos(0, 1, 0), false),
			)
			require.NoError(t, m.AddArrival(model.NewBlock(3, model.TargetPosition{Target: model.Void})))
			require.NoError(t, m.AddArrival(model.NewBlock(4)))
			return m
		},
	}

	for name, build := range layouts {
		t.Run(name, func(t *testing.T) {
			rng := rand.New(rand.NewPCG(7, 7))
			for walk := 0; walk < 3; walk++ {
				s := NewState(build(t))
				for step := 0; step < 5; step++ {
					opt, ok := optimalRemaining(t, s.Manager())
					if !ok {
						break
					}
					estimate := s.Bound() - s.AccumulatedCost()
					assert.LessOrEqual(t, estimate, opt, "walk %d step %d: %s", walk, step, s.Yard().Digest())

					choices := s.Choices()
					if len(choices) == 0 || s.IsTerminal() {
						break
					}
					require.NoError(t, s.Apply(choices[rng.IntN(len(choices))]))
				}
			}
		})
	}
}
