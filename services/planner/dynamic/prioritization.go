// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dynamic

import (
	"context"
	"strconv"

	"github.com/AleutianAI/AleutianYard/services/planner/search"
	"github.com/AleutianAI/AleutianYard/services/yard/model"
	lru "github.com/hashicorp/golang-lru/v2"
)

// MovePrioritization searches from scratch but rewards children whose last
// move resembles the stale plan, so the new plan stays close to the old one.
//
// The rank of a child with at least one move is
//
//	bound + penalty*blocked - alpha*maxSim
//
// where maxSim is the best similarity of the child's last move to the
// planned moves in a window starting at that move's index.
type MovePrioritization struct {
	base
}

// Variant implements Strategy.
func (p *MovePrioritization) Variant() Variant { return VariantMovePrioritization }

// Recalculate implements Strategy.
func (p *MovePrioritization) Recalculate(ctx context.Context, current, _ *search.State, planned []model.Move, _ EventKind) (*search.State, error) {
	return p.searchWithPlan(ctx, current, planned)
}

// searchWithPlan runs the prioritized search from root. Window indices are
// measured from root's history length.
func (p *MovePrioritization) searchWithPlan(ctx context.Context, root *search.State, planned []model.Move) (*search.State, error) {
	sim, err := newSimilarity(p.cfg.Similarity, planned)
	if err != nil {
		return nil, err
	}
	return p.run(ctx, root, sim.rank(root.HistoryLen(), p.beam.Config().BlockedPenalty), VariantMovePrioritization.String())
}

// similarity scores candidate moves against a stale plan. Safe for
// concurrent use: planKeys is read-only and the memo is an LRU cache.
type similarity struct {
	cfg      SimilarityConfig
	planned  []model.Move
	planKeys map[string]struct{}
	memo     *lru.Cache[string, float64]
}

func newSimilarity(cfg SimilarityConfig, planned []model.Move) (*similarity, error) {
	memo, err := lru.New[string, float64](max(cfg.CacheSize, 16))
	if err != nil {
		return nil, err
	}
	keys := make(map[string]struct{}, len(planned))
	for _, m := range planned {
		keys[m.Key()] = struct{}{}
	}
	return &similarity{cfg: cfg, planned: planned, planKeys: keys, memo: memo}, nil
}

func (s *similarity) rank(rootLen int, penalty float64) search.RankFunc {
	return func(st *search.State) float64 {
		r := float64(st.Bound())
		last, ok := st.LastMove()
		if !ok || st.HistoryLen() <= rootLen {
			return r
		}
		r += penalty * float64(st.BlockedBlocks())
		return r - s.cfg.Alpha*s.maxSim(last, st.HistoryLen()-1-rootLen)
	}
}

// maxSim returns the best similarity of m to the planned moves in the window
// starting at start. A move that appears anywhere in the plan scores 1.
func (s *similarity) maxSim(m model.Move, start int) float64 {
	key := m.Key()
	if _, ok := s.planKeys[key]; ok {
		return 1
	}
	memoKey := strconv.Itoa(start) + "|" + key
	if v, ok := s.memo.Get(memoKey); ok {
		return v
	}
	best := 0.0
	if start < len(s.planned) {
		end := min(start+s.cfg.Window, len(s.planned))
		for _, p := range s.planned[start:end] {
			best = max(best, s.score(m, p))
		}
	}
	s.memo.Add(memoKey, best)
	return best
}

func (s *similarity) score(a, b model.Move) float64 {
	v := 0.0
	if a.BlockID == b.BlockID {
		v += s.cfg.BlockWeight
	}
	if a.BlockSource == b.BlockSource {
		v += s.cfg.BlockSourceWeight
	}
	if a.BlockTarget == b.BlockTarget {
		v += s.cfg.TargetWeight
	}
	if a.CraneSource == b.CraneSource {
		v += s.cfg.CraneSourceWeight
	}
	return v
}
