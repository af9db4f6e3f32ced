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
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/AleutianAI/AleutianYard/services/planner/search"
	"github.com/AleutianAI/AleutianYard/services/yard/model"
)

// RepairSolver patches a stale plan locally instead of searching again.
//
// It keeps the still-valid prefix, then for every broken move clears the
// blocks in the way to low-interference slots and retries the move. A
// narrow beam finishes whatever the patched plan leaves undone. The result
// is rejected when it costs much more than the stale plan.
type RepairSolver struct {
	beam   *search.Beam
	cfg    RepairConfig
	logger *slog.Logger
}

// NewRepairSolver creates a repair solver.
func NewRepairSolver(beam *search.Beam, cfg RepairConfig, logger *slog.Logger) *RepairSolver {
	if logger == nil {
		logger = beam.Logger()
	}
	return &RepairSolver{beam: beam, cfg: cfg, logger: logger}
}

// Repair returns a terminal clone of current carrying the patched plan.
// An empty stale plan has no cost to measure a repair against, so it is
// rejected at once and the caller falls back to a full search.
//
// Outputs:
//
//	*search.State - Terminal state; Plan holds prefix, corrective and
//	                completion moves.
//	error         - ErrRepairRejected when planned is empty, a corrective
//	                move cannot be built or the cost exceeds the threshold,
//	                search.ErrNoSolutionInBudget when completion fails,
//	                search.ErrInconsistentPlan when the result is not
//	                terminal.
func (r *RepairSolver) Repair(ctx context.Context, current *search.State, planned []model.Move) (*search.State, error) {
	if len(planned) == 0 {
		return nil, fmt.Errorf("%w: no stale plan to repair", ErrRepairRejected)
	}
	work := current.Clone()
	valid := restamp(current, planned)
	for _, m := range valid {
		if err := work.Apply(m); err != nil {
			return nil, fmt.Errorf("%w: replaying restamped %s: %v", search.ErrInconsistentPlan, m, err)
		}
	}

	broken := planned[len(valid):]
	for i, m := range broken {
		if err := r.correct(work, m, broken[i+1:]); err != nil {
			return nil, err
		}
	}

	if !work.IsTerminal() {
		if err := r.complete(ctx, work); err != nil {
			return nil, err
		}
	}
	if !work.IsTerminal() {
		return nil, fmt.Errorf("%w: repaired plan leaves criteria unmet", search.ErrInconsistentPlan)
	}

	original := current.Manager().TotalCost(planned)
	limit := r.cfg.threshold(len(planned)) * float64(original)
	spent := work.AccumulatedCost() - current.AccumulatedCost()
	if float64(spent) > limit {
		return nil, fmt.Errorf("%w: cost %d exceeds %.1f (stale plan %d)", ErrRepairRejected, spent, limit, original)
	}

	r.logger.Debug("plan repaired",
		slog.Int("reused", len(valid)),
		slog.Int("broken", len(broken)),
		slog.Int("moves", work.HistoryLen()-current.HistoryLen()),
		slog.Int("cost", spent),
		slog.Int("stale_cost", original),
	)
	return work, nil
}

// correct re-executes the intent of m on work. rest is the broken moves
// still to come and steers temporary slots away from their columns.
func (r *RepairSolver) correct(work *search.State, m model.Move, rest []model.Move) error {
	y := work.Yard()
	src, err := y.Position(m.BlockID)
	if err != nil || src.IsVoid() || src == m.BlockTarget {
		return nil
	}
	crane := r.crane(work, m.CraneID)
	if crane == nil {
		return fmt.Errorf("%w: no crane for %s", ErrRepairRejected, m)
	}

	for {
		above := y.BlocksAbove(m.BlockID)
		if len(above) == 0 {
			break
		}
		// Columns release from the top, the queue from the head.
		blocker := above[len(above)-1]
		if y.IsArrival(src) {
			blocker = above[0]
		}
		slot, ok := tempSlot(work, blocker, crane, rest)
		if !ok {
			return fmt.Errorf("%w: no slot for blocker %d of %s", ErrRepairRejected, blocker, m)
		}
		if err := relocate(work, crane, blocker, slot); err != nil {
			return err
		}
	}

	target := m.BlockTarget
	if !targetFree(y, src, target) || !crane.IsReachable(target) {
		slot, ok := tempSlot(work, m.BlockID, crane, rest)
		if !ok {
			return fmt.Errorf("%w: no slot for %s", ErrRepairRejected, m)
		}
		target = slot
	}
	return relocate(work, crane, m.BlockID, target)
}

// complete finishes work with a narrow beam from a reset clone and appends
// the found moves.
func (r *RepairSolver) complete(ctx context.Context, work *search.State) error {
	root := work.Clone()
	root.Reset()
	cfg := r.beam.Config()
	res, err := r.beam.Search(ctx, root, search.Request{
		Width:   r.cfg.BeamWidth,
		Timeout: cfg.Timeout,
		Rank:    search.StandardRank(cfg.BlockedPenalty),
		Label:   "repair_completion",
	})
	if err != nil {
		return err
	}
	for _, m := range res.Best.Plan() {
		if err := work.Apply(m); err != nil {
			return fmt.Errorf("%w: appending completion %s: %v", search.ErrInconsistentPlan, m, err)
		}
	}
	return nil
}

func (r *RepairSolver) crane(work *search.State, id int) *model.Crane {
	if c, ok := work.Manager().Crane(id); ok {
		return c
	}
	if c, ok := work.Manager().PrimaryCrane(); ok {
		return c
	}
	return nil
}

// targetFree reports whether a block at src can go straight to target.
func targetFree(y *model.Yard, src, target model.Position) bool {
	switch {
	case y.IsArrival(target):
		return false
	case target.IsVoid():
		return !y.IsArrival(src)
	case target.SameColumn(src):
		return false
	}
	slot, ok := y.FreeSlot(target)
	return ok && slot == target
}

type slotCandidate struct {
	pos          model.Position
	interference int
	distance     int
}

// tempSlot picks a parking slot for block id: never its own column, VOID
// only when VOID is its goal and it is not leaving ARRIVAL. Slots touched
// by fewer upcoming moves win, then slots nearer the block's goal.
func tempSlot(work *search.State, id int, crane *model.Crane, rest []model.Move) (model.Position, bool) {
	y := work.Yard()
	src, err := y.Position(id)
	if err != nil {
		return model.Position{}, false
	}
	goal, hasGoal := y.Target(id)
	voidOK := hasGoal && goal.IsVoid() && !y.IsArrival(src)

	var cands []slotCandidate
	for _, p := range y.FreePositions() {
		if !crane.IsReachable(p) {
			continue
		}
		c := slotCandidate{pos: p}
		if p.IsVoid() {
			if !voidOK {
				continue
			}
		} else {
			if p.SameColumn(src) {
				continue
			}
			c.interference = interference(p, rest)
			switch {
			case !hasGoal:
			case goal.IsVoid():
				c.distance = 1
			default:
				c.distance = abs(p.X-goal.X) + abs(p.Z-goal.Z)
			}
		}
		cands = append(cands, c)
	}
	if len(cands) == 0 {
		return model.Position{}, false
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].interference != cands[j].interference {
			return cands[i].interference < cands[j].interference
		}
		return cands[i].distance < cands[j].distance
	})
	return cands[0].pos, true
}

// interference counts upcoming moves that start or end on p's column.
func interference(p model.Position, rest []model.Move) int {
	n := 0
	for _, m := range rest {
		if m.BlockSource.SameColumn(p) || m.BlockTarget.SameColumn(p) {
			n++
		}
	}
	return n
}

func relocate(work *search.State, crane *model.Crane, id int, target model.Position) error {
	y := work.Yard()
	src, err := y.Position(id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRepairRejected, err)
	}
	mv := model.Move{
		CraneID:      crane.ID,
		BlockID:      id,
		CraneSource:  crane.Current(),
		CraneTarget:  target,
		BlockSource:  src,
		BlockTarget:  target,
		ArrivalDepth: y.ArrivalCount(),
	}
	if err := work.Apply(mv); err != nil {
		return fmt.Errorf("%w: corrective %s: %v", ErrRepairRejected, mv, err)
	}
	return nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Repair wraps RepairSolver and falls back to Standard whenever the repair
// is rejected or its completion search fails.
type Repair struct {
	base
	solver   *RepairSolver
	fallback *Standard
}

// Variant implements Strategy.
func (r *Repair) Variant() Variant { return VariantRepairHeuristic }

// Recalculate implements Strategy.
func (r *Repair) Recalculate(ctx context.Context, current, previous *search.State, planned []model.Move, kind EventKind) (*search.State, error) {
	best, err := r.solver.Repair(ctx, current, planned)
	if err == nil {
		return best, nil
	}
	if errors.Is(err, search.ErrInconsistentPlan) || ctx.Err() != nil {
		return nil, err
	}
	reason := "rejected"
	if errors.Is(err, search.ErrNoSolutionInBudget) {
		reason = "no_solution"
	}
	r.logger.Warn("repair failed, recalculating from scratch", slog.String("reason", reason), slog.String("error", err.Error()))
	recordFallback(VariantRepairHeuristic, reason)
	return r.fallback.Recalculate(ctx, current, previous, planned, kind)
}
