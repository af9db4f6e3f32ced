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

	"github.com/AleutianAI/AleutianYard/services/planner/search"
	"github.com/AleutianAI/AleutianYard/services/yard/model"
)

// Backtracking replays the still-valid prefix of the stale plan, then
// searches from its end. When that search fails it undoes one move at a
// time and retries until it finds a plan or runs out of history.
//
// A new arrival that pushes the queue past its ideal depth makes the old
// prefix a poor start, so that case delegates to Standard.
type Backtracking struct {
	base
	fallback *Standard
}

// Variant implements Strategy.
func (b *Backtracking) Variant() Variant { return VariantBacktrackingPoint }

// Recalculate implements Strategy.
func (b *Backtracking) Recalculate(ctx context.Context, current, previous *search.State, planned []model.Move, kind EventKind) (*search.State, error) {
	ideal := current.Manager().Calculator().IdealQueueSize()
	if kind == EventNewBlock && current.Yard().ArrivalCount() > ideal {
		b.logger.Debug("arrival queue above ideal, recalculating from scratch",
			slog.Int("queue", current.Yard().ArrivalCount()), slog.Int("ideal", ideal))
		recordFallback(VariantBacktrackingPoint, "queue_above_ideal")
		return b.fallback.Recalculate(ctx, current, previous, planned, kind)
	}

	point := current.Clone()
	for _, m := range restamp(current, planned) {
		if err := point.Apply(m); err != nil {
			return nil, fmt.Errorf("%w: replaying restamped %s: %v", search.ErrInconsistentPlan, m, err)
		}
	}

	for {
		best, err := b.run(ctx, point, b.standardRank(), VariantBacktrackingPoint.String())
		if err == nil {
			return best, nil
		}
		if !errors.Is(err, search.ErrNoSolutionInBudget) {
			return nil, err
		}
		if ctx.Err() != nil || point.HistoryLen() == current.HistoryLen() {
			return nil, err
		}
		undone, uerr := point.UndoLast()
		if uerr != nil {
			return nil, uerr
		}
		b.logger.Debug("backtracking", slog.String("undone", undone.String()), slog.Int("history", point.HistoryLen()))
	}
}
