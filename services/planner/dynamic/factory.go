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
	"fmt"
	"log/slog"

	"github.com/AleutianAI/AleutianYard/services/planner/search"
	"github.com/AleutianAI/AleutianYard/services/yard/model"
	"github.com/jonboulle/clockwork"
)

// Option configures a Factory.
type Option func(*Factory)

// WithLogger sets the logger handed to every strategy.
func WithLogger(l *slog.Logger) Option {
	return func(f *Factory) { f.logger = l }
}

// WithMetrics toggles the recalculation counters.
func WithMetrics(enabled bool) Option {
	return func(f *Factory) { f.metrics = enabled }
}

// Factory builds strategies sharing one beam engine and configuration.
type Factory struct {
	beam    *search.Beam
	cfg     Config
	logger  *slog.Logger
	metrics bool
}

// NewFactory creates a Factory. The beam engine's configuration supplies
// width, timeout and the blocked penalty.
func NewFactory(beam *search.Beam, cfg Config, opts ...Option) *Factory {
	f := &Factory{beam: beam, cfg: cfg, metrics: beam.Config().Observability.MetricsEnabled}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = beam.Logger()
	}
	return f
}

// Create returns the strategy for v.
func (f *Factory) Create(v Variant) (Strategy, error) {
	b := base{beam: f.beam, cfg: f.cfg, logger: f.logger.With(slog.String("variant", v.String()))}
	var s Strategy
	switch v {
	case VariantStandard:
		s = &Standard{base: b}
	case VariantMovePrioritization:
		s = &MovePrioritization{base: b}
	case VariantAdaptiveRestartPoint:
		s = &AdaptiveRestart{base: b, finder: NewRestartFinder(f.cfg.Restart, f.beam.Config().BlockedPenalty)}
	case VariantAdaptivePrioCombined:
		s = &AdaptivePrioCombined{
			base:   b,
			finder: NewRestartFinder(f.cfg.Restart, f.beam.Config().BlockedPenalty),
			prio:   &MovePrioritization{base: b},
		}
	case VariantBacktrackingPoint:
		s = &Backtracking{base: b, fallback: &Standard{base: b}}
	case VariantRepairHeuristic:
		s = &Repair{base: b, solver: NewRepairSolver(f.beam, f.cfg.Repair, b.logger), fallback: &Standard{base: b}}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownVariant, int(v))
	}
	if f.metrics {
		s = &instrumented{Strategy: s, clock: f.beam.Clock()}
	}
	return s, nil
}

// base carries what every strategy needs.
type base struct {
	beam   *search.Beam
	cfg    Config
	logger *slog.Logger
}

func (b base) standardRank() search.RankFunc {
	return search.StandardRank(b.beam.Config().BlockedPenalty)
}

// run searches from root with the replanning width and timeout.
func (b base) run(ctx context.Context, root *search.State, rank search.RankFunc, label string) (*search.State, error) {
	cfg := b.beam.Config()
	res, err := b.beam.Search(ctx, root, search.Request{
		Width:   cfg.BeamWidth,
		Timeout: cfg.Timeout,
		Rank:    rank,
		Label:   label,
	})
	if err != nil {
		return nil, err
	}
	b.logger.Debug("replan search finished",
		slog.String("label", label),
		slog.Int("moves", res.Best.HistoryLen()),
		slog.Int("cost", res.Best.AccumulatedCost()),
		slog.Int64("rounds", res.Stats.Rounds),
	)
	return res.Best, nil
}

// restamp replays planned on a clone of from and returns the prefix that
// still applies. Each returned move carries the ARRIVAL depth observed
// just before it, so its cost reflects the live queue.
func restamp(from *search.State, planned []model.Move) []model.Move {
	probe := from.Clone()
	out := make([]model.Move, 0, len(planned))
	for _, m := range planned {
		m = m.WithArrivalDepth(probe.Yard().ArrivalCount())
		if err := probe.Apply(m); err != nil {
			break
		}
		out = append(out, m)
	}
	return out
}

// containsPrefix reports whether every move of prefix is in plan.
func containsPrefix(plan, prefix []model.Move) (model.Move, bool) {
	for _, m := range prefix {
		if !model.ContainsAction(plan, m) {
			return m, false
		}
	}
	return model.Move{}, true
}

// instrumented records outcome counters and latency around a strategy.
type instrumented struct {
	Strategy
	clock clockwork.Clock
}

func (s *instrumented) Recalculate(ctx context.Context, current, previous *search.State, planned []model.Move, kind EventKind) (*search.State, error) {
	start := s.clock.Now()
	best, err := s.Strategy.Recalculate(ctx, current, previous, planned, kind)
	recordRecalculation(s.Variant(), kind, err, s.clock.Since(start))
	return best, err
}
