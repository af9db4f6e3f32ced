// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianYard/services/planner/dynamic"
	"github.com/AleutianAI/AleutianYard/services/planner/search"
	"github.com/AleutianAI/AleutianYard/services/yard/model"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// Option configures a Simulator.
type Option func(*Simulator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulator) { s.logger = l }
}

// WithClock sets the clock used for snapshot timestamps, run time and
// search deadlines.
func WithClock(c clockwork.Clock) Option {
	return func(s *Simulator) { s.clock = c }
}

// WithSearchConfig sets the base search configuration. The run's widths
// and timeouts override the matching fields.
func WithSearchConfig(c search.Config) Option {
	return func(s *Simulator) { s.searchCfg = c }
}

// WithDynamicConfig sets the strategy tuning.
func WithDynamicConfig(c dynamic.Config) Option {
	return func(s *Simulator) { s.dynamicCfg = c }
}

// WithInitialPlan skips the initial search and starts from plan.
func WithInitialPlan(plan []model.Move) Option {
	return func(s *Simulator) {
		s.planned = append([]model.Move(nil), plan...)
		s.hasPlan = true
	}
}

// WithObserver adds a snapshot observer.
func WithObserver(o Observer) Option {
	return func(s *Simulator) { s.observers = append(s.observers, o) }
}

// WithRunID overrides the generated run id.
func WithRunID(id string) Option {
	return func(s *Simulator) { s.runID = id }
}

// Simulator executes one seeded run.
//
// Thread Safety: Not safe for concurrent use. Run may be called once.
type Simulator struct {
	cfg        Config
	searchCfg  search.Config
	dynamicCfg dynamic.Config

	current  *search.State
	previous *search.State
	planned  []model.Move
	hasPlan  bool
	executed []model.Move

	beam      *search.Beam
	strategy  dynamic.Strategy
	generator *Generator
	stats     *Stats
	observers []Observer

	logger    *slog.Logger
	clock     clockwork.Clock
	runID     string
	processed int
	progress  rate.Sometimes
}

// New prepares a run on a clone of initial.
//
// Outputs:
//
//	*Simulator - Ready to Run.
//	error      - ErrInvalidConfig, or dynamic.ErrUnknownVariant.
func New(initial *search.State, cfg Config, opts ...Option) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Simulator{
		cfg:        cfg,
		searchCfg:  search.DefaultConfig(),
		dynamicCfg: dynamic.DefaultConfig(),
		progress:   rate.Sometimes{First: 3, Interval: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.runID == "" {
		s.runID = uuid.NewString()
	}
	s.logger = s.logger.With(slog.String("run_id", s.runID), slog.String("variant", cfg.Variant.String()))

	s.beam = search.NewBeam(cfg.searchConfig(s.searchCfg), search.WithClock(s.clock), search.WithLogger(s.logger))
	factory := dynamic.NewFactory(s.beam, s.dynamicCfg, dynamic.WithLogger(s.logger))
	strategy, err := factory.Create(cfg.Variant)
	if err != nil {
		return nil, err
	}
	s.strategy = strategy

	s.current = initial.Clone()
	s.current.Reset()
	s.generator = NewGenerator(NewRand(cfg.Seed), cfg.Probabilities)
	s.stats = NewStats(cfg.TotalEvents)
	return s, nil
}

// PlanInitial finds the first plan from root with the initial width and
// timeout of beam's configuration, ranking by bound alone.
func PlanInitial(ctx context.Context, beam *search.Beam, root *search.State) ([]model.Move, error) {
	cfg := beam.Config()
	res, err := beam.Search(ctx, root, search.Request{
		Width:   cfg.InitialBeamWidth,
		Timeout: cfg.InitialTimeout,
		Rank:    search.BoundRank,
		Label:   "initial",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoInitialPlan, err)
	}
	return res.Best.Plan(), nil
}

// RunID returns the run identifier.
func (s *Simulator) RunID() string { return s.runID }

// Current returns the live state. Callers must not mutate it.
func (s *Simulator) Current() *search.State { return s.current }

// Planned returns a copy of the active plan.
func (s *Simulator) Planned() []model.Move { return append([]model.Move(nil), s.planned...) }

// Run processes events until TotalEvents have been handled, the yard
// overflows or ctx ends.
//
// Outputs:
//
//	*Result - Always non-nil.
//	error   - Non-nil when the status is StatusFailed, or the context
//	          error when the run was cut short by ctx.
func (s *Simulator) Run(ctx context.Context) (*Result, error) {
	start := s.clock.Now()
	s.logger.Info("simulation started",
		slog.Int("events", s.cfg.TotalEvents),
		slog.Uint64("seed", s.cfg.Seed),
		slog.String("dimensions", s.current.Yard().Dimensions()))

	if !s.hasPlan {
		plan, err := PlanInitial(ctx, s.beam, s.current)
		if err != nil {
			return s.finish(start, StatusFailed, err)
		}
		s.planned = plan
		s.hasPlan = true
	}

	for s.processed < s.cfg.TotalEvents && s.current.Manager().Telemetry().WarehouseUtilization <= 1 {
		if err := ctx.Err(); err != nil {
			return s.finish(start, StatusTerminated, err)
		}
		ev := s.generator.Next(s.current, s.planned)
		if err := s.handle(ctx, ev); err != nil {
			if ctx.Err() != nil {
				return s.finish(start, StatusTerminated, ctx.Err())
			}
			return s.finish(start, StatusFailed, err)
		}
		s.processed++
	}

	if s.processed >= s.cfg.TotalEvents {
		return s.finish(start, StatusCompleted, nil)
	}
	s.logger.Warn("yard overflowed, stopping", slog.Int("processed", s.processed))
	return s.finish(start, StatusTerminated, nil)
}

func (s *Simulator) finish(start time.Time, status Status, err error) (*Result, error) {
	runtime := s.clock.Since(start)
	res := &Result{
		RunID:         s.runID,
		Variant:       s.cfg.Variant,
		Seed:          s.cfg.Seed,
		Status:        status,
		Runtime:       runtime,
		ExecutedMoves: append([]model.Move(nil), s.executed...),
		TotalMoveCost: s.current.Manager().TotalCost(s.executed),
		Stats:         s.stats,
	}
	if last, ok := s.stats.Last(); ok {
		res.FinalBound = last.Bound
	} else {
		res.FinalBound = s.current.Bound() - s.current.AccumulatedCost()
	}
	if err != nil {
		res.Error = err.Error()
	}
	recordRun(s.cfg.Variant, status, runtime)

	attrs := []any{
		slog.String("status", status.String()),
		slog.Int("processed", s.processed),
		slog.Int("executed_moves", len(s.executed)),
		slog.Int("total_cost", res.TotalMoveCost),
		slog.Duration("runtime", runtime),
	}
	if status == StatusFailed {
		s.logger.Error("simulation failed", append(attrs, slog.String("error", res.Error))...)
	} else {
		s.logger.Info("simulation finished", attrs...)
	}
	return res, err
}

// handle executes one event. Expected executions and missmoves are
// skipped, but still recorded, once the yard is solved or the plan is
// empty.
func (s *Simulator) handle(ctx context.Context, ev Event) error {
	idle := s.current.IsTerminal() || len(s.planned) == 0
	if idle && (ev.Kind == dynamic.EventExpectedExecution || ev.Kind == dynamic.EventMissmove) {
		recordEvent(ev.Kind, true)
		s.snapshot(ctx, ev.Kind, true, nil, nil)
		return nil
	}
	recordEvent(ev.Kind, false)

	switch ev.Kind {
	case dynamic.EventExpectedExecution:
		mv, err := s.applyNext()
		if err != nil {
			return err
		}
		s.snapshot(ctx, ev.Kind, false, s.moveInfo(mv, true), nil)
		return nil

	case dynamic.EventNewBlock:
		s.previous = s.current.Clone()
		if err := s.current.Manager().AddArrival(ev.Block); err != nil {
			return fmt.Errorf("enqueue block %d: %w", ev.Block.ID, err)
		}
		return s.replan(ctx, ev.Kind, nil)

	case dynamic.EventMissmove:
		s.previous = s.current.Clone()
		intended := s.planned[0]
		s.planned = s.planned[1:]
		if err := s.previous.Apply(intended); err != nil {
			return fmt.Errorf("replay intended move: %w", err)
		}
		if err := s.current.Apply(ev.Move); err != nil {
			return fmt.Errorf("execute missmove: %w", err)
		}
		s.executed = append(s.executed, ev.Move)
		return s.replan(ctx, ev.Kind, s.moveInfo(ev.Move, false))

	case dynamic.EventBlockTargetUpdate:
		s.previous = s.current.Clone()
		if err := s.current.Manager().SetBlockGoal(ev.Block.ID, model.Void); err != nil {
			return fmt.Errorf("update goal of block %d: %w", ev.Block.ID, err)
		}
		return s.replan(ctx, ev.Kind, nil)
	}
	return fmt.Errorf("unhandled event kind %s", ev.Kind)
}

// applyNext executes the head of the plan.
func (s *Simulator) applyNext() (model.Move, error) {
	if len(s.planned) == 0 {
		return model.Move{}, ErrPlanExhausted
	}
	mv := s.planned[0]
	if err := s.current.Apply(mv); err != nil {
		return model.Move{}, fmt.Errorf("execute planned move: %w", err)
	}
	s.planned = s.planned[1:]
	s.executed = append(s.executed, mv)
	return mv, nil
}

// replan runs the strategy from the live state and swaps in its plan.
func (s *Simulator) replan(ctx context.Context, kind dynamic.EventKind, executed *MoveInfo) error {
	s.current.Reset()
	start := s.clock.Now()
	best, err := s.strategy.Recalculate(ctx, s.current, s.previous, s.planned, kind)
	elapsed := s.clock.Since(start)
	s.previous = nil
	if err != nil {
		if errors.Is(err, search.ErrInconsistentPlan) {
			return fmt.Errorf("replan after %s: %w", kind, err)
		}
		return fmt.Errorf("%s found no plan after %s: %w", s.cfg.Variant, kind, err)
	}
	s.planned = best.Plan()
	s.snapshot(ctx, kind, false, executed, &RecalculationInfo{Duration: elapsed, PlanLength: len(s.planned)})
	return nil
}

func (s *Simulator) moveInfo(mv model.Move, expected bool) *MoveInfo {
	return &MoveInfo{
		BlockID:  mv.BlockID,
		Source:   mv.BlockSource,
		Target:   mv.BlockTarget,
		Cost:     s.current.Manager().Calculator().MovementCost(mv),
		Expected: expected,
	}
}

func (s *Simulator) snapshot(ctx context.Context, kind dynamic.EventKind, skipped bool, mv *MoveInfo, recalc *RecalculationInfo) {
	snap := s.stats.record(s.clock.Now(), kind, s.current, len(s.planned), s.executed)
	snap.Skipped = skipped
	snap.Move = mv
	snap.Recalculation = recalc
	plannedMovesGauge.WithLabelValues(s.cfg.Variant.String()).Set(float64(len(s.planned)))

	s.progress.Do(func() {
		s.logger.Info("simulation progress",
			slog.Int("event", snap.EventNumber),
			slog.Int("total", s.cfg.TotalEvents),
			slog.String("kind", kind.String()),
			slog.Int("planned", len(s.planned)),
			slog.Float64("utilization", snap.Warehouse.Utilization))
	})
	for _, o := range s.observers {
		o.Observe(ctx, s.runID, *snap)
	}
}
