// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package planner is the entry point used by the CLI and the HTTP API. It
// builds search states from layout records, computes initial plans through
// the beam engine with a plan cache in front, and replans through the
// dynamic strategies.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianYard/services/planner/dynamic"
	"github.com/AleutianAI/AleutianYard/services/planner/search"
	"github.com/AleutianAI/AleutianYard/services/planner/storage"
	"github.com/AleutianAI/AleutianYard/services/yard/cost"
	"github.com/AleutianAI/AleutianYard/services/yard/manager"
	"github.com/AleutianAI/AleutianYard/services/yard/model"
	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
)

// YardSpec gives the yard dimensions.
type YardSpec struct {
	Length int `json:"length" yaml:"length" validate:"gte=1,lte=64"`
	Width  int `json:"width" yaml:"width" validate:"gte=1,lte=64"`
	Height int `json:"height" yaml:"height" validate:"gte=1,lte=32"`
}

// Layout is a yard and the blocks in it.
type Layout struct {
	Yard    YardSpec               `json:"yard"`
	Records []manager.LayoutRecord `json:"records" validate:"dive"`
}

// SolveRequest asks for a plan from a layout.
type SolveRequest struct {
	Layout Layout

	// Width and Timeout default to the initial search settings.
	Width   int
	Timeout time.Duration

	// NoCache skips the plan cache lookup. The result is still stored.
	NoCache bool
}

// ReplanRequest asks a strategy to revise a stale plan.
type ReplanRequest struct {
	Current Layout

	// Previous is the layout the stale plan was computed for. Required by
	// the restart-point variants.
	Previous *Layout

	Planned []model.Move
	Event   dynamic.EventKind
	Variant dynamic.Variant
}

// Plan is a computed move sequence.
type Plan struct {
	Moves    []model.Move  `json:"moves"`
	Cost     int           `json:"cost"`
	Bound    int           `json:"bound"`
	Variant  string        `json:"variant"`
	Cached   bool          `json:"cached"`
	Duration time.Duration `json:"duration_ns"`
	Stats    *search.Stats `json:"stats,omitempty"`
}

// Option configures a Service.
type Option func(*Service)

// WithStore puts a plan cache in front of initial searches.
func WithStore(s *storage.PlanStore) Option {
	return func(svc *Service) { svc.store = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(svc *Service) { svc.logger = l }
}

// WithClock sets the clock for search deadlines and durations.
func WithClock(c clockwork.Clock) Option {
	return func(svc *Service) { svc.clock = c }
}

// Service plans and replans layouts.
//
// Thread Safety: Safe for concurrent use. UpdateConfig swaps the search
// and strategy settings for subsequent calls only.
type Service struct {
	calc   *cost.Calculator
	store  *storage.PlanStore
	logger *slog.Logger
	clock  clockwork.Clock

	mu         sync.RWMutex
	searchCfg  search.Config
	dynamicCfg dynamic.Config
}

// NewService creates a Service.
func NewService(costCfg cost.Config, searchCfg search.Config, dynamicCfg dynamic.Config, opts ...Option) *Service {
	svc := &Service{
		calc:       cost.NewCalculator(costCfg),
		searchCfg:  searchCfg,
		dynamicCfg: dynamicCfg,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if svc.clock == nil {
		svc.clock = clockwork.NewRealClock()
	}
	return svc
}

// Calculator returns the shared cost calculator.
func (s *Service) Calculator() *cost.Calculator { return s.calc }

// Config returns the active search and strategy settings.
func (s *Service) Config() (search.Config, dynamic.Config) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.searchCfg, s.dynamicCfg
}

// UpdateConfig replaces the search and strategy settings.
func (s *Service) UpdateConfig(searchCfg search.Config, dynamicCfg dynamic.Config) error {
	if err := validator.New().Struct(searchCfg); err != nil {
		return fmt.Errorf("invalid search config: %w", err)
	}
	if err := dynamicCfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.searchCfg, s.dynamicCfg = searchCfg, dynamicCfg
	s.mu.Unlock()
	s.logger.Info("planner config updated",
		slog.Int("beam_width", searchCfg.BeamWidth),
		slog.Duration("timeout", searchCfg.Timeout))
	return nil
}

// BuildState creates a search state for layout with a default crane.
func (s *Service) BuildState(layout Layout) (*search.State, error) {
	return BuildState(layout, s.calc)
}

// BuildState creates a search state for layout priced by calc.
func BuildState(layout Layout, calc *cost.Calculator) (*search.State, error) {
	if err := validator.New().Struct(layout); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLayout, err)
	}
	y, err := model.NewYard(layout.Yard.Length, layout.Yard.Width, layout.Yard.Height)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidLayout, err)
	}
	mgr, err := manager.NewWithDefaultCrane(y, calc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidLayout, err)
	}
	if err := mgr.LoadInitialLayout(layout.Records); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidLayout, err)
	}
	return search.NewState(mgr), nil
}

func (s *Service) beam(cfg search.Config) *search.Beam {
	return search.NewBeam(cfg, search.WithLogger(s.logger), search.WithClock(s.clock))
}

// Solve computes a plan for req.Layout, consulting the plan cache first.
//
// Outputs:
//
//	*Plan - The plan; Cached is set when it came from the store.
//	error - ErrInvalidLayout, or search.ErrNoSolutionInBudget.
func (s *Service) Solve(ctx context.Context, req SolveRequest) (*Plan, error) {
	root, err := s.BuildState(req.Layout)
	if err != nil {
		return nil, err
	}
	cfg, _ := s.Config()
	width := req.Width
	if width <= 0 {
		width = cfg.InitialBeamWidth
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = cfg.InitialTimeout
	}
	key := storage.Key{Digest: CacheDigest(root.Yard()), Variant: "initial", Width: width}
	logger := s.logger.With(slog.String("dimensions", root.Yard().Dimensions()), slog.Int("width", width))

	if s.store != nil && !req.NoCache {
		stored, err := s.store.Get(ctx, key)
		switch {
		case err == nil:
			logger.Info("plan served from cache", slog.Int("moves", len(stored.Moves)))
			recordRequest(ctx, "solve", 0, len(stored.Moves), true, nil)
			return &Plan{Moves: stored.Moves, Cost: stored.Cost, Bound: stored.Bound, Variant: key.Variant, Cached: true}, nil
		case !errors.Is(err, storage.ErrPlanNotFound):
			logger.Warn("plan cache lookup failed", slog.String("error", err.Error()))
		}
	}

	start := s.clock.Now()
	bound := root.Bound()
	res, err := s.beam(cfg).Search(ctx, root, search.Request{
		Width:   width,
		Timeout: timeout,
		Rank:    search.BoundRank,
		Label:   "solve",
	})
	if err != nil {
		recordRequest(ctx, "solve", s.clock.Since(start), 0, false, err)
		return nil, err
	}
	moves := res.Best.Plan()
	plan := &Plan{
		Moves:    moves,
		Cost:     s.calc.TotalCost(moves),
		Bound:    bound,
		Variant:  key.Variant,
		Duration: s.clock.Since(start),
		Stats:    &res.Stats,
	}
	if s.store != nil {
		if err := s.store.Put(ctx, key, storage.StoredPlan{Moves: moves, Cost: plan.Cost, Bound: bound}); err != nil {
			logger.Warn("plan cache write failed", slog.String("error", err.Error()))
		}
	}
	recordRequest(ctx, "solve", plan.Duration, len(moves), false, nil)
	logger.Info("plan computed",
		slog.Int("moves", len(moves)),
		slog.Int("cost", plan.Cost),
		slog.Duration("duration", plan.Duration))
	return plan, nil
}

// Replan revises req.Planned after req.Event with req.Variant.
//
// Outputs:
//
//	*Plan - The revised plan from the current layout.
//	error - ErrInvalidLayout, dynamic.ErrNoPreviousState,
//	        search.ErrNoSolutionInBudget or search.ErrInconsistentPlan.
func (s *Service) Replan(ctx context.Context, req ReplanRequest) (*Plan, error) {
	current, err := s.BuildState(req.Current)
	if err != nil {
		return nil, err
	}
	var previous *search.State
	if req.Previous != nil {
		if previous, err = s.BuildState(*req.Previous); err != nil {
			return nil, fmt.Errorf("previous layout: %w", err)
		}
	}

	searchCfg, dynamicCfg := s.Config()
	strategy, err := dynamic.NewFactory(s.beam(searchCfg), dynamicCfg, dynamic.WithLogger(s.logger)).Create(req.Variant)
	if err != nil {
		return nil, err
	}

	start := s.clock.Now()
	best, err := strategy.Recalculate(ctx, current, previous, req.Planned, req.Event)
	if err != nil {
		recordRequest(ctx, req.Variant.String(), s.clock.Since(start), 0, false, err)
		return nil, err
	}
	moves := best.Plan()
	plan := &Plan{
		Moves:    moves,
		Cost:     s.calc.TotalCost(moves),
		Bound:    current.Bound(),
		Variant:  req.Variant.String(),
		Duration: s.clock.Since(start),
	}
	recordRequest(ctx, plan.Variant, plan.Duration, len(moves), false, nil)
	return plan, nil
}

// CacheDigest extends the yard digest with its dimensions and every
// block goal, so layouts differing only in goals never share a plan.
func CacheDigest(y *model.Yard) string {
	var goals []string
	for _, id := range y.BlockIDs() {
		if t, ok := y.Target(id); ok {
			goals = append(goals, strconv.Itoa(id)+"@"+t.String())
		}
	}
	sort.Strings(goals)
	return y.Dimensions() + "|" + y.Digest() + "|G:" + strings.Join(goals, ",")
}
