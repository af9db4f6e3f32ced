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
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/AleutianAI/AleutianYard/services/planner/dynamic"
	"github.com/AleutianAI/AleutianYard/services/planner/search"
	"github.com/AleutianAI/AleutianYard/services/yard/model"
	"golang.org/x/sync/errgroup"
)

// ComparisonOption configures a Comparison.
type ComparisonOption func(*Comparison)

// WithSimulatorOptions passes opts to every simulator the comparison
// creates.
func WithSimulatorOptions(opts ...Option) ComparisonOption {
	return func(c *Comparison) { c.simOpts = append(c.simOpts, opts...) }
}

// WithParallelism runs up to n configurations of a run at once.
func WithParallelism(n int) ComparisonOption {
	return func(c *Comparison) {
		if n > 0 {
			c.parallelism = n
		}
	}
}

// WithComparisonLogger sets the logger for run-level messages.
func WithComparisonLogger(l *slog.Logger) ComparisonOption {
	return func(c *Comparison) { c.logger = l }
}

// Comparison replays the same seeded event streams under several
// configurations, all starting from one shared initial plan.
type Comparison struct {
	initial     *search.State
	configs     []Config
	simOpts     []Option
	parallelism int
	logger      *slog.Logger
}

// NewComparison creates a runner for initial.
func NewComparison(initial *search.State, opts ...ComparisonOption) *Comparison {
	c := &Comparison{initial: initial, parallelism: 1}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// AddConfigurations adds one configuration per variant, each a copy of
// base with the variant replaced.
func (c *Comparison) AddConfigurations(variants []dynamic.Variant, base Config) {
	for _, v := range variants {
		cfg := base
		cfg.Variant = v
		c.configs = append(c.configs, cfg)
	}
}

// Configurations returns the configurations added so far.
func (c *Comparison) Configurations() []Config {
	return append([]Config(nil), c.configs...)
}

// ConfigID names cfg as "{variant}_{events}_{probabilities}".
func ConfigID(cfg Config) string {
	return fmt.Sprintf("%s_%d_%s", cfg.Variant, cfg.TotalEvents, cfg.Probabilities)
}

// Report is the exported outcome of a comparison.
type Report struct {
	Warehouse WarehouseInfo   `json:"warehouse"`
	Configs   []ConfigSummary `json:"configs"`
	Runs      []RunReport     `json:"runs"`
}

// WarehouseInfo describes the compared yard.
type WarehouseInfo struct {
	Dimensions     string `json:"dimensions"`
	TotalPositions int    `json:"total_positions"`
	Length         int    `json:"length"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
}

// ConfigSummary describes one compared configuration.
type ConfigSummary struct {
	ID            string          `json:"id"`
	Variant       dynamic.Variant `json:"variant"`
	TotalEvents   int             `json:"total_events"`
	Probabilities Probabilities   `json:"event_probabilities"`
	BeamWidth     int             `json:"beam_width"`
}

// RunReport holds one seed's results keyed by config id.
type RunReport struct {
	Seed    uint64             `json:"seed"`
	Results map[string]Summary `json:"results"`
}

// Summary aggregates one simulation result.
type Summary struct {
	RunID                  string         `json:"run_id"`
	Status                 Status         `json:"status"`
	Error                  string         `json:"error,omitempty"`
	RuntimeSeconds         float64        `json:"runtime"`
	EndQuality             int            `json:"end_quality"`
	TotalMoveCost          int            `json:"total_move_cost"`
	TotalMovesExecuted     int            `json:"total_moves_executed"`
	TotalPlannedMoves      int            `json:"total_planned_moves"`
	RemainingPlannedMoves  int            `json:"remaining_planned_moves"`
	EventCounts            map[string]int `json:"event_counts"`
	RecalculationCount     int            `json:"recalculation_count"`
	AverageRecalculationMs float64        `json:"average_recalculation_time_ms"`
	TotalRecalculationMs   float64        `json:"total_recalculation_time_ms"`
	InitialBound           int            `json:"initial_bound"`
	FinalBound             int            `json:"final_bound"`
	BoundChanges           []int          `json:"bound_changes"`
	Snapshots              []Snapshot     `json:"snapshots"`
}

// Summarize aggregates res.
func Summarize(res *Result) Summary {
	s := Summary{
		RunID:              res.RunID,
		Status:             res.Status,
		Error:              res.Error,
		RuntimeSeconds:     res.Runtime.Seconds(),
		EndQuality:         res.FinalBound,
		TotalMoveCost:      res.TotalMoveCost,
		TotalMovesExecuted: len(res.ExecutedMoves),
		FinalBound:         res.FinalBound,
	}
	if res.Stats == nil {
		return s
	}
	s.EventCounts = res.Stats.EventCounts()
	s.BoundChanges = res.Stats.BoundChanges()
	s.Snapshots = res.Stats.Snapshots
	if len(res.Stats.Snapshots) > 0 {
		first, last := res.Stats.Snapshots[0], res.Stats.Snapshots[len(res.Stats.Snapshots)-1]
		s.TotalPlannedMoves = first.PlannedMoves
		s.RemainingPlannedMoves = last.PlannedMoves
		s.InitialBound = first.Bound
	}
	n, total := res.Stats.Recalculations()
	s.RecalculationCount = n
	s.TotalRecalculationMs = float64(total.Microseconds()) / 1000
	if n > 0 {
		s.AverageRecalculationMs = s.TotalRecalculationMs / float64(n)
	}
	return s
}

// Run executes runs rounds. Every configuration of a round uses the same
// seed: startSeed, or startSeed+round when differentSeeds is set. A failed
// simulation is reported in its summary; only ctx or the initial plan can
// fail the comparison.
func (c *Comparison) Run(ctx context.Context, runs int, differentSeeds bool, startSeed uint64) (*Report, error) {
	if len(c.configs) == 0 {
		return nil, ErrNoConfigurations
	}
	plan, err := c.initialPlan(ctx)
	if err != nil {
		return nil, err
	}

	y := c.initial.Yard()
	report := &Report{
		Warehouse: WarehouseInfo{
			Dimensions:     y.Dimensions(),
			TotalPositions: y.TotalPositions(),
			Length:         y.Length(),
			Width:          y.Width(),
			Height:         y.Height(),
		},
	}
	for _, cfg := range c.configs {
		report.Configs = append(report.Configs, ConfigSummary{
			ID:            ConfigID(cfg),
			Variant:       cfg.Variant,
			TotalEvents:   cfg.TotalEvents,
			Probabilities: cfg.Probabilities,
			BeamWidth:     cfg.BeamWidth,
		})
	}

	for run := 0; run < runs; run++ {
		seed := startSeed
		if differentSeeds {
			seed += uint64(run)
		}
		c.logger.Info("comparison run started",
			slog.Int("run", run+1), slog.Int("runs", runs), slog.Uint64("seed", seed))

		results, err := c.runSeed(ctx, seed, plan)
		if err != nil {
			return nil, err
		}
		report.Runs = append(report.Runs, RunReport{Seed: seed, Results: results})
	}
	return report, nil
}

func (c *Comparison) initialPlan(ctx context.Context) ([]model.Move, error) {
	sim, err := New(c.initial, c.configs[0], c.simOpts...)
	if err != nil {
		return nil, err
	}
	return PlanInitial(ctx, sim.beam, sim.current)
}

func (c *Comparison) runSeed(ctx context.Context, seed uint64, plan []model.Move) (map[string]Summary, error) {
	var mu sync.Mutex
	results := make(map[string]Summary, len(c.configs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelism)
	for _, cfg := range c.configs {
		cfg.Seed = seed
		g.Go(func() error {
			opts := append(append([]Option(nil), c.simOpts...), WithInitialPlan(plan))
			sim, err := New(c.initial, cfg, opts...)
			if err != nil {
				return err
			}
			res, _ := sim.Run(gctx)
			if err := gctx.Err(); err != nil {
				return err
			}
			mu.Lock()
			results[ConfigID(cfg)] = Summarize(res)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ResolveOutputPath substitutes {beam_width}, {dimensions} and {seed} in
// pattern.
func ResolveOutputPath(pattern string, beamWidth int, dimensions string, seed uint64) string {
	return strings.NewReplacer(
		"{beam_width}", strconv.Itoa(beamWidth),
		"{dimensions}", dimensions,
		"{seed}", strconv.FormatUint(seed, 10),
	).Replace(pattern)
}

// OutputPath resolves pattern for this comparison's first configuration.
func (c *Comparison) OutputPath(pattern string, startSeed uint64) string {
	width := 0
	if len(c.configs) > 0 {
		width = c.configs[0].BeamWidth
	}
	return ResolveOutputPath(pattern, width, c.initial.Yard().Dimensions(), startSeed)
}
