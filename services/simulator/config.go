// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package simulator drives a yard through a seeded stream of operational
// events, replanning with a dynamic strategy after every disruption and
// recording a telemetry snapshot per event.
//
// A run is deterministic for a given layout, initial plan, configuration
// and seed. Each run owns its *rand.Rand; nothing reads the global source.
package simulator

import (
	"fmt"
	"time"

	"github.com/AleutianAI/AleutianYard/services/planner/dynamic"
	"github.com/AleutianAI/AleutianYard/services/planner/search"
	"github.com/go-playground/validator/v10"
)

// Probabilities weighs the event kinds. Weights need not sum to one; a
// draw is scaled by their total.
type Probabilities struct {
	ExpectedExecution float64 `json:"expected_execution" yaml:"expected_execution" validate:"gte=0"`
	NewBlock          float64 `json:"new_block" yaml:"new_block" validate:"gte=0"`
	Missmove          float64 `json:"missmove" yaml:"missmove" validate:"gte=0"`
	BlockTargetUpdate float64 `json:"block_target_update" yaml:"block_target_update" validate:"gte=0"`
}

// DefaultProbabilities returns {expected .4, new .2, miss .2, target .2}.
func DefaultProbabilities() Probabilities {
	return Probabilities{ExpectedExecution: 0.4, NewBlock: 0.2, Missmove: 0.2, BlockTargetUpdate: 0.2}
}

// Total returns the sum of all weights.
func (p Probabilities) Total() float64 {
	return p.ExpectedExecution + p.NewBlock + p.Missmove + p.BlockTargetUpdate
}

// weights lists kinds in draw order.
func (p Probabilities) weights() []weightedKind {
	return []weightedKind{
		{dynamic.EventExpectedExecution, p.ExpectedExecution},
		{dynamic.EventNewBlock, p.NewBlock},
		{dynamic.EventMissmove, p.Missmove},
		{dynamic.EventBlockTargetUpdate, p.BlockTargetUpdate},
	}
}

// String renders "expected_execution-0.4_new_block-0.2_...", used in
// comparison config ids.
func (p Probabilities) String() string {
	out := ""
	for i, w := range p.weights() {
		if i > 0 {
			out += "_"
		}
		out += fmt.Sprintf("%s-%.1f", w.kind, w.weight)
	}
	return out
}

type weightedKind struct {
	kind   dynamic.EventKind
	weight float64
}

// Config configures one simulation run.
type Config struct {
	// TotalEvents is the number of events to generate.
	TotalEvents int `json:"total_events" yaml:"total_events" validate:"gte=1"`

	Probabilities Probabilities `json:"probabilities" yaml:"probabilities"`

	// Variant selects the replanning strategy.
	Variant dynamic.Variant `json:"variant" yaml:"variant"`

	// BeamWidth and DynamicTimeout bound every replan.
	BeamWidth      int           `json:"beam_width" yaml:"beam_width" validate:"gte=1"`
	DynamicTimeout time.Duration `json:"dynamic_timeout" yaml:"dynamic_timeout" validate:"gte=0"`

	// InitialBeamWidth and InitialTimeout bound the first plan when none
	// is supplied.
	InitialBeamWidth int           `json:"initial_beam_width" yaml:"initial_beam_width" validate:"gte=1"`
	InitialTimeout   time.Duration `json:"initial_timeout" yaml:"initial_timeout" validate:"gte=0"`

	// Seed feeds the run's PCG source.
	Seed uint64 `json:"seed" yaml:"seed"`
}

// DefaultConfig returns 1000 events of the default mix, replanned with the
// standard strategy at width 2, seed 1337.
func DefaultConfig() Config {
	sc := search.DefaultConfig()
	return Config{
		TotalEvents:      1000,
		Probabilities:    DefaultProbabilities(),
		Variant:          dynamic.VariantStandard,
		BeamWidth:        sc.BeamWidth,
		DynamicTimeout:   sc.Timeout,
		InitialBeamWidth: sc.InitialBeamWidth,
		InitialTimeout:   sc.InitialTimeout,
		Seed:             1337,
	}
}

// Validate checks struct tags and that at least one event kind can be
// drawn.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Probabilities.Total() <= 0 {
		return fmt.Errorf("%w: event probabilities sum to zero", ErrInvalidConfig)
	}
	if c.Variant.String() == "unknown" {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, dynamic.ErrUnknownVariant)
	}
	return nil
}

// searchConfig overlays the run's widths and timeouts on base.
func (c Config) searchConfig(base search.Config) search.Config {
	base.BeamWidth = c.BeamWidth
	base.Timeout = c.DynamicTimeout
	base.InitialBeamWidth = c.InitialBeamWidth
	base.InitialTimeout = c.InitialTimeout
	return base
}
