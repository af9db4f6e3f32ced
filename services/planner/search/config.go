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

import "time"

// Config configures beam searches.
type Config struct {
	// BeamWidth is the number of branches kept per round when replanning.
	BeamWidth int `json:"beam_width" yaml:"beam_width" validate:"gte=1"`

	// InitialBeamWidth is used for the first plan of a run.
	InitialBeamWidth int `json:"initial_beam_width" yaml:"initial_beam_width" validate:"gte=1"`

	// Timeout bounds a replanning search. Zero disables the deadline.
	Timeout time.Duration `json:"timeout" yaml:"timeout" validate:"gte=0"`

	// InitialTimeout bounds the first plan's search.
	InitialTimeout time.Duration `json:"initial_timeout" yaml:"initial_timeout" validate:"gte=0"`

	// BlockedPenalty weighs the blocked block count in the standard rank.
	BlockedPenalty float64 `json:"blocked_penalty" yaml:"blocked_penalty" validate:"gte=0"`

	Parallel      ParallelConfig      `json:"parallel" yaml:"parallel"`
	Observability ObservabilityConfig `json:"observability" yaml:"observability"`
}

// ParallelConfig controls per-round branch expansion.
type ParallelConfig struct {
	Enabled        bool `json:"enabled" yaml:"enabled"`
	MaxConcurrency int  `json:"max_concurrency" yaml:"max_concurrency" validate:"gte=1"`
}

// ObservabilityConfig toggles tracing and Prometheus metrics.
type ObservabilityConfig struct {
	TracingEnabled bool `json:"tracing_enabled" yaml:"tracing_enabled"`
	MetricsEnabled bool `json:"metrics_enabled" yaml:"metrics_enabled"`
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		BeamWidth:        2,
		InitialBeamWidth: 10,
		Timeout:          100 * time.Second,
		InitialTimeout:   1000 * time.Second,
		BlockedPenalty:   10,
		Parallel: ParallelConfig{
			Enabled:        true,
			MaxConcurrency: 4,
		},
		Observability: ObservabilityConfig{
			TracingEnabled: true,
			MetricsEnabled: true,
		},
	}
}
