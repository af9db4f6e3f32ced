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
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Config tunes the replanning strategies.
type Config struct {
	Similarity SimilarityConfig `json:"similarity" yaml:"similarity"`
	Restart    RestartConfig    `json:"restart" yaml:"restart"`
	Repair     RepairConfig     `json:"repair" yaml:"repair"`
}

// SimilarityConfig drives MovePrioritization.
type SimilarityConfig struct {
	// Alpha scales the similarity bonus subtracted from the rank.
	Alpha float64 `json:"alpha" yaml:"alpha" validate:"gte=0"`

	// Window is how many planned moves a candidate is compared against.
	Window int `json:"window" yaml:"window" validate:"gte=1"`

	// CacheSize bounds the per-recalculation similarity memo.
	CacheSize int `json:"cache_size" yaml:"cache_size" validate:"gte=16"`

	BlockWeight       float64 `json:"block_weight" yaml:"block_weight" validate:"gte=0,lte=1"`
	BlockSourceWeight float64 `json:"block_source_weight" yaml:"block_source_weight" validate:"gte=0,lte=1"`
	TargetWeight      float64 `json:"target_weight" yaml:"target_weight" validate:"gte=0,lte=1"`
	CraneSourceWeight float64 `json:"crane_source_weight" yaml:"crane_source_weight" validate:"gte=0,lte=1"`
}

// RestartConfig drives the restart-point finder.
type RestartConfig struct {
	// Beta is the cost divergence that ends the reusable prefix.
	Beta float64 `json:"beta" yaml:"beta" validate:"gte=0"`

	// BoundOffset is added to Beta for the bound divergence check.
	BoundOffset float64 `json:"bound_offset" yaml:"bound_offset" validate:"gte=0"`
}

// RepairConfig drives the repair heuristic.
type RepairConfig struct {
	// BeamWidth is the completion search width.
	BeamWidth int `json:"beam_width" yaml:"beam_width" validate:"gte=1"`

	// BaseFactor times the stale plan cost is the acceptance threshold.
	BaseFactor float64 `json:"base_factor" yaml:"base_factor" validate:"gte=1"`

	// ExtraFactor is added linearly as the stale plan shrinks below
	// Horizon moves.
	ExtraFactor float64 `json:"extra_factor" yaml:"extra_factor" validate:"gte=0"`

	Horizon int `json:"horizon" yaml:"horizon" validate:"gte=1"`
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		Similarity: SimilarityConfig{
			Alpha:             20,
			Window:            5,
			CacheSize:         4096,
			BlockWeight:       0.5,
			BlockSourceWeight: 0.20,
			TargetWeight:      0.25,
			CraneSourceWeight: 0.05,
		},
		Restart: RestartConfig{
			Beta:        30,
			BoundOffset: 10,
		},
		Repair: RepairConfig{
			BeamWidth:   2,
			BaseFactor:  1.5,
			ExtraFactor: 1.0,
			Horizon:     3,
		},
	}
}

// Validate checks field ranges.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid dynamic config: %w", err)
	}
	return nil
}

// threshold returns the multiple of the stale plan cost a repair may
// spend when remaining planned moves are left.
func (c RepairConfig) threshold(remaining int) float64 {
	if remaining >= c.Horizon {
		return c.BaseFactor
	}
	short := float64(c.Horizon-max(remaining, 0)) / float64(c.Horizon)
	return c.BaseFactor + c.ExtraFactor*short
}
