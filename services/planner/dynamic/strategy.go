// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dynamic replans after a disruption. Each Strategy maps the live
// state, the state before the disruption and the stale plan to a new
// complete plan. Strategies never mutate the states they are given; all
// exploration happens on clones.
package dynamic

import (
	"context"
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianYard/services/planner/search"
	"github.com/AleutianAI/AleutianYard/services/yard/model"
)

// EventKind classifies the disruption that triggered a replan.
type EventKind int

const (
	// EventExpectedExecution is a planned move executed as planned.
	EventExpectedExecution EventKind = iota

	// EventNewBlock is a block joining the ARRIVAL queue.
	EventNewBlock

	// EventMissmove is a planned move executed to the wrong slot.
	EventMissmove

	// EventBlockTargetUpdate is a late VOID goal on a remaining block.
	EventBlockTargetUpdate
)

var eventKindNames = map[EventKind]string{
	EventExpectedExecution: "expected_execution",
	EventNewBlock:          "new_block",
	EventMissmove:          "missmove",
	EventBlockTargetUpdate: "block_target_update",
}

// String returns the snake_case name.
func (k EventKind) String() string {
	if s, ok := eventKindNames[k]; ok {
		return s
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *EventKind) UnmarshalText(b []byte) error {
	for kind, name := range eventKindNames {
		if strings.EqualFold(name, string(b)) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown event kind %q", b)
}

// Variant selects a replanning strategy.
type Variant int

const (
	VariantStandard Variant = iota
	VariantMovePrioritization
	VariantAdaptiveRestartPoint
	VariantAdaptivePrioCombined
	VariantBacktrackingPoint
	VariantRepairHeuristic
)

var variantNames = []string{
	"standard",
	"move_prioritization",
	"adaptive_restart_point",
	"adaptive_prio_combined",
	"backtracking_point",
	"repair_heuristic",
}

// AllVariants lists every strategy in declaration order.
func AllVariants() []Variant {
	out := make([]Variant, len(variantNames))
	for i := range variantNames {
		out[i] = Variant(i)
	}
	return out
}

// String returns the snake_case name.
func (v Variant) String() string {
	if v < 0 || int(v) >= len(variantNames) {
		return "unknown"
	}
	return variantNames[v]
}

// ParseVariant accepts the snake_case name, case-insensitively.
func ParseVariant(s string) (Variant, error) {
	for i, name := range variantNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return Variant(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownVariant, s)
}

// MarshalText implements encoding.TextMarshaler.
func (v Variant) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Variant) UnmarshalText(b []byte) error {
	parsed, err := ParseVariant(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Strategy computes a replacement plan.
type Strategy interface {
	// Variant identifies the strategy.
	Variant() Variant

	// Recalculate returns a terminal state whose Plan is the new plan,
	// measured from current's last Reset.
	//
	// Inputs:
	//
	//	current  - The live state after the disruption. Not mutated.
	//	previous - The state before the disruption, nil when unknown.
	//	planned  - The stale plan's remaining moves.
	//	kind     - The disruption kind.
	//
	// Outputs:
	//
	//	*search.State - Terminal state carrying the new plan.
	//	error         - search.ErrNoSolutionInBudget, search.ErrInconsistentPlan
	//	                or ErrNoPreviousState.
	Recalculate(ctx context.Context, current, previous *search.State, planned []model.Move, kind EventKind) (*search.State, error)
}
