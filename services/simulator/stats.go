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
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianYard/services/planner/dynamic"
	"github.com/AleutianAI/AleutianYard/services/planner/search"
	"github.com/AleutianAI/AleutianYard/services/yard/model"
)

// Status is the outcome of a run.
type Status int

const (
	// StatusFailed means a replan or an executed move failed.
	StatusFailed Status = iota

	// StatusCompleted means every event was processed.
	StatusCompleted

	// StatusTerminated means the run stopped early: the yard overflowed
	// or the context ended.
	StatusTerminated
)

func (s Status) String() string {
	switch s {
	case StatusFailed:
		return "failed"
	case StatusCompleted:
		return "completed"
	case StatusTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	for _, c := range []Status{StatusFailed, StatusCompleted, StatusTerminated} {
		if strings.EqualFold(string(text), c.String()) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", text)
}

// WarehouseMetrics is the yard part of a snapshot.
type WarehouseMetrics struct {
	Utilization             float64     `json:"utilization"`
	ArrivalDepth            int         `json:"arrival_depth"`
	IdealArrivalDepth       int         `json:"ideal_arrival_depth"`
	BlockedBlocks           int         `json:"blocked_blocks"`
	EmptyStacks             int         `json:"empty_stacks"`
	StackHeightDistribution map[int]int `json:"stack_height_distribution"`
}

// MoveInfo describes the move executed by an event.
type MoveInfo struct {
	BlockID  int            `json:"block_id"`
	Source   model.Position `json:"source"`
	Target   model.Position `json:"target"`
	Cost     int            `json:"cost"`
	Expected bool           `json:"expected"`
}

// RecalculationInfo describes the replan triggered by an event.
type RecalculationInfo struct {
	Duration   time.Duration `json:"duration_ns"`
	PlanLength int           `json:"new_plan_length"`
}

// Snapshot is the yard and plan state after one event.
type Snapshot struct {
	EventNumber int               `json:"event_number"`
	Timestamp   time.Time         `json:"timestamp"`
	Kind        dynamic.EventKind `json:"event"`
	Skipped     bool              `json:"skipped,omitempty"`

	Warehouse WarehouseMetrics `json:"warehouse"`

	// Bound is the lower bound on the remaining cost from this state.
	Bound        int `json:"bound"`
	BoundChange  int `json:"bound_change"`
	PlannedMoves int `json:"planned_moves_remaining"`
	TotalCost    int `json:"total_cost_so_far"`
	TotalMoves   int `json:"total_moves_executed"`

	Move          *MoveInfo          `json:"move,omitempty"`
	Recalculation *RecalculationInfo `json:"recalculation,omitempty"`
}

// Stats accumulates snapshots for one run.
type Stats struct {
	TotalEvents int        `json:"total_events"`
	Snapshots   []Snapshot `json:"snapshots"`

	previousBound *int
}

// NewStats creates an empty collector for totalEvents events.
func NewStats(totalEvents int) *Stats {
	return &Stats{TotalEvents: totalEvents}
}

// record appends a snapshot of state. The bound delta is relative to the
// previous snapshot and zero for the first.
func (s *Stats) record(at time.Time, kind dynamic.EventKind, state *search.State, planned int, executed []model.Move) *Snapshot {
	mgr := state.Manager()
	tel := mgr.Telemetry()
	bound := state.Bound() - state.AccumulatedCost()
	change := 0
	if s.previousBound != nil {
		change = bound - *s.previousBound
	}
	s.previousBound = &bound

	s.Snapshots = append(s.Snapshots, Snapshot{
		EventNumber: len(s.Snapshots) + 1,
		Timestamp:   at,
		Kind:        kind,
		Warehouse: WarehouseMetrics{
			Utilization:             tel.WarehouseUtilization,
			ArrivalDepth:            tel.ArrivalDepth,
			IdealArrivalDepth:       tel.IdealArrivalDepth,
			BlockedBlocks:           tel.BlockedBlocks,
			EmptyStacks:             tel.EmptyStacks,
			StackHeightDistribution: tel.StackHeightDistribution,
		},
		Bound:        bound,
		BoundChange:  change,
		PlannedMoves: planned,
		TotalCost:    mgr.TotalCost(executed),
		TotalMoves:   len(executed),
	})
	return &s.Snapshots[len(s.Snapshots)-1]
}

// Last returns the newest snapshot.
func (s *Stats) Last() (Snapshot, bool) {
	if len(s.Snapshots) == 0 {
		return Snapshot{}, false
	}
	return s.Snapshots[len(s.Snapshots)-1], true
}

// EventCounts counts snapshots per event kind.
func (s *Stats) EventCounts() map[string]int {
	out := make(map[string]int)
	for _, snap := range s.Snapshots {
		out[snap.Kind.String()]++
	}
	return out
}

// Recalculations returns the number of replans and their total duration.
func (s *Stats) Recalculations() (int, time.Duration) {
	var n int
	var total time.Duration
	for _, snap := range s.Snapshots {
		if snap.Recalculation != nil {
			n++
			total += snap.Recalculation.Duration
		}
	}
	return n, total
}

// BoundChanges lists every snapshot's bound delta.
func (s *Stats) BoundChanges() []int {
	out := make([]int, len(s.Snapshots))
	for i, snap := range s.Snapshots {
		out[i] = snap.BoundChange
	}
	return out
}

// Result is the outcome of Simulator.Run.
type Result struct {
	RunID         string          `json:"run_id"`
	Variant       dynamic.Variant `json:"variant"`
	Seed          uint64          `json:"seed"`
	Status        Status          `json:"status"`
	Error         string          `json:"error,omitempty"`
	Runtime       time.Duration   `json:"runtime_ns"`
	ExecutedMoves []model.Move    `json:"executed_moves"`
	TotalMoveCost int             `json:"total_move_cost"`
	FinalBound    int             `json:"final_bound"`
	Stats         *Stats          `json:"stats"`
}
