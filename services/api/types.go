// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"time"

	"github.com/AleutianAI/AleutianYard/services/planner"
	"github.com/AleutianAI/AleutianYard/services/planner/dynamic"
	"github.com/AleutianAI/AleutianYard/services/simulator"
	"github.com/AleutianAI/AleutianYard/services/yard/model"
)

// Config configures the HTTP server.
type Config struct {
	// Addr is the listen address.
	Addr string `json:"addr" yaml:"addr" validate:"required"`

	// RateLimit is the sustained request rate on /v1 routes. Zero
	// disables limiting.
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit" validate:"gte=0"`
	RateBurst int     `json:"rate_burst" yaml:"rate_burst" validate:"gte=1"`

	// MaxSimulationEvents caps simulation requests.
	MaxSimulationEvents int `json:"max_simulation_events" yaml:"max_simulation_events" validate:"gte=1"`

	// RequestTimeout bounds solve, replan and simulation handlers.
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout" validate:"gte=0"`

	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gte=0"`

	// ServiceName labels otelgin spans.
	ServiceName string `json:"service_name" yaml:"service_name"`

	// AuthTokens enables bearer authentication on /v1 routes. Entries are
	// "user:token" or a bare token.
	AuthTokens []string `json:"auth_tokens,omitempty" yaml:"auth_tokens,omitempty" validate:"dive,required"`

	// AuditLog writes an audit record per /v1 request to the server log.
	AuditLog bool `json:"audit_log" yaml:"audit_log"`
}

// DefaultConfig returns the local development defaults.
func DefaultConfig() Config {
	return Config{
		Addr:                ":12210",
		RateLimit:           20,
		RateBurst:           40,
		MaxSimulationEvents: 2000,
		RequestTimeout:      10 * time.Minute,
		ShutdownTimeout:     10 * time.Second,
		ServiceName:         "aleutian-yard",
	}
}

// SolveRequest is the body of POST /v1/solve.
type SolveRequest struct {
	Layout planner.Layout `json:"layout"`

	// Width overrides the initial beam width.
	Width int `json:"width,omitempty" validate:"gte=0,lte=256"`

	// TimeoutSeconds overrides the initial search timeout.
	TimeoutSeconds float64 `json:"timeout_seconds,omitempty" validate:"gte=0"`

	NoCache bool `json:"no_cache,omitempty"`
}

// ReplanRequest is the body of POST /v1/replan.
type ReplanRequest struct {
	Current  planner.Layout    `json:"current"`
	Previous *planner.Layout   `json:"previous,omitempty"`
	Planned  []model.Move      `json:"planned"`
	Event    dynamic.EventKind `json:"event"`
	Variant  dynamic.Variant   `json:"variant"`
}

// SimulationRequest is the body of POST /v1/simulations and the first
// message on the stream socket.
type SimulationRequest struct {
	Layout  planner.Layout  `json:"layout"`
	Variant dynamic.Variant `json:"variant"`
	Events  int             `json:"events" validate:"gte=1"`
	Seed    uint64          `json:"seed"`

	// BeamWidth overrides the replanning width.
	BeamWidth int `json:"beam_width,omitempty" validate:"gte=0,lte=256"`

	Probabilities *simulator.Probabilities `json:"probabilities,omitempty"`
}

// PlanResponse wraps a computed plan.
type PlanResponse struct {
	RequestID string        `json:"request_id"`
	Plan      *planner.Plan `json:"plan"`
}

// SimulationResponse wraps a finished run.
type SimulationResponse struct {
	RequestID string            `json:"request_id"`
	Summary   simulator.Summary `json:"summary"`
}

// StreamMessage is one websocket frame of a streamed simulation.
type StreamMessage struct {
	Type     string              `json:"type"`
	RunID    string              `json:"run_id,omitempty"`
	Snapshot *simulator.Snapshot `json:"snapshot,omitempty"`
	Summary  *simulator.Summary  `json:"summary,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}
