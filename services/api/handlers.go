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
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/AleutianAI/AleutianYard/services/planner"
	"github.com/AleutianAI/AleutianYard/services/planner/dynamic"
	"github.com/AleutianAI/AleutianYard/services/planner/search"
	"github.com/AleutianAI/AleutianYard/services/simulator"
	"github.com/gin-gonic/gin"
)

// HandleHealth handles GET /health.
func (s *Server) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Version: ServiceVersion})
}

// HandleSolve handles POST /v1/solve.
//
// Response:
//
//	200 OK: PlanResponse
//	400 Bad Request: Malformed body or layout
//	422 Unprocessable Entity: No plan within the budget
//	504 Gateway Timeout: Request timeout
func (s *Server) HandleSolve(c *gin.Context) {
	requestID := requestIDFrom(c)
	logger := s.logger.With(slog.String("request_id", requestID), slog.String("handler", "HandleSolve"))

	var req SolveRequest
	if !s.bind(c, logger, &req) {
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()
	plan, err := s.planner.Solve(ctx, planner.SolveRequest{
		Layout:  req.Layout,
		Width:   req.Width,
		Timeout: time.Duration(req.TimeoutSeconds * float64(time.Second)),
		NoCache: req.NoCache,
	})
	if err != nil {
		s.fail(c, logger, "solve", err)
		return
	}
	observeRequest("solve", "ok")
	s.recordAudit(c, "planner.solve", "success", planMetadata(plan))
	c.JSON(http.StatusOK, PlanResponse{RequestID: requestID, Plan: plan})
}

// HandleReplan handles POST /v1/replan.
//
// Response:
//
//	200 OK: PlanResponse
//	400 Bad Request: Malformed body, layout, or missing previous layout
//	409 Conflict: The stale plan cannot be reconciled with the layout
//	422 Unprocessable Entity: No plan within the budget
func (s *Server) HandleReplan(c *gin.Context) {
	requestID := requestIDFrom(c)
	logger := s.logger.With(slog.String("request_id", requestID), slog.String("handler", "HandleReplan"))

	var req ReplanRequest
	if !s.bind(c, logger, &req) {
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()
	plan, err := s.planner.Replan(ctx, planner.ReplanRequest{
		Current:  req.Current,
		Previous: req.Previous,
		Planned:  req.Planned,
		Event:    req.Event,
		Variant:  req.Variant,
	})
	if err != nil {
		s.fail(c, logger, "replan", err)
		return
	}
	observeRequest("replan", "ok")
	s.recordAudit(c, "planner.replan", "success", planMetadata(plan))
	c.JSON(http.StatusOK, PlanResponse{RequestID: requestID, Plan: plan})
}

// HandleSimulation handles POST /v1/simulations. The run executes within
// the request; failed runs are reported in the summary with 200.
func (s *Server) HandleSimulation(c *gin.Context) {
	requestID := requestIDFrom(c)
	logger := s.logger.With(slog.String("request_id", requestID), slog.String("handler", "HandleSimulation"))

	var req SimulationRequest
	if !s.bind(c, logger, &req) {
		return
	}
	sim, err := s.newSimulation(req, requestID)
	if err != nil {
		s.fail(c, logger, "simulation", err)
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()
	res, err := sim.Run(ctx)
	if err != nil && ctx.Err() != nil {
		s.fail(c, logger, "simulation", ctx.Err())
		return
	}
	observeRequest("simulation", "ok")
	summary := simulator.Summarize(res)
	s.recordAudit(c, "planner.simulation", "success", map[string]any{
		"run_id": summary.RunID,
		"status": summary.Status.String(),
		"events": req.Events,
	})
	c.JSON(http.StatusOK, SimulationResponse{RequestID: requestID, Summary: summary})
}

// bind decodes and validates the JSON body, answering 400 on failure.
func (s *Server) bind(c *gin.Context, logger *slog.Logger, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		logger.Warn("invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST", Details: err.Error()})
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		logger.Warn("request validation failed", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Request validation failed", Code: "VALIDATION_FAILED", Details: err.Error()})
		return false
	}
	return true
}

func (s *Server) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if s.cfg.RequestTimeout > 0 {
		return context.WithTimeout(c.Request.Context(), s.cfg.RequestTimeout)
	}
	return context.WithCancel(c.Request.Context())
}

// newSimulation validates req against the server limits and prepares a
// run with the planner's active settings.
func (s *Server) newSimulation(req SimulationRequest, runID string, extra ...simulator.Option) (*simulator.Simulator, error) {
	if req.Events > s.cfg.MaxSimulationEvents {
		return nil, errTooManyEvents
	}
	state, err := s.planner.BuildState(req.Layout)
	if err != nil {
		return nil, err
	}
	searchCfg, dynamicCfg := s.planner.Config()

	cfg := simulator.DefaultConfig()
	cfg.TotalEvents = req.Events
	cfg.Variant = req.Variant
	cfg.Seed = req.Seed
	cfg.BeamWidth = searchCfg.BeamWidth
	cfg.DynamicTimeout = searchCfg.Timeout
	cfg.InitialBeamWidth = searchCfg.InitialBeamWidth
	cfg.InitialTimeout = searchCfg.InitialTimeout
	if req.BeamWidth > 0 {
		cfg.BeamWidth = req.BeamWidth
	}
	if req.Probabilities != nil {
		cfg.Probabilities = *req.Probabilities
	}

	opts := append([]simulator.Option{
		simulator.WithLogger(s.logger),
		simulator.WithSearchConfig(searchCfg),
		simulator.WithDynamicConfig(dynamicCfg),
		simulator.WithRunID(runID),
	}, s.simOpts...)
	opts = append(opts, extra...)
	return simulator.New(state, cfg, opts...)
}

func planMetadata(p *planner.Plan) map[string]any {
	return map[string]any{
		"moves":   len(p.Moves),
		"cost":    p.Cost,
		"variant": p.Variant,
		"cached":  p.Cached,
	}
}

var errTooManyEvents = errors.New("too many simulation events requested")

// fail maps err to a status and error code.
func (s *Server) fail(c *gin.Context, logger *slog.Logger, route string, err error) {
	status, code := classify(err)
	observeRequest(route, code)
	s.recordAudit(c, "planner."+route, "failure", map[string]any{"code": code})
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", slog.String("error", err.Error()))
	} else {
		logger.Warn("request rejected", slog.String("code", code), slog.String("error", err.Error()))
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, planner.ErrInvalidLayout):
		return http.StatusBadRequest, "INVALID_LAYOUT"
	case errors.Is(err, errTooManyEvents):
		return http.StatusBadRequest, "TOO_MANY_EVENTS"
	case errors.Is(err, simulator.ErrInvalidConfig):
		return http.StatusBadRequest, "INVALID_SIMULATION"
	case errors.Is(err, dynamic.ErrNoPreviousState):
		return http.StatusBadRequest, "PREVIOUS_LAYOUT_REQUIRED"
	case errors.Is(err, dynamic.ErrUnknownVariant):
		return http.StatusBadRequest, "UNKNOWN_VARIANT"
	case errors.Is(err, search.ErrInconsistentPlan):
		return http.StatusConflict, "INCONSISTENT_PLAN"
	case errors.Is(err, search.ErrNoSolutionInBudget):
		return http.StatusUnprocessableEntity, "NO_SOLUTION"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	case errors.Is(err, context.Canceled):
		return 499, "CANCELLED"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}
