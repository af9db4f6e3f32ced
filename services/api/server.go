// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api exposes the planner over HTTP: one-shot solves, replans
// after an event, batch simulations and a websocket stream of simulation
// snapshots.
//
// Routes:
//
//	GET  /health
//	GET  /metrics
//	POST /v1/solve
//	POST /v1/replan
//	POST /v1/simulations
//	GET  /v1/simulations/stream
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianYard/pkg/extensions"
	"github.com/AleutianAI/AleutianYard/pkg/telemetry"
	"github.com/AleutianAI/AleutianYard/services/planner"
	"github.com/AleutianAI/AleutianYard/services/simulator"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"
)

// ServiceVersion is reported by /health.
const ServiceVersion = "1.0.0"

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetricsHandler replaces the /metrics handler.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithSimulatorOptions adds options to every simulation the server runs,
// for example an InfluxDB observer.
func WithSimulatorOptions(opts ...simulator.Option) Option {
	return func(s *Server) { s.simOpts = append(s.simOpts, opts...) }
}

// WithAuth replaces the authentication provider built from
// Config.AuthTokens.
func WithAuth(p extensions.AuthProvider) Option {
	return func(s *Server) { s.auth = p }
}

// WithAudit sets the audit logger.
func WithAudit(l extensions.AuditLogger) Option {
	return func(s *Server) { s.audit = l }
}

// Server serves the planner API.
//
// Thread Safety: Safe for concurrent use.
type Server struct {
	cfg      Config
	planner  *planner.Service
	engine   *gin.Engine
	limiter  *rate.Limiter
	validate *validator.Validate
	upgrader websocket.Upgrader
	metrics  http.Handler
	simOpts  []simulator.Option
	auth     extensions.AuthProvider
	audit    extensions.AuditLogger
	logger   *slog.Logger
}

// NewServer builds the router around svc.
func NewServer(cfg Config, svc *planner.Service, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		planner:  svc,
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = telemetry.MetricsHandler()
	}
	if s.auth == nil {
		s.auth = authFromConfig(cfg, s.logger)
	}
	if s.audit == nil {
		if cfg.AuditLog {
			s.audit = extensions.NewSlogAuditLogger(s.logger)
		} else {
			s.audit = extensions.NopAuditLogger{}
		}
	}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		router.Use(otelgin.Middleware(cfg.ServiceName))
	}
	router.Use(s.requestID())
	s.registerRoutes(router)
	s.engine = router
	return s
}

func (s *Server) registerRoutes(router *gin.Engine) {
	router.GET("/health", s.HandleHealth)
	router.GET("/metrics", gin.WrapH(s.metrics))

	v1 := router.Group("/v1")
	v1.Use(s.rateLimit(), s.authenticate())
	{
		v1.POST("/solve", s.HandleSolve)
		v1.POST("/replan", s.HandleReplan)
		v1.POST("/simulations", s.HandleSimulation)
		v1.GET("/simulations/stream", s.HandleSimulationStream)
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on cfg.Addr until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", slog.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.logger.Info("api shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := s.audit.Flush(shutdownCtx); err != nil {
		return fmt.Errorf("flush audit log: %w", err)
	}
	return nil
}

const requestIDHeader = "X-Request-ID"

// requestID propagates or assigns X-Request-ID.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter != nil && !s.limiter.Allow() {
			rateLimitedTotal.Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error: "rate limit exceeded",
				Code:  "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}

func requestIDFrom(c *gin.Context) string {
	return c.GetString("request_id")
}

const authInfoKey = "auth_info"

// authenticate resolves the caller from "Authorization: Bearer". Browsers
// cannot set headers on websocket upgrades, so the access_token query
// parameter is accepted too.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		if token == "" {
			token = c.Query("access_token")
		}
		info, err := s.auth.Validate(c.Request.Context(), token)
		if err != nil {
			s.recordAudit(c, "auth.validate", "denied", map[string]any{"path": c.FullPath()})
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error: "unauthorized",
				Code:  "UNAUTHORIZED",
			})
			return
		}
		c.Set(authInfoKey, info)
		c.Next()
	}
}

// recordAudit logs one audit event for the current request. Audit failures
// are logged and never fail the request.
func (s *Server) recordAudit(c *gin.Context, eventType, outcome string, metadata map[string]any) {
	user := "anonymous"
	if v, ok := c.Get(authInfoKey); ok {
		if info, ok := v.(*extensions.AuthInfo); ok {
			user = info.UserID
		}
	}
	err := s.audit.Log(c.Request.Context(), extensions.AuditEvent{
		EventType:  eventType,
		UserID:     user,
		ResourceID: requestIDFrom(c),
		Outcome:    outcome,
		Metadata:   metadata,
	})
	if err != nil {
		s.logger.Warn("audit log failed", slog.String("event_type", eventType), slog.String("error", err.Error()))
	}
}

func authFromConfig(cfg Config, logger *slog.Logger) extensions.AuthProvider {
	if len(cfg.AuthTokens) == 0 {
		return extensions.NopAuthProvider{}
	}
	p, err := extensions.NewTokenAuthProvider(cfg.AuthTokens)
	if err != nil {
		logger.Error("invalid auth tokens, rejecting all requests", slog.String("error", err.Error()))
		return denyAll{err: err}
	}
	return p
}

type denyAll struct{ err error }

func (d denyAll) Validate(context.Context, string) (*extensions.AuthInfo, error) {
	return nil, fmt.Errorf("%v: %w", d.err, extensions.ErrUnauthorized)
}
