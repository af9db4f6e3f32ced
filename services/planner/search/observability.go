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

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const searchTracerName = "aleutian.yard.search"

// Tracer provides OpenTelemetry spans for beam searches.
//
// Thread Safety: Safe for concurrent use.
type Tracer struct {
	tracer  trace.Tracer
	logger  *slog.Logger
	enabled bool
}

// NewTracer creates a tracer. A nil logger falls back to slog.Default.
func NewTracer(logger *slog.Logger, config ObservabilityConfig) *Tracer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracer{
		tracer:  otel.Tracer(searchTracerName),
		logger:  logger,
		enabled: config.TracingEnabled,
	}
}

// StartSearch opens the span covering one beam search.
//
// Outputs:
//
//	context.Context - Context carrying the span.
//	trace.Span      - The span, a noop span when tracing is disabled.
func (t *Tracer) StartSearch(ctx context.Context, req Request, root *State) (context.Context, trace.Span) {
	t.logger.DebugContext(ctx, "beam search started",
		slog.String("label", req.Label),
		slog.Int("width", req.Width),
		slog.Duration("timeout", req.Timeout),
		slog.Int("root_bound", root.Bound()),
	)
	if !t.enabled {
		return ctx, noop.Span{}
	}
	return t.tracer.Start(ctx, "yard.beam_search",
		trace.WithAttributes(
			attribute.String("search.label", req.Label),
			attribute.Int("search.width", req.Width),
			attribute.String("search.timeout", req.Timeout.String()),
			attribute.Int("search.root_bound", root.Bound()),
			attribute.Int("search.root_history", root.HistoryLen()),
			attribute.Int("search.arrival_depth", root.Yard().ArrivalCount()),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// TraceRound adds a round event to span.
func (t *Tracer) TraceRound(span trace.Span, round, branches, children int) {
	if !t.enabled {
		return
	}
	span.AddEvent("round", trace.WithAttributes(
		attribute.Int("round", round),
		attribute.Int("branches", branches),
		attribute.Int("children", children),
	))
}

// EndSearch closes span with the outcome.
func (t *Tracer) EndSearch(span trace.Span, best *State, stats Stats, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.SetAttributes(
		attribute.Int64("search.result.rounds", stats.Rounds),
		attribute.Int64("search.result.expanded", stats.Expanded),
		attribute.Int64("search.result.pruned", stats.Pruned),
		attribute.String("search.result.elapsed", stats.Elapsed.String()),
		attribute.Bool("search.result.timed_out", stats.TimedOut),
	)
	if best != nil {
		span.SetAttributes(
			attribute.Int("search.result.bound", best.Bound()),
			attribute.Int("search.result.moves", best.HistoryLen()),
		)
	}
	span.End()

	attrs := []any{
		slog.Int64("rounds", stats.Rounds),
		slog.Int64("expanded", stats.Expanded),
		slog.Int64("pruned", stats.Pruned),
		slog.Duration("elapsed", stats.Elapsed),
	}
	if best != nil {
		attrs = append(attrs, slog.Int("bound", best.Bound()), slog.Int("moves", best.HistoryLen()))
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	t.logger.Debug("beam search completed", attrs...)
}
