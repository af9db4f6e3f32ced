// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package planner

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("aleutian.yard.planner")

var (
	requestLatency metric.Float64Histogram
	requestTotal   metric.Int64Counter
	planLength     metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics creates the instruments against the global meter provider.
// Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error
		requestLatency, err = meter.Float64Histogram(
			"yard_planner_request_duration_seconds",
			metric.WithDescription("Duration of solve and replan requests"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
		requestTotal, err = meter.Int64Counter(
			"yard_planner_requests_total",
			metric.WithDescription("Solve and replan requests by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}
		planLength, err = meter.Int64Histogram(
			"yard_planner_plan_moves",
			metric.WithDescription("Moves per returned plan"),
		)
		if err != nil {
			metricsErr = err
		}
	})
	return metricsErr
}

// recordRequest records one solve or replan. op is "solve" or the variant
// name of a replan; moves is ignored on failure.
func recordRequest(ctx context.Context, op string, d time.Duration, moves int, cached bool, err error) {
	if initMetrics() != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.Bool("cached", cached),
		attribute.Bool("success", err == nil),
	)
	requestLatency.Record(ctx, d.Seconds(), attrs)
	requestTotal.Add(ctx, 1, attrs)
	if err == nil {
		planLength.Record(ctx, int64(moves), metric.WithAttributes(attribute.String("op", op)))
	}
}
