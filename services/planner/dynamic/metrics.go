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
	"errors"
	"time"

	"github.com/AleutianAI/AleutianYard/services/planner/search"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recalculationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aleutian_yard",
		Subsystem: "dynamic",
		Name:      "recalculations_total",
		Help:      "Replans by strategy, event kind and outcome",
	}, []string{"variant", "event", "outcome"})

	recalculationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aleutian_yard",
		Subsystem: "dynamic",
		Name:      "recalculation_duration_seconds",
		Help:      "Replan latency by strategy",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
	}, []string{"variant"})

	fallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aleutian_yard",
		Subsystem: "dynamic",
		Name:      "fallbacks_total",
		Help:      "Replans that fell back to a full recalculation",
	}, []string{"variant", "reason"})
)

func recordRecalculation(v Variant, kind EventKind, err error, d time.Duration) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, search.ErrNoSolutionInBudget):
		outcome = "no_solution"
	case errors.Is(err, search.ErrInconsistentPlan):
		outcome = "inconsistent"
	default:
		outcome = "error"
	}
	recalculationsTotal.WithLabelValues(v.String(), kind.String(), outcome).Inc()
	recalculationDuration.WithLabelValues(v.String()).Observe(d.Seconds())
}

func recordFallback(v Variant, reason string) {
	fallbacksTotal.WithLabelValues(v.String(), reason).Inc()
}
