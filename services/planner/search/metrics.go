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
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aleutian_yard",
		Subsystem: "search",
		Name:      "searches_total",
		Help:      "Beam searches by outcome",
	}, []string{"outcome"})

	searchRounds = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "aleutian_yard",
		Subsystem: "search",
		Name:      "rounds_total",
		Help:      "Beam rounds completed",
	})

	searchExpanded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "aleutian_yard",
		Subsystem: "search",
		Name:      "nodes_expanded_total",
		Help:      "Branches expanded",
	})

	searchPruned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "aleutian_yard",
		Subsystem: "search",
		Name:      "nodes_pruned_total",
		Help:      "Children cut by the incumbent bound",
	})

	searchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aleutian_yard",
		Subsystem: "search",
		Name:      "duration_seconds",
		Help:      "Beam search wall time",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~33s
	}, []string{"outcome"})

	incumbentCost = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "aleutian_yard",
		Subsystem: "search",
		Name:      "solution_cost",
		Help:      "Total movement cost of returned plans",
		Buckets:   prometheus.ExponentialBuckets(10, 2, 14),
	})
)

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "solved"
	case errors.Is(err, ErrNoSolutionInBudget):
		return "no_solution"
	default:
		return "error"
	}
}

// recordSearchMetrics publishes one search's counters.
func recordSearchMetrics(stats Stats, best *State, err error, duration time.Duration) {
	outcome := outcomeLabel(err)
	searchesTotal.WithLabelValues(outcome).Inc()
	searchRounds.Add(float64(stats.Rounds))
	searchExpanded.Add(float64(stats.Expanded))
	searchPruned.Add(float64(stats.Pruned))
	searchDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	if best != nil {
		incumbentCost.Observe(float64(best.AccumulatedCost()))
	}
}
