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
	"time"

	"github.com/AleutianAI/AleutianYard/services/planner/dynamic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aleutian_yard",
		Subsystem: "simulator",
		Name:      "events_total",
		Help:      "Simulated events by kind and whether they were applied or skipped",
	}, []string{"event", "outcome"})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aleutian_yard",
		Subsystem: "simulator",
		Name:      "runs_total",
		Help:      "Finished simulation runs by variant and status",
	}, []string{"variant", "status"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aleutian_yard",
		Subsystem: "simulator",
		Name:      "run_duration_seconds",
		Help:      "Wall time of a simulation run",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
	}, []string{"variant"})

	plannedMovesGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "aleutian_yard",
		Subsystem: "simulator",
		Name:      "planned_moves",
		Help:      "Moves left in the active plan of the latest run per variant",
	}, []string{"variant"})
)

func recordEvent(kind dynamic.EventKind, skipped bool) {
	outcome := "applied"
	if skipped {
		outcome = "skipped"
	}
	eventsTotal.WithLabelValues(kind.String(), outcome).Inc()
}

func recordRun(v dynamic.Variant, status Status, d time.Duration) {
	runsTotal.WithLabelValues(v.String(), status.String()).Inc()
	runDuration.WithLabelValues(v.String()).Observe(d.Seconds())
}
