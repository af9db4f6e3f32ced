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
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/AleutianAI/AleutianYard/pkg/validation"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"golang.org/x/time/rate"
)

// InfluxConfig locates the InfluxDB bucket receiving snapshots.
type InfluxConfig struct {
	URL         string            `json:"url" yaml:"url" validate:"omitempty,url"`
	Token       string            `json:"token" yaml:"token"`
	Org         string            `json:"org" yaml:"org"`
	Bucket      string            `json:"bucket" yaml:"bucket"`
	Measurement string            `json:"measurement" yaml:"measurement"`
	Tags        map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// InfluxConfigFromEnv reads INFLUXDB_URL, INFLUXDB_TOKEN, INFLUXDB_ORG and
// INFLUXDB_BUCKET, falling back to the local development instance.
func InfluxConfigFromEnv() InfluxConfig {
	get := func(key, fallback string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return fallback
	}
	return InfluxConfig{
		URL:         get("INFLUXDB_URL", "http://localhost:12130"),
		Token:       get("INFLUXDB_TOKEN", ""),
		Org:         get("INFLUXDB_ORG", "aleutian"),
		Bucket:      get("INFLUXDB_BUCKET", "yard-simulations"),
		Measurement: "yard_snapshot",
	}
}

// Validate checks the identifiers that reach line protocol.
func (c InfluxConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("influx url is required")
	}
	if err := validation.ValidateBucket(c.Bucket); err != nil {
		return fmt.Errorf("influx bucket: %w", err)
	}
	if c.Measurement != "" {
		if err := validation.ValidateMeasurement(c.Measurement); err != nil {
			return fmt.Errorf("influx measurement: %w", err)
		}
	}
	if err := validation.ValidateTags(c.Tags); err != nil {
		return fmt.Errorf("influx tags: %w", err)
	}
	return nil
}

type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// InfluxSink is an Observer writing one point per snapshot. Write errors
// are logged, never returned; a dead sink must not stop a simulation.
type InfluxSink struct {
	client      influxdb2.Client
	writer      pointWriter
	measurement string
	tags        map[string]string
	logger      *slog.Logger
	errLog      rate.Sometimes
}

// NewInfluxSink connects to cfg's bucket with a blocking write API.
func NewInfluxSink(cfg InfluxConfig, logger *slog.Logger) *InfluxSink {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	s := newInfluxSink(client.WriteAPIBlocking(cfg.Org, cfg.Bucket), cfg, logger)
	s.client = client
	return s
}

func newInfluxSink(w pointWriter, cfg InfluxConfig, logger *slog.Logger) *InfluxSink {
	if logger == nil {
		logger = slog.Default()
	}
	measurement := cfg.Measurement
	if measurement == "" {
		measurement = "yard_snapshot"
	}
	return &InfluxSink{
		writer:      w,
		measurement: measurement,
		tags:        cfg.Tags,
		logger:      logger,
		errLog:      rate.Sometimes{First: 1, Interval: 30 * time.Second},
	}
}

// Observe writes snap.
func (s *InfluxSink) Observe(ctx context.Context, runID string, snap Snapshot) {
	if err := s.writer.WritePoint(ctx, s.point(runID, snap)); err != nil {
		s.errLog.Do(func() {
			s.logger.Warn("influx write failed", slog.String("error", err.Error()))
		})
	}
}

func (s *InfluxSink) point(runID string, snap Snapshot) *write.Point {
	tags := map[string]string{"run_id": runID, "event": snap.Kind.String()}
	for k, v := range s.tags {
		tags[k] = v
	}
	fields := map[string]interface{}{
		"event_number":  snap.EventNumber,
		"utilization":   snap.Warehouse.Utilization,
		"arrival_depth": snap.Warehouse.ArrivalDepth,
		"blocked":       snap.Warehouse.BlockedBlocks,
		"empty_stacks":  snap.Warehouse.EmptyStacks,
		"bound":         snap.Bound,
		"bound_change":  snap.BoundChange,
		"planned_moves": snap.PlannedMoves,
		"total_cost":    snap.TotalCost,
		"total_moves":   snap.TotalMoves,
		"skipped":       snap.Skipped,
	}
	if snap.Recalculation != nil {
		fields["recalculation_ms"] = float64(snap.Recalculation.Duration) / float64(time.Millisecond)
		fields["new_plan_length"] = snap.Recalculation.PlanLength
	}
	return influxdb2.NewPoint(s.measurement, tags, fields, snap.Timestamp)
}

// Close releases the client.
func (s *InfluxSink) Close() {
	if s.client != nil {
		s.client.Close()
	}
}

var _ Observer = (*InfluxSink)(nil)
