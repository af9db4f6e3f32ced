// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"strconv"

	"github.com/AleutianAI/AleutianYard/pkg/ux"
	"github.com/AleutianAI/AleutianYard/services/planner/dynamic"
	"github.com/AleutianAI/AleutianYard/services/simulator"
	"github.com/spf13/cobra"
)

// simulationConfig applies the simulate/compare flags to the config.
func (a *app) simulationConfig() (simulator.Config, error) {
	cfg := a.cfg.Simulator
	if simEvents > 0 {
		cfg.TotalEvents = simEvents
	}
	if simSeed > 0 {
		cfg.Seed = simSeed
	}
	if simVariant != "" {
		v, err := dynamic.ParseVariant(simVariant)
		if err != nil {
			return cfg, err
		}
		cfg.Variant = v
	}
	return cfg, cfg.Validate()
}

// simulatorOptions returns the options shared by simulate and compare.
func (a *app) simulatorOptions() []simulator.Option {
	opts := []simulator.Option{
		simulator.WithLogger(a.logger.Slog()),
		simulator.WithSearchConfig(a.cfg.Search),
		simulator.WithDynamicConfig(a.cfg.Dynamic),
	}
	if simInflux || a.cfg.Influx.Enabled {
		sink := simulator.NewInfluxSink(a.cfg.Influx.InfluxConfig, a.logger.Slog())
		a.closers = append(a.closers, func() error { sink.Close(); return nil })
		opts = append(opts, simulator.WithObserver(sink))
		a.logger.Info("streaming snapshots to influxdb", "url", a.cfg.Influx.URL, "bucket", a.cfg.Influx.Bucket)
	}
	return opts
}

func (a *app) outputPath(beamWidth int, dimensions string, seed uint64) string {
	pattern := a.cfg.OutputPattern
	if simOut != "" {
		pattern = simOut
	}
	return simulator.ResolveOutputPath(pattern, beamWidth, dimensions, seed)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd, "simulator")
	if err != nil {
		return err
	}
	defer a.close()

	state, err := a.loadState(args[0])
	if err != nil {
		return err
	}
	cfg, err := a.simulationConfig()
	if err != nil {
		return err
	}
	sim, err := simulator.New(state, cfg, a.simulatorOptions()...)
	if err != nil {
		return err
	}

	a.printer.Title(fmt.Sprintf("Simulating %s on %s", cfg.Variant, state.Yard().Dimensions()))
	res, runErr := sim.Run(cmd.Context())
	summary := simulator.Summarize(res)

	a.printer.KeyValues([]ux.Field{
		{Key: "run", Value: summary.RunID},
		{Key: "status", Value: summary.Status.String()},
		{Key: "events", Value: a.printer.ProgressBar(len(summary.Snapshots), cfg.TotalEvents, 30)},
		{Key: "moves executed", Value: strconv.Itoa(summary.TotalMovesExecuted)},
		{Key: "move cost", Value: strconv.Itoa(summary.TotalMoveCost)},
		{Key: "final bound", Value: strconv.Itoa(summary.FinalBound)},
		{Key: "recalculations", Value: strconv.Itoa(summary.RecalculationCount)},
		{Key: "avg recalculation", Value: fmt.Sprintf("%.1fms", summary.AverageRecalculationMs)},
	})

	path := a.outputPath(cfg.BeamWidth, state.Yard().Dimensions(), cfg.Seed)
	if err := simulator.WriteJSON(a.fs, path, summary); err != nil {
		return err
	}
	a.printer.Success("Results written to " + path)

	if runErr != nil {
		a.printer.Error(runErr.Error())
		return &exitError{code: 2, err: runErr}
	}
	return nil
}

func runCompare(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd, "comparison")
	if err != nil {
		return err
	}
	defer a.close()

	state, err := a.loadState(args[0])
	if err != nil {
		return err
	}
	base, err := a.simulationConfig()
	if err != nil {
		return err
	}
	variants := dynamic.AllVariants()
	if len(compareVariants) > 0 {
		variants = variants[:0]
		for _, name := range compareVariants {
			v, err := dynamic.ParseVariant(name)
			if err != nil {
				return err
			}
			variants = append(variants, v)
		}
	}

	runner := simulator.NewComparison(state,
		simulator.WithSimulatorOptions(a.simulatorOptions()...),
		simulator.WithParallelism(compareParallel),
		simulator.WithComparisonLogger(a.logger.Slog()))
	runner.AddConfigurations(variants, base)

	a.printer.Title(fmt.Sprintf("Comparing %d variants over %d runs on %s", len(variants), compareRuns, state.Yard().Dimensions()))
	report, err := runner.Run(cmd.Context(), compareRuns, compareDiffSeeds, base.Seed)
	if err != nil {
		return err
	}

	fields := make([]ux.Field, 0, len(report.Configs))
	for _, c := range report.Configs {
		var cost, completed int
		for _, run := range report.Runs {
			s := run.Results[c.ID]
			cost += s.TotalMoveCost
			if s.Status == simulator.StatusCompleted {
				completed++
			}
		}
		fields = append(fields, ux.Field{
			Key:   c.Variant.String(),
			Value: fmt.Sprintf("avg cost %.1f, %d/%d completed", float64(cost)/float64(max(len(report.Runs), 1)), completed, len(report.Runs)),
		})
	}
	a.printer.KeyValues(fields)

	path := a.outputPath(base.BeamWidth, state.Yard().Dimensions(), base.Seed)
	if err := simulator.WriteJSON(a.fs, path, report); err != nil {
		return err
	}
	a.printer.Success("Comparison written to " + path)
	return nil
}
