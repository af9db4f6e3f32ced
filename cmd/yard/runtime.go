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
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/AleutianAI/AleutianYard/pkg/logging"
	"github.com/AleutianAI/AleutianYard/pkg/telemetry"
	"github.com/AleutianAI/AleutianYard/pkg/ux"
	"github.com/AleutianAI/AleutianYard/services/config"
	"github.com/AleutianAI/AleutianYard/services/planner"
	"github.com/AleutianAI/AleutianYard/services/planner/search"
	"github.com/AleutianAI/AleutianYard/services/planner/storage"
	"github.com/AleutianAI/AleutianYard/services/yard/cost"
	"github.com/AleutianAI/AleutianYard/services/yard/layout"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// appFs is the filesystem used for layouts and results.
var appFs afero.Fs = afero.NewOsFs()

// app bundles what every subcommand needs.
type app struct {
	cfg     config.AppConfig
	logger  *logging.Logger
	printer *ux.Printer
	fs      afero.Fs

	closers []func() error
}

// setup loads configuration and starts logging and telemetry for cmd.
func setup(cmd *cobra.Command, service string) (*app, error) {
	cfg, err := config.Load(appFs, configPath)
	if err != nil {
		return nil, err
	}
	if yardLength > 0 {
		cfg.Yard.Length = yardLength
	}
	if yardWidth > 0 {
		cfg.Yard.Width = yardWidth
	}
	if yardHeight > 0 {
		cfg.Yard.Height = yardHeight
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	mode := ux.DetectMode(os.Stdout)
	if outputMode != "" {
		mode = ux.ParseMode(outputMode)
	}

	a := &app{
		cfg:     cfg,
		printer: ux.NewPrinter(cmd.OutOrStdout(), mode),
		fs:      appFs,
	}
	a.logger = logging.New(logging.Config{
		Level:   cfg.LogLevel(),
		LogDir:  cfg.Logging.Dir,
		Service: service,
		JSON:    cfg.Logging.JSON || mode == ux.ModeMachine,
	})
	a.closers = append(a.closers, a.logger.Close)
	slog.SetDefault(a.logger.Slog())

	if cfg.Search.Observability.TracingEnabled || cfg.Search.Observability.MetricsEnabled {
		shutdown, err := telemetry.Init(cmd.Context(), cfg.Telemetry)
		if err != nil {
			a.logger.Warn("telemetry disabled", "error", err)
		} else {
			a.closers = append(a.closers, func() error {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return shutdown(ctx)
			})
		}
	}
	return a, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			fmt.Fprintln(os.Stderr, "cleanup:", err)
		}
	}
}

// loadLayout reads a layout file sized by the configured yard.
func (a *app) loadLayout(path string) (planner.Layout, error) {
	records, err := layout.Load(a.fs, path)
	if err != nil {
		return planner.Layout{}, err
	}
	return planner.Layout{Yard: a.cfg.Yard, Records: records}, nil
}

// loadState builds the search root for the layout at path.
func (a *app) loadState(path string) (*search.State, error) {
	l, err := a.loadLayout(path)
	if err != nil {
		return nil, err
	}
	return planner.BuildState(l, cost.NewCalculator(a.cfg.Cost))
}

// newService creates a planner, opening the plan cache unless disabled.
func (a *app) newService(withStore bool) (*planner.Service, error) {
	opts := []planner.Option{planner.WithLogger(a.logger.Slog())}
	if withStore {
		store, err := storage.Open(a.cfg.Storage, storage.WithLogger(a.logger.Slog()))
		if err != nil {
			return nil, fmt.Errorf("opening plan cache: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		opts = append(opts, planner.WithStore(store))
	}
	return planner.NewService(a.cfg.Cost, a.cfg.Search, a.cfg.Dynamic, opts...), nil
}
