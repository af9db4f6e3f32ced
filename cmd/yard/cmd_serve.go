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
	"github.com/AleutianAI/AleutianYard/services/api"
	"github.com/AleutianAI/AleutianYard/services/config"
	"github.com/AleutianAI/AleutianYard/services/simulator"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd, "api")
	if err != nil {
		return err
	}
	defer a.close()

	svc, err := a.newService(true)
	if err != nil {
		return err
	}

	var opts []api.Option
	opts = append(opts, api.WithLogger(a.logger.Slog()))
	if a.cfg.Influx.Enabled {
		sink := simulator.NewInfluxSink(a.cfg.Influx.InfluxConfig, a.logger.Slog())
		a.closers = append(a.closers, func() error { sink.Close(); return nil })
		opts = append(opts, api.WithSimulatorOptions(simulator.WithObserver(sink)))
	}
	if serveAddr != "" {
		a.cfg.API.Addr = serveAddr
	}
	server := api.NewServer(a.cfg.API, svc, opts...)

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error { return server.Run(ctx) })
	if configPath != "" && serveWatch {
		reload := config.PlannerReloader(svc, a.logger.Slog())
		g.Go(func() error {
			return config.Watch(ctx, configPath, reload, config.WithWatchLogger(a.logger.Slog()))
		})
	}

	a.printer.Success("Serving on " + a.cfg.API.Addr)
	return g.Wait()
}
