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
	"time"

	"github.com/spf13/cobra"
)

// --- Global Flags ---
var (
	configPath string
	outputMode string
	logLevel   string

	// Yard dimensions override the config for layout commands.
	yardLength int
	yardWidth  int
	yardHeight int

	rootCmd = &cobra.Command{
		Use:           "yard",
		Short:         "Plan crane moves in a block relocation yard",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// --- Layouts ---
	generateCmd = &cobra.Command{
		Use:   "generate",
		Short: "Generate a random layout file",
		Args:  cobra.NoArgs,
		RunE:  runGenerate, // Defined in cmd_layout.go
	}
	showCmd = &cobra.Command{
		Use:   "show [layout file]",
		Short: "Render a layout",
		Args:  cobra.ExactArgs(1),
		RunE:  runShow, // Defined in cmd_layout.go
	}

	// --- Planning ---
	solveCmd = &cobra.Command{
		Use:   "solve [layout file]",
		Short: "Compute a relocation plan for a layout",
		Args:  cobra.ExactArgs(1),
		RunE:  runSolve, // Defined in cmd_solve.go
	}

	// --- Simulation ---
	simulateCmd = &cobra.Command{
		Use:   "simulate [layout file]",
		Short: "Run one dynamic simulation with random disruptions",
		Args:  cobra.ExactArgs(1),
		RunE:  runSimulate, // Defined in cmd_simulate.go
	}
	compareCmd = &cobra.Command{
		Use:   "compare [layout file]",
		Short: "Compare replanning variants over shared seeds",
		Args:  cobra.ExactArgs(1),
		RunE:  runCompare, // Defined in cmd_simulate.go
	}

	// --- Service ---
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the planner HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe, // Defined in cmd_serve.go
	}
)

// Subcommand flags.
var (
	generateOut        string
	generateSeed       uint64
	generateFill       float64
	generateTargetProb float64
	generateArrivals   int

	solveOut     string
	solveWidth   int
	solveTimeout time.Duration
	solveNoCache bool

	serveAddr  string
	serveWatch bool

	simVariant  string
	simEvents   int
	simSeed     uint64
	simOut      string
	simInflux   bool
	compareRuns int

	compareVariants  []string
	compareDiffSeeds bool
	compareParallel  int
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "config file (YAML or JSON)")
	pf.StringVarP(&outputMode, "output", "o", "", "output mode: rich, plain or machine (default: detect)")
	pf.StringVar(&logLevel, "log-level", "", "log level override")
	pf.IntVar(&yardLength, "length", 0, "yard length override")
	pf.IntVar(&yardWidth, "width", 0, "yard width override")
	pf.IntVar(&yardHeight, "height", 0, "yard height override")

	generateCmd.Flags().StringVar(&generateOut, "out", "layout.txt", "layout file to write")
	generateCmd.Flags().Uint64Var(&generateSeed, "seed", 1337, "random seed")
	generateCmd.Flags().Float64Var(&generateFill, "fill", 0, "fraction of column slots to fill (default from config)")
	generateCmd.Flags().Float64Var(&generateTargetProb, "target-prob", 0, "chance a block is VOID-bound (default from config)")
	generateCmd.Flags().IntVar(&generateArrivals, "arrivals", 0, "blocks waiting at ARRIVAL (default from config)")

	solveCmd.Flags().StringVar(&solveOut, "out", "", "write the plan as JSON (.zst compresses)")
	solveCmd.Flags().IntVar(&solveWidth, "beam-width", 0, "initial beam width override")
	solveCmd.Flags().DurationVar(&solveTimeout, "timeout", 0, "search timeout override")
	solveCmd.Flags().BoolVar(&solveNoCache, "no-cache", false, "skip the plan cache lookup")

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", true, "reload search settings when the config file changes")

	for _, c := range []*cobra.Command{simulateCmd, compareCmd} {
		c.Flags().IntVar(&simEvents, "events", 0, "events per run (default from config)")
		c.Flags().Uint64Var(&simSeed, "seed", 0, "start seed (default from config)")
		c.Flags().StringVar(&simOut, "out", "", "result file; {beam_width}, {dimensions} and {seed} are substituted")
		c.Flags().BoolVar(&simInflux, "influx", false, "stream snapshots to InfluxDB")
	}
	simulateCmd.Flags().StringVarP(&simVariant, "variant", "v", "", "replanning variant (default from config)")
	compareCmd.Flags().IntVar(&compareRuns, "runs", 1, "number of seeds")
	compareCmd.Flags().StringSliceVar(&compareVariants, "variants", nil, "variants to compare (default: all)")
	compareCmd.Flags().BoolVar(&compareDiffSeeds, "different-seeds", true, "use seed+run for each run")
	compareCmd.Flags().IntVar(&compareParallel, "parallel", 0, "concurrent simulations per seed (default: GOMAXPROCS)")

	rootCmd.AddCommand(generateCmd, showCmd, solveCmd, simulateCmd, compareCmd, serveCmd)
}
