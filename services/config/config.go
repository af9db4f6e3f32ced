// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the application configuration shared by the yard
// binaries and watches the config file for changes.
//
// Values are layered: defaults, then the config file (YAML, falling back to
// JSON), then YARD_* environment variables. The merged result is
// validated before it is returned.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/AleutianAI/AleutianYard/pkg/extensions"
	"github.com/AleutianAI/AleutianYard/pkg/logging"
	"github.com/AleutianAI/AleutianYard/pkg/telemetry"
	"github.com/AleutianAI/AleutianYard/services/api"
	"github.com/AleutianAI/AleutianYard/services/planner"
	"github.com/AleutianAI/AleutianYard/services/planner/dynamic"
	"github.com/AleutianAI/AleutianYard/services/planner/search"
	"github.com/AleutianAI/AleutianYard/services/planner/storage"
	"github.com/AleutianAI/AleutianYard/services/simulator"
	"github.com/AleutianAI/AleutianYard/services/yard/cost"
	"github.com/AleutianAI/AleutianYard/services/yard/layout"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// AppConfig is the full configuration tree.
type AppConfig struct {
	// Yard gives the dimensions used when generating layouts.
	Yard     planner.YardSpec       `json:"yard" yaml:"yard"`
	Generate layout.GenerateOptions `json:"generate" yaml:"generate"`

	Cost      cost.Config      `json:"cost" yaml:"cost"`
	Search    search.Config    `json:"search" yaml:"search"`
	Dynamic   dynamic.Config   `json:"dynamic" yaml:"dynamic"`
	Simulator simulator.Config `json:"simulator" yaml:"simulator"`

	// OutputPattern names simulation result files. {beam_width},
	// {dimensions} and {seed} are substituted.
	OutputPattern string `json:"output_pattern" yaml:"output_pattern"`

	Storage   storage.Config   `json:"storage" yaml:"storage"`
	Telemetry telemetry.Config `json:"telemetry" yaml:"telemetry"`
	Logging   LoggingConfig    `json:"logging" yaml:"logging"`
	API       api.Config       `json:"api" yaml:"api"`
	Influx    InfluxConfig     `json:"influx" yaml:"influx"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level string `json:"level" yaml:"level"`
	Dir   string `json:"dir" yaml:"dir"`
	JSON  bool   `json:"json" yaml:"json"`
}

// InfluxConfig enables streaming simulation snapshots to InfluxDB.
type InfluxConfig struct {
	Enabled                bool `json:"enabled" yaml:"enabled"`
	simulator.InfluxConfig `yaml:",inline"`
}

// Default returns the built-in configuration.
func Default() AppConfig {
	return AppConfig{
		Yard:          planner.YardSpec{Length: 6, Width: 4, Height: 4},
		Generate:      layout.DefaultGenerateOptions(),
		Cost:          cost.DefaultConfig(),
		Search:        search.DefaultConfig(),
		Dynamic:       dynamic.DefaultConfig(),
		Simulator:     simulator.DefaultConfig(),
		OutputPattern: "results/simulation_bw{beam_width}_{dimensions}_seed{seed}.json",
		Storage:       storage.DefaultConfig(),
		Telemetry:     telemetry.DefaultConfig(),
		Logging:       LoggingConfig{Level: "info", Dir: "~/.aleutian/yard/logs"},
		API:           api.DefaultConfig(),
		Influx:        InfluxConfig{InfluxConfig: simulator.InfluxConfigFromEnv()},
	}
}

// Load reads configuration with priority env > file > defaults. A missing
// file is not an error; an empty path skips the file layer.
//
// Outputs:
//
//	AppConfig - The merged configuration.
//	error     - Non-nil if the file exists but cannot be parsed, or the
//	            result is invalid (wrapping ErrInvalidConfig).
func Load(fs afero.Fs, path string) (AppConfig, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(fs, path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}
	applyEnv(&cfg)
	cfg.syncSimulator()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks struct tags and the cross-field rules of each section.
func (c AppConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.Dynamic.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.Simulator.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Influx.Enabled {
		if err := c.Influx.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	if len(c.API.AuthTokens) > 0 {
		if _, err := extensions.NewTokenAuthProvider(c.API.AuthTokens); err != nil {
			return fmt.Errorf("%w: api: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}

// syncSimulator copies the search widths and timeouts into the simulator
// section; the search section is authoritative.
func (c *AppConfig) syncSimulator() {
	c.Simulator.BeamWidth = c.Search.BeamWidth
	c.Simulator.InitialBeamWidth = c.Search.InitialBeamWidth
	c.Simulator.DynamicTimeout = c.Search.Timeout
	c.Simulator.InitialTimeout = c.Search.InitialTimeout
}

// LogLevel returns the parsed logging level.
func (c AppConfig) LogLevel() logging.Level {
	level, _ := logging.ParseLevel(c.Logging.Level)
	return level
}

func loadFile(fs afero.Fs, path string, cfg *AppConfig) error {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): YAML error: %v, JSON error: %w", err, jsonErr)
		}
	}
	return nil
}

func applyEnv(cfg *AppConfig) {
	envInt("YARD_LENGTH", &cfg.Yard.Length)
	envInt("YARD_WIDTH", &cfg.Yard.Width)
	envInt("YARD_HEIGHT", &cfg.Yard.Height)

	envInt("YARD_BEAM_WIDTH", &cfg.Search.BeamWidth)
	envInt("YARD_INITIAL_BEAM_WIDTH", &cfg.Search.InitialBeamWidth)
	envDuration("YARD_TIMEOUT", &cfg.Search.Timeout)
	envDuration("YARD_INITIAL_TIMEOUT", &cfg.Search.InitialTimeout)
	envBool("YARD_PARALLEL", &cfg.Search.Parallel.Enabled)

	envInt("YARD_EVENTS", &cfg.Simulator.TotalEvents)
	if v := os.Getenv("YARD_SEED"); v != "" {
		if seed, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Simulator.Seed = seed
		}
	}
	if v := os.Getenv("YARD_VARIANT"); v != "" {
		if variant, err := dynamic.ParseVariant(v); err == nil {
			cfg.Simulator.Variant = variant
		}
	}
	envString("YARD_STORAGE_PATH", &cfg.Storage.Path)
	envString("YARD_LOG_LEVEL", &cfg.Logging.Level)
	envString("YARD_LOG_DIR", &cfg.Logging.Dir)
	envString("YARD_API_ADDR", &cfg.API.Addr)
	envString("YARD_TRACE_EXPORTER", &cfg.Telemetry.TraceExporter)
	envString("YARD_METRIC_EXPORTER", &cfg.Telemetry.MetricExporter)
	envString("YARD_OTLP_ENDPOINT", &cfg.Telemetry.OTLPEndpoint)
	envBool("YARD_INFLUX_ENABLED", &cfg.Influx.Enabled)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*dst = i
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
