// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storage persists computed plans in an embedded BadgerDB so
// identical layouts are not searched twice.
//
// Keys are "plan/{sha256(digest)}/{variant}/{width}"; values are JSON.
// An optional LRU cache fronts the database for hot layouts.
package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/jonboulle/clockwork"
)

// Config holds configuration for the plan database.
type Config struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is
	// true.
	Path string `json:"path" yaml:"path"`

	// InMemory keeps everything in RAM.
	InMemory bool `json:"in_memory" yaml:"in_memory"`

	// SyncWrites fsyncs every commit.
	SyncWrites bool `json:"sync_writes" yaml:"sync_writes"`

	// TTL expires stored plans. Zero keeps them forever.
	TTL time.Duration `json:"ttl" yaml:"ttl" validate:"gte=0"`

	// CacheSize is the LRU front size. Zero disables the front cache.
	CacheSize int `json:"cache_size" yaml:"cache_size" validate:"gte=0"`

	// GCInterval is how often to run value log GC. Zero disables it.
	GCInterval time.Duration `json:"gc_interval" yaml:"gc_interval" validate:"gte=0"`

	// GCDiscardRatio is the minimum garbage ratio before GC rewrites.
	GCDiscardRatio float64 `json:"gc_discard_ratio" yaml:"gc_discard_ratio" validate:"gte=0,lte=1"`
}

// DefaultConfig returns production defaults rooted at ~/.aleutian/yard/plans.
func DefaultConfig() Config {
	path := "plans"
	if home, err := os.UserHomeDir(); err == nil {
		path = home + "/.aleutian/yard/plans"
	}
	return Config{
		Path:           path,
		SyncWrites:     true,
		TTL:            7 * 24 * time.Hour,
		CacheSize:      256,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns configuration for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true, CacheSize: 16}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// open opens BadgerDB per cfg, creating the directory when needed.
func open(cfg Config, logger *slog.Logger) (*badger.DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent plan store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create plan store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open plan store: %w", err)
	}
	return db, nil
}

// gcRunner periodically triggers value log GC.
type gcRunner struct {
	db       *badger.DB
	clock    clockwork.Clock
	interval time.Duration
	ratio    float64
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func newGCRunner(db *badger.DB, clock clockwork.Clock, interval time.Duration, ratio float64, logger *slog.Logger) (*gcRunner, error) {
	if interval <= 0 {
		return nil, errors.New("gc interval must be positive")
	}
	if ratio < 0 || ratio > 1 {
		return nil, errors.New("gc ratio must be between 0 and 1")
	}
	return &gcRunner{
		db:       db,
		clock:    clock,
		interval: interval,
		ratio:    ratio,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

func (r *gcRunner) start() {
	go r.run()
}

func (r *gcRunner) stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *gcRunner) run() {
	defer close(r.doneCh)
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.Chan():
			r.runGC()
		}
	}
}

func (r *gcRunner) runGC() {
	// ErrNoRewrite means nothing was worth collecting.
	err := r.db.RunValueLogGC(r.ratio)
	switch {
	case err == nil:
		r.logger.Debug("plan store value log GC completed")
	case !errors.Is(err, badger.ErrNoRewrite):
		r.logger.Warn("plan store value log GC error", slog.String("error", err.Error()))
	}
}
