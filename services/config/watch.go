// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/AleutianAI/AleutianYard/services/planner"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

// DefaultDebounce coalesces the bursts of events editors and atomic
// renames produce for a single save.
const DefaultDebounce = 250 * time.Millisecond

// WatchOption configures Watch.
type WatchOption func(*watchOptions)

type watchOptions struct {
	logger   *slog.Logger
	debounce time.Duration
	fs       afero.Fs
}

// WithWatchLogger sets the logger.
func WithWatchLogger(l *slog.Logger) WatchOption {
	return func(o *watchOptions) { o.logger = l }
}

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) WatchOption {
	return func(o *watchOptions) { o.debounce = d }
}

// Watch reloads path whenever it changes and passes every valid result to
// onChange. Invalid files are logged and ignored, so the last good
// configuration stays in effect. Watch blocks until ctx ends.
//
// The parent directory is watched rather than the file itself so that
// replacements by rename are seen.
//
// Outputs:
//
//	error - Non-nil if the watcher cannot be created; nil once ctx ends.
func Watch(ctx context.Context, path string, onChange func(AppConfig), opts ...WatchOption) error {
	o := watchOptions{logger: slog.Default(), debounce: DefaultDebounce, fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(&o)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}
	o.logger.Info("watching config", slog.String("path", abs))

	var (
		timer  *time.Timer
		reload <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(o.debounce)
			} else {
				timer.Reset(o.debounce)
			}
			reload = timer.C

		case <-reload:
			reload = nil
			cfg, err := Load(o.fs, abs)
			if err != nil {
				o.logger.Warn("config reload rejected", slog.String("path", abs), slog.String("error", err.Error()))
				continue
			}
			o.logger.Info("config reloaded", slog.String("path", abs))
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			o.logger.Warn("config watcher error", slog.String("error", err.Error()))
		}
	}
}

// PlannerReloader returns an onChange callback that pushes the search and
// strategy sections into svc.
func PlannerReloader(svc *planner.Service, logger *slog.Logger) func(AppConfig) {
	return func(cfg AppConfig) {
		if err := svc.UpdateConfig(cfg.Search, cfg.Dynamic); err != nil {
			logger.Warn("planner rejected reloaded config", slog.String("error", err.Error()))
		}
	}
}
