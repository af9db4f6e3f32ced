// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
		{Level(-1), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", int(tt.level), got, tt.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{" warning ", LevelWarn, false},
		{"Warn", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
		{"unknown", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func readDaily(t *testing.T, dir, service string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, service+"_"+time.Now().Format(time.DateOnly)+".log"))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	return string(data)
}

func TestNew_FileLogging(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{Level: LevelDebug, LogDir: dir, Service: "sim", Quiet: true})
	logger.Info("replan finished", "variant", "standard", "moves", 12)
	logger.With("run_id", "r-1").Debug("round", "width", 2)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	content := readDaily(t, dir, "sim")
	for _, want := range []string{`"msg":"replan finished"`, `"variant":"standard"`, `"service":"sim"`, `"run_id":"r-1"`} {
		if !strings.Contains(content, want) {
			t.Errorf("log file missing %s: %s", want, content)
		}
	}
}

func TestLogger_LevelFilter(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{Level: LevelWarn, LogDir: dir, Service: "f", Quiet: true})
	logger.Info("dropped")
	logger.Warn("kept")
	_ = logger.Close()

	content := readDaily(t, dir, "f")
	if strings.Contains(content, "dropped") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(content, "kept") {
		t.Error("warn record should be written")
	}
}

func TestNew_QuietWithoutFileDiscards(t *testing.T) {
	logger := New(Config{Quiet: true})
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("quiet logger without a file should discard everything")
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestLogger_CloseTwice(t *testing.T) {
	logger := New(Config{LogDir: t.TempDir(), Quiet: true})
	if err := logger.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestLogger_WithSharesHandlers(t *testing.T) {
	logger := New(Config{Quiet: true})
	child := logger.With("run_id", "abc")
	if child.Slog() == logger.Slog() {
		t.Error("With should return a distinct slog.Logger")
	}
	if child.file != nil {
		t.Error("child must not own the file")
	}
}

func TestFanout_Enabled(t *testing.T) {
	h := fanout{
		slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}),
		slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo}),
	}
	if !h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("expected Info enabled through second handler")
	}
	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected Debug disabled")
	}
}
