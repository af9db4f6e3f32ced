// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func sampleView() YardView {
	return YardView{
		Length: 2, Width: 1, Height: 2,
		Stacks: [][]Cell{
			{{ID: 1, VoidBound: true}, {ID: 2, Blocking: true}},
			{{ID: 3}},
		},
		Arrival: []Cell{{ID: 4}, {ID: 5, VoidBound: true}},
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"rich", ModeRich},
		{"", ModeRich},
		{"PLAIN", ModePlain},
		{"q", ModeMachine},
		{" machine ", ModeMachine},
		{"fancy", ModeRich},
	}
	for _, tt := range tests {
		if got := ParseMode(tt.in); got != tt.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDetectMode(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out.txt"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	t.Setenv("YARD_OUTPUT", "")
	if got := DetectMode(f); got != ModeMachine {
		t.Errorf("regular file: DetectMode() = %v, want machine", got)
	}
	if got := DetectMode(nil); got != ModeMachine {
		t.Errorf("nil file: DetectMode() = %v, want machine", got)
	}

	t.Setenv("YARD_OUTPUT", "plain")
	if got := DetectMode(f); got != ModePlain {
		t.Errorf("env override: DetectMode() = %v, want plain", got)
	}
}

func TestPrinter_Messages(t *testing.T) {
	tests := []struct {
		mode Mode
		want []string
	}{
		{ModeMachine, []string{"OK: solved", "WARN: slow", "ERROR: failed", "info line"}},
		{ModePlain, []string{"✓ solved", "⚠ slow", "✗ failed", "│ info line"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			var buf bytes.Buffer
			p := NewPrinter(&buf, tt.mode)
			p.Title("Title")
			p.Success("solved")
			p.Warning("slow")
			p.Error("failed")
			p.Info("info line")

			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
			if tt.mode == ModeMachine && strings.Contains(out, "Title") {
				t.Error("machine mode should omit titles")
			}
		})
	}
}

func TestPrinter_KeyValues(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, ModeMachine).KeyValues([]Field{{"cost", "12"}, {"moves", "4"}})
	if got, want := buf.String(), "cost\t12\nmoves\t4\n"; got != want {
		t.Errorf("KeyValues() = %q, want %q", got, want)
	}

	buf.Reset()
	NewPrinter(&buf, ModePlain).KeyValues([]Field{{"a", "1"}, {"long", "2"}})
	if !strings.Contains(buf.String(), "  a     1\n") {
		t.Errorf("plain KeyValues not aligned: %q", buf.String())
	}
}

func TestPrinter_ProgressBar(t *testing.T) {
	if got := NewPrinter(nil, ModeMachine).ProgressBar(3, 10, 20); got != "3/10" {
		t.Errorf("machine ProgressBar() = %q", got)
	}
	got := NewPrinter(nil, ModePlain).ProgressBar(5, 10, 10)
	if !strings.HasPrefix(got, "█████░░░░░") || !strings.HasSuffix(got, " 50%") {
		t.Errorf("plain ProgressBar() = %q", got)
	}
	if got := NewPrinter(nil, ModePlain).ProgressBar(20, 10, 4); !strings.HasSuffix(got, "100%") {
		t.Errorf("overflow should clamp: %q", got)
	}
}

func TestRenderYard_Machine(t *testing.T) {
	got := NewPrinter(nil, ModeMachine).RenderYard(sampleView())
	want := "0,0\t1* 2\n1,0\t3\narrival\t4 5*"
	if got != want {
		t.Errorf("RenderYard() =\n%q\nwant\n%q", got, want)
	}
}

func TestRenderYard_Plain(t *testing.T) {
	got := NewPrinter(nil, ModePlain).RenderYard(sampleView())
	for _, want := range []string{"tier 1", "tier 0", " 2!", " 1*", " 3 ", "arrival: 4  → 5*"} {
		if !strings.Contains(got, want) {
			t.Errorf("plain yard missing %q:\n%s", want, got)
		}
	}
	if strings.Index(got, "tier 1") > strings.Index(got, "tier 0") {
		t.Error("top tier should be drawn first")
	}
}

func TestRenderYard_RichHasAllTiers(t *testing.T) {
	got := NewPrinter(nil, ModeRich).RenderYard(sampleView())
	if !strings.Contains(got, "tier 0") || !strings.Contains(got, "tier 1") {
		t.Errorf("rich yard missing tiers:\n%s", got)
	}
}

func TestRenderPlan(t *testing.T) {
	steps := []PlanStep{
		{BlockID: 2, From: "(0,1,0)", To: "(1,1,0)", Cost: 3},
		{BlockID: 1, From: "(0,0,0)", To: "(-1,0,-1)", Cost: 5},
	}
	got := NewPrinter(nil, ModeMachine).RenderPlan(steps)
	want := "1\t2\t(0,1,0)\t(1,1,0)\t3\n2\t1\t(0,0,0)\t(-1,0,-1)\t5\n"
	if got != want {
		t.Errorf("RenderPlan() = %q, want %q", got, want)
	}

	plain := NewPrinter(nil, ModePlain).RenderPlan(steps)
	if !strings.Contains(plain, "(+5 = 8)") {
		t.Errorf("plain plan should carry running cost:\n%s", plain)
	}
}
