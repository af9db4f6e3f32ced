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
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Mode controls how rich terminal output is.
type Mode string

const (
	// ModeRich enables colors, boxes and icons.
	ModeRich Mode = "rich"

	// ModePlain keeps icons but drops colors and borders.
	ModePlain Mode = "plain"

	// ModeMachine prints tab-separated text suitable for scripting.
	ModeMachine Mode = "machine"
)

// ParseMode converts a flag or env value to a Mode. Unknown values map to
// ModeRich.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "plain", "p", "minimal":
		return ModePlain
	case "machine", "quiet", "q":
		return ModeMachine
	default:
		return ModeRich
	}
}

// DetectMode picks the mode for f: YARD_OUTPUT wins, then anything that is
// not a terminal gets ModeMachine.
func DetectMode(f *os.File) Mode {
	if env := os.Getenv("YARD_OUTPUT"); env != "" {
		return ParseMode(env)
	}
	if f == nil {
		return ModeMachine
	}
	fd := f.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return ModeMachine
	}
	return ModeRich
}
