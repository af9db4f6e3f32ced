// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package simulator

import "errors"

var (
	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("invalid simulation config")

	// ErrNoInitialPlan is returned when the first plan cannot be found.
	ErrNoInitialPlan = errors.New("could not find initial plan")

	// ErrPlanExhausted is returned when a move is requested from an empty
	// plan.
	ErrPlanExhausted = errors.New("no planned moves left")

	// ErrNoConfigurations is returned by Comparison.Run with nothing to
	// compare.
	ErrNoConfigurations = errors.New("no configurations to compare")
)
