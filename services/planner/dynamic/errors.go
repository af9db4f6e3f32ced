// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dynamic

import "errors"

// Sentinel errors for the dynamic package.
var (
	// ErrNoPreviousState indicates a restart-point strategy called without
	// the pre-disruption state.
	ErrNoPreviousState = errors.New("no previous state to compare with")

	// ErrRepairRejected indicates the repair heuristic gave up, either
	// because the repaired plan was too expensive or a corrective move
	// could not be built. Callers fall back to full recalculation.
	ErrRepairRejected = errors.New("repair rejected")

	// ErrUnknownVariant indicates an unrecognised strategy name or value.
	ErrUnknownVariant = errors.New("unknown strategy variant")
)
