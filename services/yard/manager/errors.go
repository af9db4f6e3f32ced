// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package manager

import "errors"

// Sentinel errors for the manager package.
var (
	// ErrAreaOutOfBounds indicates a crane area that leaves the grid.
	ErrAreaOutOfBounds = errors.New("crane area out of bounds")

	// ErrDuplicateCrane indicates a crane id assigned twice.
	ErrDuplicateCrane = errors.New("duplicate crane id")
)
