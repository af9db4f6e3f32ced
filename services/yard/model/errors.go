// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for the model package.
var (
	// ErrNotFound indicates a query for an absent block or an empty position.
	ErrNotFound = errors.New("not found")

	// ErrIllegalMove indicates a pickup or placement that violates stacking,
	// height or reachability rules.
	ErrIllegalMove = errors.New("illegal move")

	// ErrUnreachable indicates a position outside a crane's operational area.
	ErrUnreachable = fmt.Errorf("%w: position unreachable", ErrIllegalMove)

	// ErrDuplicateBlock indicates a block id that is already in the yard.
	ErrDuplicateBlock = errors.New("duplicate block id")

	// ErrInvalidDimensions indicates non-positive yard dimensions.
	ErrInvalidDimensions = errors.New("invalid yard dimensions")
)
