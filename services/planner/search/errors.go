// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package search

import "errors"

// Sentinel errors for the search package.
var (
	// ErrNoSolutionInBudget indicates the beam ran out of time or branches
	// without reaching a terminal state.
	ErrNoSolutionInBudget = errors.New("no solution within budget")

	// ErrInconsistentPlan indicates a broken clone/apply/undo invariant,
	// such as an applied prefix missing from a returned plan. Callers must
	// treat it as fatal.
	ErrInconsistentPlan = errors.New("inconsistent plan")

	// ErrDeadlineExceeded indicates the wall-clock budget elapsed.
	ErrDeadlineExceeded = errors.New("search deadline exceeded")

	// ErrEmptyHistory indicates UndoLast on a state with no moves.
	ErrEmptyHistory = errors.New("no move to undo")

	// ErrInvalidRequest indicates a non-positive beam width or a nil rank
	// function.
	ErrInvalidRequest = errors.New("invalid search request")
)
