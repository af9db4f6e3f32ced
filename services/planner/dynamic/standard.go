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

import (
	"context"

	"github.com/AleutianAI/AleutianYard/services/planner/search"
	"github.com/AleutianAI/AleutianYard/services/yard/model"
)

// Standard discards the stale plan and searches from scratch.
type Standard struct {
	base
}

// Variant implements Strategy.
func (s *Standard) Variant() Variant { return VariantStandard }

// Recalculate runs a beam search from current with the standard rank.
func (s *Standard) Recalculate(ctx context.Context, current, _ *search.State, _ []model.Move, _ EventKind) (*search.State, error) {
	return s.run(ctx, current, s.standardRank(), VariantStandard.String())
}
