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

import "context"

// Observer receives every snapshot as it is recorded. Observers run on the
// simulation goroutine and must return quickly.
type Observer interface {
	Observe(ctx context.Context, runID string, snap Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, runID string, snap Snapshot)

// Observe calls f.
func (f ObserverFunc) Observe(ctx context.Context, runID string, snap Snapshot) {
	f(ctx, runID, snap)
}
