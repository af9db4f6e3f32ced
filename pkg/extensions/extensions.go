// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extensions defines the authentication and audit hooks of the
// planner API.
//
// Open source deployments run with NopAuthProvider and NopAuditLogger, or
// with the static TokenAuthProvider and SlogAuditLogger configured from
// the API section of the config file. Other deployments supply their own
// implementations through the api.WithAuth and api.WithAudit options.
//
// All implementations must be safe for concurrent use.
package extensions
