// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AleutianAI/AleutianYard/pkg/extensions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticate(t *testing.T) {
	audit := &extensions.MemoryAuditLogger{}
	s := testServer(t, func(c *Config) {
		c.AuthTokens = []string{"ops:t0ken"}
	}, WithAudit(audit))

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", "", http.StatusUnauthorized},
		{"header", "Bearer t0ken", "", http.StatusBadRequest},
		{"query", "", "?access_token=t0ken", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// An authenticated empty body fails validation, which proves
			// the request got past the middleware.
			req := httptest.NewRequest(http.MethodPost, "/v1/solve"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}

	denied := 0
	for _, e := range audit.Events() {
		if e.EventType == "auth.validate" {
			denied++
			assert.Equal(t, "denied", e.Outcome)
			assert.Equal(t, "anonymous", e.UserID)
		}
	}
	assert.Equal(t, 2, denied)

	// Health stays public.
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/health", nil).Code)
}

func TestAuthenticate_InvalidTokensDenyAll(t *testing.T) {
	s := testServer(t, func(c *Config) {
		c.AuthTokens = []string{"ops:"}
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/solve", nil)
	req.Header.Set("Authorization", "Bearer ")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAudit_SolveOutcomes(t *testing.T) {
	audit := &extensions.MemoryAuditLogger{}
	s := testServer(t, nil, WithAudit(audit))

	require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/v1/solve", SolveRequest{Layout: testLayout()}).Code)
	bad := testLayout()
	bad.Yard.Length = 0
	do(t, s, http.MethodPost, "/v1/solve", SolveRequest{Layout: bad})

	events := audit.Events()
	require.NotEmpty(t, events)
	first := events[0]
	assert.Equal(t, "planner.solve", first.EventType)
	assert.Equal(t, "success", first.Outcome)
	assert.Equal(t, "local-user", first.UserID)
	assert.NotEmpty(t, first.ResourceID)
	assert.Contains(t, first.Metadata, "moves")

	for _, e := range events[1:] {
		assert.NotEqual(t, "success", e.Outcome)
	}
}

func TestAudit_SlogFromConfig(t *testing.T) {
	s := testServer(t, func(c *Config) { c.AuditLog = true })
	_, ok := s.audit.(*extensions.SlogAuditLogger)
	assert.True(t, ok, "AuditLog should select the slog audit logger")

	s = testServer(t, nil)
	_, ok = s.audit.(extensions.NopAuditLogger)
	assert.True(t, ok)
}
