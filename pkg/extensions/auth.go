// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extensions

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
)

// ErrUnauthorized is returned when authentication fails. Implementations
// wrap it with additional context.
var ErrUnauthorized = errors.New("unauthorized")

// AuthInfo identifies the caller of an authenticated request.
type AuthInfo struct {
	// UserID is never empty.
	UserID string

	// Roles lists the caller's role memberships, for example "operator".
	Roles []string
}

// HasRole checks if the caller has role.
func (a *AuthInfo) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuthProvider validates bearer tokens.
type AuthProvider interface {
	// Validate returns the caller for token, or an error wrapping
	// ErrUnauthorized.
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// NopAuthProvider accepts every request as "local-user".
type NopAuthProvider struct{}

// Validate always succeeds.
func (NopAuthProvider) Validate(context.Context, string) (*AuthInfo, error) {
	return &AuthInfo{UserID: "local-user", Roles: []string{"operator"}}, nil
}

// TokenAuthProvider accepts a fixed set of tokens. Tokens are compared by
// hash in constant time.
type TokenAuthProvider struct {
	tokens map[[sha256.Size]byte]string
}

// NewTokenAuthProvider maps each token to a user id. Entries have the form
// "user:token"; a bare token authenticates as "api-client".
//
// Outputs:
//
//	*TokenAuthProvider - The provider.
//	error              - Non-nil for an empty token.
func NewTokenAuthProvider(entries []string) (*TokenAuthProvider, error) {
	p := &TokenAuthProvider{tokens: make(map[[sha256.Size]byte]string, len(entries))}
	for i, e := range entries {
		user, token, ok := strings.Cut(e, ":")
		if !ok {
			user, token = "api-client", e
		}
		if strings.TrimSpace(token) == "" {
			return nil, fmt.Errorf("auth token %d is empty", i)
		}
		p.tokens[sha256.Sum256([]byte(token))] = user
	}
	return p, nil
}

// Validate looks the token up.
func (p *TokenAuthProvider) Validate(_ context.Context, token string) (*AuthInfo, error) {
	if token == "" {
		return nil, fmt.Errorf("missing bearer token: %w", ErrUnauthorized)
	}
	sum := sha256.Sum256([]byte(token))
	for known, user := range p.tokens {
		if subtle.ConstantTimeCompare(known[:], sum[:]) == 1 {
			return &AuthInfo{UserID: user, Roles: []string{"operator"}}, nil
		}
	}
	return nil, fmt.Errorf("unknown token: %w", ErrUnauthorized)
}

var (
	_ AuthProvider = NopAuthProvider{}
	_ AuthProvider = (*TokenAuthProvider)(nil)
)
