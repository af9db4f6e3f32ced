// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation for identifiers that reach
// external systems.
//
// InfluxDB measurement names, bucket names and tag keys supplied through
// config files or the environment end up in line protocol and in Flux
// queries run against the snapshot bucket. Restricting them to a safe
// alphabet prevents Flux injection and line protocol corruption.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ErrInvalidIdentifier is wrapped by every validation failure.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// identifierPattern matches measurement names and tag keys: a letter
// followed by letters, digits, underscores, dots or hyphens.
var identifierPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.\-]{0,63}$`)

// bucketPattern also allows the slash used by "database/retention" style
// bucket names.
var bucketPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.\-/]{0,63}$`)

// ValidateMeasurement validates an InfluxDB measurement name.
//
// Example:
//
//	if err := validation.ValidateMeasurement(cfg.Measurement); err != nil {
//	    return fmt.Errorf("influx: %w", err)
//	}
func ValidateMeasurement(name string) error {
	return match("measurement", name, identifierPattern)
}

// ValidateBucket validates an InfluxDB bucket name.
func ValidateBucket(name string) error {
	return match("bucket", name, bucketPattern)
}

// ValidateTagKey validates one tag key. Keys starting with "_" are
// reserved by InfluxDB and rejected.
func ValidateTagKey(key string) error {
	return match("tag key", key, identifierPattern)
}

// ValidateTagValue rejects values containing control characters, which
// cannot be escaped in line protocol.
func ValidateTagValue(value string) error {
	if value == "" {
		return fmt.Errorf("%w: tag value cannot be empty", ErrInvalidIdentifier)
	}
	if strings.ContainsFunc(value, func(r rune) bool { return r < 0x20 || r == 0x7f }) {
		return fmt.Errorf("%w: tag value %q contains control characters", ErrInvalidIdentifier, value)
	}
	return nil
}

// ValidateTags validates every key and value of tags. The error lists all
// offending keys in sorted order.
func ValidateTags(tags map[string]string) error {
	var invalid []string
	for k, v := range tags {
		if ValidateTagKey(k) != nil || ValidateTagValue(v) != nil {
			invalid = append(invalid, k)
		}
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return fmt.Errorf("%w: invalid tags %q", ErrInvalidIdentifier, invalid)
	}
	return nil
}

// SanitizeMeasurement trims and lowercases name, then validates it.
func SanitizeMeasurement(name string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if err := ValidateMeasurement(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}

func match(kind, s string, pattern *regexp.Regexp) error {
	if s == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrInvalidIdentifier, kind)
	}
	if !pattern.MatchString(s) {
		return fmt.Errorf("%w: %s %q", ErrInvalidIdentifier, kind, s)
	}
	return nil
}
