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
	"log/slog"
	"sync"
	"time"
)

// AuditEvent records one API operation.
//
// Example:
//
//	event := AuditEvent{
//	    EventType:  "planner.solve",
//	    UserID:     auth.UserID,
//	    ResourceID: requestID,
//	    Outcome:    "success",
//	    Metadata:   map[string]any{"moves": 14},
//	}
type AuditEvent struct {
	// EventType has the form "category.action", e.g. "planner.replan".
	EventType string

	// Timestamp is set to time.Now().UTC() by loggers when zero.
	Timestamp time.Time

	// UserID is "anonymous" when the caller is unknown.
	UserID string

	ResourceID string

	// Outcome is "success", "failure" or "denied".
	Outcome string

	Metadata map[string]any
}

// AuditLogger records audit events.
type AuditLogger interface {
	Log(ctx context.Context, event AuditEvent) error

	// Flush persists buffered events. Called on shutdown.
	Flush(ctx context.Context) error
}

// NopAuditLogger discards every event.
type NopAuditLogger struct{}

// Log discards the event.
func (NopAuditLogger) Log(context.Context, AuditEvent) error { return nil }

// Flush is a no-op.
func (NopAuditLogger) Flush(context.Context) error { return nil }

// SlogAuditLogger writes events as structured log records at Info.
type SlogAuditLogger struct {
	logger *slog.Logger
}

// NewSlogAuditLogger writes to logger under the "audit" group.
func NewSlogAuditLogger(logger *slog.Logger) *SlogAuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAuditLogger{logger: logger.WithGroup("audit")}
}

// Log writes the event.
func (l *SlogAuditLogger) Log(ctx context.Context, event AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	attrs := []any{
		slog.String("event_type", event.EventType),
		slog.Time("timestamp", event.Timestamp),
		slog.String("user_id", event.UserID),
		slog.String("resource_id", event.ResourceID),
		slog.String("outcome", event.Outcome),
	}
	if len(event.Metadata) > 0 {
		attrs = append(attrs, slog.Any("metadata", event.Metadata))
	}
	l.logger.InfoContext(ctx, "audit event", attrs...)
	return nil
}

// Flush is a no-op; slog writes synchronously.
func (l *SlogAuditLogger) Flush(context.Context) error { return nil }

// MemoryAuditLogger keeps events in memory.
type MemoryAuditLogger struct {
	mu     sync.Mutex
	events []AuditEvent
}

// Log appends the event.
func (l *MemoryAuditLogger) Log(_ context.Context, event AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()
	return nil
}

// Flush is a no-op.
func (l *MemoryAuditLogger) Flush(context.Context) error { return nil }

// Events returns a copy of the recorded events, oldest first.
func (l *MemoryAuditLogger) Events() []AuditEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]AuditEvent(nil), l.events...)
}

var (
	_ AuditLogger = NopAuditLogger{}
	_ AuditLogger = (*SlogAuditLogger)(nil)
	_ AuditLogger = (*MemoryAuditLogger)(nil)
)
