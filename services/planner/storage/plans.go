// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianYard/services/yard/model"
	"github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
)

const keyPrefix = "plan/"

// ErrPlanNotFound indicates no stored plan for the key.
var ErrPlanNotFound = errors.New("plan not found")

// Key identifies a plan: the layout it was computed for and how.
type Key struct {
	Digest  string
	Variant string
	Width   int
}

func (k Key) bytes() []byte {
	sum := sha256.Sum256([]byte(k.Digest))
	return []byte(keyPrefix + hex.EncodeToString(sum[:]) + "/" + k.Variant + "/" + strconv.Itoa(k.Width))
}

// StoredPlan is the persisted value.
type StoredPlan struct {
	Digest    string       `json:"digest"`
	Variant   string       `json:"variant"`
	Width     int          `json:"width"`
	Moves     []model.Move `json:"moves"`
	Cost      int          `json:"cost"`
	Bound     int          `json:"bound"`
	CreatedAt time.Time    `json:"created_at"`
}

// Option configures a PlanStore.
type Option func(*PlanStore)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *PlanStore) { s.logger = l }
}

// WithClock sets the clock used for timestamps and GC.
func WithClock(c clockwork.Clock) Option {
	return func(s *PlanStore) { s.clock = c }
}

// PlanStore caches plans in BadgerDB.
//
// Thread Safety: Safe for concurrent use.
type PlanStore struct {
	db     *badger.DB
	gc     *gcRunner
	front  *lru.Cache[string, StoredPlan]
	ttl    time.Duration
	clock  clockwork.Clock
	logger *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Open opens a PlanStore per cfg.
func Open(cfg Config, opts ...Option) (*PlanStore, error) {
	s := &PlanStore{ttl: cfg.TTL}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	db, err := open(cfg, s.logger)
	if err != nil {
		return nil, err
	}
	s.db = db

	if cfg.CacheSize > 0 {
		front, err := lru.New[string, StoredPlan](cfg.CacheSize)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("create front cache: %w", err)
		}
		s.front = front
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		gc, err := newGCRunner(db, s.clock, cfg.GCInterval, cfg.GCDiscardRatio, s.logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("create GC runner: %w", err)
		}
		s.gc = gc
		gc.start()
	}
	return s, nil
}

// Put stores plan under key, replacing any previous value.
func (s *PlanStore) Put(ctx context.Context, key Key, plan StoredPlan) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	plan.Digest, plan.Variant, plan.Width = key.Digest, key.Variant, key.Width
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = s.clock.Now().UTC()
	}
	value, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}

	k := key.bytes()
	err = s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(k, value)
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("store plan: %w", err)
	}
	if s.front != nil {
		s.front.Add(string(k), plan)
	}
	return nil
}

// Get returns the plan stored under key.
//
// Outputs:
//
//	StoredPlan - The plan.
//	error      - ErrPlanNotFound when absent or expired.
func (s *PlanStore) Get(ctx context.Context, key Key) (StoredPlan, error) {
	if err := ctx.Err(); err != nil {
		return StoredPlan{}, fmt.Errorf("context cancelled: %w", err)
	}
	k := key.bytes()
	if s.front != nil {
		if p, ok := s.front.Get(string(k)); ok && !s.expired(p) {
			return p, nil
		}
	}

	var plan StoredPlan
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &plan)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return StoredPlan{}, ErrPlanNotFound
	}
	if err != nil {
		return StoredPlan{}, fmt.Errorf("load plan: %w", err)
	}
	if s.front != nil {
		s.front.Add(string(k), plan)
	}
	return plan, nil
}

func (s *PlanStore) expired(p StoredPlan) bool {
	return s.ttl > 0 && s.clock.Since(p.CreatedAt) > s.ttl
}

// Delete removes the plan under key. Deleting a missing key is not an
// error.
func (s *PlanStore) Delete(ctx context.Context, key Key) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	k := key.bytes()
	if s.front != nil {
		s.front.Remove(string(k))
	}
	if err := s.db.Update(func(txn *badger.Txn) error { return txn.Delete(k) }); err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	return nil
}

// Count returns the number of stored plans.
func (s *PlanStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context cancelled: %w", err)
	}
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Close stops GC and closes the database. Safe to call more than once.
func (s *PlanStore) Close() error {
	s.closeOnce.Do(func() {
		if s.gc != nil {
			s.gc.stop()
		}
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}
