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

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// RankFunc scores a child state; lower ranks survive. Implementations must
// be safe for concurrent use when parallel expansion is enabled.
type RankFunc func(s *State) float64

// StandardRank returns bound plus penalty times the blocked block count.
// The blocked term is dropped while the state has no history.
func StandardRank(penalty float64) RankFunc {
	return func(s *State) float64 {
		r := float64(s.Bound())
		if s.HistoryLen() > 0 {
			r += penalty * float64(s.BlockedBlocks())
		}
		return r
	}
}

// BoundRank ranks by bound alone.
func BoundRank(s *State) float64 {
	return float64(s.Bound())
}

// Request describes one search.
type Request struct {
	// Width is the number of branches kept per round.
	Width int

	// Timeout bounds wall time; zero means no deadline.
	Timeout time.Duration

	// Rank orders children.
	Rank RankFunc

	// Label names the caller in logs and spans.
	Label string
}

// Result is the outcome of a successful search.
type Result struct {
	Best  *State
	Stats Stats
}

// Beam runs width-limited anytime best-first searches.
//
// Thread Safety: Safe for concurrent use; each Search call has its own
// budget and incumbent.
type Beam struct {
	cfg    Config
	clock  clockwork.Clock
	logger *slog.Logger
	tracer *Tracer
}

// BeamOption configures a Beam.
type BeamOption func(*Beam)

// WithClock sets the clock used for deadlines.
func WithClock(c clockwork.Clock) BeamOption {
	return func(b *Beam) { b.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) BeamOption {
	return func(b *Beam) { b.logger = l }
}

// WithTracer sets the tracer.
func WithTracer(t *Tracer) BeamOption {
	return func(b *Beam) { b.tracer = t }
}

// NewBeam creates a beam engine.
func NewBeam(cfg Config, opts ...BeamOption) *Beam {
	b := &Beam{cfg: cfg}
	for _, opt := range opts {
		opt(b)
	}
	if b.clock == nil {
		b.clock = clockwork.NewRealClock()
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.tracer == nil {
		b.tracer = NewTracer(b.logger, cfg.Observability)
	}
	return b
}

// Config returns the engine configuration.
func (b *Beam) Config() Config { return b.cfg }

// Clock returns the engine clock.
func (b *Beam) Clock() clockwork.Clock { return b.clock }

// Logger returns the engine logger.
func (b *Beam) Logger() *slog.Logger { return b.logger }

// incumbent is the best terminal state found so far. Quality is the bound,
// which equals the accumulated cost on terminal states; ties go to the
// earliest (round, branch, child) discovery.
type incumbent struct {
	mu    sync.Mutex
	state *State
	key   [3]int
}

func (inc *incumbent) offer(s *State, key [3]int) {
	inc.mu.Lock()
	defer inc.mu.Unlock()
	if inc.state == nil || s.Bound() < inc.state.Bound() ||
		(s.Bound() == inc.state.Bound() && lessKey(key, inc.key)) {
		inc.state = s
		inc.key = key
	}
}

func (inc *incumbent) quality() (int, bool) {
	inc.mu.Lock()
	defer inc.mu.Unlock()
	if inc.state == nil {
		return 0, false
	}
	return inc.state.Bound(), true
}

func lessKey(a, b [3]int) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

type rankedChild struct {
	state *State
	rank  float64
}

// Search explores from root and returns the best terminal state found.
// root is never mutated.
//
// Each round expands every active branch (in parallel when enabled),
// offers terminal children to the incumbent, prunes children whose bound
// cannot beat it, and keeps the Width best ranked survivors. The deadline
// and ctx are checked between rounds only.
//
// Outputs:
//
//	*Result - The incumbent and search counters.
//	error   - ErrNoSolutionInBudget when no terminal state was reached,
//	          ErrInvalidRequest for a bad request.
func (b *Beam) Search(ctx context.Context, root *State, req Request) (*Result, error) {
	if req.Width < 1 || req.Rank == nil {
		return nil, fmt.Errorf("%w: width %d", ErrInvalidRequest, req.Width)
	}

	start := b.clock.Now()
	budget := NewBudget(req.Timeout, b.clock)
	ctx, span := b.tracer.StartSearch(ctx, req, root)

	inc := &incumbent{}
	beam := []*State{root.Clone()}
	if beam[0].IsTerminal() {
		inc.offer(beam[0], [3]int{})
		beam = nil
	}

	for round := 0; len(beam) > 0; round++ {
		if budget.CheckDeadline() != nil || ctx.Err() != nil {
			break
		}

		children := b.expandRound(ctx, beam, round, req.Rank, inc, budget)

		if q, ok := inc.quality(); ok {
			kept := children[:0]
			for _, c := range children {
				if c.state.Bound() < q {
					kept = append(kept, c)
				}
			}
			budget.RecordPruned(len(children) - len(kept))
			children = kept
		}

		sort.SliceStable(children, func(i, j int) bool { return children[i].rank < children[j].rank })
		if len(children) > req.Width {
			children = children[:req.Width]
		}
		beam = beam[:0]
		for _, c := range children {
			beam = append(beam, c.state)
		}
		budget.RecordRound()
		b.tracer.TraceRound(span, round, len(beam), len(children))
	}

	stats := budget.Stats()
	var err error
	var res *Result
	if inc.state == nil {
		err = fmt.Errorf("%w: %s after %d rounds", ErrNoSolutionInBudget, req.Label, stats.Rounds)
	} else {
		res = &Result{Best: inc.state, Stats: stats}
	}

	b.tracer.EndSearch(span, inc.state, stats, err)
	if b.cfg.Observability.MetricsEnabled {
		recordSearchMetrics(stats, inc.state, err, b.clock.Since(start))
	}
	return res, err
}

// expandRound generates every child of beam. Results keep branch then
// choice order so ranking is independent of goroutine scheduling.
func (b *Beam) expandRound(ctx context.Context, beam []*State, round int, rank RankFunc, inc *incumbent, budget *Budget) []rankedChild {
	perBranch := make([][]rankedChild, len(beam))

	expand := func(i int) {
		branch := beam[i]
		budget.RecordExpanded()
		choices := branch.Choices()
		out := make([]rankedChild, 0, len(choices))
		for j, m := range choices {
			child := branch.Clone()
			if err := child.Apply(m); err != nil {
				continue
			}
			if child.IsTerminal() {
				inc.offer(child, [3]int{round, i, j})
				continue
			}
			out = append(out, rankedChild{state: child, rank: rank(child)})
		}
		budget.RecordGenerated(len(out))
		perBranch[i] = out
	}

	if b.cfg.Parallel.Enabled && len(beam) > 1 {
		g, _ := errgroup.WithContext(ctx)
		g.SetLimit(max(1, b.cfg.Parallel.MaxConcurrency))
		for i := range beam {
			g.Go(func() error {
				expand(i)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range beam {
			expand(i)
		}
	}

	var all []rankedChild
	for _, cs := range perBranch {
		all = append(all, cs...)
	}
	return all
}
