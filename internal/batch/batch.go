// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package batch partitions an approved plan into production batches and
// issues one call per batch with bounded concurrency.
package batch

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/deck-engine/pkg/types"
)

// DefaultSize is the number of cards per production batch.
const DefaultSize = 12

// DefaultConcurrency is the number of batches in flight at once.
const DefaultConcurrency = 3

// ErrNotStarted marks a batch that was never issued because the context was
// done before its turn came.
var ErrNotStarted = errors.New("batch: not started")

// Split cuts plan into consecutive chunks of at most size cards, preserving
// order. A size below 1 means DefaultSize. An empty plan yields nil. Each
// chunk carries only cards; questions and comments stay with the plan.
func Split(plan types.Plan, size int) []types.Plan {
	if size < 1 {
		size = DefaultSize
	}
	cards := plan.Cards
	if len(cards) == 0 {
		return nil
	}

	out := make([]types.Plan, 0, (len(cards)+size-1)/size)
	for start := 0; start < len(cards); start += size {
		end := min(start+size, len(cards))
		chunk := make([]types.PlannedCard, end-start)
		copy(chunk, cards[start:end])
		out = append(out, types.Plan{Cards: chunk})
	}
	return out
}

// Run calls fn for batches 0..n-1 in order with at most limit calls in
// flight; a limit below 2 runs them sequentially. A failing batch never
// stops the others. Once ctx is done no further batch starts, and the slots
// of batches that never started hold ErrNotStarted. The returned slice has
// one entry per batch.
func Run(ctx context.Context, n, limit int, fn func(ctx context.Context, i int) error) []error {
	errs := make([]error, n)
	if limit < 1 {
		limit = 1
	}

	// The group's own context is not used: one batch failing must not
	// cancel its siblings.
	var g errgroup.Group
	g.SetLimit(limit)

	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			errs[i] = ErrNotStarted
			continue
		}
		g.Go(func() error {
			// The slot may have been acquired after cancellation.
			if ctx.Err() != nil {
				errs[i] = ErrNotStarted
				return nil
			}
			errs[i] = fn(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// Concat joins batches back into one card list.
func Concat(batches []types.Plan) []types.PlannedCard {
	var out []types.PlannedCard
	for _, b := range batches {
		out = append(out, b.Cards...)
	}
	return out
}
