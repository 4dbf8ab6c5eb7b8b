// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/deck-engine/pkg/types"
)

func planOf(n int) types.Plan {
	p := types.Plan{}
	for i := 1; i <= n; i++ {
		p.Cards = append(p.Cards, types.PlannedCard{Number: i, Title: "card"})
	}
	return p
}

func TestSplit_ConcatIsIdentity(t *testing.T) {
	for cards := 0; cards <= 40; cards++ {
		for size := 1; size <= 15; size++ {
			p := planOf(cards)
			batches := Split(p, size)
			for _, b := range batches {
				assert.LessOrEqual(t, len(b.Cards), size)
				assert.NotEmpty(t, b.Cards)
			}
			got := Concat(batches)
			if cards == 0 {
				assert.Empty(t, got)
				continue
			}
			assert.Equal(t, p.Cards, got, "cards=%d size=%d", cards, size)
		}
	}
}

func TestSplit_Empty(t *testing.T) {
	assert.Nil(t, Split(types.Plan{}, 12))
}

func TestSplit_DefaultSize(t *testing.T) {
	batches := Split(planOf(30), 0)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0].Cards, 12)
	assert.Len(t, batches[1].Cards, 12)
	assert.Len(t, batches[2].Cards, 6)
	assert.Equal(t, 25, batches[2].Cards[0].Number)
}

func TestSplit_DoesNotAliasPlan(t *testing.T) {
	p := planOf(3)
	batches := Split(p, 2)
	batches[0].Cards[0].Title = "changed"
	assert.Equal(t, "card", p.Cards[0].Title)
}

func TestRun_AllBatches(t *testing.T) {
	var seen sync.Map
	errs := Run(context.Background(), 5, 3, func(_ context.Context, i int) error {
		seen.Store(i, true)
		if i == 2 {
			return errors.New("boom")
		}
		return nil
	})
	require.Len(t, errs, 5)
	for i := 0; i < 5; i++ {
		_, ok := seen.Load(i)
		assert.True(t, ok, "batch %d", i)
	}
	assert.EqualError(t, errs[2], "boom")
	assert.NoError(t, errs[0])
	assert.NoError(t, errs[4])
}

func TestRun_RespectsLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	Run(context.Background(), 10, 3, func(_ context.Context, _ int) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	})
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.GreaterOrEqual(t, peak.Load(), int32(1))
}

func TestRun_SequentialOrder(t *testing.T) {
	var order []int
	Run(context.Background(), 4, 1, func(_ context.Context, i int) error {
		order = append(order, i)
		return nil
	})
	assert.Equal(t, []int{0, 1, 2, 3}, order)
}

func TestRun_CancelStopsUnstartedBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var started []int
	errs := Run(ctx, 5, 1, func(ctx context.Context, i int) error {
		started = append(started, i)
		if i == 1 {
			cancel()
			return ctx.Err()
		}
		return nil
	})
	assert.Equal(t, []int{0, 1}, started)
	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[1], context.Canceled)
	for i := 2; i < 5; i++ {
		assert.ErrorIs(t, errs[i], ErrNotStarted, "batch %d", i)
	}
}

func TestRun_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	errs := Run(ctx, 3, 3, func(context.Context, int) error {
		calls++
		return nil
	})
	assert.Zero(t, calls)
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrNotStarted)
	}
}
