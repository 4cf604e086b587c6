package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunBoundedCeiling(t *testing.T) {
	items := make([]int, 100)
	for i := range items {
		items[i] = i
	}
	for _, k := range []int{1, 4, 16} {
		var live, peak atomic.Int64
		err := RunBounded(context.Background(), items, k, func(context.Context, int) error {
			n := live.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			live.Add(-1)
			return nil
		})
		require.NoError(t, err)
		assert.LessOrEqual(t, peak.Load(), int64(k), "parallelism ceiling exceeded for k=%d", k)
	}
}

func TestRunBoundedRunsEveryItem(t *testing.T) {
	var sum atomic.Int64
	items := []int64{1, 2, 3, 4, 5}
	require.NoError(t, RunBounded(context.Background(), items, 0, func(_ context.Context, v int64) error {
		sum.Add(v)
		return nil
	}))
	assert.Equal(t, int64(15), sum.Load())
}

func TestRunBoundedJoinsErrors(t *testing.T) {
	errOdd := errors.New("odd")
	err := RunBounded(context.Background(), []int{1, 2, 3}, 2, func(_ context.Context, v int) error {
		if v%2 == 1 {
			return errOdd
		}
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errOdd)
}

func TestRunBoundedStopsSubmittingOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var started atomic.Int64
	items := make([]int, 50)
	err := RunBounded(ctx, items, 1, func(context.Context, int) error {
		if started.Add(1) == 3 {
			cancel()
		}
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, started.Load(), int64(50))
}
