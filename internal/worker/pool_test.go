package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_DeliversEveryResult(t *testing.T) {
	p := NewPool(PoolConfig{Concurrency: 4})
	got := make(map[int]int)

	err := Run(context.Background(), p, 50, func(_ context.Context, i int) int {
		return i * i
	}, func(i, r int) {
		got[i] = r
	})
	require.NoError(t, err)
	require.Len(t, got, 50)
	for i := 0; i < 50; i++ {
		assert.Equal(t, i*i, got[i])
	}
}

func TestRun_BoundsConcurrency(t *testing.T) {
	p := NewPool(PoolConfig{Concurrency: 3})
	var inFlight, peak atomic.Int32

	err := Run(context.Background(), p, 20, func(_ context.Context, _ int) struct{} {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return struct{}{}
	}, func(int, struct{}) {})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestRun_CancelledContextKeepsPartialResults(t *testing.T) {
	p := NewPool(PoolConfig{Concurrency: 1})
	ctx, cancel := context.WithCancel(context.Background())
	delivered := 0

	err := Run(ctx, p, 10, func(_ context.Context, i int) int {
		if i == 2 {
			cancel()
		}
		return i
	}, func(int, int) {
		delivered++
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.GreaterOrEqual(t, delivered, 3)
	assert.Less(t, delivered, 10)
}

func TestNewPool_Defaults(t *testing.T) {
	p := NewPool(PoolConfig{})
	assert.Equal(t, 1, p.Concurrency())
	assert.Nil(t, p.limiter)

	limited := NewPool(PoolConfig{Concurrency: 2, RatePerSecond: 5})
	assert.NotNil(t, limited.limiter)
	assert.Equal(t, 1, limited.limiter.Burst())
}
