package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/lessonloop/internal/observability"
)

func startPool(t *testing.T, n int) *Pool {
	t.Helper()
	p := New(n, 0, observability.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return p
}

func TestShard_Stable(t *testing.T) {
	p := New(8, 0, observability.Discard())
	for _, key := range []string{"a", "session-42", ""} {
		first := p.Shard(key)
		assert.GreaterOrEqual(t, first, 0)
		assert.Less(t, first, 8)
		for range 10 {
			assert.Equal(t, first, p.Shard(key))
		}
	}
}

func TestDo_SameKeySequential(t *testing.T) {
	p := startPool(t, 4)

	var (
		running atomic.Int32
		overlap atomic.Bool
		mu      sync.Mutex
		order   []int
		wg      sync.WaitGroup
	)
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := p.Do(context.Background(), "same-session", func(context.Context) error {
				if running.Add(1) > 1 {
					overlap.Store(true)
				}
				time.Sleep(time.Millisecond)
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				running.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.False(t, overlap.Load(), "jobs for one key ran concurrently")
	assert.Len(t, order, 20)
}

func TestDo_DifferentKeysConcurrent(t *testing.T) {
	p := startPool(t, 8)

	// Find two keys on different shards.
	a, b := "k0", ""
	for i := 1; b == ""; i++ {
		if k := fmt.Sprintf("k%d", i); p.Shard(k) != p.Shard(a) {
			b = k
		}
	}

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = p.Do(context.Background(), a, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	err := p.Do(context.Background(), b, func(context.Context) error { return nil })
	close(release)
	require.NoError(t, err, "a blocked shard must not hold up other shards")
}

func TestDo_ReturnsJobError(t *testing.T) {
	p := startPool(t, 2)
	boom := errors.New("boom")
	assert.ErrorIs(t, p.Do(context.Background(), "x", func(context.Context) error { return boom }), boom)
}

func TestDo_RecoversPanic(t *testing.T) {
	p := startPool(t, 1)
	err := p.Do(context.Background(), "x", func(context.Context) error { panic("bad") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")

	// The shard survives.
	assert.NoError(t, p.Do(context.Background(), "x", func(context.Context) error { return nil }))
}

func TestDo_AfterStop(t *testing.T) {
	p := New(1, 0, observability.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	cancel()
	require.NoError(t, <-done)

	assert.ErrorIs(t, p.Do(context.Background(), "x", func(context.Context) error { return nil }), ErrStopped)
}

func TestDo_CallerContextCancelled(t *testing.T) {
	p := startPool(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Do(ctx, "x", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
