// Package dispatch runs work for many sessions concurrently while keeping
// the work for any one session strictly sequential.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// ErrStopped is returned by Do once the pool has shut down.
var ErrStopped = errors.New("dispatch pool stopped")

// DefaultQueueSize is the per-shard buffer used when New is given zero.
const DefaultQueueSize = 64

type task struct {
	ctx  context.Context
	fn   func(context.Context) error
	done chan error
}

// Pool is a fixed set of shards, each drained by one goroutine. Jobs with
// the same key always land on the same shard.
type Pool struct {
	shards  []chan task
	logger  *slog.Logger
	stopped chan struct{}
}

// New creates a pool with n shards. Call Run to start it.
func New(n, queue int, logger *slog.Logger) *Pool {
	if n < 1 {
		n = 1
	}
	if queue < 1 {
		queue = DefaultQueueSize
	}
	p := &Pool{
		shards:  make([]chan task, n),
		logger:  logger,
		stopped: make(chan struct{}),
	}
	for i := range p.shards {
		p.shards[i] = make(chan task, queue)
	}
	return p
}

// Size returns the number of shards.
func (p *Pool) Size() int { return len(p.shards) }

// Shard returns the shard index for key (FNV-1a).
func (p *Pool) Shard(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(p.shards)))
}

// Run drains the shards until ctx is cancelled. Jobs still queued at that
// point fail with ErrStopped.
func (p *Pool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i, ch := range p.shards {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case t := <-ch:
					t.done <- p.exec(i, t)
				}
			}
		})
	}
	err := g.Wait()
	close(p.stopped)
	for _, ch := range p.shards {
	drain:
		for {
			select {
			case t := <-ch:
				t.done <- ErrStopped
			default:
				break drain
			}
		}
	}
	return err
}

func (p *Pool) exec(shard int, t task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch: job panicked: %v", r)
			p.logger.Error("job panicked", "shard", shard, "panic", r)
		}
	}()
	if err := t.ctx.Err(); err != nil {
		return err
	}
	return t.fn(t.ctx)
}

// Do queues fn on the shard for key and waits for it to finish.
func (p *Pool) Do(ctx context.Context, key string, fn func(context.Context) error) error {
	select {
	case <-p.stopped:
		return ErrStopped
	default:
	}

	t := task{ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case p.shards[p.Shard(key)] <- t:
	case <-p.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-t.done:
		return err
	case <-p.stopped:
		select {
		case err := <-t.done:
			return err
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}
