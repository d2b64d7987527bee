// Package worker runs blocking calls on a bounded set of goroutines so request
// handlers only ever wait at a single point.
package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"github.com/bryan-buckman/todod/internal/errs"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// Pool bounds how many blocking tasks run at once.
type Pool struct {
	sem      *semaphore.Weighted
	size     int
	inFlight atomic.Int64
	log      zerolog.Logger
}

// New creates a pool running at most size tasks concurrently. size < 1 means 1.
func New(size int, log zerolog.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		sem:  semaphore.NewWeighted(int64(size)),
		size: size,
		log:  log.With().Str("component", "worker").Logger(),
	}
}

// Size returns the concurrency bound.
func (p *Pool) Size() int { return p.size }

// InFlight returns the number of tasks currently running.
func (p *Pool) InFlight() int64 { return p.inFlight.Load() }

type result[T any] struct {
	val T
	err error
}

// Do dispatches fn and waits for it.
//
// Waiting for a free slot honours ctx. Once dispatched, fn runs to completion
// with a context that is never cancelled; if ctx ends first the result is
// discarded and a KindBlockingTask error is returned. A panic in fn is also
// reported as KindBlockingTask. Errors returned by fn pass through unchanged.
func Do[T any](ctx context.Context, p *Pool, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return zero, errs.E(op, errs.KindBlockingTask, fmt.Errorf("waiting for worker: %w", err))
	}

	done := make(chan result[T], 1)
	taskCtx := context.WithoutCancel(ctx)
	p.inFlight.Add(1)
	go func() {
		defer func() {
			p.inFlight.Add(-1)
			p.sem.Release(1)
		}()
		defer func() {
			if r := recover(); r != nil {
				p.log.Error().
					Str("op", op).
					Interface("panic", r).
					Bytes("stack", debug.Stack()).
					Msg("blocking task panicked")
				done <- result[T]{err: errs.E(op, errs.KindBlockingTask, fmt.Errorf("task panicked: %v", r))}
			}
		}()
		v, err := fn(taskCtx)
		done <- result[T]{val: v, err: err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		p.log.Debug().Str("op", op).Err(ctx.Err()).Msg("caller gone, discarding task result")
		return zero, errs.E(op, errs.KindBlockingTask, fmt.Errorf("caller gone: %w", ctx.Err()))
	}
}
