package main

import (
	"context"
	"sync/atomic"
)

// pool runs message handling on worker goroutines. A worker which finishes
// its work waits for more while the pool has room for idle workers and exits
// otherwise, so bursts start new goroutines and quiet periods release them.
type pool struct {
	// idle holds the inboxes of workers waiting for work.
	idle chan chan func(context.Context)
	// started is the number of workers ever started.
	started atomic.Int64
}

// newPool creates a pool that keeps up to n idle workers.
func newPool(n int) *pool {
	return &pool{idle: make(chan chan func(context.Context), max(n, 1))}
}

// run hands work to an idle worker, or to a new one if none is idle.
func (p *pool) run(ctx context.Context, work func(context.Context)) {
	var inbox chan func(context.Context)
	select {
	case inbox = <-p.idle:
	default:
		inbox = make(chan func(context.Context), 1)
		p.started.Add(1)
		go p.work(ctx, inbox)
	}
	select {
	case <-ctx.Done():
	case inbox <- work:
	}
}

// work runs works sent to inbox until ctx is done or the pool is full.
func (p *pool) work(ctx context.Context, inbox chan func(context.Context)) {
	for {
		select {
		case <-ctx.Done():
			return
		case w := <-inbox:
			w(ctx)
			select {
			case p.idle <- inbox:
			default:
				return
			}
		}
	}
}

// enqueue runs work off the caller's goroutine.
func (robo *Robot) enqueue(ctx context.Context, work func(context.Context)) {
	robo.pool.run(ctx, work)
}
