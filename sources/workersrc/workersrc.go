// Package workersrc is an out-of-scope (per spec.md §1) source adapter: a
// worker-pool built on github.com/joeycumines/go-microbatch, which groups
// submissions into batches for a shared processor. Each Submit call returns
// a *deferred.Node settled from the submission's JobResult.
package workersrc

import (
	"context"

	microbatch "github.com/joeycumines/go-microbatch"
	"github.com/tinwire/deferred/deferred"
)

// Pool wraps a microbatch.Batcher[Job], adapting its per-job JobResult into
// the deferred engine.
type Pool[Job any] struct {
	batcher *microbatch.Batcher[Job]
}

// Config is re-exported so callers configuring a Pool don't need to import
// go-microbatch directly.
type Config = microbatch.BatcherConfig

// Processor is re-exported for the same reason.
type Processor[Job any] = microbatch.BatchProcessor[Job]

// NewPool builds a worker pool that batches submitted jobs and hands each
// batch to processor.
func NewPool[Job any](cfg *Config, processor Processor[Job]) *Pool[Job] {
	return &Pool[Job]{batcher: microbatch.NewBatcher(cfg, processor)}
}

// Close shuts the pool down, waiting for in-flight batches to finish.
func (pool *Pool[Job]) Close() error { return pool.batcher.Close() }

type submitProducer[Job any] struct {
	ctx    context.Context
	cancel context.CancelFunc
	pool   *Pool[Job]
	job    Job
}

func (p *submitProducer[Job]) Start(settle deferred.Settle) error {
	ctx, cancel := context.WithCancel(p.ctx)
	p.cancel = cancel
	result, err := p.pool.batcher.Submit(ctx, p.job)
	if err != nil {
		cancel()
		return err
	}
	deferred.CurrentLoop().RegisterWait(func() (deferred.Result, error) {
		waitErr := result.Wait(ctx)
		return result.Job, waitErr
	}, func(v deferred.Result, err error) {
		if err != nil {
			settle.Reject(err)
			return
		}
		settle.Fulfil(v)
	})
	return nil
}

func (p *submitProducer[Job]) Abort() {
	if p.cancel != nil {
		p.cancel()
	}
}

// Submit enqueues job on the pool, returning a deferred bound to the
// barrier currently active on the calling goroutine.
func (pool *Pool[Job]) Submit(ctx context.Context, job Job) *deferred.Node {
	return deferred.New(&submitProducer[Job]{ctx: ctx, pool: pool, job: job})
}
