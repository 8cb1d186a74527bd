// Package worker runs probe jobs on a bounded pool of goroutines. The pool
// is the only shared mutable resource between concurrent probes and is
// managed entirely here; callers need no external synchronization.
package worker

import (
	"context"
	"sync"

	"github.com/opswatchhq/engine/pkg/types"
)

// DefaultWorkerCount bounds concurrent probes per pool.
const DefaultWorkerCount = 5

// Prober performs a single bounded-timeout attempt against one target.
type Prober interface {
	Probe(ctx context.Context, target types.Target) types.ProbeResult
}

// Pool consumes jobs from a shared channel and fans them out to a fixed set
// of workers.
type Pool struct {
	jobs        <-chan Job
	prober      Prober
	workerCount int
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithWorkerCount overrides the worker bound.
func WithWorkerCount(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.workerCount = n
		}
	}
}

// NewPool builds a pool reading from jobs and probing via prober.
func NewPool(jobs <-chan Job, prober Prober, opts ...PoolOption) *Pool {
	p := &Pool{
		jobs:        jobs,
		prober:      prober,
		workerCount: DefaultWorkerCount,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.workerCount <= 0 {
		p.workerCount = 1
	}
	return p
}

// Start launches the workers and returns a WaitGroup that completes once the
// context is cancelled or the jobs channel closes.
func (p *Pool) Start(ctx context.Context) *sync.WaitGroup {
	var wg sync.WaitGroup
	for i := 0; i < p.workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.runWorker(ctx)
		}()
	}
	return &wg
}

func (p *Pool) runWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			p.handleJob(ctx, job)
		}
	}
}

func (p *Pool) handleJob(ctx context.Context, job Job) {
	// The reply channel is buffered by the cycle owner for its full target
	// set, so the send never blocks and no cycle is left partially
	// collected on shutdown.
	job.Results <- p.prober.Probe(ctx, job.Target)
}
