// Package runtime wires the probing components into one assembly: the jobs
// channel, the worker pool, the scheduler, and the summary history. Commands
// own the cycle cadence; the runtime owns the plumbing between cycles.
package runtime

import (
	"context"
	"time"

	"github.com/opswatchhq/engine/internal/metrics"
	"github.com/opswatchhq/engine/internal/probe"
	"github.com/opswatchhq/engine/internal/scheduler"
	"github.com/opswatchhq/engine/internal/summary"
	"github.com/opswatchhq/engine/internal/worker"
	"github.com/opswatchhq/engine/pkg/types"
)

type Option func(*config)

type config struct {
	jobBuffer     int
	prober        worker.Prober
	schedulerOpts []scheduler.Option
	workerOpts    []worker.PoolOption
	metricsStore  *metrics.Store
}

func WithJobBuffer(size int) Option {
	return func(c *config) {
		if size > 0 {
			c.jobBuffer = size
		}
	}
}

func WithProber(p worker.Prober) Option {
	return func(c *config) {
		if p != nil {
			c.prober = p
		}
	}
}

func WithSchedulerOptions(opts ...scheduler.Option) Option {
	return func(c *config) {
		c.schedulerOpts = append(c.schedulerOpts, opts...)
	}
}

func WithWorkerOptions(opts ...worker.PoolOption) Option {
	return func(c *config) {
		c.workerOpts = append(c.workerOpts, opts...)
	}
}

func WithMetricsStore(store *metrics.Store) Option {
	return func(c *config) {
		c.metricsStore = store
	}
}

func WithNow(now func() time.Time) Option {
	return WithSchedulerOptions(scheduler.WithNow(now))
}

// Runtime holds the assembled probing components for one monitoring run.
type Runtime struct {
	jobs      chan worker.Job
	pool      *worker.Pool
	scheduler *scheduler.Scheduler
	summaries *summary.Store
}

// New assembles a runtime for a fixed target set. The dispatcher receives
// one alert per failing probe result.
func New(targets []types.Target, alerts scheduler.AlertDispatcher, opts ...Option) (*Runtime, error) {
	cfg := config{
		jobBuffer: 64,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.prober == nil {
		cfg.prober = probe.NewHTTPProber()
	}

	jobs := make(chan worker.Job, cfg.jobBuffer)
	pool := worker.NewPool(jobs, cfg.prober, cfg.workerOpts...)
	summaries := summary.NewStore()

	schedOpts := append([]scheduler.Option(nil), cfg.schedulerOpts...)
	schedOpts = append(schedOpts, scheduler.WithSummarySink(summaries))
	if cfg.metricsStore != nil {
		schedOpts = append(schedOpts, scheduler.WithRecorder(cfg.metricsStore))
	}

	sched, err := scheduler.New(targets, jobs, alerts, schedOpts...)
	if err != nil {
		return nil, err
	}

	return &Runtime{
		jobs:      jobs,
		pool:      pool,
		scheduler: sched,
		summaries: summaries,
	}, nil
}

// Start launches the worker pool and returns a wait function that blocks
// until every worker has exited.
func (r *Runtime) Start(ctx context.Context) func() {
	workerWG := r.pool.Start(ctx)
	return func() {
		workerWG.Wait()
	}
}

// RunCycle executes one probe cycle across the full target set.
func (r *Runtime) RunCycle(ctx context.Context) (types.RunSummary, error) {
	return r.scheduler.RunCycle(ctx)
}

// Summaries exposes the cycle history store.
func (r *Runtime) Summaries() *summary.Store {
	return r.summaries
}

// Targets returns the target set the runtime was assembled with.
func (r *Runtime) Targets() []types.Target {
	return r.scheduler.Targets()
}
