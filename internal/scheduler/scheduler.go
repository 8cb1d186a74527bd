// Package scheduler runs probe cycles: it dispatches one probe per target to
// the worker pool, blocks until every result arrives, and folds them into a
// run summary. The periodic trigger driving cycles lives outside the engine.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/opswatchhq/engine/internal/threshold"
	"github.com/opswatchhq/engine/internal/worker"
	"github.com/opswatchhq/engine/pkg/types"
)

// AlertDispatcher receives one alert per non-healthy probe result.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, alert types.Alert) error
}

// SummarySink observes the summary of each completed cycle.
type SummarySink interface {
	Record(summary types.RunSummary)
}

// CycleRecorder counts cycle telemetry.
type CycleRecorder interface {
	ObserveCycle(total, healthy int)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger attaches a logger for per-result and summary lines.
func WithLogger(logger *log.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNow overrides the cycle clock.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSummarySink attaches a sink observing completed summaries.
func WithSummarySink(sink SummarySink) Option {
	return func(s *Scheduler) {
		if sink != nil {
			s.summaries = sink
		}
	}
}

// WithRecorder attaches a telemetry recorder.
func WithRecorder(rec CycleRecorder) Option {
	return func(s *Scheduler) {
		if rec != nil {
			s.recorder = rec
		}
	}
}

// Scheduler owns a fixed target set for the lifetime of a monitoring run.
type Scheduler struct {
	targets   []types.Target
	jobs      chan<- worker.Job
	alerts    AlertDispatcher
	logger    *log.Logger
	now       func() time.Time
	summaries SummarySink
	recorder  CycleRecorder
}

// New validates the configuration and builds a Scheduler. An empty target
// set or a missing dispatcher is fatal before any work starts.
func New(targets []types.Target, jobs chan<- worker.Job, alerts AlertDispatcher, opts ...Option) (*Scheduler, error) {
	if len(targets) == 0 {
		return nil, errors.New("scheduler: at least one target is required")
	}
	if alerts == nil {
		return nil, errors.New("scheduler: alert dispatcher is required")
	}
	if jobs == nil {
		return nil, errors.New("scheduler: jobs channel is required")
	}
	s := &Scheduler{
		targets: append([]types.Target(nil), targets...),
		jobs:    jobs,
		alerts:  alerts,
		logger:  log.New(io.Discard, "", 0),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RunCycle performs one complete round: dispatch every target, collect every
// result in completion order, summarize, and alert on each failure. A probe
// failing is a failing result, never a cycle fault; only the inability to
// dispatch a job at all fails the cycle.
func (s *Scheduler) RunCycle(ctx context.Context) (types.RunSummary, error) {
	startedAt := s.now().UTC()
	results := make(chan types.ProbeResult, len(s.targets))

	dispatched := 0
	var dispatchErr error
	for _, target := range s.targets {
		select {
		case s.jobs <- worker.Job{Target: target, Results: results}:
			dispatched++
		case <-ctx.Done():
			dispatchErr = fmt.Errorf("dispatch probe for %s: %w", target.URL, ctx.Err())
		}
		if dispatchErr != nil {
			break
		}
	}

	// Collect everything that was dispatched, even on a failed dispatch, so
	// no probe result is orphaned. Each probe is bounded by its target
	// timeout, so this wait is bounded too.
	collected := make([]types.ProbeResult, 0, dispatched)
	for i := 0; i < dispatched; i++ {
		collected = append(collected, <-results)
	}

	if dispatchErr != nil {
		return types.RunSummary{}, dispatchErr
	}

	summary := types.Summarize(startedAt, collected)
	for _, res := range collected {
		s.logResult(res)
		if a, failing := threshold.AlertFor(res); failing {
			// Sink failures are logged by the dispatcher, not escalated;
			// the cycle still owes alerts for the remaining results.
			_ = s.alerts.Dispatch(ctx, a)
		}
	}
	s.logger.Printf("cycle summary: %d/%d targets healthy", summary.Healthy, summary.Total)

	if s.summaries != nil {
		s.summaries.Record(summary)
	}
	if s.recorder != nil {
		s.recorder.ObserveCycle(summary.Total, summary.Healthy)
	}
	return summary, nil
}

// Targets returns the configured target set.
func (s *Scheduler) Targets() []types.Target {
	out := make([]types.Target, len(s.targets))
	copy(out, s.targets)
	return out
}

func (s *Scheduler) logResult(res types.ProbeResult) {
	if res.Healthy() {
		s.logger.Printf("probe ok: %s status=%d elapsed=%s", res.Target, res.StatusCode, res.Elapsed.Round(time.Millisecond))
		return
	}
	if res.StatusCode > 0 {
		s.logger.Printf("probe %s: %s status=%d elapsed=%s", res.Outcome, res.Target, res.StatusCode, res.Elapsed.Round(time.Millisecond))
		return
	}
	s.logger.Printf("probe %s: %s (%s)", res.Outcome, res.Target, res.Detail)
}
