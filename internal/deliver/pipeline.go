// Package deliver sends a payload to a destination as a sequence of upload
// units, each driven through the retry policy. Units are strictly
// sequential: chunk order must be preserved end-to-end, so concurrent
// multi-unit delivery is deliberately not offered.
package deliver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/opswatchhq/engine/internal/chunk"
	"github.com/opswatchhq/engine/internal/retry"
	"github.com/opswatchhq/engine/pkg/types"
)

// Destination is the transport consumed per unit. It reports the response
// status code, or a transport-level error when no response arrived.
type Destination interface {
	Send(ctx context.Context, runID string, unit types.UploadUnit) (status int, err error)
}

// AlertDispatcher receives one alert per terminally failed delivery.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, alert types.Alert) error
}

// Recorder counts delivery telemetry.
type Recorder interface {
	ObserveDelivery(units int, success bool)
}

// UnitReport pairs a unit with its final attempt record.
type UnitReport struct {
	Index int
	Name  string
	Size  int
	Final types.AttemptRecord
}

// Report describes one delivery run. On failure, Units holds the attempted
// prefix in sequence order and FailedUnit names the unit that stopped it.
type Report struct {
	RunID      string
	Source     string
	Success    bool
	Units      []UnitReport
	FailedUnit string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMaxUnitSize overrides the unit size limit (default 1 MiB).
func WithMaxUnitSize(size int) Option {
	return func(p *Pipeline) {
		if size > 0 {
			p.maxUnitSize = size
		}
	}
}

// WithRetryPolicy overrides the per-unit retry policy.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(p *Pipeline) {
		p.policy = policy
	}
}

// WithRate caps unit sends per second at the destination.
func WithRate(unitsPerSecond float64, burst int) Option {
	return func(p *Pipeline) {
		if unitsPerSecond > 0 {
			if burst <= 0 {
				burst = int(unitsPerSecond)
			}
			if burst <= 0 {
				burst = 1
			}
			p.limiter = rate.NewLimiter(rate.Limit(unitsPerSecond), burst)
		}
	}
}

// WithLogger attaches a logger for per-unit progress.
func WithLogger(logger *log.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithNow overrides the alert clock.
func WithNow(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// WithRunIDs overrides run ID generation, mainly for tests.
func WithRunIDs(gen func() string) Option {
	return func(p *Pipeline) {
		if gen != nil {
			p.newRunID = gen
		}
	}
}

// WithRecorder attaches a telemetry recorder.
func WithRecorder(rec Recorder) Option {
	return func(p *Pipeline) {
		if rec != nil {
			p.recorder = rec
		}
	}
}

// Pipeline delivers payloads to one destination.
type Pipeline struct {
	dest        Destination
	alerts      AlertDispatcher
	policy      retry.Policy
	maxUnitSize int
	limiter     *rate.Limiter
	logger      *log.Logger
	now         func() time.Time
	newRunID    func() string
	recorder    Recorder
}

// New validates the configuration and builds a Pipeline.
func New(dest Destination, alerts AlertDispatcher, opts ...Option) (*Pipeline, error) {
	if dest == nil {
		return nil, errors.New("deliver: destination is required")
	}
	if alerts == nil {
		return nil, errors.New("deliver: alert dispatcher is required")
	}
	p := &Pipeline{
		dest:        dest,
		alerts:      alerts,
		policy:      retry.Policy{},
		maxUnitSize: chunk.DefaultMaxUnitSize,
		logger:      log.New(io.Discard, "", 0),
		now:         time.Now,
		newRunID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Deliver plans the payload into units and sends them in sequence order,
// fail-fast: the first unit whose final attempt is not a success stops the
// run, emits one alert, and leaves the remaining units unattempted. The
// returned error is non-nil only for payload read failures or cancellation,
// never for an ordinary failed delivery.
func (p *Pipeline) Deliver(ctx context.Context, source string, payload io.Reader) (Report, error) {
	report := Report{
		RunID:  p.newRunID(),
		Source: source,
	}

	planner := chunk.NewPlanner(source, payload, p.maxUnitSize)
	for {
		unit, ok, err := planner.Next()
		if err != nil {
			return report, err
		}
		if !ok {
			break
		}

		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return report, err
			}
		}

		record, err := p.policy.Execute(ctx, func(ctx context.Context) (int, error) {
			return p.dest.Send(ctx, report.RunID, unit)
		})
		report.Units = append(report.Units, UnitReport{
			Index: unit.Index,
			Name:  unit.Name(),
			Size:  unit.Size,
			Final: record,
		})
		if err != nil {
			return report, err
		}

		if !record.Success() {
			report.FailedUnit = unit.Name()
			p.logger.Printf("delivery of %s stopped at %s: %s after %d attempts", source, unit.Name(), record.Outcome, record.Attempt)
			_ = p.alerts.Dispatch(ctx, p.failureAlert(source, unit, record))
			if p.recorder != nil {
				p.recorder.ObserveDelivery(len(report.Units), false)
			}
			return report, nil
		}
		p.logger.Printf("delivered %s (%d bytes) in %d attempt(s)", unit.Name(), unit.Size, record.Attempt)
	}

	report.Success = true
	if p.recorder != nil {
		p.recorder.ObserveDelivery(len(report.Units), true)
	}
	return report, nil
}

func (p *Pipeline) failureAlert(source string, unit types.UploadUnit, record types.AttemptRecord) types.Alert {
	body := fmt.Sprintf("delivery of %s stopped at %s: %s after %d attempts", source, unit.Name(), record.Outcome, record.Attempt)
	if record.StatusCode > 0 {
		body = fmt.Sprintf("%s (last status %d)", body, record.StatusCode)
	} else if record.Detail != "" {
		body = fmt.Sprintf("%s (%s)", body, record.Detail)
	}
	return types.Alert{
		Severity:  types.SeverityWarning,
		Subject:   fmt.Sprintf("delivery failed: %s", source),
		Body:      body,
		Source:    types.AlertSourceDelivery,
		Origin:    source,
		Timestamp: p.now().UTC(),
	}
}
