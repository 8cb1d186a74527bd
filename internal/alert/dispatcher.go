// Package alert forwards classified failures to a notification sink.
package alert

import (
	"context"
	"errors"
	"io"
	"log"

	"github.com/opswatchhq/engine/pkg/types"
)

// Sink is the external notification collaborator (email, SMS, chat, ...).
// Delivery is best-effort; the sink's own idempotence is not this package's
// concern.
type Sink interface {
	Notify(ctx context.Context, subject, body string) error
}

// Recorder counts dispatch outcomes for telemetry.
type Recorder interface {
	IncAlertsDispatched()
	IncSinkFailures()
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger attaches a logger for sink failures.
func WithLogger(logger *log.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithRecorder attaches a telemetry recorder.
func WithRecorder(rec Recorder) Option {
	return func(d *Dispatcher) {
		if rec != nil {
			d.recorder = rec
		}
	}
}

// Dispatcher hands alerts to the configured sink, at least once per alert.
// There is no deduplication or suppression window.
type Dispatcher struct {
	sink     Sink
	logger   *log.Logger
	recorder Recorder
}

// NewDispatcher builds a Dispatcher. A nil sink is a construction error and
// is surfaced before any work starts.
func NewDispatcher(sink Sink, opts ...Option) (*Dispatcher, error) {
	if sink == nil {
		return nil, errors.New("alert: sink is required")
	}
	d := &Dispatcher{
		sink:   sink,
		logger: log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dispatch forwards one alert to the sink. Sink failures are logged and
// returned, never retried here.
func (d *Dispatcher) Dispatch(ctx context.Context, alert types.Alert) error {
	if d.recorder != nil {
		d.recorder.IncAlertsDispatched()
	}
	if err := d.sink.Notify(ctx, alert.Subject, alert.Body); err != nil {
		if d.recorder != nil {
			d.recorder.IncSinkFailures()
		}
		d.logger.Printf("alert sink failed (source=%s origin=%s): %v", alert.Source, alert.Origin, err)
		return err
	}
	return nil
}
