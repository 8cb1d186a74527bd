// Package retry drives an operation against a remote destination with a
// bounded attempt count and a fixed inter-attempt delay.
package retry

import (
	"context"
	"errors"
	"net"
	"net/url"
	"time"

	"github.com/opswatchhq/engine/pkg/types"
)

const (
	DefaultMaxAttempts = 3
	DefaultDelay       = 2 * time.Second
)

// ErrNilOperation is returned when Execute is handed a nil operation. It is
// the only programming error the driver surfaces; ordinary failures are data.
var ErrNilOperation = errors.New("retry: nil operation")

// Operation performs one attempt and reports the response status code, or a
// transport-level error when no response arrived.
type Operation func(ctx context.Context) (status int, err error)

// Policy governs how many attempts are made and the pause between them. The
// delay is deliberately fixed rather than exponential.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.Delay <= 0 {
		p.Delay = DefaultDelay
	}
	return p
}

// Execute calls op up to MaxAttempts times, stopping on the first success.
// It always returns the last AttemptRecord; the error is non-nil only for a
// nil operation or a cancelled context, never for an ordinary failed attempt.
func (p Policy) Execute(ctx context.Context, op Operation) (types.AttemptRecord, error) {
	if op == nil {
		return types.AttemptRecord{}, ErrNilOperation
	}
	p = p.normalized()

	var record types.AttemptRecord
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		status, err := op(ctx)
		record = classify(attempt, status, err)
		if record.Success() {
			return record, nil
		}
		if attempt == p.MaxAttempts {
			break
		}
		if err := sleep(ctx, p.Delay); err != nil {
			return record, err
		}
	}
	return record, nil
}

// classify maps one attempt outcome onto the failure taxonomy: transport
// timeouts and connection errors are kept distinct from application-level
// non-2xx responses so callers can report which failure mode finally won.
func classify(attempt, status int, err error) types.AttemptRecord {
	record := types.AttemptRecord{Attempt: attempt}
	if err != nil {
		record.Detail = err.Error()
		if isTimeout(err) {
			record.Outcome = types.OutcomeTimeout
		} else {
			record.Outcome = types.OutcomeConnectionError
		}
		return record
	}
	record.StatusCode = status
	if status >= 200 && status < 300 {
		record.Outcome = types.OutcomeSuccess
	} else {
		record.Outcome = types.OutcomeServerError
	}
	return record
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
