// Package probe performs single bounded-timeout health attempts against
// remote targets. A probe never retries; retry belongs to callers wrapping a
// whole cycle.
package probe

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/opswatchhq/engine/internal/threshold"
	"github.com/opswatchhq/engine/pkg/types"
)

// DefaultTimeout bounds a probe whose target does not set its own timeout.
const DefaultTimeout = 5 * time.Second

const userAgent = "opswatch-engine/0.1.0"

// Option configures an HTTPProber.
type Option func(*HTTPProber)

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(client *http.Client) Option {
	return func(p *HTTPProber) {
		if client != nil {
			p.client = client
		}
	}
}

// WithNow overrides the clock used for result timestamps.
func WithNow(now func() time.Time) Option {
	return func(p *HTTPProber) {
		if now != nil {
			p.now = now
		}
	}
}

// HTTPProber issues one GET per probe, bounded by the target timeout, and
// classifies the response through the threshold evaluator.
type HTTPProber struct {
	client *http.Client
	now    func() time.Time
}

// NewHTTPProber builds a prober with a shared transport.
func NewHTTPProber(opts ...Option) *HTTPProber {
	p := &HTTPProber{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				ForceAttemptHTTP2:   true,
				MaxIdleConnsPerHost: 10,
			},
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe runs exactly one attempt against the target. Transport failures are
// recorded as failing results, never returned as errors.
func (p *HTTPProber) Probe(ctx context.Context, target types.Target) types.ProbeResult {
	timeout := target.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	result := types.ProbeResult{
		Target:    target.URL,
		Timestamp: p.now().UTC(),
	}

	// An in-flight attempt runs to its own timeout even when the caller is
	// shutting down, so no probe is left in an ambiguous state.
	attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, target.URL, nil)
	if err != nil {
		result.Outcome = types.OutcomeConnectionError
		result.Detail = err.Error()
		return result
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := p.client.Do(req)
	result.Elapsed = time.Since(start)
	if err != nil {
		result.Outcome = transportOutcome(err)
		result.Detail = err.Error()
		return result
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	result.StatusCode = resp.StatusCode
	result.Outcome = threshold.Evaluate(resp.StatusCode, result.Elapsed, timeout)
	return result
}

func transportOutcome(err error) types.Outcome {
	if errors.Is(err, context.DeadlineExceeded) {
		return types.OutcomeTimeout
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return types.OutcomeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return types.OutcomeTimeout
	}
	return types.OutcomeConnectionError
}
