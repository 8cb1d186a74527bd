package types

import "time"

// Outcome classifies a single probe attempt, delivery attempt, or resource
// reading.
type Outcome string

const (
	// Probe outcomes.
	OutcomeOK              Outcome = "ok"
	OutcomeBadStatus       Outcome = "bad-status"
	OutcomeSlow            Outcome = "slow"
	OutcomeTimeout         Outcome = "timeout"
	OutcomeConnectionError Outcome = "connection-error"

	// Delivery attempt outcomes. Timeout and connection-error are shared
	// with probes.
	OutcomeSuccess     Outcome = "success"
	OutcomeServerError Outcome = "server-error"

	// Resource outcomes.
	OutcomeOverThreshold Outcome = "over-threshold"
)

// Target is a remote endpoint subject to periodic probing. The target set is
// fixed for the lifetime of a monitoring run.
type Target struct {
	URL     string        `json:"url" yaml:"url"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// ProbeResult is the outcome of one attempt against one target. StatusCode
// is zero when the attempt failed before a response arrived.
type ProbeResult struct {
	Target     string        `json:"target" yaml:"target"`
	Outcome    Outcome       `json:"outcome" yaml:"outcome"`
	StatusCode int           `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	Elapsed    time.Duration `json:"elapsed_ms" yaml:"elapsed_ms"`
	Detail     string        `json:"detail,omitempty" yaml:"detail,omitempty"`
	Timestamp  time.Time     `json:"ts" yaml:"ts"`
}

// Healthy reports whether the probe passed both the status and latency
// checks.
func (r ProbeResult) Healthy() bool {
	return r.Outcome == OutcomeOK
}

// RunSummary aggregates every ProbeResult of one scheduling cycle. Results
// are in completion order, not submission order.
type RunSummary struct {
	Total     int           `json:"total"`
	Healthy   int           `json:"healthy"`
	Results   []ProbeResult `json:"results"`
	StartedAt time.Time     `json:"started_at"`
}

// Summarize folds completed results into a RunSummary.
func Summarize(startedAt time.Time, results []ProbeResult) RunSummary {
	summary := RunSummary{
		Total:     len(results),
		Results:   results,
		StartedAt: startedAt,
	}
	for _, res := range results {
		if res.Healthy() {
			summary.Healthy++
		}
	}
	return summary
}
