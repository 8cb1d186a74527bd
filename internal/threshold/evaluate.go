// Package threshold classifies raw measurements as healthy or alerting. All
// functions are pure: no I/O, no clock reads, invalid input is representable
// rather than fatal.
package threshold

import (
	"fmt"
	"time"

	"github.com/opswatchhq/engine/pkg/types"
)

// DefaultResourcePercent is the usage percentage above which a resource
// reading alerts.
const DefaultResourcePercent = 80.0

// Evaluate classifies one probe measurement. A probe is healthy iff the
// status code is in the 2xx range and the elapsed time does not exceed the
// target's timeout.
func Evaluate(status int, elapsed, timeout time.Duration) types.Outcome {
	statusOK := status >= 200 && status < 300
	withinTime := elapsed <= timeout
	switch {
	case statusOK && withinTime:
		return types.OutcomeOK
	case statusOK:
		return types.OutcomeSlow
	default:
		return types.OutcomeBadStatus
	}
}

// EvaluateResource classifies a CPU or memory usage percentage. A
// non-positive threshold falls back to DefaultResourcePercent.
func EvaluateResource(value, thresholdPercent float64) types.Outcome {
	if thresholdPercent <= 0 {
		thresholdPercent = DefaultResourcePercent
	}
	if value <= thresholdPercent {
		return types.OutcomeOK
	}
	return types.OutcomeOverThreshold
}

// AlertFor builds the single alert owed for a non-healthy probe result. It
// returns false for healthy results.
func AlertFor(result types.ProbeResult) (types.Alert, bool) {
	if result.Healthy() {
		return types.Alert{}, false
	}

	var body string
	switch result.Outcome {
	case types.OutcomeTimeout:
		body = fmt.Sprintf("probe of %s timed out after %s", result.Target, result.Elapsed.Round(time.Millisecond))
	case types.OutcomeConnectionError:
		body = fmt.Sprintf("probe of %s failed: %s", result.Target, result.Detail)
	case types.OutcomeSlow:
		body = fmt.Sprintf("probe of %s answered %d but took %s", result.Target, result.StatusCode, result.Elapsed.Round(time.Millisecond))
	default:
		body = fmt.Sprintf("probe of %s returned status %d in %s", result.Target, result.StatusCode, result.Elapsed.Round(time.Millisecond))
	}

	return types.Alert{
		Severity:  types.SeverityWarning,
		Subject:   fmt.Sprintf("probe %s: %s", result.Outcome, result.Target),
		Body:      body,
		Source:    types.AlertSourceProbe,
		Origin:    result.Target,
		Timestamp: result.Timestamp,
	}, true
}
