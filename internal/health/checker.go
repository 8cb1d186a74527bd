// Package health evaluates readiness conditions for the engine.
package health

import (
	"fmt"
	"sync"
	"time"
)

const defaultCycleStale = time.Minute

// Checker tracks probe cycle outcomes and answers readiness probes.
type Checker struct {
	staleAfter time.Duration

	mu               sync.RWMutex
	lastCycleSuccess time.Time
	cycleErr         string
	lastCycleError   time.Time
}

// NewChecker constructs a readiness checker. staleAfter bounds how old the
// last successful cycle may be before the engine reports not ready.
func NewChecker(staleAfter time.Duration) *Checker {
	if staleAfter <= 0 {
		staleAfter = defaultCycleStale
	}
	return &Checker{staleAfter: staleAfter}
}

// ObserveCycle records the outcome of one probe cycle.
func (c *Checker) ObserveCycle(ts time.Time, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.cycleErr = err.Error()
		c.lastCycleError = ts
		return
	}
	c.lastCycleSuccess = ts
	c.cycleErr = ""
	c.lastCycleError = time.Time{}
}

// Ready evaluates all readiness conditions and returns the overall status
// and the reasons for failure.
func (c *Checker) Ready(now time.Time) (bool, []string) {
	c.mu.RLock()
	lastSuccess := c.lastCycleSuccess
	cycleErr := c.cycleErr
	lastErr := c.lastCycleError
	staleAfter := c.staleAfter
	c.mu.RUnlock()

	reasons := make([]string, 0, 2)

	if lastSuccess.IsZero() {
		reasons = append(reasons, "no probe cycle completed yet")
	} else if now.Sub(lastSuccess) > staleAfter {
		reasons = append(reasons, fmt.Sprintf("probe cycle stale (%s)", now.Sub(lastSuccess).Round(time.Second)))
	}

	if cycleErr != "" && now.Sub(lastErr) <= staleAfter {
		reasons = append(reasons, fmt.Sprintf("probe cycle failing: %s", cycleErr))
	}

	if len(reasons) > 0 {
		return false, reasons
	}
	return true, nil
}
