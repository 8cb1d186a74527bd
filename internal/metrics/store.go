// Package metrics maintains in-memory counters and gauges for engine
// telemetry and renders them in the Prometheus text format.
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
)

// Store maintains the engine's counters. All methods are safe for
// concurrent use.
type Store struct {
	cyclesTotal      atomic.Uint64
	probesTotal      atomic.Uint64
	probesUnhealthy  atomic.Uint64
	lastCycleTotal   atomic.Int64
	lastCycleHealthy atomic.Int64

	alertsDispatched atomic.Uint64
	sinkFailures     atomic.Uint64

	deliveriesTotal  atomic.Uint64
	deliveriesFailed atomic.Uint64
	unitsAttempted   atomic.Uint64
}

// NewStore constructs a Store with zeroed metrics.
func NewStore() *Store {
	return &Store{}
}

// Snapshot captures the current metric values in a plain struct.
type Snapshot struct {
	CyclesTotal      uint64
	ProbesTotal      uint64
	ProbesUnhealthy  uint64
	LastCycleTotal   int64
	LastCycleHealthy int64
	AlertsDispatched uint64
	SinkFailures     uint64
	DeliveriesTotal  uint64
	DeliveriesFailed uint64
	UnitsAttempted   uint64
}

// Snapshot returns a point-in-time copy of the metrics.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		CyclesTotal:      s.cyclesTotal.Load(),
		ProbesTotal:      s.probesTotal.Load(),
		ProbesUnhealthy:  s.probesUnhealthy.Load(),
		LastCycleTotal:   s.lastCycleTotal.Load(),
		LastCycleHealthy: s.lastCycleHealthy.Load(),
		AlertsDispatched: s.alertsDispatched.Load(),
		SinkFailures:     s.sinkFailures.Load(),
		DeliveriesTotal:  s.deliveriesTotal.Load(),
		DeliveriesFailed: s.deliveriesFailed.Load(),
		UnitsAttempted:   s.unitsAttempted.Load(),
	}
}

// ObserveCycle implements the scheduler's CycleRecorder.
func (s *Store) ObserveCycle(total, healthy int) {
	s.cyclesTotal.Add(1)
	s.probesTotal.Add(uint64(total))
	if unhealthy := total - healthy; unhealthy > 0 {
		s.probesUnhealthy.Add(uint64(unhealthy))
	}
	s.lastCycleTotal.Store(int64(total))
	s.lastCycleHealthy.Store(int64(healthy))
}

// IncAlertsDispatched implements the dispatcher's Recorder.
func (s *Store) IncAlertsDispatched() {
	s.alertsDispatched.Add(1)
}

// IncSinkFailures implements the dispatcher's Recorder.
func (s *Store) IncSinkFailures() {
	s.sinkFailures.Add(1)
}

// ObserveDelivery implements the pipeline's Recorder.
func (s *Store) ObserveDelivery(units int, success bool) {
	s.deliveriesTotal.Add(1)
	if units > 0 {
		s.unitsAttempted.Add(uint64(units))
	}
	if !success {
		s.deliveriesFailed.Add(1)
	}
}

// WritePrometheus renders the current metrics using the Prometheus text format.
func (s *Store) WritePrometheus(w io.Writer) error {
	snap := s.Snapshot()
	lines := []string{
		"# HELP opswatch_cycles_total Total completed probe cycles.",
		"# TYPE opswatch_cycles_total counter",
		fmt.Sprintf("opswatch_cycles_total %d", snap.CyclesTotal),
		"# HELP opswatch_probes_total Total probes attempted across all cycles.",
		"# TYPE opswatch_probes_total counter",
		fmt.Sprintf("opswatch_probes_total %d", snap.ProbesTotal),
		"# HELP opswatch_probes_unhealthy_total Total probes classified as non-healthy.",
		"# TYPE opswatch_probes_unhealthy_total counter",
		fmt.Sprintf("opswatch_probes_unhealthy_total %d", snap.ProbesUnhealthy),
		"# HELP opswatch_last_cycle_targets Number of targets in the most recent cycle.",
		"# TYPE opswatch_last_cycle_targets gauge",
		fmt.Sprintf("opswatch_last_cycle_targets %d", snap.LastCycleTotal),
		"# HELP opswatch_last_cycle_healthy Healthy targets in the most recent cycle.",
		"# TYPE opswatch_last_cycle_healthy gauge",
		fmt.Sprintf("opswatch_last_cycle_healthy %d", snap.LastCycleHealthy),
		"# HELP opswatch_alerts_dispatched_total Alerts handed to the notification sink.",
		"# TYPE opswatch_alerts_dispatched_total counter",
		fmt.Sprintf("opswatch_alerts_dispatched_total %d", snap.AlertsDispatched),
		"# HELP opswatch_alert_sink_failures_total Notification sink failures.",
		"# TYPE opswatch_alert_sink_failures_total counter",
		fmt.Sprintf("opswatch_alert_sink_failures_total %d", snap.SinkFailures),
		"# HELP opswatch_deliveries_total Delivery runs started.",
		"# TYPE opswatch_deliveries_total counter",
		fmt.Sprintf("opswatch_deliveries_total %d", snap.DeliveriesTotal),
		"# HELP opswatch_deliveries_failed_total Delivery runs that stopped at a failed unit.",
		"# TYPE opswatch_deliveries_failed_total counter",
		fmt.Sprintf("opswatch_deliveries_failed_total %d", snap.DeliveriesFailed),
		"# HELP opswatch_upload_units_attempted_total Upload units attempted across all deliveries.",
		"# TYPE opswatch_upload_units_attempted_total counter",
		fmt.Sprintf("opswatch_upload_units_attempted_total %d", snap.UnitsAttempted),
		"",
	}
	for _, line := range lines {
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// NewHTTPHandler returns an http.Handler that serves Prometheus formatted metrics.
func NewHTTPHandler(store *Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		if r.Method == http.MethodHead {
			return
		}
		if err := store.WritePrometheus(w); err != nil {
			http.Error(w, "metrics unavailable", http.StatusInternalServerError)
		}
	})
}
