// Package resource samples host CPU and memory usage and alerts when a
// reading exceeds its threshold. Like the probe cycle, each check is a
// one-shot driven by an external timer.
package resource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/opswatchhq/engine/internal/threshold"
	"github.com/opswatchhq/engine/pkg/types"
)

// Usage is one reading of host utilization percentages.
type Usage struct {
	CPUPercent    float64
	MemoryPercent float64
}

// Sampler produces one usage reading. The gopsutil implementation is the
// production sampler; tests inject their own.
type Sampler interface {
	Sample(ctx context.Context) (Usage, error)
}

// HostSampler reads CPU and memory usage via gopsutil.
type HostSampler struct {
	// CPUInterval is the window the CPU percentage is measured over.
	CPUInterval time.Duration
}

// Sample reads current host utilization.
func (s HostSampler) Sample(ctx context.Context) (Usage, error) {
	interval := s.CPUInterval
	if interval <= 0 {
		interval = time.Second
	}
	cpuPercents, err := cpu.PercentWithContext(ctx, interval, false)
	if err != nil {
		return Usage{}, fmt.Errorf("sample cpu: %w", err)
	}
	if len(cpuPercents) == 0 {
		return Usage{}, errors.New("sample cpu: no reading")
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Usage{}, fmt.Errorf("sample memory: %w", err)
	}
	return Usage{CPUPercent: cpuPercents[0], MemoryPercent: vm.UsedPercent}, nil
}

// AlertDispatcher receives one alert per over-threshold reading.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, alert types.Alert) error
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithThresholds overrides the CPU and memory alert thresholds.
func WithThresholds(cpuPercent, memoryPercent float64) Option {
	return func(m *Monitor) {
		if cpuPercent > 0 {
			m.cpuThreshold = cpuPercent
		}
		if memoryPercent > 0 {
			m.memThreshold = memoryPercent
		}
	}
}

// WithLogger attaches a logger for per-check readings.
func WithLogger(logger *log.Logger) Option {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithNow overrides the alert clock.
func WithNow(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// Monitor checks host utilization against thresholds.
type Monitor struct {
	sampler      Sampler
	alerts       AlertDispatcher
	cpuThreshold float64
	memThreshold float64
	logger       *log.Logger
	now          func() time.Time
}

// NewMonitor builds a Monitor. Sampler and dispatcher are required.
func NewMonitor(sampler Sampler, alerts AlertDispatcher, opts ...Option) (*Monitor, error) {
	if sampler == nil {
		return nil, errors.New("resource: sampler is required")
	}
	if alerts == nil {
		return nil, errors.New("resource: alert dispatcher is required")
	}
	m := &Monitor{
		sampler:      sampler,
		alerts:       alerts,
		cpuThreshold: threshold.DefaultResourcePercent,
		memThreshold: threshold.DefaultResourcePercent,
		logger:       log.New(io.Discard, "", 0),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Check samples usage once and emits one alert per over-threshold reading.
func (m *Monitor) Check(ctx context.Context) (Usage, error) {
	usage, err := m.sampler.Sample(ctx)
	if err != nil {
		return Usage{}, err
	}
	m.logger.Printf("resource usage: cpu=%.1f%% memory=%.1f%%", usage.CPUPercent, usage.MemoryPercent)

	if threshold.EvaluateResource(usage.CPUPercent, m.cpuThreshold) == types.OutcomeOverThreshold {
		_ = m.alerts.Dispatch(ctx, m.alert("CPU", usage.CPUPercent, m.cpuThreshold))
	}
	if threshold.EvaluateResource(usage.MemoryPercent, m.memThreshold) == types.OutcomeOverThreshold {
		_ = m.alerts.Dispatch(ctx, m.alert("MEMORY", usage.MemoryPercent, m.memThreshold))
	}
	return usage, nil
}

func (m *Monitor) alert(kind string, value, limit float64) types.Alert {
	return types.Alert{
		Severity:  types.SeverityWarning,
		Subject:   fmt.Sprintf("HIGH %s USAGE ALERT - %.1f%%", kind, value),
		Body:      fmt.Sprintf("%s usage has exceeded %.0f%% threshold. Current usage: %.1f%%", kind, limit, value),
		Source:    types.AlertSourceResource,
		Origin:    kind,
		Timestamp: m.now().UTC(),
	}
}
