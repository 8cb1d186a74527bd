// Package config loads and validates the engine's YAML configuration. All
// tunables are plain values handed to components at construction; nothing in
// the engine reads configuration ambiently.
package config

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/opswatchhq/engine/internal/chunk"
	"github.com/opswatchhq/engine/internal/retry"
	"github.com/opswatchhq/engine/internal/threshold"
	"github.com/opswatchhq/engine/internal/worker"
	"github.com/opswatchhq/engine/pkg/types"
)

const (
	envConfigPath     = "OPSWATCH_CONFIG"
	DefaultConfigPath = "/etc/opswatch/engine.yaml"

	defaultProbeTimeoutSec     = 5
	defaultMonitorIntervalSec  = 30
	defaultResourceIntervalSec = 10
)

type Config struct {
	Monitor  MonitorConfig  `yaml:"monitor"`
	Resource ResourceConfig `yaml:"resource"`
	Upload   UploadConfig   `yaml:"upload"`
	Alerts   AlertConfig    `yaml:"alerts"`
}

type TargetConfig struct {
	URL        string `yaml:"url"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// Target converts the entry to the engine's target type, applying the
// default probe timeout.
func (t TargetConfig) Target() types.Target {
	timeout := t.TimeoutSec
	if timeout <= 0 {
		timeout = defaultProbeTimeoutSec
	}
	return types.Target{
		URL:     t.URL,
		Timeout: time.Duration(timeout) * time.Second,
	}
}

type MonitorConfig struct {
	Targets     []TargetConfig `yaml:"targets"`
	IntervalSec int            `yaml:"interval_sec"`
	Workers     int            `yaml:"workers"`
}

func (m MonitorConfig) Interval() time.Duration {
	if m.IntervalSec <= 0 {
		return defaultMonitorIntervalSec * time.Second
	}
	return time.Duration(m.IntervalSec) * time.Second
}

func (m MonitorConfig) WorkerCount() int {
	if m.Workers <= 0 {
		return worker.DefaultWorkerCount
	}
	return m.Workers
}

// TargetList converts all configured targets.
func (m MonitorConfig) TargetList() []types.Target {
	targets := make([]types.Target, 0, len(m.Targets))
	for _, t := range m.Targets {
		targets = append(targets, t.Target())
	}
	return targets
}

type ResourceConfig struct {
	Enabled       bool    `yaml:"enabled"`
	IntervalSec   int     `yaml:"interval_sec"`
	CPUPercent    float64 `yaml:"cpu_percent"`
	MemoryPercent float64 `yaml:"memory_percent"`
}

func (r ResourceConfig) Interval() time.Duration {
	if r.IntervalSec <= 0 {
		return defaultResourceIntervalSec * time.Second
	}
	return time.Duration(r.IntervalSec) * time.Second
}

func (r ResourceConfig) Thresholds() (cpu, memory float64) {
	cpu = r.CPUPercent
	if cpu <= 0 {
		cpu = threshold.DefaultResourcePercent
	}
	memory = r.MemoryPercent
	if memory <= 0 {
		memory = threshold.DefaultResourcePercent
	}
	return cpu, memory
}

type UploadConfig struct {
	Destination   string  `yaml:"destination"`
	TimeoutSec    int     `yaml:"timeout_sec"`
	MaxUnitSize   string  `yaml:"max_unit_size"`
	MaxAttempts   int     `yaml:"max_attempts"`
	RetryDelaySec int     `yaml:"retry_delay_sec"`
	RatePerSec    float64 `yaml:"rate_per_sec"`
	CertPath      string  `yaml:"cert_path"`
	KeyPath       string  `yaml:"key_path"`
	CAPath        string  `yaml:"ca_path"`
}

func (u UploadConfig) Timeout() time.Duration {
	if u.TimeoutSec <= 0 {
		return 0 // let the transport apply its default
	}
	return time.Duration(u.TimeoutSec) * time.Second
}

// UnitSizeBytes parses the configured unit size limit ("1MiB", "512kb",
// plain bytes).
func (u UploadConfig) UnitSizeBytes() (int64, error) {
	return ParseSize(u.MaxUnitSize, chunk.DefaultMaxUnitSize)
}

// RetryPolicy builds the per-unit retry policy, zero values meaning the
// package defaults.
func (u UploadConfig) RetryPolicy() retry.Policy {
	policy := retry.Policy{MaxAttempts: u.MaxAttempts}
	if u.RetryDelaySec > 0 {
		policy.Delay = time.Duration(u.RetryDelaySec) * time.Second
	}
	return policy
}

type AlertConfig struct {
	URLs []string `yaml:"urls"`
}

// Load reads and parses the config file at path.
func Load(ctx context.Context, path string) (Config, error) {
	var cfg Config

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return cfg, fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}

	return cfg, nil
}

// LoadFromEnv loads from $OPSWATCH_CONFIG, falling back to the default path.
func LoadFromEnv(ctx context.Context) (Config, error) {
	path := os.Getenv(envConfigPath)
	if path == "" {
		path = DefaultConfigPath
	}
	return Load(ctx, path)
}

// ValidateMonitor checks the configuration needed by the run command.
func (c Config) ValidateMonitor() error {
	if len(c.Monitor.Targets) == 0 {
		return fmt.Errorf("monitor: at least one target is required")
	}
	for i, t := range c.Monitor.Targets {
		if t.URL == "" {
			return fmt.Errorf("monitor: target %d has no url", i)
		}
	}
	if c.Monitor.Workers < 0 {
		return fmt.Errorf("monitor: workers must not be negative")
	}
	return nil
}

// ValidateUpload checks the configuration needed by the upload command.
func (c Config) ValidateUpload() error {
	if c.Upload.Destination == "" {
		return fmt.Errorf("upload: destination is required")
	}
	if c.Upload.MaxAttempts < 0 {
		return fmt.Errorf("upload: max_attempts must not be negative")
	}
	if _, err := c.Upload.UnitSizeBytes(); err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	return nil
}
