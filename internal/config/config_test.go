package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
monitor:
  interval_sec: 60
  workers: 8
  targets:
    - url: https://a.example.com/health
      timeout_sec: 3
    - url: https://b.example.com/health
resource:
  enabled: true
  interval_sec: 15
  cpu_percent: 90
upload:
  destination: https://collector.example.com
  timeout_sec: 20
  max_unit_size: 2MiB
  max_attempts: 5
  retry_delay_sec: 1
alerts:
  urls:
    - "logger://"
`)

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if err := cfg.ValidateMonitor(); err != nil {
		t.Fatalf("validate monitor: %v", err)
	}
	if err := cfg.ValidateUpload(); err != nil {
		t.Fatalf("validate upload: %v", err)
	}

	if cfg.Monitor.Interval() != time.Minute {
		t.Fatalf("unexpected interval %s", cfg.Monitor.Interval())
	}
	if cfg.Monitor.WorkerCount() != 8 {
		t.Fatalf("unexpected workers %d", cfg.Monitor.WorkerCount())
	}

	targets := cfg.Monitor.TargetList()
	if len(targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(targets))
	}
	if targets[0].Timeout != 3*time.Second {
		t.Fatalf("unexpected timeout %s", targets[0].Timeout)
	}
	if targets[1].Timeout != 5*time.Second {
		t.Fatalf("expected default timeout on second target, got %s", targets[1].Timeout)
	}

	cpu, memory := cfg.Resource.Thresholds()
	if cpu != 90 || memory != 80 {
		t.Fatalf("unexpected thresholds cpu=%v memory=%v", cpu, memory)
	}

	size, err := cfg.Upload.UnitSizeBytes()
	if err != nil {
		t.Fatalf("unit size: %v", err)
	}
	if size != 2<<20 {
		t.Fatalf("expected 2 MiB, got %d", size)
	}

	policy := cfg.Upload.RetryPolicy()
	if policy.MaxAttempts != 5 || policy.Delay != time.Second {
		t.Fatalf("unexpected policy %+v", policy)
	}
}

func TestDefaultsApply(t *testing.T) {
	path := writeConfig(t, `
monitor:
  targets:
    - url: https://a.example.com
`)
	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Monitor.Interval() != 30*time.Second {
		t.Fatalf("expected default interval, got %s", cfg.Monitor.Interval())
	}
	if cfg.Monitor.WorkerCount() != 5 {
		t.Fatalf("expected default worker bound, got %d", cfg.Monitor.WorkerCount())
	}
	if cfg.Resource.Interval() != 10*time.Second {
		t.Fatalf("expected default resource interval, got %s", cfg.Resource.Interval())
	}

	size, err := cfg.Upload.UnitSizeBytes()
	if err != nil {
		t.Fatalf("unit size: %v", err)
	}
	if size != 1<<20 {
		t.Fatalf("expected 1 MiB default, got %d", size)
	}
}

func TestValidateMonitorRejectsEmptyTargets(t *testing.T) {
	var cfg Config
	if err := cfg.ValidateMonitor(); err == nil {
		t.Fatalf("expected error for zero targets")
	}
}

func TestValidateUploadRejectsMissingDestination(t *testing.T) {
	var cfg Config
	if err := cfg.ValidateUpload(); err == nil {
		t.Fatalf("expected error for missing destination")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(context.Background(), "/does/not/exist.yaml"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadFromEnv(t *testing.T) {
	path := writeConfig(t, `
monitor:
  targets:
    - url: https://a.example.com
`)
	t.Setenv("OPSWATCH_CONFIG", path)
	cfg, err := LoadFromEnv(context.Background())
	if err != nil {
		t.Fatalf("load from env: %v", err)
	}
	if len(cfg.Monitor.Targets) != 1 {
		t.Fatalf("expected 1 target, got %d", len(cfg.Monitor.Targets))
	}
}
