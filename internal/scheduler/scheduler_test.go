package scheduler

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/opswatchhq/engine/internal/worker"
	"github.com/opswatchhq/engine/pkg/types"
)

type scriptedProber struct {
	mu      sync.Mutex
	results map[string]types.ProbeResult
}

func (p *scriptedProber) Probe(_ context.Context, target types.Target) types.ProbeResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	if res, ok := p.results[target.URL]; ok {
		return res
	}
	return types.ProbeResult{Target: target.URL, Outcome: types.OutcomeOK, StatusCode: 200}
}

type recordingDispatcher struct {
	mu     sync.Mutex
	alerts []types.Alert
}

func (d *recordingDispatcher) Dispatch(_ context.Context, a types.Alert) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.alerts = append(d.alerts, a)
	return nil
}

func (d *recordingDispatcher) Alerts() []types.Alert {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]types.Alert, len(d.alerts))
	copy(out, d.alerts)
	return out
}

type recordingSummarySink struct {
	mu        sync.Mutex
	summaries []types.RunSummary
}

func (s *recordingSummarySink) Record(summary types.RunSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = append(s.summaries, summary)
}

func startPool(t *testing.T, prober worker.Prober, workers int) chan worker.Job {
	t.Helper()
	jobs := make(chan worker.Job, 32)
	pool := worker.NewPool(jobs, prober, worker.WithWorkerCount(workers))
	ctx, cancel := context.WithCancel(context.Background())
	wg := pool.Start(ctx)
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
	return jobs
}

func TestNewRejectsEmptyTargets(t *testing.T) {
	jobs := make(chan worker.Job, 1)
	if _, err := New(nil, jobs, &recordingDispatcher{}); err == nil {
		t.Fatalf("expected construction error for zero targets")
	}
}

func TestNewRejectsNilDispatcher(t *testing.T) {
	jobs := make(chan worker.Job, 1)
	if _, err := New([]types.Target{{URL: "https://a"}}, jobs, nil); err == nil {
		t.Fatalf("expected construction error for nil dispatcher")
	}
}

func TestRunCycleSummarizesAndAlerts(t *testing.T) {
	prober := &scriptedProber{results: map[string]types.ProbeResult{
		"https://a.example.com": {Target: "https://a.example.com", Outcome: types.OutcomeOK, StatusCode: 200, Elapsed: 10 * time.Millisecond},
		"https://b.example.com": {Target: "https://b.example.com", Outcome: types.OutcomeBadStatus, StatusCode: 500, Elapsed: 12 * time.Millisecond},
	}}
	jobs := startPool(t, prober, 5)

	dispatcher := &recordingDispatcher{}
	sink := &recordingSummarySink{}
	fixed := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	s, err := New(
		[]types.Target{
			{URL: "https://a.example.com", Timeout: time.Second},
			{URL: "https://b.example.com", Timeout: time.Second},
		},
		jobs,
		dispatcher,
		WithNow(func() time.Time { return fixed }),
		WithSummarySink(sink),
	)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	summary, err := s.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}

	if summary.Total != 2 || summary.Healthy != 1 {
		t.Fatalf("expected total=2 healthy=1, got total=%d healthy=%d", summary.Total, summary.Healthy)
	}
	if len(summary.Results) != 2 {
		t.Fatalf("expected both results collected, got %d", len(summary.Results))
	}
	if !summary.StartedAt.Equal(fixed) {
		t.Fatalf("expected summary to use the injected clock")
	}

	alerts := dispatcher.Alerts()
	if len(alerts) != 1 {
		t.Fatalf("expected exactly one alert, got %d", len(alerts))
	}
	if alerts[0].Origin != "https://b.example.com" {
		t.Fatalf("alert references wrong target: %s", alerts[0].Origin)
	}
	if !strings.Contains(alerts[0].Body, "500") {
		t.Fatalf("alert body should name the status: %q", alerts[0].Body)
	}

	sink.mu.Lock()
	recorded := len(sink.summaries)
	sink.mu.Unlock()
	if recorded != 1 {
		t.Fatalf("expected summary recorded once, got %d", recorded)
	}
}

func TestRunCycleAllTargetsFailingStillSummarizes(t *testing.T) {
	prober := &scriptedProber{results: map[string]types.ProbeResult{
		"https://a": {Target: "https://a", Outcome: types.OutcomeTimeout},
		"https://b": {Target: "https://b", Outcome: types.OutcomeConnectionError, Detail: "connection refused"},
	}}
	jobs := startPool(t, prober, 2)
	dispatcher := &recordingDispatcher{}

	s, err := New([]types.Target{{URL: "https://a"}, {URL: "https://b"}}, jobs, dispatcher)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	summary, err := s.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("transport failures must not fail the cycle: %v", err)
	}
	if summary.Total != 2 || summary.Healthy != 0 {
		t.Fatalf("expected total=2 healthy=0, got %+v", summary)
	}
	if len(dispatcher.Alerts()) != 2 {
		t.Fatalf("expected one alert per failing target, got %d", len(dispatcher.Alerts()))
	}
}

func TestRunCycleManyTargetsWithBoundedPool(t *testing.T) {
	targets := make([]types.Target, 20)
	for i := range targets {
		targets[i] = types.Target{URL: "https://t" + string(rune('a'+i)) + ".example.com", Timeout: time.Second}
	}
	jobs := startPool(t, &scriptedProber{}, worker.DefaultWorkerCount)

	s, err := New(targets, jobs, &recordingDispatcher{})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	summary, err := s.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if summary.Total != len(targets) || summary.Healthy != len(targets) {
		t.Fatalf("expected all %d targets healthy, got %+v", len(targets), summary)
	}
}

func TestRunCycleFailsWhenDispatchImpossible(t *testing.T) {
	// No pool consumes the unbuffered jobs channel, so dispatch can only
	// proceed via context cancellation.
	jobs := make(chan worker.Job)
	s, err := New([]types.Target{{URL: "https://a"}}, jobs, &recordingDispatcher{})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := s.RunCycle(ctx); err == nil {
		t.Fatalf("expected cycle failure when no job can be launched")
	}
}
