package summary

import (
	"testing"
	"time"

	"github.com/opswatchhq/engine/pkg/types"
)

func summaryWith(healthy, total int) types.RunSummary {
	return types.RunSummary{Total: total, Healthy: healthy, StartedAt: time.Now().UTC()}
}

func TestStoreEmpty(t *testing.T) {
	s := NewStore()
	if _, ok := s.Current(); ok {
		t.Fatalf("empty store must have no current summary")
	}
	if _, ok := s.Trend(); ok {
		t.Fatalf("trend requires two cycles")
	}
}

func TestStoreKeepsTwoCycles(t *testing.T) {
	s := NewStore()
	s.Record(summaryWith(1, 4))
	s.Record(summaryWith(3, 4))
	s.Record(summaryWith(2, 4))

	cur, ok := s.Current()
	if !ok || cur.Healthy != 2 {
		t.Fatalf("unexpected current: %+v ok=%v", cur, ok)
	}
	prev, ok := s.Previous()
	if !ok || prev.Healthy != 3 {
		t.Fatalf("unexpected previous: %+v ok=%v", prev, ok)
	}

	delta, ok := s.Trend()
	if !ok || delta != -1 {
		t.Fatalf("expected trend -1, got %d ok=%v", delta, ok)
	}
}

func TestStoreTrendAfterSingleCycle(t *testing.T) {
	s := NewStore()
	s.Record(summaryWith(4, 4))
	if _, ok := s.Trend(); ok {
		t.Fatalf("one cycle is not enough for a trend")
	}
}
