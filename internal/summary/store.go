// Package summary retains the current and immediately preceding run
// summaries so callers can compare consecutive cycles. Nothing older is
// kept.
package summary

import (
	"sync"

	"github.com/opswatchhq/engine/pkg/types"
)

// Store holds at most two cycles of history.
type Store struct {
	mu       sync.RWMutex
	current  *types.RunSummary
	previous *types.RunSummary
}

// NewStore builds an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Record supersedes the current summary, demoting it to previous.
func (s *Store) Record(summary types.RunSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.previous = s.current
	s.current = &summary
}

// Current returns the latest completed cycle, if any.
func (s *Store) Current() (types.RunSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return types.RunSummary{}, false
	}
	return *s.current, true
}

// Previous returns the cycle before the current one, if any.
func (s *Store) Previous() (types.RunSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.previous == nil {
		return types.RunSummary{}, false
	}
	return *s.previous, true
}

// Trend reports the healthy-count delta between the current and previous
// cycles. It is false until two cycles have completed.
func (s *Store) Trend() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil || s.previous == nil {
		return 0, false
	}
	return s.current.Healthy - s.previous.Healthy, true
}
