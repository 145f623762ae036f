package redis

import (
	"context"
	"time"
)

// jsonStore is the subset of Cache the run stats store needs.
type jsonStore interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
}

// RunStatsStore keeps batch run summaries: one per run date and the latest.
type RunStatsStore struct {
	store jsonStore
	ttl   time.Duration
}

// NewRunStatsStore creates a new RunStatsStore.
func NewRunStatsStore(store jsonStore) *RunStatsStore {
	return &RunStatsStore{store: store, ttl: TTLRunStats}
}

// Save stores a summary under its run date and as the latest summary.
func (s *RunStatsStore) Save(ctx context.Context, runDate string, summary interface{}) error {
	if err := s.store.Set(ctx, RunKey(runDate), summary, s.ttl); err != nil {
		return err
	}
	return s.store.Set(ctx, RunKey("latest"), summary, s.ttl)
}

// Latest loads the most recent summary into dest. It returns ErrCacheMiss
// when no run has been recorded.
func (s *RunStatsStore) Latest(ctx context.Context, dest interface{}) error {
	return s.store.Get(ctx, RunKey("latest"), dest)
}

// ForDate loads the summary of the run on runDate into dest.
func (s *RunStatsStore) ForDate(ctx context.Context, runDate string, dest interface{}) error {
	return s.store.Get(ctx, RunKey(runDate), dest)
}
