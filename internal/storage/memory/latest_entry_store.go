package memory

import (
	"context"
	"sync"

	"trendline-lab/internal/domain"
	"trendline-lab/internal/storage"
)

// DefaultRecentLimit bounds the recent list kept per instrument.
const DefaultRecentLimit = 500

// LatestEntryStore is an in-memory implementation of storage.LatestEntryStore.
type LatestEntryStore struct {
	mu     sync.RWMutex
	limit  int
	recent map[string][]domain.EntryRecord // newest first
}

// NewLatestEntryStore creates a store keeping at most limit records per instrument.
// A non-positive limit selects DefaultRecentLimit.
func NewLatestEntryStore(limit int) *LatestEntryStore {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return &LatestEntryStore{
		limit:  limit,
		recent: make(map[string][]domain.EntryRecord),
	}
}

// SaveLatest records rec as the newest record of its instrument.
func (s *LatestEntryStore) SaveLatest(_ context.Context, rec *domain.EntryRecord) error {
	if rec == nil || rec.Entry.Instrument == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list := append([]domain.EntryRecord{*rec}, s.recent[rec.Entry.Instrument]...)
	if len(list) > s.limit {
		list = list[:s.limit]
	}
	s.recent[rec.Entry.Instrument] = list

	return nil
}

// FetchLatest returns the newest record. Returns ErrNotFound if none was saved.
func (s *LatestEntryStore) FetchLatest(_ context.Context, instrument string) (*domain.EntryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.recent[instrument]
	if len(list) == 0 {
		return nil, storage.ErrNotFound
	}

	recordCopy := list[0]
	return &recordCopy, nil
}

// FetchRecent returns up to limit records, newest first.
func (s *LatestEntryStore) FetchRecent(_ context.Context, instrument string, limit int) ([]*domain.EntryRecord, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.recent[instrument]
	if len(list) > limit {
		list = list[:limit]
	}

	result := make([]*domain.EntryRecord, len(list))
	for i := range list {
		recordCopy := list[i]
		result[i] = &recordCopy
	}

	return result, nil
}

var _ storage.LatestEntryStore = (*LatestEntryStore)(nil)
