package memory

import (
	"context"
	"sort"
	"sync"

	"trendline-lab/internal/domain"
	"trendline-lab/internal/storage"
)

// TickStore is an in-memory implementation of storage.TickStore.
type TickStore struct {
	mu   sync.RWMutex
	data map[string][]domain.Tick // keyed by instrument, insertion order
}

// NewTickStore creates a new in-memory tick store.
func NewTickStore() *TickStore {
	return &TickStore{
		data: make(map[string][]domain.Tick),
	}
}

// InsertBulk appends ticks atomically.
func (s *TickStore) InsertBulk(_ context.Context, ticks []*domain.Tick) error {
	if len(ticks) == 0 {
		return nil
	}

	// Validate the whole batch before touching the store
	for _, t := range ticks {
		if t == nil || t.Instrument == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range ticks {
		s.data[t.Instrument] = append(s.data[t.Instrument], *t)
	}

	return nil
}

// GetByInstrument retrieves all ticks for an instrument, ordered by timestamp ASC.
func (s *TickStore) GetByInstrument(_ context.Context, instrument string) ([]*domain.Tick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(instrument, func(domain.Tick) bool { return true }), nil
}

// GetByTimeRange retrieves ticks for an instrument within [start, end] (inclusive).
func (s *TickStore) GetByTimeRange(_ context.Context, instrument string, start, end int64) ([]*domain.Tick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(instrument, func(t domain.Tick) bool {
		return t.TimestampMs >= start && t.TimestampMs <= end
	}), nil
}

// Instruments returns every instrument with at least one tick, sorted.
func (s *TickStore) Instruments(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]string, 0, len(s.data))
	for instrument := range s.data {
		result = append(result, instrument)
	}
	sort.Strings(result)

	return result, nil
}

// collect copies matching ticks. Caller must hold the read lock.
func (s *TickStore) collect(instrument string, match func(domain.Tick) bool) []*domain.Tick {
	var result []*domain.Tick
	for _, t := range s.data[instrument] {
		if match(t) {
			tickCopy := t
			result = append(result, &tickCopy)
		}
	}

	// Stable so that equal timestamps keep insertion order
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result
}

var _ storage.TickStore = (*TickStore)(nil)
