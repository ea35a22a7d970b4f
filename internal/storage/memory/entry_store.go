package memory

import (
	"context"
	"sort"
	"sync"

	"trendline-lab/internal/domain"
	"trendline-lab/internal/storage"
)

type recordKey struct {
	sessionID string
	seq       int64
}

// EntryStore is an in-memory implementation of storage.EntryStore.
type EntryStore struct {
	mu   sync.RWMutex
	data map[recordKey]*domain.EntryRecord
}

// NewEntryStore creates a new in-memory entry store.
func NewEntryStore() *EntryStore {
	return &EntryStore{
		data: make(map[recordKey]*domain.EntryRecord),
	}
}

// InsertBulk adds multiple records. Fails entire batch on duplicate.
func (s *EntryStore) InsertBulk(_ context.Context, records []*domain.EntryRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[recordKey]struct{}, len(records))

	// First pass: check for duplicates (existing + intra-batch)
	for _, r := range records {
		if r == nil || r.SessionID == "" || r.Entry.Instrument == "" {
			return storage.ErrInvalidInput
		}
		key := recordKey{r.SessionID, r.Seq}

		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, r := range records {
		recordCopy := *r
		s.data[recordKey{r.SessionID, r.Seq}] = &recordCopy
	}

	return nil
}

// GetBySession retrieves all records of a session, ordered by seq ASC.
func (s *EntryStore) GetBySession(_ context.Context, sessionID string) ([]*domain.EntryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.EntryRecord
	for _, r := range s.data {
		if r.SessionID == sessionID {
			recordCopy := *r
			result = append(result, &recordCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})

	return result, nil
}

// GetByTimeRange retrieves records for an instrument within [start, end] (inclusive).
func (s *EntryStore) GetByTimeRange(_ context.Context, instrument string, start, end int64) ([]*domain.EntryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.EntryRecord
	for _, r := range s.data {
		ts := r.Entry.TimestampMs
		if r.Entry.Instrument == instrument && ts >= start && ts <= end {
			recordCopy := *r
			result = append(result, &recordCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Entry.TimestampMs != b.Entry.TimestampMs {
			return a.Entry.TimestampMs < b.Entry.TimestampMs
		}
		if a.SessionID != b.SessionID {
			return a.SessionID < b.SessionID
		}
		return a.Seq < b.Seq
	})

	return result, nil
}

var _ storage.EntryStore = (*EntryStore)(nil)
