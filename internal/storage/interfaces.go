package storage

import (
	"context"

	"trendline-lab/internal/domain"
)

// TickStore provides access to raw tick history.
// Ticks are append-only; equal timestamps are allowed and keep insertion order.
type TickStore interface {
	// InsertBulk appends ticks atomically. Returns ErrInvalidInput if any tick has no instrument.
	InsertBulk(ctx context.Context, ticks []*domain.Tick) error

	// GetByInstrument retrieves all ticks for an instrument, ordered by timestamp ASC, then insertion order.
	GetByInstrument(ctx context.Context, instrument string) ([]*domain.Tick, error)

	// GetByTimeRange retrieves ticks for an instrument within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, instrument string, start, end int64) ([]*domain.Tick, error)

	// Instruments returns every instrument with at least one tick, sorted.
	Instruments(ctx context.Context) ([]string, error)
}

// EntryStore provides access to published regression entries.
type EntryStore interface {
	// InsertBulk adds multiple records. Fails entire batch on duplicate (session_id, seq).
	InsertBulk(ctx context.Context, records []*domain.EntryRecord) error

	// GetBySession retrieves all records of a session, ordered by seq ASC.
	GetBySession(ctx context.Context, sessionID string) ([]*domain.EntryRecord, error)

	// GetByTimeRange retrieves records for an instrument within [start, end] (inclusive),
	// ordered by timestamp ASC, then session and seq.
	GetByTimeRange(ctx context.Context, instrument string, start, end int64) ([]*domain.EntryRecord, error)
}

// LatestEntryStore keeps the newest records per instrument for low-latency reads.
type LatestEntryStore interface {
	// SaveLatest records rec as the newest record of its instrument.
	SaveLatest(ctx context.Context, rec *domain.EntryRecord) error

	// FetchLatest returns the newest record. Returns ErrNotFound if none was saved.
	FetchLatest(ctx context.Context, instrument string) (*domain.EntryRecord, error)

	// FetchRecent returns up to limit records, newest first.
	FetchRecent(ctx context.Context, instrument string, limit int) ([]*domain.EntryRecord, error)
}
