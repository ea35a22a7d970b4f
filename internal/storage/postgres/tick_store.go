package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"trendline-lab/internal/domain"
	"trendline-lab/internal/storage"
)

// TickStore implements storage.TickStore using PostgreSQL.
type TickStore struct {
	pool *Pool
}

// NewTickStore creates a new TickStore.
func NewTickStore(pool *Pool) *TickStore {
	return &TickStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TickStore = (*TickStore)(nil)

// InsertBulk appends ticks atomically.
func (s *TickStore) InsertBulk(ctx context.Context, ticks []*domain.Tick) error {
	if len(ticks) == 0 {
		return nil
	}
	for _, t := range ticks {
		if t == nil || t.Instrument == "" {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, t := range ticks {
		batch.Queue(`INSERT INTO ticks (instrument, price, timestamp_ms) VALUES ($1, $2, $3)`,
			t.Instrument, t.Price, t.TimestampMs)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert ticks in bulk: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByInstrument retrieves all ticks for an instrument, ordered by timestamp ASC.
func (s *TickStore) GetByInstrument(ctx context.Context, instrument string) ([]*domain.Tick, error) {
	query := `
		SELECT instrument, price, timestamp_ms
		FROM ticks
		WHERE instrument = $1
		ORDER BY timestamp_ms ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, instrument)
	if err != nil {
		return nil, fmt.Errorf("get ticks by instrument: %w", err)
	}
	defer rows.Close()

	return scanTicks(rows)
}

// GetByTimeRange retrieves ticks for an instrument within [start, end] (inclusive).
func (s *TickStore) GetByTimeRange(ctx context.Context, instrument string, start, end int64) ([]*domain.Tick, error) {
	query := `
		SELECT instrument, price, timestamp_ms
		FROM ticks
		WHERE instrument = $1 AND timestamp_ms >= $2 AND timestamp_ms <= $3
		ORDER BY timestamp_ms ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, instrument, start, end)
	if err != nil {
		return nil, fmt.Errorf("get ticks by time range: %w", err)
	}
	defer rows.Close()

	return scanTicks(rows)
}

// Instruments returns every instrument with at least one tick, sorted.
func (s *TickStore) Instruments(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT instrument FROM ticks ORDER BY instrument`)
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	defer rows.Close()

	instruments, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan instruments: %w", err)
	}
	return instruments, nil
}

// scanTicks scans multiple rows into a slice of Tick.
func scanTicks(rows pgx.Rows) ([]*domain.Tick, error) {
	var ticks []*domain.Tick

	for rows.Next() {
		var t domain.Tick
		if err := rows.Scan(&t.Instrument, &t.Price, &t.TimestampMs); err != nil {
			return nil, fmt.Errorf("scan tick row: %w", err)
		}
		ticks = append(ticks, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tick rows: %w", err)
	}

	return ticks, nil
}
