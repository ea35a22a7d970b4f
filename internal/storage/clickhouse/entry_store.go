package clickhouse

import (
	"context"
	"fmt"
	"math"

	"trendline-lab/internal/domain"
	"trendline-lab/internal/storage"
)

// EntryStore implements storage.EntryStore using ClickHouse.
type EntryStore struct {
	conn *Conn
}

// NewEntryStore creates a new EntryStore.
func NewEntryStore(conn *Conn) *EntryStore {
	return &EntryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EntryStore = (*EntryStore)(nil)

const entryColumns = `
	session_id, seq, instrument, price, timestamp_ms, window_origin,
	price_scaled, time_scaled, time_price_product, time_squared,
	sum_price_scaled, sum_time_scaled, sum_time_price_product, sum_time_squared,
	intercept, slope, fitted_value, absolute_intercept, half_window_slope
`

// InsertBulk adds multiple records. Fails entire batch on duplicate (session_id, seq).
// MergeTree does not enforce uniqueness, so keys are checked before the insert.
func (s *EntryStore) InsertBulk(ctx context.Context, records []*domain.EntryRecord) error {
	if len(records) == 0 {
		return nil
	}

	type key struct {
		sessionID string
		seq       int64
	}
	seen := make(map[key]struct{}, len(records))
	bySession := make(map[string][]uint64)
	for _, r := range records {
		if r == nil || r.SessionID == "" || r.Entry.Instrument == "" || r.Seq < 0 {
			return storage.ErrInvalidInput
		}
		k := key{r.SessionID, r.Seq}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		bySession[r.SessionID] = append(bySession[r.SessionID], uint64(r.Seq))
	}

	// Check for duplicates against existing rows
	for sessionID, seqs := range bySession {
		exists, err := s.exists(ctx, sessionID, seqs)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO regression_entries ("+entryColumns+")")
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		e := r.Entry
		err = batch.Append(
			r.SessionID, uint64(r.Seq), e.Instrument, e.Price, e.TimestampMs, e.WindowOrigin,
			e.PriceScaled, e.TimeScaled, e.TimePriceProduct, e.TimeSquared,
			e.Sums.PriceScaled, e.Sums.TimeScaled, e.Sums.TimePriceProduct, e.Sums.TimeSquared,
			nullable(e.Intercept), nullable(e.Slope), nullable(e.FittedValue),
			nullable(e.AbsoluteIntercept), nullable(e.HalfWindowSlope),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetBySession retrieves all records of a session, ordered by seq ASC.
func (s *EntryStore) GetBySession(ctx context.Context, sessionID string) ([]*domain.EntryRecord, error) {
	query := `SELECT ` + entryColumns + `
		FROM regression_entries
		WHERE session_id = ?
		ORDER BY seq ASC
	`

	rows, err := s.conn.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query by session: %w", err)
	}
	defer rows.Close()

	return scanEntryRecords(rows)
}

// GetByTimeRange retrieves records for an instrument within [start, end] (inclusive).
func (s *EntryStore) GetByTimeRange(ctx context.Context, instrument string, start, end int64) ([]*domain.EntryRecord, error) {
	query := `SELECT ` + entryColumns + `
		FROM regression_entries
		WHERE instrument = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC, session_id ASC, seq ASC
	`

	rows, err := s.conn.Query(ctx, query, instrument, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanEntryRecords(rows)
}

// exists checks if any of the given keys of a session exists.
func (s *EntryStore) exists(ctx context.Context, sessionID string, seqs []uint64) (bool, error) {
	query := `
		SELECT count(*) FROM regression_entries
		WHERE session_id = ? AND has(?, seq)
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, sessionID, seqs).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// scanEntryRecords scans multiple rows.
func scanEntryRecords(rows chRows) ([]*domain.EntryRecord, error) {
	var records []*domain.EntryRecord

	for rows.Next() {
		var r domain.EntryRecord
		var seq uint64
		var intercept, slope, fitted, absIntercept, halfSlope *float64
		e := &r.Entry

		err := rows.Scan(
			&r.SessionID, &seq, &e.Instrument, &e.Price, &e.TimestampMs, &e.WindowOrigin,
			&e.PriceScaled, &e.TimeScaled, &e.TimePriceProduct, &e.TimeSquared,
			&e.Sums.PriceScaled, &e.Sums.TimeScaled, &e.Sums.TimePriceProduct, &e.Sums.TimeSquared,
			&intercept, &slope, &fitted, &absIntercept, &halfSlope,
		)
		if err != nil {
			return nil, fmt.Errorf("scan regression entry row: %w", err)
		}

		r.Seq = int64(seq)
		e.Intercept = valueOrNaN(intercept)
		e.Slope = valueOrNaN(slope)
		e.FittedValue = valueOrNaN(fitted)
		e.AbsoluteIntercept = valueOrNaN(absIntercept)
		e.HalfWindowSlope = valueOrNaN(halfSlope)
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate regression entry rows: %w", err)
	}

	return records, nil
}

// nullable maps non-finite values to NULL.
func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func valueOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
