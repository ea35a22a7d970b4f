package clickhouse_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendline-lab/internal/domain"
	"trendline-lab/internal/storage"
	"trendline-lab/internal/storage/clickhouse"
)

func testRecord(session string, seq int64, ts int64) *domain.EntryRecord {
	return &domain.EntryRecord{
		SessionID: session,
		Seq:       seq,
		Entry: domain.WindowEntry{
			Instrument:   "ETHUSDT",
			Price:        100 + float64(seq),
			TimestampMs:  ts,
			WindowOrigin: 1000,
			ScaledObservation: domain.ScaledObservation{
				PriceScaled:      0.1,
				TimeScaled:       0.01,
				TimePriceProduct: 0.001,
				TimeSquared:      0.0001,
			},
			Sums:              domain.Sums{PriceScaled: 0.3, TimeScaled: 0.03, TimePriceProduct: 0.003, TimeSquared: 0.0003},
			Intercept:         100,
			Slope:             0.01,
			FittedValue:       101,
			AbsoluteIntercept: 99.99,
			HalfWindowSlope:   0.02,
		},
	}
}

func TestEntryStore_InsertBulk(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := clickhouse.NewEntryStore(conn)
	ctx := context.Background()

	// Test empty insert
	assert.NoError(t, store.InsertBulk(ctx, nil))

	want := testRecord("s1", 0, 2000)
	require.NoError(t, store.InsertBulk(ctx, []*domain.EntryRecord{want}))

	got, err := store.GetBySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, *want, *got[0])
}

func TestEntryStore_NonFiniteRoundTrip(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := clickhouse.NewEntryStore(conn)
	ctx := context.Background()

	rec := testRecord("s1", 0, 2000)
	rec.Entry.Intercept = math.NaN()
	rec.Entry.Slope = math.Inf(1)
	require.NoError(t, store.InsertBulk(ctx, []*domain.EntryRecord{rec}))

	got, err := store.GetBySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, math.IsNaN(got[0].Entry.Intercept))
	assert.True(t, math.IsNaN(got[0].Entry.Slope))
	assert.Equal(t, 101.0, got[0].Entry.FittedValue)
	assert.False(t, got[0].Entry.HasFiniteFit())
}

func TestEntryStore_InsertBulk_DuplicateKey(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := clickhouse.NewEntryStore(conn)
	ctx := context.Background()

	records := []*domain.EntryRecord{testRecord("s1", 0, 1000), testRecord("s1", 1, 2000)}
	require.NoError(t, store.InsertBulk(ctx, records))

	err := store.InsertBulk(ctx, []*domain.EntryRecord{testRecord("s1", 1, 3000)})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Same seq in a different session is a different key
	assert.NoError(t, store.InsertBulk(ctx, []*domain.EntryRecord{testRecord("s2", 1, 3000)}))
}

func TestEntryStore_InsertBulk_IntraBatchDuplicate(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := clickhouse.NewEntryStore(conn)
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.EntryRecord{testRecord("s1", 0, 1000), testRecord("s1", 0, 1000)})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEntryStore_GetByTimeRange(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := clickhouse.NewEntryStore(conn)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.EntryRecord{
		testRecord("s1", 0, 1000),
		testRecord("s1", 1, 2000),
		testRecord("s1", 2, 3000),
		testRecord("s2", 0, 2000),
	}))

	got, err := store.GetByTimeRange(ctx, "ETHUSDT", 2000, 3000)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "s1", got[0].SessionID)
	assert.Equal(t, "s2", got[1].SessionID)
	assert.Equal(t, int64(3000), got[2].Entry.TimestampMs)

	none, err := store.GetByTimeRange(ctx, "BTCUSDT", 0, 10000)
	require.NoError(t, err)
	assert.Empty(t, none)
}
