package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendline-lab/internal/domain"
	"trendline-lab/internal/normalization"
	"trendline-lab/internal/storage"
	"trendline-lab/internal/storage/memory"
)

func TestValidateOrdering(t *testing.T) {
	ok := []domain.Tick{
		{Instrument: "BTC", Price: 1, TimestampMs: 10},
		{Instrument: "ETH", Price: 1, TimestampMs: 5},
		{Instrument: "BTC", Price: 1, TimestampMs: 10},
	}
	assert.NoError(t, validateOrdering(ok))

	bad := []domain.Tick{
		{Instrument: "BTC", Price: 1, TimestampMs: 10},
		{Instrument: "BTC", Price: 1, TimestampMs: 5},
	}
	assert.True(t, errors.Is(validateOrdering(bad), normalization.ErrInvalidOrdering))

	missing := []domain.Tick{{Price: 1, TimestampMs: 1}}
	assert.ErrorIs(t, validateOrdering(missing), storage.ErrInvalidInput)
}

func TestLoad_Batches(t *testing.T) {
	store := memory.NewTickStore()
	ticks := make([]domain.Tick, 7)
	for i := range ticks {
		ticks[i] = domain.Tick{Instrument: "BTC", Price: float64(i), TimestampMs: int64(i)}
	}

	loaded, err := load(context.Background(), store, ticks, 3)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded)

	stored, err := store.GetByInstrument(context.Background(), "BTC")
	require.NoError(t, err)
	require.Len(t, stored, 7)
	assert.Equal(t, 6.0, stored[6].Price)
}

func TestLoad_ZeroBatchSizeLoadsAll(t *testing.T) {
	store := memory.NewTickStore()
	ticks := []domain.Tick{{Instrument: "BTC", Price: 1, TimestampMs: 1}}

	loaded, err := load(context.Background(), store, ticks, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded)
}
