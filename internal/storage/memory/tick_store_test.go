package memory

import (
	"context"
	"errors"
	"testing"

	"trendline-lab/internal/domain"
	"trendline-lab/internal/storage"
)

func TestTickStore_InsertBulkAndGet(t *testing.T) {
	store := NewTickStore()
	ctx := context.Background()

	ticks := []*domain.Tick{
		{Instrument: "ETHUSDT", Price: 101, TimestampMs: 2000},
		{Instrument: "ETHUSDT", Price: 100, TimestampMs: 1000},
		{Instrument: "BTCUSDT", Price: 50000, TimestampMs: 1500},
	}

	if err := store.InsertBulk(ctx, ticks); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetByInstrument(ctx, "ETHUSDT")
	if err != nil {
		t.Fatalf("GetByInstrument failed: %v", err)
	}

	if len(result) != 2 {
		t.Fatalf("Expected 2 ticks, got %d", len(result))
	}
	if result[0].TimestampMs != 1000 || result[1].TimestampMs != 2000 {
		t.Errorf("Expected ascending timestamps, got %d, %d", result[0].TimestampMs, result[1].TimestampMs)
	}
}

func TestTickStore_EqualTimestampsKeepInsertionOrder(t *testing.T) {
	store := NewTickStore()
	ctx := context.Background()

	_ = store.InsertBulk(ctx, []*domain.Tick{
		{Instrument: "X", Price: 1, TimestampMs: 1000},
		{Instrument: "X", Price: 2, TimestampMs: 1000},
	})
	_ = store.InsertBulk(ctx, []*domain.Tick{
		{Instrument: "X", Price: 3, TimestampMs: 1000},
	})

	result, _ := store.GetByInstrument(ctx, "X")
	for i, want := range []float64{1, 2, 3} {
		if result[i].Price != want {
			t.Errorf("Position %d: expected price %f, got %f", i, want, result[i].Price)
		}
	}
}

func TestTickStore_InvalidInput(t *testing.T) {
	store := NewTickStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.Tick{
		{Instrument: "X", Price: 1, TimestampMs: 1},
		{Price: 2, TimestampMs: 2},
	})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}

	// Batch is atomic: the valid tick was not stored either
	result, _ := store.GetByInstrument(ctx, "X")
	if len(result) != 0 {
		t.Errorf("Expected 0 ticks after failed batch, got %d", len(result))
	}
}

func TestTickStore_GetByTimeRange(t *testing.T) {
	store := NewTickStore()
	ctx := context.Background()

	_ = store.InsertBulk(ctx, []*domain.Tick{
		{Instrument: "X", TimestampMs: 1000},
		{Instrument: "X", TimestampMs: 2000},
		{Instrument: "X", TimestampMs: 3000},
		{Instrument: "X", TimestampMs: 4000},
	})

	result, err := store.GetByTimeRange(ctx, "X", 2000, 3000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}

	if len(result) != 2 {
		t.Errorf("Expected 2 ticks in range [2000, 3000], got %d", len(result))
	}
}

func TestTickStore_Instruments(t *testing.T) {
	store := NewTickStore()
	ctx := context.Background()

	_ = store.InsertBulk(ctx, []*domain.Tick{
		{Instrument: "SOLUSDT", TimestampMs: 1},
		{Instrument: "BTCUSDT", TimestampMs: 1},
		{Instrument: "SOLUSDT", TimestampMs: 2},
	})

	got, _ := store.Instruments(ctx)
	if len(got) != 2 || got[0] != "BTCUSDT" || got[1] != "SOLUSDT" {
		t.Errorf("Expected [BTCUSDT SOLUSDT], got %v", got)
	}
}

func TestTickStore_ReturnsCopies(t *testing.T) {
	store := NewTickStore()
	ctx := context.Background()

	_ = store.InsertBulk(ctx, []*domain.Tick{{Instrument: "X", Price: 1, TimestampMs: 1}})

	first, _ := store.GetByInstrument(ctx, "X")
	first[0].Price = 999

	second, _ := store.GetByInstrument(ctx, "X")
	if second[0].Price != 1 {
		t.Errorf("Store was mutated through returned pointer")
	}
}
