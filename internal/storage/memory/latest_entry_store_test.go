package memory

import (
	"context"
	"errors"
	"testing"

	"trendline-lab/internal/storage"
)

func TestLatestEntryStore_FetchLatestNotFound(t *testing.T) {
	store := NewLatestEntryStore(10)

	_, err := store.FetchLatest(context.Background(), "X")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestLatestEntryStore_SaveAndFetch(t *testing.T) {
	store := NewLatestEntryStore(3)
	ctx := context.Background()

	for i := int64(0); i < 5; i++ {
		if err := store.SaveLatest(ctx, record("s1", i, "X", 1000*i)); err != nil {
			t.Fatalf("SaveLatest failed: %v", err)
		}
	}

	latest, err := store.FetchLatest(ctx, "X")
	if err != nil {
		t.Fatalf("FetchLatest failed: %v", err)
	}
	if latest.Seq != 4 {
		t.Errorf("Expected seq 4, got %d", latest.Seq)
	}

	recent, err := store.FetchRecent(ctx, "X", 10)
	if err != nil {
		t.Fatalf("FetchRecent failed: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("Expected list trimmed to 3, got %d", len(recent))
	}
	if recent[0].Seq != 4 || recent[2].Seq != 2 {
		t.Errorf("Expected newest first, got seq %d .. %d", recent[0].Seq, recent[2].Seq)
	}

	two, _ := store.FetchRecent(ctx, "X", 2)
	if len(two) != 2 {
		t.Errorf("Expected 2 records, got %d", len(two))
	}
}

func TestLatestEntryStore_InvalidInput(t *testing.T) {
	store := NewLatestEntryStore(0)
	ctx := context.Background()

	if err := store.SaveLatest(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil record, got %v", err)
	}
	if _, err := store.FetchRecent(ctx, "X", 0); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for zero limit, got %v", err)
	}
}
