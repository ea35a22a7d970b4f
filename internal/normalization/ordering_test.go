package normalization

import (
	"errors"
	"testing"

	"trendline-lab/internal/domain"
)

func TestValidateTickOrdering(t *testing.T) {
	ticks := []domain.Tick{
		{TimestampMs: 1000},
		{TimestampMs: 1000},
		{TimestampMs: 2000},
	}
	if err := ValidateTickOrdering(ticks); err != nil {
		t.Errorf("equal timestamps should be accepted, got %v", err)
	}

	ticks = append(ticks, domain.Tick{TimestampMs: 1500})
	if err := ValidateTickOrdering(ticks); !errors.Is(err, ErrInvalidOrdering) {
		t.Errorf("expected ErrInvalidOrdering, got %v", err)
	}
}

func TestValidateTickOrdering_Empty(t *testing.T) {
	if err := ValidateTickOrdering(nil); err != nil {
		t.Errorf("empty input should be valid, got %v", err)
	}
}

func TestValidateTickOrderingAfter(t *testing.T) {
	ticks := []domain.Tick{{TimestampMs: 5000}, {TimestampMs: 6000}}

	if err := ValidateTickOrderingAfter(5000, ticks); err != nil {
		t.Errorf("tick equal to last should be accepted, got %v", err)
	}
	if err := ValidateTickOrderingAfter(5001, ticks); !errors.Is(err, ErrInvalidOrdering) {
		t.Errorf("expected ErrInvalidOrdering, got %v", err)
	}
}
