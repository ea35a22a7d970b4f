package lookup

import (
	"errors"
	"sort"

	"trendline-lab/internal/domain"
)

// ErrNoSlopeData is returned when there is no entry to take a slope from.
var ErrNoSlopeData = errors.New("no slope data available")

// EntrySequence is a timestamp-ordered, indexable sequence of window entries.
type EntrySequence interface {
	Len() int
	At(i int) domain.WindowEntry
}

// Entries adapts a slice to EntrySequence.
type Entries []domain.WindowEntry

// Len returns the number of entries.
func (e Entries) Len() int { return len(e) }

// At returns the i-th entry.
func (e Entries) At(i int) domain.WindowEntry { return e[i] }

// HalfWindowSlope returns the slope of the first entry newer than check.
// If no entry is newer than check, the newest entry's slope is returned.
// Entries must be ordered by TimestampMs ASC.
// Returns ErrNoSlopeData if the sequence is empty.
func HalfWindowSlope(check int64, entries EntrySequence) (float64, error) {
	n := entries.Len()
	if n == 0 {
		return 0, ErrNoSlopeData
	}

	i := sort.Search(n, func(i int) bool {
		return entries.At(i).TimestampMs > check
	})
	if i == n {
		i = n - 1
	}

	return entries.At(i).Slope, nil
}
