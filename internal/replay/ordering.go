package replay

import (
	"sort"

	"trendline-lab/internal/domain"
)

// SortTicks orders ticks by (timestamp ASC, instrument ASC).
// The sort is stable, so ticks with an equal key keep their stored order.
func SortTicks(ticks []*domain.Tick) {
	sort.SliceStable(ticks, func(i, j int) bool {
		return compareTicks(ticks[i], ticks[j]) < 0
	})
}

// MergeTicks combines the tick histories of several instruments into one sorted stream.
// Instruments are visited in sorted order so that the merge does not depend on map iteration.
func MergeTicks(byInstrument map[string][]*domain.Tick) []*domain.Tick {
	instruments := make([]string, 0, len(byInstrument))
	total := 0
	for inst, ticks := range byInstrument {
		instruments = append(instruments, inst)
		total += len(ticks)
	}
	sort.Strings(instruments)

	merged := make([]*domain.Tick, 0, total)
	for _, inst := range instruments {
		merged = append(merged, byInstrument[inst]...)
	}

	SortTicks(merged)
	return merged
}

// compareTicks returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
//
// Order: (timestamp ASC, instrument ASC)
func compareTicks(a, b *domain.Tick) int {
	if a.TimestampMs != b.TimestampMs {
		if a.TimestampMs < b.TimestampMs {
			return -1
		}
		return 1
	}
	if a.Instrument != b.Instrument {
		if a.Instrument < b.Instrument {
			return -1
		}
		return 1
	}
	return 0
}
