package reporting

import (
	"context"
	"sort"
	"time"

	"trendline-lab/internal/domain"
	"trendline-lab/internal/metrics"
	"trendline-lab/internal/storage"
	"trendline-lab/internal/verification"
)

// Generator produces reports from stored entries.
type Generator struct {
	entryStore storage.EntryStore
	now        func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(entryStore storage.EntryStore) *Generator {
	return &Generator{
		entryStore: entryStore,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Options selects what a report covers.
type Options struct {
	Instruments    []string
	From, To       int64 // inclusive, Unix ms
	WindowLengthMs int64

	// Verification is attached as-is.
	Verification *verification.VerificationReport
}

// Generate builds a report over the entries of opts.Instruments within [From, To].
func (g *Generator) Generate(ctx context.Context, opts Options) (*Report, error) {
	var records []*domain.EntryRecord
	for _, inst := range opts.Instruments {
		recs, err := g.entryStore.GetByTimeRange(ctx, inst, opts.From, opts.To)
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}

	sessions := summarizeSessions(records)

	return &Report{
		GeneratedAt:    g.now(),
		WindowLengthMs: opts.WindowLengthMs,
		DataSummary:    dataSummary(sessions),
		Sessions:       sessions,
		Verification:   opts.Verification,
	}, nil
}

// summarizeSessions groups records by session. Records of a session are expected in seq order.
func summarizeSessions(records []*domain.EntryRecord) []SessionRow {
	type acc struct {
		row    SessionRow
		slopes []float64
	}

	bySession := make(map[string]*acc)
	var order []string
	for _, r := range records {
		a, ok := bySession[r.SessionID]
		if !ok {
			a = &acc{row: SessionRow{
				Instrument:       r.Entry.Instrument,
				SessionID:        r.SessionID,
				FirstTimestampMs: r.Entry.TimestampMs,
				WindowOrigin:     r.Entry.WindowOrigin,
			}}
			bySession[r.SessionID] = a
			order = append(order, r.SessionID)
		}

		e := r.Entry
		a.row.Entries++
		if e.TimestampMs < a.row.FirstTimestampMs {
			a.row.FirstTimestampMs = e.TimestampMs
		}
		if e.TimestampMs >= a.row.LastTimestampMs {
			a.row.LastTimestampMs = e.TimestampMs
			a.row.LastPrice = e.Price
			a.row.LastFittedValue = e.FittedValue
			a.row.LastSlope = e.Slope
			a.row.LastHalfWindowSlope = e.HalfWindowSlope
		}
		if e.HasFiniteFit() {
			a.slopes = append(a.slopes, e.Slope)
		} else {
			a.row.DegenerateEntries++
		}
	}

	rows := make([]SessionRow, 0, len(order))
	for _, id := range order {
		a := bySession[id]
		a.row.Slope = metrics.Compute(a.slopes)
		rows = append(rows, a.row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Instrument != rows[j].Instrument {
			return rows[i].Instrument < rows[j].Instrument
		}
		if rows[i].FirstTimestampMs != rows[j].FirstTimestampMs {
			return rows[i].FirstTimestampMs < rows[j].FirstTimestampMs
		}
		return rows[i].SessionID < rows[j].SessionID
	})

	return rows
}

func dataSummary(rows []SessionRow) DataSummary {
	var s DataSummary
	instruments := make(map[string]struct{})
	for i, r := range rows {
		instruments[r.Instrument] = struct{}{}
		s.TotalEntries += r.Entries
		s.DegenerateEntries += r.DegenerateEntries
		if i == 0 || r.FirstTimestampMs < s.DateRangeStart {
			s.DateRangeStart = r.FirstTimestampMs
		}
		if i == 0 || r.LastTimestampMs > s.DateRangeEnd {
			s.DateRangeEnd = r.LastTimestampMs
		}
	}
	s.Instruments = len(instruments)
	s.Sessions = len(rows)
	return s
}
