package reporting

import (
	"time"

	"trendline-lab/internal/metrics"
	"trendline-lab/internal/verification"
)

// Report summarizes the published regression sessions of a time range.
type Report struct {
	// Metadata
	GeneratedAt    time.Time
	WindowLengthMs int64

	// Data Summary
	DataSummary DataSummary

	// Sessions (sorted by instrument, first timestamp, session_id)
	Sessions []SessionRow

	// Replay verification, nil when not requested
	Verification *verification.VerificationReport
}

// DataSummary contains data description.
type DataSummary struct {
	Instruments       int
	Sessions          int
	TotalEntries      int
	DegenerateEntries int
	DateRangeStart    int64 // Unix ms
	DateRangeEnd      int64 // Unix ms
}

// SessionRow represents one row in the sessions table.
type SessionRow struct {
	Instrument        string
	SessionID         string
	Entries           int
	DegenerateEntries int   // entries without a finite fit
	FirstTimestampMs  int64 // Unix ms
	LastTimestampMs   int64 // Unix ms
	WindowOrigin      int64 // Unix ms

	// Outputs of the newest entry
	LastPrice           float64
	LastFittedValue     float64
	LastSlope           float64 // per ms
	LastHalfWindowSlope float64 // per ms

	// Distribution of the slopes with a finite fit
	Slope metrics.Distribution
}
