package domain

// Tick is one price observation in the input stream.
// Ticks of one instrument arrive with non-decreasing TimestampMs.
type Tick struct {
	Instrument  string  // instrument identifier, e.g. "ETHUSDT"
	Price       float64 // traded price
	TimestampMs int64   // Unix timestamp in milliseconds
}

// Hour bucket width in milliseconds.
const HourMs int64 = 3_600_000
