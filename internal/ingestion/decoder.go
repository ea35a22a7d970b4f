package ingestion

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"trendline-lab/internal/domain"
)

// ErrMalformedTick is returned when a payload cannot be turned into ticks.
var ErrMalformedTick = errors.New("malformed tick payload")

var (
	maxTimestamp = decimal.NewFromInt(math.MaxInt64)
	minTimestamp = decimal.NewFromInt(math.MinInt64)
)

// rawTick is the wire form of one tick.
// Price and timestamp may be JSON strings or numbers.
type rawTick struct {
	Instrument string              `json:"instrument"`
	Price      decimal.NullDecimal `json:"price"`
	Timestamp  decimal.NullDecimal `json:"timestamp"`
}

// DecodeTicks parses a JSON object or array of objects into ticks, keeping payload order.
// Ticks without an instrument get defaultInstrument.
// Any invalid element fails the whole payload with ErrMalformedTick.
func DecodeTicks(data []byte, defaultInstrument string) ([]domain.Tick, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedTick)
	}

	var raws []rawTick
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedTick, err)
		}
	case '{':
		var raw rawTick
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedTick, err)
		}
		raws = []rawTick{raw}
	default:
		return nil, fmt.Errorf("%w: expected object or array", ErrMalformedTick)
	}

	ticks := make([]domain.Tick, 0, len(raws))
	for i, raw := range raws {
		tick, err := raw.toTick(defaultInstrument)
		if err != nil {
			return nil, fmt.Errorf("%w: element %d: %v", ErrMalformedTick, i, err)
		}
		ticks = append(ticks, tick)
	}

	return ticks, nil
}

func (r rawTick) toTick(defaultInstrument string) (domain.Tick, error) {
	if !r.Price.Valid {
		return domain.Tick{}, errors.New("missing price")
	}
	if !r.Timestamp.Valid {
		return domain.Tick{}, errors.New("missing timestamp")
	}

	if r.Price.Decimal.IsNegative() {
		return domain.Tick{}, fmt.Errorf("negative price %s", r.Price.Decimal)
	}
	price, _ := r.Price.Decimal.Float64()
	if math.IsInf(price, 0) {
		return domain.Tick{}, fmt.Errorf("price %s out of range", r.Price.Decimal)
	}

	ts := r.Timestamp.Decimal
	if !ts.IsInteger() {
		return domain.Tick{}, fmt.Errorf("timestamp %s is not whole milliseconds", ts)
	}
	if ts.GreaterThan(maxTimestamp) || ts.LessThan(minTimestamp) {
		return domain.Tick{}, fmt.Errorf("timestamp %s out of range", ts)
	}

	instrument := r.Instrument
	if instrument == "" {
		instrument = defaultInstrument
	}

	return domain.Tick{
		Instrument:  instrument,
		Price:       price,
		TimestampMs: ts.IntPart(),
	}, nil
}
