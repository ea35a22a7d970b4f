package ingestion

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendline-lab/internal/domain"
)

func TestDecodeTicks_StringFields(t *testing.T) {
	ticks, err := DecodeTicks([]byte(`[{"price": "100", "timestamp": "0"}, {"price": "200.5", "timestamp": "10000"}]`), "BTC-USD")
	require.NoError(t, err)

	assert.Equal(t, []domain.Tick{
		{Instrument: "BTC-USD", Price: 100, TimestampMs: 0},
		{Instrument: "BTC-USD", Price: 200.5, TimestampMs: 10000},
	}, ticks)
}

func TestDecodeTicks_NumericFields(t *testing.T) {
	ticks, err := DecodeTicks([]byte(`{"instrument": "ETH-USD", "price": 3120.25, "timestamp": 1700000000000}`), "BTC-USD")
	require.NoError(t, err)
	require.Len(t, ticks, 1)

	assert.Equal(t, "ETH-USD", ticks[0].Instrument, "payload instrument wins over default")
	assert.Equal(t, 3120.25, ticks[0].Price)
	assert.Equal(t, int64(1700000000000), ticks[0].TimestampMs)
}

func TestDecodeTicks_KeepsPayloadOrder(t *testing.T) {
	ticks, err := DecodeTicks([]byte(`[{"price":"3","timestamp":"30"},{"price":"1","timestamp":"10"}]`), "X")
	require.NoError(t, err)
	require.Len(t, ticks, 2)

	assert.Equal(t, int64(30), ticks[0].TimestampMs)
	assert.Equal(t, int64(10), ticks[1].TimestampMs)
}

func TestDecodeTicks_EmptyArray(t *testing.T) {
	ticks, err := DecodeTicks([]byte(`[]`), "X")
	require.NoError(t, err)
	assert.Empty(t, ticks)
}

func TestDecodeTicks_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"not json", "garbage"},
		{"scalar", `42`},
		{"missing price", `{"timestamp": "0"}`},
		{"missing timestamp", `{"price": "1"}`},
		{"null price", `{"price": null, "timestamp": "0"}`},
		{"unparseable price", `{"price": "abc", "timestamp": "0"}`},
		{"negative price", `{"price": "-1", "timestamp": "0"}`},
		{"fractional timestamp", `{"price": "1", "timestamp": "10.5"}`},
		{"timestamp out of range", `{"price": "1", "timestamp": "99999999999999999999"}`},
		{"bad element in array", `[{"price": "1", "timestamp": "0"}, {"price": "x", "timestamp": "1"}]`},
		{"truncated", `[{"price": "1", "timestamp": "0"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticks, err := DecodeTicks([]byte(tt.payload), "X")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedTick), "got %v", err)
			assert.Nil(t, ticks)
		})
	}
}
