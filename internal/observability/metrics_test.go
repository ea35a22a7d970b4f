package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordAdvance(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.RecordAdvance("ETHUSDT", 3, 2, 1, 10, 4, time.Millisecond)
	m.RecordAdvance("ETHUSDT", 1, 0, 0, 11, 0, time.Millisecond)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.EntriesAppended.WithLabelValues("ETHUSDT")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EntriesEvicted.WithLabelValues("ETHUSDT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EntriesTrimmed.WithLabelValues("ETHUSDT")))
	assert.Equal(t, 11.0, testutil.ToFloat64(m.WindowSize.WithLabelValues("ETHUSDT")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RetainedEntries.WithLabelValues("ETHUSDT")))
}

func TestMetrics_RecordSinkWrite(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.RecordSinkWrite("redis", time.Millisecond, nil)
	m.RecordSinkWrite("redis", time.Millisecond, errors.New("boom"))
	m.RecordSinkWrite("redis", time.Millisecond, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SinkWrites.WithLabelValues("redis")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SinkErrors.WithLabelValues("redis")))
}

func TestMetrics_TickCounters(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.RecordTickReceived("X", 5000)
	m.RecordTickDropped("X", ReasonOutOfOrder)
	m.RecordStreamReset("X", ReasonInvariant)
	m.RecordDegenerateFit("X")
	m.RecordMalformedPayload()
	m.RecordReconnect("ws://feed")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TicksReceived.WithLabelValues("X")))
	assert.Equal(t, 5000.0, testutil.ToFloat64(m.LastTickTimestamp.WithLabelValues("X")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TicksDropped.WithLabelValues("X", ReasonOutOfOrder)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StreamResets.WithLabelValues("X", ReasonInvariant)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DegenerateFits.WithLabelValues("X")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MalformedPayloads))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WSReconnects.WithLabelValues("ws://feed")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordTickReceived("X", 1)
		m.RecordTickDropped("X", ReasonMalformed)
		m.RecordAdvance("X", 1, 1, 1, 1, 1, time.Second)
		m.RecordSinkWrite("s", time.Second, nil)
		m.RecordStreamReset("X", ReasonInvariant)
	})
}

func TestHandlerFor(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)
	m.RecordTickReceived("ETHUSDT", 1)

	rec := httptest.NewRecorder()
	HandlerFor(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `test_ingestion_ticks_received_total{instrument="ETHUSDT"} 1`))
}
