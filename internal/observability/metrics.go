// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Drop and reset reasons used as label values.
const (
	ReasonOutOfOrder = "out_of_order"
	ReasonMalformed  = "malformed"
	ReasonInvariant  = "invariant_violation"
)

// Metrics holds all Prometheus metrics for the application.
// All methods are no-ops on a nil *Metrics.
type Metrics struct {
	// Ingestion metrics
	TicksReceived     *prometheus.CounterVec
	TicksDropped      *prometheus.CounterVec
	MalformedPayloads prometheus.Counter
	WSReconnects      *prometheus.CounterVec

	// Engine metrics
	EntriesAppended *prometheus.CounterVec
	EntriesEvicted  *prometheus.CounterVec
	EntriesTrimmed  *prometheus.CounterVec
	DegenerateFits  *prometheus.CounterVec
	StreamResets    *prometheus.CounterVec
	WindowSize      *prometheus.GaugeVec
	RetainedEntries *prometheus.GaugeVec
	AdvanceDuration *prometheus.HistogramVec

	// Sink metrics
	SinkWrites        *prometheus.CounterVec
	SinkErrors        *prometheus.CounterVec
	SinkWriteDuration *prometheus.HistogramVec

	// Health metrics
	LastTickTimestamp *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg selects prometheus.DefaultRegisterer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "trendline_lab"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Ingestion metrics
		TicksReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "ticks_received_total",
			Help:      "Total number of ticks received by instrument",
		}, []string{"instrument"}),
		TicksDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "ticks_dropped_total",
			Help:      "Total number of ticks dropped by instrument and reason",
		}, []string{"instrument", "reason"}),
		MalformedPayloads: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "malformed_payloads_total",
			Help:      "Total number of payloads that could not be decoded",
		}),
		WSReconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "ws_reconnects_total",
			Help:      "Total number of websocket reconnect attempts by endpoint",
		}, []string{"endpoint"}),

		// Engine metrics
		EntriesAppended: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "regression",
			Name:      "entries_appended_total",
			Help:      "Total number of window entries appended",
		}, []string{"instrument"}),
		EntriesEvicted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "regression",
			Name:      "entries_evicted_total",
			Help:      "Total number of window entries evicted for age",
		}, []string{"instrument"}),
		EntriesTrimmed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "regression",
			Name:      "entries_trimmed_total",
			Help:      "Total number of window entries dropped by the pre-trim",
		}, []string{"instrument"}),
		DegenerateFits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "regression",
			Name:      "degenerate_fits_total",
			Help:      "Total number of entries with non-finite regression outputs",
		}, []string{"instrument"}),
		StreamResets: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "regression",
			Name:      "stream_resets_total",
			Help:      "Total number of stream resets by reason",
		}, []string{"instrument", "reason"}),
		WindowSize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "regression",
			Name:      "window_size",
			Help:      "Current number of active window entries",
		}, []string{"instrument"}),
		RetainedEntries: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "regression",
			Name:      "retained_entries",
			Help:      "Current number of entries retained for the open hour bucket",
		}, []string{"instrument"}),
		AdvanceDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "regression",
			Name:      "advance_duration_seconds",
			Help:      "Window advance latency in seconds",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}, []string{"instrument"}),

		// Sink metrics
		SinkWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "writes_total",
			Help:      "Total number of successful sink writes",
		}, []string{"sink"}),
		SinkErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "errors_total",
			Help:      "Total number of sink writes that failed after retries",
		}, []string{"sink"}),
		SinkWriteDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "write_duration_seconds",
			Help:      "Sink write duration in seconds, including retries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"sink"}),

		// Health metrics
		LastTickTimestamp: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_tick_timestamp_ms",
			Help:      "Timestamp of the last tick folded into a window",
		}, []string{"instrument"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns an HTTP handler serving the metrics of gatherer.
func HandlerFor(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// RecordTickReceived increments the received tick counter.
func (m *Metrics) RecordTickReceived(instrument string, timestampMs int64) {
	if m == nil {
		return
	}
	m.TicksReceived.WithLabelValues(instrument).Inc()
	m.LastTickTimestamp.WithLabelValues(instrument).Set(float64(timestampMs))
}

// RecordTickDropped increments the dropped tick counter.
func (m *Metrics) RecordTickDropped(instrument, reason string) {
	if m == nil {
		return
	}
	m.TicksDropped.WithLabelValues(instrument, reason).Inc()
}

// RecordMalformedPayload increments the malformed payload counter.
func (m *Metrics) RecordMalformedPayload() {
	if m == nil {
		return
	}
	m.MalformedPayloads.Inc()
}

// RecordReconnect increments the websocket reconnect counter.
func (m *Metrics) RecordReconnect(endpoint string) {
	if m == nil {
		return
	}
	m.WSReconnects.WithLabelValues(endpoint).Inc()
}

// RecordAdvance records the outcome of one window update.
func (m *Metrics) RecordAdvance(instrument string, appended, evicted, trimmed, windowSize, retained int, took time.Duration) {
	if m == nil {
		return
	}
	m.EntriesAppended.WithLabelValues(instrument).Add(float64(appended))
	m.EntriesEvicted.WithLabelValues(instrument).Add(float64(evicted))
	m.EntriesTrimmed.WithLabelValues(instrument).Add(float64(trimmed))
	m.WindowSize.WithLabelValues(instrument).Set(float64(windowSize))
	m.RetainedEntries.WithLabelValues(instrument).Set(float64(retained))
	m.AdvanceDuration.WithLabelValues(instrument).Observe(took.Seconds())
}

// RecordDegenerateFit increments the non-finite fit counter.
func (m *Metrics) RecordDegenerateFit(instrument string) {
	if m == nil {
		return
	}
	m.DegenerateFits.WithLabelValues(instrument).Inc()
}

// RecordStreamReset increments the stream reset counter.
func (m *Metrics) RecordStreamReset(instrument, reason string) {
	if m == nil {
		return
	}
	m.StreamResets.WithLabelValues(instrument, reason).Inc()
}

// RecordSinkWrite records a sink write and its outcome.
func (m *Metrics) RecordSinkWrite(sink string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.SinkWriteDuration.WithLabelValues(sink).Observe(took.Seconds())
	if err != nil {
		m.SinkErrors.WithLabelValues(sink).Inc()
		return
	}
	m.SinkWrites.WithLabelValues(sink).Inc()
}
