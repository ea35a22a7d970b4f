// Package orchestrator drives one regression window per instrument.
// It coordinates: tick source → warm-up → Initialize/Advance → sinks
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"trendline-lab/internal/domain"
	"trendline-lab/internal/ingestion"
	"trendline-lab/internal/observability"
	"trendline-lab/internal/regression"
)

// DefaultWarmupTicks is the batch size handed to Initialize when none is configured.
const DefaultWarmupTicks = 2

// Options for creating Orchestrator.
type Options struct {
	// WindowLengthMs is the regression window length passed to every Advance call.
	WindowLengthMs int64
	// WarmupTicks is the number of ticks buffered before a stream is initialized.
	WarmupTicks int
	// Buffer is the capacity of the channel between the source and the engine loop.
	Buffer int

	// Optional sinks
	Sinks Sinks
	Retry RetryConfig

	Logger  *zap.Logger
	Metrics *observability.Metrics

	// NewSessionID generates stream session ids. Defaults to random UUIDs.
	NewSessionID func() string
}

// Orchestrator owns the per-instrument streams.
// OnTick calls are serialized; the read methods may be called from any goroutine.
type Orchestrator struct {
	windowLengthMs int64
	warmupTicks    int
	buffer         int
	sinks          Sinks
	retry          RetryConfig
	logger         *zap.Logger
	metrics        *observability.Metrics
	newSessionID   func() string

	// engineMu serializes engine work; mu guards streams and their published views.
	engineMu sync.Mutex
	mu       sync.RWMutex
	streams  map[string]*stream
}

// New creates a new Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.WindowLengthMs <= 0 {
		return nil, fmt.Errorf("%w: got %d", regression.ErrInvalidWindowLength, opts.WindowLengthMs)
	}
	if opts.WarmupTicks <= 0 {
		opts.WarmupTicks = DefaultWarmupTicks
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 1024
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.NewSessionID == nil {
		opts.NewSessionID = uuid.NewString
	}

	return &Orchestrator{
		windowLengthMs: opts.WindowLengthMs,
		warmupTicks:    opts.WarmupTicks,
		buffer:         opts.Buffer,
		sinks:          opts.Sinks,
		retry:          opts.Retry.withDefaults(),
		logger:         opts.Logger,
		metrics:        opts.Metrics,
		newSessionID:   opts.NewSessionID,
		streams:        make(map[string]*stream),
	}, nil
}

// Run consumes src until it is exhausted or ctx is done.
// Sink failures are logged and do not stop the loop.
func (o *Orchestrator) Run(ctx context.Context, src ingestion.TickSource) error {
	ticks := make(chan domain.Tick, o.buffer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(ticks)
		return src.Stream(gctx, ticks)
	})
	g.Go(func() error {
		for tick := range ticks {
			if err := o.OnTick(gctx, tick); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				o.logger.Error("tick not fully published",
					zap.String("instrument", tick.Instrument),
					zap.Int64("timestamp_ms", tick.TimestampMs),
					zap.Error(err),
				)
			}
		}
		return nil
	})

	return g.Wait()
}

// OnTick feeds one tick into its instrument's stream and publishes the resulting entries.
//
// Out-of-order ticks are dropped. An invariant violation discards the window and
// starts a new session warming up from the offending tick. Only sink and context
// errors are returned.
func (o *Orchestrator) OnTick(ctx context.Context, tick domain.Tick) error {
	o.engineMu.Lock()
	defer o.engineMu.Unlock()

	o.metrics.RecordTickReceived(tick.Instrument, tick.TimestampMs)

	s := o.stream(tick.Instrument)

	var (
		records  []*domain.EntryRecord
		accepted bool
	)
	s.windowMu.Lock()
	if s.window == nil {
		records, accepted = o.warmup(s, tick)
	} else {
		records, accepted = o.advance(s, tick)
	}
	s.windowMu.Unlock()
	if !accepted {
		return nil
	}

	o.publishView(s)

	return o.publish(ctx, tick, records)
}

// warmup buffers tick and initializes the window once enough ticks are pending.
// It reports false if the tick was dropped.
func (o *Orchestrator) warmup(s *stream, tick domain.Tick) ([]*domain.EntryRecord, bool) {
	if n := len(s.pending); n > 0 && tick.TimestampMs < s.pending[n-1].TimestampMs {
		o.dropOutOfOrder(s, tick, s.pending[n-1].TimestampMs)
		return nil, false
	}
	s.pending = append(s.pending, tick)
	if len(s.pending) < o.warmupTicks {
		return nil, true
	}

	records := s.initialize()
	if len(records) == 0 {
		return nil, true
	}
	if last := records[len(records)-1].Entry; !last.HasFiniteFit() {
		o.metrics.RecordDegenerateFit(s.instrument)
	}
	o.logger.Info("stream initialized",
		zap.String("instrument", s.instrument),
		zap.String("session_id", s.sessionID),
		zap.Int("entries", len(records)),
	)
	return records, true
}

func (o *Orchestrator) advance(s *stream, tick domain.Tick) ([]*domain.EntryRecord, bool) {
	start := time.Now()
	res, err := s.window.Advance([]domain.Tick{tick}, o.windowLengthMs)
	switch {
	case errors.Is(err, regression.ErrOutOfOrderTick):
		last, _ := s.window.Last()
		o.dropOutOfOrder(s, tick, last.TimestampMs)
		return nil, false

	case errors.Is(err, regression.ErrInvariantViolation):
		o.metrics.RecordStreamReset(s.instrument, observability.ReasonInvariant)
		o.logger.Error("regression window invalidated, resetting stream",
			zap.String("instrument", s.instrument),
			zap.String("session_id", s.sessionID),
			zap.Int64("timestamp_ms", tick.TimestampMs),
			zap.Error(err),
		)
		s.reset(o.newSessionID())
		return o.warmup(s, tick)

	case err != nil:
		// Remaining precondition errors cannot occur with a non-empty window
		// and a validated window length.
		o.logger.Error("advance rejected tick",
			zap.String("instrument", s.instrument),
			zap.Error(err),
		)
		return nil, false
	}

	o.metrics.RecordAdvance(s.instrument, res.Appended, res.Evicted, res.Trimmed,
		s.window.Len(), res.Retained, time.Since(start))

	entry, _ := s.window.Last()
	if !entry.HasFiniteFit() {
		o.metrics.RecordDegenerateFit(s.instrument)
		o.logger.Debug("degenerate fit",
			zap.String("instrument", s.instrument),
			zap.Int64("timestamp_ms", entry.TimestampMs),
		)
	}

	return []*domain.EntryRecord{s.record(entry)}, true
}

func (o *Orchestrator) dropOutOfOrder(s *stream, tick domain.Tick, newest int64) {
	s.dropped++
	o.publishView(s)
	o.metrics.RecordTickDropped(s.instrument, observability.ReasonOutOfOrder)
	o.logger.Warn("dropping out-of-order tick",
		zap.String("instrument", s.instrument),
		zap.Int64("timestamp_ms", tick.TimestampMs),
		zap.Int64("newest_ms", newest),
	)
}

// stream returns the stream for instrument, creating it on first use.
func (o *Orchestrator) stream(instrument string) *stream {
	o.mu.Lock()
	defer o.mu.Unlock()

	s, ok := o.streams[instrument]
	if !ok {
		s = newStream(instrument, o.newSessionID())
		o.streams[instrument] = s
	}
	return s
}
