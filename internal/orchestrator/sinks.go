package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"trendline-lab/internal/domain"
	"trendline-lab/internal/storage"
)

// Sink names used in logs and metrics.
const (
	SinkTicks   = "ticks"
	SinkEntries = "entries"
	SinkLatest  = "latest"
)

// Sinks receives accepted ticks and published records. Nil sinks are skipped.
type Sinks struct {
	Ticks   storage.TickStore
	Entries storage.EntryStore
	Latest  storage.LatestEntryStore
}

// RetryConfig bounds the retries of one sink write.
type RetryConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxRetries      uint64
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.InitialInterval <= 0 {
		c.InitialInterval = 100 * time.Millisecond
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 2 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 5
	}
	return c
}

func (c RetryConfig) backoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialInterval
	b.MaxInterval = c.MaxInterval
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, c.MaxRetries), ctx)
}

// publish writes the accepted tick and its records to every configured sink.
// All sinks are attempted; the joined errors are returned.
func (o *Orchestrator) publish(ctx context.Context, tick domain.Tick, records []*domain.EntryRecord) error {
	var errs []error

	if o.sinks.Ticks != nil {
		t := tick
		errs = append(errs, o.write(ctx, SinkTicks, func(ctx context.Context) error {
			return o.sinks.Ticks.InsertBulk(ctx, []*domain.Tick{&t})
		}))
	}

	if len(records) == 0 {
		return errors.Join(errs...)
	}

	if o.sinks.Entries != nil {
		errs = append(errs, o.write(ctx, SinkEntries, func(ctx context.Context) error {
			return o.sinks.Entries.InsertBulk(ctx, records)
		}))
	}

	if o.sinks.Latest != nil {
		latest := records[len(records)-1]
		errs = append(errs, o.write(ctx, SinkLatest, func(ctx context.Context) error {
			return o.sinks.Latest.SaveLatest(ctx, latest)
		}))
	}

	return errors.Join(errs...)
}

// write runs fn with retries. Permanent storage errors are not retried.
func (o *Orchestrator) write(ctx context.Context, sink string, fn func(ctx context.Context) error) error {
	start := time.Now()

	operation := func() error {
		err := fn(ctx)
		if err != nil && storage.IsPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		o.logger.Warn("sink write failed, retrying",
			zap.String("sink", sink),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)
	}

	err := backoff.RetryNotify(operation, o.retry.backoff(ctx), notify)
	o.metrics.RecordSinkWrite(sink, time.Since(start), err)
	if err != nil {
		o.logger.Error("sink write failed",
			zap.String("sink", sink),
			zap.Error(err),
		)
	}
	return err
}
