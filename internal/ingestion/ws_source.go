package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"trendline-lab/internal/domain"
	"trendline-lab/internal/observability"
)

// WSSourceConfig configures the websocket tick feed.
type WSSourceConfig struct {
	// Instrument is assigned to ticks whose payload has none.
	Instrument string
	// Subscribe is sent as a text message after every successful connect, if set.
	Subscribe []byte
	// HandshakeTimeout bounds the websocket handshake.
	HandshakeTimeout time.Duration
	// ReadTimeout is the longest silence tolerated before reconnecting.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// InitialBackoff is the first delay before reconnecting.
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between reconnect attempts.
	MaxBackoff time.Duration
	// MaxElapsed stops reconnecting after this long without a successful connect. Zero retries forever.
	MaxElapsed time.Duration
}

// DefaultWSConfig returns default websocket feed configuration.
func DefaultWSConfig() WSSourceConfig {
	return WSSourceConfig{
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     10 * time.Second,
		PingInterval:     30 * time.Second,
		InitialBackoff:   1 * time.Second,
		MaxBackoff:       30 * time.Second,
	}
}

// WSSource streams ticks from a websocket endpoint, reconnecting with exponential backoff.
// Each text message is decoded with DecodeTicks; malformed messages are logged and skipped.
type WSSource struct {
	endpoint string
	cfg      WSSourceConfig
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewWSSource creates a websocket tick source. Zero durations in cfg take their defaults.
func NewWSSource(endpoint string, cfg WSSourceConfig, logger *zap.Logger, metrics *observability.Metrics) *WSSource {
	def := DefaultWSConfig()
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WSSource{
		endpoint: endpoint,
		cfg:      cfg,
		logger:   logger.With(zap.String("endpoint", endpoint)),
		metrics:  metrics,
	}
}

// Stream connects and sends decoded ticks to out until ctx is done or
// reconnecting gives up after MaxElapsed.
func (s *WSSource) Stream(ctx context.Context, out chan<- domain.Tick) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.InitialBackoff
	b.MaxInterval = s.cfg.MaxBackoff
	b.MaxElapsedTime = s.cfg.MaxElapsed
	b.Reset()

	attempts := 0
	operation := func() error {
		if attempts > 0 {
			s.metrics.RecordReconnect(s.endpoint)
		}
		attempts++

		conn, err := s.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}

		// A successful connect starts the delay schedule over
		b.Reset()
		s.logger.Info("websocket feed connected", zap.Int("attempt", attempts))

		err = s.session(ctx, conn, out)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		s.logger.Warn("websocket feed disconnected",
			zap.Error(err),
			zap.Duration("retry_in", wait),
		)
	}

	return backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify)
}

func (s *WSSource) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: s.cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return conn, nil
}

// session reads one connection until it fails. It always returns a non-nil error.
func (s *WSSource) session(ctx context.Context, conn *websocket.Conn, out chan<- domain.Tick) error {
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)

	// Pings keep the connection alive; cancellation unblocks the reader by closing the conn.
	go func() {
		ticker := time.NewTicker(s.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				conn.Close()
				return
			case <-ticker.C:
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.cfg.WriteTimeout))
			}
		}
	}()

	if len(s.cfg.Subscribe) > 0 {
		conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, s.cfg.Subscribe); err != nil {
			return fmt.Errorf("write subscribe: %w", err)
		}
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	})

	for {
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))

		msgType, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("websocket read: %w", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}

		ticks, err := DecodeTicks(message, s.cfg.Instrument)
		if err != nil {
			s.metrics.RecordMalformedPayload()
			s.logger.Warn("dropping malformed payload", zap.Error(err), zap.Int("bytes", len(message)))
			continue
		}

		for _, t := range ticks {
			select {
			case out <- t:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
