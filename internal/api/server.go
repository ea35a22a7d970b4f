// Package api exposes the live regression streams over HTTP.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"trendline-lab/internal/domain"
	"trendline-lab/internal/orchestrator"
	"trendline-lab/internal/storage"
)

// StreamReader is the read side of the orchestrator.
type StreamReader interface {
	Streams() []orchestrator.StreamSnapshot
	Snapshot(instrument string) (orchestrator.StreamSnapshot, bool)
	Entries(instrument string) ([]domain.WindowEntry, bool)
}

// Options for creating Server.
type Options struct {
	Streams StreamReader

	// Optional stores. Routes backed by a missing store answer 501.
	Latest  storage.LatestEntryStore
	History storage.EntryStore

	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler

	Logger *zap.Logger
}

// Server serves the read API.
type Server struct {
	router  *gin.Engine
	streams StreamReader
	latest  storage.LatestEntryStore
	history storage.EntryStore
	logger  *zap.Logger
}

// New creates a server with all routes registered.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Server{
		router:  gin.New(),
		streams: opts.Streams,
		latest:  opts.Latest,
		history: opts.History,
		logger:  opts.Logger,
	}

	s.router.Use(gin.Recovery())
	s.router.Use(requestLogger(s.logger))

	s.router.GET("/health", s.healthCheck)
	if opts.MetricsHandler != nil {
		s.router.GET("/metrics", gin.WrapH(opts.MetricsHandler))
	}

	v1 := s.router.Group("/v1")
	{
		v1.GET("/streams", s.listStreams)
		v1.GET("/streams/:instrument", s.getStream)
		v1.GET("/streams/:instrument/entries", s.getEntries)
		v1.GET("/streams/:instrument/latest", s.getLatest)
		v1.GET("/streams/:instrument/recent", s.getRecent)
		v1.GET("/history/:instrument", s.getHistory)
	}

	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"streams": len(s.streams.Streams()),
	})
}

func (s *Server) listStreams(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"streams": s.streams.Streams()})
}

func (s *Server) getStream(c *gin.Context) {
	snap, ok := s.streams.Snapshot(c.Param("instrument"))
	if !ok {
		notFound(c, "unknown instrument")
		return
	}
	c.JSON(http.StatusOK, snap)
}

// getEntries returns the live entry sequence, retained prefix first.
// ?limit=N keeps only the newest N entries.
func (s *Server) getEntries(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}

	entries, found := s.streams.Entries(c.Param("instrument"))
	if !found {
		notFound(c, "unknown instrument")
		return
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	c.JSON(http.StatusOK, gin.H{
		"instrument": c.Param("instrument"),
		"count":      len(entries),
		"entries":    entries,
	})
}

// getLatest prefers the latest-entry store and falls back to the live stream.
func (s *Server) getLatest(c *gin.Context) {
	instrument := c.Param("instrument")

	if s.latest != nil {
		rec, err := s.latest.FetchLatest(c.Request.Context(), instrument)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, rec)
			return
		case !errors.Is(err, storage.ErrNotFound):
			s.internalError(c, "fetch latest", err)
			return
		}
	}

	snap, ok := s.streams.Snapshot(instrument)
	if !ok || snap.Latest == nil {
		notFound(c, "no entries for instrument")
		return
	}
	c.JSON(http.StatusOK, domain.EntryRecord{
		SessionID: snap.SessionID,
		Seq:       snap.Published - 1,
		Entry:     *snap.Latest,
	})
}

func (s *Server) getRecent(c *gin.Context) {
	if s.latest == nil {
		notImplemented(c)
		return
	}

	limit, ok := queryInt(c, "limit", 100)
	if !ok {
		return
	}

	records, err := s.latest.FetchRecent(c.Request.Context(), c.Param("instrument"), limit)
	if err != nil {
		s.internalError(c, "fetch recent", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(records), "records": records})
}

// getHistory returns published records within [from, to] in milliseconds.
func (s *Server) getHistory(c *gin.Context) {
	if s.history == nil {
		notImplemented(c)
		return
	}

	from, ok := queryInt64(c, "from", 0)
	if !ok {
		return
	}
	to, ok := queryInt64(c, "to", time.Now().UnixMilli())
	if !ok {
		return
	}
	if from > to {
		badRequest(c, "from must not be after to")
		return
	}

	records, err := s.history.GetByTimeRange(c.Request.Context(), c.Param("instrument"), from, to)
	if err != nil {
		s.internalError(c, "fetch history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(records), "records": records})
}

func (s *Server) internalError(c *gin.Context, op string, err error) {
	s.logger.Error("request failed",
		zap.String("op", op),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func notFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, gin.H{"error": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func notImplemented(c *gin.Context) {
	c.JSON(http.StatusNotImplemented, gin.H{"error": "store not configured"})
}

func queryInt(c *gin.Context, key string, def int) (int, bool) {
	v, ok := queryInt64(c, key, int64(def))
	if ok && v < 0 {
		badRequest(c, key+" must not be negative")
		return 0, false
	}
	return int(v), ok
}

func queryInt64(c *gin.Context, key string, def int64) (int64, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		badRequest(c, "invalid "+key)
		return 0, false
	}
	return v, true
}

// requestLogger logs every request at debug level and server errors at error level.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Error("http request", fields...)
			return
		}
		logger.Debug("http request", fields...)
	}
}
