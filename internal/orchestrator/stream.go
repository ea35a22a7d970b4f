package orchestrator

import (
	"sort"
	"sync"

	"trendline-lab/internal/domain"
	"trendline-lab/internal/regression"
)

// StreamSnapshot describes one instrument stream as last published.
type StreamSnapshot struct {
	Instrument      string              `json:"instrument"`
	SessionID       string              `json:"session_id"`
	WarmingUp       bool                `json:"warming_up"`
	PendingTicks    int                 `json:"pending_ticks"`
	ActiveEntries   int                 `json:"active_entries"`
	RetainedEntries int                 `json:"retained_entries"`
	Published       int64               `json:"published"` // records published in this session
	Dropped         int64               `json:"dropped"`
	Resets          int64               `json:"resets"`
	Latest          *domain.WindowEntry `json:"latest,omitempty"`
}

// stream is the engine state of one instrument.
// Engine fields are owned by the goroutine holding engineMu. window is also
// written under windowMu so Entries can read it; view is replaced under mu.
type stream struct {
	instrument string
	sessionID  string
	seq        int64
	windowMu   sync.RWMutex
	window     *regression.Window
	pending    []domain.Tick
	dropped    int64
	resets     int64

	view StreamSnapshot
}

func newStream(instrument, sessionID string) *stream {
	return &stream{
		instrument: instrument,
		sessionID:  sessionID,
		view: StreamSnapshot{
			Instrument: instrument,
			SessionID:  sessionID,
			WarmingUp:  true,
		},
	}
}

// initialize builds the window from the pending ticks and returns the records of
// every entry. It returns nil if the pending batch is rejected.
func (s *stream) initialize() []*domain.EntryRecord {
	w, err := regression.Initialize(s.pending)
	if err != nil {
		// Pending ticks are validated as they are buffered.
		s.pending = nil
		return nil
	}
	s.window = w
	s.pending = nil

	entries := w.ActiveEntries()
	records := make([]*domain.EntryRecord, len(entries))
	for i, e := range entries {
		records[i] = s.record(e)
	}
	return records
}

// record assigns the next sequence number of the session to e.
func (s *stream) record(e domain.WindowEntry) *domain.EntryRecord {
	rec := &domain.EntryRecord{SessionID: s.sessionID, Seq: s.seq, Entry: e}
	s.seq++
	return rec
}

// reset discards the window and starts a new session.
func (s *stream) reset(sessionID string) {
	s.sessionID = sessionID
	s.seq = 0
	s.window = nil
	s.pending = nil
	s.resets++
}

func (s *stream) snapshot() StreamSnapshot {
	view := StreamSnapshot{
		Instrument:   s.instrument,
		SessionID:    s.sessionID,
		WarmingUp:    s.window == nil,
		PendingTicks: len(s.pending),
		Published:    s.seq,
		Dropped:      s.dropped,
		Resets:       s.resets,
	}
	if s.window == nil {
		return view
	}

	view.ActiveEntries = s.window.Len()
	view.RetainedEntries = s.window.RetainedLen()
	if last, ok := s.window.Last(); ok {
		view.Latest = &last
	}
	return view
}

// publishView makes the current state of s visible to readers.
func (o *Orchestrator) publishView(s *stream) {
	view := s.snapshot()

	o.mu.Lock()
	s.view = view
	o.mu.Unlock()
}

// Streams returns a snapshot of every stream, sorted by instrument.
func (o *Orchestrator) Streams() []StreamSnapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()

	result := make([]StreamSnapshot, 0, len(o.streams))
	for _, s := range o.streams {
		result = append(result, s.view)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Instrument < result[j].Instrument
	})
	return result
}

// Snapshot returns the snapshot of one stream.
func (o *Orchestrator) Snapshot(instrument string) (StreamSnapshot, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	s, ok := o.streams[instrument]
	if !ok {
		return StreamSnapshot{}, false
	}
	return s.view, true
}

// Entries returns a copy of the current entry sequence of one stream,
// retained prefix first. It is empty while the stream is warming up.
// The copy is taken on each call; OnTick never materializes it.
func (o *Orchestrator) Entries(instrument string) ([]domain.WindowEntry, bool) {
	o.mu.RLock()
	s, ok := o.streams[instrument]
	o.mu.RUnlock()
	if !ok {
		return nil, false
	}

	s.windowMu.RLock()
	defer s.windowMu.RUnlock()
	if s.window == nil {
		return []domain.WindowEntry{}, true
	}
	return s.window.Entries(), true
}
