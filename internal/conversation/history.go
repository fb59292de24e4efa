package conversation

import (
	"fmt"
	"time"
)

// DefaultMaxHistory is used when a non-positive bound is configured.
const DefaultMaxHistory = 50

// SessionIDLayout is the time layout session identifiers are minted with.
// Lexicographic order of IDs equals chronological order.
const SessionIDLayout = "20060102_150405"

// Persister receives a full snapshot of the session after every append.
type Persister interface {
	Save(snap *Snapshot) error
}

// Snapshot is the self-contained persisted form of a session.
type Snapshot struct {
	SessionID string   `json:"session_id"`
	Records   []Record `json:"conversation_history"`
	Summary   Summary  `json:"summary"`
}

// Option configures a History.
type Option func(*History)

// WithMaxHistory bounds the log. Non-positive values select DefaultMaxHistory.
func WithMaxHistory(n int) Option {
	return func(h *History) {
		if n <= 0 {
			n = DefaultMaxHistory
		}
		h.maxHistory = n
	}
}

// WithPersister enables a synchronous full-session write after every append.
func WithPersister(p Persister) Option {
	return func(h *History) { h.persister = p }
}

// WithIDIssuer mints session IDs from ids instead of the process-wide issuer.
func WithIDIssuer(ids *IDIssuer) Option {
	return func(h *History) { h.ids = ids }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(h *History) { h.now = now }
}

// History is the bounded, insertion-ordered log of one session.
//
// History has no internal locking: at most one caller may use a given
// History at a time. Hosts serving concurrent requests must serialize
// access per session themselves.
type History struct {
	sessionID  string
	records    []Record
	maxHistory int
	persister  Persister
	ids        *IDIssuer
	now        func() time.Time
}

// New creates an empty History with a freshly minted session ID.
func New(opts ...Option) *History {
	h := &History{
		maxHistory: DefaultMaxHistory,
		ids:        defaultIssuer,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.sessionID = h.mintSessionID()
	return h
}

func (h *History) mintSessionID() string {
	return h.ids.Issue(h.now())
}

// SessionID returns the current session identifier.
func (h *History) SessionID() string { return h.sessionID }

// MaxHistory returns the configured bound.
func (h *History) MaxHistory() int { return h.maxHistory }

// Len returns the number of records currently held.
func (h *History) Len() int { return len(h.records) }

// Append records a new turn at the tail, evicting the oldest records when
// the bound is exceeded, then persists the whole session if a persister is
// configured. A persist failure is returned but the record stays in memory.
func (h *History) Append(role Role, content string, opts ...AppendOption) error {
	if !role.Valid() {
		return fmt.Errorf("append: unknown role %q", role)
	}
	rec := Record{
		Timestamp: h.now(),
		Role:      role,
		Content:   content,
		Source:    SourceUser,
	}
	for _, opt := range opts {
		opt(&rec)
	}
	// Keep timestamps non-decreasing even if the wall clock steps back.
	if n := len(h.records); n > 0 && rec.Timestamp.Before(h.records[n-1].Timestamp) {
		rec.Timestamp = h.records[n-1].Timestamp
	}

	h.records = append(h.records, rec)
	if over := len(h.records) - h.maxHistory; over > 0 {
		clear(h.records[:over])
		h.records = h.records[over:]
	}

	if h.persister == nil {
		return nil
	}
	if err := h.persister.Save(h.Snapshot()); err != nil {
		return fmt.Errorf("persist session %s: %w", h.sessionID, err)
	}
	return nil
}

// Recent returns the last n records in chronological order.
func (h *History) Recent(n int) []Record {
	if n <= 0 {
		return []Record{}
	}
	if n > len(h.records) {
		n = len(h.records)
	}
	return cloneRecords(h.records[len(h.records)-n:])
}

// Records returns a copy of the whole log.
func (h *History) Records() []Record {
	return cloneRecords(h.records)
}

// Clear empties the log and mints a new session ID, never the current one.
// Persisted files are left untouched.
func (h *History) Clear() {
	h.records = nil
	h.sessionID = h.mintSessionID()
}

// Snapshot captures the session with a freshly computed summary.
func (h *History) Snapshot() *Snapshot {
	return &Snapshot{
		SessionID: h.sessionID,
		Records:   cloneRecords(h.records),
		Summary:   h.Summary(),
	}
}

// Restore replaces the session ID and log wholesale. When the snapshot holds
// more records than the bound allows, only the newest are kept.
func (h *History) Restore(snap *Snapshot) {
	recs := snap.Records
	if len(recs) > h.maxHistory {
		recs = recs[len(recs)-h.maxHistory:]
	}
	h.ids.Reserve(snap.SessionID)
	h.sessionID = snap.SessionID
	h.records = cloneRecords(recs)
}

func cloneRecords(src []Record) []Record {
	out := make([]Record, len(src))
	for i, r := range src {
		out[i] = r.clone()
	}
	return out
}
