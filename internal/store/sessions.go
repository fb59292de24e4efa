package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ehrlich-b/parley/internal/conversation"
	"github.com/ehrlich-b/parley/internal/history"
)

var (
	_ history.Backend        = (*Store)(nil)
	_ conversation.Persister = (*Store)(nil)
)

// Save replaces everything stored for the snapshot's session in one
// transaction.
func (s *Store) Save(snap *conversation.Snapshot) error {
	if snap.SessionID == "" {
		return &history.PersistError{Op: "save", Err: errors.New("empty session id")}
	}
	fail := func(op string, err error) error {
		return &history.PersistError{SessionID: snap.SessionID, Op: op, Err: err}
	}

	summary, err := json.Marshal(snap.Summary)
	if err != nil {
		return fail("encode summary", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fail("begin", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO sessions (id, summary, updated_at) VALUES (?, ?, datetime('now'))
		ON CONFLICT(id) DO UPDATE SET summary = excluded.summary, updated_at = excluded.updated_at`,
		snap.SessionID, string(summary)); err != nil {
		return fail("upsert session", err)
	}
	if _, err := tx.Exec(`DELETE FROM messages WHERE session_id = ?`, snap.SessionID); err != nil {
		return fail("clear messages", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO messages (session_id, seq, timestamp, role, content, response_time, source)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fail("prepare insert", err)
	}
	defer stmt.Close()

	for i, r := range snap.Records {
		var rt sql.NullFloat64
		if r.ResponseTime != nil {
			rt = sql.NullFloat64{Float64: *r.ResponseTime, Valid: true}
		}
		if _, err := stmt.Exec(snap.SessionID, i, r.Timestamp.Format(time.RFC3339Nano), string(r.Role), r.Content, rt, r.Source); err != nil {
			return fail("insert message", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fail("commit", err)
	}
	return nil
}

// Load reads a session back in insertion order.
func (s *Store) Load(sessionID string) (*conversation.Snapshot, error) {
	var summary string
	err := s.db.QueryRow(`SELECT summary FROM sessions WHERE id = ?`, sessionID).Scan(&summary)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", history.ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, &history.LoadError{SessionID: sessionID, Err: err}
	}

	snap := &conversation.Snapshot{SessionID: sessionID, Records: []conversation.Record{}}
	_ = json.Unmarshal([]byte(summary), &snap.Summary)

	rows, err := s.db.Query(`SELECT timestamp, role, content, response_time, source
		FROM messages WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, &history.LoadError{SessionID: sessionID, Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ts, role, content, source string
			rt                        sql.NullFloat64
		)
		if err := rows.Scan(&ts, &role, &content, &rt, &source); err != nil {
			return nil, &history.LoadError{SessionID: sessionID, Err: fmt.Errorf("scan message: %w", err)}
		}
		r, err := conversation.ParseRole(role)
		if err != nil {
			return nil, &history.LoadError{SessionID: sessionID, Err: err}
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, &history.LoadError{SessionID: sessionID, Err: fmt.Errorf("parse timestamp: %w", err)}
		}
		rec := conversation.Record{Timestamp: parsed, Role: r, Content: content, Source: source}
		if rt.Valid {
			v := rt.Float64
			rec.ResponseTime = &v
		}
		snap.Records = append(snap.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &history.LoadError{SessionID: sessionID, Err: err}
	}
	return snap, nil
}

// List returns stored session IDs, newest first.
func (s *Store) List() ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM sessions ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes a session and its messages.
func (s *Store) Delete(sessionID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete messages %s: %w", sessionID, err)
	}
	res, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", history.ErrNotFound, sessionID)
	}
	return tx.Commit()
}
