package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ehrlich-b/parley/internal/conversation"
)

const (
	filePrefix = "conversation_"
	fileSuffix = ".json"
)

// Backend persists whole sessions keyed by session ID.
type Backend interface {
	Save(snap *conversation.Snapshot) error
	Load(sessionID string) (*conversation.Snapshot, error)
	List() ([]string, error)
	Delete(sessionID string) error
}

// FileStore keeps one JSON document per session in a single directory.
type FileStore struct {
	historyDir string
}

var (
	_ Backend                = (*FileStore)(nil)
	_ conversation.Persister = (*FileStore)(nil)
)

// NewFileStore creates the history directory if needed and returns a store
// rooted there.
func NewFileStore(historyDir string) (*FileStore, error) {
	if err := os.MkdirAll(historyDir, 0755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	return &FileStore{historyDir: historyDir}, nil
}

// Dir returns the history directory.
func (s *FileStore) Dir() string {
	return s.historyDir
}

// FileName returns the file name used for a session ID.
func FileName(sessionID string) string {
	return filePrefix + sessionID + fileSuffix
}

// ValidSessionID reports whether id is safe to use as a file name: non-empty
// and made only of ASCII letters, digits, '_' and '-'.
func ValidSessionID(id string) bool {
	if id == "" {
		return false
	}
	for _, c := range id {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}

func (s *FileStore) path(sessionID string) (string, bool) {
	if !ValidSessionID(sessionID) {
		return "", false
	}
	return filepath.Join(s.historyDir, FileName(sessionID)), true
}

// Save writes the snapshot, replacing any earlier file for the session.
func (s *FileStore) Save(snap *conversation.Snapshot) error {
	if snap.SessionID == "" {
		return &PersistError{Op: "save", Err: errors.New("empty session id")}
	}
	path, ok := s.path(snap.SessionID)
	if !ok {
		return &PersistError{SessionID: snap.SessionID, Op: "save", Err: errors.New("invalid session id")}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return &PersistError{SessionID: snap.SessionID, Op: "encode", Err: err}
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return &PersistError{SessionID: snap.SessionID, Op: "write", Err: err}
	}
	return nil
}

// Load reads a session. It returns ErrNotFound when no file exists and a
// *LoadError when the file cannot be decoded or is incomplete. An ID that
// fails ValidSessionID is never stored, so it also yields ErrNotFound.
func (s *FileStore) Load(sessionID string) (*conversation.Snapshot, error) {
	path, ok := s.path(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, sessionID)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
		}
		return nil, &LoadError{SessionID: sessionID, Err: err}
	}
	return Decode(sessionID, data)
}

// LoadLatest loads the session with the newest ID.
func (s *FileStore) LoadLatest() (*conversation.Snapshot, error) {
	ids, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrNotFound
	}
	return s.Load(ids[0])
}

// List returns stored session IDs, newest first. A missing directory yields
// an empty list.
func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.historyDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	ids := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
		if !ValidSessionID(id) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}

// Delete removes a stored session.
func (s *FileStore) Delete(sessionID string) error {
	path, ok := s.path(sessionID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, sessionID)
	}
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

// document mirrors conversation.Snapshot with pointer fields so that
// missing keys can be told apart from empty ones.
type document struct {
	SessionID *string                `json:"session_id"`
	Records   *[]conversation.Record `json:"conversation_history"`
	Summary   json.RawMessage        `json:"summary"`
}

// Decode parses a persisted session document and validates required fields.
func Decode(sessionID string, data []byte) (*conversation.Snapshot, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &LoadError{SessionID: sessionID, Err: err}
	}
	if doc.SessionID == nil || *doc.SessionID == "" {
		return nil, &LoadError{SessionID: sessionID, Err: errors.New("missing session_id")}
	}
	if doc.Records == nil {
		return nil, &LoadError{SessionID: sessionID, Err: errors.New("missing conversation_history")}
	}
	for i, r := range *doc.Records {
		if !r.Role.Valid() {
			return nil, &LoadError{SessionID: sessionID, Err: fmt.Errorf("record %d: unknown role %q", i, r.Role)}
		}
	}

	snap := &conversation.Snapshot{
		SessionID: *doc.SessionID,
		Records:   *doc.Records,
	}
	if len(doc.Summary) > 0 {
		// The summary is derived data; a stale or odd one is not fatal.
		_ = json.Unmarshal(doc.Summary, &snap.Summary)
	}
	return snap, nil
}

// LoadInto reads a session from b and replaces h's session ID and log with
// it. The error contract is that of b.Load.
func LoadInto(b Backend, sessionID string, h *conversation.History) error {
	snap, err := b.Load(sessionID)
	if err != nil {
		return err
	}
	h.Restore(snap)
	return nil
}
