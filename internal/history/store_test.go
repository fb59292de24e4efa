package history

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ehrlich-b/parley/internal/conversation"
)

func openTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "conversation_history"))
	if err != nil {
		t.Fatalf("open file store: %v", err)
	}
	return s
}

func fixedClock(start time.Time) func() time.Time {
	now := start
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func writeRaw(t *testing.T, s *FileStore, id, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(s.Dir(), FileName(id)), []byte(content), 0644); err != nil {
		t.Fatalf("write raw: %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	h := conversation.New(
		conversation.WithClock(fixedClock(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))),
		conversation.WithPersister(s),
	)
	if err := h.Append(conversation.RoleUser, "안녕하세요 <b>&"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := h.Append(conversation.RoleAssistant, "hi", conversation.WithResponseTime(250*time.Millisecond), conversation.WithSource("test")); err != nil {
		t.Fatalf("append: %v", err)
	}

	snap, err := s.Load(h.SessionID())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap.SessionID != h.SessionID() {
		t.Errorf("session id = %q, want %q", snap.SessionID, h.SessionID())
	}

	want := h.Records()
	if len(snap.Records) != len(want) {
		t.Fatalf("got %d records, want %d", len(snap.Records), len(want))
	}
	for i, got := range snap.Records {
		w := want[i]
		if !got.Timestamp.Equal(w.Timestamp) || got.Role != w.Role || got.Content != w.Content || got.Source != w.Source {
			t.Errorf("record %d = %+v, want %+v", i, got, w)
		}
		if (got.ResponseTime == nil) != (w.ResponseTime == nil) {
			t.Errorf("record %d response time presence differs", i)
		} else if got.ResponseTime != nil && *got.ResponseTime != *w.ResponseTime {
			t.Errorf("record %d response time = %v, want %v", i, *got.ResponseTime, *w.ResponseTime)
		}
	}
	if snap.Summary.TotalMessages != 2 || snap.Summary.AssistantMessages != 1 {
		t.Errorf("stored summary = %+v", snap.Summary)
	}

	restored := conversation.New()
	if err := LoadInto(s, h.SessionID(), restored); err != nil {
		t.Fatalf("load into: %v", err)
	}
	if restored.SessionID() != h.SessionID() || restored.Len() != 2 {
		t.Errorf("restored %q with %d records", restored.SessionID(), restored.Len())
	}
}

func TestSaveWritesReadableDocument(t *testing.T) {
	s := openTestStore(t)
	h := conversation.New()
	h.Append(conversation.RoleUser, "<tag>")
	if err := s.Save(h.Snapshot()); err != nil {
		t.Fatalf("save: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(s.Dir(), FileName(h.SessionID())))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, key := range []string{`"session_id"`, `"conversation_history"`, `"summary"`, `"response_time": null`, `"<tag>"`} {
		if !contains(string(data), key) {
			t.Errorf("document missing %s:\n%s", key, data)
		}
	}
}

func TestSaveOverwrites(t *testing.T) {
	s := openTestStore(t)
	h := conversation.New(conversation.WithPersister(s))
	h.Append(conversation.RoleUser, "one")
	h.Append(conversation.RoleUser, "two")

	snap, err := s.Load(h.SessionID())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.Records) != 2 {
		t.Errorf("got %d records, want 2", len(snap.Records))
	}
	ids, _ := s.List()
	if len(ids) != 1 {
		t.Errorf("got %d files, want 1", len(ids))
	}
}

func TestSaveDirectoryMissing(t *testing.T) {
	s := openTestStore(t)
	if err := os.RemoveAll(s.Dir()); err != nil {
		t.Fatalf("remove dir: %v", err)
	}

	h := conversation.New(conversation.WithPersister(s))
	err := h.Append(conversation.RoleUser, "lost?")

	var pe *PersistError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *PersistError", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v, want wrapped fs.ErrNotExist", err)
	}
	if h.Len() != 1 {
		t.Errorf("in-memory len = %d, want 1", h.Len())
	}
}

func TestLoadNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Load("20990101_000000")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if IsLoadError(err) {
		t.Error("not-found must not be a LoadError")
	}
}

func TestRejectsPathTraversalIDs(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileStore(filepath.Join(root, "history"))
	if err != nil {
		t.Fatal(err)
	}
	secret := `{"session_id": "secret", "conversation_history": []}`
	if err := os.WriteFile(filepath.Join(root, "conversation_secret.json"), []byte(secret), 0644); err != nil {
		t.Fatal(err)
	}

	for _, id := range []string{"a/../../secret", "../secret", `..\secret`, "..", "a b", "x.json"} {
		if _, err := s.Load(id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Load(%q) err = %v, want ErrNotFound", id, err)
		}
		if err := s.Delete(id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Delete(%q) err = %v, want ErrNotFound", id, err)
		}
		var pe *PersistError
		if err := s.Save(&conversation.Snapshot{SessionID: id, Records: []conversation.Record{}}); !errors.As(err, &pe) {
			t.Errorf("Save(%q) err = %v, want *PersistError", id, err)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "conversation_secret.json")); err != nil {
		t.Errorf("file outside history dir was touched: %v", err)
	}
	if ids, _ := s.List(); len(ids) != 0 {
		t.Errorf("ids = %v, want none", ids)
	}
}

func TestValidSessionID(t *testing.T) {
	for id, want := range map[string]bool{
		"20260314_092653":   true,
		"20260314_092653_2": true,
		"alice-1":           true,
		"":                  false,
		"a/b":               false,
		"..":                false,
		"caf\u00e9":         false,
	} {
		if got := ValidSessionID(id); got != want {
			t.Errorf("ValidSessionID(%q) = %v, want %v", id, got, want)
		}
	}
}

func TestLoadMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid json", `{"session_id": `},
		{"missing session_id", `{"conversation_history": []}`},
		{"empty session_id", `{"session_id": "", "conversation_history": []}`},
		{"missing history", `{"session_id": "x"}`},
		{"null history", `{"session_id": "x", "conversation_history": null}`},
		{"bad role", `{"session_id": "x", "conversation_history": [{"role": "system", "content": "hi"}]}`},
		{"wrong type", `{"session_id": "x", "conversation_history": "nope"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openTestStore(t)
			writeRaw(t, s, "x", tt.content)

			_, err := s.Load("x")
			if !IsLoadError(err) {
				t.Fatalf("err = %v, want *LoadError", err)
			}
			if errors.Is(err, ErrNotFound) {
				t.Error("LoadError must not match ErrNotFound")
			}
		})
	}
}

func TestLoadToleratesMissingSummary(t *testing.T) {
	s := openTestStore(t)
	writeRaw(t, s, "20260101_000000", `{"session_id": "20260101_000000", "conversation_history": [
		{"timestamp": "2026-01-01T00:00:00Z", "role": "user", "content": "hey", "response_time": null, "source": "user"}
	]}`)

	snap, err := s.Load("20260101_000000")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.Records) != 1 || snap.Records[0].Content != "hey" {
		t.Errorf("records = %+v", snap.Records)
	}
}

func TestListNewestFirst(t *testing.T) {
	s := openTestStore(t)
	for _, id := range []string{"20260101_120000", "20260301_080000", "20251231_235959"} {
		writeRaw(t, s, id, `{}`)
	}
	// Files outside the naming convention are ignored.
	writeRaw(t, s, "", `{}`)
	os.WriteFile(filepath.Join(s.Dir(), "notes.txt"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(s.Dir(), "conversation_x.yaml"), []byte("x"), 0644)
	os.Mkdir(filepath.Join(s.Dir(), "conversation_dir.json"), 0755)

	ids, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"20260301_080000", "20260101_120000", "20251231_235959"}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range ids {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}

func TestListMissingDirectory(t *testing.T) {
	s := openTestStore(t)
	os.RemoveAll(s.Dir())
	ids, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if ids == nil || len(ids) != 0 {
		t.Errorf("ids = %v, want empty", ids)
	}
}

func TestLoadLatestAndDelete(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.LoadLatest(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LoadLatest on empty store: err = %v, want ErrNotFound", err)
	}

	for _, id := range []string{"20260101_000000", "20260102_000000"} {
		if err := s.Save(&conversation.Snapshot{SessionID: id, Records: []conversation.Record{}}); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}
	snap, err := s.LoadLatest()
	if err != nil {
		t.Fatalf("load latest: %v", err)
	}
	if snap.SessionID != "20260102_000000" {
		t.Errorf("latest = %q, want 20260102_000000", snap.SessionID)
	}

	if err := s.Delete("20260102_000000"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete("20260102_000000"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
	ids, _ := s.List()
	if len(ids) != 1 || ids[0] != "20260101_000000" {
		t.Errorf("ids after delete = %v", ids)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
