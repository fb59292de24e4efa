package conversation

import (
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestIDIssuerSuffixesSameSecond(t *testing.T) {
	ids := NewIDIssuer()
	got := []string{ids.Issue(epoch), ids.Issue(epoch.Add(500 * time.Millisecond)), ids.Issue(epoch)}
	want := []string{"20260314_092653", "20260314_092653_2", "20260314_092653_3"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("issue %d = %q, want %q", i, got[i], want[i])
		}
	}
	if next := ids.Issue(epoch.Add(time.Second)); next != "20260314_092654" {
		t.Errorf("next second = %q, want no suffix", next)
	}
}

func TestIDIssuerSkipsReserved(t *testing.T) {
	ids := NewIDIssuer()
	ids.Reserve("20260314_092653")
	if got := ids.Issue(epoch); got != "20260314_092653_2" {
		t.Errorf("issue = %q, want reserved ID skipped", got)
	}
}

func TestSameSecondHistoriesKeepSeparateSessions(t *testing.T) {
	alicePersist, bobPersist := &recordingPersister{}, &recordingPersister{}
	r := NewRegistry(WithClock(fixedClock(epoch)), WithIDIssuer(NewIDIssuer()))

	alice := r.GetOrCreate("alice")
	WithPersister(alicePersist)(alice)
	bob := r.GetOrCreate("bob")
	WithPersister(bobPersist)(bob)

	if alice.SessionID() == bob.SessionID() {
		t.Fatalf("alice and bob share session %q", alice.SessionID())
	}
	mustAppend(t, alice, RoleUser, "hello from alice")
	mustAppend(t, bob, RoleUser, "hello from bob")
	if alicePersist.snaps[0].SessionID == bobPersist.snaps[0].SessionID {
		t.Error("both sessions were saved under one ID")
	}
}

func TestClearInSameSecondMintsNewID(t *testing.T) {
	h := New(WithClock(fixedClock(epoch)), WithIDIssuer(NewIDIssuer()))
	first := h.SessionID()
	h.Clear()
	second := h.SessionID()
	h.Clear()
	if first == second || second == h.SessionID() || first == h.SessionID() {
		t.Errorf("clear reused an ID: %q, %q, %q", first, second, h.SessionID())
	}
}

func TestRestoreReservesLoadedID(t *testing.T) {
	ids := NewIDIssuer()
	loaded := New(WithClock(fixedClock(epoch.Add(time.Hour))), WithIDIssuer(ids))
	loaded.Restore(&Snapshot{SessionID: "20260314_092653"})

	fresh := New(WithClock(fixedClock(epoch)), WithIDIssuer(ids))
	if fresh.SessionID() == "20260314_092653" {
		t.Error("new session reused the ID of a loaded one")
	}
}
