package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ehrlich-b/parley/internal/config"
	"github.com/ehrlich-b/parley/internal/conversation"
	"github.com/ehrlich-b/parley/internal/llm"
	"github.com/ehrlich-b/parley/internal/rules"
)

func newBot(p llm.Provider) *Bot {
	cfg := config.LLMConfig{Provider: config.ProviderDummy, Fallback: "fallback"}
	return NewBot(rules.NewResponder(nil), llm.NewResponder(p, cfg, 1000))
}

type errProvider struct{}

func (errProvider) Chat(context.Context, []llm.Message) (string, error) {
	return "", errors.New("down")
}
func (errProvider) Name() string { return "err" }

func handle(t *testing.T, b *Bot, h *conversation.History, input string) *Reply {
	t.Helper()
	r, err := b.Handle(context.Background(), h, input)
	if err != nil {
		t.Fatalf("Handle(%q): %v", input, err)
	}
	return r
}

func TestRulesBeforeLLM(t *testing.T) {
	b := newBot(llm.NewDummyProvider(0))
	h := conversation.New()

	r := handle(t, b, h, "hello")
	if r.Type != TypeNormal || r.Response != "Hello! How can I help you?" {
		t.Errorf("reply = %+v", r)
	}
	recs := h.Records()
	if len(recs) != 2 || recs[1].Source != conversation.SourceRules {
		t.Fatalf("records = %+v", recs)
	}

	r = handle(t, b, h, "tell me a joke")
	if r.Type != TypeNormal || r.Response == "" {
		t.Errorf("reply = %+v", r)
	}
	recs = h.Records()
	if len(recs) != 4 || recs[3].Source != conversation.SourceLLM {
		t.Fatalf("records = %+v", recs)
	}
}

func TestLLMFailureAppendsNothing(t *testing.T) {
	b := newBot(errProvider{})
	h := conversation.New()

	r := handle(t, b, h, "unmatched input")
	if r.Response != "fallback" || r.Type != TypeNormal {
		t.Errorf("reply = %+v", r)
	}
	if h.Len() != 0 {
		t.Errorf("len = %d, want 0", h.Len())
	}
}

func TestHistoryCommand(t *testing.T) {
	b := newBot(llm.NewDummyProvider(0))
	h := conversation.New()
	for i := 0; i < 30; i++ {
		if err := h.Append(conversation.RoleUser, fmt.Sprintf("m%d", i)); err != nil {
			t.Fatal(err)
		}
	}

	r := handle(t, b, h, "history")
	if r.Type != TypeHistory || len(r.History) != HistoryLimit {
		t.Fatalf("type = %s, len = %d", r.Type, len(r.History))
	}
	if r.History[0].Content != "m10" || r.History[HistoryLimit-1].Content != "m29" {
		t.Errorf("window = %s..%s", r.History[0].Content, r.History[HistoryLimit-1].Content)
	}
	if h.Len() != 30 {
		t.Error("commands must not be recorded")
	}
}

func TestSummaryCommand(t *testing.T) {
	b := newBot(llm.NewDummyProvider(0))
	h := conversation.New()
	handle(t, b, h, "hello")

	r := handle(t, b, h, " summary ")
	if r.Type != TypeSummary || r.Summary == nil {
		t.Fatalf("reply = %+v", r)
	}
	if r.Summary.TotalMessages != 2 || r.Summary.UserMessages != 1 || r.Summary.AssistantMessages != 1 {
		t.Errorf("summary = %+v", r.Summary)
	}
}

func TestSearchCommand(t *testing.T) {
	b := newBot(llm.NewDummyProvider(0))
	h := conversation.New()
	handle(t, b, h, "what's the weather")

	r := handle(t, b, h, "search WEATHER")
	if r.Type != TypeSearch || len(r.SearchResults) != 2 {
		t.Errorf("reply = %+v", r)
	}

	for _, in := range []string{"search", "search   "} {
		r = handle(t, b, h, in)
		if r.Type != TypeError {
			t.Errorf("%q: type = %s, want error", in, r.Type)
		}
	}
}

func TestSearchResultsAlwaysEncoded(t *testing.T) {
	b := newBot(llm.NewDummyProvider(0))
	h := conversation.New()
	handle(t, b, h, "hello")

	data, err := json.Marshal(handle(t, b, h, "search zebra"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"search_results":[]`) {
		t.Errorf("empty search encoded as %s", data)
	}
	if strings.Count(string(data), "search_results") != 1 {
		t.Errorf("search_results repeated: %s", data)
	}

	data, err = json.Marshal(handle(t, b, h, "search HELLO"))
	if err != nil {
		t.Fatal(err)
	}
	var got Reply
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Type != TypeSearch || len(got.SearchResults) != 2 || got.Response == "" {
		t.Errorf("decoded = %+v", got)
	}

	data, err = json.Marshal(handle(t, b, h, "help"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "search_results") {
		t.Errorf("non-search reply has search_results: %s", data)
	}
}

func TestClearCommand(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	var n int
	h := conversation.New(conversation.WithClock(func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}))
	b := newBot(llm.NewDummyProvider(0))
	handle(t, b, h, "hello")
	before := h.SessionID()

	r := handle(t, b, h, "clear")
	if r.Type != TypeClear || h.Len() != 0 {
		t.Errorf("reply = %+v len = %d", r, h.Len())
	}
	if h.SessionID() == before {
		t.Error("clear should start a new session")
	}
}

func TestHelpCommand(t *testing.T) {
	b := NewBot(nil, nil)
	r := handle(t, b, conversation.New(), "help")
	if r.Type != TypeHelp || r.Response != HelpText {
		t.Errorf("reply = %+v", r)
	}
}

func TestNoResponders(t *testing.T) {
	b := NewBot(nil, nil)
	h := conversation.New()
	r := handle(t, b, h, "anything")
	if r.Type != TypeNormal || h.Len() != 0 {
		t.Errorf("reply = %+v len = %d", r, h.Len())
	}
}
