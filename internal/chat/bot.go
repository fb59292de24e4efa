// Package chat dispatches one line of user input: history commands are
// answered from the conversation itself, everything else goes to the rule
// table first and the generative backend second.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ehrlich-b/parley/internal/conversation"
)

// Reply types.
const (
	TypeHistory = "history"
	TypeSummary = "summary"
	TypeSearch  = "search"
	TypeClear   = "clear"
	TypeHelp    = "help"
	TypeError   = "error"
	TypeNormal  = "normal"
)

// HistoryLimit is how many records the history command shows.
const HistoryLimit = 20

const HelpText = `Available commands:
  history          show recent messages
  summary          show conversation statistics
  search KEYWORD   find messages containing KEYWORD
  clear            start a fresh conversation
  help             show this help`

// Reply is what a front end renders for one input.
type Reply struct {
	Response      string                `json:"response"`
	Type          string                `json:"type"`
	History       []conversation.Record `json:"history,omitempty"`
	Summary       *conversation.Summary `json:"summary,omitempty"`
	SearchResults []conversation.Record `json:"search_results,omitempty"`
}

// MarshalJSON always emits search_results on search replies, as [] when
// nothing matched.
func (r Reply) MarshalJSON() ([]byte, error) {
	type plain Reply
	if r.Type != TypeSearch {
		return json.Marshal(plain(r))
	}
	results := r.SearchResults
	if results == nil {
		results = []conversation.Record{}
	}
	return json.Marshal(struct {
		plain
		SearchResults []conversation.Record `json:"search_results"`
	}{plain(r), results})
}

// RuleResponder answers from a fixed table.
type RuleResponder interface {
	Respond(input string, h *conversation.History) (string, bool, error)
}

// Generator answers anything.
type Generator interface {
	Respond(ctx context.Context, input string, h *conversation.History) (string, error)
}

// Bot routes input to commands or responders.
type Bot struct {
	rules RuleResponder
	gen   Generator
}

// NewBot returns a bot. Either responder may be nil.
func NewBot(rules RuleResponder, gen Generator) *Bot {
	return &Bot{rules: rules, gen: gen}
}

// Handle answers input against h. A non-nil error means the session could
// not be saved; the reply is still valid and the turns are kept in memory.
func (b *Bot) Handle(ctx context.Context, h *conversation.History, input string) (*Reply, error) {
	cmd := strings.TrimSpace(input)
	switch {
	case cmd == "history":
		return &Reply{
			Response: "Here is the recent conversation.",
			Type:     TypeHistory,
			History:  h.Recent(HistoryLimit),
		}, nil
	case cmd == "summary":
		s := h.Summary()
		return &Reply{
			Response: "Here is the conversation summary.",
			Type:     TypeSummary,
			Summary:  &s,
		}, nil
	case cmd == "search" || strings.HasPrefix(cmd, "search "):
		keyword := strings.TrimSpace(strings.TrimPrefix(cmd, "search"))
		if keyword == "" {
			return &Reply{
				Response: `Please give a keyword to search for, e.g. "search hello".`,
				Type:     TypeError,
			}, nil
		}
		return &Reply{
			Response:      fmt.Sprintf("Search results for '%s'.", keyword),
			Type:          TypeSearch,
			SearchResults: h.Search(keyword),
		}, nil
	case cmd == "clear":
		h.Clear()
		return &Reply{Response: "Conversation history cleared.", Type: TypeClear}, nil
	case cmd == "help":
		return &Reply{Response: HelpText, Type: TypeHelp}, nil
	}

	if b.rules != nil {
		resp, ok, err := b.rules.Respond(input, h)
		if ok {
			return &Reply{Response: resp, Type: TypeNormal}, err
		}
		if err != nil {
			return nil, err
		}
	}
	if b.gen == nil {
		return &Reply{Response: "I don't have an answer for that.", Type: TypeNormal}, nil
	}
	resp, err := b.gen.Respond(ctx, input, h)
	return &Reply{Response: resp, Type: TypeNormal}, err
}
