// Package rules answers fixed keywords before the generative backend is
// consulted.
package rules

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ehrlich-b/parley/internal/conversation"
	"gopkg.in/yaml.v3"
)

// Rule maps a keyword to a canned response.
type Rule struct {
	Keyword  string `yaml:"keyword"`
	Response string `yaml:"response"`
}

// Table is an ordered rule list. The first matching rule wins.
type Table struct {
	Rules []Rule `yaml:"rules"`
}

// Defaults returns the built-in table.
func Defaults() *Table {
	return &Table{Rules: []Rule{
		{Keyword: "hello", Response: "Hello! How can I help you?"},
		{Keyword: "weather", Response: "Today's weather is sunny."},
		{Keyword: "name", Response: "I am an AI chatbot."},
		{Keyword: "about", Response: "I'm a chatbot built on OpenAI's GPT-3.5 Turbo model."},
	}}
}

// Match returns the response of the first rule whose keyword occurs in input.
func (t *Table) Match(input string) (string, bool) {
	for _, r := range t.Rules {
		if r.Keyword != "" && strings.Contains(input, r.Keyword) {
			return r.Response, true
		}
	}
	return "", false
}

// Parse decodes a YAML rules document.
func Parse(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	for i, r := range t.Rules {
		if r.Keyword == "" {
			return nil, fmt.Errorf("rule %d: keyword is required", i)
		}
	}
	return &t, nil
}

// LoadFile reads a rules file.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return Parse(data)
}

// Responder records matched exchanges into a conversation history.
type Responder struct {
	table atomic.Pointer[Table]
	now   func() time.Time
}

// NewResponder returns a responder over t, or the defaults when t is nil.
func NewResponder(t *Table) *Responder {
	if t == nil {
		t = Defaults()
	}
	r := &Responder{now: time.Now}
	r.table.Store(t)
	return r
}

// Table returns the table currently in use.
func (r *Responder) Table() *Table {
	return r.table.Load()
}

// SetTable swaps the table in place.
func (r *Responder) SetTable(t *Table) {
	r.table.Store(t)
}

// Respond looks input up in the table. On a match with a non-nil history it
// appends the user turn and the assistant turn. The error is only ever a
// persist failure; the response is still valid in that case.
func (r *Responder) Respond(input string, h *conversation.History) (string, bool, error) {
	start := r.now()
	resp, ok := r.table.Load().Match(input)
	if !ok {
		return "", false, nil
	}
	if h == nil {
		return resp, true, nil
	}

	// Both turns land in memory even if the first save fails.
	userErr := h.Append(conversation.RoleUser, input, conversation.WithSource(conversation.SourceUser))
	elapsed := r.now().Sub(start)
	botErr := h.Append(conversation.RoleAssistant, resp,
		conversation.WithResponseTime(elapsed),
		conversation.WithSource(conversation.SourceRules))
	if userErr != nil {
		return resp, true, userErr
	}
	return resp, true, botErr
}
