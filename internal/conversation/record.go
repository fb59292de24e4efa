// Package conversation holds the bounded, ordered log of turns for a chat
// session and the read-side queries over it: the budgeted context window
// handed to a generative backend, summary statistics and keyword search.
package conversation

import (
	"fmt"
	"time"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// ParseRole converts a string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Source tags used by the built-in responders.
const (
	SourceUser  = "user"
	SourceRules = "rule_engine"
	SourceLLM   = "llm_api"
)

// Record is one turn. Records are values; History hands out copies.
type Record struct {
	Timestamp    time.Time `json:"timestamp"`
	Role         Role      `json:"role"`
	Content      string    `json:"content"`
	ResponseTime *float64  `json:"response_time"` // seconds, nil unless produced by a responder
	Source       string    `json:"source"`
}

// HasResponseTime reports whether the record carries a measured response time.
func (r Record) HasResponseTime() bool {
	return r.ResponseTime != nil
}

func (r Record) clone() Record {
	if r.ResponseTime != nil {
		v := *r.ResponseTime
		r.ResponseTime = &v
	}
	return r
}

// AppendOption customizes a record created by Append.
type AppendOption func(*Record)

// WithResponseTime attaches a measured response time. Negative durations
// are clamped to zero.
func WithResponseTime(d time.Duration) AppendOption {
	return func(r *Record) {
		secs := d.Seconds()
		if secs < 0 {
			secs = 0
		}
		r.ResponseTime = &secs
	}
}

// WithSource sets the source tag. The default is SourceUser.
func WithSource(source string) AppendOption {
	return func(r *Record) { r.Source = source }
}
