package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DummyProvider answers offline with canned text. It is used by tests and by
// `provider: dummy`.
type DummyProvider struct {
	delay time.Duration
}

// NewDummyProvider creates a new dummy LLM provider
func NewDummyProvider(delay time.Duration) *DummyProvider {
	return &DummyProvider{delay: delay}
}

// Chat replies to the last user message.
func (d *DummyProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if d.delay > 0 {
		t := time.NewTimer(d.delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-t.C:
		}
	}

	var last string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			last = messages[i].Content
			break
		}
	}

	lower := strings.ToLower(last)
	switch {
	case strings.Contains(lower, "help"):
		return "I'm an offline test provider. I repeat what you say and count the turns I was given.", nil
	case last == "":
		return "I didn't catch that.", nil
	default:
		return fmt.Sprintf("You said: %q (%d messages in context)", last, len(messages)), nil
	}
}

// Name returns the provider name
func (d *DummyProvider) Name() string {
	return "dummy"
}
