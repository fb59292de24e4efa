package llm

import (
	"context"
	"fmt"

	"github.com/ehrlich-b/parley/internal/config"
	"github.com/ehrlich-b/parley/internal/conversation"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Chat sends a message and gets a response
	Chat(ctx context.Context, messages []Message) (string, error)

	// Name returns the provider name
	Name() string
}

// Message represents a chat message
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// FromContext converts a context window into provider messages.
func FromContext(window []conversation.ContextMessage) []Message {
	msgs := make([]Message, len(window))
	for i, m := range window {
		msgs[i] = Message{Role: string(m.Role), Content: m.Content}
	}
	return msgs
}

// NewProvider creates a new LLM provider based on config
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key (set OPENAI_API_KEY)")
		}
		return NewOpenAIProvider(cfg.APIKey, cfg.Model, cfg.BaseURL), nil
	case config.ProviderDummy:
		return NewDummyProvider(0), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
