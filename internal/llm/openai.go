package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ehrlich-b/parley/internal/logger"
	"github.com/sashabaranov/go-openai"
)

// ErrEmptyCompletion is returned when the endpoint answers without choices.
var ErrEmptyCompletion = errors.New("llm: completion has no choices")

// OpenAIProvider talks to the chat completions API or any endpoint that
// speaks it.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider returns a provider for model. An empty baseURL keeps the
// public API.
func NewOpenAIProvider(apiKey, model, baseURL string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(cfg), model: model}
}

func (p *OpenAIProvider) Name() string { return "openai" }

// Chat sends the window and returns the first choice's text.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: toCompletionMessages(messages),
	}

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("llm: chat completion (%s): %w", p.model, err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	choice := resp.Choices[0]
	logger.Debug("chat completion",
		"model", resp.Model,
		"messages", len(messages),
		"finish_reason", choice.FinishReason,
		"tokens", resp.Usage.TotalTokens,
		"took", time.Since(start))
	return choice.Message.Content, nil
}

func toCompletionMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}
