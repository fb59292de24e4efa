package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ehrlich-b/parley/internal/config"
	"github.com/ehrlich-b/parley/internal/conversation"
	"github.com/ehrlich-b/parley/internal/logger"
	"golang.org/x/time/rate"
)

// Responder answers free-form input through a Provider, feeding it the
// budgeted tail of the conversation.
type Responder struct {
	provider Provider
	budget   int
	timeout  time.Duration
	fallback string
	limiter  *rate.Limiter // nil means unlimited
	now      func() time.Time
}

// NewResponder wraps p with the timeout, rate limit and fallback from cfg.
// budget is the context window size in estimated tokens.
func NewResponder(p Provider, cfg config.LLMConfig, budget int) *Responder {
	r := &Responder{
		provider: p,
		budget:   budget,
		timeout:  cfg.Timeout,
		fallback: cfg.Fallback,
		now:      time.Now,
	}
	if r.fallback == "" {
		r.fallback = config.DefaultFallback
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return r
}

// Provider returns the wrapped provider.
func (r *Responder) Provider() Provider {
	return r.provider
}

// Respond asks the provider for a reply to input. On success with a non-nil
// history both turns are appended. On any backend failure the fallback text
// is returned and nothing is appended; the returned error is only ever a
// persist failure.
func (r *Responder) Respond(ctx context.Context, input string, h *conversation.History) (string, error) {
	var msgs []Message
	if h != nil {
		msgs = FromContext(h.BuildContext(r.budget))
	}
	msgs = append(msgs, Message{Role: string(conversation.RoleUser), Content: input})

	start := r.now()
	resp, err := r.call(ctx, msgs)
	elapsed := r.now().Sub(start)
	if err != nil {
		logger.Error("llm request failed",
			"provider", r.provider.Name(),
			"session", sessionOf(h),
			"duration", elapsed,
			"error", err)
		return r.fallback, nil
	}

	logger.Debug("llm reply",
		"provider", r.provider.Name(),
		"session", sessionOf(h),
		"context_messages", len(msgs)-1,
		"reply_tokens", conversation.EstimateTokens(resp),
		"duration", elapsed)

	if h == nil {
		return resp, nil
	}
	userErr := h.Append(conversation.RoleUser, input, conversation.WithSource(conversation.SourceUser))
	botErr := h.Append(conversation.RoleAssistant, resp,
		conversation.WithResponseTime(elapsed),
		conversation.WithSource(conversation.SourceLLM))
	if userErr != nil {
		return resp, userErr
	}
	return resp, botErr
}

func (r *Responder) call(ctx context.Context, msgs []Message) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit: %w", err)
		}
	}
	return r.provider.Chat(ctx, msgs)
}

func sessionOf(h *conversation.History) string {
	if h == nil {
		return ""
	}
	return h.SessionID()
}
