package main

import (
	"context"
	"fmt"

	"github.com/ehrlich-b/parley/internal/chat"
	"github.com/ehrlich-b/parley/internal/config"
	"github.com/ehrlich-b/parley/internal/conversation"
	"github.com/ehrlich-b/parley/internal/history"
	"github.com/ehrlich-b/parley/internal/llm"
	"github.com/ehrlich-b/parley/internal/logger"
	"github.com/ehrlich-b/parley/internal/rules"
	"github.com/ehrlich-b/parley/internal/store"
)

// openBackend opens the configured session store. The returned close func
// is never nil.
func openBackend(cfg *config.Config) (history.Backend, func() error, error) {
	switch cfg.History.Backend {
	case config.BackendSQLite:
		s, err := store.Open(cfg.History.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open session db: %w", err)
		}
		return s, s.Close, nil
	default:
		fs, err := history.NewFileStore(cfg.History.Dir)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() error { return nil }, nil
	}
}

// historyOptions returns the options for new conversations. Persistence is
// attached only when enabled in config.
func historyOptions(cfg *config.Config, b history.Backend, maxHistory int) []conversation.Option {
	opts := []conversation.Option{conversation.WithMaxHistory(maxHistory)}
	if cfg.History.Persist && b != nil {
		opts = append(opts, conversation.WithPersister(b))
	}
	return opts
}

// newBot builds the rule and llm responders. When rules.watch is set the
// rules file is reloaded on change until ctx is done.
func newBot(ctx context.Context, cfg *config.Config) (*chat.Bot, error) {
	var table *rules.Table
	if cfg.Rules.File != "" {
		t, err := rules.LoadFile(cfg.Rules.File)
		if err != nil {
			return nil, err
		}
		table = t
	}
	rr := rules.NewResponder(table)
	if cfg.Rules.File != "" && cfg.Rules.Watch {
		go func() {
			if err := rr.Watch(ctx, cfg.Rules.File); err != nil {
				logger.Warn("rules watcher stopped", "error", err)
			}
		}()
	}

	provider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		return nil, err
	}
	logger.Debug("llm provider ready", "provider", provider.Name(), "model", cfg.LLM.Model)
	gen := llm.NewResponder(provider, cfg.LLM, cfg.Context.Budget)

	return chat.NewBot(rr, gen), nil
}
