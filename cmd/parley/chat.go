package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/ehrlich-b/parley/internal/chat"
	"github.com/ehrlich-b/parley/internal/conversation"
	"github.com/ehrlich-b/parley/internal/history"
	"github.com/ehrlich-b/parley/internal/logger"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func chatCmd(a *app) *cobra.Command {
	var sessionFlag string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}

			backend, closeBackend, err := openBackend(cfg)
			if err != nil {
				return err
			}
			defer closeBackend()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			bot, err := newBot(ctx, cfg)
			if err != nil {
				return err
			}

			h := conversation.New(historyOptions(cfg, backend, cfg.History.MaxHistory)...)
			if sessionFlag != "" {
				if err := history.LoadInto(backend, sessionFlag, h); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Resumed session %s (%d messages).\n", h.SessionID(), h.Len())
			}

			interactive := term.IsTerminal(int(os.Stdin.Fd()))
			return runREPL(ctx, bot, h, cmd.InOrStdin(), cmd.OutOrStdout(), interactive)
		},
	}
	cmd.Flags().StringVar(&sessionFlag, "session", "", "resume a stored session by ID")
	return cmd
}

// runREPL reads one message per line until EOF, exit or quit.
func runREPL(ctx context.Context, bot *chat.Bot, h *conversation.History, in io.Reader, out io.Writer, interactive bool) error {
	if interactive {
		fmt.Fprintln(out, "Chat started. Type 'help' for commands, 'exit' to quit.")
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		if interactive {
			fmt.Fprint(out, "You: ")
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		reply, err := bot.Handle(ctx, h, line)
		if err != nil {
			logger.Warn("session not saved", "session", h.SessionID(), "error", err)
		}
		if reply != nil {
			printReply(out, reply)
		}
		if ctx.Err() != nil {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	if interactive && h.Len() > 0 {
		fmt.Fprintf(out, "Session %s saved with %d messages.\n", h.SessionID(), h.Len())
	}
	return nil
}
