package main

import (
	"fmt"
	"time"

	"github.com/ehrlich-b/parley/internal/conversation"
	"github.com/ehrlich-b/parley/internal/history"
	"github.com/ehrlich-b/parley/internal/web"
	"github.com/spf13/cobra"
)

// loadStored reads a whole stored session without trimming it to the
// configured bound.
func loadStored(b history.Backend, id string) (*conversation.History, error) {
	snap, err := b.Load(id)
	if err != nil {
		return nil, err
	}
	h := conversation.New(conversation.WithMaxHistory(max(len(snap.Records), 1)))
	h.Restore(snap)
	return h, nil
}

func sessionsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List stored sessions, newest first",
		Args:  cobra.NoArgs,
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

			ids, err := backend.List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(ids) == 0 {
				fmt.Fprintln(out, "no stored sessions")
				return nil
			}
			for _, id := range ids {
				fmt.Fprintln(out, id)
			}
			return nil
		},
	}
}

func showCmd(a *app) *cobra.Command {
	var tail int

	cmd := &cobra.Command{
		Use:   "show SESSION_ID",
		Short: "Print a stored session's summary and recent messages",
		Args:  cobra.ExactArgs(1),
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

			h, err := loadStored(backend, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printSummary(out, h.Summary())
			if tail > 0 && h.Len() > 0 {
				fmt.Fprintln(out)
				printRecords(out, h.Recent(tail))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&tail, "tail", "n", 10, "number of recent messages to print")
	return cmd
}

func searchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search SESSION_ID KEYWORD",
		Short: "Find messages in a stored session containing a keyword",
		Args:  cobra.ExactArgs(2),
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

			h, err := loadStored(backend, args[0])
			if err != nil {
				return err
			}
			results := h.Search(args[1])
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d match(es) for %q\n", len(results), args[1])
			printRecords(out, results)
			return nil
		},
	}
}

func deleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete SESSION_ID",
		Short: "Delete a stored session",
		Args:  cobra.ExactArgs(1),
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

			if err := backend.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func tokenCmd(a *app) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token SUBJECT",
		Short: "Mint a bearer token for the web API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			if cfg.Web.JWTSecret == "" {
				return fmt.Errorf("web.jwt_secret is not set (config or PARLEY_JWT_SECRET)")
			}
			tok, exp, err := web.IssueToken([]byte(cfg.Web.JWTSecret), args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", exp.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "token lifetime")
	return cmd
}
