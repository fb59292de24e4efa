package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ehrlich-b/parley/internal/conversation"
	"github.com/ehrlich-b/parley/internal/logger"
	"github.com/ehrlich-b/parley/internal/web"
	"github.com/spf13/cobra"
)

func serveCmd(a *app) *cobra.Command {
	var addrFlag string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and websocket chat server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			addr := cfg.Web.Addr
			if addrFlag != "" {
				addr = addrFlag
			}

			backend, closeBackend, err := openBackend(cfg)
			if err != nil {
				return err
			}
			defer closeBackend()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			bot, err := newBot(ctx, cfg)
			if err != nil {
				return err
			}

			var secret []byte
			if cfg.Web.JWTSecret != "" {
				secret = []byte(cfg.Web.JWTSecret)
			} else {
				logger.Warn("web.jwt_secret not set, API is unauthenticated")
			}

			srv := web.NewServer(web.Options{
				Bot:       bot,
				Backend:   backend,
				Registry:  conversation.NewRegistry(historyOptions(cfg, backend, cfg.Web.MaxHistory)...),
				JWTSecret: secret,
			})
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addrFlag, "addr", "", "listen address (default from config, :8080)")
	return cmd
}
