package main

import (
	"os"

	"github.com/ehrlich-b/parley/internal/config"
	"github.com/ehrlich-b/parley/internal/logger"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "parley",
		Short: "parley: rule-first chatbot with persistent conversation history",
		Long: "Answers from a keyword rule table first and a chat completion API second, " +
			"keeping a bounded, persisted history of every conversation.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "config file")

	app := &app{configPath: &configPath}
	root.AddCommand(
		chatCmd(app),
		serveCmd(app),
		sessionsCmd(app),
		showCmd(app),
		searchCmd(app),
		deleteCmd(app),
		tokenCmd(app),
	)
	return root
}

// app holds the lazily loaded configuration shared by subcommands.
type app struct {
	configPath *string
	cfg        *config.Config
}

func (a *app) config() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := config.Load(*a.configPath)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		return nil, err
	}
	a.cfg = cfg
	return cfg, nil
}
