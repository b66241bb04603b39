package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/foxzi/ofertabot/internal/app"
	"github.com/foxzi/ofertabot/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and the dispatch worker",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	logger := app.NewLogger(cfg.Logging)
	slog.SetDefault(logger)

	a, err := app.New(cfg, version, logger)
	if err != nil {
		return err
	}

	return a.Run(context.Background())
}
