package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foxzi/ofertabot/internal/config"
	"github.com/foxzi/ofertabot/internal/db"
	"github.com/foxzi/ofertabot/internal/history"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema and the report store",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()
	if err := database.Migrate(); err != nil {
		return fmt.Errorf("sqlite %s: %w", cfg.Database.Path, err)
	}
	fmt.Printf("Schema up to date: %s\n", cfg.Database.Path)

	// opening the store creates its bucket
	store, err := history.Open(cfg.History.Path, cfg.History.Keep)
	if err != nil {
		return err
	}
	n, err := store.Count()
	store.Close()
	if err != nil {
		return err
	}
	fmt.Printf("Report store ready: %s (%d reports)\n", cfg.History.Path, n)
	return nil
}
