package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/foxzi/ofertabot/internal/config"
	"github.com/foxzi/ofertabot/internal/db"
	"github.com/foxzi/ofertabot/internal/history"
	"github.com/foxzi/ofertabot/internal/repository"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Clean up old data (sent and failed schedule entries, pass reports)",
	RunE:  runCleanup,
}

var (
	cleanupDays   int
	cleanupDryRun bool
)

func init() {
	cleanupCmd.Flags().IntVar(&cleanupDays, "days", 90, "Delete history older than N days")
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "Show what would be deleted without actually deleting")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if cleanupDays < 1 {
		return fmt.Errorf("--days must be at least 1")
	}

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := context.Background()
	cutoff := time.Now().AddDate(0, 0, -cleanupDays)
	entries := repository.NewScheduleRepository(database.DB)

	if cleanupDryRun {
		n, err := entries.CountHistoryBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("failed to count schedule history: %w", err)
		}
		fmt.Println("Dry run mode - no data will be deleted")
		fmt.Printf("Schedule history: %d entries older than %s would be deleted\n", n, cutoff.Format(time.DateOnly))
		return nil
	}

	n, err := entries.DeleteHistoryBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to cleanup schedule history: %w", err)
	}
	fmt.Printf("Schedule history: deleted %d entries\n", n)

	store, err := history.Open(cfg.History.Path, cfg.History.Keep)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer store.Close()

	removed, err := store.DeleteBefore(cutoff)
	if err != nil {
		return fmt.Errorf("failed to cleanup pass reports: %w", err)
	}
	fmt.Printf("Pass reports: deleted %d\n", removed)

	fmt.Println("\nCleanup completed")
	return nil
}
