package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foxzi/ofertabot/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE:  runConfigValidate,
}

func init() {
	configCmd.AddCommand(configValidateCmd)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	fmt.Println("Configuration is valid")
	fmt.Printf("  Listen address: %s\n", cfg.Server.ListenAddr)
	fmt.Printf("  Database path: %s\n", cfg.Database.Path)
	fmt.Printf("  Timezone: %s\n", cfg.Dispatch.Timezone)
	fmt.Printf("  Dispatch worker: %v (every %s, %d concurrent)\n", cfg.Dispatch.Enabled, cfg.Dispatch.PollInterval, cfg.Dispatch.Concurrency)
	fmt.Printf("  Rotation on failure: %s\n", cfg.Dispatch.RotationOnFailure)
	fmt.Printf("  Gateway: %s\n", cfg.Gateway.BaseURL)
	fmt.Printf("  Token encryption: %v\n", cfg.Secrets.Key != "")
	fmt.Printf("  Redis lock: %v\n", cfg.Redis.Enabled)
	if cfg.Metrics.Enabled {
		fmt.Printf("  Metrics: %s%s\n", cfg.Metrics.ListenAddr, cfg.Metrics.Path)
	}

	return nil
}
