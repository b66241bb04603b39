package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/foxzi/ofertabot/internal/app"
	"github.com/foxzi/ofertabot/internal/config"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "ofertabot",
	Short: "Ofertabot - automated affiliate offer broadcasts over WhatsApp",
	Long: `Ofertabot rotates each user's product catalog and broadcasts one offer at a time
to their WhatsApp chats inside the configured weekly time window.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ofertabot %s (built %s)\n", version, buildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/ofertabot/config.yaml", "Path to configuration file")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dispatchCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(cleanupCmd)
}

// loadApp builds the application without starting it
func loadApp() (*app.App, *config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(cfg, version, app.NewLogger(cfg.Logging))
	if err != nil {
		return nil, nil, err
	}
	return a, cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
