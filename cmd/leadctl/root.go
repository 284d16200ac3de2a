package main

import (
	"fmt"
	"os"

	"leadcrm_backend/platform/config"
	"leadcrm_backend/platform/logger"

	"github.com/spf13/cobra"
)

var (
	cfg *config.Config
	log *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "leadctl",
	Short: "Operator tooling for the lead pipeline",
	Long:  "Runs backfills, checks the Meta access token and applies database migrations outside the API process.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		log = logger.New(cfg.Env)
		return nil
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
