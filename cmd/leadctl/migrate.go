package main

import (
	"fmt"

	"leadcrm_backend/internal/bootstrap"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		pool, err := bootstrap.Connect(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := bootstrap.Migrate(ctx, pool, log); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}

func init() { rootCmd.AddCommand(migrateCmd) }
