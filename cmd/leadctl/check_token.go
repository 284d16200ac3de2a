package main

import (
	"fmt"

	"leadcrm_backend/internal/metaleads"

	"github.com/spf13/cobra"
)

var checkTokenCmd = &cobra.Command{
	Use:   "check-token",
	Short: "Validate the configured Meta access token",
	RunE: func(cmd *cobra.Command, _ []string) error {
		client := metaleads.New(cfg, log)

		status, err := client.ValidateCredential(cmd.Context())
		if err != nil {
			return fmt.Errorf("validate token: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "token: %s\n", status)
		if status != metaleads.CredentialValid {
			return fmt.Errorf("access token is %s", status)
		}
		return nil
	},
}

func init() { rootCmd.AddCommand(checkTokenCmd) }
