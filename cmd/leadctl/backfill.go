package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"leadcrm_backend/internal/bootstrap"
	"leadcrm_backend/internal/scheduler"

	"github.com/spf13/cobra"
)

var (
	backfillDays    int
	backfillEnqueue bool
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Repair placeholders and ingest leads missed by the webhook",
	Long:  "Runs the backup sync over the last --days days. With --enqueue the run is handed to the scheduler worker instead.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if backfillDays < 1 {
			return fmt.Errorf("--days must be at least 1")
		}
		lookback := time.Duration(backfillDays) * 24 * time.Hour

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if backfillEnqueue {
			client, err := scheduler.NewClient(cfg)
			if err != nil {
				return fmt.Errorf("scheduler client: %w", err)
			}
			defer func() { _ = client.Close() }()

			id, err := client.EnqueueLeadBackupSync(ctx, lookback)
			if err != nil {
				return fmt.Errorf("enqueue backup sync: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued task %s\n", id)
			return nil
		}

		pool, err := bootstrap.Connect(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer pool.Close()

		pipeline, err := bootstrap.NewPipeline(pool, cfg, log)
		if err != nil {
			return err
		}
		defer pipeline.Close()

		summary := pipeline.Sync.Run(ctx, lookback)

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	backfillCmd.Flags().IntVar(&backfillDays, "days", 1, "lookback window in days (capped by LEAD_SYNC_MAX_LOOKBACK)")
	backfillCmd.Flags().BoolVar(&backfillEnqueue, "enqueue", false, "enqueue the run for the scheduler worker")
	rootCmd.AddCommand(backfillCmd)
}
