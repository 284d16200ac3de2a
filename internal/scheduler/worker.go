package scheduler

import (
	"context"
	"time"

	"leadcrm_backend/internal/leadsync"
	"leadcrm_backend/platform/config"
	"leadcrm_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// SyncRunner runs one backup sync pass.
type SyncRunner interface {
	Run(ctx context.Context, lookback time.Duration) leadsync.Summary
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	runner SyncRunner
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, runner SyncRunner, log *logger.Logger) (*Worker, error) {
	opt, err := redisClientOpt(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		runner: runner,
		log:    log,
	}

	mux.HandleFunc(TaskLeadBackupSync, w.handleLeadBackupSync)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// handleLeadBackupSync never returns the run's partial failures; the next
// periodic run covers them.
func (w *Worker) handleLeadBackupSync(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseLeadBackupSyncPayload(task)
	if err != nil {
		return err
	}

	summary := w.runner.Run(ctx, payload.Lookback())
	if summary.Errors > 0 {
		w.log.Warn("scheduler: lead backup sync finished with errors", "errors", summary.Errors)
	}
	return nil
}
