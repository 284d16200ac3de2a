package scheduler

import (
	"context"
	"fmt"
	"time"

	"leadcrm_backend/platform/config"
	"leadcrm_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Periodic enqueues the backup sync on the configured cron spec.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
	opt, err := redisClientOpt(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	spec := cfg.GetLeadSyncCronSpec()
	if spec == "" {
		return nil, fmt.Errorf("lead sync cron spec not configured")
	}

	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		Location: time.UTC,
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				log.Warn("scheduler: periodic enqueue failed", "error", err)
				return
			}
			log.Debug("scheduler: periodic task enqueued", "taskId", info.ID, "type", info.Type)
		},
	})

	task, err := NewLeadBackupSyncTask(0)
	if err != nil {
		return nil, err
	}
	if _, err := scheduler.Register(spec, task, asynq.Queue(queueName(cfg)), asynq.Unique(backupSyncUniqueTTL), asynq.MaxRetry(0)); err != nil {
		return nil, fmt.Errorf("register lead sync schedule %q: %w", spec, err)
	}

	return &Periodic{scheduler: scheduler, log: log}, nil
}

func (p *Periodic) Run(ctx context.Context) {
	if p == nil || p.scheduler == nil {
		return
	}

	if err := p.scheduler.Start(); err != nil {
		p.log.Error("scheduler: periodic scheduler failed to start", "error", err)
		return
	}
	<-ctx.Done()
	p.scheduler.Shutdown()
}
