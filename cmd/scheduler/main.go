package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"leadcrm_backend/internal/bootstrap"
	"leadcrm_backend/internal/scheduler"
	"leadcrm_backend/platform/config"
	"leadcrm_backend/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env, "cron", cfg.GetLeadSyncCronSpec())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := bootstrap.Connect(ctx, cfg, log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	pipeline, err := bootstrap.NewPipeline(pool, cfg, log)
	if err != nil {
		log.Error("failed to initialize lead pipeline", "error", err)
		panic("failed to initialize lead pipeline: " + err.Error())
	}
	defer pipeline.Close()

	periodic, err := scheduler.NewPeriodic(cfg, log)
	if err != nil {
		log.Error("failed to initialize periodic scheduler", "error", err)
		panic("failed to initialize periodic scheduler: " + err.Error())
	}

	worker, err := scheduler.NewWorker(cfg, pipeline.Sync, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		periodic.Run(ctx)
	}()

	worker.Run(ctx)
	wg.Wait()
}
