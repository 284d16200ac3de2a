package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadcrm_backend/internal/bootstrap"
	apphttp "leadcrm_backend/internal/http"
	"leadcrm_backend/internal/http/router"
	"leadcrm_backend/internal/leadsync"
	"leadcrm_backend/internal/webhook"
	"leadcrm_backend/platform/config"
	"leadcrm_backend/platform/db"
	"leadcrm_backend/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	pool, err := bootstrap.Connect(ctx, cfg, log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	if err := bootstrap.Migrate(ctx, pool, log); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	if cfg.GetMetaAccessToken() == "" {
		log.Warn("META_ACCESS_TOKEN not configured; lead details will be stored as placeholders")
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	pipeline, err := bootstrap.NewPipeline(pool, cfg, log)
	if err != nil {
		log.Error("failed to initialize lead pipeline", "error", err)
		panic("failed to initialize lead pipeline: " + err.Error())
	}
	defer pipeline.Close()

	webhookModule := webhook.NewModule(pipeline.Ingest, cfg, log)
	leadSyncModule := leadsync.NewModule(pipeline.Sync, cfg, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config: cfg,
		Logger: log,
		Health: db.NewPoolAdapter(pool),
		Modules: []apphttp.Module{
			webhookModule,
			leadSyncModule,
		},
	}

	engine := router.New(app)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}
