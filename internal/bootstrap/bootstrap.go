// Package bootstrap assembles the lead pipeline for the binaries in cmd/.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadcrm_backend/internal/ingest"
	"leadcrm_backend/internal/leads/repository"
	"leadcrm_backend/internal/leadsync"
	"leadcrm_backend/internal/metaleads"
	"leadcrm_backend/migrations"
	"leadcrm_backend/platform/config"
	"leadcrm_backend/platform/db"
	"leadcrm_backend/platform/logger"
	"leadcrm_backend/platform/redisconn"
	"leadcrm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const (
	connectAttempts  = 5
	connectBaseDelay = 2 * time.Second
)

// Pipeline holds the wired ingestion components shared by every binary.
type Pipeline struct {
	Repository *repository.Repository
	Meta       *metaleads.Client
	Ingest     *ingest.Service
	Sync       *leadsync.Job
	Status     leadsync.StatusStore

	redis *redis.Client
}

// Connect opens the pgx pool, retrying while the database comes up.
func Connect(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	err := WithRetry(ctx, log, "database connection", connectAttempts, connectBaseDelay, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// Migrate applies the embedded migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool, log *logger.Logger) error {
	return WithRetry(ctx, log, "database migrations", connectAttempts, connectBaseDelay, func() error {
		return db.RunMigrations(ctx, pool, migrations.FS)
	})
}

// NewPipeline wires repository, Graph client, ingestion service and sync job.
// Without REDIS_URL the sync status is not persisted.
func NewPipeline(pool *pgxpool.Pool, cfg *config.Config, log *logger.Logger) (*Pipeline, error) {
	repo := repository.New(pool)
	client := metaleads.New(cfg, log)
	svc := ingest.New(repo, client, cfg, validator.New(), log)

	p := &Pipeline{
		Repository: repo,
		Meta:       client,
		Ingest:     svc,
		Status:     leadsync.NopStatusStore{},
	}

	if cfg.GetRedisURL() != "" {
		rdb, err := redisconn.NewClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("redis client: %w", err)
		}
		p.redis = rdb
		p.Status = leadsync.NewRedisStatusStore(rdb)
	} else {
		log.Warn("REDIS_URL not configured; lead sync status will not be stored")
	}

	p.Sync = leadsync.NewJob(svc, client, repo, p.Status, cfg, log)
	return p, nil
}

func (p *Pipeline) Close() {
	if p != nil && p.redis != nil {
		_ = p.redis.Close()
	}
}

// WithRetry runs fn up to attempts times with quadratic backoff.
func WithRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
