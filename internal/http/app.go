// Package http holds the module contract and the dependencies the router needs.
package http

import (
	"context"

	"leadcrm_backend/platform/config"
	"leadcrm_backend/platform/logger"
)

// HealthChecker backs GET /api/ready.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App is assembled in cmd/api and passed to router.New.
type App struct {
	Config  config.HTTPConfig
	Logger  *logger.Logger
	Health  HealthChecker
	Modules []Module
}
