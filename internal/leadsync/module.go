package leadsync

import (
	apphttp "leadcrm_backend/internal/http"
	"leadcrm_backend/platform/config"
	"leadcrm_backend/platform/logger"
)

// Module exposes the backup sync trigger routes.
type Module struct {
	handler *Handler
}

func NewModule(runner Runner, cfg config.LeadSyncConfig, log *logger.Logger) *Module {
	return &Module{handler: NewHandler(runner, cfg, log)}
}

func (m *Module) Name() string {
	return "leadsync"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/cron/lead-sync")
	if ctx.RateLimit != nil {
		group.Use(ctx.RateLimit)
	}
	group.Use(m.handler.RequireCronAuth())
	group.GET("", m.handler.HandleRun)
	group.GET("/status", m.handler.HandleStatus)
}

var _ apphttp.Module = (*Module)(nil)
