// Package webhook provides the Meta lead-ads webhook bounded context module.
package webhook

import (
	apphttp "leadcrm_backend/internal/http"
	"leadcrm_backend/platform/config"
	"leadcrm_backend/platform/logger"
)

// Module is the webhook bounded context module implementing http.Module.
type Module struct {
	handler *Handler
}

// NewModule creates the webhook module around the ingestion service.
func NewModule(notifier Notifier, cfg config.WebhookConfig, log *logger.Logger) *Module {
	return &Module{handler: NewHandler(notifier, cfg, log)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts webhook routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/webhooks/meta")
	if ctx.RateLimit != nil {
		group.Use(ctx.RateLimit)
	}
	group.GET("/leads", m.handler.HandleVerify)
	group.POST("/leads", m.handler.HandleDelivery)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
