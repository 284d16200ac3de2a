package http

import "github.com/gin-gonic/gin"

// Module is an HTTP-facing bounded context (webhook, cron trigger).
type Module interface {
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext is what the router hands to each module.
type RouterContext struct {
	Engine *gin.Engine
	// V1 is /api/v1.
	V1 *gin.RouterGroup
	// RateLimit is the shared per-IP limiter for machine-to-machine routes.
	RateLimit gin.HandlerFunc
}
