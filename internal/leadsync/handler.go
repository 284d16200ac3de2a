package leadsync

import (
	"context"
	"crypto/subtle"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"leadcrm_backend/platform/apperr"
	"leadcrm_backend/platform/config"
	"leadcrm_backend/platform/httpkit"
	"leadcrm_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// Runner runs the backup sync and reports the last run.
type Runner interface {
	Run(ctx context.Context, lookback time.Duration) Summary
	LastRun(ctx context.Context) (Summary, bool, error)
}

// StatusResponse wraps the last stored run.
type StatusResponse struct {
	HasRun  bool     `json:"hasRun"`
	LastRun *Summary `json:"lastRun,omitempty"`
}

const (
	day = 24 * time.Hour

	// Cap on ?days when no max lookback is configured.
	defaultMaxDays = 365
)

type Handler struct {
	runner   Runner
	secret   string
	prefixes []netip.Prefix
	maxDays  int
	log      *logger.Logger
}

func NewHandler(runner Runner, cfg config.LeadSyncConfig, log *logger.Logger) *Handler {
	maxDays := defaultMaxDays
	if window := cfg.GetLeadSyncMaxLookback(); window > 0 {
		maxDays = int((window + day - 1) / day)
	}
	return &Handler{
		runner:   runner,
		secret:   cfg.GetCronSecret(),
		prefixes: parsePrefixes(cfg.GetCronTrustedCIDRs(), log),
		maxDays:  maxDays,
		log:      log,
	}
}

// HandleRun triggers one sync run and returns its summary.
// GET /api/v1/cron/lead-sync?days=N
func (h *Handler) HandleRun(c *gin.Context) {
	lookback, err := parseDays(c.Query("days"), h.maxDays)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	// The run outlives a dropped trigger connection.
	summary := h.runner.Run(context.WithoutCancel(c.Request.Context()), lookback)
	httpkit.OK(c, summary)
}

// HandleStatus returns the summary of the most recent run.
// GET /api/v1/cron/lead-sync/status
func (h *Handler) HandleStatus(c *gin.Context) {
	summary, ok, err := h.runner.LastRun(c.Request.Context())
	if err != nil {
		h.log.WithContext(c.Request.Context()).Error("leadsync: read run status failed", "error", err)
		httpkit.HandleError(c, apperr.Unavailable("run status unavailable", err))
		return
	}
	if !ok {
		httpkit.OK(c, StatusResponse{})
		return
	}
	httpkit.OK(c, StatusResponse{HasRun: true, LastRun: &summary})
}

// RequireCronAuth admits trusted networks or a matching bearer secret.
func (h *Handler) RequireCronAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.trusted(c.ClientIP()) || h.bearerMatches(c.GetHeader("Authorization")) {
			c.Next()
			return
		}
		h.log.Warn("leadsync: unauthorized trigger", "clientIp", c.ClientIP(), "path", c.Request.URL.Path)
		httpkit.HandleError(c, apperr.Unauthorized("unauthorized"))
		c.Abort()
	}
}

func (h *Handler) trusted(clientIP string) bool {
	if len(h.prefixes) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(clientIP)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range h.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func (h *Handler) bearerMatches(header string) bool {
	if h.secret == "" {
		return false
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(h.secret)) == 1
}

func parsePrefixes(cidrs []string, log *logger.Logger) []netip.Prefix {
	prefixes := make([]netip.Prefix, 0, len(cidrs))
	for _, raw := range cidrs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			if addr, err := netip.ParseAddr(raw); err == nil {
				prefixes = append(prefixes, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
				continue
			}
		}
		p, err := netip.ParsePrefix(raw)
		if err != nil {
			log.Warn("leadsync: ignoring invalid trusted CIDR", "cidr", raw, "error", err)
			continue
		}
		prefixes = append(prefixes, p.Masked())
	}
	return prefixes
}

// parseDays converts the days query to a lookback. Empty means the default
// window; anything above maxDays is capped before it can overflow a Duration.
func parseDays(raw string, maxDays int) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 {
		return 0, apperr.BadRequest("days must be a positive integer")
	}
	if days > maxDays {
		days = maxDays
	}
	return time.Duration(days) * day, nil
}
