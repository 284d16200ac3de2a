package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"leadcrm_backend/internal/ingest"
	"leadcrm_backend/platform/apperr"
	"leadcrm_backend/platform/config"
	"leadcrm_backend/platform/httpkit"
	"leadcrm_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

const (
	modeSubscribe       = "subscribe"
	maxBodyBytes        = 1 << 20
	defaultEventTimeout = 25 * time.Second
)

// Notifier ingests one lead notification.
type Notifier interface {
	HandleNotification(ctx context.Context, n ingest.LeadNotification) ingest.Result
}

// DeliveryResponse is returned for every POST, whatever happened to the events.
type DeliveryResponse struct {
	Success   bool `json:"success"`
	Processed int  `json:"processed"`
	Failed    int  `json:"failed"`
}

// Handler serves the Meta lead webhook.
type Handler struct {
	notifier Notifier
	cfg      config.WebhookConfig
	log      *logger.Logger
}

// NewHandler creates a new webhook handler.
func NewHandler(notifier Notifier, cfg config.WebhookConfig, log *logger.Logger) *Handler {
	return &Handler{notifier: notifier, cfg: cfg, log: log}
}

// HandleVerify answers the subscription handshake.
// GET /api/v1/webhooks/meta/leads
func (h *Handler) HandleVerify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	expected := h.cfg.GetMetaVerifyToken()
	if mode != modeSubscribe || expected == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
		h.log.Warn("webhook: verification rejected", "mode", mode, "clientIp", c.ClientIP())
		httpkit.Error(c, http.StatusForbidden, "verification failed", nil)
		return
	}

	h.log.Info("webhook: subscription verified")
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(challenge))
}

// HandleDelivery processes a batch of lead events.
// POST /api/v1/webhooks/meta/leads
// Always answers 200 unless the signature is wrong; failures surface in logs.
func (h *Handler) HandleDelivery(c *gin.Context) {
	log := h.log.WithContext(c.Request.Context())

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		log.Error("webhook: read body failed", "error", err)
		c.JSON(http.StatusOK, DeliveryResponse{Success: true})
		return
	}

	if !h.verify(c, log, body) {
		return
	}

	var payload DeliveryPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Error("webhook: malformed body", "error", err, "bytes", len(body))
		c.JSON(http.StatusOK, DeliveryResponse{Success: true})
		return
	}

	notifications, malformed := leadNotifications(payload)
	resp := DeliveryResponse{Success: true, Failed: malformed}
	if malformed > 0 {
		log.Warn("webhook: undecodable changes skipped", "count", malformed)
	}
	// Processing outlives a sender that hangs up early.
	parent := context.WithoutCancel(c.Request.Context())
	for _, n := range notifications {
		res := h.process(parent, n)
		switch res.Outcome {
		case ingest.OutcomeCreated, ingest.OutcomeSkipped:
			resp.Processed++
		default:
			resp.Failed++
		}
	}

	if len(notifications) > 0 || malformed > 0 {
		log.Info("webhook: delivery handled", "object", payload.Object, "events", len(notifications),
			"processed", resp.Processed, "failed", resp.Failed)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) verify(c *gin.Context, log *logger.Logger, body []byte) bool {
	secret := h.cfg.GetMetaAppSecret()
	if secret == "" {
		log.Warn("webhook: app secret not configured, signature not verified")
		return true
	}

	err := VerifySignature(secret, body, c.GetHeader(signatureHeader))
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrSignatureMissing):
		log.Warn("webhook: delivery without signature", "clientIp", c.ClientIP())
		return true
	default:
		log.Warn("webhook: invalid signature", "clientIp", c.ClientIP())
		httpkit.HandleError(c, apperr.Unauthorized("invalid signature"))
		return false
	}
}

// process runs one event under its own timeout. A panic fails only this event.
func (h *Handler) process(parent context.Context, n ingest.LeadNotification) (res ingest.Result) {
	timeout := h.cfg.GetWebhookEventTimeout()
	if timeout <= 0 {
		timeout = defaultEventTimeout
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			h.log.Error("webhook: event processing panicked", "leadgenId", n.LeadgenID, "panic", fmt.Sprint(r))
			res = ingest.Result{Outcome: ingest.OutcomeFailed, Reason: "panic"}
		}
	}()

	return h.notifier.HandleNotification(ctx, n)
}
