package payments

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"persona-backend/internal/shared/server/middleware"
	"persona-backend/internal/shared/server/respond"
	"persona-backend/internal/shared/telemetry"
)

const maxWebhookBytes = int64(65536)

// Handler exposes checkout, verification, and the Stripe webhook.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches authenticated payment routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/payments/checkout", h.checkout)
	rg.POST("/payments/verify", h.verify)
}

// RegisterWebhookRoutes attaches the unauthenticated Stripe webhook.
func (h *Handler) RegisterWebhookRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhooks/stripe", h.webhook)
}

func (h *Handler) checkout(c *gin.Context) {
	if middleware.IsGuest(c) {
		respond.Error(c, http.StatusUnauthorized, "login_required", "sign in to purchase credits", nil)
		return
	}
	res, err := h.Svc.Checkout(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			respond.Error(c, http.StatusServiceUnavailable, "payments_unavailable", "billing not configured", nil)
			return
		}
		telemetry.Error("payments.checkout_failed", map[string]any{"error": err.Error()})
		respond.Error(c, http.StatusBadGateway, "payment_provider_error", "failed to create checkout session", nil)
		return
	}
	respond.JSON(c, http.StatusOK, res)
}

type verifyRequest struct {
	PaymentSessionID string `json:"paymentSessionId"`
}

func (h *Handler) verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid json body", nil)
		return
	}
	res, err := h.Svc.VerifyPayment(c.Request.Context(), middleware.UserIDFromContext(c), req.PaymentSessionID)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingSessionID):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		case errors.Is(err, ErrNotConfigured):
			respond.Error(c, http.StatusServiceUnavailable, "payments_unavailable", "billing not configured", nil)
		default:
			telemetry.Error("payments.verify_failed", map[string]any{"error": err.Error()})
			respond.JSON(c, http.StatusBadGateway, VerifyResult{Success: false, Message: "could not verify payment, try again"})
		}
		return
	}
	respond.JSON(c, http.StatusOK, res)
}

func (h *Handler) webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_payload", "invalid payload", nil)
		return
	}
	if err := h.Svc.HandleWebhook(c.Request.Context(), body, c.GetHeader("Stripe-Signature")); err != nil {
		switch {
		case errors.Is(err, ErrInvalidSignature):
			respond.Error(c, http.StatusBadRequest, "invalid_signature", "signature verification failed", nil)
		case errors.Is(err, ErrNotConfigured):
			respond.Error(c, http.StatusServiceUnavailable, "payments_unavailable", "webhook not configured", nil)
		default:
			telemetry.Error("payments.webhook_failed", map[string]any{"error": err.Error()})
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to process event", nil)
		}
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"status": "ok"})
}
