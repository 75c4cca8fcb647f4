package submission

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"persona-backend/internal/credits"
	"persona-backend/internal/reconcile"
	"persona-backend/internal/shared/server/middleware"
	"persona-backend/internal/shared/server/respond"
	"persona-backend/internal/shared/telemetry"
)

// Handler exposes assessment submission.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches submission routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/assessments/submit", h.submit)
}

func (h *Handler) submit(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid json body", nil)
		return
	}
	if req.AssessmentID != "" {
		c.Set(middleware.AssessmentIDKey, req.AssessmentID)
	}

	rec := &reconcile.Recorder{}
	res, err := h.Svc.Submit(c.Request.Context(), middleware.UserIDFromContext(c), req, rec)
	if err != nil {
		h.writeError(c, err, rec.Events())
		return
	}
	c.Set(middleware.AnalysisIDKey, res.AnalysisID)
	respond.JSON(c, http.StatusOK, gin.H{
		"assessmentId": res.AssessmentID,
		"analysisId":   res.AnalysisID,
		"redirect":     res.Redirect,
		"partial":      res.Partial,
		"fallback":     res.Fallback,
		"warning":      res.Warning,
		"report":       res.Report,
		"progress":     rec.Events(),
	})
}

func (h *Handler) writeError(c *gin.Context, err error, events []reconcile.Progress) {
	var few *NotEnoughResponsesError
	var terr *reconcile.TerminalError
	switch {
	case errors.Is(err, ErrUnauthenticated):
		respond.Error(c, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
	case errors.As(err, &few):
		respond.Error(c, http.StatusBadRequest, "not_enough_responses",
			"Please answer more questions before submitting.",
			gin.H{"minimum": few.Minimum, "received": few.Received})
	case errors.Is(err, ErrInvalidResponse):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrAssessmentConflict):
		respond.Error(c, http.StatusConflict, "assessment_conflict", "This assessment id is already in use. Start a new assessment.", nil)
	case errors.Is(err, credits.ErrInsufficientCredits):
		respond.Error(c, http.StatusPaymentRequired, "insufficient_credits", "Purchase a credit to take the premium assessment.", nil)
	case errors.Is(err, ErrProviderFailed):
		respond.Error(c, http.StatusBadGateway, "provider_failed", "We couldn't analyze your answers. Please try again.",
			gin.H{"retryable": true, "progress": events})
	case errors.As(err, &terr):
		respond.Error(c, http.StatusNotFound, string(terr.Kind), "Your answers were saved, but the report isn't ready. Retry, or start a new assessment.",
			gin.H{"retryable": terr.Retryable, "startAssessment": "/assessment", "progress": events})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respond.Error(c, http.StatusRequestTimeout, "timeout", "request canceled", nil)
	default:
		telemetry.Error("submission.failed", map[string]any{
			"request_id": middleware.RequestIDFromContext(c),
			"error":      err.Error(),
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to submit assessment", gin.H{"retryable": true})
	}
}
