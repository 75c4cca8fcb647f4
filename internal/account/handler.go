package account

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"persona-backend/internal/shared/server/middleware"
	"persona-backend/internal/shared/server/respond"
	"persona-backend/internal/shared/telemetry"
)

// Handler exposes guest-to-account claiming.
type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/account/claim-guest", h.claim)
}

type claimBody struct {
	GuestID string `json:"guestId"`
}

type claimResponse struct {
	ClaimResult
	Total int `json:"total"`
}

// guestIDFromRequest prefers the JSON body and falls back to X-Guest-Id.
func guestIDFromRequest(c *gin.Context) string {
	var body claimBody
	if c.Request.ContentLength != 0 {
		_ = c.ShouldBindJSON(&body)
	}
	if id := strings.TrimSpace(body.GuestID); id != "" {
		return id
	}
	return strings.TrimSpace(c.GetHeader("X-Guest-Id"))
}

func (h *Handler) claim(c *gin.Context) {
	if h.Svc == nil {
		respond.Error(c, http.StatusServiceUnavailable, "not_configured", "account service unavailable", nil)
		return
	}
	owner := strings.TrimSpace(middleware.UserIDFromContext(c))
	if middleware.IsGuest(c) || owner == "" {
		respond.Error(c, http.StatusUnauthorized, "login_required", "sign in to claim guest data", nil)
		return
	}

	guestID := guestIDFromRequest(c)
	issue := ""
	switch {
	case guestID == "":
		issue = "required"
	case uuid.Validate(guestID) != nil:
		issue = "invalid"
	}
	if issue != "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "guest id "+issue, []map[string]string{
			{"field": "guestId", "issue": issue},
		})
		return
	}

	res, err := h.Svc.ClaimGuest(c.Request.Context(), "guest:"+guestID, owner)
	if err != nil {
		telemetry.Error("account.claim.failed", map[string]any{
			"user_id":    owner,
			"request_id": middleware.RequestIDFromContext(c),
			"error":      err.Error(),
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "claim failed", nil)
		return
	}
	respond.JSON(c, http.StatusOK, claimResponse{
		ClaimResult: res,
		Total:       res.MigratedAssessments + res.MigratedAnalyses + res.MigratedActivities,
	})
}
