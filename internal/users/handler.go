package users

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"persona-backend/internal/shared/server/middleware"
	"persona-backend/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.me)
}

func (h *Handler) me(c *gin.Context) {
	if middleware.IsGuest(c) {
		respond.Error(c, http.StatusUnauthorized, "login_required", "sign in to view your profile", nil)
		return
	}
	profile, err := h.Svc.Profile(c.Request.Context(), middleware.UserIDFromContext(c))
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "user not found", nil)
		return
	case errors.Is(err, errNotConfigured):
		respond.Error(c, http.StatusServiceUnavailable, "unavailable", "accounts are not configured", nil)
		return
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load profile", nil)
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{
		"id":               profile.ID,
		"email":            profile.Email,
		"name":             profile.DisplayName(),
		"pictureUrl":       profile.PictureURL,
		"authProvider":     profile.AuthProvider,
		"creditsRemaining": profile.CreditsRemaining,
		"memberSince":      profile.CreatedAt,
	})
}
