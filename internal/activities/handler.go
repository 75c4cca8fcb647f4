package activities

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"persona-backend/internal/analyses"
	"persona-backend/internal/shared/server/middleware"
	"persona-backend/internal/shared/server/respond"
)

// Handler exposes activity endpoints.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches activity routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/activities", h.list)
	rg.POST("/activities", h.create)
	rg.GET("/activities/progress", h.progress)
	rg.POST("/activities/suggest", h.suggest)
	rg.POST("/activities/:id/complete", h.complete)
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.Svc.List(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list activities", nil)
		return
	}
	respond.JSON(c, http.StatusOK, items)
}

func (h *Handler) create(c *gin.Context) {
	var in NewActivity
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid json body", nil)
		return
	}
	a, err := h.Svc.Create(c.Request.Context(), middleware.UserIDFromContext(c), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond.JSON(c, http.StatusCreated, a)
}

func (h *Handler) complete(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	a, completed, err := h.Svc.Complete(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	progress, err := h.Svc.Progress(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load progress", nil)
		return
	}
	pointsAwarded := 0
	if completed {
		pointsAwarded = a.Points
	}
	respond.JSON(c, http.StatusOK, gin.H{
		"activity":      a,
		"pointsAwarded": pointsAwarded,
		"progress":      progress,
	})
}

func (h *Handler) progress(c *gin.Context) {
	p, err := h.Svc.Progress(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load progress", nil)
		return
	}
	respond.JSON(c, http.StatusOK, p)
}

type suggestRequest struct {
	AnalysisID string `json:"analysisId" binding:"required"`
}

func (h *Handler) suggest(c *gin.Context) {
	var req suggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "analysisId is required", nil)
		return
	}
	c.Set(middleware.AnalysisIDKey, req.AnalysisID)
	items, err := h.Svc.Suggest(c.Request.Context(), middleware.UserIDFromContext(c), req.AnalysisID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond.JSON(c, http.StatusCreated, items)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalid):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrNotFound), errors.Is(err, analyses.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "not found", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "activity request failed", nil)
	}
}
