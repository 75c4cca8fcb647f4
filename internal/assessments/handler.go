package assessments

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"persona-backend/internal/shared/server/middleware"
	"persona-backend/internal/shared/server/respond"
)

// Handler serves assessments and draft progress.
type Handler struct {
	Repo   Repo
	Drafts DraftStore
}

// NewHandler constructs a Handler.
func NewHandler(repo Repo, drafts DraftStore) *Handler {
	return &Handler{Repo: repo, Drafts: drafts}
}

// RegisterRoutes attaches assessment routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/assessments", h.list)
	rg.GET("/assessments/draft", h.getDraft)
	rg.PUT("/assessments/draft", h.saveDraft)
	rg.DELETE("/assessments/draft", h.clearDraft)
	rg.GET("/assessments/:id", h.get)
}

func (h *Handler) list(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	items, err := h.Repo.ListByUser(c.Request.Context(), middleware.UserIDFromContext(c), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list assessments", nil)
		return
	}
	respond.JSON(c, http.StatusOK, items)
}

func (h *Handler) get(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.AssessmentIDKey, id)
	a, err := h.Repo.GetByID(c.Request.Context(), middleware.UserIDFromContext(c), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "assessment not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch assessment", nil)
		return
	}
	respond.JSON(c, http.StatusOK, a)
}

func (h *Handler) getDraft(c *gin.Context) {
	d, err := h.Drafts.Get(c.Request.Context(), middleware.UserIDFromContext(c), DraftKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "no saved progress", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load progress", nil)
		return
	}
	respond.JSON(c, http.StatusOK, d)
}

func (h *Handler) saveDraft(c *gin.Context) {
	var d Draft
	if err := c.ShouldBindJSON(&d); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid draft", nil)
		return
	}
	if d.CurrentQuestionIndex < 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "currentQuestionIndex must not be negative", nil)
		return
	}
	d.LastUpdated = time.Now().UTC()
	if err := h.Drafts.Save(c.Request.Context(), middleware.UserIDFromContext(c), DraftKey, d); err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to save progress", nil)
		return
	}
	respond.JSON(c, http.StatusOK, d)
}

func (h *Handler) clearDraft(c *gin.Context) {
	if err := h.Drafts.Clear(c.Request.Context(), middleware.UserIDFromContext(c), DraftKey); err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to clear progress", nil)
		return
	}
	c.Status(http.StatusNoContent)
}
