package analyses

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"persona-backend/internal/llm"
	"persona-backend/internal/shared/server/middleware"
	"persona-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyses", h.invokeProvider)
	rg.GET("/analyses", h.listAnalyses)
	rg.GET("/analyses/:id", h.getAnalysis)
}

type invokeRequest struct {
	AssessmentID string         `json:"assessmentId"`
	UserID       string         `json:"userId"`
	Variant      string         `json:"variant"`
	Responses    []llm.Response `json:"responses"`
}

// invokeProvider runs the provider synchronously, or queues it with ?async=true.
func (h *Handler) invokeProvider(c *gin.Context) {
	var body invokeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	// The authenticated principal always owns the analysis; body userId is advisory.
	req := ProviderRequest{
		UserID:       middleware.UserIDFromContext(c),
		AssessmentID: body.AssessmentID,
		Variant:      body.Variant,
		Responses:    body.Responses,
	}
	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	c.Set(middleware.AssessmentIDKey, req.AssessmentID)

	if c.Query("async") == "true" {
		analysis, err := h.Svc.Start(ctx, req)
		if err != nil {
			h.startError(c, err)
			return
		}
		c.Set(middleware.AnalysisIDKey, analysis.ID)
		respond.JSON(c, http.StatusAccepted, gin.H{
			"analysisId": analysis.ID,
			"status":     analysis.Status,
		})
		return
	}

	analysis, err := h.Svc.Run(ctx, req)
	if analysis.ID != "" {
		c.Set(middleware.AnalysisIDKey, analysis.ID)
	}
	var providerErr *ProviderError
	switch {
	case errors.As(err, &providerErr):
		respond.Error(c, http.StatusBadGateway, "provider_failed", "analysis provider failed", gin.H{
			"analysisId": providerErr.AnalysisID,
			"errorCode":  providerErr.Code,
		})
		return
	case err != nil:
		h.startError(c, err)
		return
	}

	respond.JSON(c, http.StatusOK, gin.H{
		"analysisId": analysis.ID,
		"analysis":   preview(analysis),
	})
}

func (h *Handler) startError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start analysis", nil)
	}
}

func (h *Handler) getAnalysis(c *gin.Context) {
	analysisID := c.Param("id")
	if analysisID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "analysis id is required", nil)
		return
	}
	c.Set(middleware.AnalysisIDKey, analysisID)

	analysis, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c), analysisID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis", nil)
		}
		return
	}

	resp := gin.H{
		"id":           analysis.ID,
		"assessmentId": analysis.AssessmentID,
		"status":       analysis.Status,
		"createdAt":    analysis.CreatedAt,
	}
	if analysis.Terminal() {
		resp["result"] = analysis.Result
		resp["report"] = analysis.Report
	}
	if analysis.ErrorCode != "" {
		resp["errorCode"] = analysis.ErrorCode
	}

	respond.JSON(c, http.StatusOK, resp)
}

func (h *Handler) listAnalyses(c *gin.Context) {
	if middleware.IsGuest(c) {
		respond.Error(c, http.StatusUnauthorized, "login_required", "Login required to view history", nil)
		return
	}

	userID := middleware.UserIDFromContext(c)

	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit < 0 {
		limit = 0
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	analyses, err := h.Svc.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list analyses", nil)
		return
	}

	resp := make([]gin.H, 0, len(analyses))
	for _, a := range analyses {
		item := gin.H{
			"analysisId":   a.ID,
			"assessmentId": a.AssessmentID,
			"status":       a.Status,
			"createdAt":    a.CreatedAt,
		}
		if a.Terminal() {
			item["overview"] = a.Report.Overview
			item["traitCount"] = len(a.Report.Traits)
			item["placeholder"] = a.Report.Placeholder
		}
		resp = append(resp, item)
	}

	respond.JSON(c, http.StatusOK, resp)
}

// preview is the subset of a report returned with the provider response.
func preview(a Analysis) gin.H {
	traits := a.Report.Traits
	if len(traits) > 3 {
		traits = traits[:3]
	}
	return gin.H{
		"id":          a.ID,
		"status":      a.Status,
		"overview":    a.Report.Overview,
		"traits":      traits,
		"placeholder": a.Report.Placeholder,
	}
}
