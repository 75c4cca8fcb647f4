package reconcile

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"persona-backend/internal/analyses"
	"persona-backend/internal/shared/server/middleware"
	"persona-backend/internal/shared/server/respond"
	"persona-backend/internal/shared/telemetry"
)

const startAssessmentPath = "/assessment"

// Handler exposes resolution over HTTP.
type Handler struct {
	Reconciler             *Reconciler
	CompleteTraitThreshold int
}

// NewHandler constructs a Handler.
func NewHandler(r *Reconciler, completeTraitThreshold int) *Handler {
	return &Handler{Reconciler: r, CompleteTraitThreshold: completeTraitThreshold}
}

// RegisterRoutes attaches report routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/reports/latest", h.latest)
	rg.GET("/reports/:id", h.report)
	rg.GET("/reports/:id/events", h.events)
}

func (h *Handler) latest(c *gin.Context) {
	h.resolveJSON(c, "")
}

func (h *Handler) report(c *gin.Context) {
	h.resolveJSON(c, c.Param("id"))
}

func (h *Handler) resolveJSON(c *gin.Context, target string) {
	if target != "" {
		c.Set(middleware.AnalysisIDKey, target)
	}
	rec := &Recorder{}
	a, err := h.Reconciler.Resolve(c.Request.Context(), middleware.UserIDFromContext(c), target, rec)
	c.Set(middleware.ResolveOutcomeKey, outcomeOf(err))
	if err != nil {
		h.writeError(c, err, rec.Events())
		return
	}
	respond.Uncached(c, http.StatusOK, h.body(a, rec.Events()))
}

// events streams progress as server-sent events and ends with "resolved" or "failed".
func (h *Handler) events(c *gin.Context) {
	target := c.Param("id")
	c.Set(middleware.AnalysisIDKey, target)
	userID := middleware.UserIDFromContext(c)
	ctx := c.Request.Context()

	progress := make(chan Progress, h.Reconciler.ProgressBudget())
	type outcome struct {
		analysis analyses.Analysis
		err      error
	}
	done := make(chan outcome, 1)
	notifier := NotifierFunc(func(p Progress) {
		select {
		case progress <- p:
		default:
			telemetry.Warn("reconcile.progress_dropped", map[string]any{
				"user_id": userID,
				"target":  target,
				"stage":   p.Stage,
				"attempt": p.Attempt,
			})
		}
	})
	go func() {
		a, err := h.Reconciler.Resolve(ctx, userID, target, notifier)
		done <- outcome{analysis: a, err: err}
	}()

	finished := false
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case p := <-progress:
			c.SSEvent("progress", p)
			return true
		case res := <-done:
			finished = true
			c.Set(middleware.ResolveOutcomeKey, outcomeOf(res.err))
			for drained := false; !drained; {
				select {
				case p := <-progress:
					c.SSEvent("progress", p)
				default:
					drained = true
				}
			}
			if res.err != nil {
				c.SSEvent("failed", errorBody(res.err))
				return false
			}
			c.SSEvent("resolved", h.body(res.analysis, nil))
			return false
		case <-ctx.Done():
			return false
		}
	})
	// The resolver never outlives the request.
	if !finished {
		<-done
	}
}

func (h *Handler) body(a analyses.Analysis, events []Progress) gin.H {
	body := gin.H{
		"analysisId":   a.ID,
		"assessmentId": a.AssessmentID,
		"status":       a.Status,
		"report":       a.Report,
		"complete":     a.Report.IsComplete(h.CompleteTraitThreshold),
		"redirect":     "/report/" + a.ID,
		"createdAt":    a.CreatedAt,
	}
	if events != nil {
		body["progress"] = events
	}
	return body
}

func outcomeOf(err error) string {
	var terr *TerminalError
	switch {
	case err == nil:
		return "resolved"
	case errors.As(err, &terr):
		return string(terr.Kind)
	case isContextErr(err):
		return "cancelled"
	}
	return "error"
}

func (h *Handler) writeError(c *gin.Context, err error, events []Progress) {
	var terr *TerminalError
	if !errors.As(err, &terr) {
		if isContextErr(err) {
			respond.Error(c, http.StatusRequestTimeout, "cancelled", "report lookup cancelled", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to resolve report", nil)
		return
	}
	details := gin.H{
		"retryable":       terr.Retryable,
		"startAssessment": startAssessmentPath,
		"progress":        events,
	}
	switch terr.Kind {
	case KindUnauthenticated:
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "sign in to view your report", nil)
	case KindNoAnalyses:
		respond.Error(c, http.StatusNotFound, "no_analyses", "No analyses yet. Take the assessment to get your report.", details)
	default:
		respond.Error(c, http.StatusNotFound, "not_found", "We couldn't find this report. Retry, or start a new assessment.", details)
	}
}

func errorBody(err error) gin.H {
	var terr *TerminalError
	if errors.As(err, &terr) {
		return gin.H{
			"code":            string(terr.Kind),
			"retryable":       terr.Retryable,
			"startAssessment": startAssessmentPath,
		}
	}
	return gin.H{"code": "internal_error", "retryable": true}
}
