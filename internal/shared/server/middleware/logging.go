package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"persona-backend/internal/shared/telemetry"
)

// Context keys handlers set so the request log can be joined with analysis logs.
const (
	AnalysisIDKey     = "analysisId"
	AssessmentIDKey   = "assessmentId"
	ResolveOutcomeKey = "resolveOutcome"
)

// Logging emits one request.complete line per request. Preflights are skipped.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := map[string]any{
			"request_id":      RequestIDFromContext(c),
			"method":          c.Request.Method,
			"route":           c.FullPath(),
			"path":            c.Request.URL.Path,
			"status":          status,
			"duration_ms":     float64(time.Since(start).Microseconds()) / 1000.0,
			"user_id":         UserIDFromContext(c),
			"is_guest":        IsGuest(c),
			"assessment_id":   c.GetString(AssessmentIDKey),
			"analysis_id":     c.GetString(AnalysisIDKey),
			"resolve_outcome": c.GetString(ResolveOutcomeKey),
			"client_ip":       c.ClientIP(),
		}
		if status >= http.StatusInternalServerError {
			telemetry.Error("request.complete", fields)
			return
		}
		telemetry.Info("request.complete", fields)
	}
}
