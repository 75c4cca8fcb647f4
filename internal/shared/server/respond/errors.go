package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"persona-backend/internal/shared/telemetry"
)

// ErrorBody is the client-facing error. Details carries retry hints such as
// "retryable" and "startAssessment" for report lookups.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorResponse is the {"error": {...}} envelope every handler returns on failure.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Error logs the failure and aborts with the standard envelope. 4xx are warnings.
func Error(c *gin.Context, status int, code, message string, details any) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"route":      c.FullPath(),
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	for key, field := range map[string]string{"userId": "user_id", "analysisId": "analysis_id", "assessmentId": "assessment_id"} {
		if v := c.GetString(key); v != "" {
			fields[field] = v
		}
	}
	if status >= http.StatusInternalServerError {
		telemetry.Error("http.error", fields)
	} else {
		telemetry.Warn("http.error", fields)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{Error: ErrorBody{Code: code, Message: message, Details: details}})
}
