package analyses

import (
	"time"

	"persona-backend/internal/llm"
	"persona-backend/internal/normalize"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Analysis is the stored result of one provider call for an assessment.
// UserID may be empty when the provider could not associate an owner.
type Analysis struct {
	ID           string           `json:"id"`
	UserID       string           `json:"userId,omitempty"`
	AssessmentID string           `json:"assessmentId,omitempty"`
	Status       string           `json:"status"`
	Result       map[string]any   `json:"result,omitempty"`
	Report       normalize.Report `json:"report"`
	RawKey       string           `json:"-"`
	Provider     string           `json:"provider,omitempty"`
	Model        string           `json:"model,omitempty"`
	ErrorCode    string           `json:"errorCode,omitempty"`
	ErrorMessage string           `json:"errorMessage,omitempty"`
	StartedAt    *time.Time       `json:"startedAt,omitempty"`
	CompletedAt  *time.Time       `json:"completedAt,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// Terminal reports whether the analysis has left the queue for good.
func (a Analysis) Terminal() bool {
	return a.Status == StatusCompleted || a.Status == StatusFailed
}

// Usable reports whether the analysis has a non-empty overview or trait list.
func (a Analysis) Usable() bool {
	return a.Terminal() && a.Report.Usable()
}

// RealReport reports whether the analysis completed with provider output rather
// than a placeholder. Only these stand in for a failed submission.
func (a Analysis) RealReport() bool {
	return a.Status == StatusCompleted && !a.Report.Placeholder && a.Report.Usable()
}

// AccessibleTo reports whether userID may read the analysis.
func (a Analysis) AccessibleTo(userID string) bool {
	return a.UserID == "" || a.UserID == userID
}

// ProviderRequest is the body of a provider invocation.
type ProviderRequest struct {
	UserID       string         `json:"userId,omitempty"`
	AssessmentID string         `json:"assessmentId"`
	Variant      string         `json:"variant,omitempty"`
	Responses    []llm.Response `json:"responses"`
}

// AnalysisRequest derives the provider payload.
func (r ProviderRequest) AnalysisRequest() llm.AnalysisRequest {
	return llm.NewAnalysisRequest(r.AssessmentID, r.Variant, r.Responses)
}
