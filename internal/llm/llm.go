package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// Client abstracts LLM providers for personality analysis. Implementations
// return the provider's raw JSON text; callers decide how to treat malformed output.
type Client interface {
	Analyze(ctx context.Context, req AnalysisRequest) (json.RawMessage, error)
}

// Response is one answered question as sent to the provider.
type Response struct {
	QuestionID string `json:"questionId"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Category   string `json:"category"`
}

// AnalysisRequest is the provider payload: responses plus derived context.
type AnalysisRequest struct {
	AssessmentID         string         `json:"assessmentId"`
	Variant              string         `json:"variant,omitempty"`
	Responses            []Response     `json:"responses"`
	CategoryDistribution map[string]int `json:"categoryDistribution"`
	ResponseCount        int            `json:"responseCount"`
}

// NewAnalysisRequest derives the category distribution and response count.
func NewAnalysisRequest(assessmentID, variant string, responses []Response) AnalysisRequest {
	dist := make(map[string]int)
	for _, r := range responses {
		cat := strings.TrimSpace(r.Category)
		if cat == "" {
			cat = "general"
		}
		dist[cat]++
	}
	return AnalysisRequest{
		AssessmentID:         assessmentID,
		Variant:              variant,
		Responses:            responses,
		CategoryDistribution: dist,
		ResponseCount:        len(responses),
	}
}

// ErrNotImplemented is returned by the placeholder client.
var ErrNotImplemented = errors.New("LLM not implemented")

// PlaceholderClient stands in when no provider is configured.
type PlaceholderClient struct{}

// Analyze returns ErrNotImplemented.
func (PlaceholderClient) Analyze(ctx context.Context, req AnalysisRequest) (json.RawMessage, error) {
	return nil, ErrNotImplemented
}
