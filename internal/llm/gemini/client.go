package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"persona-backend/internal/llm"
	"persona-backend/internal/shared/telemetry"
)

// generator is the subset of *genai.Models used by Client.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client implements llm.Client on top of the Gemini API.
type Client struct {
	models generator
	model  string
}

// NewClient creates a Gemini-backed analysis client.
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if strings.TrimSpace(model) == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Client{models: client.Models, model: model}, nil
}

// Analyze asks Gemini for a JSON analysis. Invalid JSON gets one repair attempt
// and is otherwise returned verbatim for the caller to classify.
func (c *Client) Analyze(ctx context.Context, req llm.AnalysisRequest) (json.RawMessage, error) {
	raw, err := c.generate(ctx, llm.SystemPrompt+"\n\n"+llm.Instructions(req, c.model), llm.UserPrompt(req))
	if err != nil {
		return nil, err
	}
	if json.Valid(raw) {
		return raw, nil
	}
	telemetry.Warn("llm.invalid_json", map[string]any{
		"model":         c.model,
		"assessment_id": req.AssessmentID,
		"bytes":         len(raw),
	})
	return c.generate(ctx, llm.SystemPromptFixJSON, llm.FixPrompt(raw))
}

func (c *Client) generate(ctx context.Context, system, prompt string) (json.RawMessage, error) {
	temp := float32(0)
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       &temp,
	}
	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(prompt), config)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	text := strings.TrimSpace(stripFence(resp.Text()))
	if text == "" {
		return nil, fmt.Errorf("gemini response empty content")
	}
	fields := map[string]any{"model": c.model, "prompt_version": llm.PromptVersion}
	if resp.UsageMetadata != nil {
		fields["prompt_tokens"] = resp.UsageMetadata.PromptTokenCount
		fields["completion_tokens"] = resp.UsageMetadata.CandidatesTokenCount
		fields["total_tokens"] = resp.UsageMetadata.TotalTokenCount
	}
	telemetry.Info("llm.response", fields)
	return json.RawMessage(text), nil
}

// stripFence removes a surrounding ```json fence some models add despite the MIME type.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}

var _ llm.Client = (*Client)(nil)
