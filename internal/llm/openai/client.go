package openai

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"persona-backend/internal/llm"
	"persona-backend/internal/shared/telemetry"
)

var apiURL = "https://api.openai.com/v1/chat/completions"

// Client implements llm.Client using OpenAI Chat Completions.
type Client struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient constructs a new OpenAI client.
func NewClient(apiKey, model string) (*Client, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for OpenAI")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	timeout := 120 * time.Second
	if raw := strings.TrimSpace(os.Getenv("OPENAI_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return &Client{
		apiKey: apiKey,
		model:  model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    *float32       `json:"temperature,omitempty"`
	ResponseFormat responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *usage `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

var errTemperatureUnsupported = errors.New("openai temperature unsupported")

// Analyze sends the request and returns the model's JSON text. Output that is not
// valid JSON gets one repair round trip; whatever comes back is returned as is.
func (c *Client) Analyze(ctx context.Context, req llm.AnalysisRequest) (json.RawMessage, error) {
	messages := BuildPrompt(req, c.model)
	raw, err := c.complete(ctx, req, messages)
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
	return c.complete(ctx, req, buildFixPrompt(req, c.model, raw))
}

// complete runs one chat completion, retrying once without temperature when
// the model rejects a fixed temperature.
func (c *Client) complete(ctx context.Context, req llm.AnalysisRequest, messages []Message) (json.RawMessage, error) {
	withTemp := !omitTemperature(c.model)
	raw, err := c.analyzeOnce(ctx, req, messages, withTemp)
	if withTemp && errors.Is(err, errTemperatureUnsupported) {
		telemetry.Warn("llm.retry_without_temperature", map[string]any{"model": c.model})
		raw, err = c.analyzeOnce(ctx, req, messages, false)
	}
	return raw, err
}

func (c *Client) analyzeOnce(ctx context.Context, req llm.AnalysisRequest, messages []Message, withTemp bool) (json.RawMessage, error) {
	reqMessages := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		reqMessages = append(reqMessages, chatMessage{Role: m.Role, Content: m.Content})
	}
	reqBody := chatRequest{
		Model:    c.model,
		Messages: reqMessages,
		ResponseFormat: responseFormat{
			Type: "json_object",
		},
	}
	if withTemp {
		temp := float32(0)
		reqBody.Temperature = &temp
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return nil, fmt.Errorf("openai request timeout: %w", err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("openai response parse (http status %d): %w", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		if isTemperatureError(parsed.Error.Message) {
			return nil, fmt.Errorf("%w: %s", errTemperatureUnsupported, parsed.Error.Message)
		}
		return nil, fmt.Errorf("openai error (http status %d): %s (%s)", resp.StatusCode, parsed.Error.Message, parsed.Error.Type)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("openai response missing choices")
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return nil, fmt.Errorf("openai response empty content")
	}
	logUsage(c.model, req, promptHash(messages), parsed.Usage)
	return json.RawMessage(content), nil
}

func logUsage(model string, req llm.AnalysisRequest, hash string, u *usage) {
	fields := map[string]any{
		"model":          model,
		"prompt_version": llm.PromptVersion,
		"prompt_hash":    hash,
		"assessment_id":  req.AssessmentID,
		"responses":      req.ResponseCount,
	}
	if u != nil {
		fields["prompt_tokens"] = u.PromptTokens
		fields["completion_tokens"] = u.CompletionTokens
		fields["total_tokens"] = u.TotalTokens
	}
	telemetry.Info("llm.response", fields)
}

func isTemperatureError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "temperature") && (strings.Contains(lower, "unsupported") || strings.Contains(lower, "does not support"))
}

func omitTemperature(model string) bool {
	if isGPT5(model) {
		return true
	}
	normalized := strings.ToLower(strings.TrimSpace(model))
	for _, m := range strings.Split(os.Getenv("LLM_NO_TEMP0_MODELS"), ",") {
		if strings.ToLower(strings.TrimSpace(m)) == normalized && normalized != "" {
			return true
		}
	}
	return false
}

func isGPT5(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "gpt-5")
}

func promptHash(messages []Message) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

var _ llm.Client = (*Client)(nil)
