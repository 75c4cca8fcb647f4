package analyses

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"time"

	"persona-backend/internal/llm"
	"persona-backend/internal/shared/telemetry"
)

var llmRetryBaseDelay = 300 * time.Millisecond

// retryingLLM retries a provider call once on transient failures.
type retryingLLM struct {
	base       llm.Client
	requestID  string
	analysisID string
}

func newRetryingLLM(base llm.Client, analysisID, requestID string) llm.Client {
	if base == nil {
		return nil
	}
	return retryingLLM{
		base:       base,
		requestID:  requestID,
		analysisID: analysisID,
	}
}

func (r retryingLLM) Analyze(ctx context.Context, req llm.AnalysisRequest) (json.RawMessage, error) {
	resp, err := r.base.Analyze(ctx, req)
	if err == nil || !shouldRetryLLM(err) {
		return resp, err
	}

	telemetry.Warn("llm.retry", map[string]any{
		"attempt":     1,
		"request_id":  r.requestID,
		"analysis_id": r.analysisID,
		"error":       sanitizeError(err),
	})
	timer := time.NewTimer(llmRetryBaseDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return r.base.Analyze(ctx, req)
}

func shouldRetryLLM(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, llm.ErrNotImplemented) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "http status 5") || strings.Contains(msg, "server_error") {
		return true
	}
	if strings.Contains(msg, "timeout") && (strings.Contains(msg, "openai") || strings.Contains(msg, "gemini") || strings.Contains(msg, "llm") || strings.Contains(msg, "client.timeout")) {
		return true
	}
	if strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "tls handshake timeout") ||
		strings.Contains(msg, "eof") {
		return true
	}

	return false
}

type requestIDKey struct{}

// WithRequestID attaches a request ID to the context for logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// detach keeps request values but drops the request's deadline and cancellation.
func detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
