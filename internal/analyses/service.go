package analyses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"persona-backend/internal/llm"
	"persona-backend/internal/normalize"
	"persona-backend/internal/queue"
	"persona-backend/internal/shared/metrics"
	"persona-backend/internal/shared/storage/object"
	"persona-backend/internal/shared/telemetry"
)

const (
	placeholderFailedOverview    = "We couldn't complete your personality analysis this time. Your answers are saved; please try again in a few minutes."
	placeholderMalformedOverview = "Your analysis finished, but the results came back in a format we couldn't read. Retake the assessment or try again later for a full report."
	rawTextLimit                 = 2000
)

// Service runs the analysis provider and persists its results.
type Service struct {
	Repo     Repo
	LLM      llm.Client
	Store    object.ObjectStore
	Queue    queue.Client
	Provider string
	Model    string

	inflight sync.WaitGroup
}

// Run creates an analysis and processes it before returning.
func (s *Service) Run(ctx context.Context, req ProviderRequest) (Analysis, error) {
	analysis, err := s.create(ctx, req)
	if err != nil {
		return Analysis{}, err
	}
	return s.process(ctx, analysis.ID, req)
}

// Start creates a queued analysis and completes it in the background, through the
// job queue when one is configured.
func (s *Service) Start(ctx context.Context, req ProviderRequest) (Analysis, error) {
	analysis, err := s.create(ctx, req)
	if err != nil {
		return Analysis{}, err
	}

	if s.Queue != nil {
		msg := queue.Message{
			AnalysisID: analysis.ID,
			UserID:     analysis.UserID,
			RequestID:  requestIDFromContext(ctx),
			EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
			Version:    queue.MessageVersion,
			Request:    req.AnalysisRequest(),
		}
		if err := s.Queue.Send(ctx, msg); err != nil {
			s.finishFailed(ctx, analysis, fmt.Errorf("enqueue: %w", err), nil)
			return Analysis{}, err
		}
		telemetry.Info("analysis.enqueued", map[string]any{
			"request_id":    msg.RequestID,
			"analysis_id":   analysis.ID,
			"assessment_id": analysis.AssessmentID,
		})
		return analysis, nil
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		_, _ = s.process(detach(ctx), analysis.ID, req)
	}()
	return analysis, nil
}

// Process completes a queued analysis; the worker entry point.
func (s *Service) Process(ctx context.Context, msg queue.Message) error {
	if strings.TrimSpace(msg.AnalysisID) == "" {
		return fmt.Errorf("%w: missing analysis id", ErrInvalidRequest)
	}
	ctx = WithRequestID(ctx, msg.RequestID)
	req := ProviderRequest{
		UserID:       msg.UserID,
		AssessmentID: msg.Request.AssessmentID,
		Variant:      msg.Request.Variant,
		Responses:    msg.Request.Responses,
	}
	_, err := s.process(ctx, msg.AnalysisID, req)
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		// Recorded on the row; redelivery would not help.
		return nil
	}
	return err
}

// Wait blocks until background processing started by Start has finished.
func (s *Service) Wait() {
	s.inflight.Wait()
}

// Get returns an analysis the user may read.
func (s *Service) Get(ctx context.Context, userID, analysisID string) (Analysis, error) {
	if strings.TrimSpace(analysisID) == "" {
		return Analysis{}, errors.New("analysisID is required")
	}
	analysis, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		return Analysis{}, err
	}
	if !analysis.AccessibleTo(userID) {
		return Analysis{}, ErrNotFound
	}
	return analysis, nil
}

// List returns analyses for a user ordered newest-first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Analysis, error) {
	if userID == "" {
		return nil, errors.New("userID is required")
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

func (s *Service) create(ctx context.Context, req ProviderRequest) (Analysis, error) {
	if strings.TrimSpace(req.AssessmentID) == "" {
		return Analysis{}, fmt.Errorf("%w: assessmentId is required", ErrInvalidRequest)
	}
	if len(req.Responses) == 0 {
		return Analysis{}, fmt.Errorf("%w: responses are required", ErrInvalidRequest)
	}
	now := time.Now().UTC()
	analysis := Analysis{
		ID:           NewID(),
		UserID:       req.UserID,
		AssessmentID: req.AssessmentID,
		Status:       StatusQueued,
		Provider:     normalizeProvider(s.Provider),
		Model:        s.Model,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Repo.Create(ctx, analysis); err != nil {
		return Analysis{}, fmt.Errorf("create analysis: %w", err)
	}
	return analysis, nil
}

func (s *Service) process(ctx context.Context, analysisID string, req ProviderRequest) (result Analysis, err error) {
	defer func() {
		if r := recover(); r != nil {
			current, _ := s.Repo.GetByID(context.WithoutCancel(ctx), analysisID)
			perr := fmt.Errorf("panic: %v", r)
			result = s.finishFailed(ctx, current, perr, nil)
			err = &ProviderError{AnalysisID: analysisID, Code: ErrorCodeInternal, Err: perr}
		}
	}()

	startedAt := time.Now().UTC()
	if err := s.Repo.MarkProcessing(ctx, analysisID, startedAt); err != nil {
		if errors.Is(err, ErrAlreadyFinal) {
			return s.Repo.GetByID(ctx, analysisID)
		}
		return Analysis{}, fmt.Errorf("set processing: %w", err)
	}
	analysis, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		return Analysis{}, fmt.Errorf("analysis lookup: %w", err)
	}

	metrics.IncAnalysisStarted()
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"user_id":           analysis.UserID,
		"assessment_id":     analysis.AssessmentID,
		"analysis_id":       analysis.ID,
		"status":            StatusProcessing,
		"status_transition": "queued->processing",
	})

	if s.LLM == nil {
		perr := errors.New("missing llm client")
		return s.finishFailed(ctx, analysis, perr, &startedAt), &ProviderError{AnalysisID: analysisID, Code: ErrorCodeLLMUnavailable, Err: perr}
	}

	client := newRetryingLLM(s.LLM, analysisID, requestIDFromContext(ctx))
	raw, err := client.Analyze(ctx, req.AnalysisRequest())
	if err != nil {
		perr := fmt.Errorf("llm analyze: %w", err)
		code, _ := classifyFailure(perr)
		return s.finishFailed(ctx, analysis, perr, &startedAt), &ProviderError{AnalysisID: analysisID, Code: code, Err: perr}
	}

	rawKey := s.archiveRaw(ctx, analysis, raw)
	resultMap, report, placeholder := interpret(raw)

	completedAt := time.Now().UTC()
	outcome := Outcome{
		Status:      StatusCompleted,
		Result:      resultMap,
		Report:      report,
		RawKey:      rawKey,
		CompletedAt: completedAt,
	}
	if placeholder {
		outcome.ErrorCode = ErrorCodeLLMSchemaMismatch
		outcome.ErrorMessage = "provider output could not be interpreted"
	}
	if err := s.Repo.Finish(ctx, analysisID, outcome); err != nil {
		if errors.Is(err, ErrAlreadyFinal) {
			return s.Repo.GetByID(ctx, analysisID)
		}
		serr := fmt.Errorf("set analysis result: %w", err)
		return s.finishFailed(ctx, analysis, serr, &startedAt), serr
	}

	if placeholder {
		metrics.IncAnalysisPlaceholder()
	}
	metrics.IncAnalysisCompleted()
	metrics.ObserveAnalysisDurationMs(durationMs(startedAt, completedAt))
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"user_id":           analysis.UserID,
		"assessment_id":     analysis.AssessmentID,
		"analysis_id":       analysis.ID,
		"status":            StatusCompleted,
		"status_transition": "processing->completed",
		"placeholder":       placeholder,
		"traits":            len(report.Traits),
		"duration_ms":       durationMs(startedAt, completedAt),
	})
	return s.Repo.GetByID(ctx, analysisID)
}

// interpret parses provider output. Anything unusable becomes a placeholder
// whose overview explains what happened.
func interpret(raw json.RawMessage) (map[string]any, normalize.Report, bool) {
	var parsed map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&parsed); err != nil || parsed == nil {
		result := map[string]any{
			"overview":    placeholderMalformedOverview,
			"placeholder": true,
			"rawText":     truncate(string(raw), rawTextLimit),
		}
		return result, normalize.Normalize(result), true
	}

	report := normalize.Normalize(parsed)
	if report.Usable() {
		return parsed, report, false
	}
	parsed["overview"] = placeholderMalformedOverview
	parsed["placeholder"] = true
	return parsed, normalize.Normalize(parsed), true
}

// archiveRaw stores provider output when an object store is configured.
// Failures are logged and do not fail the analysis.
func (s *Service) archiveRaw(ctx context.Context, analysis Analysis, raw json.RawMessage) string {
	if s.Store == nil || len(raw) == 0 {
		return ""
	}
	key, err := object.ProviderRawKey(analysis.UserID, analysis.ID)
	if err == nil {
		_, err = s.Store.Put(ctx, key, "application/json", bytes.NewReader(raw))
	}
	if err != nil {
		telemetry.Warn("analysis.raw_archive_failed", map[string]any{
			"analysis_id": analysis.ID,
			"error":       sanitizeError(err),
		})
		return ""
	}
	return key
}

func (s *Service) finishFailed(ctx context.Context, analysis Analysis, err error, startedAt *time.Time) Analysis {
	code, retryable := classifyFailure(err)
	msg := sanitizeError(err)
	completedAt := time.Now().UTC()
	result := map[string]any{
		"overview":    placeholderFailedOverview,
		"placeholder": true,
		"error":       code,
		"retryable":   retryable,
	}
	outcome := Outcome{
		Status:       StatusFailed,
		Result:       result,
		Report:       normalize.Normalize(result),
		ErrorCode:    code,
		ErrorMessage: msg,
		CompletedAt:  completedAt,
	}
	if analysis.ID != "" {
		if updateErr := s.Repo.Finish(context.WithoutCancel(ctx), analysis.ID, outcome); updateErr != nil {
			telemetry.Error("analysis.fail_update_failed", map[string]any{
				"analysis_id": analysis.ID,
				"error":       updateErr,
				"cause":       msg,
			})
		}
	}
	metrics.IncAnalysisFailed()
	duration := 0.0
	if startedAt != nil {
		duration = durationMs(*startedAt, completedAt)
		metrics.ObserveAnalysisDurationMs(duration)
	}
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"user_id":           analysis.UserID,
		"assessment_id":     analysis.AssessmentID,
		"analysis_id":       analysis.ID,
		"status":            StatusFailed,
		"status_transition": "processing->failed",
		"error_code":        code,
		"duration_ms":       duration,
	})

	analysis.Status = StatusFailed
	analysis.Result = outcome.Result
	analysis.Report = outcome.Report
	analysis.ErrorCode = code
	analysis.ErrorMessage = msg
	analysis.CompletedAt = &completedAt
	return analysis
}

func normalizeProvider(provider string) string {
	if strings.TrimSpace(provider) == "" {
		return "openai"
	}
	return provider
}

func durationMs(startedAt, completedAt time.Time) float64 {
	return float64(completedAt.Sub(startedAt).Microseconds()) / 1000.0
}

func classifyFailure(err error) (string, bool) {
	if err == nil {
		return ErrorCodeInternal, false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorCodeLLMTimeout, true
	}
	if errors.Is(err, llm.ErrNotImplemented) {
		return ErrorCodeLLMUnavailable, false
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "request timeout") {
		return ErrorCodeLLMTimeout, true
	}
	if strings.Contains(msg, "timeout") && strings.Contains(msg, "llm") {
		return ErrorCodeLLMTimeout, true
	}
	if strings.Contains(msg, "missing llm client") {
		return ErrorCodeLLMUnavailable, false
	}
	if strings.Contains(msg, "schema") || strings.Contains(msg, "llm output") {
		return ErrorCodeLLMSchemaMismatch, false
	}
	if strings.Contains(msg, "enqueue") || strings.Contains(msg, "storage") || strings.Contains(msg, "analysis result") || strings.Contains(msg, "set processing") {
		return ErrorCodeStorage, true
	}
	if strings.Contains(msg, "llm") {
		return ErrorCodeLLMUnavailable, true
	}
	return ErrorCodeInternal, false
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	return truncate(strings.TrimSpace(msg), 500)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
