package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"persona-backend/internal/analyses"
	"persona-backend/internal/assessments"
	"persona-backend/internal/credits"
	"persona-backend/internal/llm"
	"persona-backend/internal/normalize"
	"persona-backend/internal/questions"
	"persona-backend/internal/reconcile"
	"persona-backend/internal/shared/metrics"
	"persona-backend/internal/shared/telemetry"
)

const (
	partialWarning     = "Your report is only partially complete. Some sections may be missing."
	placeholderWarning = "We couldn't read this analysis. Your answers are kept so you can try again."
)

// Analyzer invokes the analysis provider synchronously.
type Analyzer interface {
	Run(ctx context.Context, req analyses.ProviderRequest) (analyses.Analysis, error)
}

// Resolver confirms an analysis is retrievable.
type Resolver interface {
	Resolve(ctx context.Context, userID, target string, n reconcile.Notifier) (analyses.Analysis, error)
}

// Credits is the subset of the credits service used for paid submissions.
type Credits interface {
	Consume(ctx context.Context, userID string) (credits.Balance, error)
	Refund(ctx context.Context, userID string) (credits.Balance, error)
}

// Config tunes submission.
type Config struct {
	MinResponses           int
	ProviderTimeout        time.Duration
	CompleteTraitThreshold int
}

func (c Config) withDefaults() Config {
	if c.MinResponses <= 0 {
		c.MinResponses = 5
	}
	if c.ProviderTimeout <= 0 {
		c.ProviderTimeout = 120 * time.Second
	}
	if c.CompleteTraitThreshold <= 0 {
		c.CompleteTraitThreshold = normalize.DefaultCompleteThreshold
	}
	return c
}

// Request is a completed questionnaire.
type Request struct {
	AssessmentID string                 `json:"assessmentId"`
	Variant      string                 `json:"variant"`
	Responses    []assessments.Response `json:"responses"`
}

// Result tells the caller where the report lives.
type Result struct {
	AssessmentID string           `json:"assessmentId"`
	AnalysisID   string           `json:"analysisId"`
	Redirect     string           `json:"redirect"`
	Partial      bool             `json:"partial"`
	Fallback     bool             `json:"fallback"`
	Warning      string           `json:"warning,omitempty"`
	Report       normalize.Report `json:"report"`
}

// History finds earlier analyses for resubmissions and provider fallbacks.
type History interface {
	GetByAssessmentID(ctx context.Context, userID, assessmentID string) (analyses.Analysis, error)
	MostRecentReportForUser(ctx context.Context, userID string) (analyses.Analysis, error)
}

// Service runs the submission flow.
type Service struct {
	Assessments assessments.Repo
	Drafts      assessments.DraftStore
	Questions   *questions.Bank
	Analyzer    Analyzer
	Resolver    Resolver
	History     History
	Credits     Credits
	Config      Config
}

// Submit validates and persists the questionnaire, runs the provider, and
// confirms the analysis through the resolver. The saved draft is cleared only
// once an analysis is confirmed retrievable.
//
// Resubmitting an assessment id the caller already owns reuses the stored
// assessment: an analysis that is done or still running is confirmed as is,
// otherwise the provider runs again.
func (s *Service) Submit(ctx context.Context, userID string, req Request, n reconcile.Notifier) (Result, error) {
	if strings.TrimSpace(userID) == "" {
		return Result{}, ErrUnauthenticated
	}
	cfg := s.Config.withDefaults()

	responses, err := s.prepare(req.Responses)
	if err != nil {
		return Result{}, err
	}
	if len(responses) < cfg.MinResponses {
		return Result{}, &NotEnoughResponsesError{Minimum: cfg.MinResponses, Received: len(responses)}
	}

	assessment, resubmit, err := s.stored(ctx, userID, strings.TrimSpace(req.AssessmentID))
	if err != nil {
		return Result{}, err
	}
	if resubmit {
		telemetry.Info("submission.resubmit", map[string]any{"user_id": userID, "assessment_id": assessment.ID})
		if prior, ok := s.priorAnalysis(ctx, userID, assessment.ID); ok {
			return s.confirm(ctx, userID, assessment, prior.ID, false, cfg, n)
		}
	} else {
		assessment = assessments.Assessment{
			ID:        strings.TrimSpace(req.AssessmentID),
			UserID:    userID,
			Variant:   variantOf(req.Variant),
			Responses: responses,
			CreatedAt: time.Now().UTC(),
		}
		if assessment.ID == "" {
			assessment.ID = uuid.NewString()
		}
	}

	paid := false
	if assessment.Variant == questions.VariantPremium && s.Credits != nil {
		if _, err := s.Credits.Consume(ctx, userID); err != nil {
			return Result{}, err
		}
		paid = true
	}

	if !resubmit {
		if err := s.Assessments.Create(ctx, assessment); err != nil {
			s.refund(ctx, userID, paid)
			if errors.Is(err, assessments.ErrExists) {
				return Result{}, ErrAssessmentConflict
			}
			return Result{}, fmt.Errorf("save assessment: %w", err)
		}
		telemetry.Info("submission.assessment_saved", map[string]any{
			"user_id":       userID,
			"assessment_id": assessment.ID,
			"variant":       assessment.Variant,
		})
	}
	metrics.IncSubmission()

	target, fallback, err := s.invoke(ctx, userID, assessment)
	if err != nil {
		s.refund(ctx, userID, paid)
		return Result{}, err
	}
	if fallback {
		s.refund(ctx, userID, paid)
		target, err = s.fallbackTarget(ctx, userID)
		if err != nil {
			return Result{}, err
		}
	}
	return s.confirm(ctx, userID, assessment, target, fallback, cfg, n)
}

// confirm resolves target and builds the result. A failed placeholder never
// counts as confirmed, and the draft is cleared only for a real new report.
func (s *Service) confirm(ctx context.Context, userID string, assessment assessments.Assessment, target string, fallback bool, cfg Config, n reconcile.Notifier) (Result, error) {
	resolved, err := s.Resolver.Resolve(ctx, userID, target, n)
	if err != nil {
		return Result{}, err
	}
	if resolved.Status == analyses.StatusFailed {
		return Result{}, fmt.Errorf("%w: analysis %s failed", ErrProviderFailed, resolved.ID)
	}

	// Fallbacks and placeholders leave the new answers unanalysed; keep them.
	keepDraft := fallback || resolved.Report.Placeholder
	if s.Drafts != nil && !keepDraft {
		if err := s.Drafts.Clear(context.WithoutCancel(ctx), userID, assessments.DraftKey); err != nil {
			telemetry.Warn("submission.draft_clear_failed", map[string]any{"user_id": userID, "error": err.Error()})
		}
	}

	res := Result{
		AssessmentID: assessment.ID,
		AnalysisID:   resolved.ID,
		Redirect:     "/report/" + resolved.ID,
		Fallback:     fallback,
		Report:       resolved.Report,
	}
	switch {
	case fallback:
		res.Warning = "We couldn't finish a new analysis, so we're showing your most recent report."
	case resolved.Report.Placeholder:
		res.Warning = placeholderWarning
	}
	if !resolved.Report.IsComplete(cfg.CompleteTraitThreshold) {
		res.Partial = true
		if res.Warning == "" {
			res.Warning = partialWarning
		}
	}
	telemetry.Info("submission.complete", map[string]any{
		"user_id":       userID,
		"assessment_id": assessment.ID,
		"analysis_id":   resolved.ID,
		"partial":       res.Partial,
		"fallback":      fallback,
		"draft_kept":    keepDraft,
	})
	return res, nil
}

// stored returns the caller's existing assessment for id, if any.
func (s *Service) stored(ctx context.Context, userID, id string) (assessments.Assessment, bool, error) {
	if id == "" {
		return assessments.Assessment{}, false, nil
	}
	a, err := s.Assessments.GetByID(ctx, userID, id)
	switch {
	case err == nil:
		return a, true, nil
	case errors.Is(err, assessments.ErrNotFound):
		return assessments.Assessment{}, false, nil
	}
	return assessments.Assessment{}, false, fmt.Errorf("load assessment: %w", err)
}

// priorAnalysis finds a finished or in-flight analysis of the assessment.
// Failed rows are skipped so a retry runs the provider again.
func (s *Service) priorAnalysis(ctx context.Context, userID, assessmentID string) (analyses.Analysis, bool) {
	if s.History == nil {
		return analyses.Analysis{}, false
	}
	a, err := s.History.GetByAssessmentID(ctx, userID, assessmentID)
	if err != nil {
		if !errors.Is(err, analyses.ErrNotFound) {
			telemetry.Warn("submission.prior_lookup_failed", map[string]any{"user_id": userID, "assessment_id": assessmentID, "error": err.Error()})
		}
		return analyses.Analysis{}, false
	}
	if a.Status == analyses.StatusFailed || (a.Status == analyses.StatusCompleted && a.Report.Placeholder) {
		return analyses.Analysis{}, false
	}
	return a, true
}

// fallbackTarget picks the user's newest real report. The failed row the
// provider just wrote is never a candidate.
func (s *Service) fallbackTarget(ctx context.Context, userID string) (string, error) {
	if s.History == nil {
		return "", ErrProviderFailed
	}
	prior, err := s.History.MostRecentReportForUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, analyses.ErrNotFound) {
			telemetry.Warn("submission.fallback_lookup_failed", map[string]any{"user_id": userID, "error": err.Error()})
		}
		return "", fmt.Errorf("%w: no earlier report to show", ErrProviderFailed)
	}
	return prior.ID, nil
}

func variantOf(raw string) string {
	if strings.EqualFold(strings.TrimSpace(raw), questions.VariantPremium) {
		return questions.VariantPremium
	}
	return questions.VariantStandard
}

// invoke runs the provider under the submission timeout. A failure or timeout
// is reported as fallback rather than an error.
func (s *Service) invoke(ctx context.Context, userID string, a assessments.Assessment) (string, bool, error) {
	cfg := s.Config.withDefaults()
	pctx, cancel := context.WithTimeout(ctx, cfg.ProviderTimeout)
	defer cancel()

	req := analyses.ProviderRequest{
		UserID:       userID,
		AssessmentID: a.ID,
		Variant:      a.Variant,
		Responses:    toLLM(a.Responses),
	}
	analysis, err := s.Analyzer.Run(pctx, req)
	if err == nil && analysis.ID != "" {
		return analysis.ID, false, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", false, ctxErr
	}
	if err == nil {
		err = errors.New("provider returned no analysis id")
	}
	metrics.IncSubmissionFallback()
	telemetry.Warn("submission.provider_failed", map[string]any{
		"user_id":       userID,
		"assessment_id": a.ID,
		"timeout":       errors.Is(err, context.DeadlineExceeded),
		"error":         err.Error(),
	})
	return "", true, nil
}

// prepare drops blank answers and fills question text and category from the bank.
func (s *Service) prepare(in []assessments.Response) ([]assessments.Response, error) {
	out := make([]assessments.Response, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	now := time.Now().UTC()
	for _, r := range in {
		r.QuestionID = strings.TrimSpace(r.QuestionID)
		r.Answer = strings.TrimSpace(r.Answer)
		if r.Answer == "" {
			continue
		}
		if r.QuestionID == "" {
			return nil, fmt.Errorf("%w: questionId is required", ErrInvalidResponse)
		}
		if _, dup := seen[r.QuestionID]; dup {
			continue
		}
		seen[r.QuestionID] = struct{}{}
		if s.Questions != nil {
			if q, ok := s.Questions.Get(r.QuestionID); ok {
				if strings.TrimSpace(r.Question) == "" {
					r.Question = q.Text
				}
				if strings.TrimSpace(r.Category) == "" {
					r.Category = q.Category
				}
			}
		}
		if strings.TrimSpace(r.Question) == "" {
			return nil, fmt.Errorf("%w: unknown question %s", ErrInvalidResponse, r.QuestionID)
		}
		if r.AnsweredAt.IsZero() {
			r.AnsweredAt = now
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Service) refund(ctx context.Context, userID string, paid bool) {
	if !paid {
		return
	}
	if _, err := s.Credits.Refund(context.WithoutCancel(ctx), userID); err != nil {
		telemetry.Error("submission.refund_failed", map[string]any{"user_id": userID, "error": err.Error()})
	}
}

func toLLM(in []assessments.Response) []llm.Response {
	out := make([]llm.Response, len(in))
	for i, r := range in {
		out[i] = llm.Response{
			QuestionID: r.QuestionID,
			Question:   r.Question,
			Answer:     r.Answer,
			Category:   r.Category,
		}
	}
	return out
}
