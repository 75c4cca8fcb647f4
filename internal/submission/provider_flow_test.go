package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"persona-backend/internal/analyses"
	"persona-backend/internal/assessments"
	"persona-backend/internal/credits"
	"persona-backend/internal/llm"
	"persona-backend/internal/questions"
)

// scriptedLLM answers provider calls from a function so tests can run the real
// analyses.Service, including the failed rows it writes.
type scriptedLLM struct {
	mu      sync.Mutex
	calls   int
	respond func(ctx context.Context) (json.RawMessage, error)
}

func (l *scriptedLLM) Analyze(ctx context.Context, _ llm.AnalysisRequest) (json.RawMessage, error) {
	l.mu.Lock()
	l.calls++
	respond := l.respond
	l.mu.Unlock()
	return respond(ctx)
}

func (l *scriptedLLM) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func (l *scriptedLLM) set(respond func(ctx context.Context) (json.RawMessage, error)) {
	l.mu.Lock()
	l.respond = respond
	l.mu.Unlock()
}

var errProviderRejected = errors.New("provider rejected request: invalid api key")

func rejectAll(context.Context) (json.RawMessage, error) { return nil, errProviderRejected }

func fullReport(context.Context) (json.RawMessage, error) {
	traits := make([]string, 8)
	for i := range traits {
		traits[i] = fmt.Sprintf(`{"name":"Trait %d","score":0.%d}`, i, i+1)
	}
	return json.RawMessage(`{"overview":"Curious and steady.","traits":[` + strings.Join(traits, ",") + `]}`), nil
}

// withProvider swaps the fake analyzer for the real analysis service.
func withProvider(t *testing.T, f *fixture, l *scriptedLLM) {
	t.Helper()
	f.svc.Analyzer = &analyses.Service{Repo: f.analyses, LLM: l, Provider: "openai"}
}

func saveDraft(t *testing.T, f *fixture, userID string) {
	t.Helper()
	require.NoError(t, f.repo.Save(context.Background(), userID, assessments.DraftKey, assessments.Draft{CurrentQuestionIndex: 5}))
}

func requireDraftKept(t *testing.T, f *fixture, userID string) {
	t.Helper()
	_, err := f.repo.Get(context.Background(), userID, assessments.DraftKey)
	require.NoError(t, err, "draft must survive until a new report is confirmed")
}

func TestSubmitProviderFailureFallsBackPastFailedRow(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	f.write(t, "older-analysis", "user-1", "as-old", 9)
	saveDraft(t, f, "user-1")
	withProvider(t, f, &scriptedLLM{respond: rejectAll})

	res, err := f.svc.Submit(ctx, "user-1", Request{AssessmentID: "as-new", Responses: answers(5)}, nil)
	require.NoError(t, err)
	require.True(t, res.Fallback)
	require.Equal(t, "older-analysis", res.AnalysisID)
	require.Equal(t, "/report/older-analysis", res.Redirect)
	require.Equal(t, "Curious and steady.", res.Report.Overview)
	requireDraftKept(t, f, "user-1")

	failed, err := f.analyses.GetByAssessmentID(ctx, "user-1", "as-new")
	require.NoError(t, err)
	require.Equal(t, analyses.StatusFailed, failed.Status, "the failed attempt is still recorded")
}

func TestSubmitProviderTimeoutFallsBackPastFailedRow(t *testing.T) {
	f := newFixture(t, 2)
	f.svc.Config.ProviderTimeout = 20 * time.Millisecond
	f.write(t, "older-analysis", "user-1", "as-old", 9)
	saveDraft(t, f, "user-1")
	withProvider(t, f, &scriptedLLM{respond: func(ctx context.Context) (json.RawMessage, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}})

	res, err := f.svc.Submit(context.Background(), "user-1", Request{AssessmentID: "as-new", Responses: answers(5)}, nil)
	require.NoError(t, err)
	require.True(t, res.Fallback)
	require.Equal(t, "older-analysis", res.AnalysisID)
	requireDraftKept(t, f, "user-1")
}

func TestSubmitProviderFailureWithoutHistoryKeepsDraft(t *testing.T) {
	f := newFixture(t, 2)
	saveDraft(t, f, "user-1")
	withProvider(t, f, &scriptedLLM{respond: rejectAll})

	_, err := f.svc.Submit(context.Background(), "user-1", Request{AssessmentID: "as-new", Responses: answers(5)}, nil)
	require.ErrorIs(t, err, ErrProviderFailed)
	requireDraftKept(t, f, "user-1")
	require.Zero(t, f.clock.polls)
}

func TestSubmitMalformedOutputKeepsDraft(t *testing.T) {
	f := newFixture(t, 2)
	f.write(t, "older-analysis", "user-1", "as-old", 9)
	saveDraft(t, f, "user-1")
	withProvider(t, f, &scriptedLLM{respond: func(context.Context) (json.RawMessage, error) {
		return json.RawMessage(`Sure! Here is your analysis: you are curious.`), nil
	}})

	res, err := f.svc.Submit(context.Background(), "user-1", Request{AssessmentID: "as-new", Responses: answers(5)}, nil)
	require.NoError(t, err)
	require.False(t, res.Fallback)
	require.NotEqual(t, "older-analysis", res.AnalysisID)
	require.True(t, res.Report.Placeholder)
	require.True(t, res.Partial)
	require.Equal(t, placeholderWarning, res.Warning)
	requireDraftKept(t, f, "user-1")
}

func TestSubmitRealProviderClearsDraft(t *testing.T) {
	f := newFixture(t, 2)
	saveDraft(t, f, "user-1")
	withProvider(t, f, &scriptedLLM{respond: fullReport})

	res, err := f.svc.Submit(context.Background(), "user-1", Request{AssessmentID: "as-new", Responses: answers(5)}, nil)
	require.NoError(t, err)
	require.False(t, res.Partial)
	require.Len(t, res.Report.Traits, 8)
	for _, tr := range res.Report.Traits {
		require.True(t, tr.Score >= 0 && tr.Score <= 10)
	}
	_, err = f.repo.Get(context.Background(), "user-1", assessments.DraftKey)
	require.ErrorIs(t, err, assessments.ErrNotFound)
}

func TestSubmitRetryReusesAssessment(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	_, _, err := f.credits.Grant(ctx, credits.Purchase{SessionID: "cs_1", UserID: "user-1", Credits: 1})
	require.NoError(t, err)
	provider := &scriptedLLM{respond: rejectAll}
	withProvider(t, f, provider)
	req := Request{AssessmentID: "as-1", Variant: questions.VariantPremium, Responses: answers(5)}

	_, err = f.svc.Submit(ctx, "user-1", req, nil)
	require.ErrorIs(t, err, ErrProviderFailed)
	b, err := f.credits.Balance(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 1, b.Remaining, "failed attempt is refunded")

	provider.set(fullReport)
	res, err := f.svc.Submit(ctx, "user-1", req, nil)
	require.NoError(t, err)
	require.Equal(t, "as-1", res.AssessmentID)
	require.Equal(t, 2, provider.count())

	b, err = f.credits.Balance(ctx, "user-1")
	require.NoError(t, err)
	require.Zero(t, b.Remaining)
	list, err := f.repo.ListByUser(ctx, "user-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)

	again, err := f.svc.Submit(ctx, "user-1", req, nil)
	require.NoError(t, err)
	require.Equal(t, res.AnalysisID, again.AnalysisID)
	require.Equal(t, 2, provider.count(), "a finished analysis is not re-run")
	b, err = f.credits.Balance(ctx, "user-1")
	require.NoError(t, err)
	require.Zero(t, b.Remaining, "confirming an existing report costs nothing")
}

func TestSubmitAssessmentIDOwnedByAnotherUser(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	require.NoError(t, f.repo.Create(ctx, assessments.Assessment{ID: "as-1", UserID: "user-2", CreatedAt: time.Now().UTC()}))
	provider := &scriptedLLM{respond: fullReport}
	withProvider(t, f, provider)

	_, err := f.svc.Submit(ctx, "user-1", Request{AssessmentID: "as-1", Responses: answers(5)}, nil)
	require.ErrorIs(t, err, ErrAssessmentConflict)
	require.Zero(t, provider.count())
}
