package submission

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"persona-backend/internal/analyses"
	"persona-backend/internal/assessments"
)

type fakeStarter struct {
	got []analyses.ProviderRequest
}

func (f *fakeStarter) Start(_ context.Context, req analyses.ProviderRequest) (analyses.Analysis, error) {
	f.got = append(f.got, req)
	return analyses.Analysis{ID: "started-1", AssessmentID: req.AssessmentID}, nil
}

func TestTriggerStartsAnalysisForOwnedAssessment(t *testing.T) {
	ctx := context.Background()
	repo := assessments.NewMemoryRepo()
	require.NoError(t, repo.Create(ctx, assessments.Assessment{
		ID:        "as-1",
		UserID:    "user-1",
		Variant:   "standard",
		Responses: []assessments.Response{{QuestionID: "q1", Question: "How?", Answer: "Calmly"}},
		CreatedAt: time.Now(),
	}))
	starter := &fakeStarter{}
	trigger := NewTrigger(repo, starter)

	id, err := trigger.Trigger(ctx, "user-1", "as-1")
	require.NoError(t, err)
	require.Equal(t, "started-1", id)
	require.Len(t, starter.got, 1)
	require.Equal(t, "Calmly", starter.got[0].Responses[0].Answer)

	_, err = trigger.Trigger(ctx, "user-2", "as-1")
	require.ErrorIs(t, err, ErrNothingToTrigger)

	_, err = trigger.Trigger(ctx, "user-1", "")
	require.ErrorIs(t, err, ErrNothingToTrigger)
	require.Len(t, starter.got, 1)
}
