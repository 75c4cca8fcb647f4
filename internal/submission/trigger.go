package submission

import (
	"context"
	"errors"
	"strings"

	"persona-backend/internal/analyses"
	"persona-backend/internal/assessments"
	"persona-backend/internal/reconcile"
)

// ErrNothingToTrigger means the target does not name a stored assessment.
var ErrNothingToTrigger = errors.New("no assessment to analyse")

// Starter queues an analysis without waiting for it.
type Starter interface {
	Start(ctx context.Context, req analyses.ProviderRequest) (analyses.Analysis, error)
}

// NewTrigger lets the reconciler restart analysis for an assessment whose
// report never appeared. Only assessment ids owned by the caller qualify.
func NewTrigger(repo assessments.Repo, starter Starter) reconcile.ProviderFunc {
	return func(ctx context.Context, userID, target string) (string, error) {
		target = strings.TrimSpace(target)
		if target == "" || repo == nil || starter == nil {
			return "", ErrNothingToTrigger
		}
		a, err := repo.GetByID(ctx, userID, target)
		if err != nil {
			if errors.Is(err, assessments.ErrNotFound) {
				return "", ErrNothingToTrigger
			}
			return "", err
		}
		started, err := starter.Start(ctx, analyses.ProviderRequest{
			UserID:       userID,
			AssessmentID: a.ID,
			Variant:      a.Variant,
			Responses:    toLLM(a.Responses),
		})
		if err != nil {
			return "", err
		}
		return started.ID, nil
	}
}
