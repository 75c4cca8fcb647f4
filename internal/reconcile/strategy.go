package reconcile

import (
	"context"

	"persona-backend/internal/analyses"
)

// Store is the read side of the analysis store used for resolution.
type Store interface {
	GetByID(ctx context.Context, analysisID string) (analyses.Analysis, error)
	GetByAssessmentID(ctx context.Context, userID, assessmentID string) (analyses.Analysis, error)
	SearchBySuffix(ctx context.Context, userID, suffix string) (analyses.Analysis, error)
	MostRecentForUser(ctx context.Context, userID string) (analyses.Analysis, error)
}

// Strategy is one named way of finding an analysis from an identifier.
type Strategy struct {
	Name   string
	Lookup func(ctx context.Context, store Store, userID, target string) (analyses.Analysis, error)
}

// DefaultStrategies tries the analysis id, then the assessment id, then the id suffix.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "id", Lookup: byID},
		{Name: "assessment_id", Lookup: byAssessmentID},
		{Name: "suffix", Lookup: bySuffix},
	}
}

func byID(ctx context.Context, store Store, userID, target string) (analyses.Analysis, error) {
	a, err := store.GetByID(ctx, target)
	if err != nil {
		return analyses.Analysis{}, err
	}
	if !a.AccessibleTo(userID) {
		return analyses.Analysis{}, analyses.ErrNotFound
	}
	return a, nil
}

func byAssessmentID(ctx context.Context, store Store, userID, target string) (analyses.Analysis, error) {
	return store.GetByAssessmentID(ctx, userID, target)
}

func bySuffix(ctx context.Context, store Store, userID, target string) (analyses.Analysis, error) {
	return store.SearchBySuffix(ctx, userID, analyses.IDSuffix(target))
}
