package analyses

import (
	"context"
	"time"

	"persona-backend/internal/normalize"
)

// Outcome carries the terminal fields written when processing ends.
type Outcome struct {
	Status       string
	Result       map[string]any
	Report       normalize.Report
	RawKey       string
	ErrorCode    string
	ErrorMessage string
	CompletedAt  time.Time
}

// Repo defines persistence operations for analyses.
//
// Lookups scoped by user return rows owned by that user; GetByID is unscoped and
// callers check ownership with Analysis.AccessibleTo.
type Repo interface {
	Create(ctx context.Context, analysis Analysis) error
	GetByID(ctx context.Context, analysisID string) (Analysis, error)
	GetByAssessmentID(ctx context.Context, userID, assessmentID string) (Analysis, error)
	SearchBySuffix(ctx context.Context, userID, suffix string) (Analysis, error)
	MostRecentForUser(ctx context.Context, userID string) (Analysis, error)
	// MostRecentReportForUser skips failed rows and placeholders.
	MostRecentReportForUser(ctx context.Context, userID string) (Analysis, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error)
	MarkProcessing(ctx context.Context, analysisID string, startedAt time.Time) error
	Finish(ctx context.Context, analysisID string, outcome Outcome) error
	ReassignUser(ctx context.Context, fromUserID, toUserID string) (int64, error)
}
