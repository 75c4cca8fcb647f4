package activities

import (
	"context"
	"time"
)

// Repo persists activities.
type Repo interface {
	Create(ctx context.Context, a Activity) error
	GetByID(ctx context.Context, userID, id string) (Activity, error)
	ListByUser(ctx context.Context, userID string) ([]Activity, error)
	// Complete marks a pending activity completed. completed is false when it
	// was already completed.
	Complete(ctx context.Context, userID, id string, at time.Time) (a Activity, completed bool, err error)
	CompletedTotals(ctx context.Context, userID string) (points, count int, err error)
	ReassignUser(ctx context.Context, fromUserID, toUserID string) (int64, error)
}
