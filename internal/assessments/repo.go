package assessments

import "context"

// Repo persists submitted assessments.
type Repo interface {
	Create(ctx context.Context, a Assessment) error
	GetByID(ctx context.Context, userID, assessmentID string) (Assessment, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Assessment, error)
	ReassignUser(ctx context.Context, fromUserID, toUserID string) (int64, error)
}

// DraftStore keeps per-user drafts under a key.
type DraftStore interface {
	Save(ctx context.Context, userID, key string, d Draft) error
	Get(ctx context.Context, userID, key string) (Draft, error)
	Clear(ctx context.Context, userID, key string) error
}
