package activities

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores activities in memory.
type MemoryRepo struct {
	mu   sync.Mutex
	byID map[string]Activity
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Activity)}
}

func (r *MemoryRepo) Create(ctx context.Context, a Activity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	r.byID[a.ID] = a
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, userID, id string) (Activity, error) {
	if err := ctx.Err(); err != nil {
		return Activity{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok || a.UserID != userID {
		return Activity{}, ErrNotFound
	}
	return a, nil
}

func (r *MemoryRepo) ListByUser(ctx context.Context, userID string) ([]Activity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	out := make([]Activity, 0)
	for _, a := range r.byID {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) Complete(ctx context.Context, userID, id string, at time.Time) (Activity, bool, error) {
	if err := ctx.Err(); err != nil {
		return Activity{}, false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok || a.UserID != userID {
		return Activity{}, false, ErrNotFound
	}
	if a.Status == StatusCompleted {
		return a, false, nil
	}
	a.Status = StatusCompleted
	a.CompletedAt = &at
	r.byID[id] = a
	return a, true, nil
}

func (r *MemoryRepo) CompletedTotals(ctx context.Context, userID string) (int, int, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	points, count := 0, 0
	for _, a := range r.byID {
		if a.UserID == userID && a.Status == StatusCompleted {
			points += a.Points
			count++
		}
	}
	return points, count, nil
}

func (r *MemoryRepo) ReassignUser(ctx context.Context, fromUserID, toUserID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var moved int64
	for id, a := range r.byID {
		if a.UserID == fromUserID {
			a.UserID = toUserID
			r.byID[id] = a
			moved++
		}
	}
	return moved, nil
}

var _ Repo = (*MemoryRepo)(nil)
