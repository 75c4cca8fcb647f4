package users

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo backs dev runs without a database.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]User
	now  func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]User), now: func() time.Time { return time.Now().UTC() }}
}

func (r *MemoryRepo) Upsert(ctx context.Context, user User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	user.AuthProvider = authProvider(user)
	stamp := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	user.CreatedAt = stamp
	if prev, ok := r.byID[user.ID]; ok {
		user.CreatedAt = prev.CreatedAt
	}
	user.UpdatedAt = stamp
	r.byID[user.ID] = user
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, userID string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	user, ok := r.byID[userID]
	r.mu.RUnlock()
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}
