package assessments

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrExists is returned when an assessment id is reused.
var ErrExists = errors.New("assessment already exists")

// MemoryRepo stores assessments and drafts in memory.
type MemoryRepo struct {
	mu          sync.RWMutex
	assessments map[string]Assessment
	drafts      map[string]Draft
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		assessments: make(map[string]Assessment),
		drafts:      make(map[string]Draft),
	}
}

// Create stores an assessment once.
func (r *MemoryRepo) Create(ctx context.Context, a Assessment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assessments[a.ID]; ok {
		return ErrExists
	}
	r.assessments[a.ID] = a
	return nil
}

// GetByID returns an assessment owned by userID.
func (r *MemoryRepo) GetByID(ctx context.Context, userID, assessmentID string) (Assessment, error) {
	if err := ctx.Err(); err != nil {
		return Assessment{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assessments[assessmentID]
	if !ok || a.UserID != userID {
		return Assessment{}, ErrNotFound
	}
	return a, nil
}

// ListByUser returns assessments newest first.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Assessment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Assessment, 0)
	for _, a := range r.assessments {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset < 0 {
		offset = 0
	}
	if offset >= len(out) {
		return []Assessment{}, nil
	}
	end := len(out)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return out[offset:end], nil
}

// ReassignUser moves assessments and drafts from one user to another.
func (r *MemoryRepo) ReassignUser(ctx context.Context, fromUserID, toUserID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var moved int64
	for id, a := range r.assessments {
		if a.UserID == fromUserID {
			a.UserID = toUserID
			r.assessments[id] = a
			moved++
		}
	}
	for key, d := range r.drafts {
		user, name := splitDraftKey(key)
		if user != fromUserID {
			continue
		}
		if _, taken := r.drafts[draftKey(toUserID, name)]; !taken {
			r.drafts[draftKey(toUserID, name)] = d
		}
		delete(r.drafts, key)
	}
	return moved, nil
}

// Save replaces the draft under key.
func (r *MemoryRepo) Save(ctx context.Context, userID, key string, d Draft) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	r.drafts[draftKey(userID, key)] = d
	r.mu.Unlock()
	return nil
}

// Get returns the draft under key.
func (r *MemoryRepo) Get(ctx context.Context, userID, key string) (Draft, error) {
	if err := ctx.Err(); err != nil {
		return Draft{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drafts[draftKey(userID, key)]
	if !ok {
		return Draft{}, ErrNotFound
	}
	return d, nil
}

// Clear removes the draft under key. Clearing a missing draft is not an error.
func (r *MemoryRepo) Clear(ctx context.Context, userID, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.drafts, draftKey(userID, key))
	r.mu.Unlock()
	return nil
}

func draftKey(userID, key string) string { return userID + "\x00" + key }

func splitDraftKey(k string) (string, string) {
	for i := 0; i < len(k); i++ {
		if k[i] == 0 {
			return k[:i], k[i+1:]
		}
	}
	return k, ""
}

var (
	_ Repo       = (*MemoryRepo)(nil)
	_ DraftStore = (*MemoryRepo)(nil)
)
