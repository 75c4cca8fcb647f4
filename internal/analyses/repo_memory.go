package analyses

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepo stores analyses in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Analysis
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID: make(map[string]Analysis),
	}
}

// Create stores the analysis.
func (r *MemoryRepo) Create(ctx context.Context, analysis Analysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if analysis.UpdatedAt.IsZero() {
		analysis.UpdatedAt = analysis.CreatedAt
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[analysis.ID] = analysis
	return nil
}

// GetByID returns an analysis by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	analysis, ok := r.byID[analysisID]
	if !ok {
		return Analysis{}, ErrNotFound
	}
	return analysis, nil
}

// GetByAssessmentID returns the newest analysis for an assessment visible to userID.
func (r *MemoryRepo) GetByAssessmentID(ctx context.Context, userID, assessmentID string) (Analysis, error) {
	return r.newest(ctx, func(a Analysis) bool {
		return a.AssessmentID == assessmentID && a.AccessibleTo(userID)
	})
}

// SearchBySuffix returns the newest analysis of userID whose id contains suffix.
func (r *MemoryRepo) SearchBySuffix(ctx context.Context, userID, suffix string) (Analysis, error) {
	if strings.TrimSpace(suffix) == "" {
		return Analysis{}, ErrNotFound
	}
	needle := strings.ToLower(suffix)
	return r.newest(ctx, func(a Analysis) bool {
		return a.UserID == userID && strings.Contains(strings.ToLower(a.ID), needle)
	})
}

// MostRecentForUser returns the newest analysis owned by userID.
func (r *MemoryRepo) MostRecentForUser(ctx context.Context, userID string) (Analysis, error) {
	return r.newest(ctx, func(a Analysis) bool { return a.UserID == userID })
}

// MostRecentReportForUser returns the newest real report owned by userID.
func (r *MemoryRepo) MostRecentReportForUser(ctx context.Context, userID string) (Analysis, error) {
	return r.newest(ctx, func(a Analysis) bool { return a.UserID == userID && a.RealReport() })
}

// ListByUser returns analyses for a user, newest first, with limit/offset.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}

	analyses := r.filter(func(a Analysis) bool { return a.UserID == userID })
	if len(analyses) == 0 || offset >= len(analyses) {
		return []Analysis{}, nil
	}

	end := len(analyses)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return analyses[offset:end], nil
}

// MarkProcessing moves a queued analysis to processing.
func (r *MemoryRepo) MarkProcessing(ctx context.Context, analysisID string, startedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	analysis, ok := r.byID[analysisID]
	if !ok {
		return ErrNotFound
	}
	if analysis.Terminal() {
		return ErrAlreadyFinal
	}
	analysis.Status = StatusProcessing
	analysis.StartedAt = &startedAt
	analysis.UpdatedAt = time.Now().UTC()
	r.byID[analysisID] = analysis
	return nil
}

// Finish writes the terminal outcome. Terminal rows are never rewritten.
func (r *MemoryRepo) Finish(ctx context.Context, analysisID string, outcome Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	analysis, ok := r.byID[analysisID]
	if !ok {
		return ErrNotFound
	}
	if analysis.Terminal() {
		return ErrAlreadyFinal
	}
	completedAt := outcome.CompletedAt
	analysis.Status = outcome.Status
	analysis.Result = outcome.Result
	analysis.Report = outcome.Report
	analysis.RawKey = outcome.RawKey
	analysis.ErrorCode = outcome.ErrorCode
	analysis.ErrorMessage = outcome.ErrorMessage
	analysis.CompletedAt = &completedAt
	analysis.UpdatedAt = time.Now().UTC()
	r.byID[analysisID] = analysis
	return nil
}

// ReassignUser moves every analysis of fromUserID to toUserID.
func (r *MemoryRepo) ReassignUser(ctx context.Context, fromUserID, toUserID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var moved int64
	for id, a := range r.byID {
		if a.UserID != fromUserID {
			continue
		}
		a.UserID = toUserID
		a.UpdatedAt = time.Now().UTC()
		r.byID[id] = a
		moved++
	}
	return moved, nil
}

func (r *MemoryRepo) newest(ctx context.Context, match func(Analysis) bool) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	found := r.filter(match)
	if len(found) == 0 {
		return Analysis{}, ErrNotFound
	}
	return found[0], nil
}

// filter returns matching analyses newest first.
func (r *MemoryRepo) filter(match func(Analysis) bool) []Analysis {
	r.mu.RLock()
	out := make([]Analysis, 0)
	for _, a := range r.byID {
		if match(a) {
			out = append(out, a)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

var _ Repo = (*MemoryRepo)(nil)
