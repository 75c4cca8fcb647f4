package assessments

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryRepoAssessments(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	a := Assessment{ID: "as-1", UserID: "user-1", Variant: "standard", CreatedAt: time.Now()}

	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, a); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if _, err := repo.GetByID(ctx, "user-2", "as-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other users must not see the assessment, got %v", err)
	}
	got, err := repo.GetByID(ctx, "user-1", "as-1")
	if err != nil || got.ID != "as-1" {
		t.Fatalf("GetByID = %+v, %v", got, err)
	}
}

func TestMemoryRepoDrafts(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	if _, err := repo.Get(ctx, "user-1", DraftKey); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	d := Draft{CompletedQuestions: []string{"q1"}, CurrentQuestionIndex: 1}
	if err := repo.Save(ctx, "user-1", DraftKey, d); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := repo.Get(ctx, "user-1", DraftKey)
	if err != nil || got.CurrentQuestionIndex != 1 {
		t.Fatalf("Get = %+v, %v", got, err)
	}
	if err := repo.Clear(ctx, "user-1", DraftKey); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := repo.Clear(ctx, "user-1", DraftKey); err != nil {
		t.Fatalf("clearing twice should succeed: %v", err)
	}
	if _, err := repo.Get(ctx, "user-1", DraftKey); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected draft cleared, got %v", err)
	}
}

func TestMemoryRepoReassignUser(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	_ = repo.Create(ctx, Assessment{ID: "as-1", UserID: "guest:g", CreatedAt: time.Now()})
	_ = repo.Save(ctx, "guest:g", DraftKey, Draft{CurrentQuestionIndex: 4})

	moved, err := repo.ReassignUser(ctx, "guest:g", "user-1")
	if err != nil || moved != 1 {
		t.Fatalf("ReassignUser = %d, %v", moved, err)
	}
	if _, err := repo.GetByID(ctx, "user-1", "as-1"); err != nil {
		t.Fatalf("expected assessment moved: %v", err)
	}
	d, err := repo.Get(ctx, "user-1", DraftKey)
	if err != nil || d.CurrentQuestionIndex != 4 {
		t.Fatalf("expected draft moved, got %+v, %v", d, err)
	}
	if _, err := repo.Get(ctx, "guest:g", DraftKey); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected guest draft removed")
	}
}
