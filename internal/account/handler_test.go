package account

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"persona-backend/internal/activities"
	"persona-backend/internal/analyses"
	"persona-backend/internal/assessments"
)

type memoryRepos struct {
	assessments *assessments.MemoryRepo
	analyses    *analyses.MemoryRepo
	activities  *activities.MemoryRepo
}

func newClaimRouter(userID string, isGuest bool) (*gin.Engine, memoryRepos) {
	gin.SetMode(gin.TestMode)
	repos := memoryRepos{
		assessments: assessments.NewMemoryRepo(),
		analyses:    analyses.NewMemoryRepo(),
		activities:  activities.NewMemoryRepo(),
	}
	handler := NewHandler(NewService(repos.assessments, repos.analyses, repos.activities))

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("userId", userID)
		c.Set("isGuest", isGuest)
		c.Next()
	})
	handler.RegisterRoutes(router.Group("/api/v1"))
	return router, repos
}

func claim(router *gin.Engine, guestID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/account/claim-guest", nil)
	req.Header.Set("X-Guest-Id", guestID)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestClaimGuestMigratesData(t *testing.T) {
	router, repos := newClaimRouter("user-1", false)
	ctx := context.Background()
	guestID := "11111111-1111-1111-1111-111111111111"
	guestUserID := "guest:" + guestID

	if err := repos.assessments.Create(ctx, assessments.Assessment{ID: "as-1", UserID: guestUserID, CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("create assessment: %v", err)
	}
	if err := repos.analyses.Create(ctx, analyses.Analysis{
		ID:           "analysis-1",
		AssessmentID: "as-1",
		UserID:       guestUserID,
		Status:       analyses.StatusCompleted,
		CreatedAt:    time.Now().UTC(),
	}); err != nil {
		t.Fatalf("create analysis: %v", err)
	}
	if err := repos.activities.Create(ctx, activities.Activity{ID: "act-1", UserID: guestUserID, Title: "Walk", Status: activities.StatusPending}); err != nil {
		t.Fatalf("create activity: %v", err)
	}

	resp := claim(router, guestID)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	list, err := repos.assessments.ListByUser(ctx, "user-1", 10, 0)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected 1 migrated assessment, got %d (%v)", len(list), err)
	}
	analysesList, err := repos.analyses.ListByUser(ctx, "user-1", 10, 0)
	if err != nil || len(analysesList) != 1 {
		t.Fatalf("expected 1 migrated analysis, got %d (%v)", len(analysesList), err)
	}
	acts, err := repos.activities.ListByUser(ctx, "user-1")
	if err != nil || len(acts) != 1 {
		t.Fatalf("expected 1 migrated activity, got %d (%v)", len(acts), err)
	}
}

func TestClaimGuestIdempotentAndIsolated(t *testing.T) {
	router, repos := newClaimRouter("user-1", false)
	guestID := "22222222-2222-2222-2222-222222222222"
	if err := repos.assessments.Create(context.Background(), assessments.Assessment{ID: "as-2", UserID: "guest:" + guestID}); err != nil {
		t.Fatalf("create assessment: %v", err)
	}

	for i := 0; i < 2; i++ {
		if resp := claim(router, guestID); resp.Code != http.StatusOK {
			t.Fatalf("claim %d: expected 200, got %d", i, resp.Code)
		}
	}
	list, err := repos.assessments.ListByUser(context.Background(), "user-2", 10, 0)
	if err != nil || len(list) != 0 {
		t.Fatalf("expected nothing for another user, got %d (%v)", len(list), err)
	}
}

func TestClaimGuestRejectsGuestsAndBadIDs(t *testing.T) {
	router, _ := newClaimRouter("guest:abc", true)
	if resp := claim(router, "33333333-3333-3333-3333-333333333333"); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for guest caller, got %d", resp.Code)
	}

	router, _ = newClaimRouter("user-1", false)
	if resp := claim(router, "not-a-uuid"); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid guest id, got %d", resp.Code)
	}
}

func TestClaimWithTxMovesAllTables(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE assessments SET user_id").WithArgs("user-1", "guest:g").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("UPDATE assessment_drafts SET user_id").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM assessment_drafts").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE analyses SET user_id").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("UPDATE activities SET user_id").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	svc := NewService(&assessments.PGRepo{DB: db}, &analyses.PGRepo{DB: db}, &activities.PGRepo{DB: db})
	res, err := svc.ClaimGuest(context.Background(), "guest:g", "user-1")
	if err != nil {
		t.Fatalf("ClaimGuest: %v", err)
	}
	if res != (ClaimResult{MigratedAssessments: 2, MigratedAnalyses: 3, MigratedActivities: 1}) {
		t.Fatalf("unexpected result %+v", res)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
