package users

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"persona-backend/internal/credits"
)

func TestUpsertFromAuthValidates(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	if err := svc.UpsertFromAuth(context.Background(), User{ID: "google:1"}); err == nil {
		t.Fatalf("expected error for missing email")
	}
	if err := svc.UpsertFromAuth(context.Background(), User{ID: "google:1", Email: "a@b.test", AuthProvider: "google"}); err != nil {
		t.Fatalf("UpsertFromAuth: %v", err)
	}
	u, err := svc.GetByID(context.Background(), "google:1")
	if err != nil || u.AuthProvider != "google" || u.CreatedAt.IsZero() {
		t.Fatalf("GetByID = %+v, %v", u, err)
	}
}

func TestPGUpsertDerivesProvider(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	mock.ExpectExec("INSERT INTO users").
		WithArgs("supabase:abc", "a@b.test", nil, nil, nil, nil, "supabase").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := &PGRepo{DB: db}
	if err := repo.Upsert(context.Background(), User{ID: "supabase:abc", Email: "a@b.test"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestMeHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := NewMemoryRepo()
	_ = repo.Upsert(context.Background(), User{ID: "google:1", Email: "a@b.test", AuthProvider: "google"})

	newRouter := func(userID string, guest bool) *gin.Engine {
		router := gin.New()
		router.Use(func(c *gin.Context) {
			c.Set("userId", userID)
			c.Set("isGuest", guest)
			c.Next()
		})
		NewHandler(NewService(repo)).RegisterRoutes(router.Group("/api/v1"))
		return router
	}

	resp := httptest.NewRecorder()
	newRouter("google:1", false).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"authProvider":"google"`) {
		t.Fatalf("unexpected response %d %s", resp.Code, resp.Body.String())
	}

	resp = httptest.NewRecorder()
	newRouter("guest:x", true).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for guest, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	newRouter("google:missing", false).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestProfileIncludesCredits(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	if err := repo.Upsert(ctx, User{ID: "supabase:7", Email: "sam@example.test"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	balances := credits.NewService()
	if _, err := balances.Refund(ctx, "supabase:7"); err != nil {
		t.Fatalf("Refund: %v", err)
	}

	p, err := NewService(repo, balances).Profile(ctx, "supabase:7")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if p.CreditsRemaining != 1 || p.AuthProvider != "supabase" || p.DisplayName() != "sam" {
		t.Fatalf("unexpected profile %+v (%q)", p, p.DisplayName())
	}
}

func TestUpsertRejectsGuests(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	if err := svc.UpsertFromAuth(context.Background(), User{ID: "guest:1", Email: "a@b.test"}); err == nil {
		t.Fatalf("expected guest rejection")
	}
}
