package credits

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"persona-backend/internal/shared/server/middleware"
)

func TestGetCredits(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := NewService()
	if _, _, err := svc.Grant(context.Background(), Purchase{SessionID: "cs", UserID: "guest:g1", Credits: 2}); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	router := gin.New()
	router.Use(middleware.Auth(nil))
	NewHandler(svc).RegisterRoutes(router.Group("/api/v1"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/credits", nil)
	req.Header.Set("X-Guest-Id", "g1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"creditsRemaining":2`) {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}
