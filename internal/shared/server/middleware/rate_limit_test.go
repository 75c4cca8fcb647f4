package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRateLimitPerPrincipal(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userId", c.GetHeader("X-Test-User"))
		c.Next()
	})
	r.Use(RateLimit(RateLimitRule{Window: time.Minute, Limit: 2}))
	r.GET("/api/v1/reports/:id", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	do := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/abc", nil)
		req.Header.Set("X-Test-User", user)
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		return resp
	}

	for i := 0; i < 2; i++ {
		if resp := do("guest:a"); resp.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, resp.Code)
		}
	}
	limited := do("guest:a")
	if limited.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", limited.Code)
	}
	if limited.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
	if resp := do("guest:b"); resp.Code != http.StatusOK {
		t.Fatalf("other principal should not be limited, got %d", resp.Code)
	}
}
