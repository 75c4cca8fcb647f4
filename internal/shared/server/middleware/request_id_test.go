package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRequestIDEchoesCallerID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	var seen string
	router.GET("/reports/x", func(c *gin.Context) {
		seen = RequestIDFromContext(c)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/reports/x", nil)
	req.Header.Set("X-Request-Id", "poll-abc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if seen != "poll-abc" || rec.Header().Get("X-Request-Id") != "poll-abc" {
		t.Fatalf("expected caller id to be reused, got ctx=%q header=%q", seen, rec.Header().Get("X-Request-Id"))
	}
}

func TestRequestIDReplacesInvalidID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, bad := range []string{"has space", strings.Repeat("a", 200)} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-Id", bad)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		got := rec.Header().Get("X-Request-Id")
		if got == bad || len(got) != 36 {
			t.Fatalf("expected generated uuid for %q, got %q", bad, got)
		}
	}
}
