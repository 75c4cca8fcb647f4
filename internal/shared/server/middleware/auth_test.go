package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"persona-backend/internal/shared/auth"
)

type stubVerifier struct {
	claims auth.Claims
	err    error
}

func (s stubVerifier) Verify(string) (auth.Claims, error) { return s.claims, s.err }

func newAuthRouter(v auth.TokenVerifier) (*gin.Engine, *string) {
	gin.SetMode(gin.TestMode)
	var seen string
	router := gin.New()
	router.Use(Auth(v))
	router.GET("/api/v1/reports/latest", func(c *gin.Context) {
		seen = UserIDFromContext(c)
		c.Status(http.StatusOK)
	})
	router.OPTIONS("/api/v1/reports/latest", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router, &seen
}

func TestAuthAllowsOptionsWithoutIdentity(t *testing.T) {
	router, _ := newAuthRouter(stubVerifier{})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/reports/latest", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
}

func TestAuthRejectsMissingIdentity(t *testing.T) {
	router, _ := newAuthRouter(stubVerifier{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/latest", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthBearerSetsSubject(t *testing.T) {
	router, seen := newAuthRouter(stubVerifier{claims: auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "google:42"}}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/latest", nil)
	req.Header.Set("Authorization", "Bearer abc")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if *seen != "google:42" {
		t.Fatalf("expected subject google:42, got %q", *seen)
	}
}

func TestAuthBearerInvalidToken(t *testing.T) {
	router, _ := newAuthRouter(stubVerifier{err: auth.ErrInvalidToken})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/latest", nil)
	req.Header.Set("Authorization", "Bearer abc")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthGuestHeader(t *testing.T) {
	router, seen := newAuthRouter(stubVerifier{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/latest", nil)
	req.Header.Set("X-Guest-Id", "g-1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if *seen != "guest:g-1" {
		t.Fatalf("expected guest:g-1, got %q", *seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/reports/latest", nil)
	req.Header.Set("X-Guest-Id", "google:1")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected namespaced guest id to be rejected, got %d", resp.Code)
	}
}
