package payments

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v79"

	"persona-backend/internal/shared/server/middleware"
)

func newPaymentsRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewHandler(svc)
	h.RegisterWebhookRoutes(router.Group("/api/v1"))
	api := router.Group("/api/v1")
	api.Use(middleware.Auth(nil))
	h.RegisterRoutes(api)
	return router
}

func TestVerifyEndpoint(t *testing.T) {
	sessions := &fakeSessions{sessions: map[string]*stripe.CheckoutSession{"cs_1": paidSession("cs_1", "guest:g1")}}
	svc, _ := newTestService(sessions)
	router := newPaymentsRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/verify", bytes.NewBufferString(`{"paymentSessionId":"cs_1"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Guest-Id", "g1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), `"success":true`) || !strings.Contains(resp.Body.String(), `"credits":1`) {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}

func TestVerifyEndpointRequiresSessionID(t *testing.T) {
	svc, _ := newTestService(&fakeSessions{})
	router := newPaymentsRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/verify", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Guest-Id", "g1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestCheckoutEndpointRejectsGuests(t *testing.T) {
	svc, _ := newTestService(&fakeSessions{})
	router := newPaymentsRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/checkout", nil)
	req.Header.Set("X-Guest-Id", "g1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestWebhookEndpointBadSignature(t *testing.T) {
	svc, _ := newTestService(&fakeSessions{})
	router := newPaymentsRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewBufferString(`{}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
