package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"persona-backend/internal/analyses"
	"persona-backend/internal/assessments"
	"persona-backend/internal/shared/server/middleware"
)

func submitRequest(t *testing.T, router *gin.Engine, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assessments/submit", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Guest-Id", "g1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func newSubmitRouter(f *fixture) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.Auth(nil))
	NewHandler(f.svc).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func TestSubmitEndpoint(t *testing.T) {
	f := newFixture(t, 5)
	f.analyzer.run = func(_ context.Context, req analyses.ProviderRequest) (analyses.Analysis, error) {
		f.write(t, "an-http", req.UserID, req.AssessmentID, 8)
		return analyses.Analysis{ID: "an-http"}, nil
	}
	resp := submitRequest(t, newSubmitRouter(f), Request{Responses: answers(5)})

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var body map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Equal(t, "/report/an-http", body["redirect"])
	require.Equal(t, false, body["partial"])
}

func TestSubmitEndpointNotEnoughResponses(t *testing.T) {
	f := newFixture(t, 5)
	resp := submitRequest(t, newSubmitRouter(f), Request{Responses: answers(2)})

	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Contains(t, resp.Body.String(), "not_enough_responses")
	require.Contains(t, resp.Body.String(), `"minimum":5`)
}

func TestSubmitEndpointInsufficientCredits(t *testing.T) {
	f := newFixture(t, 5)
	resp := submitRequest(t, newSubmitRouter(f), Request{Variant: "premium", Responses: answers(5)})
	require.Equal(t, http.StatusPaymentRequired, resp.Code)
}

func TestSubmitEndpointAssessmentConflict(t *testing.T) {
	f := newFixture(t, 5)
	require.NoError(t, f.repo.Create(context.Background(), assessments.Assessment{ID: "taken", UserID: "user-2"}))
	resp := submitRequest(t, newSubmitRouter(f), Request{AssessmentID: "taken", Responses: answers(5)})

	require.Equal(t, http.StatusConflict, resp.Code, resp.Body.String())
	require.Contains(t, resp.Body.String(), "assessment_conflict")
}
