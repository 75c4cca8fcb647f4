package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"persona-backend/internal/account"
	"persona-backend/internal/activities"
	"persona-backend/internal/analyses"
	"persona-backend/internal/assessments"
	googleauth "persona-backend/internal/auth"
	"persona-backend/internal/credits"
	"persona-backend/internal/payments"
	"persona-backend/internal/questions"
	"persona-backend/internal/reconcile"
	"persona-backend/internal/services/health"
	"persona-backend/internal/shared/auth"
	"persona-backend/internal/shared/config"
	"persona-backend/internal/shared/metrics"
	"persona-backend/internal/shared/server/middleware"
	"persona-backend/internal/shared/server/respond"
	"persona-backend/internal/submission"
	"persona-backend/internal/users"
)

// RouterDeps lists the handlers mounted under /api/v1. Nil handlers are skipped.
type RouterDeps struct {
	Config            config.Config
	Verifier          auth.TokenVerifier
	Health            *health.Service
	QuestionsHandler  *questions.Handler
	AssessmentHandler *assessments.Handler
	SubmissionHandler *submission.Handler
	AnalysisHandler   *analyses.Handler
	ReportHandler     *reconcile.Handler
	CreditsHandler    *credits.Handler
	PaymentsHandler   *payments.Handler
	ActivityHandler   *activities.Handler
	AccountHandler    *account.Handler
	UserHandler       *users.Handler
	GoogleAuth        *googleauth.GoogleService
}

var (
	submitLimit = middleware.RateLimitRule{Window: time.Minute, Limit: 6}
	reportLimit = middleware.RateLimitRule{Window: time.Second, Limit: 5}
)

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	verifier := deps.Verifier
	if verifier == nil {
		verifier = sessionOnlyVerifier{}
	}

	r.Use(
		middleware.SecurityHeaders(deps.Config.IsDevLike()),
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		st := deps.Health.Status(c.Request.Context())
		status := http.StatusOK
		if !st.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, st)
	})

	// Stripe signs its webhook; it carries no user identity.
	if deps.PaymentsHandler != nil {
		deps.PaymentsHandler.RegisterWebhookRoutes(api)
	}
	if deps.GoogleAuth != nil {
		deps.GoogleAuth.RegisterRoutes(api)
	}

	authed := api.Group("")
	authed.Use(middleware.Auth(verifier))
	registerSessionRoutes(authed)

	if deps.QuestionsHandler != nil {
		deps.QuestionsHandler.RegisterRoutes(authed)
	}
	if deps.SubmissionHandler != nil {
		limited := authed.Group("")
		limited.Use(middleware.RateLimit(submitLimit))
		deps.SubmissionHandler.RegisterRoutes(limited)
	}
	if deps.AssessmentHandler != nil {
		deps.AssessmentHandler.RegisterRoutes(authed)
	}
	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.RegisterRoutes(authed)
	}
	if deps.ReportHandler != nil {
		reports := authed.Group("")
		reports.Use(middleware.RateLimit(reportLimit))
		deps.ReportHandler.RegisterRoutes(reports)
	}
	if deps.CreditsHandler != nil {
		deps.CreditsHandler.RegisterRoutes(authed)
	}
	if deps.PaymentsHandler != nil {
		deps.PaymentsHandler.RegisterRoutes(authed)
	}
	if deps.ActivityHandler != nil {
		deps.ActivityHandler.RegisterRoutes(authed)
	}
	if deps.AccountHandler != nil {
		deps.AccountHandler.RegisterRoutes(authed)
	}
	if deps.UserHandler != nil {
		deps.UserHandler.RegisterRoutes(authed)
	}

	return r
}

// sessionOnlyVerifier accepts this service's own signed tokens.
type sessionOnlyVerifier struct{}

func (sessionOnlyVerifier) Verify(token string) (auth.Claims, error) {
	return auth.VerifyJWT(token)
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
