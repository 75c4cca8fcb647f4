package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"persona-backend/internal/account"
	"persona-backend/internal/activities"
	"persona-backend/internal/analyses"
	"persona-backend/internal/assessments"
	googleauth "persona-backend/internal/auth"
	"persona-backend/internal/credits"
	"persona-backend/internal/llm"
	"persona-backend/internal/llm/gemini"
	"persona-backend/internal/llm/openai"
	"persona-backend/internal/payments"
	"persona-backend/internal/questions"
	"persona-backend/internal/queue"
	"persona-backend/internal/reconcile"
	"persona-backend/internal/services/health"
	"persona-backend/internal/shared/auth"
	"persona-backend/internal/shared/config"
	"persona-backend/internal/shared/server"
	"persona-backend/internal/shared/storage/db"
	"persona-backend/internal/shared/storage/object"
	localstore "persona-backend/internal/shared/storage/object/local"
	s3store "persona-backend/internal/shared/storage/object/s3"
	"persona-backend/internal/shared/telemetry"
	"persona-backend/internal/submission"
	"persona-backend/internal/users"
)

// App holds shared dependencies for the API, the worker and the CLI.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore
	Queue  queue.Client

	AssessmentsRepo assessments.Repo
	Drafts          assessments.DraftStore
	AnalysesRepo    analyses.Repo
	ActivitiesRepo  activities.Repo
	UsersRepo       users.Repo
	Questions       *questions.Bank

	AnalysesService   *analyses.Service
	Reconciler        *reconcile.Reconciler
	SubmissionService *submission.Service
	CreditsService    *credits.Service
	PaymentsService   *payments.Service
	ActivityService   *activities.Service
	AccountService    *account.Service
	UsersService      *users.Service
	GoogleAuth        *googleauth.GoogleService
}

// Options adjusts Build for callers that do not serve HTTP.
type Options struct {
	// SkipRouter leaves App.Router nil.
	SkipRouter bool
	// LLM overrides the provider client chosen from config.
	LLM llm.Client
}

// Build prepares shared dependencies and, unless skipped, the HTTP router.
func Build(ctx context.Context, cfg config.Config, opts ...Options) (*App, error) {
	var opt Options
	if len(opts) > 0 {
		opt = opts[0]
	}
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	llmClient := opt.LLM
	if llmClient == nil {
		llmClient, err = NewLLMClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	bank, err := questions.Load()
	if err != nil {
		return nil, fmt.Errorf("load question bank: %w", err)
	}

	app := &App{
		Config:    cfg,
		DB:        sqlDB,
		Store:     store,
		Queue:     queueClient,
		Questions: bank,
	}
	buildServices(app, llmClient)

	if !opt.SkipRouter {
		app.Router, err = buildRouter(app)
		if err != nil {
			return nil, err
		}
	}
	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.db.memory", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, errors.New("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultLambdaOptions()))
	} else {
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	}
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.db.memory", map[string]any{"reason": "connect failed", "error": err.Error()})
			return nil, nil
		}
		return nil, err
	}

	if cfg.IsDevLike() {
		// Deployed environments migrate through cmd/migrate.
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, errors.New("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	case "none":
		return nil, nil
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.QueueURL) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.QueueURL)
}

// NewLLMClient picks the analysis provider named by cfg. Dev environments
// without an API key get the placeholder client.
func NewLLMClient(ctx context.Context, cfg config.Config) (llm.Client, error) {
	switch cfg.LLMProvider {
	case "gemini":
		if cfg.GeminiAPIKey == "" && cfg.IsDevLike() {
			return placeholder("GEMINI_API_KEY empty"), nil
		}
		return gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.LLMModel)
	case "placeholder":
		return placeholder("configured"), nil
	default:
		if cfg.OpenAIAPIKey == "" && cfg.IsDevLike() {
			return placeholder("OPENAI_API_KEY empty"), nil
		}
		return openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel)
	}
}

func placeholder(reason string) llm.Client {
	telemetry.Warn("bootstrap.llm.placeholder", map[string]any{"reason": reason})
	return llm.PlaceholderClient{}
}

func buildServices(app *App, llmClient llm.Client) {
	cfg := app.Config

	var (
		assessmentRepo interface {
			assessments.Repo
			assessments.DraftStore
		}
		analysisRepo analyses.Repo
		activityRepo activities.Repo
		userRepo     users.Repo
		creditStore  credits.Store
	)
	if app.DB != nil {
		assessmentRepo = &assessments.PGRepo{DB: app.DB}
		analysisRepo = &analyses.PGRepo{DB: app.DB}
		activityRepo = &activities.PGRepo{DB: app.DB}
		userRepo = &users.PGRepo{DB: app.DB}
		creditStore = credits.NewPGStore(app.DB)
	} else {
		assessmentRepo = assessments.NewMemoryRepo()
		analysisRepo = analyses.NewMemoryRepo()
		activityRepo = activities.NewMemoryRepo()
		userRepo = users.NewMemoryRepo()
		creditStore = credits.NewMemoryStore()
	}

	analysisSvc := &analyses.Service{
		Repo:     analysisRepo,
		LLM:      llmClient,
		Store:    app.Store,
		Queue:    app.Queue,
		Provider: cfg.LLMProvider,
		Model:    cfg.LLMModel,
	}

	reconciler := reconcile.New(
		analysisRepo,
		submission.NewTrigger(assessmentRepo, analysisSvc),
		reconcile.Config{
			MaxAttempts: cfg.Resolve.MaxAttempts,
			BaseDelay:   cfg.Resolve.BaseDelay,
			MaxDelay:    cfg.Resolve.MaxDelay,
		},
	)

	creditSvc := credits.NewServiceWithStore(creditStore)
	userSvc := users.NewService(userRepo, creditSvc)

	app.AssessmentsRepo = assessmentRepo
	app.Drafts = assessmentRepo
	app.AnalysesRepo = analysisRepo
	app.ActivitiesRepo = activityRepo
	app.UsersRepo = userRepo
	app.AnalysesService = analysisSvc
	app.Reconciler = reconciler
	app.CreditsService = creditSvc
	app.UsersService = userSvc
	app.SubmissionService = &submission.Service{
		Assessments: assessmentRepo,
		Drafts:      assessmentRepo,
		Questions:   app.Questions,
		Analyzer:    analysisSvc,
		Resolver:    reconciler,
		History:     analysisRepo,
		Credits:     creditSvc,
		Config: submission.Config{
			MinResponses:           cfg.Submit.MinResponses,
			ProviderTimeout:        cfg.Submit.ProviderTimeout,
			CompleteTraitThreshold: cfg.Submit.CompleteTraitThreshold,
		},
	}
	app.PaymentsService = payments.NewService(
		payments.NewStripeSessions(cfg.StripeSecretKey),
		creditSvc,
		payments.Config{
			PriceID:            cfg.StripePriceID,
			FrontendURL:        cfg.FrontendURL,
			WebhookSecret:      cfg.StripeWebhookKey,
			CreditsPerPurchase: cfg.Credits.PerPurchase,
		},
	)
	app.ActivityService = activities.NewService(activityRepo, analysisSvc)
	app.AccountService = account.NewService(assessmentRepo, analysisRepo, activityRepo)
	app.GoogleAuth = googleauth.NewGoogleService(
		cfg.GoogleClientID,
		cfg.GoogleClientSecret,
		cfg.GoogleRedirectURL,
		cfg.UIRedirectURL,
		userSvc,
	)
}

func buildRouter(app *App) (*gin.Engine, error) {
	verifier, err := auth.NewVerifier(app.Config.SupabaseJWKSURL)
	if err != nil {
		return nil, err
	}

	checks := map[string]health.Pinger{}
	if app.DB != nil {
		checks["database"] = app.DB
	}

	return server.NewRouter(server.RouterDeps{
		Config:            app.Config,
		Verifier:          verifier,
		Health:            health.NewService(checks),
		QuestionsHandler:  questions.NewHandler(app.Questions),
		AssessmentHandler: assessments.NewHandler(app.AssessmentsRepo, app.Drafts),
		SubmissionHandler: submission.NewHandler(app.SubmissionService),
		AnalysisHandler:   analyses.NewHandler(app.AnalysesService),
		ReportHandler:     reconcile.NewHandler(app.Reconciler, app.Config.Submit.CompleteTraitThreshold),
		CreditsHandler:    credits.NewHandler(app.CreditsService),
		PaymentsHandler:   payments.NewHandler(app.PaymentsService),
		ActivityHandler:   activities.NewHandler(app.ActivityService),
		AccountHandler:    account.NewHandler(app.AccountService),
		UserHandler:       users.NewHandler(app.UsersService),
		GoogleAuth:        app.GoogleAuth,
	}), nil
}
