package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	Port               string
	Env                string
	DatabaseURL        string
	CORSAllowOrigin    []string
	ObjectStoreType    string
	LocalStoreDir      string
	AWSRegion          string
	S3Bucket           string
	S3Prefix           string
	SSEKMSKeyID        string
	QueueURL           string
	LLMProvider        string
	LLMModel           string
	OpenAIAPIKey       string
	GeminiAPIKey       string
	JWTSecret          string
	SupabaseJWKSURL    string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	UIRedirectURL      string
	StripeSecretKey    string
	StripeWebhookKey   string
	StripePriceID      string
	FrontendURL        string
	LogLevel           string
	LogFile            string

	Resolve ResolveConfig
	Submit  SubmitConfig
	Credits CreditsConfig
}

// ResolveConfig tunes the report retrieval loop.
type ResolveConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// SubmitConfig tunes assessment submission.
type SubmitConfig struct {
	MinResponses           int
	ProviderTimeout        time.Duration
	CompleteTraitThreshold int
}

// CreditsConfig tunes the paid assessment variant.
type CreditsConfig struct {
	PerPurchase int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Missing files are fine; real deployments inject env directly.
	_ = godotenv.Load(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:               getEnv("PORT", "8080"),
		Env:                env,
		DatabaseURL:        dbURL,
		CORSAllowOrigin:    splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		ObjectStoreType:    normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:      getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:          getEnv("AWS_REGION", ""),
		S3Bucket:           getEnv("S3_BUCKET", ""),
		S3Prefix:           getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:        getEnv("S3_SSE_KMS_KEY_ID", ""),
		QueueURL:           getEnv("SQS_QUEUE_URL", ""),
		LLMProvider:        normalizeProvider(getEnv("LLM_PROVIDER", "openai")),
		LLMModel:           getEnv("LLM_MODEL", ""),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		SupabaseJWKSURL:    getEnv("SUPABASE_JWKS_URL", ""),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
		UIRedirectURL:      getEnv("UI_REDIRECT_URL", ""),
		StripeSecretKey:    getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookKey:   getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripePriceID:      getEnv("STRIPE_PRICE_ID", ""),
		FrontendURL:        getEnv("FRONTEND_URL", "http://localhost:5173"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFile:            getEnv("LOG_FILE", ""),
		Resolve: ResolveConfig{
			MaxAttempts: getEnvInt("RESOLVE_MAX_ATTEMPTS", 5),
			BaseDelay:   getEnvDuration("RESOLVE_BASE_DELAY", 2*time.Second),
			MaxDelay:    getEnvDuration("RESOLVE_MAX_DELAY", 10*time.Second),
		},
		Submit: SubmitConfig{
			MinResponses:           getEnvInt("SUBMIT_MIN_RESPONSES", 5),
			ProviderTimeout:        getEnvDuration("SUBMIT_PROVIDER_TIMEOUT", 120*time.Second),
			CompleteTraitThreshold: getEnvInt("COMPLETE_TRAIT_THRESHOLD", 8),
		},
		Credits: CreditsConfig{
			PerPurchase: getEnvInt("CREDITS_PER_PURCHASE", 1),
		},
	}
}

// IsDevLike reports whether the environment tolerates in-memory fallbacks.
func (c Config) IsDevLike() bool {
	return c.Env == "dev" || c.Env == "local"
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		log.Printf("config %s invalid int %q, using %d", key, raw, def)
		return def
	}
	return val
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil || val <= 0 {
		log.Printf("config %s invalid duration %q, using %s", key, raw, def)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "none", "off":
		return "none"
	default:
		return "local"
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "gemini", "google":
		return "gemini"
	case "placeholder", "none":
		return "placeholder"
	default:
		return "openai"
	}
}
