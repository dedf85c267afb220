package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Hosted backend (PostgREST-style row API + realtime channel)
	BackendURL        string
	BackendAnonKey    string
	BackendServiceKey string
	RealtimeURL       string
	RealtimeSchema    string

	// Workflow webhooks
	WebhookBaseURL       string
	TrainingWebhookPath  string
	ProductWebhookPath   string
	AssistantWebhookPath string
	SessionWebhookPath   string
	BaseTableWebhookPath string
	BotLinkWebhookPath   string

	// Content storage (flat URL join, no signing)
	StorageBaseURL string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Caching
	CacheTTL time.Duration

	// Deletion lifecycle
	DeleteGrace   time.Duration
	SweepInterval time.Duration

	// Observability
	OTLPEndpoint string

	// JWT / Auth
	JWTSecret     string
	JWTAccessTTL  time.Duration
	JWTRefreshTTL time.Duration
}

// Load reads configuration from environment variables with defaults.
// A local .env file is applied first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		BackendURL:        getEnv("BACKEND_URL", ""),
		BackendAnonKey:    getEnv("BACKEND_ANON_KEY", ""),
		BackendServiceKey: getEnv("BACKEND_SERVICE_ROLE_KEY", ""),
		RealtimeURL:       getEnv("REALTIME_URL", ""),
		RealtimeSchema:    getEnv("REALTIME_SCHEMA", "public"),

		WebhookBaseURL:       getEnv("WEBHOOK_BASE_URL", ""),
		TrainingWebhookPath:  getEnv("WEBHOOK_TRAINING_PATH", "/webhook/treinamento"),
		ProductWebhookPath:   getEnv("WEBHOOK_PRODUCT_PATH", "/webhook/produtos"),
		AssistantWebhookPath: getEnv("WEBHOOK_ASSISTANT_PATH", "/webhook/assistente"),
		SessionWebhookPath:   getEnv("WEBHOOK_SESSION_PATH", "/webhook/instancia"),
		BaseTableWebhookPath: getEnv("WEBHOOK_BASE_TABLE_PATH", "/webhook/criar-tabela"),
		BotLinkWebhookPath:   getEnv("WEBHOOK_BOT_LINK_PATH", "/webhook/vincular-base"),

		StorageBaseURL: getEnv("STORAGE_BASE_URL", ""),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		CacheTTL: getEnvDuration("CACHE_TTL", 5*time.Minute),

		DeleteGrace:   getEnvDuration("DELETE_GRACE", time.Second),
		SweepInterval: getEnvDuration("SWEEP_INTERVAL", time.Second),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		JWTSecret:     getEnv("JWT_SECRET", "conex-default-dev-secret-change-me"),
		JWTAccessTTL:  getEnvDuration("JWT_ACCESS_TTL", 15*time.Minute),
		JWTRefreshTTL: getEnvDuration("JWT_REFRESH_TTL", 7*24*time.Hour),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
