package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"

	defaultRedirectBase = "http://localhost:8080/api/integrations"
)

type Config struct {
	HTTPAddr        string
	StoreBackend    string
	DatabaseURL     string
	MongoURL        string
	MongoDatabase   string
	RedisURL        string // optional, enables the cross-process refresh lock
	LogLevel        string
	ShutdownTimeout int // seconds

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string // public base of the integration callbacks

	MicrosoftClientID     string
	MicrosoftClientSecret string
	MicrosoftTenant       string
	MicrosoftRedirectURL  string

	CalendarSyncDays      int
	TokenRefreshSkew      time.Duration
	AttachmentInlineLimit int64 // bytes
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error in production)
	_ = godotenv.Load()

	backend := getEnv("STORE_BACKEND", BackendPostgres)

	cfg := &Config{
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		StoreBackend:  backend,
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		MongoURL:      os.Getenv("MONGO_URL"),
		MongoDatabase: getEnv("MONGO_DATABASE", "private_zone"),
		RedisURL:      os.Getenv("REDIS_URL"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URI", defaultRedirectBase),

		MicrosoftClientID:     os.Getenv("MICROSOFT_CLIENT_ID"),
		MicrosoftClientSecret: os.Getenv("MICROSOFT_CLIENT_SECRET"),
		MicrosoftTenant:       getEnv("MICROSOFT_TENANT_ID", "common"),
		MicrosoftRedirectURL:  getEnv("MICROSOFT_REDIRECT_URI", defaultRedirectBase),
	}

	switch backend {
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	case BackendMongo:
		if cfg.MongoURL == "" {
			return nil, fmt.Errorf("MONGO_URL is required")
		}
	default:
		return nil, fmt.Errorf("unsupported STORE_BACKEND %q", backend)
	}

	var err error
	if cfg.ShutdownTimeout, err = getInt("SHUTDOWN_TIMEOUT", 30); err != nil {
		return nil, err
	}
	if cfg.CalendarSyncDays, err = getInt("CALENDAR_SYNC_DAYS", 90); err != nil {
		return nil, err
	}
	skewSeconds, err := getInt("TOKEN_REFRESH_SKEW", 60)
	if err != nil {
		return nil, err
	}
	cfg.TokenRefreshSkew = time.Duration(skewSeconds) * time.Second

	limit, err := getInt("ATTACHMENT_INLINE_LIMIT", 1024*1024)
	if err != nil {
		return nil, err
	}
	cfg.AttachmentInlineLimit = int64(limit)

	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		fmt.Println("Warning: GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET not set, Google integrations will not work")
	}
	if cfg.MicrosoftClientID == "" || cfg.MicrosoftClientSecret == "" {
		fmt.Println("Warning: MICROSOFT_CLIENT_ID or MICROSOFT_CLIENT_SECRET not set, Microsoft Graph will not work")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
