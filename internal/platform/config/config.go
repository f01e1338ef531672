package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Ledger storage backends selectable via LEDGER_BACKEND.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr        string
	Environment string
	LogLevel    string

	JWTSigningKey    string
	JWTIssuerBaseURL string
	JWTAudience      string

	AdminAPIToken string
	WebhookSecret string

	LedgerBackend   string
	RenewalInterval time.Duration

	DatabaseURL string
	Redis       RedisConfig
}

// RedisConfig configures the go-redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// LoadDotEnv loads a .env file into the process environment when present.
// Variables already set in the environment win.
func LoadDotEnv(filenames ...string) error {
	return godotenv.Load(filenames...)
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default; production deployments must override it.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:             envOr("COMPANION_ADDR", ":8080"),
		Environment:      envOr("ENVIRONMENT", "development"),
		LogLevel:         envOr("LOG_LEVEL", "info"),
		JWTSigningKey:    jwtSigningKey,
		JWTIssuerBaseURL: envOr("JWT_ISSUER_BASE_URL", "http://localhost:8080"),
		JWTAudience:      envOr("JWT_AUDIENCE", "companion"),
		AdminAPIToken:    os.Getenv("ADMIN_API_TOKEN"),
		WebhookSecret:    os.Getenv("WEBHOOK_SECRET"),
		LedgerBackend:    envOr("LEDGER_BACKEND", BackendMemory),
		RenewalInterval:  durationOr("RENEWAL_INTERVAL", 5*time.Minute),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     intOr("REDIS_POOL_SIZE", 10),
			MinIdleConns: intOr("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
	}
}

// Validate rejects backend selections whose connection settings are missing.
func (s Server) Validate() error {
	switch s.LedgerBackend {
	case BackendMemory:
	case BackendPostgres:
		if s.DatabaseURL == "" {
			return errors.New("LEDGER_BACKEND=postgres requires DATABASE_URL")
		}
	case BackendRedis:
		if s.Redis.URL == "" {
			return errors.New("LEDGER_BACKEND=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown LEDGER_BACKEND %q", s.LedgerBackend)
	}
	if s.RenewalInterval <= 0 {
		return errors.New("RENEWAL_INTERVAL must be positive")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func intOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
