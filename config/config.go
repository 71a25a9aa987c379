package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all process-wide settings. It is loaded once in main
// and passed down by injection; nothing reads the environment after
// startup.
type Config struct {
	HTTPAddr string

	PostgresURL      string
	PostgresHost     string
	PostgresPort     int
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresSSLMode  string

	RedisAddr string

	JWTSecret   string
	JWTTokenTTL time.Duration
	BcryptCost  int

	RateLimitRequests int
	RateLimitWindow   time.Duration

	OTLPEndpoint string // empty disables tracing
}

// LoadConfig reads the environment (and .env, if present) into a Config.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using system environment variables")
	}

	cfg := &Config{
		HTTPAddr:         getEnvWithDefault("HTTP_ADDR", ":8080"),
		PostgresURL:      os.Getenv("POSTGRES_URL"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresSSLMode:  getEnvWithDefault("POSTGRES_SSLMODE", "prefer"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		OTLPEndpoint:     os.Getenv("OTLP_ENDPOINT"),
	}

	port, err := getEnvInt("POSTGRES_PORT", 5432)
	if err != nil {
		return nil, err
	}
	cfg.PostgresPort = port

	ttlMinutes, err := getEnvInt("TOKEN_TTL_MINUTES", 30)
	if err != nil {
		return nil, err
	}
	cfg.JWTTokenTTL = time.Duration(ttlMinutes) * time.Minute

	cfg.BcryptCost, err = getEnvInt("BCRYPT_COST", 12)
	if err != nil {
		return nil, err
	}

	cfg.RateLimitRequests, err = getEnvInt("RATE_LIMIT_REQUESTS", 100)
	if err != nil {
		return nil, err
	}
	windowSeconds, err := getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60)
	if err != nil {
		return nil, err
	}
	cfg.RateLimitWindow = time.Duration(windowSeconds) * time.Second

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET not set")
	}

	if cfg.PostgresURL == "" {
		if cfg.PostgresHost == "" || cfg.PostgresUser == "" || cfg.PostgresDB == "" {
			return nil, fmt.Errorf("either POSTGRES_URL or POSTGRES_HOST, POSTGRES_USER, and POSTGRES_DB must be set")
		}
		cfg.PostgresURL = buildPostgresURL(cfg)
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("REDIS_ADDR not set")
	}

	return cfg, nil
}

// getEnvWithDefault returns environment variable value or default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

// buildPostgresURL constructs PostgreSQL connection URL from individual parameters
func buildPostgresURL(cfg *Config) string {
	password := ""
	if cfg.PostgresPassword != "" {
		password = ":" + cfg.PostgresPassword
	}

	return fmt.Sprintf("postgres://%s%s@%s:%d/%s?sslmode=%s",
		cfg.PostgresUser,
		password,
		cfg.PostgresHost,
		cfg.PostgresPort,
		cfg.PostgresDB,
		cfg.PostgresSSLMode,
	)
}
