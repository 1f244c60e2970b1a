package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config holds all application configuration
type Config struct {
	DatabaseURL          string
	Port                 string
	GoEnv                string
	LogLevel             string
	Auth0Domain          string
	Auth0Audience        string
	JWTSecret            string
	JWTIssuer            string
	RedisURL             string
	AWSRegion            string
	AWSS3Bucket          string
	AWSAccessKeyID       string
	AWSSecretAccessKey   string
	DefaultApprovalLimit decimal.Decimal
	CORSAllowedOrigins   []string
	ReminderInterval     time.Duration
	DBMaxOpenConns       int
	DBMaxIdleConns       int
}

var current *Config

// Load loads the configuration from environment variables
// It automatically determines which .env file to load based on GO_ENV
func Load() (*Config, error) {
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}

	// Environment-specific file first, then .env, then the bare environment
	envFile := fmt.Sprintf(".env.%s", env)
	loadedFrom := envFile
	if err := godotenv.Load(envFile); err != nil {
		loadedFrom = ".env"
		if err := godotenv.Load(); err != nil {
			loadedFrom = "system environment"
		}
	}

	limit, err := decimal.NewFromString(getEnv("DEFAULT_APPROVAL_LIMIT", "20000"))
	if err != nil {
		return nil, fmt.Errorf("DEFAULT_APPROVAL_LIMIT is not a number: %w", err)
	}

	reminderInterval, err := time.ParseDuration(getEnv("REMINDER_INTERVAL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("REMINDER_INTERVAL is not a duration: %w", err)
	}

	config := &Config{
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		Port:                 getEnv("PORT", "8080"),
		GoEnv:                getEnv("GO_ENV", "development"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		Auth0Domain:          getEnv("AUTH0_DOMAIN", ""),
		Auth0Audience:        getEnv("AUTH0_AUDIENCE", ""),
		JWTSecret:            getEnv("JWT_SECRET", ""),
		JWTIssuer:            getEnv("JWT_ISSUER", "procurement-api"),
		RedisURL:             getEnv("REDIS_URL", ""),
		AWSRegion:            getEnv("AWS_REGION", "us-east-1"),
		AWSS3Bucket:          getEnv("AWS_S3_BUCKET", ""),
		AWSAccessKeyID:       getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DefaultApprovalLimit: limit,
		CORSAllowedOrigins:   splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		ReminderInterval:     reminderInterval,
		DBMaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	L().Info("configuration loaded", zap.String("source", loadedFrom), zap.String("env", config.GoEnv))
	current = config
	return config, nil
}

// Validate checks that all required configuration values are set
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Auth0Domain == "" && c.JWTSecret == "" {
		return fmt.Errorf("either AUTH0_DOMAIN or JWT_SECRET is required")
	}
	if c.Auth0Domain != "" && c.Auth0Audience == "" {
		return fmt.Errorf("AUTH0_AUDIENCE is required when AUTH0_DOMAIN is set")
	}
	if !c.DefaultApprovalLimit.IsPositive() {
		return fmt.Errorf("DEFAULT_APPROVAL_LIMIT must be positive")
	}
	return nil
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// IsTest returns true if the application is running in test mode
func (c *Config) IsTest() bool {
	return c.GoEnv == "test"
}

// UsesAuth0 reports whether tokens are verified against an Auth0 tenant
// rather than a shared HS256 secret.
func (c *Config) UsesAuth0() bool {
	return c.Auth0Domain != ""
}

// Audience returns the expected token audience.
func (c *Config) Audience() string {
	if c.Auth0Audience != "" {
		return c.Auth0Audience
	}
	return c.JWTIssuer
}

// GetConfig returns the most recently loaded or set configuration
func GetConfig() *Config {
	return current
}

// SetConfig replaces the global configuration (primarily for testing)
func SetConfig(cfg *Config) {
	current = cfg
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
