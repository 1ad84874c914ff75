// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq scheduler and worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetSweepCronSpec() string
}

// CadenceConfig provides tunables for the lead cadence engine.
type CadenceConfig interface {
	GetBlitz1MaxAttempts() int
	GetBlitz2MaxAttempts() int
	GetMaxEnrollmentCycles() int
	GetStaleEngagedAfter() time.Duration
	GetSweepPageSize() int
	GetSweepConcurrency() int
	GetCadenceTemplateFile() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                 string
	HTTPAddr            string
	DatabaseURL         string
	JWTAccessSecret     string
	CORSAllowAll        bool
	CORSOrigins         []string
	CORSAllowCreds      bool
	RedisURL            string
	RedisTLSInsecure    bool
	AsynqQueueName      string
	AsynqConcurrency    int
	SweepCronSpec       string
	Blitz1MaxAttempts   int
	Blitz2MaxAttempts   int
	MaxEnrollmentCycles int
	StaleEngagedAfter   time.Duration
	SweepPageSize       int
	SweepConcurrency    int
	CadenceTemplateFile string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }
func (c *Config) GetSweepCronSpec() string  { return c.SweepCronSpec }

// CadenceConfig implementation
func (c *Config) GetBlitz1MaxAttempts() int           { return c.Blitz1MaxAttempts }
func (c *Config) GetBlitz2MaxAttempts() int           { return c.Blitz2MaxAttempts }
func (c *Config) GetMaxEnrollmentCycles() int         { return c.MaxEnrollmentCycles }
func (c *Config) GetStaleEngagedAfter() time.Duration { return c.StaleEngagedAfter }
func (c *Config) GetSweepPageSize() int               { return c.SweepPageSize }
func (c *Config) GetSweepConcurrency() int            { return c.SweepConcurrency }
func (c *Config) GetCadenceTemplateFile() string      { return c.CadenceTemplateFile }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                 getEnv("APP_ENV", "development"),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		JWTAccessSecret:     getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:        corsAllowAll,
		CORSOrigins:         corsOrigins,
		CORSAllowCreds:      strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		RedisURL:            getEnv("REDIS_URL", ""),
		RedisTLSInsecure:    strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:      getEnv("ASYNQ_QUEUE_NAME", "default"),
		AsynqConcurrency:    mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		SweepCronSpec:       getEnv("CADENCE_SWEEP_CRON", "0 6 * * *"),
		Blitz1MaxAttempts:   mustInt(getEnv("CADENCE_BLITZ1_MAX_ATTEMPTS", "3")),
		Blitz2MaxAttempts:   mustInt(getEnv("CADENCE_BLITZ2_MAX_ATTEMPTS", "4")),
		MaxEnrollmentCycles: mustInt(getEnv("CADENCE_MAX_ENROLLMENT_CYCLES", "3")),
		StaleEngagedAfter:   time.Duration(mustInt(getEnv("CADENCE_STALE_ENGAGED_DAYS", "21"))) * 24 * time.Hour,
		SweepPageSize:       mustInt(getEnv("CADENCE_SWEEP_PAGE_SIZE", "200")),
		SweepConcurrency:    mustInt(getEnv("CADENCE_SWEEP_CONCURRENCY", "8")),
		CadenceTemplateFile: getEnv("CADENCE_TEMPLATE_FILE", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.SweepPageSize < 1 {
		return nil, fmt.Errorf("CADENCE_SWEEP_PAGE_SIZE must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
