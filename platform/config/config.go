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

// MigrationConfig controls schema migrations at startup.
type MigrationConfig interface {
	GetMigrationsEnabled() bool
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

// WebhookConfig provides settings for verifying analysis engine callbacks.
type WebhookConfig interface {
	GetWebhookSecret() string
	GetWebhookMaxSkew() time.Duration
	GetWebhookCallbackURL() string
}

// EngineConfig provides settings for the outbound analysis engine client.
type EngineConfig interface {
	GetEngineURL() string
	GetEngineAPIKey() string
	GetEngineTimeout() time.Duration
	GetEngineRPS() float64
	GetEngineMaxRetries() int
	IsEngineEnabled() bool
}

// SchedulerConfig provides settings for the asynq-based polling fallback.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetPollInterval() time.Duration
	GetPollStaleAfter() time.Duration
	GetJobMaxAge() time.Duration
}

// KafkaConfig provides settings for the realtime Kafka sink.
type KafkaConfig interface {
	GetKafkaBrokers() []string
	GetKafkaEventsTopic() string
	IsKafkaEnabled() bool
}

// MappingConfig provides the location of the analysis vocabulary file.
type MappingConfig interface {
	GetMappingsPath() string
	GetMappingsWatch() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env               string
	HTTPAddr          string
	DatabaseURL       string
	MigrationsEnabled bool
	JWTAccessSecret   string
	CORSAllowAll      bool
	CORSOrigins       []string
	CORSAllowCreds    bool
	WebhookSecret     string
	WebhookMaxSkew    time.Duration
	WebhookCallback   string
	EngineURL         string
	EngineAPIKey      string
	EngineTimeout     time.Duration
	EngineRPS         float64
	EngineMaxRetries  int
	RedisURL          string
	RedisTLSInsecure  bool
	AsynqQueueName    string
	AsynqConcurrency  int
	PollInterval      time.Duration
	PollStaleAfter    time.Duration
	JobMaxAge         time.Duration
	KafkaBrokers      []string
	KafkaEventsTopic  string
	MappingsPath      string
	MappingsWatch     bool
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// MigrationConfig implementation
func (c *Config) GetMigrationsEnabled() bool { return c.MigrationsEnabled }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// WebhookConfig implementation
func (c *Config) GetWebhookSecret() string         { return c.WebhookSecret }
func (c *Config) GetWebhookMaxSkew() time.Duration { return c.WebhookMaxSkew }
func (c *Config) GetWebhookCallbackURL() string    { return c.WebhookCallback }

// EngineConfig implementation
func (c *Config) GetEngineURL() string            { return c.EngineURL }
func (c *Config) GetEngineAPIKey() string         { return c.EngineAPIKey }
func (c *Config) GetEngineTimeout() time.Duration { return c.EngineTimeout }
func (c *Config) GetEngineRPS() float64           { return c.EngineRPS }
func (c *Config) GetEngineMaxRetries() int        { return c.EngineMaxRetries }
func (c *Config) IsEngineEnabled() bool           { return c.EngineURL != "" }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string              { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool        { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string        { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int         { return c.AsynqConcurrency }
func (c *Config) GetPollInterval() time.Duration   { return c.PollInterval }
func (c *Config) GetPollStaleAfter() time.Duration { return c.PollStaleAfter }
func (c *Config) GetJobMaxAge() time.Duration      { return c.JobMaxAge }

// KafkaConfig implementation
func (c *Config) GetKafkaBrokers() []string   { return c.KafkaBrokers }
func (c *Config) GetKafkaEventsTopic() string { return c.KafkaEventsTopic }
func (c *Config) IsKafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0 && c.KafkaEventsTopic != ""
}

// MappingConfig implementation
func (c *Config) GetMappingsPath() string { return c.MappingsPath }
func (c *Config) GetMappingsWatch() bool  { return c.MappingsWatch }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:               getEnv("APP_ENV", "development"),
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		MigrationsEnabled: strings.EqualFold(getEnv("MIGRATIONS_ENABLED", "true"), "true"),
		JWTAccessSecret:   getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:      corsAllowAll,
		CORSOrigins:       corsOrigins,
		CORSAllowCreds:    strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		WebhookSecret:     getEnv("ANALYSIS_WEBHOOK_SECRET", ""),
		WebhookMaxSkew:    mustDuration(getEnv("ANALYSIS_WEBHOOK_MAX_SKEW", "5m")),
		WebhookCallback:   getEnv("ANALYSIS_CALLBACK_URL", ""),
		EngineURL:         strings.TrimRight(getEnv("ANALYSIS_ENGINE_URL", ""), "/"),
		EngineAPIKey:      getEnv("ANALYSIS_ENGINE_API_KEY", ""),
		EngineTimeout:     mustDuration(getEnv("ANALYSIS_ENGINE_TIMEOUT", "10s")),
		EngineRPS:         mustFloat64(getEnv("ANALYSIS_ENGINE_RPS", "5")),
		EngineMaxRetries:  mustInt(getEnv("ANALYSIS_ENGINE_MAX_RETRIES", "3")),
		RedisURL:          getEnv("REDIS_URL", ""),
		RedisTLSInsecure:  strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:    getEnv("ASYNQ_QUEUE_NAME", "analysis"),
		AsynqConcurrency:  mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		PollInterval:      mustDuration(getEnv("ANALYSIS_POLL_INTERVAL", "30s")),
		PollStaleAfter:    mustDuration(getEnv("ANALYSIS_POLL_STALE_AFTER", "2m")),
		JobMaxAge:         mustDuration(getEnv("ANALYSIS_JOB_MAX_AGE", "24h")),
		KafkaBrokers:      splitCSV(getEnv("KAFKA_BROKERS", "")),
		KafkaEventsTopic:  getEnv("KAFKA_EVENTS_TOPIC", "analysis-events"),
		MappingsPath:      getEnv("ANALYSIS_MAPPINGS_PATH", ""),
		MappingsWatch:     strings.EqualFold(getEnv("ANALYSIS_MAPPINGS_WATCH", "false"), "true"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTAccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if c.WebhookSecret == "" {
		return fmt.Errorf("ANALYSIS_WEBHOOK_SECRET is required")
	}
	if c.WebhookMaxSkew <= 0 {
		return fmt.Errorf("ANALYSIS_WEBHOOK_MAX_SKEW must be a positive duration")
	}
	if c.EngineURL != "" && c.EngineAPIKey == "" {
		return fmt.Errorf("ANALYSIS_ENGINE_API_KEY is required when ANALYSIS_ENGINE_URL is set")
	}
	if c.CORSAllowAll && c.CORSAllowCreds {
		return fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustFloat64(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
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
