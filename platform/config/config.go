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

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
}

// MetaConfig provides settings for the Meta Graph API client.
type MetaConfig interface {
	GetMetaGraphBaseURL() string
	GetMetaGraphVersion() string
	GetMetaAccessToken() string
	GetMetaRequestTimeout() time.Duration
}

// WebhookConfig provides settings for the lead webhook endpoint.
type WebhookConfig interface {
	GetMetaVerifyToken() string
	GetMetaAppSecret() string
	GetWebhookEventTimeout() time.Duration
}

// IngestConfig provides settings for lead ingestion and assignment.
type IngestConfig interface {
	GetLeadSource() string
	GetPhoneDefaultRegion() string
	GetPreferredAgentIdentity() string
	GetAssignmentEligibleRoles() []string
}

// LeadSyncConfig provides settings for the backup sync job and its trigger.
type LeadSyncConfig interface {
	GetMetaPageID() string
	GetLeadSyncDefaultLookback() time.Duration
	GetLeadSyncMaxLookback() time.Duration
	GetLeadSyncRepairBatchSize() int
	GetLeadSyncMaxRepairAttempts() int
	GetCronSecret() string
	GetCronTrustedCIDRs() []string
}

// SchedulerConfig provides settings for the asynq scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetLeadSyncCronSpec() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                       string
	HTTPAddr                  string
	DatabaseURL               string
	CORSAllowAll              bool
	CORSOrigins               []string
	MetaGraphBaseURL          string
	MetaGraphVersion          string
	MetaAccessToken           string
	MetaAppSecret             string
	MetaVerifyToken           string
	MetaPageID                string
	MetaRequestTimeout        time.Duration
	WebhookEventTimeout       time.Duration
	LeadSource                string
	PhoneDefaultRegion        string
	PreferredAgentIdentity    string
	AssignmentEligibleRoles   []string
	LeadSyncDefaultLookback   time.Duration
	LeadSyncMaxLookback       time.Duration
	LeadSyncRepairBatchSize   int
	LeadSyncMaxRepairAttempts int
	LeadSyncCronSpec          string
	CronSecret                string
	CronTrustedCIDRs          []string
	RedisURL                  string
	RedisTLSInsecure          bool
	AsynqQueueName            string
	AsynqConcurrency          int
}

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

// MetaConfig implementation
func (c *Config) GetMetaGraphBaseURL() string          { return c.MetaGraphBaseURL }
func (c *Config) GetMetaGraphVersion() string          { return c.MetaGraphVersion }
func (c *Config) GetMetaAccessToken() string           { return c.MetaAccessToken }
func (c *Config) GetMetaRequestTimeout() time.Duration { return c.MetaRequestTimeout }

// WebhookConfig implementation
func (c *Config) GetMetaVerifyToken() string            { return c.MetaVerifyToken }
func (c *Config) GetMetaAppSecret() string              { return c.MetaAppSecret }
func (c *Config) GetWebhookEventTimeout() time.Duration { return c.WebhookEventTimeout }

// IngestConfig implementation
func (c *Config) GetLeadSource() string                { return c.LeadSource }
func (c *Config) GetPhoneDefaultRegion() string        { return c.PhoneDefaultRegion }
func (c *Config) GetPreferredAgentIdentity() string    { return c.PreferredAgentIdentity }
func (c *Config) GetAssignmentEligibleRoles() []string { return c.AssignmentEligibleRoles }

// LeadSyncConfig implementation
func (c *Config) GetMetaPageID() string                     { return c.MetaPageID }
func (c *Config) GetLeadSyncDefaultLookback() time.Duration { return c.LeadSyncDefaultLookback }
func (c *Config) GetLeadSyncMaxLookback() time.Duration     { return c.LeadSyncMaxLookback }
func (c *Config) GetLeadSyncRepairBatchSize() int           { return c.LeadSyncRepairBatchSize }
func (c *Config) GetLeadSyncMaxRepairAttempts() int         { return c.LeadSyncMaxRepairAttempts }
func (c *Config) GetCronSecret() string                     { return c.CronSecret }
func (c *Config) GetCronTrustedCIDRs() []string             { return c.CronTrustedCIDRs }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string         { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool   { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string   { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int    { return c.AsynqConcurrency }
func (c *Config) GetLeadSyncCronSpec() string { return c.LeadSyncCronSpec }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                       getEnv("APP_ENV", "development"),
		HTTPAddr:                  getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:               getEnv("DATABASE_URL", ""),
		CORSAllowAll:              corsAllowAll,
		CORSOrigins:               corsOrigins,
		MetaGraphBaseURL:          getEnv("META_GRAPH_BASE_URL", "https://graph.facebook.com"),
		MetaGraphVersion:          getEnv("META_GRAPH_VERSION", "v19.0"),
		MetaAccessToken:           getEnv("META_PAGE_ACCESS_TOKEN", ""),
		MetaAppSecret:             getEnv("META_APP_SECRET", ""),
		MetaVerifyToken:           getEnv("META_VERIFY_TOKEN", ""),
		MetaPageID:                getEnv("META_PAGE_ID", ""),
		MetaRequestTimeout:        mustDuration(getEnv("META_REQUEST_TIMEOUT", "10s")),
		WebhookEventTimeout:       mustDuration(getEnv("WEBHOOK_EVENT_TIMEOUT", "25s")),
		LeadSource:                getEnv("LEAD_SOURCE", "meta"),
		PhoneDefaultRegion:        strings.ToUpper(getEnv("PHONE_DEFAULT_REGION", "IN")),
		PreferredAgentIdentity:    strings.TrimSpace(getEnv("PREFERRED_AGENT_EMAIL", "")),
		AssignmentEligibleRoles:   splitCSV(getEnv("ASSIGNMENT_ELIGIBLE_ROLES", "sales,telecaller")),
		LeadSyncDefaultLookback:   mustDuration(getEnv("LEAD_SYNC_DEFAULT_LOOKBACK", "1h")),
		LeadSyncMaxLookback:       mustDuration(getEnv("LEAD_SYNC_MAX_LOOKBACK", "720h")),
		LeadSyncRepairBatchSize:   mustInt(getEnv("LEAD_SYNC_REPAIR_BATCH_SIZE", "100")),
		LeadSyncMaxRepairAttempts: mustInt(getEnv("LEAD_SYNC_MAX_REPAIR_ATTEMPTS", "5")),
		LeadSyncCronSpec:          getEnv("LEAD_SYNC_CRON", "@every 15m"),
		CronSecret:                getEnv("CRON_SECRET", ""),
		CronTrustedCIDRs:          splitCSV(getEnv("CRON_TRUSTED_CIDRS", "127.0.0.1/32,::1/128")),
		RedisURL:                  getEnv("REDIS_URL", ""),
		RedisTLSInsecure:          strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:            getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:          mustInt(getEnv("ASYNQ_CONCURRENCY", "4")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.MetaVerifyToken == "" {
		return nil, fmt.Errorf("META_VERIFY_TOKEN is required")
	}
	if cfg.MetaRequestTimeout <= 0 {
		return nil, fmt.Errorf("META_REQUEST_TIMEOUT must be a positive duration")
	}
	if cfg.LeadSyncDefaultLookback <= 0 || cfg.LeadSyncMaxLookback < cfg.LeadSyncDefaultLookback {
		return nil, fmt.Errorf("LEAD_SYNC_DEFAULT_LOOKBACK must be positive and not exceed LEAD_SYNC_MAX_LOOKBACK")
	}
	if len(cfg.AssignmentEligibleRoles) == 0 {
		return nil, fmt.Errorf("ASSIGNMENT_ELIGIBLE_ROLES must list at least one role")
	}

	return cfg, nil
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
