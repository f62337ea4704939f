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

// RedisConfig provides shared Redis connection settings.
type RedisConfig interface {
	GetRedisURL() string
	GetRedisKeyPrefix() string
	IsRedisEnabled() bool
}

// LockConfig provides settings for the dialog lock coordinator.
type LockConfig interface {
	RedisConfig
	GetLockTTL() time.Duration
	GetLockWaitTimeout() time.Duration
	GetLockPollInterval() time.Duration
	GetReconnectCooldown() time.Duration
}

// SessionConfig provides settings for the session lifecycle.
type SessionConfig interface {
	GetSessionHistoryMaxTurns() int
	GetSmallTalkDedupWindow() time.Duration
}

// ClassifierConfig provides settings for canary/shadow mode resolution.
type ClassifierConfig interface {
	GetCanaryPercent() int
	GetShadowSamplePercent() int
	IsShadowCompareEnabled() bool
	IsLegacyClassificationPinned() bool
	HasClassificationPin() bool
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
}

// CRMConfig provides settings for CRM stage mapping.
type CRMConfig interface {
	GetCRMSettingsPath() string
}

// RelayConfig provides settings for the decision-trace relay queue.
type RelayConfig interface {
	GetRelayRedisURL() string
	GetRelayQueueName() string
	GetRelayConcurrency() int
	IsRelayEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                 string
	HTTPAddr            string
	CORSAllowAll        bool
	CORSOrigins         []string
	RedisURL            string
	RedisEnabled        bool
	RedisKeyPrefix      string
	LockTTL             time.Duration
	LockWaitTimeout     time.Duration
	LockPollInterval    time.Duration
	ReconnectCooldown   time.Duration
	CanaryPercent       int
	ShadowSamplePercent int
	ShadowCompare       bool
	ClassificationPin   string
	HistoryMaxTurns     int
	SmallTalkDedup      time.Duration
	CRMSettingsPath     string
	RelayRedisURL       string
	RelayQueueName      string
	RelayConcurrency    int
	RelayEnabled        bool
}

// =============================================================================
// Interface Implementations
// =============================================================================

// RedisConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisKeyPrefix() string { return c.RedisKeyPrefix }
func (c *Config) IsRedisEnabled() bool      { return c.RedisEnabled && c.RedisURL != "" }

// LockConfig implementation
func (c *Config) GetLockTTL() time.Duration           { return c.LockTTL }
func (c *Config) GetLockWaitTimeout() time.Duration   { return c.LockWaitTimeout }
func (c *Config) GetLockPollInterval() time.Duration  { return c.LockPollInterval }
func (c *Config) GetReconnectCooldown() time.Duration { return c.ReconnectCooldown }

// SessionConfig implementation
func (c *Config) GetSessionHistoryMaxTurns() int         { return c.HistoryMaxTurns }
func (c *Config) GetSmallTalkDedupWindow() time.Duration { return c.SmallTalkDedup }

// ClassifierConfig implementation
func (c *Config) GetCanaryPercent() int       { return c.CanaryPercent }
func (c *Config) GetShadowSamplePercent() int { return c.ShadowSamplePercent }
func (c *Config) IsShadowCompareEnabled() bool { return c.ShadowCompare }
func (c *Config) HasClassificationPin() bool   { return c.ClassificationPin != "" }
func (c *Config) IsLegacyClassificationPinned() bool {
	return strings.EqualFold(c.ClassificationPin, "legacy")
}

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

// CRMConfig implementation
func (c *Config) GetCRMSettingsPath() string { return c.CRMSettingsPath }

// RelayConfig implementation
func (c *Config) GetRelayRedisURL() string {
	if c.RelayRedisURL != "" {
		return c.RelayRedisURL
	}
	return c.RedisURL
}
func (c *Config) GetRelayQueueName() string { return c.RelayQueueName }
func (c *Config) GetRelayConcurrency() int  { return c.RelayConcurrency }
func (c *Config) IsRelayEnabled() bool      { return c.RelayEnabled && c.GetRelayRedisURL() != "" }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:                 getEnv("APP_ENV", "development"),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		CORSAllowAll:        strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true"),
		CORSOrigins:         splitCSV(getEnv("CORS_ORIGINS", "")),
		RedisURL:            getEnv("REDIS_URL", ""),
		RedisEnabled:        isTruthy(getEnv("REDIS_ENABLED", "true")),
		RedisKeyPrefix:      getEnv("REDIS_KEY_PREFIX", "bitrixbot"),
		LockTTL:             positiveMillis(getEnv("REDIS_LOCK_TTL_MS", ""), 45000),
		LockWaitTimeout:     positiveMillis(getEnv("REDIS_LOCK_WAIT_MS", ""), 45000),
		LockPollInterval:    positiveMillis(getEnv("REDIS_LOCK_POLL_MS", ""), 120),
		ReconnectCooldown:   positiveMillis(getEnv("REDIS_RECONNECT_COOLDOWN_MS", ""), 10000),
		CanaryPercent:       clampPercent(getEnv("CANARY_PERCENT", ""), 100),
		ShadowSamplePercent: clampPercent(getEnv("SHADOW_SAMPLE_PERCENT", ""), 0),
		ShadowCompare:       isTruthy(getEnv("SHADOW_COMPARE", "")),
		ClassificationPin:   strings.TrimSpace(getEnv("CLASSIFICATION_PIN", "")),
		HistoryMaxTurns:     positiveInt(getEnv("SESSION_HISTORY_MAX_TURNS", ""), 40),
		SmallTalkDedup:      positiveMillis(getEnv("SMALL_TALK_DEDUP_MS", ""), 180000),
		CRMSettingsPath:     getEnv("CRM_SETTINGS_PATH", ""),
		RelayRedisURL:       getEnv("RELAY_REDIS_URL", ""),
		RelayQueueName:      getEnv("RELAY_QUEUE_NAME", "decision-trace"),
		RelayConcurrency:    positiveInt(getEnv("RELAY_CONCURRENCY", ""), 4),
		RelayEnabled:        isTruthy(getEnv("RELAY_ENABLED", "")),
	}

	if pin := cfg.ClassificationPin; pin != "" {
		if !strings.EqualFold(pin, "legacy") && !strings.EqualFold(pin, "new") {
			return nil, fmt.Errorf("CLASSIFICATION_PIN must be \"legacy\" or \"new\", got %q", pin)
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

// isTruthy mirrors the accepted enable-flag spellings: 1/true/yes/on.
func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func positiveInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func positiveMillis(value string, fallbackMs int) time.Duration {
	return time.Duration(positiveInt(value, fallbackMs)) * time.Millisecond
}

func clampPercent(value string, fallback int) int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return fallback
	}
	if n <= 0 {
		return 0
	}
	if n >= 100 {
		return 100
	}
	return n
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
