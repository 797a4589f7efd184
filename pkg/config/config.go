// Package config loads engine configuration from environment variables
// (no config file is read), keeping the teacher's "flat struct plus
// a Load() constructor" shape while using viper underneath to resolve the
// nested dotted keys spec.md §6 names.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every recognised configuration key, each overridable via
// environment variable per spec.md §6.
type Config struct {
	Port     string
	LogLevel string

	DatabaseURL string

	CacheTTLSeconds int
	CacheMaxEntries int
	CacheBackend    string
	RedisAddr       string

	GovernanceWarningThresholdPercent  int
	GovernanceCriticalThresholdPercent int

	RecordSinkTimeoutMS int
	TelemetryEnabled    bool
	TelemetryEndpoint   string

	Environment string // dev | staging | prod

	ApprovalTimezone string
}

// Load reads configuration from environment variables, falling back to the
// documented defaults when a key is unset.
func Load() *Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "INFO")
	v.SetDefault("database_url", "postgres://policyengine@localhost:5432/policyengine?sslmode=disable")

	v.SetDefault("policy.cache.ttl_seconds", 60)
	v.SetDefault("policy.cache.max_entries", 10000)
	v.SetDefault("policy.cache.backend", "memory")
	v.SetDefault("redis_addr", "localhost:6379")

	v.SetDefault("governance.warning_threshold_percent", 80)
	v.SetDefault("governance.critical_threshold_percent", 95)

	v.SetDefault("record_sink.timeout_ms", 2000)
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "")

	v.SetDefault("env", "dev")
	v.SetDefault("approval.timezone", "UTC")

	return &Config{
		Port:        v.GetString("port"),
		LogLevel:    v.GetString("log_level"),
		DatabaseURL: v.GetString("database_url"),

		CacheTTLSeconds: v.GetInt("policy.cache.ttl_seconds"),
		CacheMaxEntries: v.GetInt("policy.cache.max_entries"),
		CacheBackend:    v.GetString("policy.cache.backend"),
		RedisAddr:       v.GetString("redis_addr"),

		GovernanceWarningThresholdPercent:  v.GetInt("governance.warning_threshold_percent"),
		GovernanceCriticalThresholdPercent: v.GetInt("governance.critical_threshold_percent"),

		RecordSinkTimeoutMS: v.GetInt("record_sink.timeout_ms"),
		TelemetryEnabled:    v.GetBool("telemetry.enabled"),
		TelemetryEndpoint:   v.GetString("telemetry.endpoint"),

		Environment: v.GetString("env"),

		ApprovalTimezone: v.GetString("approval.timezone"),
	}
}

// RecordSinkTimeout returns the configured record sink timeout as a
// time.Duration.
func (c *Config) RecordSinkTimeout() time.Duration {
	return time.Duration(c.RecordSinkTimeoutMS) * time.Millisecond
}

// CacheTTL returns the configured cache TTL as a time.Duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}
