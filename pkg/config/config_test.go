package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/config"
)

// TestLoad_Defaults verifies that Load() returns sensible defaults when no
// environment variables are set.
func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("POLICY_CACHE_TTL_SECONDS", "")
	t.Setenv("ENV", "")

	cfg := config.Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Contains(t, cfg.DatabaseURL, "localhost")
	assert.Equal(t, 60, cfg.CacheTTLSeconds)
	assert.Equal(t, "dev", cfg.Environment)
	assert.Equal(t, "UTC", cfg.ApprovalTimezone)
}

// TestLoad_Overrides verifies that environment variables correctly override
// default values, using the dotted-key-to-env convention (policy.cache.ttl_seconds
// -> POLICY_CACHE_TTL_SECONDS).
func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("POLICY_CACHE_TTL_SECONDS", "120")
	t.Setenv("GOVERNANCE_WARNING_THRESHOLD_PERCENT", "70")
	t.Setenv("ENV", "prod")

	cfg := config.Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, 120, cfg.CacheTTLSeconds)
	assert.Equal(t, 70, cfg.GovernanceWarningThresholdPercent)
	assert.Equal(t, "prod", cfg.Environment)
}
