package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "COMPLETION_PROVIDER", "SEARCH_PROVIDER", "UPSTREAM_TIMEOUT", "RATE_LIMIT_RPS", "FALLBACK_TTL"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ProviderStatic, cfg.CompletionProvider)
	assert.Equal(t, ProviderStatic, cfg.SearchProvider)
	assert.Equal(t, 10*time.Second, cfg.UpstreamTimeout)
	assert.Zero(t, cfg.RateLimitRPS)
	assert.Zero(t, cfg.FallbackTTL)
	assert.Equal(t, 256, cfg.FallbackMaxItems)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("COMPLETION_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SEARCH_PROVIDER", "portal")
	t.Setenv("UPSTREAM_TIMEOUT", "3")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "4")
	t.Setenv("FALLBACK_TTL", "5m")

	cfg := Load()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, ProviderOpenAI, cfg.CompletionProvider)
	assert.Equal(t, ProviderPortal, cfg.SearchProvider)
	assert.Equal(t, 3*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.Equal(t, 4, cfg.RateLimitBurst)
	assert.Equal(t, 5*time.Minute, cfg.FallbackTTL)
}

func TestEnvHelpers_InvalidValuesKeepDefaults(t *testing.T) {
	t.Setenv("X_INT", "many")
	t.Setenv("X_FLOAT", "fast")
	t.Setenv("X_DUR", "soon")
	assert.Equal(t, 7, getEnvIntDefault("X_INT", 7))
	assert.Equal(t, 1.5, getEnvFloatDefault("X_FLOAT", 1.5))
	assert.Equal(t, time.Second, getEnvDurationDefault("X_DUR", time.Second))
}
