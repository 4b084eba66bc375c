package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Provider names accepted by COMPLETION_PROVIDER and SEARCH_PROVIDER.
const (
	ProviderStatic = "static"
	ProviderOpenAI = "openai"
	ProviderPortal = "portal"
	ProviderSQL    = "sql"
)

type Config struct {
	Port          string
	AllowedOrigin string
	// Completion provider
	CompletionProvider string
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	Model              string
	PromptFile         string
	// Dataset search provider
	SearchProvider     string
	ArcGISPortalURL    string
	ArcGISClientID     string
	ArcGISClientSecret string
	ArcGISQueryFilter  string
	DatabaseURL        string
	// Request handling
	UpstreamTimeout  time.Duration
	RateLimitRPS     float64
	RateLimitBurst   int
	FallbackTTL      time.Duration
	FallbackMaxItems int
	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads configuration from the environment, after loading a .env file
// if one exists.
func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Port:               getEnvDefault("PORT", "8080"),
		AllowedOrigin:      getEnvDefault("ALLOWED_ORIGIN", "*"),
		CompletionProvider: strings.ToLower(getEnvDefault("COMPLETION_PROVIDER", ProviderStatic)),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:      os.Getenv("OPENAI_BASE_URL"),
		Model:              getEnvDefault("OPENAI_MODEL", "gpt-4o-mini"),
		PromptFile:         getEnvDefault("ADVISOR_PROMPT_FILE", "./prompts/advisor.yaml"),
		SearchProvider:     strings.ToLower(getEnvDefault("SEARCH_PROVIDER", ProviderStatic)),
		ArcGISPortalURL:    getEnvDefault("ARCGIS_PORTAL_URL", "https://www.arcgis.com"),
		ArcGISClientID:     os.Getenv("ARCGIS_CLIENT_ID"),
		ArcGISClientSecret: os.Getenv("ARCGIS_CLIENT_SECRET"),
		ArcGISQueryFilter:  os.Getenv("ARCGIS_QUERY_FILTER"),
		DatabaseURL:        os.Getenv("DB_URL"),
		UpstreamTimeout:    getEnvDurationDefault("UPSTREAM_TIMEOUT", 10*time.Second),
		RateLimitRPS:       getEnvFloatDefault("RATE_LIMIT_RPS", 0),
		RateLimitBurst:     getEnvIntDefault("RATE_LIMIT_BURST", 10),
		FallbackTTL:        getEnvDurationDefault("FALLBACK_TTL", 0),
		FallbackMaxItems:   getEnvIntDefault("FALLBACK_MAX_ITEMS", 256),
		LogLevel:           getEnvDefault("LOG_LEVEL", "info"),
		LogFormat:          getEnvDefault("LOG_FORMAT", "text"),
	}
	if cfg.CompletionProvider == ProviderOpenAI && cfg.OpenAIAPIKey == "" {
		slog.Warn("OPENAI_API_KEY is not set; completion calls will fail until provided")
	}
	if cfg.SearchProvider == ProviderSQL && cfg.DatabaseURL == "" {
		slog.Warn("SEARCH_PROVIDER=sql but DB_URL is not set")
	}
	return cfg
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvIntDefault(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		slog.Warn("ignoring invalid integer setting", "key", key, "value", v)
	}
	return def
}

func getEnvFloatDefault(key string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		slog.Warn("ignoring invalid number setting", "key", key, "value", v)
	}
	return def
}

// getEnvDurationDefault accepts Go durations ("10s") or bare seconds ("10").
func getEnvDurationDefault(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	slog.Warn("ignoring invalid duration setting", "key", key, "value", v)
	return def
}
