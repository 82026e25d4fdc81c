package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrNoProvidersConfigured is returned by Load when no provider credential
// and no custom/local endpoint URL is present in the environment. The server
// cannot start without at least one usable driver (spec.md §6.3).
var ErrNoProvidersConfigured = errors.New("config: no LLM provider credentials configured (set an *_API_KEY or CUSTOM_API_URL)")

// Settings holds every recognized environment key from spec.md §6.3.
type Settings struct {
	// DefaultModel controls whether tools must declare `model` explicitly.
	// "auto" routes through category-based selection (§4.10).
	DefaultModel string

	// Native provider credentials. A driver is only constructed at startup
	// when its credential is non-empty (spec.md §3, ProviderDriver lifecycle).
	AnthropicAPIKey string
	OpenAIAPIKey    string

	// AWS Bedrock uses the standard AWS SDK credential chain (env vars,
	// shared config, IAM role); BedrockRegion selects the Bedrock region.
	// BedrockEnabled is true when the operator opts in explicitly, since
	// the AWS SDK chain may resolve credentials ambiently even when Bedrock
	// was never intended to be used.
	BedrockEnabled bool
	BedrockRegion  string

	// Custom/local endpoint (e.g. an in-house vLLM or Ollama deployment).
	CustomAPIURL string
	CustomAPIKey string
	CustomModel  string

	// Aggregator gateway (e.g. OpenRouter-shaped catch-all).
	AggregatorAPIURL string
	AggregatorAPIKey string

	// Per-provider allow-lists, comma-separated canonical/alias names.
	AnthropicAllowedModels  []string
	OpenAIAllowedModels     []string
	BedrockAllowedModels    []string
	CustomAllowedModels     []string
	AggregatorAllowedModels []string

	// CustomModelsPath points at the user-editable JSON catalogue document
	// augmenting the hard-coded native descriptors (§4.1).
	CustomModelsPath string

	Locale                   string
	MaxConversationTurns     int
	ConversationTimeoutHours time.Duration
	DisabledTools            []string
	LogLevel                 string
}

// Load reads Settings from the process environment. Call config.LoadEnv()
// first if a .env file should be merged into the environment.
func Load() (*Settings, error) {
	s := &Settings{
		DefaultModel:             getOrDefault("DEFAULT_MODEL", "auto"),
		AnthropicAPIKey:          os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:             os.Getenv("OPENAI_API_KEY"),
		BedrockEnabled:           os.Getenv("BEDROCK_ENABLED") == "true",
		BedrockRegion:            getOrDefault("BEDROCK_REGION", "us-east-1"),
		CustomAPIURL:             os.Getenv("CUSTOM_API_URL"),
		CustomAPIKey:             os.Getenv("CUSTOM_API_KEY"),
		CustomModel:              os.Getenv("CUSTOM_MODEL"),
		AggregatorAPIURL:         getOrDefault("AGGREGATOR_API_URL", "https://openrouter.ai/api/v1"),
		AggregatorAPIKey:         os.Getenv("AGGREGATOR_API_KEY"),
		AnthropicAllowedModels:   splitCSV(os.Getenv("ANTHROPIC_ALLOWED_MODELS")),
		OpenAIAllowedModels:      splitCSV(os.Getenv("OPENAI_ALLOWED_MODELS")),
		BedrockAllowedModels:     splitCSV(os.Getenv("BEDROCK_ALLOWED_MODELS")),
		CustomAllowedModels:      splitCSV(os.Getenv("CUSTOM_ALLOWED_MODELS")),
		AggregatorAllowedModels:  splitCSV(os.Getenv("AGGREGATOR_ALLOWED_MODELS")),
		CustomModelsPath:         os.Getenv("CUSTOM_MODELS_PATH"),
		Locale:                   os.Getenv("LOCALE"),
		MaxConversationTurns:     getIntOrDefault("MAX_CONVERSATION_TURNS", 40),
		ConversationTimeoutHours: time.Duration(getIntOrDefault("CONVERSATION_TIMEOUT_HOURS", 3)) * time.Hour,
		DisabledTools:            splitCSV(os.Getenv("DISABLED_TOOLS")),
		LogLevel:                 getOrDefault("LOG_LEVEL", "info"),
	}

	if !s.HasUsableProvider() {
		return nil, ErrNoProvidersConfigured
	}
	return s, nil
}

// HasUsableProvider reports whether at least one driver can be constructed.
func (s *Settings) HasUsableProvider() bool {
	return s.AnthropicAPIKey != "" ||
		s.OpenAIAPIKey != "" ||
		s.BedrockEnabled ||
		s.CustomAPIURL != "" ||
		s.AggregatorAPIKey != ""
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("[Config] WARNING: invalid value for %s=%q, using default %d", key, v, def)
	}
	return def
}
