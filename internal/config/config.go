// Package config reads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	BackendMemory   = "memory"
	BackendDynamoDB = "dynamodb"
	BackendSQLite   = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	Port              string
	Provider          string
	OpenAI            ProviderConfig
	Anthropic         ProviderConfig
	ParamPrefix       string
	StateBackend      string
	StateTable        string
	SQLitePath        string
	SessionTTL        time.Duration
	CompletionTimeout time.Duration
	MaxInputLength    int
	AllowedOrigins    []string
}

// ProviderConfig is the credential and model for one LLM provider.
type ProviderConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		Provider: strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI)),
		OpenAI: ProviderConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			Model:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			BaseURL: getEnv("OPENAI_BASE_URL", ""),
		},
		Anthropic: ProviderConfig{
			APIKey:  getEnv("ANTHROPIC_API_KEY", ""),
			Model:   getEnv("ANTHROPIC_MODEL", ""),
			BaseURL: getEnv("ANTHROPIC_BASE_URL", ""),
		},
		ParamPrefix:       strings.TrimRight(getEnv("PARAM_PREFIX", ""), "/"),
		StateBackend:      strings.ToLower(getEnv("STATE_BACKEND", BackendMemory)),
		StateTable:        getEnv("STATE_TABLE", ""),
		SQLitePath:        getEnv("SQLITE_PATH", "./data/sessions.db"),
		SessionTTL:        getEnvDuration("SESSION_TTL", 30*24*time.Hour),
		CompletionTimeout: getEnvDuration("COMPLETION_TIMEOUT", 60*time.Second),
		MaxInputLength:    getEnvInt("MAX_INPUT_LENGTH", 2000),
		AllowedOrigins:    getEnvList("ALLOWED_ORIGINS", []string{"*"}),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable. A provider without an API
// key and without a parameter prefix to fetch one from fails here, at startup.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT cannot be empty")
	}

	switch c.Provider {
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" && c.ParamPrefix == "" {
			return errors.New("OPENAI_API_KEY or PARAM_PREFIX must be set")
		}
	case ProviderAnthropic:
		if c.Anthropic.APIKey == "" && c.ParamPrefix == "" {
			return errors.New("ANTHROPIC_API_KEY or PARAM_PREFIX must be set")
		}
		if c.Anthropic.Model == "" {
			return errors.New("ANTHROPIC_MODEL is required when LLM_PROVIDER=anthropic")
		}
	default:
		return fmt.Errorf("LLM_PROVIDER %q is not supported", c.Provider)
	}

	switch c.StateBackend {
	case BackendMemory:
	case BackendDynamoDB:
		if c.StateTable == "" {
			return errors.New("STATE_TABLE is required for the dynamodb backend")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("STATE_BACKEND %q is not supported", c.StateBackend)
	}

	if c.SessionTTL < 0 {
		return errors.New("SESSION_TTL must be >= 0")
	}
	if c.CompletionTimeout <= 0 {
		return errors.New("COMPLETION_TIMEOUT must be > 0")
	}
	if c.MaxInputLength <= 0 {
		return errors.New("MAX_INPUT_LENGTH must be > 0")
	}
	return nil
}

// NeedsAWS reports whether any configured component talks to AWS.
func (c *Config) NeedsAWS() bool {
	return c.ParamPrefix != "" || c.StateBackend == BackendDynamoDB
}

// TokenParameter is the SSM parameter holding the active provider's key.
func (c *Config) TokenParameter() string {
	if c.Provider == ProviderAnthropic {
		return c.ParamPrefix + "/anthropic-token"
	}
	return c.ParamPrefix + "/open-ai-token"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go durations ("90s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
