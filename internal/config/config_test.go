package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, ProviderOpenAI, cfg.Provider)
	require.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	require.Equal(t, BackendMemory, cfg.StateBackend)
	require.Equal(t, 60*time.Second, cfg.CompletionTimeout)
	require.Equal(t, 2000, cfg.MaxInputLength)
	require.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	require.False(t, cfg.NeedsAWS())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("LLM_PROVIDER", "Anthropic")
	t.Setenv("ANTHROPIC_MODEL", "claude-sonnet-4-5")
	t.Setenv("PARAM_PREFIX", "/coach/prod/")
	t.Setenv("STATE_BACKEND", "dynamodb")
	t.Setenv("STATE_TABLE", "coach-sessions")
	t.Setenv("SESSION_TTL", "48h")
	t.Setenv("COMPLETION_TIMEOUT", "15")
	t.Setenv("MAX_INPUT_LENGTH", "500")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "9000", cfg.Port)
	require.Equal(t, ProviderAnthropic, cfg.Provider)
	require.Equal(t, "/coach/prod", cfg.ParamPrefix)
	require.Equal(t, "/coach/prod/anthropic-token", cfg.TokenParameter())
	require.Equal(t, "claude-sonnet-4-5", cfg.Anthropic.Model)
	require.Equal(t, 48*time.Hour, cfg.SessionTTL)
	require.Equal(t, 15*time.Second, cfg.CompletionTimeout)
	require.Equal(t, 500, cfg.MaxInputLength)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	require.True(t, cfg.NeedsAWS())
}

func TestLoad_FailsFastWithoutCredential(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("PARAM_PREFIX", "")

	_, err := Load()
	require.ErrorContains(t, err, "OPENAI_API_KEY or PARAM_PREFIX")
}

func TestLoad_AnthropicRequiresModel(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("ANTHROPIC_MODEL", "")

	_, err := Load()
	require.ErrorContains(t, err, "ANTHROPIC_MODEL")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:              "8080",
			Provider:          ProviderOpenAI,
			OpenAI:            ProviderConfig{APIKey: "sk"},
			StateBackend:      BackendMemory,
			CompletionTimeout: time.Second,
			MaxInputLength:    10,
		}
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(c *Config){
		"empty port":         func(c *Config) { c.Port = "" },
		"unknown provider":   func(c *Config) { c.Provider = "mistral" },
		"anthropic no key":   func(c *Config) { c.Provider = ProviderAnthropic },
		"anthropic no model": func(c *Config) { c.Provider, c.Anthropic.APIKey = ProviderAnthropic, "sk-ant" },
		"dynamodb no table":  func(c *Config) { c.StateBackend = BackendDynamoDB },
		"sqlite no path":     func(c *Config) { c.StateBackend = BackendSQLite },
		"unknown backend":    func(c *Config) { c.StateBackend = "redis" },
		"negative ttl":       func(c *Config) { c.SessionTTL = -time.Second },
		"zero timeout":       func(c *Config) { c.CompletionTimeout = 0 },
		"zero input length":  func(c *Config) { c.MaxInputLength = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			require.Error(t, c.Validate())
		})
	}
}

func TestTokenParameter_OpenAI(t *testing.T) {
	c := &Config{Provider: ProviderOpenAI, ParamPrefix: "/coach"}
	require.Equal(t, "/coach/open-ai-token", c.TokenParameter())
}
