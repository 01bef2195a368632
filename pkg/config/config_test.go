package config

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/deep-researcher/pkg/clients"
	"github.com/mikeboe/deep-researcher/pkg/research"
	"github.com/mikeboe/deep-researcher/pkg/research/tools"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"MAX_WEB_RESEARCH_LOOPS", "MAX_TOKENS_PER_SOURCE", "RESEARCH_SEED",
		"LLM_PROVIDER", "LOCAL_LLM", "OLLAMA_BASE_URL", "SEARCH_API",
		"TAVILY_API_KEY", "PERPLEXITY_API_KEY", "EXA_API_KEY",
		"PORT", "LOG_LEVEL", "TRACING",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MaxLoops)
	assert.Equal(t, 1000, cfg.MaxTokensPerSource)
	assert.Equal(t, clients.KindOllama, cfg.LLMProvider)
	assert.Equal(t, "deepseek-r1:1.5b", cfg.LocalLLM)
	assert.Equal(t, tools.ProviderTavily, cfg.SearchAPI)
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.False(t, cfg.Tracing)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAX_WEB_RESEARCH_LOOPS", "5")
	t.Setenv("SEARCH_API", "Perplexity")
	t.Setenv("PERPLEXITY_API_KEY", "pplx")
	t.Setenv("RESEARCH_SEED", "7")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("TRACING", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxLoops)
	assert.Equal(t, tools.ProviderPerplexity, cfg.SearchAPI)
	assert.Equal(t, "pplx", cfg.SearchAPIKey())
	assert.Equal(t, uint64(7), cfg.Research().Seed)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.True(t, cfg.Tracing)
	assert.NoError(t, cfg.ValidateAPIKeys())
}

func TestLoad_UnknownSearchAPI(t *testing.T) {
	clearEnv(t)
	t.Setenv("SEARCH_API", "bing")

	_, err := Load()
	var cfgErr *research.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "search_api", cfgErr.Field)
}

func TestLoad_InvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAX_WEB_RESEARCH_LOOPS", "-1")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_Seed(t *testing.T) {
	tests := map[string]uint64{
		"":                     0,
		"42":                   42,
		"-1":                   0,
		"18446744073709551615": 18446744073709551615,
		"seed":                 0,
	}
	for value, want := range tests {
		t.Run(value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("RESEARCH_SEED", value)

			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, want, cfg.Seed)
		})
	}
}

func TestValidateAPIKeys(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"tavily without key", Config{SearchAPI: tools.ProviderTavily}, true},
		{"tavily with key", Config{SearchAPI: tools.ProviderTavily, TavilyAPIKey: "k"}, false},
		{"exa without key", Config{SearchAPI: tools.ProviderExa}, true},
		{"arxiv needs none", Config{SearchAPI: tools.ProviderArxiv}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.ValidateAPIKeys()
			if tt.wantErr {
				var cfgErr *research.ConfigurationError
				assert.ErrorAs(t, err, &cfgErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}
