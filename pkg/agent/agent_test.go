package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/deep-researcher/pkg/clients"
	"github.com/mikeboe/deep-researcher/pkg/config"
	"github.com/mikeboe/deep-researcher/pkg/research"
	"github.com/mikeboe/deep-researcher/pkg/research/tools"
)

func baseConfig() config.Config {
	return config.Config{
		MaxLoops:           2,
		MaxTokensPerSource: 1000,
		LLMProvider:        clients.KindOpenAI,
		OpenAIAPIKey:       "sk-test",
		LocalLLM:           "gpt-4o-mini",
		SearchAPI:          tools.ProviderArxiv,
		Port:               "3000",
	}
}

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine(context.Background(), baseConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, engine.Config.MaxLoops)
	assert.Equal(t, "arxiv", engine.Search.Name())
}

func TestNewEngine_MissingSearchKey(t *testing.T) {
	cfg := baseConfig()
	cfg.SearchAPI = tools.ProviderTavily

	_, err := NewEngine(context.Background(), cfg, nil)
	var cfgErr *research.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "TAVILY_API_KEY", cfgErr.Field)
}

func TestNewEngine_MissingModelKey(t *testing.T) {
	cfg := baseConfig()
	cfg.OpenAIAPIKey = ""

	_, err := NewEngine(context.Background(), cfg, nil)
	var cfgErr *research.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}
