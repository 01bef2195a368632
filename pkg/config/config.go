package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/mikeboe/deep-researcher/pkg/clients"
	"github.com/mikeboe/deep-researcher/pkg/research"
	"github.com/mikeboe/deep-researcher/pkg/research/tools"
)

type Config struct {
	MaxLoops           int    `validate:"min=0"`
	MaxTokensPerSource int    `validate:"min=1"`
	Seed               uint64 `validate:"-"`

	LLMProvider   clients.Kind `validate:"required"`
	LocalLLM      string       `validate:"required"`
	OllamaBaseURL string       `validate:"omitempty,url"`

	SearchAPI        tools.ProviderKind `validate:"required"`
	TavilyAPIKey     string
	PerplexityAPIKey string
	ExaAPIKey        string

	GoogleAPIKey    string
	OpenAIAPIKey    string
	AnthropicAPIKey string

	DatabaseURL string
	Port        string `validate:"required,numeric"`
	LogLevel    slog.Level
	Tracing     bool
}

// Load reads an optional .env file and the environment. Unknown provider
// names come back as *research.ConfigurationError.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	llmProvider, err := clients.ParseKind(getEnv("LLM_PROVIDER", string(clients.KindOllama)))
	if err != nil {
		return nil, err
	}
	searchAPI, err := tools.ParseProviderKind(getEnv("SEARCH_API", string(tools.ProviderTavily)))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		MaxLoops:           getEnvAsInt("MAX_WEB_RESEARCH_LOOPS", 3),
		MaxTokensPerSource: getEnvAsInt("MAX_TOKENS_PER_SOURCE", 1000),
		Seed:               getEnvAsUint64("RESEARCH_SEED", 0),
		LLMProvider:        llmProvider,
		LocalLLM:           getEnv("LOCAL_LLM", clients.DefaultModel),
		OllamaBaseURL:      getEnv("OLLAMA_BASE_URL", ""),
		SearchAPI:          searchAPI,
		TavilyAPIKey:       getEnv("TAVILY_API_KEY", ""),
		PerplexityAPIKey:   getEnv("PERPLEXITY_API_KEY", ""),
		ExaAPIKey:          getEnv("EXA_API_KEY", ""),
		GoogleAPIKey:       getEnv("GOOGLE_API_KEY", ""),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey:    getEnv("ANTHROPIC_API_KEY", ""),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		Port:               getEnv("PORT", "3000"),
		LogLevel:           getEnvAsLevel("LOG_LEVEL", slog.LevelInfo),
		Tracing:            getEnvAsBool("TRACING", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ValidateAPIKeys checks that the selected search provider has a key.
func (c *Config) ValidateAPIKeys() error {
	env := c.SearchAPI.APIKeyEnv()
	if env == "" {
		return nil
	}
	if strings.TrimSpace(c.SearchAPIKey()) == "" {
		return &research.ConfigurationError{
			Field: env,
			Err:   fmt.Errorf("%s is required when using %s as search provider", env, c.SearchAPI),
		}
	}
	return nil
}

// SearchAPIKey returns the key of the selected search provider.
func (c *Config) SearchAPIKey() string {
	switch c.SearchAPI {
	case tools.ProviderTavily:
		return c.TavilyAPIKey
	case tools.ProviderPerplexity:
		return c.PerplexityAPIKey
	case tools.ProviderExa:
		return c.ExaAPIKey
	default:
		return ""
	}
}

func (c *Config) Research() research.Config {
	return research.Config{
		MaxLoops:           c.MaxLoops,
		MaxTokensPerSource: c.MaxTokensPerSource,
		Seed:               c.Seed,
	}
}

func (c *Config) ClientOptions() clients.Options {
	return clients.Options{
		Kind:            c.LLMProvider,
		Model:           c.LocalLLM,
		OllamaBaseURL:   c.OllamaBaseURL,
		GoogleAPIKey:    c.GoogleAPIKey,
		OpenAIAPIKey:    c.OpenAIAPIKey,
		AnthropicAPIKey: c.AnthropicAPIKey,
	}
}

func (c *Config) SearchOptions() tools.Options {
	return tools.Options{
		TavilyAPIKey:     c.TavilyAPIKey,
		PerplexityAPIKey: c.PerplexityAPIKey,
		ExaAPIKey:        c.ExaAPIKey,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsUint64(key string, defaultValue uint64) uint64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsLevel(key string, defaultValue slog.Level) slog.Level {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(valueStr)); err != nil {
		return defaultValue
	}
	return level
}
