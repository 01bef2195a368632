package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mikeboe/deep-researcher/pkg/research"
)

// Kind is an enum for the supported language model backends.
type Kind string

const (
	KindOllama    Kind = "ollama"
	KindGemini    Kind = "gemini"
	KindOpenAI    Kind = "openai"
	KindAnthropic Kind = "anthropic"
)

var Kinds = []Kind{KindOllama, KindGemini, KindOpenAI, KindAnthropic}

// DefaultModel is the local model used when none is specified.
const DefaultModel = "deepseek-r1:1.5b"

func ParseKind(name string) (Kind, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(name)))
	for _, k := range Kinds {
		if k == kind {
			return k, nil
		}
	}
	return "", &research.ConfigurationError{
		Field: "llm_provider",
		Value: name,
		Err:   fmt.Errorf("unsupported LLM provider, expected one of %v", Kinds),
	}
}

// Options selects and configures a backend for New.
type Options struct {
	Kind            Kind
	Model           string
	OllamaBaseURL   string
	GoogleAPIKey    string
	OpenAIAPIKey    string
	AnthropicAPIKey string
}

// New builds the research.LanguageModel for opts.Kind. Hosted backends
// require their API key.
func New(ctx context.Context, opts Options) (research.LanguageModel, error) {
	model := strings.TrimSpace(opts.Model)

	switch opts.Kind {
	case KindOllama, "":
		if model == "" {
			model = DefaultModel
		}
		return NewOllama(model, opts.OllamaBaseURL)
	case KindGemini:
		if opts.GoogleAPIKey == "" {
			return nil, missingKey("GOOGLE_API_KEY")
		}
		if model == "" {
			model = DefaultGeminiModel
		}
		return NewGemini(ctx, model, opts.GoogleAPIKey)
	case KindOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, missingKey("OPENAI_API_KEY")
		}
		if model == "" {
			model = DefaultOpenAIModel
		}
		return NewOpenAI(model, opts.OpenAIAPIKey), nil
	case KindAnthropic:
		if opts.AnthropicAPIKey == "" {
			return nil, missingKey("ANTHROPIC_API_KEY")
		}
		if model == "" {
			model = DefaultAnthropicModel
		}
		return NewAnthropic(model, opts.AnthropicAPIKey), nil
	default:
		return nil, &research.ConfigurationError{Field: "llm_provider", Value: string(opts.Kind)}
	}
}

func missingKey(env string) error {
	return &research.ConfigurationError{Field: env, Err: errors.New("API key is required")}
}

var errEmptyResponse = errors.New("model returned an empty response")

// jsonInstruction is appended to the system prompt for backends without a
// native JSON response mode.
const jsonInstruction = "\n\nRespond with a single JSON object and nothing else."
