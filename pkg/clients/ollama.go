package clients

import (
	"context"
	"fmt"

	"github.com/mikeboe/deep-researcher/pkg/research"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// LangChain adapts any langchaingo model. Structured calls switch the model
// into JSON mode.
type LangChain struct {
	model string
	llm   llms.Model
}

// NewOllama connects to a local Ollama server. An empty baseURL uses the
// langchaingo default.
func NewOllama(model, baseURL string) (*LangChain, error) {
	opts := []ollama.Option{ollama.WithModel(model)}
	if baseURL != "" {
		opts = append(opts, ollama.WithServerURL(baseURL))
	}

	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	return NewLangChain(model, llm), nil
}

func NewLangChain(model string, llm llms.Model) *LangChain {
	return &LangChain{model: model, llm: llm}
}

func (l *LangChain) Generate(ctx context.Context, system, user string, structured bool) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}
	callOpts := []llms.CallOption{llms.WithTemperature(0)}
	if structured {
		callOpts = append(callOpts, llms.WithJSONMode())
	}

	resp, err := l.llm.GenerateContent(ctx, messages, callOpts...)
	if err != nil {
		return "", &research.LanguageModelError{Model: l.model, Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &research.LanguageModelError{Model: l.model, Err: errEmptyResponse}
	}
	return resp.Choices[0].Content, nil
}
