package clients

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/mikeboe/deep-researcher/pkg/research"
)

const DefaultAnthropicModel = "claude-3-5-haiku-latest"

// Anthropic calls the Messages API. It has no JSON response mode, so
// structured calls ask for JSON in the system prompt.
type Anthropic struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

func NewAnthropic(model, apiKey string, opts ...option.RequestOption) *Anthropic {
	// One attempt per call; degradation is handled by the engine.
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}, opts...)
	client := anthropic.NewClient(opts...)
	return &Anthropic{client: &client, model: model, maxTokens: 4096}
}

func (a *Anthropic) Generate(ctx context.Context, system, user string, structured bool) (string, error) {
	if structured {
		system += jsonInstruction
	}

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   a.maxTokens,
		Temperature: anthropic.Float(0),
		System:      []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", &research.LanguageModelError{Model: a.model, Err: err}
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	if sb.Len() == 0 {
		return "", &research.LanguageModelError{Model: a.model, Err: errEmptyResponse}
	}
	return sb.String(), nil
}
