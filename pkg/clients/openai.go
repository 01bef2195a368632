package clients

import (
	"context"

	"github.com/mikeboe/deep-researcher/pkg/research"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAI calls the Chat Completions API.
type OpenAI struct {
	client *openai.Client
	model  string
}

func NewOpenAI(model, apiKey string, opts ...option.RequestOption) *OpenAI {
	// One attempt per call; degradation is handled by the engine.
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}, opts...)
	client := openai.NewClient(opts...)
	return &OpenAI{client: &client, model: model}
}

func (o *OpenAI) Generate(ctx context.Context, system, user string, structured bool) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(0),
	}
	if structured {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", &research.LanguageModelError{Model: o.model, Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &research.LanguageModelError{Model: o.model, Err: errEmptyResponse}
	}
	return resp.Choices[0].Message.Content, nil
}
