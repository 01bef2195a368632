package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mikeboe/deep-researcher/pkg/research"
)

const (
	perplexityURL      = "https://api.perplexity.ai/chat/completions"
	perplexityModel    = "sonar-pro"
	perplexityFallback = "https://perplexity.ai"
)

// Perplexity asks the Perplexity chat API and turns its single answer and
// citation list into Sources.
type Perplexity struct {
	APIKey  string
	BaseURL string
	Model   string
	client  *http.Client
}

func NewPerplexity(apiKey string, client *http.Client) *Perplexity {
	return &Perplexity{APIKey: apiKey, BaseURL: perplexityURL, Model: perplexityModel, client: client}
}

func (p *Perplexity) Name() string            { return string(ProviderPerplexity) }
func (p *Perplexity) IncludeRawContent() bool { return false }

type perplexityResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Citations []string `json:"citations"`
}

func (p *Perplexity) Search(ctx context.Context, query string, loopIndex int) ([]research.Source, error) {
	apiKey := strings.TrimSpace(p.APIKey)
	if apiKey == "" {
		return nil, &research.SearchProviderError{Provider: p.Name(), Err: errMissingAPIKey}
	}

	body := map[string]any{
		"model": p.Model,
		"messages": []map[string]string{
			{"role": "system", "content": "Search the web and provide factual information with sources."},
			{"role": "user", "content": query},
		},
	}
	headers := map[string]string{"Authorization": "Bearer " + apiKey}

	var resp perplexityResponse
	if err := postJSON(ctx, p.client, p.BaseURL, headers, body, &resp); err != nil {
		return nil, &research.SearchProviderError{Provider: p.Name(), Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &research.SearchProviderError{Provider: p.Name(), Err: errors.New("response has no choices")}
	}

	sources := citationSources(resp.Choices[0].Message.Content, resp.Citations, loopIndex)
	slog.Info("Perplexity search complete", "query", query, "citations", len(sources))
	return sources, nil
}

// citationSources gives the first citation the full answer and turns the
// remaining citations into reference stubs, numbered within the round.
func citationSources(answer string, citations []string, loopIndex int) []research.Source {
	if len(citations) == 0 {
		citations = []string{perplexityFallback}
	}

	sources := make([]research.Source, 0, len(citations))
	for i, citation := range citations {
		if strings.TrimSpace(citation) == "" {
			citation = perplexityFallback
		}
		src := research.Source{
			Title: fmt.Sprintf("Perplexity Search %d, Source %d", loopIndex+1, i+1),
			URL:   citation,
		}
		if i == 0 {
			src.Content = answer
			src.RawContent = answer
		} else {
			src.Content = "See above for full content"
		}
		sources = append(sources, src)
	}
	return sources
}
