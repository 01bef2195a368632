package tools

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mikeboe/deep-researcher/pkg/research"
)

const (
	exaURL         = "https://api.exa.ai/search"
	exaFallbackURL = "https://exa.ai"
	exaSnippetLen  = 500
)

// Exa calls the Exa neural search API with highlights and page text.
type Exa struct {
	APIKey     string
	BaseURL    string
	MaxResults int
	client     *http.Client
}

func NewExa(apiKey string, client *http.Client) *Exa {
	return &Exa{APIKey: apiKey, BaseURL: exaURL, MaxResults: 3, client: client}
}

func (e *Exa) Name() string            { return string(ProviderExa) }
func (e *Exa) IncludeRawContent() bool { return true }

type exaResponse struct {
	Results []struct {
		Title      string   `json:"title"`
		URL        string   `json:"url"`
		Text       string   `json:"text"`
		Highlights []string `json:"highlights"`
	} `json:"results"`
}

func (e *Exa) Search(ctx context.Context, query string, _ int) ([]research.Source, error) {
	apiKey := strings.TrimSpace(e.APIKey)
	if apiKey == "" {
		return nil, &research.SearchProviderError{Provider: e.Name(), Err: errMissingAPIKey}
	}

	body := map[string]any{
		"query":      query,
		"numResults": e.MaxResults,
		"contents": map[string]any{
			"text":       true,
			"highlights": true,
		},
	}
	headers := map[string]string{"x-api-key": apiKey}

	var resp exaResponse
	if err := postJSON(ctx, e.client, e.BaseURL, headers, body, &resp); err != nil {
		return nil, &research.SearchProviderError{Provider: e.Name(), Err: err}
	}

	sources := make([]research.Source, 0, len(resp.Results))
	for i, r := range resp.Results {
		url := r.URL
		if url == "" {
			url = exaFallbackURL
		}
		title := r.Title
		if title == "" {
			title = fmt.Sprintf("Exa Search Result %d", i+1)
		}

		content := strings.Join(r.Highlights, " ")
		if content == "" {
			content = r.Text
			if runes := []rune(content); len(runes) > exaSnippetLen {
				content = string(runes[:exaSnippetLen]) + "..."
			}
		}
		sources = append(sources, research.Source{Title: title, URL: url, Content: content, RawContent: r.Text})
	}

	slog.Info("Exa search complete", "query", query, "count", len(sources))
	return sources, nil
}
