package tools

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mikeboe/deep-researcher/pkg/research"
)

const tavilyURL = "https://api.tavily.com/search"

// Tavily calls the Tavily search API and keeps the raw page content.
type Tavily struct {
	APIKey     string
	BaseURL    string
	MaxResults int
	client     *http.Client
}

func NewTavily(apiKey string, client *http.Client) *Tavily {
	return &Tavily{APIKey: apiKey, BaseURL: tavilyURL, MaxResults: 1, client: client}
}

func (t *Tavily) Name() string            { return string(ProviderTavily) }
func (t *Tavily) IncludeRawContent() bool { return true }

type tavilyResponse struct {
	Results []struct {
		Title      string  `json:"title"`
		URL        string  `json:"url"`
		Content    string  `json:"content"`
		RawContent *string `json:"raw_content"`
	} `json:"results"`
}

func (t *Tavily) Search(ctx context.Context, query string, _ int) ([]research.Source, error) {
	apiKey := strings.TrimSpace(t.APIKey)
	if apiKey == "" {
		return nil, &research.SearchProviderError{Provider: t.Name(), Err: errMissingAPIKey}
	}

	body := map[string]any{
		"query":               query,
		"max_results":         t.MaxResults,
		"include_raw_content": true,
	}
	headers := map[string]string{"Authorization": "Bearer " + apiKey}

	var resp tavilyResponse
	if err := postJSON(ctx, t.client, t.BaseURL, headers, body, &resp); err != nil {
		return nil, &research.SearchProviderError{Provider: t.Name(), Err: err}
	}

	sources := make([]research.Source, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.URL == "" {
			continue
		}
		raw := ""
		if r.RawContent != nil {
			raw = *r.RawContent
		} else {
			slog.Warn("No raw_content found for source", "url", r.URL)
		}
		sources = append(sources, research.Source{Title: r.Title, URL: r.URL, Content: r.Content, RawContent: raw})
	}

	slog.Info("Tavily search complete", "query", query, "count", len(sources))
	return sources, nil
}
