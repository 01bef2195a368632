package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mikeboe/deep-researcher/pkg/research"
)

// ProviderKind selects a search backend. It is parsed once when the
// configuration is loaded.
type ProviderKind string

const (
	ProviderTavily     ProviderKind = "tavily"
	ProviderPerplexity ProviderKind = "perplexity"
	ProviderExa        ProviderKind = "exa"
	ProviderArxiv      ProviderKind = "arxiv"
)

// ProviderKinds lists every supported backend.
var ProviderKinds = []ProviderKind{ProviderTavily, ProviderPerplexity, ProviderExa, ProviderArxiv}

// ParseProviderKind resolves a provider name. Unknown names are a
// *research.ConfigurationError.
func ParseProviderKind(name string) (ProviderKind, error) {
	kind := ProviderKind(strings.ToLower(strings.TrimSpace(name)))
	for _, k := range ProviderKinds {
		if k == kind {
			return k, nil
		}
	}
	return "", &research.ConfigurationError{
		Field: "search_api",
		Value: name,
		Err:   fmt.Errorf("unsupported search API, expected one of %v", ProviderKinds),
	}
}

// APIKeyEnv names the environment variable holding the provider's key, or
// "" when the provider needs none.
func (k ProviderKind) APIKeyEnv() string {
	switch k {
	case ProviderTavily:
		return "TAVILY_API_KEY"
	case ProviderPerplexity:
		return "PERPLEXITY_API_KEY"
	case ProviderExa:
		return "EXA_API_KEY"
	default:
		return ""
	}
}

// Options carries credentials and transport settings for New.
type Options struct {
	TavilyAPIKey     string
	PerplexityAPIKey string
	ExaAPIKey        string
	HTTPClient       *http.Client
}

// New builds the Searcher for kind.
func New(kind ProviderKind, opts Options) (research.Searcher, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	switch kind {
	case ProviderTavily:
		return NewTavily(opts.TavilyAPIKey, client), nil
	case ProviderPerplexity:
		return NewPerplexity(opts.PerplexityAPIKey, client), nil
	case ProviderExa:
		return NewExa(opts.ExaAPIKey, client), nil
	case ProviderArxiv:
		return NewArxiv(client), nil
	default:
		return nil, &research.ConfigurationError{Field: "search_api", Value: string(kind)}
	}
}

var errMissingAPIKey = errors.New("API key is missing")

// postJSON sends body as JSON and decodes a 200 response into out.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
