package tools

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mikeboe/deep-researcher/pkg/research"
)

const arxivURL = "https://export.arxiv.org/api/query"

// ArxivEntry struct to hold arXiv entry data
type ArxivEntry struct {
	ID        string      `xml:"id"`
	Title     string      `xml:"title"`
	Summary   string      `xml:"summary"`
	Published string      `xml:"published"`
	Link      []ArxivLink `xml:"link"`
}

// ArxivLink struct to hold arXiv link data
type ArxivLink struct {
	Href string `xml:"href,attr"`
	Type string `xml:"type,attr"`
}

// ArxivFeed struct to hold the entire arXiv feed
type ArxivFeed struct {
	XMLName xml.Name     `xml:"feed"`
	Entry   []ArxivEntry `xml:"entry"`
}

// Arxiv searches the public arXiv Atom API. It needs no API key.
type Arxiv struct {
	BaseURL    string
	MaxResults int
	client     *http.Client
}

func NewArxiv(client *http.Client) *Arxiv {
	return &Arxiv{BaseURL: arxivURL, MaxResults: 3, client: client}
}

func (a *Arxiv) Name() string            { return string(ProviderArxiv) }
func (a *Arxiv) IncludeRawContent() bool { return false }

// Search queries the arXiv API and maps every entry onto a Source.
func (a *Arxiv) Search(ctx context.Context, query string, _ int) ([]research.Source, error) {
	maxResults := a.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}

	params := url.Values{}
	params.Add("search_query", "all:"+query)
	params.Add("max_results", strconv.Itoa(maxResults))
	params.Add("start", "0")
	apiURL := a.BaseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, &research.SearchProviderError{Provider: a.Name(), Err: fmt.Errorf("failed to create HTTP request: %w", err)}
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &research.SearchProviderError{Provider: a.Name(), Err: fmt.Errorf("failed to make API request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &research.SearchProviderError{Provider: a.Name(), Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		slog.Error("API returned non-200 status code", "status", resp.StatusCode, "body", string(body))
		return nil, &research.SearchProviderError{Provider: a.Name(), Err: fmt.Errorf("API returned non-200 status code: %d", resp.StatusCode)}
	}

	var feed ArxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, &research.SearchProviderError{Provider: a.Name(), Err: fmt.Errorf("failed to unmarshal XML: %w", err)}
	}

	sources := make([]research.Source, 0, len(feed.Entry))
	for _, entry := range feed.Entry {
		link := entryLink(entry)
		if link == "" {
			continue
		}
		sources = append(sources, research.Source{
			Title:   collapseSpace(entry.Title),
			URL:     link,
			Content: fmt.Sprintf("%s (published %s)", collapseSpace(entry.Summary), entry.Published),
		})
	}

	slog.Info("Arxiv search complete", "query", query, "count", len(sources))
	return sources, nil
}

// entryLink prefers the PDF link and falls back to the abstract page id.
func entryLink(entry ArxivEntry) string {
	for _, link := range entry.Link {
		if link.Type == "application/pdf" {
			return link.Href
		}
	}
	return strings.TrimSpace(entry.ID)
}

// collapseSpace folds the line breaks arXiv puts into titles and abstracts.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
