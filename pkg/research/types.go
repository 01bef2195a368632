package research

import (
	"context"
	"slices"
)

// Config holds runtime configuration for a research session.
type Config struct {
	// MaxLoops bounds the follow-up rounds. The engine always performs
	// MaxLoops+1 retrieval rounds.
	MaxLoops           int `json:"max_loops" validate:"min=0"`
	MaxTokensPerSource int `json:"max_tokens_per_source" validate:"min=1"`
	// Seed makes the reflection fallback reproducible. Zero means unseeded.
	Seed uint64 `json:"seed"`
}

// DefaultConfig mirrors the defaults of the CLI.
func DefaultConfig() Config {
	return Config{
		MaxLoops:           3,
		MaxTokensPerSource: 1000,
	}
}

// Source is a single search hit in provider-neutral form.
type Source struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
	// RawContent is the full page text when the provider returns it.
	// An empty string means the provider had nothing to offer.
	RawContent string `json:"raw_content,omitempty"`
}

// LanguageModel generates text for a system instruction and a user message.
// When structured is true the reply is expected to be a single JSON object.
type LanguageModel interface {
	Generate(ctx context.Context, system, user string, structured bool) (string, error)
}

// Searcher runs a web search and maps the provider response onto Sources.
type Searcher interface {
	// Name identifies the provider in degrade notes and logs.
	Name() string
	// IncludeRawContent reports whether aggregation should render raw page excerpts.
	IncludeRawContent() bool
	// Search runs one query. loopIndex is the zero-based round number, used by
	// providers that label their results per round.
	Search(ctx context.Context, query string, loopIndex int) ([]Source, error)
}

// ResearchState tracks the progress of the research. It is treated as an
// immutable snapshot: every step returns a new value and never mutates slices
// reachable from an earlier one.
type ResearchState struct {
	Topic           string   `json:"topic"`
	Query           string   `json:"query"`
	LoopCount       int      `json:"loop_count"`
	Summary         string   `json:"summary"`
	SourcesGathered []string `json:"sources_gathered"`
	RawResults      []string `json:"raw_results"`
	// LastRoundFailed marks that the newest RawResults entry is a search
	// failure note rather than aggregated sources.
	LastRoundFailed bool `json:"last_round_failed"`
}

// withRound records one completed retrieval step.
func (s ResearchState) withRound(sources, raw string) ResearchState {
	s.SourcesGathered = append(slices.Clip(s.SourcesGathered), sources)
	s.RawResults = append(slices.Clip(s.RawResults), raw)
	s.LoopCount++
	s.LastRoundFailed = false
	return s
}

// latestRaw returns the aggregated text of the most recent round.
func (s ResearchState) latestRaw() string {
	if len(s.RawResults) == 0 {
		return ""
	}
	return s.RawResults[len(s.RawResults)-1]
}

// Result is the outcome of a finished session.
type Result struct {
	// Report is the finalized markdown artifact.
	Report string        `json:"report"`
	State  ResearchState `json:"state"`
}
