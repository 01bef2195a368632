// Package agent turns a loaded configuration into a ready research engine.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mikeboe/deep-researcher/pkg/clients"
	"github.com/mikeboe/deep-researcher/pkg/config"
	"github.com/mikeboe/deep-researcher/pkg/research"
	"github.com/mikeboe/deep-researcher/pkg/research/tools"
)

// NewEngine builds the language model and search provider named by cfg and
// wires them into an engine. The search API key is checked before any
// network call.
func NewEngine(ctx context.Context, cfg config.Config, logger *slog.Logger) (*research.ResearchEngine, error) {
	if err := cfg.ValidateAPIKeys(); err != nil {
		return nil, err
	}

	llm, err := clients.New(ctx, cfg.ClientOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create language model: %w", err)
	}

	searcher, err := tools.New(cfg.SearchAPI, cfg.SearchOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create search provider: %w", err)
	}

	engine, err := research.NewEngine(cfg.Research(), llm, searcher)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		engine.Logger = logger
	}

	slog.Debug("Engine ready", "llm_provider", cfg.LLMProvider, "model", cfg.LocalLLM, "search_api", cfg.SearchAPI, "max_loops", cfg.MaxLoops)
	return engine, nil
}
