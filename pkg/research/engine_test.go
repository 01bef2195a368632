package research

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedLLM answers by recognizing which prompt it was given.
type scriptedLLM struct {
	query   func() (string, error)
	summary func(user string) (string, error)
	reflect func() (string, error)

	summaryCalls int
}

func (s *scriptedLLM) Generate(_ context.Context, system, user string, structured bool) (string, error) {
	switch {
	case strings.Contains(system, "<TOPIC>"):
		if s.query == nil {
			return `{"query": "generated query"}`, nil
		}
		return s.query()
	case system == summarizerInstructions:
		s.summaryCalls++
		if s.summary == nil {
			return "summary", nil
		}
		return s.summary(user)
	default:
		if s.reflect == nil {
			return `{"knowledge_gap": "gap", "follow_up_query": "follow up"}`, nil
		}
		return s.reflect()
	}
}

func failingLLM() *scriptedLLM {
	fail := errors.New("model offline")
	return &scriptedLLM{
		query:   func() (string, error) { return "", fail },
		summary: func(string) (string, error) { return "", fail },
		reflect: func() (string, error) { return "", fail },
	}
}

type fakeSearch struct {
	raw     bool
	results func(query string, loop int) ([]Source, error)
	queries []string
}

func (f *fakeSearch) Name() string            { return "fake" }
func (f *fakeSearch) IncludeRawContent() bool { return f.raw }

func (f *fakeSearch) Search(_ context.Context, query string, loop int) ([]Source, error) {
	f.queries = append(f.queries, query)
	if f.results == nil {
		return []Source{{Title: "T", URL: "https://example.com", Content: "content"}}, nil
	}
	return f.results(query, loop)
}

type fixedPicker int

func (p fixedPicker) IntN(int) int { return int(p) }

func newTestEngine(t *testing.T, maxLoops int, llm LanguageModel, search Searcher) *ResearchEngine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.MaxLoops = maxLoops
	cfg.Seed = 42

	engine, err := NewEngine(cfg, llm, search)
	require.NoError(t, err)
	engine.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return engine
}

func TestNewEngine_Validation(t *testing.T) {
	_, err := NewEngine(Config{MaxLoops: -1, MaxTokensPerSource: 10}, &scriptedLLM{}, &fakeSearch{})
	assert.Error(t, err)

	_, err = NewEngine(Config{MaxLoops: 1, MaxTokensPerSource: 0}, &scriptedLLM{}, &fakeSearch{})
	assert.Error(t, err)

	_, err = NewEngine(DefaultConfig(), nil, &fakeSearch{})
	assert.Error(t, err)

	_, err = NewEngine(DefaultConfig(), &scriptedLLM{}, nil)
	assert.Error(t, err)
}

func TestRun_PerformsMaxLoopsPlusOneRounds(t *testing.T) {
	for _, maxLoops := range []int{0, 1, 2, 3} {
		search := &fakeSearch{}
		engine := newTestEngine(t, maxLoops, &scriptedLLM{}, search)

		res, err := engine.Run(context.Background(), "topic")
		require.NoError(t, err)

		assert.Len(t, search.queries, maxLoops+1, "maxLoops=%d", maxLoops)
		assert.Equal(t, maxLoops+1, res.State.LoopCount)
	}
}

func TestRun_CardinalityInvariantHoldsOnEveryStep(t *testing.T) {
	search := &fakeSearch{results: func(_ string, loop int) ([]Source, error) {
		if loop%2 == 1 {
			return nil, errors.New("rate limited")
		}
		return []Source{{Title: "T", URL: "u", Content: "c"}}, nil
	}}
	engine := newTestEngine(t, 4, &scriptedLLM{}, search)

	var steps []Step
	engine.OnStateUpdate = func(s ResearchState, step Step) {
		steps = append(steps, step)
		assert.Len(t, s.SourcesGathered, s.LoopCount)
		assert.Len(t, s.RawResults, s.LoopCount)
	}

	res, err := engine.Run(context.Background(), "topic")
	require.NoError(t, err)
	assert.Equal(t, 5, res.State.LoopCount)
	assert.Len(t, res.State.SourcesGathered, 5)
	assert.Len(t, res.State.RawResults, 5)

	assert.Equal(t, StepGenerateQuery, steps[0])
	assert.Equal(t, StepFinalize, steps[len(steps)-1])
	assert.Equal(t, 1, countSteps(steps, StepGenerateQuery))
	assert.Equal(t, 5, countSteps(steps, StepWebResearch))
}

func countSteps(steps []Step, want Step) int {
	n := 0
	for _, s := range steps {
		if s == want {
			n++
		}
	}
	return n
}

func TestRun_SnapshotsAreNotMutated(t *testing.T) {
	engine := newTestEngine(t, 2, &scriptedLLM{}, &fakeSearch{})

	var first *ResearchState
	engine.OnStateUpdate = func(s ResearchState, step Step) {
		if first == nil && step == StepSummarize {
			snap := s
			first = &snap
		}
	}

	_, err := engine.Run(context.Background(), "topic")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, 1, first.LoopCount)
	assert.Len(t, first.SourcesGathered, 1)
	assert.Empty(t, first.Summary)
}

func TestRun_EndToEndSingleRound(t *testing.T) {
	llm := &scriptedLLM{summary: func(string) (string, error) { return "S", nil }}
	search := &fakeSearch{results: func(string, int) ([]Source, error) {
		return []Source{{Title: "A", URL: "u1", Content: "c1"}}, nil
	}}
	engine := newTestEngine(t, 0, llm, search)

	res, err := engine.Run(context.Background(), "quantum computing")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(res.Report, "## Summary"))
	assert.Contains(t, res.Report, "S")
	assert.Contains(t, res.Report, "### Sources:")
	assert.Contains(t, res.Report, "* A : u1")
	assert.Equal(t, []string{"generated query"}, search.queries)
}

func TestRun_FirstRoundSearchFailureIsFatal(t *testing.T) {
	search := &fakeSearch{results: func(string, int) ([]Source, error) {
		return nil, errors.New("connection refused")
	}}
	engine := newTestEngine(t, 3, &scriptedLLM{}, search)

	res, err := engine.Run(context.Background(), "topic")
	require.Error(t, err)

	var sessionErr *SessionError
	require.ErrorAs(t, err, &sessionErr)
	assert.Equal(t, StepWebResearch, sessionErr.Step)
	assert.Empty(t, sessionErr.State.Summary)
	assert.Equal(t, 0, sessionErr.State.LoopCount)

	var searchErr *SearchProviderError
	assert.ErrorAs(t, err, &searchErr)
	assert.Equal(t, "fake", searchErr.Provider)
	assert.Empty(t, res.Report)
	assert.Len(t, search.queries, 1)
}

func TestRun_LaterSearchFailureDegrades(t *testing.T) {
	llm := &scriptedLLM{summary: func(string) (string, error) { return "S", nil }}
	search := &fakeSearch{results: func(_ string, loop int) ([]Source, error) {
		if loop == 1 {
			return nil, errors.New("timeout")
		}
		return []Source{{Title: "A", URL: "u1", Content: "c1"}}, nil
	}}
	engine := newTestEngine(t, 1, llm, search)

	res, err := engine.Run(context.Background(), "topic")
	require.NoError(t, err)

	assert.Contains(t, res.Report, "Note: Search failed during research loop 2 using fake API")
	assert.Contains(t, res.State.SourcesGathered[1], "[Search failed in loop 2]")
	assert.Contains(t, res.State.RawResults[1], "research loop 2")
	assert.Equal(t, 2, llm.summaryCalls)
}

func TestRun_ModelFailureDegradesEverywhere(t *testing.T) {
	search := &fakeSearch{}
	engine := newTestEngine(t, 3, failingLLM(), search)

	res, err := engine.Run(context.Background(), "graph databases")
	require.NoError(t, err)

	require.Len(t, search.queries, 4)
	assert.Equal(t, "graph databases", search.queries[0])
	for _, q := range search.queries[1:] {
		assert.Contains(t, FallbackQueries("graph databases"), q)
	}

	assert.True(t, strings.HasPrefix(res.State.Summary, "Research on: graph databases\n\nRaw search results:\n"))
	assert.Contains(t, res.State.Summary, "Note: Failed to generate follow-up query due to LLM error")
	assert.Contains(t, res.State.Summary, "Note: Failed to summarize new sources due to LLM error")
}

func TestRun_UnparsableStructuredReplies(t *testing.T) {
	llm := &scriptedLLM{
		query:   func() (string, error) { return "not json", nil },
		reflect: func() (string, error) { return `{"knowledge_gap": "only a gap"}`, nil },
	}
	search := &fakeSearch{}
	engine := newTestEngine(t, 1, llm, search)
	engine.Picker = fixedPicker(1)

	res, err := engine.Run(context.Background(), "rust")
	require.NoError(t, err)

	assert.Equal(t, []string{"rust", "important aspects of rust"}, search.queries)
	assert.NotContains(t, res.State.Summary, "Note:")
}

func TestRun_SeededFallbackIsReproducible(t *testing.T) {
	run := func() []string {
		search := &fakeSearch{}
		engine := newTestEngine(t, 5, failingLLM(), search)
		_, err := engine.Run(context.Background(), "topic")
		require.NoError(t, err)
		return search.queries
	}
	assert.Equal(t, run(), run())
}

func TestSummarize_StripsThinking(t *testing.T) {
	llm := &scriptedLLM{summary: func(string) (string, error) {
		return "<think>internal</think>Clean summary", nil
	}}
	engine := newTestEngine(t, 0, llm, &fakeSearch{})

	res, err := engine.Run(context.Background(), "topic")
	require.NoError(t, err)
	assert.Equal(t, "Clean summary", res.State.Summary)
}

func TestSummaryMessage(t *testing.T) {
	first := summaryMessage("topic", "", "results")
	assert.Contains(t, first, "<Search Results> \n results")
	assert.NotContains(t, first, "<Existing Summary>")

	later := summaryMessage("topic", "prior", "results")
	assert.Contains(t, later, "<Existing Summary> \n prior")
	assert.Contains(t, later, "<New Search Results> \n results")
}

func TestReflect(t *testing.T) {
	t.Run("uses follow up query", func(t *testing.T) {
		engine := newTestEngine(t, 0, &scriptedLLM{}, &fakeSearch{})
		query, note := engine.reflect(context.Background(), "topic", "summary")
		assert.Equal(t, "follow up", query)
		assert.Empty(t, note)
	})

	t.Run("call failure adds note", func(t *testing.T) {
		engine := newTestEngine(t, 0, failingLLM(), &fakeSearch{})
		engine.Picker = fixedPicker(3)
		query, note := engine.reflect(context.Background(), "topic", "summary")
		assert.Equal(t, "Tell me more about topic", query)
		assert.Contains(t, note, "model offline")
	})

	t.Run("blank follow up falls back", func(t *testing.T) {
		llm := &scriptedLLM{reflect: func() (string, error) { return `{"follow_up_query": "  "}`, nil }}
		engine := newTestEngine(t, 0, llm, &fakeSearch{})
		engine.Picker = fixedPicker(0)
		query, note := engine.reflect(context.Background(), "topic", "summary")
		assert.Equal(t, "latest developments in topic", query)
		assert.Empty(t, note)
	})
}

func TestRoute(t *testing.T) {
	engine := newTestEngine(t, 2, &scriptedLLM{}, &fakeSearch{})
	assert.Equal(t, StepWebResearch, engine.route(ResearchState{LoopCount: 1}))
	assert.Equal(t, StepWebResearch, engine.route(ResearchState{LoopCount: 2}))
	assert.Equal(t, StepFinalize, engine.route(ResearchState{LoopCount: 3}))
}

func TestFinalize(t *testing.T) {
	got := Finalize("body", []string{"* A : u1", "* B : u2"})
	assert.Equal(t, "## Summary\n\nbody\n\n ### Sources:\n* A : u1\n* B : u2", got)
}

func TestRun_ZeroHitRoundStillListsSources(t *testing.T) {
	search := &fakeSearch{results: func(string, int) ([]Source, error) {
		return []Source{}, nil
	}}
	engine := newTestEngine(t, 0, &scriptedLLM{}, search)

	res, err := engine.Run(context.Background(), "topic")
	require.NoError(t, err)

	assert.Equal(t, []string{"[No sources found in loop 1]"}, res.State.SourcesGathered)
	assert.True(t, strings.HasSuffix(res.Report, "### Sources:\n[No sources found in loop 1]"), res.Report)
}

func TestRun_ThinkingOnlySummaryDoesNotHaltLaterRound(t *testing.T) {
	llm := &scriptedLLM{summary: func(string) (string, error) {
		return "<think>only reasoning</think>", nil
	}}
	search := &fakeSearch{results: func(_ string, loop int) ([]Source, error) {
		if loop > 0 {
			return nil, errors.New("timeout")
		}
		return []Source{{Title: "T", URL: "https://example.com", Content: "content"}}, nil
	}}
	engine := newTestEngine(t, 1, llm, search)

	res, err := engine.Run(context.Background(), "topic")
	require.NoError(t, err)

	assert.Equal(t, 2, res.State.LoopCount)
	assert.True(t, strings.HasPrefix(res.State.Summary, "Research on: topic\n\nRaw search results:\n"))
	assert.Contains(t, res.State.Summary, "Note: Search failed during research loop 2 using fake API")
}
