package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/mikeboe/deep-researcher/pkg/research"

// Step is a state of the research state machine.
type Step int

const (
	StepGenerateQuery Step = iota
	StepWebResearch
	StepSummarize
	StepReflect
	StepRoute
	StepFinalize
)

func (s Step) String() string {
	switch s {
	case StepGenerateQuery:
		return "generate_query"
	case StepWebResearch:
		return "web_research"
	case StepSummarize:
		return "summarize_sources"
	case StepReflect:
		return "reflect_on_summary"
	case StepRoute:
		return "route_research"
	case StepFinalize:
		return "finalize_summary"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

type ResearchEngine struct {
	Config Config
	LLM    LanguageModel
	Search Searcher
	Logger *slog.Logger
	Picker Picker
	// OnStateUpdate, when set, is called on entering every step with the
	// snapshot that step will consume.
	OnStateUpdate func(state ResearchState, step Step)

	tracer trace.Tracer
}

func NewEngine(cfg Config, llm LanguageModel, searcher Searcher) (*ResearchEngine, error) {
	if llm == nil {
		return nil, errors.New("language model is required")
	}
	if searcher == nil {
		return nil, errors.New("search provider is required")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid research config: %w", err)
	}

	return &ResearchEngine{
		Config: cfg,
		LLM:    llm,
		Search: searcher,
		Logger: slog.Default(),
		Picker: NewPicker(cfg.Seed),
		tracer: otel.Tracer(tracerName),
	}, nil
}

// Run drives one session from topic to finalized report. The only fatal
// outcome is a failed search while no summary exists yet; it is returned as
// a *SessionError carrying the last consistent state.
func (e *ResearchEngine) Run(ctx context.Context, topic string) (Result, error) {
	ctx, span := e.tracer.Start(ctx, "research.session", trace.WithAttributes(
		attribute.String("research.topic", topic),
		attribute.Int("research.max_loops", e.Config.MaxLoops),
		attribute.String("research.search_api", e.Search.Name()),
	))
	defer span.End()

	e.Logger.Info("Starting research loop", "topic", topic, "max_loops", e.Config.MaxLoops, "search_api", e.Search.Name())

	state := ResearchState{Topic: topic}
	step := StepGenerateQuery
	for step != StepFinalize {
		if e.OnStateUpdate != nil {
			e.OnStateUpdate(state, step)
		}

		next, nextStep, err := e.advance(ctx, state, step)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			e.Logger.Error("Research halted", "step", step.String(), "loop", state.LoopCount, "error", err)
			return Result{State: state}, &SessionError{Step: step, State: state, Err: err}
		}
		state, step = next, nextStep
	}

	if e.OnStateUpdate != nil {
		e.OnStateUpdate(state, StepFinalize)
	}
	report := Finalize(state.Summary, state.SourcesGathered)
	span.SetAttributes(attribute.Int("research.loop_count", state.LoopCount))
	e.Logger.Info("Research complete", "loops", state.LoopCount, "length", len(report))

	return Result{Report: report, State: state}, nil
}

// advance executes a single step and returns the new snapshot and the next step.
func (e *ResearchEngine) advance(ctx context.Context, state ResearchState, step Step) (ResearchState, Step, error) {
	ctx, span := e.tracer.Start(ctx, "research."+step.String(), trace.WithAttributes(
		attribute.Int("research.loop_count", state.LoopCount),
	))
	defer span.End()

	switch step {
	case StepGenerateQuery:
		return e.generateQuery(ctx, state), StepWebResearch, nil
	case StepWebResearch:
		next, err := e.webResearch(ctx, state)
		if err != nil {
			span.RecordError(err)
			return state, step, err
		}
		return next, StepSummarize, nil
	case StepSummarize:
		return e.summarizeSources(ctx, state), StepReflect, nil
	case StepReflect:
		return e.reflectOnSummary(ctx, state), StepRoute, nil
	case StepRoute:
		return state, e.route(state), nil
	default:
		return state, step, fmt.Errorf("unexpected step %s", step)
	}
}

// --- Step reducers ---

func (e *ResearchEngine) generateQuery(ctx context.Context, s ResearchState) ResearchState {
	s.Query = e.formulateQuery(ctx, s.Topic)
	return s
}

func (e *ResearchEngine) webResearch(ctx context.Context, s ResearchState) (ResearchState, error) {
	round := s.LoopCount + 1
	e.Logger.Info("Starting web research", "loop", round, "query", s.Query)

	sources, err := e.Search.Search(ctx, s.Query, s.LoopCount)
	if err != nil {
		var spe *SearchProviderError
		if !errors.As(err, &spe) {
			err = &SearchProviderError{Provider: e.Search.Name(), Err: err}
		}
		if s.LoopCount == 0 {
			return s, err
		}

		e.Logger.Warn("Search failed, continuing with existing summary", "loop", round, "error", err)
		note := fmt.Sprintf("\n\nNote: Search failed during research loop %d using %s API. Error: %v", round, e.Search.Name(), err)
		next := s.withRound(fmt.Sprintf("[Search failed in loop %d]", round), note)
		next.Summary += note
		next.LastRoundFailed = true
		return next, nil
	}

	raw := FormatSources(sources, e.Config.MaxTokensPerSource, e.Search.IncludeRawContent())
	e.Logger.Info("Web research complete", "loop", round, "sources", len(sources))
	list := FormatSourceList(sources)
	if list == "" {
		list = fmt.Sprintf("[No sources found in loop %d]", round)
	}
	return s.withRound(list, raw), nil
}

func (e *ResearchEngine) summarizeSources(ctx context.Context, s ResearchState) ResearchState {
	summary := e.summarize(ctx, s)
	// A failed round has nothing to fold in; its note must survive the rewrite.
	if note := s.latestRaw(); s.LastRoundFailed && !strings.Contains(summary, strings.TrimSpace(note)) {
		summary += note
	}
	s.Summary = summary
	return s
}

func (e *ResearchEngine) reflectOnSummary(ctx context.Context, s ResearchState) ResearchState {
	query, note := e.reflect(ctx, s.Topic, s.Summary)
	s.Summary += note
	s.Query = query
	return s
}

// route continues while LoopCount <= MaxLoops, which yields MaxLoops+1 rounds.
func (e *ResearchEngine) route(s ResearchState) Step {
	if s.LoopCount <= e.Config.MaxLoops {
		return StepWebResearch
	}
	return StepFinalize
}
