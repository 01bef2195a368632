// Package mcpserver exposes the research engine over the Model Context
// Protocol: a research tool, a status probe, runtime configuration and an
// archive of finished sessions as research:// resources.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mikeboe/deep-researcher/pkg/config"
	"github.com/mikeboe/deep-researcher/pkg/research"
	"github.com/mikeboe/deep-researcher/pkg/research/tools"
)

const (
	uriScheme   = "research://"
	minMaxLoops = 1
	maxMaxLoops = 5

	researchTimeout = 5 * time.Minute
)

// EngineFactory builds an engine for one session from the current settings.
type EngineFactory func(ctx context.Context, cfg config.Config) (*research.ResearchEngine, error)

// Result is an archived session, served as JSON.
type Result struct {
	Topic     string    `json:"topic"`
	Summary   string    `json:"summary"`
	Sources   []string  `json:"sources"`
	Timestamp time.Time `json:"timestamp"`
}

type status struct {
	topic string
	step  string
	state research.ResearchState
}

// Researcher holds the settings, the progress of the latest session and the
// archive. A single instance backs every transport.
type Researcher struct {
	newEngine EngineFactory
	logger    *slog.Logger

	mu      sync.Mutex
	cfg     config.Config
	current *status
	results map[string]Result
	server  *mcp.Server
}

func NewResearcher(cfg config.Config, factory EngineFactory, logger *slog.Logger) *Researcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Researcher{
		newEngine: factory,
		logger:    logger,
		cfg:       cfg,
		results:   make(map[string]Result),
	}
}

// Server returns the MCP server, building it on first use.
func (r *Researcher) Server() *mcp.Server {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.server != nil {
		return r.server
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "deep-researcher",
		Version: "0.1.0",
		Title:   "Iterative web research",
	}, nil)

	r.addResearchTool(server)
	r.addStatusTool(server)
	r.addConfigureTool(server)

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		Name:        "Research Results by Topic",
		Description: "Access research results for a specific topic",
		URITemplate: uriScheme + "{topic}",
		MIMEType:    "application/json",
	}, r.readResult)

	r.server = server
	return server
}

// Run serves MCP over stdio until the client disconnects.
func (r *Researcher) Run(ctx context.Context) error {
	return r.Server().Run(ctx, &mcp.StdioTransport{})
}

type researchArgs struct {
	Topic string `json:"topic" jsonschema:"The topic to research"`
}

func (r *Researcher) addResearchTool(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "research",
		Description: "Research a topic using web search and LLM synthesis",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args researchArgs) (*mcp.CallToolResult, any, error) {
		topic := strings.TrimSpace(args.Topic)
		if topic == "" {
			return errorResult("Research topic is required"), nil, nil
		}

		summary, err := r.research(ctx, topic)
		if err != nil {
			return errorResult("Research failed: " + err.Error()), nil, nil
		}
		return textResult("Research completed. Summary:\n\n" + summary), nil, nil
	})
}

func (r *Researcher) research(ctx context.Context, topic string) (string, error) {
	cfg := r.settings()
	if cfg.MaxLoops < minMaxLoops || cfg.MaxLoops > maxMaxLoops {
		return "", fmt.Errorf("maxLoops must be a number between %d and %d", minMaxLoops, maxMaxLoops)
	}

	ctx, cancel := context.WithTimeout(ctx, researchTimeout)
	defer cancel()

	engine, err := r.newEngine(ctx, cfg)
	if err != nil {
		return "", err
	}
	engine.OnStateUpdate = func(state research.ResearchState, step research.Step) {
		r.setStatus(&status{topic: topic, step: step.String(), state: state})
	}

	r.logger.Info("Starting research", "topic", topic, "max_loops", cfg.MaxLoops, "search_api", cfg.SearchAPI)
	result, err := engine.Run(ctx, topic)
	if err != nil {
		var sessErr *research.SessionError
		if errors.As(err, &sessErr) {
			r.setStatus(&status{topic: topic, step: "failed", state: sessErr.State})
			if sessErr.State.Summary != "" {
				return "", fmt.Errorf("%w\n\nPartial summary:\n%s", err, sessErr.State.Summary)
			}
		}
		return "", err
	}

	r.setStatus(&status{topic: topic, step: "completed", state: result.State})
	r.archive(Result{
		Topic:     topic,
		Summary:   result.Report,
		Sources:   result.State.SourcesGathered,
		Timestamp: time.Now().UTC(),
	})
	return result.Report, nil
}

func (r *Researcher) addStatusTool(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_status",
		Description: "Get the current status of any ongoing research",
	}, func(ctx context.Context, req *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
		return textResult(r.statusText()), nil, nil
	})
}

func (r *Researcher) statusText() string {
	r.mu.Lock()
	cur := r.current
	r.mu.Unlock()

	if cur == nil {
		return "No research is currently in progress."
	}
	return fmt.Sprintf("Research Status:\nTopic: %s\nCurrent Step: %s\nLoop Count: %d\nSummary: %s\nSources: %s",
		cur.topic, cur.step, cur.state.LoopCount, cur.state.Summary, strings.Join(cur.state.SourcesGathered, "\n"))
}

type configureArgs struct {
	MaxLoops  *int   `json:"maxLoops,omitempty" jsonschema:"Number of research iterations (1-5)"`
	LLMModel  string `json:"llmModel,omitempty" jsonschema:"Model name for the configured LLM provider"`
	SearchAPI string `json:"searchApi,omitempty" jsonschema:"Search provider: tavily, perplexity, exa or arxiv"`
}

func (r *Researcher) addConfigureTool(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "configure",
		Description: "Configure the research parameters (max loops, LLM model, search API)",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args configureArgs) (*mcp.CallToolResult, any, error) {
		text, err := r.configure(args)
		if err != nil {
			return errorResult("Configuration error: " + err.Error()), nil, nil
		}
		return textResult(text), nil, nil
	})
}

func (r *Researcher) configure(args configureArgs) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	header := "Current research configuration:"
	if args.MaxLoops != nil || args.LLMModel != "" || args.SearchAPI != "" {
		next := r.cfg
		if args.MaxLoops != nil {
			if *args.MaxLoops < minMaxLoops || *args.MaxLoops > maxMaxLoops {
				return "", fmt.Errorf("maxLoops must be a number between %d and %d", minMaxLoops, maxMaxLoops)
			}
			next.MaxLoops = *args.MaxLoops
		}
		if args.LLMModel != "" {
			next.LocalLLM = args.LLMModel
		}
		if args.SearchAPI != "" {
			kind, err := tools.ParseProviderKind(args.SearchAPI)
			if err != nil {
				return "", err
			}
			next.SearchAPI = kind
			if err := next.ValidateAPIKeys(); err != nil {
				return "", err
			}
		}
		r.cfg = next
		header = "Research configuration updated:"
	}

	return fmt.Sprintf("%s\nMax Loops: %d\nLLM Model: %s\nSearch API: %s",
		header, r.cfg.MaxLoops, r.cfg.LocalLLM, r.cfg.SearchAPI), nil
}

func (r *Researcher) readResult(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	raw, ok := strings.CutPrefix(uri, uriScheme)
	if !ok || raw == "" {
		return nil, fmt.Errorf("invalid research URI format: %s", uri)
	}
	topic, err := url.PathUnescape(raw)
	if err != nil {
		topic = raw
	}

	r.mu.Lock()
	result, ok := r.results[Slug(topic)]
	r.mu.Unlock()
	if !ok {
		return nil, mcp.ResourceNotFoundError(uri)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: uri, MIMEType: "application/json", Text: string(data)},
		},
	}, nil
}

// archive stores a finished session and lists it as a concrete resource.
func (r *Researcher) archive(result Result) {
	slug := Slug(result.Topic)

	r.mu.Lock()
	r.results[slug] = result
	server := r.server
	r.mu.Unlock()

	if server == nil {
		return
	}
	server.AddResource(&mcp.Resource{
		URI:         uriScheme + slug,
		Name:        result.Topic,
		Description: fmt.Sprintf("Research results for %q from %s", result.Topic, result.Timestamp.Format(time.RFC1123)),
		MIMEType:    "application/json",
	}, r.readResult)
}

func (r *Researcher) settings() config.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

func (r *Researcher) setStatus(s *status) {
	r.mu.Lock()
	r.current = s
	r.mu.Unlock()
}

// componentUnescaper restores the characters url.QueryEscape encodes but a
// URI component keeps literal.
var componentUnescaper = strings.NewReplacer("%21", "!", "%27", "'", "%28", "(", "%29", ")", "%2A", "*")

// Slug is the archive key of a topic: lowercased, whitespace runs folded to
// "-", then escaped as a URI component.
func Slug(topic string) string {
	folded := strings.Join(strings.Fields(strings.ToLower(topic)), "-")
	return componentUnescaper.Replace(url.QueryEscape(folded))
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}
